package lark

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"

	"larkmcp/internal/content"
	"larkmcp/internal/domain"
)

const (
	msgTypeText        = "text"
	msgTypePost        = "post"
	msgTypeImage       = "image"
	msgTypeAudio       = "audio"
	msgTypeMedia       = "media"
	msgTypeFile        = "file"
	msgTypeInteractive = "interactive"
	msgTypeShareChat   = "share_chat"
	msgTypeShareUser   = "share_user"
)

// send creates one message. Each call carries a fresh uuid so the platform drops
// accidental duplicates of the same request.
func (c *Client) send(ctx context.Context, to domain.ResolvedRecipient, msgType, body string) (*domain.SendResult, error) {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(to.Kind.ReceiveIDType()).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(to.ID).
			MsgType(msgType).
			Content(body).
			Uuid(uuid.NewString()).
			Build()).
		Build()

	resp, err := c.api.Im.Message.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create %s message: %w", msgType, err)
	}
	if !resp.Success() {
		return nil, apiError("create "+msgType+" message", resp.Code, resp.Msg)
	}
	res := &domain.SendResult{RequestID: resp.RequestId()}
	if resp.Data != nil {
		res.MessageID = deref(resp.Data.MessageId)
		res.ChatID = deref(resp.Data.ChatId)
		res.MsgType = deref(resp.Data.MsgType)
		res.CreateTime = deref(resp.Data.CreateTime)
	}
	c.logger.Debug("message sent", "type", msgType, "to", to.ID, "message_id", res.MessageID)
	return res, nil
}

func (c *Client) sendJSON(ctx context.Context, to domain.ResolvedRecipient, msgType string, body map[string]string) (*domain.SendResult, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s content: %w", msgType, err)
	}
	return c.send(ctx, to, msgType, string(data))
}

func (c *Client) SendText(ctx context.Context, to domain.ResolvedRecipient, text string) (*domain.SendResult, error) {
	return c.sendJSON(ctx, to, msgTypeText, map[string]string{"text": text})
}

func (c *Client) SendPost(ctx context.Context, to domain.ResolvedRecipient, doc domain.MessageDocument) (*domain.SendResult, error) {
	body, err := content.RenderPost(doc, c.locale)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, to, msgTypePost, body)
}

func (c *Client) SendImage(ctx context.Context, to domain.ResolvedRecipient, imageKey string) (*domain.SendResult, error) {
	return c.sendJSON(ctx, to, msgTypeImage, map[string]string{"image_key": imageKey})
}

func (c *Client) SendAudio(ctx context.Context, to domain.ResolvedRecipient, fileKey string) (*domain.SendResult, error) {
	return c.sendJSON(ctx, to, msgTypeAudio, map[string]string{"file_key": fileKey})
}

func (c *Client) SendMedia(ctx context.Context, to domain.ResolvedRecipient, fileKey string) (*domain.SendResult, error) {
	return c.sendJSON(ctx, to, msgTypeMedia, map[string]string{"file_key": fileKey})
}

func (c *Client) SendFile(ctx context.Context, to domain.ResolvedRecipient, fileKey string) (*domain.SendResult, error) {
	return c.sendJSON(ctx, to, msgTypeFile, map[string]string{"file_key": fileKey})
}

// SendInteractive sends a message card. card is the card JSON as-is.
func (c *Client) SendInteractive(ctx context.Context, to domain.ResolvedRecipient, card string) (*domain.SendResult, error) {
	if !json.Valid([]byte(card)) {
		return nil, fmt.Errorf("interactive card is not valid JSON")
	}
	return c.send(ctx, to, msgTypeInteractive, card)
}

func (c *Client) SendSharedChat(ctx context.Context, to domain.ResolvedRecipient, chatID string) (*domain.SendResult, error) {
	return c.sendJSON(ctx, to, msgTypeShareChat, map[string]string{"chat_id": chatID})
}

func (c *Client) SendSharedUser(ctx context.Context, to domain.ResolvedRecipient, userID string) (*domain.SendResult, error) {
	return c.sendJSON(ctx, to, msgTypeShareUser, map[string]string{"user_id": userID})
}
