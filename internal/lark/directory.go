package lark

import (
	"context"
	"fmt"

	larkcontact "github.com/larksuite/oapi-sdk-go/v3/service/contact/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"

	"larkmcp/internal/domain"
)

const pageSize = 100

func (c *Client) LookupUsers(ctx context.Context, mobiles, emails []string) ([]domain.UserInfo, error) {
	body := larkcontact.NewBatchGetIdUserReqBodyBuilder()
	if len(mobiles) > 0 {
		body.Mobiles(mobiles)
	}
	if len(emails) > 0 {
		body.Emails(emails)
	}
	req := larkcontact.NewBatchGetIdUserReqBuilder().
		UserIdType("open_id").
		Body(body.Build()).
		Build()

	resp, err := c.api.Contact.User.BatchGetId(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("batch get user id: %w", err)
	}
	if !resp.Success() {
		return nil, apiError("batch get user id", resp.Code, resp.Msg)
	}
	var users []domain.UserInfo
	if resp.Data == nil {
		return users, nil
	}
	for _, u := range resp.Data.UserList {
		if u == nil || deref(u.UserId) == "" {
			continue
		}
		users = append(users, domain.UserInfo{
			OpenID: deref(u.UserId),
			Mobile: deref(u.Mobile),
			Email:  deref(u.Email),
		})
	}
	return users, nil
}

func (c *Client) GetUser(ctx context.Context, openID string) (*domain.UserProfile, error) {
	req := larkcontact.NewGetUserReqBuilder().
		UserId(openID).
		UserIdType("open_id").
		Build()
	resp, err := c.api.Contact.User.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !resp.Success() {
		return nil, apiError("get user", resp.Code, resp.Msg)
	}
	if resp.Data == nil || resp.Data.User == nil {
		return nil, fmt.Errorf("user %s: %w", openID, domain.ErrRecipientNotFound)
	}
	u := resp.Data.User
	return &domain.UserProfile{
		OpenID: deref(u.OpenId),
		UserID: deref(u.UserId),
		Name:   deref(u.Name),
		EnName: deref(u.EnName),
		Email:  deref(u.Email),
		Mobile: deref(u.Mobile),
	}, nil
}

// ListGroups returns every chat the bot belongs to.
func (c *Client) ListGroups(ctx context.Context) ([]domain.GroupSummary, error) {
	var groups []domain.GroupSummary
	token := ""
	for {
		page, next, more, err := c.listChatsPage(ctx, token, pageSize)
		if err != nil {
			return nil, err
		}
		groups = append(groups, page...)
		if !more || next == "" {
			return groups, nil
		}
		token = next
	}
}

func (c *Client) listChatsPage(ctx context.Context, token string, size int) ([]domain.GroupSummary, string, bool, error) {
	b := larkim.NewListChatReqBuilder().PageSize(size)
	if token != "" {
		b.PageToken(token)
	}
	resp, err := c.api.Im.Chat.List(ctx, b.Build())
	if err != nil {
		return nil, "", false, fmt.Errorf("list chats: %w", err)
	}
	if !resp.Success() {
		return nil, "", false, apiError("list chats", resp.Code, resp.Msg)
	}
	if resp.Data == nil {
		return nil, "", false, nil
	}
	groups := make([]domain.GroupSummary, 0, len(resp.Data.Items))
	for _, item := range resp.Data.Items {
		if item == nil {
			continue
		}
		groups = append(groups, domain.GroupSummary{ChatID: deref(item.ChatId), Name: deref(item.Name)})
	}
	more := resp.Data.HasMore != nil && *resp.Data.HasMore
	return groups, deref(resp.Data.PageToken), more, nil
}

// LookupGroupIDsByName returns the chat ids whose name equals name exactly, in listing order.
func (c *Client) LookupGroupIDsByName(ctx context.Context, name string) ([]string, error) {
	groups, err := c.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, g := range groups {
		if g.Name == name && g.ChatID != "" {
			ids = append(ids, g.ChatID)
		}
	}
	return ids, nil
}

func (c *Client) LookupGroupMembers(ctx context.Context, chatID string) ([]domain.MemberInfo, error) {
	var members []domain.MemberInfo
	token := ""
	for {
		b := larkim.NewGetChatMembersReqBuilder().
			ChatId(chatID).
			MemberIdType("open_id").
			PageSize(pageSize)
		if token != "" {
			b.PageToken(token)
		}
		resp, err := c.api.Im.ChatMembers.Get(ctx, b.Build())
		if err != nil {
			return nil, fmt.Errorf("get chat members: %w", err)
		}
		if !resp.Success() {
			return nil, apiError("get chat members", resp.Code, resp.Msg)
		}
		if resp.Data == nil {
			return members, nil
		}
		for _, item := range resp.Data.Items {
			if item == nil {
				continue
			}
			members = append(members, domain.MemberInfo{Name: deref(item.Name), OpenID: deref(item.MemberId)})
		}
		if resp.Data.HasMore == nil || !*resp.Data.HasMore || deref(resp.Data.PageToken) == "" {
			return members, nil
		}
		token = deref(resp.Data.PageToken)
	}
}

func (c *Client) LookupMemberIDsByName(ctx context.Context, chatID, name string) ([]string, error) {
	members, err := c.LookupGroupMembers(ctx, chatID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, m := range members {
		if m.Name == name && m.OpenID != "" {
			ids = append(ids, m.OpenID)
		}
	}
	return ids, nil
}
