// Package dispatch routes logical messages to the chat platform: resolve the recipient,
// upload media when needed, send an optional companion text, then send the message itself.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"larkmcp/internal/bus"
	"larkmcp/internal/content"
	"larkmcp/internal/domain"
	"larkmcp/internal/resolver"
)

// MessengerSource yields the current platform client. *handle.Handle[domain.Messenger] satisfies it.
type MessengerSource interface {
	Get(ctx context.Context) (domain.Messenger, error)
}

// Emitter receives dispatch events. *bus.EventBus satisfies it.
type Emitter interface {
	Emit(event bus.Event)
}

// Mentions asks for @-mentions in front of a group text message.
type Mentions struct {
	All     bool
	Members []string
}

// Request is one "send this message to this recipient" call.
type Request struct {
	Recipient domain.RecipientSpec
	Message   domain.OutboundMessage
	Mentions  Mentions
	Important bool
	// Companion is sent as plain text before media kinds. Ignored for text and post.
	Companion string
}

type Router struct {
	src    MessengerSource
	events Emitter
	logger *slog.Logger
}

// NewRouter creates a router. events may be nil.
func NewRouter(src MessengerSource, events Emitter, logger *slog.Logger) *Router {
	return &Router{src: src, events: events, logger: logger}
}

// Dispatch delivers req and reports what happened. It never returns partial sends for
// a recipient that failed to resolve or media that failed to upload.
func (r *Router) Dispatch(ctx context.Context, req Request) Outcome {
	m, err := r.src.Get(ctx)
	if err != nil {
		return r.report(req.Message.Kind, nil, failure(err.Error()))
	}
	res := resolver.New(m, r.logger)
	to, err := res.Resolve(ctx, req.Recipient)
	if err != nil {
		return r.report(req.Message.Kind, nil, failure(recipientReason(req.Recipient, err)))
	}
	return r.report(req.Message.Kind, &to, r.deliver(ctx, m, res, to, req))
}

func (r *Router) deliver(ctx context.Context, m domain.Messenger, res *resolver.Resolver, to domain.ResolvedRecipient, req Request) Outcome {
	msg := req.Message
	switch msg.Kind {
	case domain.KindText:
		text := r.textBody(ctx, res, to, req)
		out, err := m.SendText(ctx, to, text)
		return sent("text", out, err)

	case domain.KindPost:
		if msg.Document == nil {
			return failure("post message has no document")
		}
		out, err := m.SendPost(ctx, to, *msg.Document)
		return sent("post", out, err)

	case domain.KindImage, domain.KindFile, domain.KindAudio, domain.KindVideo:
		return r.deliverMedia(ctx, m, to, req)

	default:
		return failure(fmt.Sprintf("%s: %s", domain.ErrUnsupportedKind, msg.Kind))
	}
}

// textBody prefixes group messages with the requested mentions and bolds important bodies.
func (r *Router) textBody(ctx context.Context, res *resolver.Resolver, to domain.ResolvedRecipient, req Request) string {
	var mentions []string
	if to.Kind == domain.RecipientGroup {
		if req.Mentions.All {
			mentions = append(mentions, content.AtAll())
		}
		for _, name := range req.Mentions.Members {
			mem, err := res.ResolveMemberIn(ctx, to.ID, name)
			if err != nil {
				r.logger.Debug("skipping unresolved mention", "member", name, "err", err)
				continue
			}
			mentions = append(mentions, content.AtSomeone(mem.OpenID, mem.Name, content.IDKindOpenID))
		}
	}
	body := req.Message.Text
	if req.Important {
		body = content.Bold(body)
	}
	return content.JoinMentions(mentions) + body
}

func (r *Router) deliverMedia(ctx context.Context, m domain.Messenger, to domain.ResolvedRecipient, req Request) Outcome {
	msg := req.Message
	key, err := r.upload(ctx, m, msg)
	if err != nil || key == "" {
		r.logger.Warn("upload failed", "kind", msg.Kind.String(), "path", msg.Path, "err", err)
		return failure(msg.Kind.Label() + " " + domain.ErrUploadFailed.Error())
	}

	var companion *Outcome
	if req.Companion != "" {
		out, err := m.SendText(ctx, to, req.Companion)
		c := sent("text", out, err)
		companion = &c
	}

	var out *domain.SendResult
	switch msg.Kind {
	case domain.KindImage:
		out, err = m.SendImage(ctx, to, key)
	case domain.KindAudio:
		out, err = m.SendAudio(ctx, to, key)
	case domain.KindVideo:
		out, err = m.SendMedia(ctx, to, key)
	default:
		out, err = m.SendFile(ctx, to, key)
	}
	o := sent(msg.Kind.String(), out, err)
	o.Companion = companion
	return o
}

func (r *Router) upload(ctx context.Context, m domain.Messenger, msg domain.OutboundMessage) (string, error) {
	if msg.Path == "" {
		return "", fmt.Errorf("no file path")
	}
	switch msg.Kind {
	case domain.KindImage:
		return m.UploadImage(ctx, msg.Path)
	case domain.KindAudio:
		return m.UploadFile(ctx, msg.Path, "opus")
	case domain.KindVideo:
		return m.UploadFile(ctx, msg.Path, "mp4")
	default:
		fileType := msg.FileType
		if fileType == "" || fileType == "image" || fileType == "opus" || fileType == "mp4" {
			fileType = "stream"
		}
		return m.UploadFile(ctx, msg.Path, fileType)
	}
}

func sent(op string, res *domain.SendResult, err error) Outcome {
	if err != nil {
		return failure(fmt.Sprintf("send %s failed: %v", op, err))
	}
	return success(res)
}

func (r *Router) report(kind domain.MessageKind, to *domain.ResolvedRecipient, o Outcome) Outcome {
	attrs := []any{"kind", kind.String()}
	payload := map[string]any{"kind": kind.String()}
	if to != nil {
		attrs = append(attrs, "recipient_kind", to.Kind.String(), "recipient", to.ID)
		payload["recipient_kind"] = to.Kind.String()
		payload["recipient"] = to.ID
	}
	eventType := bus.EventMessageSent
	if o.Error != "" {
		eventType = bus.EventMessageFailed
		payload["error"] = o.Error
		r.logger.Info("dispatch failed", append(attrs, "error", o.Error)...)
	} else {
		if o.SendResult != nil {
			payload["message_id"] = o.MessageID
		}
		r.logger.Debug("dispatched", attrs...)
	}
	if r.events != nil {
		r.events.Emit(bus.Event{Type: eventType, Source: "dispatch", Payload: payload})
	}
	return o
}
