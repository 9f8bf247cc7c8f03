package dispatch

import (
	"context"
	"errors"

	"larkmcp/internal/content"
	"larkmcp/internal/domain"
	"larkmcp/internal/resolver"
)

// AttendeesLabel heads the attendee line of a meeting summary.
const AttendeesLabel = "Attendees:"

// ComposeRequest is a rich message built from a flat element list, one element per line.
type ComposeRequest struct {
	Recipient domain.RecipientSpec
	Title     string
	Elements  []domain.ContentElement
}

// ComposePost builds and sends a post. Mentions given by name are resolved against
// Recipient.GroupName and dropped when there is no group or no such member.
func (r *Router) ComposePost(ctx context.Context, req ComposeRequest) Outcome {
	m, err := r.src.Get(ctx)
	if err != nil {
		return r.report(domain.KindPost, nil, failure(err.Error()))
	}
	res := resolver.New(m, r.logger)
	to, err := res.Resolve(ctx, req.Recipient)
	if err != nil {
		return r.report(domain.KindPost, nil, failure(recipientReason(req.Recipient, err)))
	}

	chatID := ""
	if to.Kind == domain.RecipientGroup {
		chatID = to.ID
	}
	b := content.NewBuilder(req.Title)
	for _, el := range req.Elements {
		if at, ok := el.(domain.AtUser); ok && at.UserID == "" {
			if chatID == "" && req.Recipient.HasGroup() {
				if g, err := res.ResolveGroup(ctx, req.Recipient.GroupName); err == nil {
					chatID = g.ChatID
				}
			}
			if chatID == "" {
				r.logger.Debug("skipping mention outside a group", "member", at.Name)
				continue
			}
			mem, err := res.ResolveMemberIn(ctx, chatID, at.Name)
			if err != nil {
				r.logger.Debug("skipping unresolved mention", "member", at.Name, "err", err)
				continue
			}
			at.UserID = mem.OpenID
			el = at
		}
		b.AddLine(el)
	}

	post := Request{Recipient: req.Recipient, Message: domain.PostMessage(b.Finalize())}
	return r.report(domain.KindPost, &to, r.deliver(ctx, m, res, to, post))
}

type LinkSpec struct {
	Text string
	URL  string
}

// Notification is a formatted group text with optional mentions and a trailing link.
type Notification struct {
	GroupName string
	Text      string
	AtAll     bool
	Members   []string
	Bold      bool
	Italic    bool
	Underline bool
	Strike    bool
	Link      *LinkSpec
}

// NotifyGroup sends a text where at-all and member mentions each take their own line,
// followed by the styled body and the link.
func (r *Router) NotifyGroup(ctx context.Context, n Notification) Outcome {
	m, res, group, o, ok := r.openGroup(ctx, domain.KindText, n.GroupName)
	if !ok {
		return o
	}
	text := ""
	if n.AtAll {
		text += content.AtAll() + "\n"
	}
	if len(n.Members) > 0 {
		for _, name := range n.Members {
			mem, err := res.ResolveMemberIn(ctx, group.ChatID, name)
			if err != nil {
				continue
			}
			text += content.AtSomeone(mem.OpenID, mem.Name, content.IDKindOpenID) + " "
		}
		text += "\n"
	}
	text += content.ApplyStyles(n.Text, n.Bold, n.Italic, n.Underline, n.Strike)
	if n.Link != nil && n.Link.URL != "" {
		text += "\n" + content.URL(n.Link.URL, n.Link.Text)
	}

	to := domain.GroupRecipient(group.ChatID)
	out, err := m.SendText(ctx, to, text)
	return r.report(domain.KindText, &to, sent("text", out, err))
}

// Meeting is the input of a meeting summary post.
type Meeting struct {
	GroupName string
	Title     string
	Attendees []string
	Content   string
	Markdown  string
	Emoji     string
	Code      *domain.CodeBlock
}

// MeetingSummary lays out: bold attendee label with italic mentions on the same line,
// a divider, the markdown (or plain) body, then the optional emoji and code block lines.
func (r *Router) MeetingSummary(ctx context.Context, mt Meeting) Outcome {
	m, res, group, o, ok := r.openGroup(ctx, domain.KindPost, mt.GroupName)
	if !ok {
		return o
	}
	b := content.NewBuilder(mt.Title)
	b.AddLine(domain.Text{Content: AttendeesLabel, Styles: []domain.Style{domain.StyleBold}})
	for _, name := range mt.Attendees {
		mem, err := res.ResolveMemberIn(ctx, group.ChatID, name)
		if err != nil {
			continue
		}
		b.AddInline(domain.AtUser{UserID: mem.OpenID, Name: mem.Name, Styles: []domain.Style{domain.StyleItalic}})
	}
	b.AddLine(domain.Divider{})
	if mt.Markdown != "" {
		b.AddLine(domain.Markdown{Content: mt.Markdown})
	} else {
		b.AddLine(domain.Text{Content: mt.Content})
	}
	if mt.Emoji != "" {
		b.AddLine(domain.Emoji{Name: mt.Emoji})
	}
	if mt.Code != nil {
		b.AddLine(*mt.Code)
	}

	to := domain.GroupRecipient(group.ChatID)
	out, err := m.SendPost(ctx, to, b.Finalize())
	return r.report(domain.KindPost, &to, sent("post", out, err))
}

// Multimedia sends any combination of media to one group.
type Multimedia struct {
	GroupName string
	Message   string
	ImagePath string
	AudioPath string
	VideoPath string
	FilePath  string
}

// SendMultimedia sends each present item independently; one failed upload does not
// stop the others. Result keys are message, image, audio, video and file.
func (r *Router) SendMultimedia(ctx context.Context, mm Multimedia) BatchOutcome {
	m, res, group, o, ok := r.openGroup(ctx, domain.KindFile, mm.GroupName)
	if !ok {
		return BatchOutcome{Error: o.Error}
	}
	to := domain.GroupRecipient(group.ChatID)
	results := map[string]Outcome{}
	if mm.Message != "" {
		out, err := m.SendText(ctx, to, mm.Message)
		results["message"] = r.report(domain.KindText, &to, sent("text", out, err))
	}
	items := []struct {
		key, path, fileType string
	}{
		{"image", mm.ImagePath, "image"},
		{"audio", mm.AudioPath, "opus"},
		{"video", mm.VideoPath, "mp4"},
		{"file", mm.FilePath, "stream"},
	}
	for _, it := range items {
		if it.path == "" {
			continue
		}
		msg := domain.MediaMessage(it.path, it.fileType)
		results[it.key] = r.report(msg.Kind, &to, r.deliver(ctx, m, res, to, Request{Message: msg}))
	}
	return BatchOutcome{Results: results}
}

// ShareRequest shares a group card, and optionally a user card, into a target group.
type ShareRequest struct {
	SourceGroup string
	TargetGroup string
	UserMobile  string
	UserEmail   string
}

func (r *Router) ShareGroupAndUser(ctx context.Context, sr ShareRequest) BatchOutcome {
	m, err := r.src.Get(ctx)
	if err != nil {
		return BatchOutcome{Error: err.Error()}
	}
	res := resolver.New(m, r.logger)
	source, err := res.ResolveGroup(ctx, sr.SourceGroup)
	if err != nil {
		return BatchOutcome{Error: groupReason("Source group not found", err)}
	}
	target, err := res.ResolveGroup(ctx, sr.TargetGroup)
	if err != nil {
		return BatchOutcome{Error: groupReason("Target group not found", err)}
	}

	to := domain.GroupRecipient(target.ChatID)
	results := map[string]Outcome{}
	out, err := m.SendSharedChat(ctx, to, source.ChatID)
	results["share_chat"] = sent("share_chat", out, err)

	if sr.UserMobile != "" || sr.UserEmail != "" {
		user, err := res.ResolveUser(ctx, sr.UserMobile, sr.UserEmail)
		if err != nil {
			results["share_user"] = failure(groupReason(reasonUserNotFound, err))
		} else {
			out, err := m.SendSharedUser(ctx, to, user.ID)
			results["share_user"] = sent("share_user", out, err)
		}
	}
	return BatchOutcome{Results: results}
}

// openGroup acquires the client and resolves a destination group. When ok is false,
// o holds the reported failure.
func (r *Router) openGroup(ctx context.Context, kind domain.MessageKind, name string) (domain.Messenger, *resolver.Resolver, *domain.GroupInfo, Outcome, bool) {
	m, err := r.src.Get(ctx)
	if err != nil {
		return nil, nil, nil, r.report(kind, nil, failure(err.Error())), false
	}
	res := resolver.New(m, r.logger)
	group, err := res.ResolveGroup(ctx, name)
	if err != nil {
		return nil, nil, nil, r.report(kind, nil, failure(groupReason(reasonGroupNotFound, err))), false
	}
	return m, res, group, Outcome{}, true
}

func groupReason(notFound string, err error) string {
	if errors.Is(err, domain.ErrRecipientNotFound) {
		return notFound
	}
	return "recipient lookup failed: " + err.Error()
}
