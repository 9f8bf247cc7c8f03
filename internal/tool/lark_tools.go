package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"larkmcp/internal/content"
	"larkmcp/internal/dispatch"
	"larkmcp/internal/domain"
	"larkmcp/internal/handle"
	"larkmcp/internal/resolver"
)

// Connector builds and verifies a platform client from app credentials.
type Connector func(ctx context.Context, appID, appSecret string) (domain.Messenger, error)

// LarkConfig wires the messaging tool set.
type LarkConfig struct {
	Bot     *handle.Handle[domain.Messenger]
	Router  *dispatch.Router
	Connect Connector
	Logger  *slog.Logger
}

type larkTools struct {
	bot     *handle.Handle[domain.Messenger]
	router  *dispatch.Router
	connect Connector
	reg     *Registry
	logger  *slog.Logger
}

var recipientParams = map[string]Param{
	"to_user_mobile": {Type: "string", Description: "Recipient user's mobile number"},
	"to_user_email":  {Type: "string", Description: "Recipient user's email"},
	"to_group":       {Type: "string", Description: "Recipient group name"},
	"to_group_member": {Type: "string", Description: "Send directly to this member of to_group"},
}

func withRecipient(params map[string]Param) map[string]Param {
	for k, v := range recipientParams {
		params[k] = v
	}
	return params
}

func recipientArgs(args map[string]any) domain.RecipientSpec {
	return domain.RecipientSpec{
		Mobile:     ArgsString(args, "to_user_mobile"),
		Email:      ArgsString(args, "to_user_email"),
		GroupName:  ArgsString(args, "to_group"),
		MemberName: ArgsString(args, "to_group_member"),
	}
}

// RegisterLarkTools adds the messaging tools to reg.
func RegisterLarkTools(reg *Registry, cfg LarkConfig) {
	t := &larkTools{bot: cfg.Bot, router: cfg.Router, connect: cfg.Connect, reg: reg, logger: cfg.Logger}
	for _, ft := range t.highLevel() {
		reg.Register(ft)
	}
	for _, ft := range t.directory() {
		reg.Register(ft)
	}
	for _, ft := range t.passthroughSends() {
		reg.Register(ft)
	}
	for _, ft := range t.media() {
		reg.Register(ft)
	}
}

func (t *larkTools) messenger(ctx context.Context) (domain.Messenger, string) {
	m, err := t.bot.Get(ctx)
	if err != nil {
		return nil, err.Error()
	}
	return m, ""
}

func (t *larkTools) highLevel() []*funcTool {
	return []*funcTool{
		{
			name:        "init_feishu_bot",
			description: "Initialize the Feishu/Lark bot with app credentials and verify the connection.",
			parameters: ToolParameters(map[string]Param{
				"app_id":     {Type: "string", Description: "App ID of the Feishu application"},
				"app_secret": {Type: "string", Description: "App secret of the Feishu application"},
			}, []string{"app_id", "app_secret"}),
			run: t.initBot,
		},
		{
			name:        "find_feishu_user",
			description: "Find a user by mobile number or email. Returns the first match or an empty object.",
			parameters: ToolParameters(map[string]Param{
				"mobile": {Type: "string", Description: "User's mobile number"},
				"email":  {Type: "string", Description: "User's email"},
			}, nil),
			run: t.findUser,
		},
		{
			name:        "find_feishu_group",
			description: "Find a group by name with its members. Returns an empty object when not found.",
			parameters: ToolParameters(map[string]Param{
				"group_name": {Type: "string", Description: "Group name"},
			}, []string{"group_name"}),
			run: t.findGroup,
		},
		{
			name:        "find_feishu_group_member",
			description: "Find a member by name inside a named group. Returns an empty object when not found.",
			parameters: ToolParameters(map[string]Param{
				"group_name":  {Type: "string", Description: "Group name"},
				"member_name": {Type: "string", Description: "Member display name"},
			}, []string{"group_name", "member_name"}),
			run: t.findGroupMember,
		},
		{
			name:        "send_feishu_text_message",
			description: "Send a text message to a user (by mobile or email) or a group (by name), optionally mentioning members or everyone.",
			parameters: ToolParameters(withRecipient(map[string]Param{
				"message":      {Type: "string", Description: "Message text"},
				"at_all":       {Type: "boolean", Description: "Mention everyone (groups only)"},
				"at_members":   {Type: "array", Description: "Member names to mention (groups only)"},
				"is_important": {Type: "boolean", Description: "Show the message in bold"},
			}), []string{"message"}),
			run: t.sendText,
		},
		{
			name:        "send_feishu_rich_message",
			description: "Send a rich post. content_elements is a list of {type: text|at_user|at_all|link|markdown|divider|code_block|emoji, ...}; each element takes its own line.",
			parameters: ToolParameters(withRecipient(map[string]Param{
				"title":            {Type: "string", Description: "Post title"},
				"content_elements": {Type: "array", Items: "object", Description: "Content elements, one per line"},
			}), []string{"title", "content_elements"}),
			run: t.sendRich,
		},
		{
			name:        "send_feishu_file",
			description: "Upload a local file and send it. file_type is image, opus, mp4, pdf, doc, xls, ppt or stream.",
			parameters: ToolParameters(withRecipient(map[string]Param{
				"file_path": {Type: "string", Description: "Local file path"},
				"file_type": {Type: "string", Description: "File type, default stream"},
				"message":   {Type: "string", Description: "Optional text sent before the file"},
			}), []string{"file_path"}),
			run: t.sendFile,
		},
		{
			name:        "send_group_notification_with_all_formats",
			description: "Send a group notification with optional mentions, text styles and a trailing link.",
			parameters: ToolParameters(map[string]Param{
				"group_name":      {Type: "string", Description: "Group name"},
				"text_message":    {Type: "string", Description: "Notification body"},
				"at_members":      {Type: "array", Description: "Member names to mention"},
				"at_all":          {Type: "boolean", Description: "Mention everyone"},
				"add_bold":        {Type: "boolean", Description: "Bold body"},
				"add_italic":      {Type: "boolean", Description: "Italic body"},
				"add_underline":   {Type: "boolean", Description: "Underline body"},
				"add_delete_line": {Type: "boolean", Description: "Strike through body"},
				"add_link":        {Type: "object", Description: `Optional link {"text": ..., "url": ...}`},
			}, []string{"group_name", "text_message"}),
			run: t.notifyGroup,
		},
		{
			name:        "send_meeting_summary",
			description: "Send a meeting summary post with attendee mentions, a divider, the content and optional emoji and code block.",
			parameters: ToolParameters(map[string]Param{
				"group_name":     {Type: "string", Description: "Group name"},
				"title":          {Type: "string", Description: "Meeting title"},
				"attendees":      {Type: "array", Description: "Attendee names, mentioned when found in the group"},
				"content":        {Type: "string", Description: "Meeting notes"},
				"add_markdown":   {Type: "string", Description: "Markdown body, replaces content"},
				"add_emoji":      {Type: "string", Description: "Emoji type, e.g. THUMBSUP"},
				"add_code_block": {Type: "object", Description: `Optional {"language": ..., "code": ...}`},
			}, []string{"group_name", "title"}),
			run: t.meetingSummary,
		},
		{
			name:        "send_multimedia_message",
			description: "Send any combination of image, audio (opus), video (mp4) and file to a group, with an optional message.",
			parameters: ToolParameters(map[string]Param{
				"group_name": {Type: "string", Description: "Group name"},
				"image_path": {Type: "string", Description: "Local image path"},
				"audio_path": {Type: "string", Description: "Local opus audio path"},
				"video_path": {Type: "string", Description: "Local mp4 video path"},
				"file_path":  {Type: "string", Description: "Local file path"},
				"message":    {Type: "string", Description: "Optional text sent first"},
			}, []string{"group_name"}),
			run: t.multimedia,
		},
		{
			name:        "share_group_and_user",
			description: "Share a group card into another group, and optionally a user card.",
			parameters: ToolParameters(map[string]Param{
				"source_group_name": {Type: "string", Description: "Group to share"},
				"target_group_name": {Type: "string", Description: "Group that receives the cards"},
				"user_mobile":       {Type: "string", Description: "Optional user to share, by mobile"},
				"user_email":        {Type: "string", Description: "Optional user to share, by email"},
			}, []string{"source_group_name", "target_group_name"}),
			run: t.share,
		},
		{
			name:        "get_api_documentation",
			description: "Describe every messaging tool, its parameters, and the rich content element types.",
			parameters:  ToolParameters(map[string]Param{}, nil),
			run:         t.apiDocumentation,
		},
		{
			name:        "get_usage_examples",
			description: "Example tool calls for common messaging scenarios.",
			parameters:  ToolParameters(map[string]Param{}, nil),
			run:         func(context.Context, map[string]any) (string, error) { return jsonResult(usageExamples) },
		},
	}
}

func (t *larkTools) initBot(ctx context.Context, args map[string]any) (string, error) {
	if err := RequireArgs(args, "app_id", "app_secret"); err != nil {
		return "", err
	}
	m, err := t.connect(ctx, ArgsString(args, "app_id"), ArgsString(args, "app_secret"))
	if err != nil {
		t.logger.Warn("lark bot init failed", "error", err)
		return jsonResult(map[string]string{"status": "error", "message": "lark bot initialization failed: " + err.Error()})
	}
	t.bot.Set(m)
	t.logger.Info("lark bot initialized")
	return jsonResult(map[string]string{"status": "success", "message": "lark bot initialized"})
}

func (t *larkTools) findUser(ctx context.Context, args map[string]any) (string, error) {
	m, reason := t.messenger(ctx)
	if m == nil {
		return errorResult(reason)
	}
	mobile, email := ArgsString(args, "mobile"), ArgsString(args, "email")
	var mobiles, emails []string
	if mobile != "" {
		mobiles = []string{mobile}
	}
	if email != "" {
		emails = []string{email}
	}
	if mobiles == nil && emails == nil {
		return jsonResult(map[string]any{})
	}
	users, err := m.LookupUsers(ctx, mobiles, emails)
	if err != nil {
		return errorResult("lookup users failed: " + err.Error())
	}
	for _, u := range users {
		if u.OpenID != "" {
			return jsonResult(u)
		}
	}
	return jsonResult(map[string]any{})
}

func (t *larkTools) findGroup(ctx context.Context, args map[string]any) (string, error) {
	if err := RequireArgs(args, "group_name"); err != nil {
		return "", err
	}
	m, reason := t.messenger(ctx)
	if m == nil {
		return errorResult(reason)
	}
	g, err := resolver.New(m, t.logger).ResolveGroup(ctx, ArgsString(args, "group_name"))
	if err != nil {
		return notFoundOr(err)
	}
	return jsonResult(g)
}

func (t *larkTools) findGroupMember(ctx context.Context, args map[string]any) (string, error) {
	if err := RequireArgs(args, "group_name", "member_name"); err != nil {
		return "", err
	}
	m, reason := t.messenger(ctx)
	if m == nil {
		return errorResult(reason)
	}
	mem, err := resolver.New(m, t.logger).ResolveGroupMember(ctx, ArgsString(args, "group_name"), ArgsString(args, "member_name"))
	if err != nil {
		return notFoundOr(err)
	}
	return jsonResult(mem)
}

// notFoundOr reports a miss as an empty object and anything else as an error result.
func notFoundOr(err error) (string, error) {
	if errors.Is(err, domain.ErrRecipientNotFound) {
		return jsonResult(map[string]any{})
	}
	return errorResult("lookup failed: " + err.Error())
}

func (t *larkTools) sendText(ctx context.Context, args map[string]any) (string, error) {
	if err := RequirePresent(args, "message"); err != nil {
		return "", err
	}
	out := t.router.Dispatch(ctx, dispatch.Request{
		Recipient: recipientArgs(args),
		Message:   domain.TextMessage(ArgsString(args, "message")),
		Mentions: dispatch.Mentions{
			All:     ArgsBool(args, "at_all", false),
			Members: ArgsStrings(args, "at_members"),
		},
		Important: ArgsBool(args, "is_important", false),
	})
	return jsonResult(out)
}

func (t *larkTools) sendRich(ctx context.Context, args map[string]any) (string, error) {
	if err := RequireArgs(args, "title", "content_elements"); err != nil {
		return "", err
	}
	els, err := content.ParseElements(ArgsSlice(args, "content_elements"))
	if err != nil {
		return "", fmt.Errorf("content_elements: %w", err)
	}
	out := t.router.ComposePost(ctx, dispatch.ComposeRequest{
		Recipient: recipientArgs(args),
		Title:     ArgsString(args, "title"),
		Elements:  els,
	})
	return jsonResult(out)
}

func (t *larkTools) sendFile(ctx context.Context, args map[string]any) (string, error) {
	if err := RequireArgs(args, "file_path"); err != nil {
		return "", err
	}
	out := t.router.Dispatch(ctx, dispatch.Request{
		Recipient: recipientArgs(args),
		Message:   domain.MediaMessage(ArgsString(args, "file_path"), ArgsString(args, "file_type")),
		Companion: ArgsString(args, "message"),
	})
	return jsonResult(out)
}

func (t *larkTools) notifyGroup(ctx context.Context, args map[string]any) (string, error) {
	if err := RequireArgs(args, "group_name", "text_message"); err != nil {
		return "", err
	}
	n := dispatch.Notification{
		GroupName: ArgsString(args, "group_name"),
		Text:      ArgsString(args, "text_message"),
		AtAll:     ArgsBool(args, "at_all", false),
		Members:   ArgsStrings(args, "at_members"),
		Bold:      ArgsBool(args, "add_bold", false),
		Italic:    ArgsBool(args, "add_italic", false),
		Underline: ArgsBool(args, "add_underline", false),
		Strike:    ArgsBool(args, "add_delete_line", false),
	}
	if link := ArgsMap(args, "add_link"); link != nil {
		n.Link = &dispatch.LinkSpec{Text: ArgsString(link, "text"), URL: ArgsString(link, "url")}
	}
	return jsonResult(t.router.NotifyGroup(ctx, n))
}

func (t *larkTools) meetingSummary(ctx context.Context, args map[string]any) (string, error) {
	if err := RequireArgs(args, "group_name", "title"); err != nil {
		return "", err
	}
	mt := dispatch.Meeting{
		GroupName: ArgsString(args, "group_name"),
		Title:     ArgsString(args, "title"),
		Attendees: ArgsStrings(args, "attendees"),
		Content:   ArgsString(args, "content"),
		Markdown:  ArgsString(args, "add_markdown"),
		Emoji:     ArgsString(args, "add_emoji"),
	}
	if code := ArgsMap(args, "add_code_block"); code != nil {
		mt.Code = &domain.CodeBlock{Language: ArgsString(code, "language"), Code: ArgsString(code, "code")}
	}
	return jsonResult(t.router.MeetingSummary(ctx, mt))
}

func (t *larkTools) multimedia(ctx context.Context, args map[string]any) (string, error) {
	if err := RequireArgs(args, "group_name"); err != nil {
		return "", err
	}
	return jsonResult(t.router.SendMultimedia(ctx, dispatch.Multimedia{
		GroupName: ArgsString(args, "group_name"),
		Message:   ArgsString(args, "message"),
		ImagePath: ArgsString(args, "image_path"),
		AudioPath: ArgsString(args, "audio_path"),
		VideoPath: ArgsString(args, "video_path"),
		FilePath:  ArgsString(args, "file_path"),
	}))
}

func (t *larkTools) share(ctx context.Context, args map[string]any) (string, error) {
	if err := RequireArgs(args, "source_group_name", "target_group_name"); err != nil {
		return "", err
	}
	return jsonResult(t.router.ShareGroupAndUser(ctx, dispatch.ShareRequest{
		SourceGroup: ArgsString(args, "source_group_name"),
		TargetGroup: ArgsString(args, "target_group_name"),
		UserMobile:  ArgsString(args, "user_mobile"),
		UserEmail:   ArgsString(args, "user_email"),
	}))
}

func (t *larkTools) apiDocumentation(context.Context, map[string]any) (string, error) {
	return jsonResult(map[string]any{
		"tools":    t.reg.GetDefinitions(),
		"elements": elementReference,
		"inline_formats": map[string]string{
			"bold":      content.Bold("text"),
			"italic":    content.Italic("text"),
			"underline": content.Underline("text"),
			"strike":    content.Strike("text"),
			"link":      content.URL("https://example.com", "text"),
			"at_all":    content.AtAll(),
			"at_user":   content.AtSomeone("ou_xxx", "name", content.IDKindOpenID),
		},
	})
}

var elementReference = []map[string]string{
	{"type": "text", "fields": "content, bold, italic, underline, strike, styles"},
	{"type": "at_user", "fields": "name (resolved in the destination group) or user_id"},
	{"type": "at_all", "fields": ""},
	{"type": "link", "fields": "text, url"},
	{"type": "markdown", "fields": "content"},
	{"type": "divider", "fields": ""},
	{"type": "code_block", "fields": "language, code"},
	{"type": "emoji", "fields": "name"},
}

var usageExamples = map[string][]map[string]any{
	"basic": {
		{
			"scenario": "Plain text to a group",
			"tool":     "send_feishu_text_message",
			"args":     map[string]any{"message": "Hello, World!", "to_group": "Test Group"},
		},
		{
			"scenario": "Mention a member",
			"tool":     "send_feishu_text_message",
			"args":     map[string]any{"message": "please review the doc", "to_group": "Test Group", "at_members": []string{"Alice"}},
		},
	},
	"formatted": {
		{
			"scenario": "Bold notification for everyone with a link",
			"tool":     "send_group_notification_with_all_formats",
			"args": map[string]any{
				"group_name": "Test Group", "text_message": "Release tonight", "at_all": true, "add_bold": true,
				"add_link": map[string]string{"text": "changelog", "url": "https://example.com/changes"},
			},
		},
	},
	"rich": {
		{
			"scenario": "Meeting summary",
			"tool":     "send_meeting_summary",
			"args": map[string]any{
				"group_name": "Test Group", "title": "Weekly sync", "attendees": []string{"Alice", "Bob"},
				"content": "1. Project on track", "add_emoji": "THUMBSUP",
			},
		},
		{
			"scenario": "Rich post",
			"tool":     "send_feishu_rich_message",
			"args": map[string]any{
				"title": "Status", "to_group": "Test Group",
				"content_elements": []map[string]any{
					{"type": "text", "content": "Important", "bold": true},
					{"type": "at_user", "name": "Alice"},
					{"type": "divider"},
					{"type": "markdown", "content": "## Notes"},
				},
			},
		},
	},
	"files": {
		{
			"scenario": "Send a PDF with a note",
			"tool":     "send_feishu_file",
			"args":     map[string]any{"file_path": "path/to/doc.pdf", "file_type": "pdf", "to_group": "Test Group", "message": "Spec attached"},
		},
		{
			"scenario": "Several media at once",
			"tool":     "send_multimedia_message",
			"args":     map[string]any{"group_name": "Test Group", "image_path": "a.png", "video_path": "b.mp4"},
		},
	},
}

func (t *larkTools) directory() []*funcTool {
	return []*funcTool{
		{
			name:        "get_user_info",
			description: "Look up users by emails and mobile numbers.",
			parameters: ToolParameters(map[string]Param{
				"emails":  {Type: "array", Description: "Emails"},
				"mobiles": {Type: "array", Description: "Mobile numbers"},
			}, nil),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				m, reason := t.messenger(ctx)
				if m == nil {
					return errorResult(reason)
				}
				users, err := m.LookupUsers(ctx, ArgsStrings(args, "mobiles"), ArgsStrings(args, "emails"))
				if err != nil {
					return errorResult("lookup users failed: " + err.Error())
				}
				return jsonResult(nonNil(users))
			},
		},
		{
			name:        "get_user_profile",
			description: "Fetch a user's profile by open_id.",
			parameters: ToolParameters(map[string]Param{
				"user_open_id": {Type: "string", Description: "User open_id"},
			}, []string{"user_open_id"}),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				if err := RequireArgs(args, "user_open_id"); err != nil {
					return "", err
				}
				m, reason := t.messenger(ctx)
				if m == nil {
					return errorResult(reason)
				}
				p, err := m.GetUser(ctx, ArgsString(args, "user_open_id"))
				if err != nil {
					return errorResult("get user failed: " + err.Error())
				}
				return jsonResult(p)
			},
		},
		{
			name:        "get_group_list",
			description: "List the groups the bot belongs to.",
			parameters:  ToolParameters(map[string]Param{}, nil),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				m, reason := t.messenger(ctx)
				if m == nil {
					return errorResult(reason)
				}
				groups, err := m.ListGroups(ctx)
				if err != nil {
					return errorResult("list groups failed: " + err.Error())
				}
				return jsonResult(nonNil(groups))
			},
		},
		{
			name:        "get_group_chat_id_by_name",
			description: "Chat ids of the groups with exactly this name.",
			parameters: ToolParameters(map[string]Param{
				"group_name": {Type: "string", Description: "Group name"},
			}, []string{"group_name"}),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				if err := RequireArgs(args, "group_name"); err != nil {
					return "", err
				}
				m, reason := t.messenger(ctx)
				if m == nil {
					return errorResult(reason)
				}
				ids, err := m.LookupGroupIDsByName(ctx, ArgsString(args, "group_name"))
				if err != nil {
					return errorResult("lookup groups failed: " + err.Error())
				}
				return jsonResult(nonNil(ids))
			},
		},
		{
			name:        "get_members_in_group_by_group_chat_id",
			description: "Members of a group.",
			parameters: ToolParameters(map[string]Param{
				"group_chat_id": {Type: "string", Description: "Group chat_id"},
			}, []string{"group_chat_id"}),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				if err := RequireArgs(args, "group_chat_id"); err != nil {
					return "", err
				}
				m, reason := t.messenger(ctx)
				if m == nil {
					return errorResult(reason)
				}
				members, err := m.LookupGroupMembers(ctx, ArgsString(args, "group_chat_id"))
				if err != nil {
					return errorResult("lookup members failed: " + err.Error())
				}
				return jsonResult(nonNil(members))
			},
		},
		{
			name:        "get_member_open_id_by_name",
			description: "open_ids of the group members with this name.",
			parameters: ToolParameters(map[string]Param{
				"group_chat_id": {Type: "string", Description: "Group chat_id"},
				"member_name":   {Type: "string", Description: "Member name"},
			}, []string{"group_chat_id", "member_name"}),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				if err := RequireArgs(args, "group_chat_id", "member_name"); err != nil {
					return "", err
				}
				m, reason := t.messenger(ctx)
				if m == nil {
					return errorResult(reason)
				}
				ids, err := m.LookupMemberIDsByName(ctx, ArgsString(args, "group_chat_id"), ArgsString(args, "member_name"))
				if err != nil {
					return errorResult("lookup members failed: " + err.Error())
				}
				return jsonResult(nonNil(ids))
			},
		},
	}
}

// sendSpec describes one low level send, exposed as <name>_to_user and <name>_to_chat.
type sendSpec struct {
	name   string
	what   string
	params map[string]Param
	// mayBeEmpty lists params that must be present but can be empty strings.
	mayBeEmpty []string
	send       func(ctx context.Context, m domain.Messenger, to domain.ResolvedRecipient, args map[string]any) (*domain.SendResult, error)
}

func (t *larkTools) passthroughSends() []*funcTool {
	specs := []sendSpec{
		{
			name: "send_text", what: "a text message",
			params:     map[string]Param{"text": {Type: "string", Description: "Message text"}},
			mayBeEmpty: []string{"text"},
			send: func(ctx context.Context, m domain.Messenger, to domain.ResolvedRecipient, args map[string]any) (*domain.SendResult, error) {
				return m.SendText(ctx, to, ArgsString(args, "text"))
			},
		},
		{
			name: "send_image", what: "an uploaded image",
			params: map[string]Param{"image_key": {Type: "string", Description: "Key returned by upload_image"}},
			send: func(ctx context.Context, m domain.Messenger, to domain.ResolvedRecipient, args map[string]any) (*domain.SendResult, error) {
				return m.SendImage(ctx, to, ArgsString(args, "image_key"))
			},
		},
		{
			name: "send_audio", what: "an uploaded opus audio",
			params: map[string]Param{"file_key": {Type: "string", Description: "Key returned by upload_file"}},
			send: func(ctx context.Context, m domain.Messenger, to domain.ResolvedRecipient, args map[string]any) (*domain.SendResult, error) {
				return m.SendAudio(ctx, to, ArgsString(args, "file_key"))
			},
		},
		{
			name: "send_media", what: "an uploaded mp4 video",
			params: map[string]Param{"file_key": {Type: "string", Description: "Key returned by upload_file"}},
			send: func(ctx context.Context, m domain.Messenger, to domain.ResolvedRecipient, args map[string]any) (*domain.SendResult, error) {
				return m.SendMedia(ctx, to, ArgsString(args, "file_key"))
			},
		},
		{
			name: "send_file", what: "an uploaded file",
			params: map[string]Param{"file_key": {Type: "string", Description: "Key returned by upload_file"}},
			send: func(ctx context.Context, m domain.Messenger, to domain.ResolvedRecipient, args map[string]any) (*domain.SendResult, error) {
				return m.SendFile(ctx, to, ArgsString(args, "file_key"))
			},
		},
		{
			name: "send_post", what: "a rich post",
			params: map[string]Param{
				"title": {Type: "string", Description: "Post title"},
				"lines": {Type: "array", Items: "array", Description: "Lines, each a list of content elements"},
			},
			send: func(ctx context.Context, m domain.Messenger, to domain.ResolvedRecipient, args map[string]any) (*domain.SendResult, error) {
				doc, err := parseLines(ArgsString(args, "title"), ArgsSlice(args, "lines"))
				if err != nil {
					return nil, err
				}
				return m.SendPost(ctx, to, doc)
			},
		},
		{
			name: "send_interactive", what: "a message card",
			params: map[string]Param{"interactive": {Type: "object", Description: "Card JSON"}},
			send: func(ctx context.Context, m domain.Messenger, to domain.ResolvedRecipient, args map[string]any) (*domain.SendResult, error) {
				return m.SendInteractive(ctx, to, ArgsString(args, "interactive"))
			},
		},
		{
			name: "send_shared_chat", what: "a group card",
			params: map[string]Param{"shared_chat_id": {Type: "string", Description: "chat_id of the group to share"}},
			send: func(ctx context.Context, m domain.Messenger, to domain.ResolvedRecipient, args map[string]any) (*domain.SendResult, error) {
				return m.SendSharedChat(ctx, to, ArgsString(args, "shared_chat_id"))
			},
		},
		{
			name: "send_shared_user", what: "a user card",
			params: map[string]Param{"shared_user_id": {Type: "string", Description: "open_id of the user to share"}},
			send: func(ctx context.Context, m domain.Messenger, to domain.ResolvedRecipient, args map[string]any) (*domain.SendResult, error) {
				return m.SendSharedUser(ctx, to, ArgsString(args, "shared_user_id"))
			},
		},
	}

	var tools []*funcTool
	for _, s := range specs {
		tools = append(tools,
			t.sendTool(s, "_to_user", "user_open_id", "Recipient open_id", domain.UserRecipient),
			t.sendTool(s, "_to_chat", "chat_id", "Recipient group chat_id", domain.GroupRecipient),
		)
	}
	return tools
}

func (t *larkTools) sendTool(s sendSpec, suffix, idParam, idDesc string, recipient func(string) domain.ResolvedRecipient) *funcTool {
	params := map[string]Param{idParam: {Type: "string", Description: idDesc}}
	required := []string{idParam}
	nonEmpty := []string{idParam}
	for k, v := range s.params {
		params[k] = v
		required = append(required, k)
		if !slices.Contains(s.mayBeEmpty, k) {
			nonEmpty = append(nonEmpty, k)
		}
	}
	target := "a user"
	if suffix == "_to_chat" {
		target = "a group"
	}
	return &funcTool{
		name:        s.name + suffix,
		description: fmt.Sprintf("Send %s to %s by id.", s.what, target),
		parameters:  ToolParameters(params, required),
		run: func(ctx context.Context, args map[string]any) (string, error) {
			if err := RequirePresent(args, s.mayBeEmpty...); err != nil {
				return "", err
			}
			if err := RequireArgs(args, nonEmpty...); err != nil {
				return "", err
			}
			m, reason := t.messenger(ctx)
			if m == nil {
				return errorResult(reason)
			}
			res, err := s.send(ctx, m, recipient(ArgsString(args, idParam)), args)
			if err != nil {
				return errorResult(s.name + " failed: " + err.Error())
			}
			return jsonResult(res)
		},
	}
}

func parseLines(title string, raw []any) (domain.MessageDocument, error) {
	b := content.NewBuilder(title)
	for i, line := range raw {
		items, ok := line.([]any)
		if !ok {
			return domain.MessageDocument{}, fmt.Errorf("line %d: expected a list of elements", i)
		}
		els, err := content.ParseElements(items)
		if err != nil {
			return domain.MessageDocument{}, fmt.Errorf("line %d: %w", i, err)
		}
		for j, el := range els {
			// No group context here to resolve names in.
			if at, ok := el.(domain.AtUser); ok && at.UserID == "" {
				return domain.MessageDocument{}, fmt.Errorf("line %d element %d: at_user needs a user_id", i, j)
			}
		}
		b.AddLine(els...)
	}
	return b.Finalize(), nil
}

func (t *larkTools) media() []*funcTool {
	return []*funcTool{
		{
			name:        "upload_image",
			description: "Upload a local image for use in messages. Returns the image key.",
			parameters: ToolParameters(map[string]Param{
				"image_path": {Type: "string", Description: "Local image path"},
			}, []string{"image_path"}),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				if err := RequireArgs(args, "image_path"); err != nil {
					return "", err
				}
				m, reason := t.messenger(ctx)
				if m == nil {
					return errorResult(reason)
				}
				key, err := m.UploadImage(ctx, ArgsString(args, "image_path"))
				if err != nil {
					return errorResult("upload image failed: " + err.Error())
				}
				return jsonResult(map[string]string{"image_key": key})
			},
		},
		{
			name:        "upload_file",
			description: "Upload a local file for use in messages. file_type is opus, mp4, pdf, doc, xls, ppt or stream.",
			parameters: ToolParameters(map[string]Param{
				"file_path": {Type: "string", Description: "Local file path"},
				"file_type": {Type: "string", Description: "File type, default stream"},
			}, []string{"file_path"}),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				if err := RequireArgs(args, "file_path"); err != nil {
					return "", err
				}
				m, reason := t.messenger(ctx)
				if m == nil {
					return errorResult(reason)
				}
				fileType := ArgsString(args, "file_type")
				if fileType == "" {
					fileType = "stream"
				}
				key, err := m.UploadFile(ctx, ArgsString(args, "file_path"), fileType)
				if err != nil {
					return errorResult("upload file failed: " + err.Error())
				}
				return jsonResult(map[string]string{"file_key": key})
			},
		},
		{
			name:        "download_image",
			description: "Download an image by key to a local path.",
			parameters: ToolParameters(map[string]Param{
				"image_key":       {Type: "string", Description: "Image key"},
				"image_save_path": {Type: "string", Description: "Destination path"},
			}, []string{"image_key", "image_save_path"}),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				if err := RequireArgs(args, "image_key", "image_save_path"); err != nil {
					return "", err
				}
				m, reason := t.messenger(ctx)
				if m == nil {
					return errorResult(reason)
				}
				dest := ArgsString(args, "image_save_path")
				if err := m.DownloadImage(ctx, ArgsString(args, "image_key"), dest); err != nil {
					return errorResult("download image failed: " + err.Error())
				}
				return jsonResult(map[string]string{"path": dest})
			},
		},
		{
			name:        "download_file",
			description: "Download a file by key to a local path.",
			parameters: ToolParameters(map[string]Param{
				"file_key":       {Type: "string", Description: "File key"},
				"file_save_path": {Type: "string", Description: "Destination path"},
			}, []string{"file_key", "file_save_path"}),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				if err := RequireArgs(args, "file_key", "file_save_path"); err != nil {
					return "", err
				}
				m, reason := t.messenger(ctx)
				if m == nil {
					return errorResult(reason)
				}
				dest := ArgsString(args, "file_save_path")
				if err := m.DownloadFile(ctx, ArgsString(args, "file_key"), dest); err != nil {
					return errorResult("download file failed: " + err.Error())
				}
				return jsonResult(map[string]string{"path": dest})
			},
		},
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
