package content

import (
	"encoding/json"
	"fmt"

	"larkmcp/internal/domain"
)

// DefaultLocale is the post locale used when none is configured.
const DefaultLocale = "zh_cn"

// Fragment is one element as it appears in the platform's post JSON.
type Fragment map[string]any

// ToFragment maps a content element to its post fragment. A mention without a user id
// renders as plain "@name" text; a nil element renders as empty text.
func ToFragment(el domain.ContentElement) Fragment {
	switch e := el.(type) {
	case domain.Text:
		return withStyles(Fragment{"tag": "text", "text": e.Content}, e.Styles)
	case domain.AtUser:
		if e.UserID == "" {
			return withStyles(Fragment{"tag": "text", "text": "@" + e.Name}, e.Styles)
		}
		return withStyles(Fragment{"tag": "at", "user_id": e.UserID}, e.Styles)
	case domain.AtAll:
		return Fragment{"tag": "at", "user_id": "all"}
	case domain.Link:
		return Fragment{"tag": "a", "text": e.Text, "href": e.URL}
	case domain.Markdown:
		return Fragment{"tag": "md", "text": e.Content}
	case domain.Divider:
		return Fragment{"tag": "hr"}
	case domain.CodeBlock:
		return Fragment{"tag": "code_block", "language": e.Language, "text": e.Code}
	case domain.Emoji:
		return Fragment{"tag": "emotion", "emoji_type": e.Name}
	default:
		return Fragment{"tag": "text", "text": ""}
	}
}

func withStyles(f Fragment, styles []domain.Style) Fragment {
	if len(styles) == 0 {
		return f
	}
	out := make([]string, len(styles))
	for i, s := range styles {
		out[i] = string(s)
	}
	f["style"] = out
	return f
}

// PostBody is the locale-keyed post payload.
type PostBody map[string]PostLocale

type PostLocale struct {
	Title   string       `json:"title"`
	Content [][]Fragment `json:"content"`
}

// BuildPost converts a document into the post payload for a locale.
func BuildPost(doc domain.MessageDocument, locale string) PostBody {
	if locale == "" {
		locale = DefaultLocale
	}
	lines := make([][]Fragment, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		frags := make([]Fragment, 0, len(line))
		for _, el := range line {
			frags = append(frags, ToFragment(el))
		}
		lines = append(lines, frags)
	}
	return PostBody{locale: {Title: doc.Title, Content: lines}}
}

// RenderPost returns the JSON content string for a post message.
func RenderPost(doc domain.MessageDocument, locale string) (string, error) {
	data, err := json.Marshal(BuildPost(doc, locale))
	if err != nil {
		return "", fmt.Errorf("marshal post: %w", err)
	}
	return string(data), nil
}

// RenderText returns the JSON content string for a text message.
func RenderText(text string) (string, error) {
	data, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("marshal text: %w", err)
	}
	return string(data), nil
}
