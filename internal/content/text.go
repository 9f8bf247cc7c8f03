// Package content builds Lark message bodies: inline-formatted text and structured posts.
package content

import "strings"

// Mention id kinds accepted by AtSomeone.
const (
	IDKindOpenID = "open_id"
	IDKindUserID = "user_id"
	IDKindEmail  = "email"
)

func Bold(s string) string      { return "<b>" + s + "</b>" }
func Italic(s string) string    { return "<i>" + s + "</i>" }
func Underline(s string) string { return "<u>" + s + "</u>" }
func Strike(s string) string    { return "<s>" + s + "</s>" }

// URL renders a hyperlink. An empty text shows the url itself.
func URL(url, text string) string {
	if text == "" {
		text = url
	}
	return "[" + text + "](" + url + ")"
}

// AtAll renders a mention of everyone in the chat.
func AtAll() string { return `<at user_id="all"></at>` }

// AtSomeone renders a mention of one user. Email ids use the email attribute;
// open ids and user ids both go in user_id.
func AtSomeone(id, name, idKind string) string {
	attr := "user_id"
	if idKind == IDKindEmail {
		attr = "email"
	}
	return "<at " + attr + `="` + escapeAttr(id) + `">` + name + "</at>"
}

func escapeAttr(s string) string {
	return strings.ReplaceAll(s, `"`, "&quot;")
}

// ApplyStyles wraps s in the given styles, innermost first.
func ApplyStyles(s string, bold, italic, underline, strike bool) string {
	if bold {
		s = Bold(s)
	}
	if italic {
		s = Italic(s)
	}
	if underline {
		s = Underline(s)
	}
	if strike {
		s = Strike(s)
	}
	return s
}

// JoinMentions concatenates mention patterns, each followed by a single space.
func JoinMentions(patterns []string) string {
	var b strings.Builder
	for _, p := range patterns {
		b.WriteString(p)
		b.WriteByte(' ')
	}
	return b.String()
}
