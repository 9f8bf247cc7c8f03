package content

import (
	"fmt"

	"larkmcp/internal/domain"
)

// ParseElements decodes loosely typed element records such as
// {"type": "text", "content": "hi", "bold": true}. Unknown types are rejected.
func ParseElements(raw []any) ([]domain.ContentElement, error) {
	els := make([]domain.ContentElement, 0, len(raw))
	for i, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("element %d: expected an object, got %T", i, r)
		}
		el, err := ParseElement(m)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		els = append(els, el)
	}
	return els, nil
}

func ParseElement(m map[string]any) (domain.ContentElement, error) {
	typ := str(m, "type")
	switch typ {
	case "text":
		return domain.Text{Content: str(m, "content", "text"), Styles: ParseStyles(m)}, nil
	case "at_user":
		name := str(m, "name", "user_name")
		id := str(m, "user_id", "open_id")
		if name == "" && id == "" {
			return nil, fmt.Errorf("at_user needs a name or user_id")
		}
		return domain.AtUser{UserID: id, Name: name, Styles: ParseStyles(m)}, nil
	case "at_all":
		return domain.AtAll{}, nil
	case "link":
		url := str(m, "url", "href")
		if url == "" {
			return nil, fmt.Errorf("link needs a url")
		}
		return domain.Link{Text: str(m, "text"), URL: url}, nil
	case "markdown":
		return domain.Markdown{Content: str(m, "content", "text")}, nil
	case "divider":
		return domain.Divider{}, nil
	case "code_block":
		return domain.CodeBlock{Language: str(m, "language"), Code: str(m, "code", "text")}, nil
	case "emoji":
		name := str(m, "name", "emoji", "emoji_type")
		if name == "" {
			return nil, fmt.Errorf("emoji needs a name")
		}
		return domain.Emoji{Name: name}, nil
	case "":
		return nil, fmt.Errorf("element has no type")
	default:
		return nil, fmt.Errorf("unknown element type %q", typ)
	}
}

// ParseStyles reads boolean style flags and an optional "styles" list, in a fixed order
// without duplicates.
func ParseStyles(m map[string]any) []domain.Style {
	seen := map[domain.Style]bool{}
	if list, ok := m["styles"].([]any); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				if st, ok := styleNames[s]; ok {
					seen[st] = true
				}
			}
		}
	}
	for key, st := range styleNames {
		if b, ok := m[key].(bool); ok && b {
			seen[st] = true
		}
	}
	var out []domain.Style
	for _, st := range styleOrder {
		if seen[st] {
			out = append(out, st)
		}
	}
	return out
}

var styleOrder = []domain.Style{domain.StyleBold, domain.StyleItalic, domain.StyleUnderline, domain.StyleLineThrough}

var styleNames = map[string]domain.Style{
	"bold":        domain.StyleBold,
	"italic":      domain.StyleItalic,
	"underline":   domain.StyleUnderline,
	"strike":      domain.StyleLineThrough,
	"lineThrough": domain.StyleLineThrough,
}

func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
