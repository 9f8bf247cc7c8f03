package domain

// Style is an inline text decoration.
type Style string

const (
	StyleBold        Style = "bold"
	StyleItalic      Style = "italic"
	StyleUnderline   Style = "underline"
	StyleLineThrough Style = "lineThrough"
)

// ContentElement is one inline piece of a rich message. The set of variants is closed.
type ContentElement interface {
	elementType() string
}

// ElementType returns the tag of a content element ("text", "at_user", ...).
func ElementType(el ContentElement) string { return el.elementType() }

type Text struct {
	Content string
	Styles  []Style
}

// AtUser mentions one member. UserID is the open id; Name is what the caller supplied.
type AtUser struct {
	UserID string
	Name   string
	Styles []Style
}

type AtAll struct{}

type Link struct {
	Text string
	URL  string
}

type Markdown struct {
	Content string
}

type Divider struct{}

type CodeBlock struct {
	Language string
	Code     string
}

type Emoji struct {
	Name string
}

func (Text) elementType() string      { return "text" }
func (AtUser) elementType() string    { return "at_user" }
func (AtAll) elementType() string     { return "at_all" }
func (Link) elementType() string      { return "link" }
func (Markdown) elementType() string  { return "markdown" }
func (Divider) elementType() string   { return "divider" }
func (CodeBlock) elementType() string { return "code_block" }
func (Emoji) elementType() string     { return "emoji" }

// MessageDocument is a titled sequence of lines, each an ordered run of elements.
type MessageDocument struct {
	Title string
	Lines [][]ContentElement
}

// ElementCount returns the number of elements across all lines.
func (d MessageDocument) ElementCount() int {
	n := 0
	for _, line := range d.Lines {
		n += len(line)
	}
	return n
}
