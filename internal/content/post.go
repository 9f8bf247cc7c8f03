package content

import "larkmcp/internal/domain"

// Builder assembles a MessageDocument line by line. Not safe for concurrent use.
type Builder struct {
	title string
	lines [][]domain.ContentElement
}

func NewBuilder(title string) *Builder {
	return &Builder{title: title}
}

// AddLine starts a new line holding els.
func (b *Builder) AddLine(els ...domain.ContentElement) *Builder {
	line := make([]domain.ContentElement, 0, len(els))
	b.lines = append(b.lines, append(line, els...))
	return b
}

// AddInline appends els to the current line, creating the first line if there is none.
func (b *Builder) AddInline(els ...domain.ContentElement) *Builder {
	if len(b.lines) == 0 {
		return b.AddLine(els...)
	}
	last := len(b.lines) - 1
	b.lines[last] = append(b.lines[last], els...)
	return b
}

// Len returns the number of lines so far.
func (b *Builder) Len() int { return len(b.lines) }

// Finalize returns the document. The builder can keep being used; later edits
// do not affect the returned document.
func (b *Builder) Finalize() domain.MessageDocument {
	lines := make([][]domain.ContentElement, len(b.lines))
	for i, line := range b.lines {
		lines[i] = append([]domain.ContentElement(nil), line...)
	}
	return domain.MessageDocument{Title: b.title, Lines: lines}
}
