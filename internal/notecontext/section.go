package notecontext

import (
	"strings"

	"github.com/starford/iris/internal/parser"
)

// Section is the heading section enclosing an offset.
type Section struct {
	Path  []string
	Title string
	Text  string
}

// SectionAt returns the section enclosing byte offset anchor in text. The
// heading path is a left fold over the headings at or before anchor: each
// heading pops the entries at its level or deeper, then is pushed. The
// text of the innermost heading runs to the next heading of the same or a
// higher level and is truncated to limit characters (limit <= 0: no cap).
func SectionAt(text string, anchor, limit int) Section {
	headings := parser.Headings(text)

	var stack []parser.Heading
	active := -1
	for i, h := range headings {
		if h.Offset > anchor {
			break
		}
		stack = foldHeading(stack, h)
		active = i
	}
	if active < 0 {
		return Section{}
	}

	cur := headings[active]
	end := len(text)
	for _, h := range headings[active+1:] {
		if h.Level <= cur.Level {
			end = h.Offset
			break
		}
	}
	body := strings.TrimSpace(text[cur.End:end])
	if limit > 0 {
		body = truncateRunes(body, limit)
	}

	path := make([]string, len(stack))
	for i, h := range stack {
		path[i] = h.Title
	}
	return Section{Path: path, Title: cur.Title, Text: body}
}

func foldHeading(stack []parser.Heading, h parser.Heading) []parser.Heading {
	for len(stack) > 0 && stack[len(stack)-1].Level >= h.Level {
		stack = stack[:len(stack)-1]
	}
	return append(stack, h)
}
