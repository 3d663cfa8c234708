package parser

import (
	"regexp"
	"strings"
)

var (
	atxHeadingRe  = regexp.MustCompile(`^ {0,3}(#{1,6})[ \t]+(.+?)[ \t]*$`)
	closingHashRe = regexp.MustCompile(`(?:^|[ \t]+)#+$`)
)

// Heading is an ATX heading line located in a document.
type Heading struct {
	Level int
	Title string
	// Offset is the byte offset of the start of the heading line.
	Offset int
	// End is the byte offset just after the heading line, newline included.
	End int
}

// Headings scans text for ATX headings in document order. Lines inside a
// leading frontmatter block or a fenced code block are ignored.
func Headings(text string) []Heading {
	var out []Heading
	var fence string

	pos := FrontmatterEnd(text)
	for pos < len(text) {
		lineEnd := strings.IndexByte(text[pos:], '\n')
		next := len(text)
		if lineEnd >= 0 {
			next = pos + lineEnd + 1
			lineEnd = pos + lineEnd
		} else {
			lineEnd = len(text)
		}
		line := strings.TrimSuffix(text[pos:lineEnd], "\r")

		if marker := fenceMarker(line); marker != "" {
			switch {
			case fence == "":
				fence = marker
			case marker[0] == fence[0] && len(marker) >= len(fence):
				fence = ""
			}
		} else if fence == "" {
			if m := atxHeadingRe.FindStringSubmatch(line); m != nil {
				title := strings.TrimSpace(closingHashRe.ReplaceAllString(m[2], ""))
				if title != "" {
					out = append(out, Heading{
						Level:  len(m[1]),
						Title:  title,
						Offset: pos,
						End:    next,
					})
				}
			}
		}
		pos = next
	}
	return out
}

// fenceMarker returns the opening run of a code fence line (``` or ~~~),
// or "" when line is not a fence.
func fenceMarker(line string) string {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 || len(trimmed) < 3 {
		return ""
	}
	c := trimmed[0]
	if c != '`' && c != '~' {
		return ""
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == c {
		n++
	}
	if n < 3 {
		return ""
	}
	return trimmed[:n]
}

// FrontmatterEnd returns the byte offset just after a leading YAML
// frontmatter block, or 0 when text has none.
func FrontmatterEnd(text string) int {
	start := len(text) - len(strings.TrimLeft(text, "\n\r"))
	if !strings.HasPrefix(text[start:], "---") {
		return 0
	}
	firstNL := strings.IndexByte(text[start:], '\n')
	if firstNL < 0 || strings.TrimSpace(text[start:start+firstNL]) != "---" {
		return 0
	}
	pos := start + firstNL + 1
	for pos < len(text) {
		nl := strings.IndexByte(text[pos:], '\n')
		end := len(text)
		next := len(text)
		if nl >= 0 {
			end = pos + nl
			next = end + 1
		}
		if strings.TrimSpace(text[pos:end]) == "---" {
			return next
		}
		pos = next
	}
	return 0
}
