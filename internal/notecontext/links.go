package notecontext

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/starford/iris/internal/models"
	"github.com/starford/iris/internal/parser"
)

var wikilinkRe = regexp.MustCompile(`(!?)\[\[([^\[\]]+?)\]\]`)

// relatedLinks resolves the wikilinks lying entirely within linkWindow
// characters of the span [start, end). Embeds are skipped.
func (e *Extractor) relatedLinks(doc Document, start, end int) []models.RelatedLink {
	if e.resolver == nil {
		return nil
	}
	from := runesBack(doc.Text, start, e.linkWindow)
	to := runesForward(doc.Text, end, e.linkWindow)
	window := doc.Text[from:to]

	var out []models.RelatedLink
	for _, m := range wikilinkRe.FindAllStringSubmatch(window, -1) {
		if m[1] == "!" {
			continue
		}
		inner := m[2]
		display := inner
		if i := strings.Index(inner, "|"); i >= 0 {
			display = inner[:i]
			if alias := strings.TrimSpace(inner[i+1:]); alias != "" {
				display = alias
			}
		}
		display = strings.TrimSpace(display)

		label := parser.LinkTarget(inner)
		if label == "" {
			continue
		}
		ref, err := e.resolver.Resolve(label, doc.Path)
		if err != nil {
			e.logger.Debug("related link dropped",
				slog.String("note", doc.Path),
				slog.String("label", label),
				slog.String("error", err.Error()))
			continue
		}
		if ref == nil {
			continue
		}
		out = append(out, models.RelatedLink{
			LinkText: display,
			Path:     ref.Path,
			Title:    ref.Basename,
			Excerpt:  ref.Excerpt(),
		})
	}
	return out
}

// runesBack moves n runes left of byte offset from in s.
func runesBack(s string, from, n int) int {
	i := from
	for ; n > 0 && i > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return i
}

// runesForward moves n runes right of byte offset from in s.
func runesForward(s string, from, n int) int {
	i := from
	for ; n > 0 && i < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return i
}

// truncateRunes returns the first n runes of s.
func truncateRunes(s string, n int) string {
	return s[:runesForward(s, 0, n)]
}
