// Package imageref finds image references inside Markdown notes and derives
// the identity of the image they point at.
package imageref

import (
	"regexp"
	"strings"
)

// Match is the span of an image reference inside a document, in bytes.
type Match struct {
	Index  int `json:"index"`
	Length int `json:"length"`
}

// End returns the offset just after the match.
func (m Match) End() int { return m.Index + m.Length }

// Locate returns the first embed of the image identified by path or rawRef
// in text. Three syntaxes are recognised, case-insensitively: ![[target]],
// ![alt](target) and <img src="target">. A miss is reported with ok=false;
// the image may simply have been edited out of the note.
func Locate(text, path, rawRef string) (Match, bool) {
	re := locateRegexp(path, rawRef)
	if re == nil {
		return Match{}, false
	}
	loc := re.FindStringIndex(text)
	if loc == nil {
		return Match{}, false
	}
	return Match{Index: loc[0], Length: loc[1] - loc[0]}, true
}

// locateRegexp builds the alternation for the given identifying strings, or
// nil when none is usable.
func locateRegexp(targets ...string) *regexp.Regexp {
	seen := make(map[string]struct{}, len(targets)*2)
	var alts []string
	add := func(s string) {
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		alts = append(alts, regexp.QuoteMeta(s))
	}
	for _, t := range targets {
		t = strings.TrimSpace(t)
		add(t)
		// Markdown links usually carry spaces percent-encoded.
		if strings.Contains(t, " ") {
			add(strings.ReplaceAll(t, " ", "%20"))
		}
	}
	if len(alts) == 0 {
		return nil
	}

	target := "(?:" + strings.Join(alts, "|") + ")"
	pattern := `(?i)` +
		`!\[\[` + target + `(?:[|#][^\]]*)?\]\]` +
		`|!\[[^\]]*\]\(\s*<?` + target + `>?(?:\s+["'][^"']*["'])?\s*\)` +
		`|<img\b[^>]*?\bsrc\s*=\s*["']` + target + `["'][^>]*>`
	return regexp.MustCompile(pattern)
}
