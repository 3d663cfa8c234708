package notecontext

import (
	"log/slog"
	"strings"

	"github.com/starford/iris/internal/parser"
)

// metadata merges the inline tags and frontmatter tags of the note and
// returns them with the frontmatter. Failed lookups yield empty values.
func (e *Extractor) metadata(notePath string) ([]string, map[string]any) {
	if e.meta == nil {
		return nil, nil
	}

	var tags []string
	seen := make(map[string]struct{})
	add := func(t string) {
		t = strings.TrimPrefix(strings.TrimSpace(t), "#")
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}

	inline, err := e.meta.Tags(notePath)
	if err != nil {
		e.logger.Debug("note tags unavailable", slog.String("note", notePath), slog.String("error", err.Error()))
	}
	for _, t := range inline {
		add(t)
	}

	fm, err := e.meta.Frontmatter(notePath)
	if err != nil {
		e.logger.Debug("note frontmatter unavailable", slog.String("note", notePath), slog.String("error", err.Error()))
		fm = nil
	}
	for _, t := range parser.FrontmatterTags(fm) {
		add(t)
	}
	return tags, fm
}
