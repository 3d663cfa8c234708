package imageref

import (
	"path"
	"regexp"
	"strings"
)

// Syntax is the embed form an image reference was written in.
type Syntax string

const (
	SyntaxWikiEmbed Syntax = "wiki"
	SyntaxMarkdown  Syntax = "markdown"
	SyntaxHTML      Syntax = "html"
)

var scanRe = regexp.MustCompile(`(?i)` +
	`!\[\[([^\]|#]+)(?:[|#][^\]]*)?\]\]` +
	`|!\[[^\]]*\]\(\s*(?:<([^>]+)>|([^)\s]+))(?:\s+["'][^"']*["'])?\s*\)` +
	`|<img\b[^>]*?\bsrc\s*=\s*["']([^"']+)["'][^>]*>`)

// Reference is an image embed found in a document.
type Reference struct {
	Token  string `json:"token"`
	Target string `json:"target"`
	Syntax Syntax `json:"syntax"`
	Match
}

// External reports whether the reference points outside the vault.
func (r Reference) External() bool { return isExternal(r.Target) }

// Scan lists the image embeds of text in document order. Wiki embeds are
// only reported when the target has an image extension, since ![[note]]
// transcludes a note rather than an image.
func Scan(text string) []Reference {
	var out []Reference
	for _, loc := range scanRe.FindAllStringSubmatchIndex(text, -1) {
		ref := Reference{
			Token: text[loc[0]:loc[1]],
			Match: Match{Index: loc[0], Length: loc[1] - loc[0]},
		}
		switch {
		case loc[2] >= 0:
			ref.Syntax = SyntaxWikiEmbed
			ref.Target = strings.TrimSpace(text[loc[2]:loc[3]])
			if !IsImagePath(ref.Target) {
				continue
			}
		case loc[4] >= 0:
			ref.Syntax = SyntaxMarkdown
			ref.Target = strings.TrimSpace(text[loc[4]:loc[5]])
		case loc[6] >= 0:
			ref.Syntax = SyntaxMarkdown
			ref.Target = text[loc[6]:loc[7]]
		default:
			ref.Syntax = SyntaxHTML
			ref.Target = strings.TrimSpace(text[loc[8]:loc[9]])
		}
		if ref.Target == "" {
			continue
		}
		out = append(out, ref)
	}
	return out
}

// IsImagePath reports whether p ends in a known image extension.
func IsImagePath(p string) bool {
	_, ok := extToMime[strings.ToLower(path.Ext(p))]
	return ok
}
