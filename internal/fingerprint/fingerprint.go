// Package fingerprint derives deterministic cache keys for image analysis
// requests.
//
// Keys have the form imageHash-action[-contextHash][-promptHash], where
// every hash is a 32-bit polynomial string hash rendered in decimal. The
// hash is not collision resistant; a collision only produces a spurious
// cache hit or miss because reads and writes derive keys the same way.
package fingerprint

import (
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/starford/iris/internal/models"
)

const (
	contextTextLimit = 200
	promptLimit      = 500
)

// Hash returns the absolute value of the 32-bit rolling hash h = h*31 + c
// over the UTF-16 code units of s, in decimal.
func Hash(s string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 10)
}

// ImageHash hashes the identifying fields of an image.
func ImageHash(img models.ImageIdentity) string {
	return Hash(img.Path + img.Filename + img.MimeType)
}

// ContextHash hashes the note name and the first characters of the text
// around the image.
func ContextHash(nc *models.NoteContext) string {
	return Hash(nc.NoteName + prefix(nc.TextBefore, contextTextLimit) + prefix(nc.TextAfter, contextTextLimit))
}

// PromptHash hashes the first characters of a free-form instruction.
func PromptHash(instruction string) string {
	return Hash(prefix(instruction, promptLimit))
}

// Build returns the cache key of an analysis request. nc may be nil, in
// which case the key does not depend on note context. instruction only
// contributes for models.ActionCustom.
func Build(img models.ImageIdentity, action models.Action, nc *models.NoteContext, instruction string) string {
	parts := []string{ImageHash(img), string(action)}
	if nc != nil {
		parts = append(parts, ContextHash(nc))
	}
	if action == models.ActionCustom {
		parts = append(parts, PromptHash(instruction))
	}
	return strings.Join(parts, "-")
}

// Parse recovers the image hash and action from a key built by Build.
func Parse(key string) (imageHash string, action models.Action, ok bool) {
	parts := strings.Split(key, "-")
	if len(parts) < 2 {
		return "", "", false
	}
	if _, err := strconv.ParseUint(parts[0], 10, 64); err != nil {
		return "", "", false
	}
	action = models.Action(parts[1])
	if !action.Valid() {
		return "", "", false
	}
	return parts[0], action, true
}

// prefix returns the first n runes of s.
func prefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
