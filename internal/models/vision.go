package models

import "time"

// Action is the kind of analysis requested for an image.
type Action string

// Supported actions. Action names never contain '-' because it separates
// the fields of a cache key.
const (
	ActionDescribe Action = "describe"
	ActionOCR      Action = "ocr"
	ActionAltText  Action = "alttext"
	ActionCustom   Action = "custom"
)

// Actions lists every supported action.
var Actions = []Action{ActionDescribe, ActionOCR, ActionAltText, ActionCustom}

// Valid reports whether a is a supported action.
func (a Action) Valid() bool {
	for _, v := range Actions {
		if a == v {
			return true
		}
	}
	return false
}

// ImageIdentity identifies the subject of an analysis.
type ImageIdentity struct {
	// Path is the vault-relative path, or the URL for external images.
	Path string `json:"path"`
	// RawRef is the reference target exactly as written in the note.
	RawRef   string `json:"raw_ref"`
	External bool   `json:"external"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
}

// RelatedLink is a wikilink found near an image and resolved to a note.
type RelatedLink struct {
	LinkText string `json:"link_text"`
	Path     string `json:"path"`
	Title    string `json:"title"`
	Excerpt  string `json:"excerpt"`
}

// NoteContext is a snapshot of the structure surrounding an image
// reference inside a note.
type NoteContext struct {
	NotePath     string         `json:"note_path"`
	NoteName     string         `json:"note_name"`
	TextBefore   string         `json:"text_before"`
	TextAfter    string         `json:"text_after"`
	MatchIndex   *int           `json:"match_index,omitempty"`
	MatchLength  *int           `json:"match_length,omitempty"`
	SectionPath  []string       `json:"section_path"`
	SectionTitle string         `json:"section_title"`
	SectionText  string         `json:"section_text"`
	RelatedLinks []RelatedLink  `json:"related_links"`
	Tags         []string       `json:"tags"`
	Frontmatter  map[string]any `json:"frontmatter,omitempty"`
}

// Located reports whether the image reference was found in the note text.
func (c *NoteContext) Located() bool {
	return c.MatchIndex != nil
}

// AnalysisResult is the output of an image analysis.
type AnalysisResult struct {
	Content   string `json:"content"`
	ModelUsed string `json:"model_used"`
	Tokens    int    `json:"tokens"`
}

// CacheEntry is a cached analysis result.
type CacheEntry struct {
	Result    AnalysisResult `json:"result"`
	CreatedAt time.Time      `json:"created_at"`
	Action    Action         `json:"action"`
	ImageHash string         `json:"image_hash"`
}
