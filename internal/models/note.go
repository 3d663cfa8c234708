// Package models defines the domain types for iris.
package models

import "time"

// NoteMetadata is a lightweight representation returned by vault listings.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileRef is a resolved vault note, as returned by link resolution.
type FileRef struct {
	Path         string `json:"path"`
	Basename     string `json:"basename"`
	FirstHeading string `json:"first_heading,omitempty"`
}

// Excerpt returns the short description used for related links: the first
// heading of the note, or its basename when it has none.
func (f FileRef) Excerpt() string {
	if f.FirstHeading != "" {
		return f.FirstHeading
	}
	return f.Basename
}
