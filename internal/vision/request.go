package vision

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/iris/internal/apperr"
	"github.com/starford/iris/internal/models"
)

// Request names an image embedded in a note and the analysis wanted for it.
type Request struct {
	// Note is the vault path of the note that embeds the image.
	Note string `json:"note"`
	// Image is the reference target as written in the note.
	Image       string        `json:"image"`
	Action      models.Action `json:"action"`
	Instruction string        `json:"instruction,omitempty"`
	// NoContext derives the key from the image and action only.
	NoContext bool `json:"no_context,omitempty"`
}

// Validate checks the request; failures wrap apperr.ErrInvalidInput.
func (r Request) Validate() error {
	actions := make([]any, len(models.Actions))
	for i, a := range models.Actions {
		actions[i] = a
	}
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Note, validation.Required),
		validation.Field(&r.Image, validation.Required),
		validation.Field(&r.Action, validation.Required, validation.In(actions...)),
		validation.Field(&r.Instruction,
			validation.When(r.Action == models.ActionCustom, validation.Required),
			validation.Length(0, 4000)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	return nil
}
