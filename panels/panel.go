package panels

import (
	"context"
	"errors"
	"fmt"
)

// Palette Header accents assigned to new panels. Cosmetic only.
var Palette = []string{
	"blue",
	"emerald",
	"amber",
	"rose",
	"violet",
	"cyan",
}

// Panel One note box anchored to an image
type Panel struct {
	ID       string `json:"id"`
	NoteID   string `json:"note_id,omitempty"`
	ImageKey string `json:"image_key"`
	Content  string `json:"content"`
	Position Point  `json:"position"`
	Size     Size   `json:"size"`
	Color    string `json:"color,omitempty"`
}

// Note The persisted shape of a panel
type Note struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Position *Point `json:"position,omitempty"`
	Size     *Size  `json:"size,omitempty"`
}

// Adapter Durable storage for note records.
// Implementations must treat Update and UpdatePosition as field merges keyed by
// note id so that repeated or reordered calls converge.
type Adapter interface {
	Create(ctx context.Context, imageKey string, content string, displayOrder int) (string, error)
	Update(ctx context.Context, noteID string, content string) error
	UpdatePosition(ctx context.Context, noteID string, position Point, size Size) error
	Delete(ctx context.Context, noteID string) error
	ListByImage(ctx context.Context, imageKey string) ([]Note, error)
}

// ErrUnknownPanel No panel with the requested id exists in the collection
var ErrUnknownPanel = errors.New("unknown panel")

// StorageError A failed Adapter call
type StorageError struct {
	Op     string
	NoteID string
	Err    error
}

func (e *StorageError) Error() string {
	if e.NoteID == "" {
		return fmt.Sprintf("storage %s: %s", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %s", e.Op, e.NoteID, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
