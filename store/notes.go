package store

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	uuid "github.com/twinj/uuid"
	"gorm.io/gorm"

	"notescope/models"
	"notescope/panels"
)

// ErrNotFound No note with the given id
var ErrNotFound = errors.New("note not found")

// NoteStore Keeps screenshot notes in a relational database
type NoteStore struct {
	db *gorm.DB
}

var _ panels.Adapter = (*NoteStore)(nil)

// NewNoteStore Wrap an opened and migrated database
func NewNoteStore(db *gorm.DB) *NoteStore {
	return &NoteStore{db: db}
}

// CreateNoteInput Everything a new note may carry
type CreateNoteInput struct {
	HandNoteID     string
	ImageKey       string
	Content        string
	ScreenshotType string
	DisplayOrder   int
	Position       *panels.Point
	Size           *panels.Size
}

func wrap(op string, noteID string, err error) error {
	if err == nil {
		return nil
	}
	return &panels.StorageError{Op: op, NoteID: noteID, Err: err}
}

// CreateNote Insert a note and return the stored row
func (s *NoteStore) CreateNote(ctx context.Context, in CreateNoteInput) (*models.ScreenshotNote, error) {
	screenshotType := in.ScreenshotType
	if screenshotType == "" {
		screenshotType = "hand"
	}
	note := models.ScreenshotNote{
		ID:             uuid.NewV4().String(),
		HandNoteID:     in.HandNoteID,
		ScreenshotURL:  in.ImageKey,
		Note:           in.Content,
		ScreenshotType: screenshotType,
		DisplayOrder:   in.DisplayOrder,
	}
	if in.Position != nil {
		note.PanelX, note.PanelY = &in.Position.X, &in.Position.Y
	}
	if in.Size != nil {
		note.PanelWidth, note.PanelHeight = &in.Size.Width, &in.Size.Height
	}
	if err := s.db.WithContext(ctx).Create(&note).Error; err != nil {
		return nil, wrap("create", "", err)
	}
	log.Debug(fmt.Sprintf("Created note %s for %s", note.ID, note.ScreenshotURL))
	return &note, nil
}

// GetNote Load one note
func (s *NoteStore) GetNote(ctx context.Context, noteID string) (*models.ScreenshotNote, error) {
	var note models.ScreenshotNote
	err := s.db.WithContext(ctx).First(&note, "id = ?", noteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, wrap("get", noteID, ErrNotFound)
	}
	if err != nil {
		return nil, wrap("get", noteID, err)
	}
	return &note, nil
}

// Create Insert a note without geometry
func (s *NoteStore) Create(ctx context.Context, imageKey string, content string, displayOrder int) (string, error) {
	note, err := s.CreateNote(ctx, CreateNoteInput{ImageKey: imageKey, Content: content, DisplayOrder: displayOrder})
	if err != nil {
		return "", err
	}
	return note.ID, nil
}

// Update Replace the text of a note. Only the note column is written.
func (s *NoteStore) Update(ctx context.Context, noteID string, content string) error {
	return s.updateColumns(ctx, "update", noteID, map[string]interface{}{"note": content})
}

// UpdatePosition Replace the panel geometry of a note. The text is left alone.
func (s *NoteStore) UpdatePosition(ctx context.Context, noteID string, position panels.Point, size panels.Size) error {
	return s.updateColumns(ctx, "update position", noteID, map[string]interface{}{
		"panel_x":      position.X,
		"panel_y":      position.Y,
		"panel_width":  size.Width,
		"panel_height": size.Height,
	})
}

func (s *NoteStore) updateColumns(ctx context.Context, op string, noteID string, columns map[string]interface{}) error {
	result := s.db.WithContext(ctx).Model(&models.ScreenshotNote{}).Where("id = ?", noteID).Updates(columns)
	if result.Error != nil {
		return wrap(op, noteID, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrap(op, noteID, ErrNotFound)
	}
	return nil
}

// Delete Remove a note. Deleting a missing note is not an error.
func (s *NoteStore) Delete(ctx context.Context, noteID string) error {
	err := s.db.WithContext(ctx).Delete(&models.ScreenshotNote{}, "id = ?", noteID).Error
	return wrap("delete", noteID, err)
}

// ListNotes The stored rows for an image in display order
func (s *NoteStore) ListNotes(ctx context.Context, imageKey string) ([]models.ScreenshotNote, error) {
	var notes []models.ScreenshotNote
	err := s.db.WithContext(ctx).
		Where("screenshot_url = ?", imageKey).
		Order("display_order, created_at").
		Find(&notes).Error
	if err != nil {
		return nil, wrap("list", "", err)
	}
	return notes, nil
}

// ListByHandNote The stored rows of every screenshot of a hand
func (s *NoteStore) ListByHandNote(ctx context.Context, handNoteID string) ([]models.ScreenshotNote, error) {
	var notes []models.ScreenshotNote
	err := s.db.WithContext(ctx).
		Where("hand_note_id = ?", handNoteID).
		Order("display_order, created_at").
		Find(&notes).Error
	if err != nil {
		return nil, wrap("list", "", err)
	}
	return notes, nil
}

// ListByImage The notes of an image as panels see them. Images that only have a
// legacy combined note get it back as a single note without geometry.
func (s *NoteStore) ListByImage(ctx context.Context, imageKey string) ([]panels.Note, error) {
	rows, err := s.ListNotes(ctx, imageKey)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		notes := make([]panels.Note, len(rows))
		for i := range rows {
			notes[i] = ToPanelNote(&rows[i])
		}
		return notes, nil
	}

	var legacy models.LegacyScreenshotNote
	err = s.db.WithContext(ctx).
		Where("screenshot_url = ? AND migrated = ? AND note <> ''", imageKey, false).
		Limit(1).
		Find(&legacy).Error
	if err != nil {
		return nil, wrap("list", "", err)
	}
	if legacy.ID == 0 {
		return nil, nil
	}
	// No id: the panel gets a fresh one and is created on its first edit.
	return []panels.Note{{Content: legacy.Note}}, nil
}

// ToPanelNote Map a stored row to the panel note shape
func ToPanelNote(row *models.ScreenshotNote) panels.Note {
	note := panels.Note{ID: row.ID, Content: row.Note}
	if row.PanelX != nil && row.PanelY != nil {
		note.Position = &panels.Point{X: *row.PanelX, Y: *row.PanelY}
	}
	if row.PanelWidth != nil && row.PanelHeight != nil {
		note.Size = &panels.Size{Width: *row.PanelWidth, Height: *row.PanelHeight}
	}
	return note
}

// SaveLegacyNote Store a combined note string for a screenshot, replacing any previous one
func (s *NoteStore) SaveLegacyNote(ctx context.Context, imageKey string, content string) error {
	db := s.db.WithContext(ctx)
	var legacy models.LegacyScreenshotNote
	err := db.Where("screenshot_url = ?", imageKey).Limit(1).Find(&legacy).Error
	if err != nil {
		return wrap("save legacy", "", err)
	}
	legacy.ScreenshotURL = imageKey
	legacy.Note = content
	legacy.Migrated = false
	return wrap("save legacy", "", db.Save(&legacy).Error)
}

// MigrateLegacy Turn every unmigrated legacy note into a screenshot note.
// Screenshots that already have notes only get their legacy row marked.
func (s *NoteStore) MigrateLegacy(ctx context.Context) (int, error) {
	var legacy []models.LegacyScreenshotNote
	if err := s.db.WithContext(ctx).Where("migrated = ?", false).Find(&legacy).Error; err != nil {
		return 0, wrap("migrate legacy", "", err)
	}

	migrated := 0
	for _, row := range legacy {
		created := false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var existing int64
			if err := tx.Model(&models.ScreenshotNote{}).Where("screenshot_url = ?", row.ScreenshotURL).Count(&existing).Error; err != nil {
				return err
			}
			if existing == 0 && row.Note != "" {
				note := models.ScreenshotNote{
					ID:             uuid.NewV4().String(),
					ScreenshotURL:  row.ScreenshotURL,
					Note:           row.Note,
					ScreenshotType: "hand",
				}
				if err := tx.Create(&note).Error; err != nil {
					return err
				}
				created = true
			}
			return tx.Model(&models.LegacyScreenshotNote{}).Where("id = ?", row.ID).Update("migrated", true).Error
		})
		if err != nil {
			return migrated, wrap("migrate legacy", "", err)
		}
		if created {
			migrated++
		}
	}
	log.Info(fmt.Sprintf("Migrated %d legacy notes", migrated))
	return migrated, nil
}
