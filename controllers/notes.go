package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"notescope/panels"
	"notescope/store"
)

type CreateNoteInput struct {
	HandNoteID     string        `json:"hand_note_id"`
	ScreenshotURL  string        `json:"screenshot_url" binding:"required"`
	Note           string        `json:"note"`
	ScreenshotType string        `json:"screenshot_type" binding:"omitempty,oneof=hand wizard"`
	DisplayOrder   int           `json:"display_order"`
	Position       *panels.Point `json:"position"`
	Size           *panels.Size  `json:"size"`
}

type UpdateNoteInput struct {
	Note *string `json:"note" binding:"required"`
}

type UpdateNotePositionInput struct {
	Position panels.Point `json:"position"`
	Size     panels.Size  `json:"size"`
}

// storageStatus Map a store error to an HTTP status
func storageStatus(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// FindNotes List the notes of a screenshot (?image=) or of a hand (?hand_note_id=)
func FindNotes(notes *store.NoteStore) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		imageKey := c.Query("image")
		handNoteID := c.Query("hand_note_id")
		if imageKey == "" && handNoteID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image or hand_note_id is required"})
			return
		}

		var err error
		var data interface{}
		if imageKey != "" {
			data, err = notes.ListByImage(c.Request.Context(), imageKey)
		} else {
			data, err = notes.ListByHandNote(c.Request.Context(), handNoteID)
		}
		if err != nil {
			c.JSON(storageStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": data})
	}
	return fn
}

// CreateNote Create a note. Content is truncated and the size clamped to the panel limits.
func CreateNote(notes *store.NoteStore, limits panels.Limits) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		var input CreateNoteInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if input.Size != nil {
			size := limits.ClampSize(*input.Size)
			input.Size = &size
		}
		row, err := notes.CreateNote(c.Request.Context(), store.CreateNoteInput{
			HandNoteID:     input.HandNoteID,
			ImageKey:       input.ScreenshotURL,
			Content:        limits.TruncateContent(input.Note),
			ScreenshotType: input.ScreenshotType,
			DisplayOrder:   input.DisplayOrder,
			Position:       input.Position,
			Size:           input.Size,
		})
		if err != nil {
			c.JSON(storageStatus(err), gin.H{"error": err.Error()})
			return
		}
		log.Info(fmt.Sprintf("Created note %s for %s", row.ID, row.ScreenshotURL))
		c.JSON(http.StatusCreated, gin.H{"data": row})
	}
	return fn
}

// UpdateNote Replace the text of a note
func UpdateNote(notes *store.NoteStore, limits panels.Limits) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		var input UpdateNoteInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		id := c.Param("id")
		if err := notes.Update(c.Request.Context(), id, limits.TruncateContent(*input.Note)); err != nil {
			c.JSON(storageStatus(err), gin.H{"error": err.Error()})
			return
		}
		writeNote(c, notes, id)
	}
	return fn
}

// UpdateNotePosition Store where a note panel sits and how large it is
func UpdateNotePosition(notes *store.NoteStore, limits panels.Limits) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		var input UpdateNotePositionInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		id := c.Param("id")
		err := notes.UpdatePosition(c.Request.Context(), id, input.Position, limits.ClampSize(input.Size))
		if err != nil {
			c.JSON(storageStatus(err), gin.H{"error": err.Error()})
			return
		}
		writeNote(c, notes, id)
	}
	return fn
}

func writeNote(c *gin.Context, notes *store.NoteStore, id string) {
	row, err := notes.GetNote(c.Request.Context(), id)
	if err != nil {
		c.JSON(storageStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": row})
}

// DeleteNote Delete a note. Deleting a missing note succeeds.
func DeleteNote(notes *store.NoteStore) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		if err := notes.Delete(c.Request.Context(), c.Param("id")); err != nil {
			c.JSON(storageStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": true})
	}
	return fn
}

// MigrateLegacyNotes Turn the old combined notes into note panels
func MigrateLegacyNotes(notes *store.NoteStore) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		migrated, err := notes.MigrateLegacy(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "migrated": migrated})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"migrated": migrated}})
	}
	return fn
}
