package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notescope/models"
	"notescope/panels"
)

func newTestStore(t *testing.T) *NoteStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := models.ConnectDataBase(dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	return NewNoteStore(db)
}

const hand = "https://img.example/hand-7.png"

func TestCreateAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	second, err := s.Create(ctx, hand, "second", 1)
	require.NoError(t, err)
	first, err := s.Create(ctx, hand, "first", 0)
	require.NoError(t, err)
	_, err = s.Create(ctx, "https://img.example/other.png", "elsewhere", 0)
	require.NoError(t, err)

	notes, err := s.ListByImage(ctx, hand)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, first, notes[0].ID)
	assert.Equal(t, "first", notes[0].Content)
	assert.Equal(t, second, notes[1].ID)
	assert.Nil(t, notes[0].Position)
	assert.Nil(t, notes[0].Size)
}

func TestUpdatesMergeFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.Create(ctx, hand, "draft", 0)
	require.NoError(t, err)

	require.NoError(t, s.UpdatePosition(ctx, id, panels.Point{X: 12, Y: 34}, panels.Size{Width: 300, Height: 260}))
	require.NoError(t, s.Update(ctx, id, "final"))
	require.NoError(t, s.Update(ctx, id, "final"))

	row, err := s.GetNote(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "final", row.Note)
	note := ToPanelNote(row)
	require.NotNil(t, note.Position)
	assert.Equal(t, panels.Point{X: 12, Y: 34}, *note.Position)
	assert.Equal(t, panels.Size{Width: 300, Height: 260}, *note.Size)
}

func TestMissingNote(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, "missing", "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	var se *panels.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "update", se.Op)
	assert.Equal(t, "missing", se.NoteID)

	_, err = s.GetNote(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete(ctx, "missing"))
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.Create(ctx, hand, "gone soon", 0)
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, id))

	notes, err := s.ListByImage(ctx, hand)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestCreateNoteWithGeometry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	row, err := s.CreateNote(ctx, CreateNoteInput{
		HandNoteID:     "hand-1",
		ImageKey:       hand,
		Content:        "wizard says fold",
		ScreenshotType: "wizard",
		DisplayOrder:   2,
		Position:       &panels.Point{X: 1, Y: 2},
		Size:           &panels.Size{Width: 400, Height: 500},
	})
	require.NoError(t, err)
	assert.Equal(t, "wizard", row.ScreenshotType)

	rows, err := s.ListByHandNote(ctx, "hand-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 400, *rows[0].PanelWidth)

	plain, err := s.CreateNote(ctx, CreateNoteInput{ImageKey: hand, Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, "hand", plain.ScreenshotType)
}

func TestLegacyFallbackAndMigration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveLegacyNote(ctx, hand, "old combined note"))
	require.NoError(t, s.SaveLegacyNote(ctx, "https://img.example/empty.png", ""))

	notes, err := s.ListByImage(ctx, hand)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Empty(t, notes[0].ID)
	assert.Equal(t, "old combined note", notes[0].Content)

	n, err := s.MigrateLegacy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	notes, err = s.ListByImage(ctx, hand)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.NotEmpty(t, notes[0].ID)
	assert.Equal(t, "old combined note", notes[0].Content)

	n, err = s.MigrateLegacy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	notes, err = s.ListByImage(ctx, hand)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestCollectionAgainstStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := panels.NewCollection(panels.Options{
		ImageKey: hand,
		Viewport: panels.Viewport{Width: 1280, Height: 720},
		Adapter:  s,
	})
	c.Initialize(nil)
	id := c.Panels()[0].ID
	_, err := c.UpdateContent(id, "turn barrel was thin")
	require.NoError(t, err)
	_, err = c.UpdatePositionAndSize(id, panels.Point{X: 100, Y: 80}, panels.Size{Width: 320, Height: 240})
	require.NoError(t, err)
	require.NoError(t, c.Close())

	notes, err := s.ListByImage(ctx, hand)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "turn barrel was thin", notes[0].Content)
	require.NotNil(t, notes[0].Position)
	assert.Equal(t, panels.Point{X: 100, Y: 80}, *notes[0].Position)
	assert.Equal(t, panels.Size{Width: 320, Height: 240}, *notes[0].Size)
}
