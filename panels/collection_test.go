package panels_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notescope/panels"
	"notescope/panels/panelstest"
)

const testImage = "https://img.example/hand-1.png"

var desktop = panels.Viewport{Width: 1440, Height: 900}

func TestInitializeEmptySeedsOnePanel(t *testing.T) {
	c := newTestCollection(t, desktop, panels.FineGrained, nil)
	c.Initialize(nil)

	ps := c.Panels()
	require.Len(t, ps, 1)
	assert.Equal(t, "", ps[0].Content)
	assert.Equal(t, panels.Point{X: 1440 - 420, Y: 100}, ps[0].Position)
	assert.Equal(t, panels.Size{Width: 350, Height: 300}, ps[0].Size)
	assert.Equal(t, panels.Palette[0], ps[0].Color)
	assert.Equal(t, testImage, ps[0].ImageKey)
	assert.Empty(t, ps[0].NoteID)
}

func TestInitializeStaggersNotesWithoutGeometry(t *testing.T) {
	c := newTestCollection(t, desktop, panels.FineGrained, nil)
	kept := panels.Point{X: 10, Y: 20}
	c.Initialize([]panels.Note{
		{ID: "n1", Content: "first"},
		{ID: "n2", Content: "second"},
		{ID: "n3", Content: "third", Position: &kept, Size: &panels.Size{Width: 900, Height: 100}},
	})

	ps := c.Panels()
	require.Len(t, ps, 3)
	assert.Equal(t, panels.Point{X: 1020, Y: 100}, ps[0].Position)
	assert.Equal(t, panels.Point{X: 1050, Y: 130}, ps[1].Position)
	assert.Equal(t, kept, ps[2].Position)
	assert.Equal(t, panels.Size{Width: 600, Height: 200}, ps[2].Size)
	for i, p := range ps {
		assert.Equal(t, p.ID, p.NoteID)
		assert.Equal(t, panels.Palette[i], p.Color)
	}
}

func TestSinglePanelLifecycle(t *testing.T) {
	c := newTestCollection(t, desktop, panels.FineGrained, nil)
	c.Initialize(nil)
	id := c.Panels()[0].ID

	p, err := c.UpdateContent(id, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", p.Content)

	remaining, err := c.RemovePanel(id)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "", remaining[0].Content)
	assert.Equal(t, id, remaining[0].ID)
}

func TestMultiPanelAddRemove(t *testing.T) {
	c := newTestCollection(t, desktop, panels.FineGrained, nil)
	c.Initialize(nil)
	first := c.Panels()[0]
	second, err := c.AddPanel()
	require.NoError(t, err)
	third, err := c.AddPanel()
	require.NoError(t, err)

	ps := c.Panels()
	require.Len(t, ps, 3)
	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, second.ID, third.ID)
	assert.NotEqual(t, first.ID, third.ID)

	remaining, err := c.RemovePanel(second.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, first, remaining[0])
	assert.Equal(t, third, remaining[1])
}

func TestAddPanelStaysVisible(t *testing.T) {
	vp := panels.Viewport{Width: 800, Height: 600}
	c := newTestCollection(t, vp, panels.FineGrained, nil)
	c.Initialize(nil)
	for i := 0; i < 40; i++ {
		p, err := c.AddPanel()
		require.NoError(t, err)
		assert.Empty(t, p.Content)
		assert.Contains(t, panels.Palette, p.Color)
		assert.GreaterOrEqual(t, p.Position.X, 0)
		assert.GreaterOrEqual(t, p.Position.Y, 0)
		assert.LessOrEqual(t, p.Position.X+p.Size.Width, vp.Width)
		assert.LessOrEqual(t, p.Position.Y+p.Size.Height, vp.Height)
	}
}

func TestIDsStayUnique(t *testing.T) {
	c := newTestCollection(t, desktop, panels.FineGrained, nil)
	c.Initialize([]panels.Note{{ID: "dup", Content: "a"}, {ID: "dup", Content: "b"}, {Content: "c"}})
	for i := 0; i < 20; i++ {
		p, err := c.AddPanel()
		require.NoError(t, err)
		if i%3 == 0 {
			_, err = c.RemovePanel(p.ID)
			require.NoError(t, err)
		}
	}
	seen := map[string]bool{}
	for _, p := range c.Panels() {
		assert.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
	}
}

func TestContentLengthLimit(t *testing.T) {
	c := newTestCollection(t, desktop, panels.FineGrained, nil)
	c.Initialize(nil)
	id := c.Panels()[0].ID

	p, err := c.UpdateContent(id, strings.Repeat("x", 501))
	require.NoError(t, err)
	assert.Len(t, p.Content, 500)

	p, err = c.UpdateContent(id, strings.Repeat("x", 500))
	require.NoError(t, err)
	assert.Len(t, p.Content, 500)

	p, err = c.UpdateContent(id, strings.Repeat("♠", 600))
	require.NoError(t, err)
	assert.Equal(t, 500, len([]rune(p.Content)))
}

func TestUnknownPanel(t *testing.T) {
	c := newTestCollection(t, desktop, panels.FineGrained, nil)
	c.Initialize(nil)
	_, err := c.UpdateContent("nope", "x")
	assert.ErrorIs(t, err, panels.ErrUnknownPanel)
	_, err = c.RemovePanel("nope")
	assert.ErrorIs(t, err, panels.ErrUnknownPanel)
	_, err = c.Engine("nope")
	assert.ErrorIs(t, err, panels.ErrUnknownPanel)
}

func TestSerializeRoundTrip(t *testing.T) {
	c := newTestCollection(t, desktop, panels.Batch, nil)
	c.Initialize(nil)
	id := c.Panels()[0].ID
	_, _ = c.UpdateContent(id, "bluffed river")
	p, _ := c.AddPanel()
	_, _ = c.UpdateContent(p.ID, "solver says check")
	_, _ = c.UpdatePositionAndSize(p.ID, panels.Point{X: 40, Y: 60}, panels.Size{Width: 300, Height: 250})

	notes := c.Serialize()
	require.Len(t, notes, 2)

	restored := newTestCollection(t, desktop, panels.Batch, nil)
	restored.Initialize(notes)

	type pair struct {
		content  string
		position panels.Point
	}
	collect := func(ps []panels.Panel) []pair {
		out := make([]pair, len(ps))
		for i, p := range ps {
			out[i] = pair{p.Content, p.Position}
		}
		return out
	}
	assert.ElementsMatch(t, collect(c.Panels()), collect(restored.Panels()))
}

func TestFineGrainedPersistence(t *testing.T) {
	mem := panelstest.NewMemory()
	c := newTestCollection(t, desktop, panels.FineGrained, mem)
	c.Initialize(nil)
	id := c.Panels()[0].ID

	_, _ = c.UpdateContent(id, "")
	c.Flush()
	assert.Empty(t, mem.Calls(), "empty panels are not stored")

	_, _ = c.UpdateContent(id, "check back flop")
	_, _ = c.UpdateContent(id, "check back flop, bet turn")
	c.Flush()

	calls := mem.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "create", calls[0].Op)
	assert.Equal(t, "update position", calls[1].Op)
	assert.Equal(t, "update", calls[2].Op)
	noteID := calls[0].NoteID

	p, _ := c.Panel(id)
	assert.Equal(t, noteID, p.NoteID)
	stored, ok := mem.Get(noteID)
	require.True(t, ok)
	assert.Equal(t, "check back flop, bet turn", stored.Content)
	require.NotNil(t, stored.Position)
	assert.Equal(t, p.Position, *stored.Position)

	// the last panel is cleared, never deleted
	_, err := c.RemovePanel(id)
	require.NoError(t, err)
	c.Flush()
	stored, ok = mem.Get(noteID)
	require.True(t, ok)
	assert.Equal(t, "", stored.Content)
}

func TestFineGrainedDeleteAfterQueuedCreate(t *testing.T) {
	mem := panelstest.NewMemory()
	c := newTestCollection(t, desktop, panels.FineGrained, mem)
	c.Initialize(nil)
	extra, _ := c.AddPanel()
	_, _ = c.UpdateContent(extra.ID, "temp")
	_, err := c.RemovePanel(extra.ID)
	require.NoError(t, err)
	c.Flush()

	assert.Equal(t, 0, mem.Count(testImage))
	calls := mem.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "create", calls[0].Op)
	assert.Equal(t, "delete", calls[len(calls)-1].Op)
	assert.Equal(t, calls[0].NoteID, calls[len(calls)-1].NoteID)
}

func TestStorageFailureKeepsLocalState(t *testing.T) {
	mem := panelstest.NewMemory()
	ids := mem.Seed(testImage, panels.Note{Content: "stored"})
	mem.FailOn("update", true)
	mem.FailOn("update position", true)

	c := newTestCollection(t, desktop, panels.FineGrained, mem)
	c.Initialize([]panels.Note{{ID: ids[0], Content: "stored"}})

	p, err := c.UpdateContent(ids[0], "edited offline")
	require.NoError(t, err)
	_, err = c.UpdatePositionAndSize(ids[0], panels.Point{X: 5, Y: 5}, panels.Size{Width: 300, Height: 300})
	require.NoError(t, err)
	c.Flush()

	got, _ := c.Panel(p.ID)
	assert.Equal(t, "edited offline", got.Content)
	assert.Equal(t, panels.Point{X: 5, Y: 5}, got.Position)
	stored, _ := mem.Get(ids[0])
	assert.Equal(t, "stored", stored.Content)

	// still editable, and the next edit goes through once storage recovers
	mem.FailOn("update", false)
	_, err = c.UpdateContent(ids[0], "edited online")
	require.NoError(t, err)
	c.Flush()
	stored, _ = mem.Get(ids[0])
	assert.Equal(t, "edited online", stored.Content)
}

func TestBatchReconcile(t *testing.T) {
	mem := panelstest.NewMemory()
	ids := mem.Seed(testImage, panels.Note{Content: "keep"}, panels.Note{Content: "drop"})
	c := newTestCollection(t, desktop, panels.Batch, mem)
	notes, err := mem.ListByImage(context.Background(), testImage)
	require.NoError(t, err)
	c.Initialize(notes)

	_, _ = c.UpdateContent(ids[0], "keep, edited")
	_, _ = c.RemovePanel(ids[1])
	added, _ := c.AddPanel()
	_, _ = c.UpdateContent(added.ID, "new read")
	blank, _ := c.AddPanel()
	c.Flush()
	before := len(mem.Calls())
	assert.Equal(t, 1, before, "only the initial list call")

	changes, err := c.Reconcile()
	require.NoError(t, err)
	kinds := map[panels.ChangeKind]int{}
	for _, ch := range changes {
		kinds[ch.Kind]++
		assert.NotEqual(t, blank.ID, ch.PanelID)
	}
	assert.Equal(t, map[panels.ChangeKind]int{
		panels.ChangeContent: 1,
		panels.ChangeDelete:  1,
		panels.ChangeCreate:  1,
	}, kinds)

	got, _ := mem.ListByImage(context.Background(), testImage)
	contents := []string{}
	for _, n := range got {
		contents = append(contents, n.Content)
	}
	assert.ElementsMatch(t, []string{"keep, edited", "new read"}, contents)

	again, err := c.Reconcile()
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestBatchRetriesFailedChanges(t *testing.T) {
	mem := panelstest.NewMemory()
	c := newTestCollection(t, desktop, panels.Batch, mem)
	c.Initialize(nil)
	id := c.Panels()[0].ID
	_, _ = c.UpdateContent(id, "needs saving")

	mem.FailOn("create", true)
	_, err := c.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, 0, mem.Count(testImage))

	mem.FailOn("create", false)
	changes, err := c.Reconcile()
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, panels.ChangeCreate, changes[0].Kind)
	assert.Equal(t, 1, mem.Count(testImage))
}

func TestReconcileRequiresBatch(t *testing.T) {
	c := newTestCollection(t, desktop, panels.FineGrained, nil)
	c.Initialize(nil)
	_, err := c.Reconcile()
	assert.True(t, errors.Is(err, panels.ErrNotBatch))
}

func TestCloseFlushesBatch(t *testing.T) {
	mem := panelstest.NewMemory()
	c := panels.NewCollection(panels.Options{ImageKey: testImage, Viewport: desktop, Strategy: panels.Batch, Adapter: mem})
	c.Initialize(nil)
	_, _ = c.UpdateContent(c.Panels()[0].ID, "written on close")

	require.NoError(t, c.Close())
	assert.Equal(t, 1, mem.Count(testImage))
	assert.ErrorIs(t, c.Close(), panels.ErrClosed)
	_, err := c.AddPanel()
	assert.ErrorIs(t, err, panels.ErrClosed)
	_, err = c.RemovePanel("nope")
	assert.ErrorIs(t, err, panels.ErrClosed, "closed wins over an unknown id")
}

func TestStorageErrorUnwraps(t *testing.T) {
	err := &panels.StorageError{Op: "delete", NoteID: "n1", Err: panelstest.ErrInjected}
	assert.ErrorIs(t, err, panelstest.ErrInjected)
	assert.Equal(t, "storage delete n1: injected storage failure", err.Error())
}

func TestRestoreKeepsStoredBaseline(t *testing.T) {
	mem := panelstest.NewMemory()
	ids := mem.Seed(testImage, panels.Note{Content: "kept"}, panels.Note{Content: "doomed"})
	c := panels.NewCollection(panels.Options{ImageKey: testImage, Viewport: desktop, Strategy: panels.Batch, Adapter: mem})
	notes, err := mem.ListByImage(context.Background(), testImage)
	require.NoError(t, err)
	c.Initialize(notes)
	_, err = c.UpdateContent(ids[0], "kept, edited")
	require.NoError(t, err)
	_, err = c.RemovePanel(ids[1])
	require.NoError(t, err)

	mem.FailOn("update", true)
	mem.FailOn("delete", true)
	require.NoError(t, c.Close())
	st := c.State()
	assert.Equal(t, "kept", st.Stored[ids[0]].Content)
	assert.Contains(t, st.Stored, ids[1])

	mem.FailOn("update", false)
	mem.FailOn("delete", false)
	restored := newTestCollection(t, desktop, panels.Batch, mem)
	restored.Restore(st)
	require.Len(t, restored.Panels(), 1)
	assert.Equal(t, ids[0], restored.Panels()[0].ID)

	changes, err := restored.Reconcile()
	require.NoError(t, err)
	kinds := []panels.ChangeKind{}
	for _, ch := range changes {
		kinds = append(kinds, ch.Kind)
	}
	assert.ElementsMatch(t, []panels.ChangeKind{panels.ChangeContent, panels.ChangeDelete}, kinds)
	stored, _ := mem.Get(ids[0])
	assert.Equal(t, "kept, edited", stored.Content)
	_, ok := mem.Get(ids[1])
	assert.False(t, ok)
}
