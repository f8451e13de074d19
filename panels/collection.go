package panels

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	uuid "github.com/twinj/uuid"
)

// Strategy How a collection pushes its changes to the Adapter
type Strategy int

const (
	// FineGrained Each mutation issues the matching Adapter call right away
	FineGrained Strategy = iota
	// Batch Mutations stay local until Reconcile diffs them against the store
	Batch
)

func (s Strategy) String() string {
	if s == Batch {
		return "batch"
	}
	return "fine-grained"
}

// ParseStrategy Map a strategy name to a Strategy, defaulting to FineGrained
func ParseStrategy(name string) Strategy {
	if name == "batch" {
		return Batch
	}
	return FineGrained
}

const (
	defaultOffsetRight = 420
	defaultOffsetTop   = 100
	staggerStep        = 30
)

// ErrClosed The collection was already torn down
var ErrClosed = errors.New("panel collection is closed")

// Options Configure a new Collection
type Options struct {
	ImageKey string
	Viewport Viewport
	Limits   Limits
	Strategy Strategy
	Adapter  Adapter
	// Capture is shared by every collection of a host so only one gesture runs at a time.
	Capture *PointerCapture
	// Rand drives colors and positions of added panels. Seeded from the clock when nil.
	Rand *rand.Rand
	// NewID generates panel ids. Defaults to random UUIDs.
	NewID func() string
}

// Collection The panels attached to one image
type Collection struct {
	mu       sync.Mutex
	imageKey string
	vp       Viewport
	lim      Limits
	strategy Strategy
	adapter  Adapter
	capture  *PointerCapture
	rnd      *rand.Rand
	newID    func() string

	panels  []*Panel
	engines map[string]*Engine
	// noteIDs outlives panel removal so queued deletes can resolve server ids.
	noteIDs map[string]string
	// baseline is the last state known to be stored, used by Batch.
	baseline map[string]Note

	worker *syncer
	closed bool
}

// NewCollection Create an empty collection; call Initialize before use
func NewCollection(opts Options) *Collection {
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits()
	}
	if opts.Capture == nil {
		opts.Capture = NewPointerCapture()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewV4().String() }
	}
	return &Collection{
		imageKey: opts.ImageKey,
		vp:       opts.Viewport,
		lim:      opts.Limits,
		strategy: opts.Strategy,
		adapter:  opts.Adapter,
		capture:  opts.Capture,
		rnd:      opts.Rand,
		newID:    opts.NewID,
		engines:  make(map[string]*Engine),
		noteIDs:  make(map[string]string),
		baseline: make(map[string]Note),
		worker:   newSyncer(),
	}
}

// ImageKey The image this collection annotates
func (c *Collection) ImageKey() string {
	return c.imageKey
}

// Strategy The persistence strategy fixed at construction
func (c *Collection) Strategy() Strategy {
	return c.strategy
}

// Initialize Load persisted notes, or seed one empty panel when there are none
func (c *Collection) Initialize(notes []Note) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.panels = nil
	c.engines = make(map[string]*Engine)

	if len(notes) == 0 {
		size := c.lim.DefaultSize
		c.appendPanel(&Panel{
			ID:       c.newID(),
			ImageKey: c.imageKey,
			Position: ClampPosition(c.defaultPosition(0), size, c.vp),
			Size:     size,
			Color:    Palette[0],
		})
		return
	}

	seen := make(map[string]bool, len(notes))
	for i, note := range notes {
		size := c.lim.DefaultSize
		if note.Size != nil {
			size = c.lim.ClampSize(*note.Size)
		}
		position := c.defaultPosition(i)
		if note.Position != nil {
			position = *note.Position
		}

		p := &Panel{
			ImageKey: c.imageKey,
			Content:  c.lim.TruncateContent(note.Content),
			Position: ClampPosition(position, size, c.vp),
			Size:     size,
			Color:    Palette[i%len(Palette)],
		}
		if note.ID != "" && !seen[note.ID] {
			p.ID = note.ID
			p.NoteID = note.ID
			c.noteIDs[p.ID] = note.ID
			c.baseline[p.ID] = snapshot(p)
		} else {
			p.ID = c.newID()
		}
		seen[p.ID] = true
		c.appendPanel(p)
	}
}

// State Everything needed to rebuild a collection later in the same session.
// Stored is the last state known to be in the Adapter, keyed by panel id; it can
// lag behind Panels when calls failed.
type State struct {
	Panels  []Panel
	NoteIDs map[string]string
	Stored  map[string]Note
}

// State Capture the panels together with what is known to be stored
func (c *Collection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{
		Panels:  make([]Panel, len(c.panels)),
		NoteIDs: make(map[string]string, len(c.noteIDs)),
		Stored:  make(map[string]Note, len(c.baseline)),
	}
	for i, p := range c.panels {
		st.Panels[i] = *p
	}
	for id, noteID := range c.noteIDs {
		st.NoteIDs[id] = noteID
	}
	for id, note := range c.baseline {
		st.Stored[id] = note
	}
	return st
}

// Restore Rebuild the collection from a captured State. Panel ids are kept, so
// the next reconcile diffs the panels against st.Stored and retries what failed.
func (c *Collection) Restore(st State) {
	if len(st.Panels) == 0 {
		c.Initialize(nil)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.panels = nil
	c.engines = make(map[string]*Engine)
	c.noteIDs = make(map[string]string, len(st.NoteIDs))
	c.baseline = make(map[string]Note, len(st.Stored))
	for id, noteID := range st.NoteIDs {
		c.noteIDs[id] = noteID
	}
	for id, note := range st.Stored {
		c.baseline[id] = note
	}
	for _, panel := range st.Panels {
		p := panel
		p.ImageKey = c.imageKey
		p.Content = c.lim.TruncateContent(p.Content)
		p.Size = c.lim.ClampSize(p.Size)
		p.Position = ClampPosition(p.Position, p.Size, c.vp)
		c.appendPanel(&p)
	}
}

func (c *Collection) defaultPosition(i int) Point {
	return Point{
		X: c.vp.Width - defaultOffsetRight + i*staggerStep,
		Y: defaultOffsetTop + i*staggerStep,
	}
}

func (c *Collection) appendPanel(p *Panel) {
	c.panels = append(c.panels, p)
	c.engines[p.ID] = newEngine(p.ID, c, c.capture)
}

func (c *Collection) index(id string) int {
	for i, p := range c.panels {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Panels A copy of the current panels in display order
func (c *Collection) Panels() []Panel {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Panel, len(c.panels))
	for i, p := range c.panels {
		out[i] = *p
	}
	return out
}

// Panel A copy of one panel
func (c *Collection) Panel(id string) (Panel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(id)
	if i < 0 {
		return Panel{}, ErrUnknownPanel
	}
	return *c.panels[i], nil
}

// Engine The pointer engine of a panel
func (c *Collection) Engine(id string) (*Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.engines[id]
	if !ok {
		return nil, ErrUnknownPanel
	}
	return e, nil
}

// SetViewport Record a new viewport. Panels keep their place; the next gesture
// clamps into the new bounds.
func (c *Collection) SetViewport(vp Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vp = vp
}

// AddPanel Append an empty panel at a random visible spot
func (c *Collection) AddPanel() (Panel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Panel{}, ErrClosed
	}

	size := c.lim.DefaultSize
	position := Point{}
	if span := c.vp.Width - size.Width; span > 0 {
		position.X = c.rnd.Intn(span + 1)
	}
	if span := c.vp.Height - size.Height; span > 0 {
		position.Y = c.rnd.Intn(span + 1)
	}

	id := c.newID()
	for c.index(id) >= 0 {
		id = c.newID()
	}
	p := &Panel{
		ID:       id,
		ImageKey: c.imageKey,
		Position: ClampPosition(position, size, c.vp),
		Size:     size,
		Color:    Palette[c.rnd.Intn(len(Palette))],
	}
	c.appendPanel(p)
	log.Debugf("Added panel %s to %s", p.ID, c.imageKey)
	return *p, nil
}

// UpdateContent Replace a panel's text, truncated to the content limit
func (c *Collection) UpdateContent(id string, text string) (Panel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Panel{}, ErrClosed
	}
	i := c.index(id)
	if i < 0 {
		return Panel{}, ErrUnknownPanel
	}
	p := c.panels[i]
	p.Content = c.lim.TruncateContent(text)
	if c.strategy == FineGrained {
		c.submitContent(p.ID, p.Content, i)
	}
	return *p, nil
}

// UpdatePositionAndSize Move and resize a panel, clamped to the viewport and limits
func (c *Collection) UpdatePositionAndSize(id string, position Point, size Size) (Panel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Panel{}, ErrClosed
	}
	i := c.index(id)
	if i < 0 {
		return Panel{}, ErrUnknownPanel
	}
	p := c.panels[i]
	p.Size = c.lim.ClampSize(size)
	p.Position = ClampPosition(position, p.Size, c.vp)
	if c.strategy == FineGrained {
		c.submitPosition(p.ID, p.Position, p.Size)
	}
	return *p, nil
}

// RemovePanel Delete a panel, or clear it when it is the last one
func (c *Collection) RemovePanel(id string) ([]Panel, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	i := c.index(id)
	if i < 0 {
		c.mu.Unlock()
		return nil, ErrUnknownPanel
	}

	if len(c.panels) == 1 {
		p := c.panels[0]
		p.Content = ""
		if c.strategy == FineGrained {
			c.submitContent(p.ID, "", 0)
		}
	} else {
		if e := c.engines[id]; e != nil && e.State() != Idle {
			e.end()
		}
		delete(c.engines, id)
		c.panels = append(c.panels[:i], c.panels[i+1:]...)
		if c.strategy == FineGrained {
			c.submitDelete(id)
		}
	}
	c.mu.Unlock()
	return c.Panels(), nil
}

// Serialize The panels reduced to the persisted note shape
func (c *Collection) Serialize() []Note {
	c.mu.Lock()
	defer c.mu.Unlock()
	notes := make([]Note, len(c.panels))
	for i, p := range c.panels {
		notes[i] = snapshot(p)
	}
	return notes
}

func snapshot(p *Panel) Note {
	position := p.Position
	size := p.Size
	return Note{ID: p.ID, Content: p.Content, Position: &position, Size: &size}
}

// Flush Wait for every queued Adapter call to finish
func (c *Collection) Flush() {
	c.worker.flush()
}

// Close Push outstanding changes and stop the sync worker.
// Calls already handed to the Adapter run to completion.
func (c *Collection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if owner := c.capture.Owner(); owner != nil && c.engines[owner.PanelID()] == owner {
		owner.end()
	}
	if c.strategy == Batch {
		c.planReconcile()
	}
	c.closed = true
	c.mu.Unlock()

	c.worker.stop()
	log.Debugf("Closed panel collection for %s", c.imageKey)
	return nil
}

// geometry, viewport, limits, applyGeometry and commitGeometry serve the engines.

func (c *Collection) geometry(id string) (Point, Size, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(id)
	if i < 0 {
		return Point{}, Size{}, false
	}
	return c.panels[i].Position, c.panels[i].Size, true
}

func (c *Collection) viewport() Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vp
}

func (c *Collection) limits() Limits {
	return c.lim
}

func (c *Collection) applyGeometry(id string, position Point, size Size) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.index(id); i >= 0 {
		c.panels[i].Position = position
		c.panels[i].Size = size
	}
}

// commitGeometry persists the geometry a gesture left behind. The engine already
// clamped it; clamping again would move a panel that was only resized.
func (c *Collection) commitGeometry(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	i := c.index(id)
	if i < 0 {
		log.Debugf("Dropping geometry commit for removed panel %s", id)
		return
	}
	if c.strategy == FineGrained {
		c.submitPosition(id, c.panels[i].Position, c.panels[i].Size)
	}
}

// storageFailed logs a failed Adapter call. Local state is left as is.
func (c *Collection) storageFailed(op string, noteID string, err error) {
	var se *StorageError
	if !errors.As(err, &se) {
		se = &StorageError{Op: op, NoteID: noteID, Err: err}
	}
	log.WithFields(log.Fields{
		"image": c.imageKey,
		"op":    se.Op,
		"note":  se.NoteID,
	}).Warn("Saving note failed: ", se.Err)
}

func (c *Collection) submitContent(panelID string, content string, displayOrder int) {
	c.worker.submit(func(ctx context.Context) {
		c.saveContent(ctx, panelID, content, displayOrder)
	})
}

func (c *Collection) submitPosition(panelID string, position Point, size Size) {
	c.worker.submit(func(ctx context.Context) {
		c.savePosition(ctx, panelID, position, size)
	})
}

func (c *Collection) submitDelete(panelID string) {
	c.worker.submit(func(ctx context.Context) {
		c.deleteNote(ctx, panelID)
	})
}

func (c *Collection) noteID(panelID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.noteIDs[panelID]
}

// saveContent creates the note on first non-empty content, updates it afterwards.
func (c *Collection) saveContent(ctx context.Context, panelID string, content string, displayOrder int) {
	if c.adapter == nil {
		return
	}
	noteID := c.noteID(panelID)
	if noteID != "" {
		if err := c.adapter.Update(ctx, noteID, content); err != nil {
			c.storageFailed("update", noteID, err)
			return
		}
		c.recordStored(panelID, func(n *Note) { n.Content = content })
		return
	}
	if content == "" {
		return
	}

	noteID, err := c.adapter.Create(ctx, c.imageKey, content, displayOrder)
	if err != nil {
		c.storageFailed("create", "", err)
		return
	}
	c.mu.Lock()
	c.noteIDs[panelID] = noteID
	var position Point
	var size Size
	found := false
	if i := c.index(panelID); i >= 0 {
		c.panels[i].NoteID = noteID
		position, size, found = c.panels[i].Position, c.panels[i].Size, true
	}
	c.baseline[panelID] = Note{ID: panelID, Content: content}
	c.mu.Unlock()
	log.Debugf("Created note %s for panel %s", noteID, panelID)

	if found {
		c.savePosition(ctx, panelID, position, size)
	}
}

func (c *Collection) savePosition(ctx context.Context, panelID string, position Point, size Size) {
	if c.adapter == nil {
		return
	}
	noteID := c.noteID(panelID)
	if noteID == "" {
		// Not stored yet; the create carries the geometry.
		return
	}
	if err := c.adapter.UpdatePosition(ctx, noteID, position, size); err != nil {
		c.storageFailed("update position", noteID, err)
		return
	}
	c.recordStored(panelID, func(n *Note) {
		n.Position = &position
		n.Size = &size
	})
}

func (c *Collection) deleteNote(ctx context.Context, panelID string) {
	if c.adapter == nil {
		return
	}
	noteID := c.noteID(panelID)
	if noteID == "" {
		return
	}
	if err := c.adapter.Delete(ctx, noteID); err != nil {
		c.storageFailed("delete", noteID, err)
		return
	}
	c.mu.Lock()
	delete(c.noteIDs, panelID)
	delete(c.baseline, panelID)
	c.mu.Unlock()
}

// recordStored updates the stored baseline of a panel after a successful call.
func (c *Collection) recordStored(panelID string, apply func(n *Note)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.baseline[panelID]
	if !ok {
		n = Note{ID: panelID}
	}
	apply(&n)
	c.baseline[panelID] = n
}
