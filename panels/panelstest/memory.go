// Package panelstest provides an in-memory panels.Adapter for tests.
package panelstest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"notescope/panels"
)

// ErrInjected The error returned by calls configured to fail
var ErrInjected = errors.New("injected storage failure")

// Call One recorded adapter call
type Call struct {
	Op      string
	NoteID  string
	Content string
}

type record struct {
	imageKey     string
	displayOrder int
	seq          int
	note         panels.Note
}

// Memory Records every call and keeps notes in a map
type Memory struct {
	mu      sync.Mutex
	nextID  int
	records map[string]*record
	calls   []Call
	failOps map[string]bool
}

// NewMemory Create an empty store
func NewMemory() *Memory {
	return &Memory{records: make(map[string]*record), failOps: make(map[string]bool)}
}

// FailOn Make every call of op ("create", "update", "update position", "delete", "list") fail
func (m *Memory) FailOn(op string, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOps[op] = fail
}

// Seed Store notes for an image directly, returning their ids
func (m *Memory) Seed(imageKey string, notes ...panels.Note) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(notes))
	for i, n := range notes {
		m.nextID++
		id := fmt.Sprintf("note-%d", m.nextID)
		n.ID = id
		m.records[id] = &record{imageKey: imageKey, displayOrder: i, seq: m.nextID, note: n}
		ids = append(ids, id)
	}
	return ids
}

// Calls A copy of the recorded calls
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Get A stored note
func (m *Memory) Get(noteID string) (panels.Note, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[noteID]
	if !ok {
		return panels.Note{}, false
	}
	return r.note, true
}

// Count Number of stored notes for an image
func (m *Memory) Count(imageKey string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if r.imageKey == imageKey {
			n++
		}
	}
	return n
}

func (m *Memory) begin(op, noteID, content string) error {
	m.calls = append(m.calls, Call{Op: op, NoteID: noteID, Content: content})
	if m.failOps[op] {
		return ErrInjected
	}
	return nil
}

func (m *Memory) Create(_ context.Context, imageKey string, content string, displayOrder int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("create", "", content); err != nil {
		return "", err
	}
	m.nextID++
	id := fmt.Sprintf("note-%d", m.nextID)
	m.records[id] = &record{
		imageKey:     imageKey,
		displayOrder: displayOrder,
		seq:          m.nextID,
		note:         panels.Note{ID: id, Content: content},
	}
	m.calls[len(m.calls)-1].NoteID = id
	return id, nil
}

func (m *Memory) Update(_ context.Context, noteID string, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("update", noteID, content); err != nil {
		return err
	}
	r, ok := m.records[noteID]
	if !ok {
		return fmt.Errorf("note %s not found", noteID)
	}
	r.note.Content = content
	return nil
}

func (m *Memory) UpdatePosition(_ context.Context, noteID string, position panels.Point, size panels.Size) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("update position", noteID, ""); err != nil {
		return err
	}
	r, ok := m.records[noteID]
	if !ok {
		return fmt.Errorf("note %s not found", noteID)
	}
	r.note.Position = &position
	r.note.Size = &size
	return nil
}

func (m *Memory) Delete(_ context.Context, noteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("delete", noteID, ""); err != nil {
		return err
	}
	delete(m.records, noteID)
	return nil
}

func (m *Memory) ListByImage(_ context.Context, imageKey string) ([]panels.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("list", "", imageKey); err != nil {
		return nil, err
	}
	var found []*record
	for _, r := range m.records {
		if r.imageKey == imageKey {
			found = append(found, r)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].displayOrder != found[j].displayOrder {
			return found[i].displayOrder < found[j].displayOrder
		}
		return found[i].seq < found[j].seq
	})
	notes := make([]panels.Note, len(found))
	for i, r := range found {
		notes[i] = r.note
	}
	return notes, nil
}
