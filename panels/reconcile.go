package panels

import (
	"errors"
)

// ErrNotBatch Reconcile was called on a fine-grained collection
var ErrNotBatch = errors.New("reconcile is only available for batch collections")

// ChangeKind One kind of Adapter call a reconcile pass issues
type ChangeKind string

const (
	ChangeCreate   ChangeKind = "create"
	ChangeContent  ChangeKind = "content"
	ChangePosition ChangeKind = "position"
	ChangeDelete   ChangeKind = "delete"
)

// Change One planned Adapter call
type Change struct {
	Kind    ChangeKind `json:"kind"`
	PanelID string     `json:"panel_id"`
	Index   int        `json:"index"`
	Note    Note       `json:"note"`
}

// Diff Compare the stored baseline (keyed by panel id) with the current notes.
// New panels without content are not created.
func Diff(stored map[string]Note, current []Note) []Change {
	var changes []Change
	present := make(map[string]bool, len(current))
	for i, note := range current {
		present[note.ID] = true
		before, ok := stored[note.ID]
		if !ok {
			if note.Content != "" {
				changes = append(changes, Change{Kind: ChangeCreate, PanelID: note.ID, Index: i, Note: note})
			}
			continue
		}
		if before.Content != note.Content {
			changes = append(changes, Change{Kind: ChangeContent, PanelID: note.ID, Index: i, Note: note})
		}
		if !sameGeometry(before, note) {
			changes = append(changes, Change{Kind: ChangePosition, PanelID: note.ID, Index: i, Note: note})
		}
	}
	for id, before := range stored {
		if !present[id] {
			changes = append(changes, Change{Kind: ChangeDelete, PanelID: id, Index: -1, Note: before})
		}
	}
	return changes
}

func sameGeometry(a, b Note) bool {
	if (a.Position == nil) != (b.Position == nil) || (a.Size == nil) != (b.Size == nil) {
		return false
	}
	if a.Position != nil && *a.Position != *b.Position {
		return false
	}
	if a.Size != nil && *a.Size != *b.Size {
		return false
	}
	return true
}

// Reconcile Push the difference between the current panels and the last stored
// state to the Adapter, then wait for it. Failed calls are logged and retried on
// the next pass since the baseline only advances on success.
func (c *Collection) Reconcile() ([]Change, error) {
	c.mu.Lock()
	if c.strategy != Batch {
		c.mu.Unlock()
		return nil, ErrNotBatch
	}
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	changes := c.planReconcile()
	c.mu.Unlock()

	c.worker.flush()
	return changes, nil
}

// planReconcile queues the calls of one reconcile pass. Caller holds c.mu.
func (c *Collection) planReconcile() []Change {
	current := make([]Note, len(c.panels))
	for i, p := range c.panels {
		current[i] = snapshot(p)
	}
	stored := make(map[string]Note, len(c.baseline))
	for id, note := range c.baseline {
		stored[id] = note
	}

	changes := Diff(stored, current)
	for _, ch := range changes {
		ch := ch
		switch ch.Kind {
		case ChangeCreate:
			c.submitContent(ch.PanelID, ch.Note.Content, ch.Index)
		case ChangeContent:
			c.submitContent(ch.PanelID, ch.Note.Content, ch.Index)
		case ChangePosition:
			c.submitPosition(ch.PanelID, *ch.Note.Position, *ch.Note.Size)
		case ChangeDelete:
			c.submitDelete(ch.PanelID)
		}
	}
	return changes
}
