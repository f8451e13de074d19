package panels

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// GestureState The state of a panel's pointer interaction
type GestureState int

const (
	Idle GestureState = iota
	Dragging
	Resizing
)

func (s GestureState) String() string {
	switch s {
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	default:
		return "idle"
	}
}

// Region The part of a panel a pointer-down landed on
type Region string

const (
	// RegionHeader The drag handle
	RegionHeader Region = "header"
	// RegionContent The text entry area. Pointer-downs here never start a gesture.
	RegionContent Region = "content"
	// RegionResize The bottom-right resize handle
	RegionResize Region = "resize"
)

// PointerCapture Grants the pointer stream to at most one engine at a time.
// Acquiring it is the equivalent of attaching move/up listeners for the lifetime
// of a gesture, releasing it detaches them.
type PointerCapture struct {
	mu    sync.Mutex
	owner *Engine
}

// NewPointerCapture Create an unowned capture
func NewPointerCapture() *PointerCapture {
	return &PointerCapture{}
}

func (pc *PointerCapture) acquire(e *Engine) bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.owner != nil && pc.owner != e {
		return false
	}
	pc.owner = e
	return true
}

func (pc *PointerCapture) release(e *Engine) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.owner == e {
		pc.owner = nil
	}
}

// Owner The engine currently holding the pointer, or nil
func (pc *PointerCapture) Owner() *Engine {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.owner
}

// engineOwner is what an Engine needs from the collection holding its panel.
type engineOwner interface {
	geometry(panelID string) (Point, Size, bool)
	viewport() Viewport
	limits() Limits
	applyGeometry(panelID string, position Point, size Size)
	commitGeometry(panelID string)
}

// Engine Turns drag and resize gestures into geometry for one panel.
// An engine is driven from a single goroutine; the host serializes events.
type Engine struct {
	panelID string
	owner   engineOwner
	capture *PointerCapture

	state        GestureState
	dragAnchor   Point
	resizeAnchor Point
	initialSize  Size
}

func newEngine(panelID string, owner engineOwner, capture *PointerCapture) *Engine {
	return &Engine{panelID: panelID, owner: owner, capture: capture}
}

// PanelID The panel this engine moves
func (e *Engine) PanelID() string {
	return e.panelID
}

// State The current gesture state
func (e *Engine) State() GestureState {
	return e.state
}

// PointerDown Start a drag on the header or a resize on the handle.
// Returns false when no gesture was started.
func (e *Engine) PointerDown(region Region, pointer Point) bool {
	if e.state != Idle {
		return false
	}
	if region != RegionHeader && region != RegionResize {
		return false
	}
	position, size, ok := e.owner.geometry(e.panelID)
	if !ok {
		return false
	}
	if !e.capture.acquire(e) {
		log.Debug("Pointer is captured by another panel, ignoring pointer-down on ", e.panelID)
		return false
	}

	if region == RegionHeader {
		e.state = Dragging
		e.dragAnchor = pointer.Sub(position)
	} else {
		e.state = Resizing
		e.resizeAnchor = pointer
		e.initialSize = size
	}
	log.Debugf("Panel %s is now %s", e.panelID, e.state)
	return true
}

// PointerMove Update the panel geometry for the active gesture.
// Returns the new geometry and whether a gesture consumed the event.
func (e *Engine) PointerMove(pointer Point) (Point, Size, bool) {
	if e.state == Idle {
		return Point{}, Size{}, false
	}
	position, size, ok := e.owner.geometry(e.panelID)
	if !ok {
		e.end()
		return Point{}, Size{}, false
	}

	switch e.state {
	case Dragging:
		position = ClampPosition(pointer.Sub(e.dragAnchor), size, e.owner.viewport())
	case Resizing:
		delta := pointer.Sub(e.resizeAnchor)
		size = e.owner.limits().ClampSize(Size{
			Width:  e.initialSize.Width + delta.X,
			Height: e.initialSize.Height + delta.Y,
		})
	}
	e.owner.applyGeometry(e.panelID, position, size)
	return position, size, true
}

// PointerUp End the active gesture and commit the resulting geometry.
func (e *Engine) PointerUp() bool {
	if e.state == Idle {
		return false
	}
	e.end()
	e.owner.commitGeometry(e.panelID)
	return true
}

// end returns to Idle and detaches from the pointer stream.
func (e *Engine) end() {
	e.state = Idle
	e.capture.release(e)
}
