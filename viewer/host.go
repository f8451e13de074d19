package viewer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	log "github.com/sirupsen/logrus"

	"notescope/panels"
)

var (
	// ErrNoImages Open was called without images
	ErrNoImages = errors.New("viewer needs at least one image")
	// ErrBadIndex The start index is outside the image list
	ErrBadIndex = errors.New("start index out of range")
	// ErrClosed The viewer is not open
	ErrClosed = errors.New("viewer is closed")
)

// Keys handled by HandleKey
const (
	KeyLeft   = "ArrowLeft"
	KeyRight  = "ArrowRight"
	KeyEscape = "Escape"
)

// Options Configure a Host
type Options struct {
	Adapter  panels.Adapter
	Viewport panels.Viewport
	Limits   panels.Limits
	Strategy panels.Strategy
	// OnNavigate is called after the active image changed
	OnNavigate func(index int, imageKey string)
	// OnClose is called once the viewer closed
	OnClose func()
	// Rand and NewID are handed to every collection
	Rand  *rand.Rand
	NewID func() string
}

// Host Shows one image of an ordered list and owns the panel collection of that image
type Host struct {
	mu      sync.Mutex
	opts    Options
	capture *panels.PointerCapture

	images []string
	index  int
	active *panels.Collection
	// supplied holds notes handed to Open for images not shown yet.
	supplied map[string][]panels.Note
	// kept holds the collections of images left during this session, so navigating
	// back restores their panels and what is known to be stored.
	kept map[string]panels.State
	open bool
}

// NewHost Create a closed viewer
func NewHost(opts Options) *Host {
	if opts.Limits == (panels.Limits{}) {
		opts.Limits = panels.DefaultLimits()
	}
	return &Host{
		opts:    opts,
		capture:  panels.NewPointerCapture(),
		supplied: make(map[string][]panels.Note),
		kept:     make(map[string]panels.State),
	}
}

// Open Start viewing images at startIndex. notes optionally supplies the notes of
// some images; the others are loaded from the adapter.
func (h *Host) Open(ctx context.Context, images []string, startIndex int, notes map[string][]panels.Note) error {
	if len(images) == 0 {
		return ErrNoImages
	}
	if startIndex < 0 || startIndex >= len(images) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrBadIndex, startIndex, len(images))
	}

	h.mu.Lock()
	if h.open {
		h.teardown()
	}
	h.images = append([]string(nil), images...)
	h.supplied = make(map[string][]panels.Note, len(notes))
	for key, n := range notes {
		h.supplied[key] = n
	}
	h.kept = make(map[string]panels.State)
	h.index = startIndex
	h.open = true
	h.mount(ctx)
	h.mu.Unlock()

	log.Info(fmt.Sprintf("Opened viewer on %d images at %d", len(images), startIndex))
	return nil
}

// mount creates the collection of the current image. Caller holds h.mu.
func (h *Host) mount(ctx context.Context) {
	key := h.images[h.index]
	c := panels.NewCollection(panels.Options{
		ImageKey: key,
		Viewport: h.opts.Viewport,
		Limits:   h.opts.Limits,
		Strategy: h.opts.Strategy,
		Adapter:  h.opts.Adapter,
		Capture:  h.capture,
		Rand:     h.opts.Rand,
		NewID:    h.opts.NewID,
	})

	h.active = c
	if st, ok := h.kept[key]; ok {
		c.Restore(st)
		return
	}
	notes, ok := h.supplied[key]
	if !ok && h.opts.Adapter != nil {
		var err error
		notes, err = h.opts.Adapter.ListByImage(ctx, key)
		if err != nil {
			log.WithField("image", key).Warn("Loading notes failed: ", err)
			notes = nil
		}
	}
	c.Initialize(notes)
}

// teardown flushes and drops the active collection. Caller holds h.mu.
func (h *Host) teardown() {
	if h.active == nil {
		return
	}
	if err := h.active.Close(); err != nil && !errors.Is(err, panels.ErrClosed) {
		log.Warn("Closing panel collection failed: ", err)
	}
	key := h.active.ImageKey()
	h.kept[key] = h.active.State()
	delete(h.supplied, key)
	h.active = nil
}

// Navigate Switch to another image. Out of range targets are ignored.
func (h *Host) Navigate(ctx context.Context, toIndex int) (bool, error) {
	return h.navigate(ctx, func(int) int { return toIndex })
}

// navigate moves to target(current index), computed under the lock so
// concurrent relative moves each start from the index the previous one left.
func (h *Host) navigate(ctx context.Context, target func(current int) int) (bool, error) {
	h.mu.Lock()
	if !h.open {
		h.mu.Unlock()
		return false, ErrClosed
	}
	toIndex := target(h.index)
	if toIndex < 0 || toIndex >= len(h.images) || toIndex == h.index {
		h.mu.Unlock()
		return false, nil
	}
	h.teardown()
	h.index = toIndex
	h.mount(ctx)
	key := h.images[toIndex]
	onNavigate := h.opts.OnNavigate
	h.mu.Unlock()

	log.Debugf("Viewer moved to image %d (%s)", toIndex, key)
	if onNavigate != nil {
		onNavigate(toIndex, key)
	}
	return true, nil
}

// Close Flush the active collection and stop viewing
func (h *Host) Close() error {
	h.mu.Lock()
	if !h.open {
		h.mu.Unlock()
		return ErrClosed
	}
	h.teardown()
	h.open = false
	onClose := h.opts.OnClose
	h.mu.Unlock()

	log.Info("Closed viewer")
	if onClose != nil {
		onClose()
	}
	return nil
}

// HandleKey Map arrow keys to navigation and Escape to Close. Arrows are left to
// the text cursor while a text entry has focus.
func (h *Host) HandleKey(ctx context.Context, key string, textFocused bool) (bool, error) {
	switch key {
	case KeyEscape:
		return true, h.Close()
	case KeyLeft, KeyRight:
		if textFocused {
			return false, nil
		}
		step := 1
		if key == KeyLeft {
			step = -1
		}
		return h.step(ctx, step)
	}
	return false, nil
}

// HandleScroll Scroll down for the next image, up for the previous one
func (h *Host) HandleScroll(ctx context.Context, deltaY float64, textFocused bool) (bool, error) {
	if textFocused || deltaY == 0 {
		return false, nil
	}
	if deltaY > 0 {
		return h.step(ctx, 1)
	}
	return h.step(ctx, -1)
}

func (h *Host) step(ctx context.Context, delta int) (bool, error) {
	return h.navigate(ctx, func(current int) int { return current + delta })
}

// SetViewport Record the client's new viewport size
func (h *Host) SetViewport(vp panels.Viewport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opts.Viewport = vp
	if h.active != nil {
		h.active.SetViewport(vp)
	}
}

// Viewport The last known viewport
func (h *Host) Viewport() panels.Viewport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opts.Viewport
}

// IsOpen Whether the viewer shows an image
func (h *Host) IsOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.open
}

// Index The position of the active image
func (h *Host) Index() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index
}

// Images The ordered image list
func (h *Host) Images() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.images...)
}

// Collection The panel collection of the active image
func (h *Host) Collection() (*panels.Collection, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.open || h.active == nil {
		return nil, ErrClosed
	}
	return h.active, nil
}

// PointerDown Start a gesture on a panel of the active image
func (h *Host) PointerDown(panelID string, region panels.Region, pointer panels.Point) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.open {
		return false, ErrClosed
	}
	e, err := h.active.Engine(panelID)
	if err != nil {
		return false, err
	}
	return e.PointerDown(region, pointer), nil
}

// PointerMove Feed a pointer move to the panel holding the pointer, if any
func (h *Host) PointerMove(pointer panels.Point) (string, panels.Point, panels.Size, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e := h.capture.Owner()
	if e == nil {
		return "", panels.Point{}, panels.Size{}, false
	}
	position, size, ok := e.PointerMove(pointer)
	return e.PanelID(), position, size, ok
}

// PointerUp End the running gesture, wherever the pointer is
func (h *Host) PointerUp() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e := h.capture.Owner()
	if e == nil {
		return "", false
	}
	return e.PanelID(), e.PointerUp()
}
