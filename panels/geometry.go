package panels

// Point A coordinate in viewport pixels
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Sub Component-wise difference p - q
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Add Component-wise sum p + q
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Size Width and height in pixels
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Viewport The visible area panels must stay inside
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Limits Bounds applied to panel sizes and content
type Limits struct {
	MinWidth         int
	MaxWidth         int
	MinHeight        int
	MaxHeight        int
	DefaultSize      Size
	MaxContentLength int
}

// DefaultLimits The limits used by the note panels of the web client
func DefaultLimits() Limits {
	return Limits{
		MinWidth:         250,
		MaxWidth:         600,
		MinHeight:        200,
		MaxHeight:        800,
		DefaultSize:      Size{Width: 350, Height: 300},
		MaxContentLength: 500,
	}
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampPosition Keep a panel of the given size fully inside the viewport.
// When the panel is larger than the viewport it is pinned to the origin.
func ClampPosition(p Point, s Size, vp Viewport) Point {
	return Point{
		X: clampInt(p.X, 0, vp.Width-s.Width),
		Y: clampInt(p.Y, 0, vp.Height-s.Height),
	}
}

// ClampSize Bound a size to the configured min/max range
func (l Limits) ClampSize(s Size) Size {
	return Size{
		Width:  clampInt(s.Width, l.MinWidth, l.MaxWidth),
		Height: clampInt(s.Height, l.MinHeight, l.MaxHeight),
	}
}

// TruncateContent Cut text down to MaxContentLength characters
func (l Limits) TruncateContent(text string) string {
	if l.MaxContentLength <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= l.MaxContentLength {
		return text
	}
	return string(runes[:l.MaxContentLength])
}
