package overlay

import (
	"errors"
	"image"
	"image/color"
	"strconv"

	"golang.org/x/image/draw"

	"notescope/panels"
)

// headerHeight Height of a panel's drag handle in viewport pixels
const headerHeight = 52

// paletteHex The header colors of the panel palette
var paletteHex = map[string]Hex{
	"blue":    "3b82f6",
	"emerald": "10b981",
	"amber":   "f59e0b",
	"rose":    "f43f5e",
	"violet":  "8b5cf6",
	"cyan":    "06b6d4",
}

var (
	background = color.RGBA{R: 0x11, G: 0x18, B: 0x27, A: 0xff}
	body       = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xe6}
	border     = color.RGBA{R: 0xe5, G: 0xe7, B: 0xeb, A: 0xff}
	handle     = color.RGBA{R: 0x94, G: 0xa3, B: 0xb8, A: 0xff}
)

type Hex string

// Hex2Color Convert Hex-html colors to color.Color's.
// For instance `ffffff` returns white.
func Hex2Color(hex Hex) (color.Color, error) {
	values, err := strconv.ParseUint(string(hex), 16, 32)
	if err != nil || len(hex) != 6 {
		return color.RGBA{}, errors.New("cannot parse RGB values " + string(hex))
	}
	return color.RGBA{
		R: uint8(values >> 16),
		G: uint8((values >> 8) & 0xFF),
		B: uint8(values & 0xFF),
		A: 0xff,
	}, nil
}

// HeaderColor The header color of a palette entry, blue for unknown names
func HeaderColor(name string) color.Color {
	hex, ok := paletteHex[name]
	if !ok {
		hex = paletteHex["blue"]
	}
	c, _ := Hex2Color(hex)
	return c
}

// Render Draw the panel layout of a viewport. The layout is drawn straight at
// output scale, so the longer side is at most maxSide; maxSide <= 0 keeps the
// viewport size.
func Render(vp panels.Viewport, ps []panels.Panel, maxSide int) (image.Image, error) {
	if vp.Width <= 0 || vp.Height <= 0 {
		return nil, errors.New("viewport has no area")
	}
	outputSize, s := fit(vp, maxSide)
	canvas := image.NewRGBA(image.Rect(0, 0, outputSize.X, outputSize.Y))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)

	for _, p := range ps {
		drawPanel(canvas, p, s)
	}
	return canvas, nil
}

// scaler maps viewport pixels to output pixels by num/den.
type scaler struct {
	num, den int
}

func (s scaler) apply(v int) int {
	return int(int64(v) * int64(s.num) / int64(s.den))
}

// atLeastOne scales a decoration size, never below one pixel.
func (s scaler) atLeastOne(v int) int {
	if scaled := s.apply(v); scaled > 0 {
		return scaled
	}
	return 1
}

func drawPanel(canvas *image.RGBA, p panels.Panel, s scaler) {
	r := image.Rect(
		s.apply(p.Position.X),
		s.apply(p.Position.Y),
		s.apply(p.Position.X+p.Size.Width),
		s.apply(p.Position.Y+p.Size.Height),
	)
	r = r.Intersect(canvas.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(canvas, r, &image.Uniform{C: border}, image.Point{}, draw.Src)
	inner := r.Inset(s.atLeastOne(2))
	draw.Draw(canvas, inner, &image.Uniform{C: body}, image.Point{}, draw.Over)

	header := inner
	if h := s.atLeastOne(headerHeight); header.Dy() > h {
		header.Max.Y = header.Min.Y + h
	}
	draw.Draw(canvas, header, &image.Uniform{C: HeaderColor(p.Color)}, image.Point{}, draw.Src)

	g := s.atLeastOne(16)
	grip := image.Rect(r.Max.X-g, r.Max.Y-g, r.Max.X, r.Max.Y).Intersect(r)
	draw.Draw(canvas, grip, &image.Uniform{C: handle}, image.Point{}, draw.Src)
}

// fit returns the output size for a viewport bounded by maxSide and the
// scale that maps viewport pixels onto it.
func fit(vp panels.Viewport, maxSide int) (image.Point, scaler) {
	longest := vp.Width
	if vp.Height > longest {
		longest = vp.Height
	}
	if maxSide <= 0 || longest <= maxSide {
		return image.Point{X: vp.Width, Y: vp.Height}, scaler{num: 1, den: 1}
	}
	s := scaler{num: maxSide, den: longest}
	w, h := s.apply(vp.Width), s.apply(vp.Height)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return image.Point{X: w, Y: h}, s
}
