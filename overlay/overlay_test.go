package overlay

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notescope/panels"
)

func TestHex2Color(t *testing.T) {
	c, err := Hex2Color("ffffff")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, c)

	_, err = Hex2Color("zz")
	assert.Error(t, err)
}

func TestEveryPaletteEntryHasAColor(t *testing.T) {
	for _, name := range panels.Palette {
		_, ok := paletteHex[name]
		assert.True(t, ok, name)
	}
	assert.Equal(t, HeaderColor("blue"), HeaderColor("not-a-color"))
}

func TestRenderDrawsPanels(t *testing.T) {
	vp := panels.Viewport{Width: 1000, Height: 800}
	ps := []panels.Panel{{
		Position: panels.Point{X: 100, Y: 100},
		Size:     panels.Size{Width: 350, Height: 300},
		Color:    "rose",
	}}
	img, err := Render(vp, ps, 0)
	require.NoError(t, err)
	assert.Equal(t, 1000, img.Bounds().Dx())
	assert.Equal(t, 800, img.Bounds().Dy())

	assert.Equal(t, color.RGBAModel.Convert(HeaderColor("rose")), color.RGBAModel.Convert(img.At(200, 110)))
	assert.Equal(t, color.RGBAModel.Convert(background), color.RGBAModel.Convert(img.At(10, 10)))
	assert.Equal(t, color.RGBAModel.Convert(handle), color.RGBAModel.Convert(img.At(445, 395)))
}

func TestRenderScalesDown(t *testing.T) {
	img, err := Render(panels.Viewport{Width: 1600, Height: 900}, nil, 400)
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 225, img.Bounds().Dy())

	_, err = Render(panels.Viewport{}, nil, 400)
	assert.Error(t, err)
}

func TestRenderDrawsAtOutputScale(t *testing.T) {
	vp := panels.Viewport{Width: 2000, Height: 1000}
	ps := []panels.Panel{{
		Position: panels.Point{X: 200, Y: 200},
		Size:     panels.Size{Width: 400, Height: 400},
		Color:    "rose",
	}}
	img, err := Render(vp, ps, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1000, img.Bounds().Dx())
	assert.Equal(t, 500, img.Bounds().Dy())
	assert.Equal(t, color.RGBAModel.Convert(HeaderColor("rose")), color.RGBAModel.Convert(img.At(150, 110)))
	assert.Equal(t, color.RGBAModel.Convert(background), color.RGBAModel.Convert(img.At(50, 50)))
}

func TestRenderHugeViewportStaysSmall(t *testing.T) {
	vp := panels.Viewport{Width: 2000000000, Height: 2000000000}
	ps := []panels.Panel{{Position: panels.Point{X: 1000000000}, Size: panels.Size{Width: 350, Height: 300}}}
	img, err := Render(vp, ps, 64)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 64, img.Bounds().Dy())
}
