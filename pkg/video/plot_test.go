package video

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/chenBenjamin97/edgetpu-capture/pkg/labels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundingBoxRect(t *testing.T) {
	size := image.Pt(300, 200)
	cases := []struct {
		box  BoundingBox
		want image.Rectangle
	}{
		{BoundingBox{0.25, 0.5, 0.75, 1}, image.Rect(75, 100, 225, 200)},
		{BoundingBox{0, 0, 1, 1}, image.Rect(0, 0, 300, 200)},
		{BoundingBox{0.5, 0.5, 0.5, 0.5}, image.Rect(150, 100, 150, 100)},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.box.Rect(size))
	}

	box := BoundingBox{0.125, 0.375, 0.625, 0.875}
	for _, size := range []image.Point{{320, 240}, {640, 480}, {16, 8}} {
		r := box.Rect(size)
		assert.Equal(t, int(0.125*float64(size.X)), r.Min.X)
		assert.Equal(t, int(0.375*float64(size.Y)), r.Min.Y)
		assert.Equal(t, int(0.625*float64(size.X)), r.Max.X)
		assert.Equal(t, int(0.875*float64(size.Y)), r.Max.Y)
	}
}

func TestPaletteIsPeriodic(t *testing.T) {
	p := DefaultPalette()
	require.Len(t, p, 10)
	for id := 0; id < 10; id++ {
		for k := 1; k < 5; k++ {
			assert.Equal(t, p.For(id), p.For(id+10*k))
		}
		assert.Equal(t, uint8(80), p.For(id).A)
	}
	assert.Equal(t, color.NRGBA{255, 0, 0, 80}, p.For(0))
	assert.Equal(t, color.NRGBA{63, 63, 127, 80}, p.For(29))
	assert.Equal(t, p.For(9), p.For(-1))
}

func TestDefaultPaletteIsACopy(t *testing.T) {
	p := DefaultPalette()
	p[0] = color.NRGBA{1, 2, 3, 4}
	assert.Equal(t, color.NRGBA{255, 0, 0, 80}, DefaultPalette()[0])
}

func TestRenderOverlayEmpty(t *testing.T) {
	overlay := RenderOverlay(image.Pt(40, 30), nil, DefaultPalette(), nil)
	assert.Equal(t, image.Rect(0, 0, 40, 30), overlay.Bounds())
	for _, v := range overlay.Pix {
		require.Zero(t, v)
	}
}

func TestRenderOverlayCompositesInOrder(t *testing.T) {
	size := image.Pt(100, 100)
	first := Detection{LabelID: 0, Box: BoundingBox{0, 0, 0.6, 0.6}}
	second := Detection{LabelID: 1, Box: BoundingBox{0.4, 0.4, 1, 1}}

	overlay := RenderOverlay(size, []Detection{first, second}, DefaultPalette(), nil)

	assert.Equal(t, color.NRGBA{255, 0, 0, 80}, overlay.NRGBAAt(10, 10))
	assert.Equal(t, color.NRGBA{0, 255, 0, 80}, overlay.NRGBAAt(90, 90))

	both := overlay.NRGBAAt(50, 50)
	assert.Greater(t, both.A, uint8(80))
	//the later rectangle sits on top
	assert.Greater(t, both.G, both.R)
	assert.Zero(t, both.B)

	assert.Equal(t, color.NRGBA{}, overlay.NRGBAAt(90, 10))
}

func TestRenderOverlayClipsToFrame(t *testing.T) {
	size := image.Pt(50, 50)
	d := Detection{LabelID: 2, Box: BoundingBox{0.8, 0.8, 1, 1}}

	overlay := RenderOverlay(size, []Detection{d}, DefaultPalette(), nil)
	assert.Equal(t, image.Rect(0, 0, 50, 50), overlay.Bounds())
	assert.Equal(t, color.NRGBA{0, 0, 255, 80}, overlay.NRGBAAt(49, 49))
}

func TestRenderOverlayWritesLabel(t *testing.T) {
	size := image.Pt(200, 200)
	d := Detection{LabelID: 3, Box: BoundingBox{0, 0, 1, 1}}

	plain := RenderOverlay(size, []Detection{d}, DefaultPalette(), nil)
	named := RenderOverlay(size, []Detection{d}, DefaultPalette(), labels.Table{3: "person"})

	white := 0
	for y := 0; y < 16; y++ {
		for x := 0; x < 60; x++ {
			assert.Equal(t, color.NRGBA{127, 127, 0, 80}, plain.NRGBAAt(x, y))
			if named.NRGBAAt(x, y) == labelTextColor {
				white++
			}
		}
	}
	assert.Positive(t, white)
	//text stays in the corner
	assert.Equal(t, color.NRGBA{127, 127, 0, 80}, named.NRGBAAt(100, 100))
}

func TestAnnotation(t *testing.T) {
	assert.Equal(t, "3 objects detected.\n12.34ms", Annotation(3, 12340*time.Microsecond))
	assert.Equal(t, "1 objects detected.\n0.50ms", Annotation(1, 500*time.Microsecond))
}
