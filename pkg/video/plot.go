package video

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/chenBenjamin97/edgetpu-capture/pkg/labels"
	"github.com/chenBenjamin97/edgetpu-capture/pkg/utils"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var labelTextColor = color.NRGBA{255, 255, 255, 255}

//Palette is the ordered list of colors detection rectangles are filled with
type Palette []color.NRGBA

//DefaultPalette returns a new copy of the demo's ten translucent colors
func DefaultPalette() Palette {
	return Palette{
		{255, 0, 0, utils.OverlayAlpha},
		{0, 255, 0, utils.OverlayAlpha},
		{0, 0, 255, utils.OverlayAlpha},
		{127, 127, 0, utils.OverlayAlpha},
		{127, 0, 127, utils.OverlayAlpha},
		{0, 127, 127, utils.OverlayAlpha},
		{127, 127, 127, utils.OverlayAlpha},
		{127, 63, 63, utils.OverlayAlpha},
		{63, 127, 63, utils.OverlayAlpha},
		{63, 63, 127, utils.OverlayAlpha},
	}
}

//For returns the color of given label id. Ids that differ by a multiple of len(p) share a color.
func (p Palette) For(labelID int) color.NRGBA {
	n := len(p)
	return p[((labelID%n)+n)%n]
}

//NewOverlay allocates a fully transparent overlay of given size
func NewOverlay(size image.Point) *image.NRGBA {
	return imaging.New(size.X, size.Y, color.NRGBA{})
}

//RenderOverlay draws every detection, in given order, as a filled translucent rectangle on a fresh overlay.
//Later rectangles are composited over earlier ones. When names has an entry for a detection's label id,
//the name is written at the rectangle's top-left corner.
func RenderOverlay(size image.Point, detections []Detection, palette Palette, names labels.Table) *image.NRGBA {
	overlay := NewOverlay(size)

	for _, d := range detections {
		rect := d.Box.Rect(size)
		if rect.Empty() {
			continue
		}

		fill := imaging.New(rect.Dx(), rect.Dy(), palette.For(d.LabelID))
		overlay = imaging.Overlay(overlay, fill, rect.Min, 1.0)

		if name, ok := names.Name(d.LabelID); ok {
			plotLabel(overlay, rect, name)
		}
	}

	return overlay
}

//plotLabel writes given text inside the top-left corner of rect
func plotLabel(overlay *image.NRGBA, rect image.Rectangle, text string) {
	face := basicfont.Face7x13
	drawer := font.Drawer{
		Dst:  overlay,
		Src:  image.NewUniform(labelTextColor),
		Face: face,
		Dot:  fixed.P(rect.Min.X+2, rect.Min.Y+face.Ascent+1),
	}
	drawer.DrawString(text)
}

//Annotation formats the status line shown over the preview for an iteration with detections
func Annotation(count int, inference time.Duration) string {
	return fmt.Sprintf("%d objects detected.\n%.2fms", count, float64(inference)/float64(time.Millisecond))
}
