package video

import (
	"image"
	"time"

	"github.com/chenBenjamin97/edgetpu-capture/pkg/utils"
)

//BoundingBox holds two corners of a detected object as fractions of the frame's width and height.
//(X0,Y0) is the top-left corner, (X1,Y1) the bottom-right one.
type BoundingBox struct {
	X0 float32
	Y0 float32
	X1 float32
	Y1 float32
}

//Rect maps the fractional box onto a frame of given size, each corner becomes (x*W, y*H)
func (b BoundingBox) Rect(size image.Point) image.Rectangle {
	return image.Rect(
		utils.ScaleCoord(b.X0, size.X),
		utils.ScaleCoord(b.Y0, size.Y),
		utils.ScaleCoord(b.X1, size.X),
		utils.ScaleCoord(b.Y1, size.Y),
	)
}

//Detection is one object the accelerator found in a single frame
type Detection struct {
	LabelID int
	Score   float32
	Box     BoundingBox
}

//Report describes one finished loop iteration
type Report struct {
	Iteration  int
	Detections []Detection
	Inference  time.Duration
	Annotation string       //empty when the iteration had no detections
	Overlay    *image.NRGBA //nil when the displayed overlay was left untouched
	FrameSize  image.Point
}
