//Package camera drives a V4L/USB camera through OpenCV: continuous capture resampled for the detector
//and a live preview window with the detection overlay and status text composited on top.
package camera

import (
	"context"
	"image"
	"image/color"
	"strings"
	"sync"

	"github.com/chenBenjamin97/edgetpu-capture/pkg/utils"
	"github.com/chenBenjamin97/edgetpu-capture/pkg/video"
	"github.com/disintegration/imaging"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

var annotationColor = color.RGBA{255, 255, 255, 0}

//Config describes the capture device and its preview window
type Config struct {
	Device     int
	Width      int
	Height     int
	FPS        float64
	Window     string
	Fullscreen bool
}

//Camera is an opened capture device. It implements video.Camera.
type Camera struct {
	cfg Config
	log *zap.SugaredLogger

	mu      sync.Mutex
	closed  bool
	capture *gocv.VideoCapture
	window  *gocv.Window

	//reused for every frame
	frame   gocv.Mat
	resized gocv.Mat
	rgb     gocv.Mat

	overlay       *image.NRGBA
	scaledOverlay *image.NRGBA
	annotation    []string
}

//Open opens the capture device and asks it for the configured resolution and framerate
func Open(cfg Config, log *zap.SugaredLogger) (*Camera, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = utils.CaptureWidth, utils.CaptureHeight
	}
	if cfg.FPS <= 0 {
		cfg.FPS = utils.CaptureFPS
	}
	if cfg.Window == "" {
		cfg.Window = "object detection"
	}

	capture, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, utils.ResourceError(err, "camera.Open: device %d", cfg.Device)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, utils.ResourceError(nil, "camera.Open: device %d is not available", cfg.Device)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	capture.Set(gocv.VideoCaptureFPS, cfg.FPS)

	log.Infow("camera: opened",
		"device", cfg.Device,
		"width", capture.Get(gocv.VideoCaptureFrameWidth),
		"height", capture.Get(gocv.VideoCaptureFrameHeight),
		"fps", capture.Get(gocv.VideoCaptureFPS),
	)

	return &Camera{
		cfg:     cfg,
		log:     log,
		capture: capture,
		frame:   gocv.NewMat(),
		resized: gocv.NewMat(),
		rgb:     gocv.NewMat(),
	}, nil
}

//StartPreview opens the preview window, frames are shown in it as they are captured
func (c *Camera) StartPreview() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return utils.DeviceError(nil, "camera: closed")
	}
	if c.window != nil {
		return nil
	}

	c.window = gocv.NewWindow(c.cfg.Window)
	if c.cfg.Fullscreen {
		c.window.SetWindowProperty(gocv.WindowPropertyFullscreen, gocv.WindowFullscreen)
	}
	return nil
}

//StopPreview closes the preview window. Stopping a preview that is not running does nothing.
func (c *Camera) StopPreview() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopPreview()
}

func (c *Camera) stopPreview() error {
	if c.window == nil {
		return nil
	}
	err := c.window.Close()
	c.window = nil
	return err
}

//ShowOverlay replaces the overlay drawn over the preview
func (c *Camera) ShowOverlay(overlay *image.NRGBA) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return utils.DeviceError(nil, "camera: closed")
	}
	c.overlay = overlay
	c.scaledOverlay = nil
	return nil
}

//SetAnnotation replaces the status text drawn over the preview
func (c *Camera) SetAnnotation(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.annotation = strings.Split(text, "\n")
}

//Frames returns the camera's frame stream, every frame is resized to size and converted to RGB
func (c *Camera) Frames(size image.Point) (video.FrameStream, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, utils.DeviceError(nil, "camera: invalid frame size %v", size)
	}
	return &frameStream{camera: c, size: size}, nil
}

type frameStream struct {
	camera *Camera
	size   image.Point
}

//Next blocks until the device delivers a frame
func (s *frameStream) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.camera.read(s.size)
}

func (c *Camera) read(size image.Point) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, utils.DeviceError(nil, "camera: closed")
	}
	if ok := c.capture.Read(&c.frame); !ok {
		return nil, utils.DeviceError(nil, "camera: could not read frame from device %d", c.cfg.Device)
	}
	if c.frame.Empty() {
		return nil, utils.DeviceError(nil, "camera: device %d returned an empty frame", c.cfg.Device)
	}

	c.renderPreview()

	gocv.Resize(c.frame, &c.resized, size, 0, 0, gocv.InterpolationLinear)
	gocv.CvtColor(c.resized, &c.rgb, gocv.ColorBGRToRGB)
	return c.rgb.ToBytes(), nil
}

//renderPreview shows the current frame with overlay and annotation in the preview window, the frame itself is not modified
func (c *Camera) renderPreview() {
	if c.window == nil {
		return
	}

	display, err := c.compose()
	if err != nil {
		c.log.Debugw("camera: could not compose preview", "error", err)
		display = c.frame.Clone()
	}
	defer display.Close()

	for i, line := range c.annotation {
		gocv.PutText(&display, line, image.Pt(10, 30+i*30), gocv.FontHersheySimplex, 0.8, annotationColor, 2)
	}

	c.window.IMShow(display)
	c.window.WaitKey(1)
}

//compose returns a new Mat holding the frame with the overlay blended on top
func (c *Camera) compose() (gocv.Mat, error) {
	if c.overlay == nil {
		return c.frame.Clone(), nil
	}

	img, err := c.frame.ToImage()
	if err != nil {
		return gocv.Mat{}, err
	}

	size := img.Bounds().Size()
	if c.scaledOverlay == nil || c.scaledOverlay.Bounds().Size() != size {
		c.scaledOverlay = imaging.Resize(c.overlay, size.X, size.Y, imaging.NearestNeighbor)
	}

	return gocv.ImageToMatRGB(imaging.Overlay(img, c.scaledOverlay, image.Pt(0, 0), 1.0))
}

//Close stops the preview and releases the device, further calls do nothing
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	return multierr.Combine(
		c.stopPreview(),
		c.frame.Close(),
		c.resized.Close(),
		c.rgb.Close(),
		c.capture.Close(),
	)
}
