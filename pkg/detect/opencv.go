package detect

import (
	"image"
	"sync"

	"github.com/chenBenjamin97/edgetpu-capture/pkg/detect/ssd"
	"github.com/chenBenjamin97/edgetpu-capture/pkg/utils"
	"github.com/chenBenjamin97/edgetpu-capture/pkg/video"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

//default input of the MobileNet SSD family when the config does not say otherwise
const (
	defaultOpenCVInputWidth  = 300
	defaultOpenCVInputHeight = 300
)

//opencvEngine runs an SSD network with a DetectionOutput layer through OpenCV's dnn module on the CPU
type opencvEngine struct {
	mu        sync.Mutex
	net       gocv.Net
	closed    bool
	size      image.Point
	threshold float32
	scale     float64
	mean      gocv.Scalar
}

func newOpenCVEngine(cfg Config, log *zap.SugaredLogger) (*opencvEngine, error) {
	net := gocv.ReadNet(cfg.ModelPath, cfg.ConfigPath)
	if net.Empty() {
		return nil, utils.ResourceError(nil, "detect: OpenCV could not load model '%s' (config '%s')", cfg.ModelPath, cfg.ConfigPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	size := image.Pt(cfg.InputWidth, cfg.InputHeight)
	if size.X <= 0 || size.Y <= 0 {
		size = image.Pt(defaultOpenCVInputWidth, defaultOpenCVInputHeight)
	}
	scale := cfg.Scale
	if scale == 0 {
		scale = 1.0
	}

	log.Infow("detect: model loaded", "model", cfg.ModelPath, "backend", utils.BackendOpenCV, "input_size", size)

	return &opencvEngine{
		net:       net,
		size:      size,
		threshold: cfg.Threshold,
		scale:     scale,
		mean:      gocv.NewScalar(cfg.Mean, cfg.Mean, cfg.Mean, 0),
	}, nil
}

func (e *opencvEngine) InputSize() image.Point {
	return e.size
}

func (e *opencvEngine) Detect(frame []byte, topK int) ([]video.Detection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, utils.DeviceError(nil, "detect: engine closed")
	}

	img, err := gocv.NewMatFromBytes(e.size.Y, e.size.X, gocv.MatTypeCV8UC3, frame)
	if err != nil {
		return nil, utils.DeviceError(err, "detect: frame of %d bytes does not fit %v", len(frame), e.size)
	}
	defer img.Close()

	//the frame already is RGB, no channel swap
	blob := gocv.BlobFromImage(img, e.scale, e.size, e.mean, false, false)
	defer blob.Close()

	e.net.SetInput(blob, "")
	output := e.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, utils.DeviceError(err, "detect: reading network output")
	}

	detections, err := ssd.DetectionOutput(data, e.threshold, topK)
	if err != nil {
		return nil, utils.DeviceError(err, "detect: decoding output")
	}
	return detections, nil
}

func (e *opencvEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.net.Close()
}
