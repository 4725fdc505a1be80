package video

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/chenBenjamin97/edgetpu-capture/pkg/labels"
	"github.com/chenBenjamin97/edgetpu-capture/pkg/utils"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

//FrameStream is a lazy, infinite sequence of raw RGB frames. It can not be restarted, ask the Camera for a new one.
type FrameStream interface {
	//Next blocks until the device delivers the next frame
	Next(ctx context.Context) ([]byte, error)
}

//Camera is the capture and display device the pipeline drives
type Camera interface {
	StartPreview() error
	StopPreview() error
	//Frames starts producing frames resampled to given size
	Frames(size image.Point) (FrameStream, error)
	//ShowOverlay replaces the overlay currently composited over the preview
	ShowOverlay(overlay *image.NRGBA) error
	SetAnnotation(text string)
	//Close releases the device
	Close() error
}

//Detector runs synchronous inference on one raw RGB frame
type Detector interface {
	//InputSize is the frame size (width, height) the model expects
	InputSize() image.Point
	//Detect returns at most topK detections ordered by descending confidence
	Detect(frame []byte, topK int) ([]Detection, error)
}

//PipelineConfig holds the loop's tunables. Zero values are replaced by the demo defaults, except Duration.
type PipelineConfig struct {
	Duration    time.Duration
	Pacing      time.Duration
	TopK        int
	Palette     Palette
	Labels      labels.Table
	Clock       clock.Clock
	OnIteration func(Report)
}

type pipelineState int

const (
	stateIdle pipelineState = iota
	statePreviewing
	stateStopped
)

//ErrPipelineUsed is returned by Run when the pipeline already ran, a stopped pipeline can not be restarted
var ErrPipelineUsed = errors.New("pipeline already ran")

//Pipeline is the time-bounded capture -> inference -> overlay loop
type Pipeline struct {
	camera   Camera
	detector Detector
	cfg      PipelineConfig
	log      *zap.SugaredLogger

	mu    sync.Mutex
	state pipelineState
}

//NewPipeline validates cfg and fills in its defaults
func NewPipeline(camera Camera, detector Detector, cfg PipelineConfig, log *zap.SugaredLogger) (*Pipeline, error) {
	if camera == nil || detector == nil {
		return nil, errors.New("NewPipeline: camera and detector are required")
	}
	if cfg.Duration < 0 {
		return nil, errors.New("NewPipeline: duration must not be negative")
	}
	if cfg.Pacing < 0 {
		return nil, errors.New("NewPipeline: pacing must not be negative")
	}
	if cfg.Pacing == 0 {
		cfg.Pacing = utils.DefaultPacing
	}
	if cfg.TopK <= 0 {
		cfg.TopK = utils.DefaultTopK
	}
	if len(cfg.Palette) == 0 {
		cfg.Palette = DefaultPalette()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Pipeline{
		camera:   camera,
		detector: detector,
		cfg:      cfg,
		log:      log,
	}, nil
}

//Run drives the loop until the configured duration elapsed, ctx is cancelled or the camera or detector fails.
//The preview is stopped and the camera closed exactly once on every exit path.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	p.mu.Lock()
	if p.state != stateIdle {
		p.mu.Unlock()
		return ErrPipelineUsed
	}
	p.state = statePreviewing
	p.mu.Unlock()

	defer func() {
		if releaseErr := p.release(); releaseErr != nil {
			if err == nil {
				err = releaseErr
			} else {
				p.log.Warnw("Pipeline: releasing camera failed after an earlier error", "error", releaseErr)
			}
		}
	}()

	size := p.detector.InputSize()
	if size.X <= 0 || size.Y <= 0 {
		return utils.ResourceError(nil, "Pipeline: detector reported invalid input size %v", size)
	}

	if err := p.camera.ShowOverlay(NewOverlay(size)); err != nil {
		return classify(err, "Pipeline: could not add overlay")
	}

	clk := p.cfg.Clock
	start := clk.Now()

	if err := p.camera.StartPreview(); err != nil {
		return classify(err, "Pipeline: could not start preview")
	}

	frames, err := p.camera.Frames(size)
	if err != nil {
		return classify(err, "Pipeline: could not start capture")
	}

	p.log.Infow("Pipeline: started", "input_size", size, "duration", p.cfg.Duration, "top_k", p.cfg.TopK)

	for iteration := 1; ; iteration++ {
		frame, err := frames.Next(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return classify(err, "Pipeline: capture failed on iteration %d", iteration)
		}

		inferenceStart := clk.Now()
		detections, err := p.detector.Detect(frame, p.cfg.TopK)
		inference := clk.Since(inferenceStart)
		if err != nil {
			return classify(err, "Pipeline: inference failed on iteration %d", iteration)
		}

		report := Report{
			Iteration:  iteration,
			Detections: detections,
			Inference:  inference,
			FrameSize:  size,
		}

		//with no detections the previous overlay stays on screen
		if len(detections) > 0 {
			report.Annotation = Annotation(len(detections), inference)
			p.camera.SetAnnotation(report.Annotation)

			report.Overlay = RenderOverlay(size, detections, p.cfg.Palette, p.cfg.Labels)
			if err := p.camera.ShowOverlay(report.Overlay); err != nil {
				return classify(err, "Pipeline: could not update overlay on iteration %d", iteration)
			}
		}

		p.log.Debugw("Pipeline: iteration done",
			"iteration", iteration,
			"detections", len(detections),
			"inference", inference,
		)

		if p.cfg.OnIteration != nil {
			p.cfg.OnIteration(report)
		}

		if elapsed := clk.Since(start); elapsed >= p.cfg.Duration {
			p.log.Infow("Pipeline: time budget reached", "iterations", iteration, "elapsed", elapsed)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(p.cfg.Pacing):
		}
	}
}

//release stops the preview and closes the camera, both are attempted even if the first fails
func (p *Pipeline) release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != statePreviewing {
		return nil
	}
	p.state = stateStopped

	err := multierr.Combine(p.camera.StopPreview(), p.camera.Close())
	if err != nil {
		return utils.DeviceError(err, "Pipeline: could not release camera")
	}

	p.log.Infow("Pipeline: stopped")
	return nil
}

//classify keeps already classified errors as they are and marks the rest as device failures
func classify(err error, format string, args ...interface{}) error {
	if utils.Classified(err) {
		return err
	}
	return utils.DeviceError(err, format, args...)
}
