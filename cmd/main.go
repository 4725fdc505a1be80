package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chenBenjamin97/edgetpu-capture/pkg/api"
	"github.com/chenBenjamin97/edgetpu-capture/pkg/camera"
	"github.com/chenBenjamin97/edgetpu-capture/pkg/config"
	"github.com/chenBenjamin97/edgetpu-capture/pkg/detect"
	"github.com/chenBenjamin97/edgetpu-capture/pkg/labels"
	"github.com/chenBenjamin97/edgetpu-capture/pkg/logging"
	"github.com/chenBenjamin97/edgetpu-capture/pkg/video"
	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load("object_detection_capture", args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}

	log, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not create logger, got '%v'\n", err)
		return exitFailure
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := demo(ctx, cfg, log); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Infow("Interrupted")
			return exitInterrupted
		}
		log.Errorw("Demo failed", "error", err)
		return exitFailure
	}
	return exitOK
}

//demo wires the label table, accelerator and camera into a pipeline and runs it once
func demo(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) error {
	names, err := labels.Load(cfg.Label)
	if err != nil {
		return err
	}
	log.Infow("Labels loaded", "path", cfg.Label, "count", len(names))

	engine, err := detect.Open(detect.Config{
		Backend:     cfg.Detector.Backend,
		ModelPath:   cfg.Model,
		ConfigPath:  cfg.Detector.Config,
		EdgeTPU:     cfg.Detector.EdgeTPU,
		Threads:     cfg.Detector.Threads,
		Threshold:   float32(cfg.Detector.Threshold),
		InputWidth:  cfg.Detector.InputWidth,
		InputHeight: cfg.Detector.InputHeight,
		Scale:       cfg.Detector.Scale,
		Mean:        cfg.Detector.Mean,
	}, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Warnw("Could not release detector", "error", err)
		}
	}()

	cam, err := camera.Open(camera.Config{
		Device:     cfg.Camera.Device,
		Width:      cfg.Camera.Width,
		Height:     cfg.Camera.Height,
		FPS:        cfg.Camera.FPS,
		Window:     cfg.Camera.Window,
		Fullscreen: cfg.Camera.Fullscreen,
	}, log)
	if err != nil {
		return err
	}

	pipelineCfg := video.PipelineConfig{
		Duration: cfg.Duration,
		Pacing:   cfg.Pacing,
		TopK:     cfg.Detector.TopK,
		Palette:  video.DefaultPalette(),
		Labels:   names,
	}

	if cfg.HTTP.Port != "" {
		monitor := api.NewMonitor(names)
		pipelineCfg.OnIteration = monitor.Observe

		gin.SetMode(gin.ReleaseMode)
		srv := &http.Server{Addr: ":" + cfg.HTTP.Port, Handler: api.SetRouter(monitor)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warnw("Status monitor stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		log.Infow("Status monitor listening", "port", cfg.HTTP.Port)
	}

	pipeline, err := video.NewPipeline(cam, engine, pipelineCfg, log)
	if err != nil {
		cam.Close()
		return err
	}

	return pipeline.Run(ctx)
}
