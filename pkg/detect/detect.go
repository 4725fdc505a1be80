//Package detect loads a pre-trained object detection model onto an accelerator and runs it on raw RGB frames.
package detect

import (
	"os"
	"strings"

	"github.com/chenBenjamin97/edgetpu-capture/pkg/utils"
	"github.com/chenBenjamin97/edgetpu-capture/pkg/video"
	"go.uber.org/zap"
)

//Engine is a loaded detection model. It must be closed when the demo ends.
type Engine interface {
	video.Detector
	Close() error
}

//Config selects and tunes the inference backend
type Config struct {
	Backend   string
	ModelPath string
	//ConfigPath is the network description some OpenCV model formats need next to the weights
	ConfigPath string
	EdgeTPU    bool
	Threads    int
	Threshold  float32
	//InputWidth and InputHeight are only used by the OpenCV backend, TFLite models carry their own input shape
	InputWidth  int
	InputHeight int
	Scale       float64
	Mean        float64
}

//Open loads cfg.ModelPath with the configured backend
func Open(cfg Config, log *zap.SugaredLogger) (Engine, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.ModelPath == "" {
		return nil, utils.ResourceError(nil, "detect.Open: no model given")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, utils.ResourceError(err, "detect.Open: model '%s'", cfg.ModelPath)
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = utils.DefaultScoreThreshold
	}

	switch strings.ToLower(cfg.Backend) {
	case "", utils.BackendTFLite:
		return newTFLiteEngine(cfg, log)
	case utils.BackendOpenCV:
		return newOpenCVEngine(cfg, log)
	default:
		return nil, utils.ResourceError(nil, "detect.Open: unknown backend '%s'", cfg.Backend)
	}
}
