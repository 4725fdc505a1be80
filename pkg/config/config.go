//Package config merges command line flags, an optional YAML file and EDGETPU_CAPTURE_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/chenBenjamin97/edgetpu-capture/pkg/utils"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "EDGETPU_CAPTURE"

//Config is the demo's complete configuration
type Config struct {
	Model    string
	Label    string
	Duration time.Duration
	Pacing   time.Duration

	Camera   CameraConfig
	Detector DetectorConfig
	Log      LogConfig
	HTTP     HTTPConfig
}

//CameraConfig describes the capture device and preview window
type CameraConfig struct {
	Device     int
	Width      int
	Height     int
	FPS        float64
	Window     string
	Fullscreen bool
}

//DetectorConfig selects the inference backend
type DetectorConfig struct {
	Backend     string
	EdgeTPU     bool
	Threads     int
	Threshold   float64
	TopK        int
	Config      string
	InputWidth  int
	InputHeight int
	Scale       float64
	Mean        float64
}

//LogConfig is handed to logging.New
type LogConfig struct {
	Level  string
	Format string
}

//HTTPConfig enables the status monitor when Port is set
type HTTPConfig struct {
	Port string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("time", utils.DefaultDuration.Seconds())
	v.SetDefault("pipeline.pacing", utils.DefaultPacing)

	v.SetDefault("camera.device", 0)
	v.SetDefault("camera.width", utils.CaptureWidth)
	v.SetDefault("camera.height", utils.CaptureHeight)
	v.SetDefault("camera.fps", utils.CaptureFPS)
	v.SetDefault("camera.window", "object detection")
	v.SetDefault("camera.fullscreen", true)

	v.SetDefault("detector.backend", utils.BackendTFLite)
	v.SetDefault("detector.edgetpu", true)
	v.SetDefault("detector.threads", 4)
	v.SetDefault("detector.threshold", utils.DefaultScoreThreshold)
	v.SetDefault("detector.top_k", utils.DefaultTopK)
	v.SetDefault("detector.scale", 1.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

//NewFlagSet declares the command line surface: --model, --label, --time and --config
func NewFlagSet(name string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.String("model", "", "Path of the detection model.")
	flags.String("label", "", "Path of the labels file.")
	flags.Float64("time", utils.DefaultDuration.Seconds(), "Demonstration time length in sec.")
	flags.String("config", "", "Path of an optional YAML configuration file.")
	return flags
}

//Load parses args and builds a validated Config. pflag.ErrHelp is returned as is when help was requested.
func Load(name string, args []string) (*Config, error) {
	flags := NewFlagSet(name)
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{"model", "label", "time"} {
		if err := v.BindPFlag(key, flags.Lookup(key)); err != nil {
			return nil, err
		}
	}

	if path, _ := flags.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config.Load: could not read '%s', got '%v'", path, err)
		}
	}

	cfg := &Config{
		Model:    v.GetString("model"),
		Label:    v.GetString("label"),
		Duration: time.Duration(v.GetFloat64("time") * float64(time.Second)),
		Pacing:   v.GetDuration("pipeline.pacing"),
		Camera: CameraConfig{
			Device:     v.GetInt("camera.device"),
			Width:      v.GetInt("camera.width"),
			Height:     v.GetInt("camera.height"),
			FPS:        v.GetFloat64("camera.fps"),
			Window:     v.GetString("camera.window"),
			Fullscreen: v.GetBool("camera.fullscreen"),
		},
		Detector: DetectorConfig{
			Backend:     strings.ToLower(v.GetString("detector.backend")),
			EdgeTPU:     v.GetBool("detector.edgetpu"),
			Threads:     v.GetInt("detector.threads"),
			Threshold:   v.GetFloat64("detector.threshold"),
			TopK:        v.GetInt("detector.top_k"),
			Config:      v.GetString("detector.config"),
			InputWidth:  v.GetInt("detector.input_width"),
			InputHeight: v.GetInt("detector.input_height"),
			Scale:       v.GetFloat64("detector.scale"),
			Mean:        v.GetFloat64("detector.mean"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		HTTP: HTTPConfig{
			Port: v.GetString("http.port"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

//Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var problems []string

	if c.Model == "" {
		problems = append(problems, "--model is required")
	}
	if c.Duration < 0 {
		problems = append(problems, fmt.Sprintf("--time must be >= 0, got %v", c.Duration.Seconds()))
	}
	if c.Pacing <= 0 {
		problems = append(problems, fmt.Sprintf("pipeline.pacing must be > 0, got %v", c.Pacing))
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		problems = append(problems, fmt.Sprintf("camera resolution must be positive, got %dx%d", c.Camera.Width, c.Camera.Height))
	}
	if c.Camera.FPS <= 0 {
		problems = append(problems, fmt.Sprintf("camera.fps must be > 0, got %v", c.Camera.FPS))
	}
	if c.Detector.Backend != utils.BackendTFLite && c.Detector.Backend != utils.BackendOpenCV {
		problems = append(problems, fmt.Sprintf("detector.backend must be %s or %s, got '%s'", utils.BackendTFLite, utils.BackendOpenCV, c.Detector.Backend))
	}
	if c.Detector.Threshold < 0 || c.Detector.Threshold > 1 {
		problems = append(problems, fmt.Sprintf("detector.threshold must be between 0 and 1, got %v", c.Detector.Threshold))
	}
	if c.Detector.TopK <= 0 {
		problems = append(problems, fmt.Sprintf("detector.top_k must be > 0, got %d", c.Detector.TopK))
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		problems = append(problems, fmt.Sprintf("log.format must be console or json, got '%s'", c.Log.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
