package detect

import (
	"image"
	"sync"

	"github.com/chenBenjamin97/edgetpu-capture/pkg/detect/ssd"
	"github.com/chenBenjamin97/edgetpu-capture/pkg/utils"
	"github.com/chenBenjamin97/edgetpu-capture/pkg/video"
	"github.com/mattn/go-tflite"
	"github.com/mattn/go-tflite/delegates"
	"github.com/mattn/go-tflite/delegates/edgetpu"
	"go.uber.org/zap"
)

//output tensor order of the TFLite_Detection_PostProcess op
const (
	outputBoxes = iota
	outputClasses
	outputScores
	outputCount
	outputTensors
)

//tfliteEngine runs an SSD model through the TFLite interpreter, optionally delegated to an Edge TPU
type tfliteEngine struct {
	mu        sync.Mutex
	log       *zap.SugaredLogger
	threshold float32

	model       *tflite.Model
	options     *tflite.InterpreterOptions
	delegate    delegates.Delegater
	interpreter *tflite.Interpreter
	input       *tflite.Tensor
	size        image.Point
}

func newTFLiteEngine(cfg Config, log *zap.SugaredLogger) (*tfliteEngine, error) {
	e := &tfliteEngine{log: log, threshold: cfg.Threshold}

	e.model = tflite.NewModelFromFile(cfg.ModelPath)
	if e.model == nil {
		return nil, utils.ResourceError(nil, "detect: could not load model '%s'", cfg.ModelPath)
	}

	e.options = tflite.NewInterpreterOptions()
	if cfg.Threads > 0 {
		e.options.SetNumThread(cfg.Threads)
	}
	e.options.SetErrorReporter(func(msg string, _ interface{}) {
		log.Warnw("detect: tflite", "message", msg)
	}, nil)

	if cfg.EdgeTPU {
		if err := e.addEdgeTPU(); err != nil {
			e.Close()
			return nil, err
		}
	}

	e.interpreter = tflite.NewInterpreter(e.model, e.options)
	if e.interpreter == nil {
		e.Close()
		return nil, utils.ResourceError(nil, "detect: could not create interpreter for '%s'", cfg.ModelPath)
	}
	if status := e.interpreter.AllocateTensors(); status != tflite.OK {
		e.Close()
		return nil, utils.ResourceError(nil, "detect: allocating tensors failed with status %v", status)
	}

	e.input = e.interpreter.GetInputTensor(0)
	if e.input == nil || e.input.NumDims() != 4 || e.input.Dim(3) != 3 {
		e.Close()
		return nil, utils.ResourceError(nil, "detect: model '%s' does not take a [1,H,W,3] image", cfg.ModelPath)
	}
	if e.input.Type() != tflite.UInt8 && e.input.Type() != tflite.Float32 {
		e.Close()
		return nil, utils.ResourceError(nil, "detect: unsupported input tensor type %v", e.input.Type())
	}
	if n := e.interpreter.GetOutputTensorCount(); n < outputTensors {
		e.Close()
		return nil, utils.ResourceError(nil, "detect: model '%s' has %d outputs, an SSD post-process op has %d", cfg.ModelPath, n, outputTensors)
	}
	e.size = image.Pt(e.input.Dim(2), e.input.Dim(1))

	log.Infow("detect: model loaded",
		"model", cfg.ModelPath,
		"input_size", e.size,
		"input_type", e.input.Type(),
		"edgetpu", cfg.EdgeTPU,
	)

	return e, nil
}

//addEdgeTPU attaches the first Edge TPU found to the interpreter options
func (e *tfliteEngine) addEdgeTPU() error {
	devices, err := edgetpu.DeviceList()
	if err != nil {
		return utils.ResourceError(err, "detect: listing Edge TPU devices")
	}
	if len(devices) == 0 {
		return utils.ResourceError(nil, "detect: no Edge TPU device found")
	}

	e.delegate = edgetpu.New(devices[0])
	if e.delegate == nil {
		return utils.ResourceError(nil, "detect: could not create Edge TPU delegate for '%s'", devices[0].Path)
	}
	e.options.AddDelegate(e.delegate)

	if version, err := edgetpu.Version(); err == nil {
		e.log.Infow("detect: using Edge TPU", "device", devices[0].Path, "runtime", version)
	}
	return nil
}

func (e *tfliteEngine) InputSize() image.Point {
	return e.size
}

func (e *tfliteEngine) Detect(frame []byte, topK int) ([]video.Detection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.interpreter == nil {
		return nil, utils.DeviceError(nil, "detect: engine closed")
	}
	if want := e.size.X * e.size.Y * 3; len(frame) != want {
		return nil, utils.DeviceError(nil, "detect: frame has %d bytes, model wants %d", len(frame), want)
	}

	if err := e.setInput(frame); err != nil {
		return nil, err
	}
	if status := e.interpreter.Invoke(); status != tflite.OK {
		return nil, utils.DeviceError(nil, "detect: invoke failed with status %v", status)
	}

	boxes := e.interpreter.GetOutputTensor(outputBoxes).Float32s()
	classes := e.interpreter.GetOutputTensor(outputClasses).Float32s()
	scores := e.interpreter.GetOutputTensor(outputScores).Float32s()
	count := e.interpreter.GetOutputTensor(outputCount).Float32s()
	if len(count) == 0 {
		return nil, utils.DeviceError(nil, "detect: empty detection count tensor")
	}

	detections, err := ssd.Postprocess(boxes, classes, scores, int(count[0]), e.threshold, topK)
	if err != nil {
		return nil, utils.DeviceError(err, "detect: decoding output")
	}
	return detections, nil
}

//setInput copies the RGB frame into the input tensor, float models get pixels scaled to [-1,1]
func (e *tfliteEngine) setInput(frame []byte) error {
	if e.input.Type() == tflite.UInt8 {
		if status := e.input.CopyFromBuffer(frame); status != tflite.OK {
			return utils.DeviceError(nil, "detect: copying frame failed with status %v", status)
		}
		return nil
	}

	values := e.input.Float32s()
	if len(values) != len(frame) {
		return utils.DeviceError(nil, "detect: input tensor holds %d values, frame has %d", len(values), len(frame))
	}
	for i, v := range frame {
		values[i] = (float32(v) - 127.5) / 127.5
	}
	return nil
}

//Close frees the interpreter, delegate and model, it is safe to call more than once
func (e *tfliteEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.interpreter != nil {
		e.interpreter.Delete()
		e.interpreter = nil
	}
	if e.delegate != nil {
		e.delegate.Delete()
		e.delegate = nil
	}
	if e.options != nil {
		e.options.Delete()
		e.options = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
	return nil
}
