package utils

import "time"

//DefaultTopK is the maximum number of detections requested from the accelerator per frame
const DefaultTopK = 10

//DefaultDuration is the demo length used when no '--time' is given
const DefaultDuration = 10 * time.Second

//DefaultPacing is the fixed sleep between two loop iterations, it bounds the loop's CPU usage
const DefaultPacing = 100 * time.Millisecond

//DefaultScoreThreshold is the accelerator's own confidence cutoff, detections below it are never returned
const DefaultScoreThreshold = 0.1

//CaptureWidth and CaptureHeight are the camera resolution the preview runs at
const (
	CaptureWidth  = 640
	CaptureHeight = 480
)

//CaptureFPS is the camera framerate
const CaptureFPS = 30

//OverlayAlpha is the alpha (out of 255) of every filled detection rectangle
const OverlayAlpha = 80

//PaletteSize is the number of distinct detection colors, label ids above it share colors
const PaletteSize = 10

//BackendTFLite and BackendOpenCV are the inference backends a model can be run with
const (
	BackendTFLite = "tflite"
	BackendOpenCV = "opencv"
)
