//Package ssd turns raw SSD detector output tensors into ordered, thresholded detections.
package ssd

import (
	"sort"

	"github.com/chenBenjamin97/edgetpu-capture/pkg/utils"
	"github.com/chenBenjamin97/edgetpu-capture/pkg/video"
	"github.com/pkg/errors"
)

//DetectionOutputStride is the row width of OpenCV's DetectionOutput layer: [image id, class, score, x0, y0, x1, y1]
const DetectionOutputStride = 7

//Postprocess decodes the four tensors of a TFLite_Detection_PostProcess op.
//boxes holds (ymin, xmin, ymax, xmax) per detection, classes and scores one value each, count how many are valid.
func Postprocess(boxes, classes, scores []float32, count int, threshold float32, topK int) ([]video.Detection, error) {
	if count < 0 {
		return nil, errors.Errorf("ssd.Postprocess: negative detection count %d", count)
	}
	if len(boxes) < count*4 || len(classes) < count || len(scores) < count {
		return nil, errors.Errorf("ssd.Postprocess: %d detections reported but tensors hold boxes=%d classes=%d scores=%d",
			count, len(boxes), len(classes), len(scores))
	}

	detections := make([]video.Detection, 0, count)
	for i := 0; i < count; i++ {
		if scores[i] < threshold {
			continue
		}
		detections = append(detections, video.Detection{
			LabelID: int(classes[i]),
			Score:   scores[i],
			Box:     clampBox(boxes[i*4+1], boxes[i*4], boxes[i*4+3], boxes[i*4+2]),
		})
	}

	return limit(detections, topK), nil
}

//DetectionOutput decodes OpenCV's [1,1,N,7] DetectionOutput blob, already flattened
func DetectionOutput(data []float32, threshold float32, topK int) ([]video.Detection, error) {
	if len(data)%DetectionOutputStride != 0 {
		return nil, errors.Errorf("ssd.DetectionOutput: %d values is not a multiple of %d", len(data), DetectionOutputStride)
	}

	detections := make([]video.Detection, 0, len(data)/DetectionOutputStride)
	for row := 0; row+DetectionOutputStride <= len(data); row += DetectionOutputStride {
		score := data[row+2]
		//rows after the last valid detection are padded with image id -1
		if data[row] < 0 || score < threshold {
			continue
		}
		detections = append(detections, video.Detection{
			LabelID: int(data[row+1]),
			Score:   score,
			Box:     clampBox(data[row+3], data[row+4], data[row+5], data[row+6]),
		})
	}

	return limit(detections, topK), nil
}

//limit sorts by descending score, keeping the original order of ties, and keeps the first topK
func limit(detections []video.Detection, topK int) []video.Detection {
	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Score > detections[j].Score
	})
	if topK > 0 && len(detections) > topK {
		detections = detections[:topK]
	}
	return detections
}

func clampBox(x0, y0, x1, y1 float32) video.BoundingBox {
	return video.BoundingBox{
		X0: utils.Clamp01(x0),
		Y0: utils.Clamp01(y0),
		X1: utils.Clamp01(x1),
		Y1: utils.Clamp01(y1),
	}
}
