package api

import (
	"bytes"
	"image"
	"net/http"
	"sync"

	"github.com/chenBenjamin97/edgetpu-capture/pkg/labels"
	"github.com/chenBenjamin97/edgetpu-capture/pkg/video"
	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
)

//Monitor keeps the latest pipeline iteration so it can be inspected over HTTP while the demo runs
type Monitor struct {
	names labels.Table

	mu         sync.RWMutex
	iterations int
	last       video.Report
	annotation string
	overlay    *image.NRGBA
}

type detectionStatus struct {
	LabelID int     `json:"label_id"`
	Label   string  `json:"label,omitempty"`
	Score   float32 `json:"score"`
	Box     [4]int  `json:"box"` //x0, y0, x1, y1 in pixels of the detector input
}

type status struct {
	Iterations  int               `json:"iterations"`
	Annotation  string            `json:"annotation"`
	InferenceMs float64           `json:"inference_ms"`
	Detections  []detectionStatus `json:"detections"`
}

//NewMonitor creates a monitor resolving label names through names
func NewMonitor(names labels.Table) *Monitor {
	return &Monitor{names: names}
}

//Observe records a finished iteration, it is meant to be the pipeline's OnIteration hook
func (m *Monitor) Observe(r video.Report) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.iterations++
	m.last = r
	//an iteration without detections leaves the shown overlay and text alone, so does the monitor
	if r.Overlay != nil {
		m.overlay = r.Overlay
		m.annotation = r.Annotation
	}
}

func (m *Monitor) status() status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := status{
		Iterations:  m.iterations,
		Annotation:  m.annotation,
		InferenceMs: float64(m.last.Inference.Microseconds()) / 1000,
		Detections:  make([]detectionStatus, 0, len(m.last.Detections)),
	}
	for _, d := range m.last.Detections {
		r := d.Box.Rect(m.last.FrameSize)
		name, _ := m.names.Name(d.LabelID)
		s.Detections = append(s.Detections, detectionStatus{
			LabelID: d.LabelID,
			Label:   name,
			Score:   d.Score,
			Box:     [4]int{r.Min.X, r.Min.Y, r.Max.X, r.Max.Y},
		})
	}
	return s
}

func (m *Monitor) currentOverlay() *image.NRGBA {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overlay
}

//SetRouter exposes the monitor:
//GET /api/status returns the last iteration as JSON, GET /api/overlay the overlay currently on screen as PNG
func SetRouter(m *Monitor) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	apiRoutes := r.Group("/api")

	apiRoutes.GET("/status", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, m.status())
	})

	apiRoutes.GET("/overlay", func(ctx *gin.Context) {
		overlay := m.currentOverlay()
		if overlay == nil {
			ctx.Status(http.StatusNotFound) //nothing detected yet
			return
		}

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, overlay, imaging.PNG); err != nil {
			ctx.Status(http.StatusInternalServerError)
			return
		}
		ctx.Data(http.StatusOK, "image/png", buf.Bytes())
	})

	return r
}
