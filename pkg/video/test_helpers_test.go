package video

import (
	"context"
	"image"
	"sync"
)

//fakeCamera records every call the pipeline makes and serves frames from a counter
type fakeCamera struct {
	mu sync.Mutex

	frameErrAt int //1-based frame number whose Next fails, 0 never fails
	frameErr   error
	startErr   error
	stopErr    error
	closeErr   error

	startCalls   int
	stopCalls    int
	closeCalls   int
	nextCalls    int
	overlays     []*image.NRGBA
	annotations  []string
	requestedFor image.Point
}

func (c *fakeCamera) StartPreview() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startCalls++
	return c.startErr
}

func (c *fakeCamera) StopPreview() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopCalls++
	return c.stopErr
}

func (c *fakeCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	return c.closeErr
}

func (c *fakeCamera) Frames(size image.Point) (FrameStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestedFor = size
	return &fakeStream{cam: c, size: size}, nil
}

func (c *fakeCamera) ShowOverlay(overlay *image.NRGBA) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overlays = append(c.overlays, overlay)
	return nil
}

func (c *fakeCamera) SetAnnotation(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.annotations = append(c.annotations, text)
}

type fakeStream struct {
	cam  *fakeCamera
	size image.Point
}

func (s *fakeStream) Next(ctx context.Context) ([]byte, error) {
	s.cam.mu.Lock()
	defer s.cam.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.cam.nextCalls++
	if s.cam.frameErrAt > 0 && s.cam.nextCalls == s.cam.frameErrAt {
		return nil, s.cam.frameErr
	}
	return make([]byte, s.size.X*s.size.Y*3), nil
}

//fakeDetector returns script[i] on its i-th call and repeats the last entry once the script is exhausted
type fakeDetector struct {
	mu     sync.Mutex
	size   image.Point
	script [][]Detection
	err    error
	errAt  int
	calls  int
	topKs  []int
}

func (d *fakeDetector) InputSize() image.Point {
	return d.size
}

func (d *fakeDetector) Detect(frame []byte, topK int) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.topKs = append(d.topKs, topK)
	if d.errAt > 0 && d.calls == d.errAt {
		return nil, d.err
	}
	if len(d.script) == 0 {
		return nil, nil
	}
	i := d.calls - 1
	if i >= len(d.script) {
		i = len(d.script) - 1
	}
	return d.script[i], nil
}
