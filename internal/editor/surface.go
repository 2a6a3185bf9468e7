// Package editor is the render invocation surface for interactive editing.
// A Surface owns one poster's content, style and transform, renders frames in
// the background, and routes pointer events to the gesture controller.
//
// Renders are tagged with a sequence number. Starting a new render cancels the
// previous one, and a finished render only becomes the current frame if no
// newer render was requested in the meantime (latest request wins).
package editor

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"go.uber.org/zap"

	"github.com/fleveque/promo-composer/internal/export"
	"github.com/fleveque/promo-composer/internal/gesture"
	"github.com/fleveque/promo-composer/internal/layout"
	"github.com/fleveque/promo-composer/internal/model"
	"github.com/fleveque/promo-composer/internal/render"
)

// ErrNotConfigured is returned when a surface is used before Configure.
var ErrNotConfigured = errors.New("surface has no content yet")

// ErrClosed is returned by a surface after Close.
var ErrClosed = errors.New("surface is closed")

// Stats counts renders by outcome.
type Stats struct {
	Started   uint64 `json:"started"`
	Committed uint64 `json:"committed"`
	Discarded uint64 `json:"discarded"`
}

// Surface is safe for concurrent use. Pointer handlers never wait on a render.
type Surface struct {
	registry   *layout.Registry
	renderer   *render.Renderer
	scheduler  *FrameScheduler
	logger     *zap.Logger
	controller *gesture.Controller

	mu         sync.Mutex
	base       context.Context
	stop       context.CancelFunc
	closed     bool
	configured bool
	content    model.Content
	style      model.Style
	layout     layout.Descriptor
	viewport   gesture.Viewport

	seq       uint64
	committed uint64
	cancel    context.CancelFunc
	frame     image.Image
	result    *render.Result
	lastErr   error
	changed   chan struct{}
	stats     Stats
}

// NewSurface creates an empty surface. frameInterval bounds how often pointer
// moves trigger a re-render; zero uses DefaultFrameInterval.
func NewSurface(registry *layout.Registry, renderer *render.Renderer, frameInterval time.Duration, logger *zap.Logger) *Surface {
	base, stop := context.WithCancel(context.Background())
	s := &Surface{
		registry: registry,
		renderer: renderer,
		logger:   logger,
		base:     base,
		stop:     stop,
		changed:  make(chan struct{}),
	}
	s.scheduler = NewFrameScheduler(frameInterval, s.renderScheduled)
	return s
}

// Configure replaces content and style and starts a render. A different photo
// resets the transform to identity first. Unknown formats fail with
// *model.ConfigError and leave the surface unchanged.
func (s *Surface) Configure(content model.Content, style model.Style) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	d, err := s.registry.Layout(style.Format, content.Title)
	if err != nil {
		return err
	}

	s.content = content
	s.style = style
	s.layout = d
	if s.controller == nil {
		s.controller = gesture.NewController(d)
	} else {
		s.controller.SetLayout(d)
	}
	if s.controller.SetPhoto(content.Photo) {
		s.logger.Debug("photo changed, transform reset")
	}
	s.configured = true

	s.startRenderLocked()
	return nil
}

// Layout returns the current layout descriptor.
func (s *Surface) Layout() (layout.Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.configured {
		return layout.Descriptor{}, ErrNotConfigured
	}
	return s.layout, nil
}

// Transform returns the current photo transform.
func (s *Surface) Transform() model.Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.controller == nil {
		return model.IdentityTransform()
	}
	return s.controller.Transform()
}

// SetTransform replaces the transform (scale clamped) and schedules a render.
func (s *Surface) SetTransform(t model.Transform) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !s.configured {
		return ErrNotConfigured
	}
	s.controller.SetTransform(t)
	s.scheduler.Request()
	return nil
}

// SetViewport records where the canvas is displayed, for client coordinate conversion.
func (s *Surface) SetViewport(v gesture.Viewport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = v
}

// PointerDown starts a drag or resize at client coordinates (x, y).
func (s *Surface) PointerDown(x, y float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.configured || s.closed {
		return false
	}
	return s.controller.PointerDown(s.toCanvasLocked(x, y))
}

// PointerMove updates an active gesture and schedules a render if the
// transform changed.
func (s *Surface) PointerMove(x, y float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.configured || s.closed {
		return false
	}
	if !s.controller.PointerMove(s.toCanvasLocked(x, y)) {
		return false
	}
	s.scheduler.Request()
	return true
}

// PointerUp ends the active gesture.
func (s *Surface) PointerUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.controller != nil {
		s.controller.PointerUp()
	}
}

// PointerLeave ends the active gesture when the pointer leaves the canvas.
func (s *Surface) PointerLeave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.controller != nil {
		s.controller.PointerLeave()
	}
}

// GestureState returns the controller's state.
func (s *Surface) GestureState() gesture.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.controller == nil {
		return gesture.Idle
	}
	return s.controller.State()
}

// Wait blocks until the most recently requested render has finished, flushing
// any render still waiting for its frame. It returns that render's error.
func (s *Surface) Wait(ctx context.Context) error {
	s.scheduler.Flush()

	for {
		s.mu.Lock()
		if !s.configured {
			s.mu.Unlock()
			return ErrNotConfigured
		}
		if s.committed == s.seq {
			err := s.lastErr
			s.mu.Unlock()
			return err
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Frame returns the latest committed frame and its result. Both are nil until
// the first render commits.
func (s *Surface) Frame() (image.Image, *render.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame, s.result
}

// RasterBytes renders the current state in export mode (no editing
// affordances) and encodes it.
func (s *Surface) RasterBytes(ctx context.Context, enc export.Encoding, quality int) ([]byte, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if !s.configured {
		s.mu.Unlock()
		return nil, ErrNotConfigured
	}
	content, style, d, t := s.content, s.style, s.layout, s.controller.Transform()
	s.mu.Unlock()

	img, _, err := s.renderer.RenderImage(ctx, content, style, d, t, render.Options{})
	if err != nil {
		return nil, err
	}
	return export.Encode(img, enc, quality)
}

// Stats returns render counters.
func (s *Surface) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close cancels any in-flight render and stops scheduling new ones.
func (s *Surface) Close() {
	s.scheduler.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stop()
}

func (s *Surface) toCanvasLocked(x, y float64) model.Point {
	return s.viewport.ToCanvas(x, y, s.layout.Width, s.layout.Height)
}

func (s *Surface) renderScheduled() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.configured {
		return
	}
	s.startRenderLocked()
}

// startRenderLocked supersedes any in-flight render with a new one over a
// snapshot of the current state. s.mu must be held.
func (s *Surface) startRenderLocked() {
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel
	s.seq++
	s.stats.Started++

	job := renderJob{
		seq:       s.seq,
		content:   s.content,
		style:     s.style,
		layout:    s.layout,
		transform: s.controller.Transform(),
	}
	go s.run(ctx, job)
}

type renderJob struct {
	seq       uint64
	content   model.Content
	style     model.Style
	layout    layout.Descriptor
	transform model.Transform
}

func (s *Surface) run(ctx context.Context, job renderJob) {
	dc := gg.NewContext(job.layout.Width, job.layout.Height)
	res, err := s.renderer.Render(ctx, dc, job.content, job.style, job.layout, job.transform, render.Options{Interactive: true})

	s.mu.Lock()
	defer s.mu.Unlock()

	if job.seq != s.seq {
		s.stats.Discarded++
		s.logger.Debug("discarding stale frame",
			zap.Uint64("seq", job.seq),
			zap.Uint64("latest", s.seq),
		)
		return
	}

	s.committed = job.seq
	s.lastErr = err
	if err == nil {
		s.frame = dc.Image()
		s.result = res
		s.controller.SetPhotoDecoded(res.PhotoDecoded)
		s.stats.Committed++
	} else {
		s.logger.Warn("render failed", zap.Uint64("seq", job.seq), zap.Error(err))
	}

	close(s.changed)
	s.changed = make(chan struct{})
}
