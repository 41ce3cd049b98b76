// Package coordinator ties the overlay store, the media source, the
// compositor and the playback loop together and routes every redraw
// through a single entry point.
package coordinator

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phinze/overlaystudio/internal/compositor"
	"github.com/phinze/overlaystudio/internal/export"
	"github.com/phinze/overlaystudio/internal/media"
	"github.com/phinze/overlaystudio/internal/overlay"
	"github.com/phinze/overlaystudio/internal/playback"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrNoSource is returned by operations that need loaded media.
var ErrNoSource = errors.New("coordinator: no media loaded")

// Trigger records why a frame was rendered.
type Trigger int

const (
	TriggerTick Trigger = iota
	TriggerLoad
	TriggerSeek
	TriggerEdit
)

func (t Trigger) String() string {
	switch t {
	case TriggerTick:
		return "tick"
	case TriggerLoad:
		return "load"
	case TriggerSeek:
		return "seek"
	case TriggerEdit:
		return "edit"
	default:
		return "unknown"
	}
}

// Status accompanies each presented frame.
type Status struct {
	Trigger  Trigger
	Playing  bool
	Position time.Duration
	Duration time.Duration
	Selected int
}

// Presenter shows composited frames. Present is called from the render
// path, including the playback goroutine, and must not call back into the
// coordinator's Play or Pause.
type Presenter interface {
	Present(frame *image.RGBA, status Status)
}

// Options configures a Coordinator. Zero values get defaults.
type Options struct {
	Scheduler playback.Scheduler
	Presenter Presenter
	Exporter  *export.Exporter
	Logger    zerolog.Logger
}

// Coordinator owns the editing session.
type Coordinator struct {
	id        string
	store     *overlay.Store
	comp      *compositor.Compositor
	clock     *playback.Clock
	loop      *playback.Loop
	presenter Presenter
	exporter  *export.Exporter
	base      zerolog.Logger
	logger    zerolog.Logger

	// Lifecycle
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()

	// State tracking
	mu        sync.RWMutex
	source    media.Source
	size      image.Point
	presented *image.RGBA
	renders   map[Trigger]int
}

// New creates a Coordinator with no media loaded.
func New(store *overlay.Store, comp *compositor.Compositor, opts Options) *Coordinator {
	sched := opts.Scheduler
	if sched == nil {
		sched = playback.NewTickerScheduler(playback.DefaultInterval)
	}
	exporter := opts.Exporter
	if exporter == nil {
		exporter = export.New("")
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	c := &Coordinator{
		id:        id,
		store:     store,
		comp:      comp,
		clock:     playback.NewClock(0),
		presenter: opts.Presenter,
		exporter:  exporter,
		base:      opts.Logger,
		logger:    opts.Logger.With().Str("component", "coordinator").Str("session", id).Logger(),
		ctx:       ctx,
		cancel:    cancel,
		renders:   make(map[Trigger]int),
	}
	c.loop = playback.NewLoop(sched, c.clock, c.renderTick, opts.Logger)
	c.unsubscribe = store.Subscribe(c.onEdit)

	return c
}

// ID returns the session id used in logs.
func (c *Coordinator) ID() string {
	return c.id
}

// Store returns the overlay store being edited.
func (c *Coordinator) Store() *overlay.Store {
	return c.store
}

// Load opens path and makes it the current source. Playback is paused
// first. On failure the previous source is dropped, so playback and export
// stay unavailable until a file loads; media the decoders reject wraps
// media.ErrUnsupportedMedia.
func (c *Coordinator) Load(ctx context.Context, path string) error {
	c.Pause()

	src, err := media.Open(ctx, path, c.base)
	if err != nil {
		c.swapSource(nil)
		c.logger.Warn().Err(err).Str("path", path).Msg("media rejected")
		return err
	}
	return c.LoadSource(ctx, src)
}

// LoadSource makes src the current source, rewinds to the start and
// renders the first frame.
func (c *Coordinator) LoadSource(ctx context.Context, src media.Source) error {
	c.Pause()
	c.swapSource(src)

	meta := src.Metadata()
	c.logger.Info().
		Str("path", meta.Path).
		Int("width", meta.Width).
		Int("height", meta.Height).
		Dur("duration", meta.Duration).
		Msg("media loaded")

	return c.RenderNow(ctx, TriggerLoad)
}

func (c *Coordinator) swapSource(src media.Source) {
	c.mu.Lock()
	old := c.source
	c.source = src
	c.presented = nil
	c.size = image.Point{}
	var duration time.Duration
	if src != nil {
		meta := src.Metadata()
		c.size = meta.Size()
		duration = meta.Duration
	}
	c.mu.Unlock()

	c.clock.Reset(duration)
	if old != nil {
		if err := old.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("closing previous source")
		}
	}
}

// HasSource reports whether media is loaded. Playback, seeking and export
// are only available when it is.
func (c *Coordinator) HasSource() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source != nil
}

// Metadata returns the loaded media's metadata.
func (c *Coordinator) Metadata() (media.Metadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.source == nil {
		return media.Metadata{}, false
	}
	return c.source.Metadata(), true
}

// Play starts playback and the redraw loop.
func (c *Coordinator) Play() error {
	if !c.HasSource() {
		return ErrNoSource
	}
	c.loop.Play()
	return nil
}

// Pause stops playback. When it returns no further tick will render.
func (c *Coordinator) Pause() {
	c.loop.Pause()
}

// Toggle flips between playing and paused and returns the new state.
func (c *Coordinator) Toggle() (playback.State, error) {
	if !c.HasSource() {
		return playback.Paused, ErrNoSource
	}
	return c.loop.Toggle(), nil
}

// Playing reports whether playback is running.
func (c *Coordinator) Playing() bool {
	return c.loop.State() == playback.Playing
}

// State returns the playback state.
func (c *Coordinator) State() playback.State {
	return c.loop.State()
}

// Position returns the current playback position.
func (c *Coordinator) Position() time.Duration {
	return c.clock.Position()
}

// Seek moves the playback position and renders the frame there, whether
// or not the loop is running.
func (c *Coordinator) Seek(ctx context.Context, t time.Duration) error {
	if !c.HasSource() {
		return ErrNoSource
	}
	c.clock.Seek(t)
	return c.RenderNow(ctx, TriggerSeek)
}

// RenderNow composites the frame at the current position with the current
// overlays and presents it.
func (c *Coordinator) RenderNow(ctx context.Context, trigger Trigger) error {
	surface, status, err := c.compose(ctx, trigger)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.presented = surface
	c.renders[trigger]++
	c.mu.Unlock()

	if c.presenter != nil {
		c.presenter.Present(surface, status)
	}
	return nil
}

func (c *Coordinator) compose(ctx context.Context, trigger Trigger) (*image.RGBA, Status, error) {
	c.mu.RLock()
	src, size := c.source, c.size
	c.mu.RUnlock()

	if src == nil {
		return nil, Status{}, ErrNoSource
	}

	pos := c.clock.Position()
	frame, err := src.FrameAt(ctx, pos)
	if err != nil {
		return nil, Status{}, errors.Wrapf(err, "frame at %s", pos)
	}

	snap := c.store.Snapshot()
	surface, err := c.comp.Compose(frame, size, snap.Overlays)
	if err != nil {
		return nil, Status{}, err
	}

	// Ticks run under the loop's lock and only while playing, so only
	// renders from outside the loop ask it for its state.
	playing := trigger == TriggerTick || c.Playing()

	return surface, Status{
		Trigger:  trigger,
		Playing:  playing,
		Position: pos,
		Duration: c.clock.Duration(),
		Selected: snap.Selected,
	}, nil
}

// renderTick runs on the playback goroutine.
func (c *Coordinator) renderTick() {
	start := time.Now()
	if err := c.RenderNow(c.ctx, TriggerTick); err != nil {
		c.logger.Warn().Err(err).Msg("tick render failed")
		return
	}
	if elapsed := time.Since(start); elapsed > playback.DefaultInterval {
		c.logger.Debug().Dur("elapsed", elapsed).Msg("slow frame")
	}
}

// onEdit redraws after overlay changes while paused; while playing the
// next tick picks the change up. The loop state flips to paused before the
// schedule stops and the clock halts, so it is the one consulted here.
func (c *Coordinator) onEdit(overlay.Snapshot) {
	if !c.HasSource() || c.Playing() {
		return
	}
	if err := c.RenderNow(c.ctx, TriggerEdit); err != nil {
		c.logger.Debug().Err(err).Msg("edit render failed")
	}
}

// Presented returns the last presented surface, or nil.
func (c *Coordinator) Presented() *image.RGBA {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.presented
}

// Renders returns how many frames each trigger has rendered.
func (c *Coordinator) Renders() map[Trigger]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[Trigger]int, len(c.renders))
	for k, v := range c.renders {
		out[k] = v
	}
	return out
}

// ExportAvailable reports whether ExportCurrentFrame can produce an image.
func (c *Coordinator) ExportAvailable() bool {
	return c.HasSource()
}

// ExportCurrentFrame recomputes the frame at the current position with the
// current overlays and encodes it. It does not read the presented surface,
// so the result never lags behind an edit.
func (c *Coordinator) ExportCurrentFrame(ctx context.Context) ([]byte, error) {
	surface, _, err := c.compose(ctx, TriggerTick)
	if err != nil {
		return nil, err
	}
	data, err := c.exporter.Bytes(surface)
	if err != nil {
		return nil, err
	}
	c.logger.Info().
		Dur("position", c.clock.Position()).
		Int("bytes", len(data)).
		Msg("frame exported")
	return data, nil
}

// SaveCurrentFrame exports the current frame into dir under the
// exporter's filename and returns the path written.
func (c *Coordinator) SaveCurrentFrame(ctx context.Context, dir string) (string, error) {
	data, err := c.ExportCurrentFrame(ctx)
	if err != nil {
		return "", err
	}
	return c.exporter.Save(dir, data)
}

// Close stops playback and releases the source.
func (c *Coordinator) Close() error {
	c.Pause()
	c.unsubscribe()
	c.cancel()
	c.swapSource(nil)
	return nil
}
