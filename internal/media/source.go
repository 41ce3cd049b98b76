// Package media opens video and image files and decodes the frame shown at
// a given playback position.
package media

import (
	"context"
	"image"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrUnsupportedMedia is returned when no decoder accepts a file.
var ErrUnsupportedMedia = errors.New("media: unsupported media")

// Metadata describes a loaded source.
type Metadata struct {
	Path     string
	Width    int
	Height   int
	Duration time.Duration
	FPS      float64
	Codec    string
}

// Size returns the intrinsic frame size.
func (m Metadata) Size() image.Point {
	return image.Pt(m.Width, m.Height)
}

// Source yields decoded frames for positions on its timeline.
type Source interface {
	Metadata() Metadata
	// FrameAt returns the frame displayed at t. Positions past the end
	// return the last frame.
	FrameAt(ctx context.Context, t time.Duration) (image.Image, error)
	Close() error
}

// Open picks a decoder for path: still images are decoded in process,
// anything else is handed to ffmpeg.
func Open(ctx context.Context, path string, logger zerolog.Logger) (Source, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, "open media")
	}

	if isStillImage(path) {
		return OpenImage(path)
	}
	return OpenVideo(ctx, path, logger)
}

// clampPosition bounds t to [0, duration]. A zero duration means unknown
// and leaves positive values alone.
func clampPosition(t, duration time.Duration) time.Duration {
	if t < 0 {
		return 0
	}
	if duration > 0 && t > duration {
		return duration
	}
	return t
}
