// Package compositor draws text overlays on top of video frames.
package compositor

import (
	"image"
	"image/color"
	"math"
	"strings"
	"sync"

	"github.com/phinze/overlaystudio/internal/overlay"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// ErrNoFrame is returned when Compose is called without a source frame.
var ErrNoFrame = errors.New("compositor: no source frame")

// DefaultSize is the surface size used when neither the caller nor the
// frame knows its dimensions.
var DefaultSize = image.Pt(1280, 720)

// fallbackFill is the canvas default fill, used for unparseable colors.
var fallbackFill = color.NRGBA{A: 0xff}

// Config tunes a Compositor.
type Config struct {
	DefaultSize image.Point
	Shadow      Shadow
	// Scaler resamples frames whose size differs from the surface.
	Scaler draw.Scaler
}

// DefaultConfig returns the stock compositor settings.
func DefaultConfig() Config {
	return Config{
		DefaultSize: DefaultSize,
		Shadow:      DefaultShadow,
		Scaler:      draw.ApproxBiLinear,
	}
}

// Compositor renders overlays onto frames. It keeps no state between
// calls other than cached font faces, and serializes calls because those
// faces cannot be drawn with concurrently.
type Compositor struct {
	mu     sync.Mutex
	fonts  *FontBook
	cfg    Config
	logger zerolog.Logger
}

// New creates a Compositor.
func New(fonts *FontBook, cfg Config, logger zerolog.Logger) *Compositor {
	if cfg.DefaultSize.X <= 0 || cfg.DefaultSize.Y <= 0 {
		cfg.DefaultSize = DefaultSize
	}
	if cfg.Scaler == nil {
		cfg.Scaler = draw.ApproxBiLinear
	}
	return &Compositor{
		fonts:  fonts,
		cfg:    cfg,
		logger: logger.With().Str("component", "compositor").Logger(),
	}
}

// SurfaceSize picks the output size: size if set, else the frame's own
// size, else the configured default.
func (c *Compositor) SurfaceSize(frame image.Image, size image.Point) image.Point {
	if size.X > 0 && size.Y > 0 {
		return size
	}
	if frame != nil {
		if fs := frame.Bounds().Size(); fs.X > 0 && fs.Y > 0 {
			return fs
		}
	}
	return c.cfg.DefaultSize
}

// Compose draws frame scaled to the surface size, then every overlay in
// order, so later overlays paint over earlier ones.
func (c *Compositor) Compose(frame image.Image, size image.Point, overlays []overlay.TextOverlay) (*image.RGBA, error) {
	if frame == nil {
		return nil, ErrNoFrame
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sz := c.SurfaceSize(frame, size)
	dst := image.NewRGBA(image.Rectangle{Max: sz})

	fb := frame.Bounds()
	if fb.Size() == sz {
		draw.Draw(dst, dst.Bounds(), frame, fb.Min, draw.Src)
	} else if !fb.Empty() {
		c.cfg.Scaler.Scale(dst, dst.Bounds(), frame, fb, draw.Src, nil)
	}

	for _, o := range overlays {
		if err := c.drawOverlay(dst, o); err != nil {
			return nil, errors.Wrapf(err, "overlay %d", o.ID)
		}
	}

	return dst, nil
}

func (c *Compositor) drawOverlay(dst *image.RGBA, o overlay.TextOverlay) error {
	text := singleLine(o.Text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	face, err := c.fonts.Face(o.FontFamily, o.FontWeight, o.FontSize)
	if err != nil {
		return err
	}

	fill, err := ParseColor(o.Color)
	if err != nil {
		c.logger.Debug().Err(err).Int("overlay", o.ID).Msg("using default fill")
		fill = fallbackFill
	}

	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	anchor := Anchor(w, h, o.X, o.Y)
	dot := CenteredDot(face, text, anchor)

	if c.cfg.Shadow.visible() {
		c.drawShadow(dst, face, text, dot)
	}

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(fill),
		Face: face,
		Dot:  dot,
	}
	d.DrawString(text)
	return nil
}

// drawShadow renders the glyph coverage into a mask, blurs it and paints
// the shadow color through it at the shadow offset.
func (c *Compositor) drawShadow(dst *image.RGBA, face font.Face, text string, dot fixed.Point26_6) {
	bounds, _ := font.BoundString(face, text)
	ink := image.Rect(
		(dot.X + bounds.Min.X).Floor(),
		(dot.Y + bounds.Min.Y).Floor(),
		(dot.X + bounds.Max.X).Ceil(),
		(dot.Y + bounds.Max.Y).Ceil(),
	)
	if ink.Empty() {
		return
	}

	pad := c.cfg.Shadow.padding()
	region := ink.Inset(-pad)
	offset := image.Pt(c.cfg.Shadow.OffsetX, c.cfg.Shadow.OffsetY)

	target := region.Add(offset).Intersect(dst.Bounds())
	if target.Empty() {
		return
	}

	mask := image.NewAlpha(region)
	d := &font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: face,
		Dot:  dot,
	}
	d.DrawString(text)
	blurAlpha(mask, c.cfg.Shadow.sigma())

	draw.DrawMask(dst, target, image.NewUniform(c.cfg.Shadow.Color), image.Point{},
		mask, target.Min.Sub(offset), draw.Over)
}

// Anchor maps percentage coordinates to an absolute point on a w×h surface.
func Anchor(w, h int, x, y float64) fixed.Point26_6 {
	return fixed.Point26_6{
		X: toFixed(float64(w) * x / 100),
		Y: toFixed(float64(h) * y / 100),
	}
}

// CenteredDot returns the baseline origin that centers text on anchor:
// horizontally on its advance width and vertically on the middle of the
// face's ascent and descent.
func CenteredDot(face font.Face, text string, anchor fixed.Point26_6) fixed.Point26_6 {
	adv := font.MeasureString(face, text)
	m := face.Metrics()
	return fixed.Point26_6{
		X: anchor.X - adv/2,
		Y: anchor.Y + (m.Ascent-m.Descent)/2,
	}
}

// TextBox returns the layout box of text drawn from dot: advance width
// by ascent plus descent.
func TextBox(face font.Face, text string, dot fixed.Point26_6) fixed.Rectangle26_6 {
	adv := font.MeasureString(face, text)
	m := face.Metrics()
	return fixed.Rectangle26_6{
		Min: fixed.Point26_6{X: dot.X, Y: dot.Y - m.Ascent},
		Max: fixed.Point26_6{X: dot.X + adv, Y: dot.Y + m.Descent},
	}
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}

// singleLine collapses line breaks and other whitespace controls to spaces;
// labels are always drawn as one run.
func singleLine(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t', '\f', '\v':
			return ' '
		}
		return r
	}, s)
}
