// Package shell is the presentation layer: it turns composited frames into
// something a person can look at and maps typed commands onto the editor.
package shell

import (
	_ "embed"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"
	"time"

	"github.com/phinze/overlaystudio/internal/compositor"
	"github.com/phinze/overlaystudio/internal/coordinator"
	"github.com/phinze/overlaystudio/internal/export"
	"github.com/rs/zerolog"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

//go:embed icons/play.svg
var iconPlaySVG string

//go:embed icons/pause.svg
var iconPauseSVG string

// Common colors
var (
	colorLimeGreen  = color.RGBA{50, 205, 50, 255}
	colorOrange     = color.RGBA{255, 165, 0, 255}
	colorBackground = color.RGBA{25, 25, 25, 255}
	colorProgressBg = color.RGBA{60, 60, 60, 255}
	colorTime       = color.RGBA{120, 120, 120, 255}
)

// StripHeight is the height of the control strip drawn under the frame.
const StripHeight = 40

// DefaultPreviewInterval limits how often playback ticks rewrite the
// preview file. Load, seek and edit renders are always written.
const DefaultPreviewInterval = 250 * time.Millisecond

// Preview presents frames by writing them, with a control strip, to an
// image file that an external viewer can watch.
type Preview struct {
	path     string
	exporter *export.Exporter
	interval time.Duration
	face     font.Face
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	last    time.Time
	written int
	icons   map[bool]image.Image
}

// NewPreview creates a presenter writing to path. The encoding follows the
// path's extension. A zero interval uses DefaultPreviewInterval.
func NewPreview(path string, interval time.Duration, logger zerolog.Logger) (*Preview, error) {
	exporter := export.New(path)
	if _, err := exporter.Format(); err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = DefaultPreviewInterval
	}

	tt, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse label font: %w", err)
	}
	face, err := opentype.NewFace(tt, &opentype.FaceOptions{
		Size:    14,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create label face: %w", err)
	}

	return &Preview{
		path:     path,
		exporter: exporter,
		interval: interval,
		face:     face,
		logger:   logger.With().Str("component", "preview").Logger(),
		now:      time.Now,
		icons:    make(map[bool]image.Image),
	}, nil
}

// Present implements coordinator.Presenter.
func (p *Preview) Present(frame *image.RGBA, status coordinator.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if status.Trigger == coordinator.TriggerTick && !p.last.IsZero() && now.Sub(p.last) < p.interval {
		return
	}

	img := p.render(frame, status)
	data, err := p.exporter.Bytes(img)
	if err != nil {
		p.logger.Warn().Err(err).Msg("encode preview")
		return
	}
	if err := export.WriteFileAtomic(p.path, data); err != nil {
		p.logger.Warn().Err(err).Str("path", p.path).Msg("write preview")
		return
	}

	p.last = now
	p.written++
	p.logger.Debug().
		Stringer("trigger", status.Trigger).
		Dur("position", status.Position).
		Msg("preview written")
}

// Written returns how many preview files have been written.
func (p *Preview) Written() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written
}

// Render returns frame with the control strip appended below it.
func (p *Preview) Render(frame *image.RGBA, status coordinator.Status) *image.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.render(frame, status)
}

func (p *Preview) render(frame *image.RGBA, status coordinator.Status) *image.RGBA {
	fb := frame.Bounds()
	img := image.NewRGBA(image.Rect(0, 0, fb.Dx(), fb.Dy()+StripHeight))
	draw.Draw(img, image.Rect(0, 0, fb.Dx(), fb.Dy()), frame, fb.Min, draw.Src)

	strip := image.Rect(0, fb.Dy(), fb.Dx(), fb.Dy()+StripHeight)
	p.renderStrip(img, strip, status)
	return img
}

// renderStrip draws [icon] [progress bar] [elapsed / total] into rect.
func (p *Preview) renderStrip(img *image.RGBA, rect image.Rectangle, status coordinator.Status) {
	draw.Draw(img, rect, &image.Uniform{colorBackground}, image.Point{}, draw.Src)

	const (
		margin    = 8
		progressH = 5
	)
	iconSize := rect.Dy() - 2*margin

	// Icon shows the state playback is in
	icon := p.icon(status.Playing, iconSize)
	iconRect := image.Rect(rect.Min.X+margin, rect.Min.Y+margin, rect.Min.X+margin+iconSize, rect.Min.Y+margin+iconSize)
	draw.Draw(img, iconRect, icon, image.Point{}, draw.Over)

	label := fmt.Sprintf("%s / %s", formatDuration(status.Position), formatDuration(status.Duration))
	labelW := font.MeasureString(p.face, label).Ceil()
	baseline := rect.Min.Y + (rect.Dy()+p.face.Metrics().Ascent.Ceil())/2
	drawTextRightAligned(img, label, rect.Max.X-margin, baseline, p.face, colorTime)

	barLeft := iconRect.Max.X + margin
	barRight := rect.Max.X - 2*margin - labelW
	if barRight <= barLeft {
		return
	}

	progress := 0.0
	if status.Duration > 0 {
		progress = float64(status.Position) / float64(status.Duration)
		if progress > 1.0 {
			progress = 1.0
		}
	}

	barTop := rect.Min.Y + (rect.Dy()-progressH)/2
	progressRect := image.Rect(barLeft, barTop, barRight, barTop+progressH)
	draw.Draw(img, progressRect, &image.Uniform{colorProgressBg}, image.Point{}, draw.Src)

	progressColor := colorLimeGreen
	if !status.Playing {
		progressColor = colorOrange
	}
	progressW := int(float64(progressRect.Dx()) * progress)
	progressFill := image.Rect(barLeft, barTop, barLeft+progressW, barTop+progressH)
	draw.Draw(img, progressFill, &image.Uniform{progressColor}, image.Point{}, draw.Src)
}

// icon returns the cached control icon. While playing the strip offers
// pause, while paused it offers play.
func (p *Preview) icon(playing bool, size int) image.Image {
	if img, ok := p.icons[playing]; ok && img.Bounds().Dx() == size {
		return img
	}
	var img image.Image
	if playing {
		img = renderSVGIcon(iconPauseSVG, size, colorOrange, p.logger)
	} else {
		img = renderSVGIcon(iconPlaySVG, size, colorLimeGreen, p.logger)
	}
	p.icons[playing] = img
	return img
}

// renderSVGIcon renders an SVG string to an image with the given size and color.
func renderSVGIcon(svgContent string, size int, iconColor color.Color, logger zerolog.Logger) image.Image {
	// Replace currentColor with the actual color
	svgContent = strings.ReplaceAll(svgContent, "currentColor", compositor.HexColor(iconColor))

	img := image.NewRGBA(image.Rect(0, 0, size, size))

	icon, err := oksvg.ReadIconStream(strings.NewReader(svgContent))
	if err != nil {
		logger.Warn().Err(err).Msg("failed to parse SVG")
		return img
	}

	icon.SetTarget(0, 0, float64(size), float64(size))

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	return img
}

// drawTextRightAligned draws text aligned to the right edge.
func drawTextRightAligned(img *image.RGBA, text string, rightX, y int, face font.Face, col color.Color) {
	width := font.MeasureString(face, text).Ceil()
	x := rightX - width

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// formatDuration formats d as m:ss.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalSeconds := int64(d / time.Second)
	m := totalSeconds / 60
	s := totalSeconds % 60
	return fmt.Sprintf("%d:%02d", m, s)
}
