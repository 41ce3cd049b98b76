package shell

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/phinze/overlaystudio/internal/compositor"
	"github.com/phinze/overlaystudio/internal/coordinator"
	"github.com/phinze/overlaystudio/internal/export"
	"github.com/phinze/overlaystudio/internal/media"
	"github.com/phinze/overlaystudio/internal/overlay"
	"github.com/phinze/overlaystudio/internal/playback"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"
)

func solidFrame(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func TestPreviewRenderAppendsStrip(t *testing.T) {
	p, err := NewPreview(filepath.Join(t.TempDir(), "preview.png"), 0, zerolog.Nop())
	require.NoError(t, err)

	frame := solidFrame(320, 180, color.RGBA{200, 0, 0, 255})
	img := p.Render(frame, coordinator.Status{Position: 30 * time.Second, Duration: time.Minute})

	require.Equal(t, image.Rect(0, 0, 320, 180+StripHeight), img.Bounds())
	assert.Equal(t, color.RGBA{200, 0, 0, 255}, img.RGBAAt(160, 90), "frame is copied untouched")
	assert.Equal(t, colorBackground, img.RGBAAt(1, 180+1))

	// Paused progress is orange up to the halfway point of the bar.
	y := 180 + StripHeight/2
	x := 0
	for x < 320 && img.RGBAAt(x, y) != colorOrange {
		x++
	}
	orange := 0
	for ; x < 320 && img.RGBAAt(x, y) == colorOrange; x++ {
		orange++
	}
	track := 0
	for ; x < 320 && img.RGBAAt(x, y) == colorProgressBg; x++ {
		track++
	}
	assert.Greater(t, orange, 0)
	assert.InDelta(t, orange, track, 1)
}

func TestPreviewPlayingUsesGreen(t *testing.T) {
	p, err := NewPreview(filepath.Join(t.TempDir(), "preview.png"), 0, zerolog.Nop())
	require.NoError(t, err)

	img := p.Render(solidFrame(320, 100, color.Black), coordinator.Status{
		Playing:  true,
		Position: time.Minute,
		Duration: time.Minute,
	})

	var green int
	for x := 0; x < 320; x++ {
		if img.RGBAAt(x, 100+StripHeight/2) == colorLimeGreen {
			green++
		}
	}
	assert.Greater(t, green, 0)
}

func TestPreviewIconIsDrawn(t *testing.T) {
	icon := renderSVGIcon(iconPlaySVG, 24, colorLimeGreen, zerolog.Nop())
	require.Equal(t, image.Rect(0, 0, 24, 24), icon.Bounds())

	var painted int
	rgba := icon.(*image.RGBA)
	for i := 3; i < len(rgba.Pix); i += 4 {
		if rgba.Pix[i] > 0 {
			painted++
		}
	}
	assert.Greater(t, painted, 24*24/10)
}

func TestPreviewThrottlesTicks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preview.png")
	p, err := NewPreview(path, time.Second, zerolog.Nop())
	require.NoError(t, err)

	now := time.Unix(1000, 0)
	p.now = func() time.Time { return now }
	frame := solidFrame(32, 18, color.White)

	p.Present(frame, coordinator.Status{Trigger: coordinator.TriggerTick})
	p.Present(frame, coordinator.Status{Trigger: coordinator.TriggerTick})
	assert.Equal(t, 1, p.Written())

	p.Present(frame, coordinator.Status{Trigger: coordinator.TriggerEdit})
	assert.Equal(t, 2, p.Written(), "edits are never throttled")

	now = now.Add(2 * time.Second)
	p.Present(frame, coordinator.Status{Trigger: coordinator.TriggerTick})
	assert.Equal(t, 3, p.Written())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 18+StripHeight, img.Bounds().Dy())
}

func TestNewPreviewRejectsUnknownFormat(t *testing.T) {
	_, err := NewPreview("preview.gif", 0, zerolog.Nop())
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0:00", formatDuration(0))
	assert.Equal(t, "0:00", formatDuration(-time.Second))
	assert.Equal(t, "1:05", formatDuration(65*time.Second+900*time.Millisecond))
	assert.Equal(t, "61:00", formatDuration(61*time.Minute))
}

func TestParseOverlay(t *testing.T) {
	o, err := ParseOverlay(`text="Hello, world",x=10,y=90,size=24,color=#ff0,weight=bold,family=Courier New`)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", o.Text)
	assert.Equal(t, 10.0, o.X)
	assert.Equal(t, 90.0, o.Y)
	assert.Equal(t, 24.0, o.FontSize)
	assert.Equal(t, "#ff0", o.Color)
	assert.Equal(t, overlay.WeightBold, o.FontWeight)
	assert.Equal(t, overlay.FamilyCourierNew, o.FontFamily)

	o, err = ParseOverlay("")
	require.NoError(t, err)
	assert.Equal(t, overlay.Default(), o)

	for _, bad := range []string{"text", "x=abc", "weight=heavy", "shadow=1", `text="open`, "size=nan", "x=inf", "y=-Inf", "size=1e400"} {
		_, err := ParseOverlay(bad)
		assert.Error(t, err, bad)
	}
}

func TestParsePosition(t *testing.T) {
	cases := map[string]time.Duration{
		"12.5":  12500 * time.Millisecond,
		"1:30":  90 * time.Second,
		"1m30s": 90 * time.Second,
		"0":     0,
	}
	for in, want := range cases {
		got, err := ParsePosition(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "soon", "a:10"} {
		_, err := ParsePosition(bad)
		assert.Error(t, err, bad)
	}
}

type nopScheduler struct{}

func (nopScheduler) Start(func()) {}
func (nopScheduler) Stop()        {}

func newConsole(t *testing.T, loaded bool) (*Console, *coordinator.Coordinator, *bytes.Buffer, string) {
	t.Helper()
	book, err := compositor.NewFontBook()
	require.NoError(t, err)

	coord := coordinator.New(overlay.NewCampaignStore(), compositor.New(book, compositor.DefaultConfig(), zerolog.Nop()), coordinator.Options{
		Scheduler: nopScheduler{},
		Logger:    zerolog.Nop(),
	})
	t.Cleanup(func() { coord.Close() })

	if loaded {
		src := media.NewImageSource(solidFrame(64, 36, color.Gray{80}), 90*time.Second)
		require.NoError(t, coord.LoadSource(context.Background(), src))
	}

	var out bytes.Buffer
	dir := t.TempDir()
	return NewConsole(coord, &out, dir, zerolog.Nop()), coord, &out, dir
}

func TestConsoleEditsOverlays(t *testing.T) {
	c, coord, out, _ := newConsole(t, true)
	ctx := context.Background()
	store := coord.Store()

	require.NoError(t, c.Exec(ctx, `add text="Sale ends Sunday",y=60`))
	assert.Contains(t, out.String(), "added 3")
	assert.Equal(t, 3, store.SelectedID())

	require.NoError(t, c.Exec(ctx, "text 3 Two words"))
	require.NoError(t, c.Exec(ctx, "move 3 25 75"))
	require.NoError(t, c.Exec(ctx, "size 3 500"))
	require.NoError(t, c.Exec(ctx, "color 3 gold"))
	require.NoError(t, c.Exec(ctx, "weight 3 bold"))
	require.NoError(t, c.Exec(ctx, "family 3 Times New Roman"))

	o, ok := store.Get(3)
	require.True(t, ok)
	assert.Equal(t, "Two words", o.Text)
	assert.Equal(t, 25.0, o.X)
	assert.Equal(t, 75.0, o.Y)
	assert.Equal(t, overlay.MaxFontSize, o.FontSize)
	assert.Equal(t, "gold", o.Color)
	assert.Equal(t, overlay.WeightBold, o.FontWeight)
	assert.Equal(t, overlay.FamilyTimesNewRoman, o.FontFamily)

	require.NoError(t, c.Exec(ctx, "select 1"))
	require.NoError(t, c.Exec(ctx, "remove 2"))
	out.Reset()
	require.NoError(t, c.Exec(ctx, "list"))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "* 1 "))
	assert.True(t, strings.HasPrefix(lines[1], "  3 "))

	// Unknown ids are ignored.
	require.NoError(t, c.Exec(ctx, "text 42 nobody"))
	assert.Equal(t, 2, store.Len())
}

func TestConsoleRejectsNonFiniteNumbers(t *testing.T) {
	c, coord, _, _ := newConsole(t, true)
	ctx := context.Background()
	store := coord.Store()
	before, ok := store.Get(1)
	require.True(t, ok)

	for _, line := range []string{
		"size 1 nan",
		"size 1 NaN",
		"x 1 inf",
		"y 1 -Inf",
		"move 1 -inf 5",
		"move 1 5 nan",
		`add text="x",size=nan`,
	} {
		assert.ErrorContains(t, c.Exec(ctx, line), "not a finite number", line)
	}

	after, _ := store.Get(1)
	assert.Equal(t, before, after)
	assert.Equal(t, 2, store.Len())

	// Rendering keeps working after the rejected edits.
	require.NoError(t, coord.RenderNow(ctx, coordinator.TriggerEdit))
}

func TestConsolePlaybackAndExport(t *testing.T) {
	c, coord, out, dir := newConsole(t, true)
	ctx := context.Background()

	require.NoError(t, c.Exec(ctx, "seek 1:15"))
	assert.Equal(t, 75*time.Second, coord.Position())

	require.NoError(t, c.Exec(ctx, "play"))
	assert.Equal(t, playback.Playing, coord.State())
	require.NoError(t, c.Exec(ctx, "toggle"))
	assert.Equal(t, playback.Paused, coord.State())

	require.NoError(t, c.Exec(ctx, "export"))
	assert.Contains(t, out.String(), export.DefaultFilename)
	_, err := os.Stat(filepath.Join(dir, export.DefaultFilename))
	assert.NoError(t, err)
}

func TestConsoleWithoutMedia(t *testing.T) {
	c, _, _, dir := newConsole(t, false)
	ctx := context.Background()

	assert.ErrorIs(t, c.Exec(ctx, "play"), coordinator.ErrNoSource)
	assert.ErrorContains(t, c.Exec(ctx, "export"), "unavailable")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestConsoleRun(t *testing.T) {
	c, coord, out, _ := newConsole(t, true)

	in := strings.NewReader("bogus\nsize 1\nselect 2\nquit\nremove 1\n")
	require.NoError(t, c.Run(context.Background(), in))

	assert.Contains(t, out.String(), `unknown command "bogus"`)
	assert.Contains(t, out.String(), "usage: size <id> <px>")
	assert.Equal(t, 2, coord.Store().SelectedID())
	assert.Equal(t, 2, coord.Store().Len(), "commands after quit are not run")
}
