package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phinze/overlaystudio/internal/compositor"
	"github.com/phinze/overlaystudio/internal/export"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"
	"golang.org/x/image/font/gofont/goitalic"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 1280, cfg.Canvas.Width)
	assert.Equal(t, 720, cfg.Canvas.Height)
	assert.Equal(t, 60.0, cfg.Playback.RefreshRate)
	assert.Equal(t, export.DefaultFilename, cfg.Export.Filename)
	assert.Len(t, cfg.Overlays, 2)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
canvas:
  width: 640
  height: 360
  scaler: catmull-rom
shadow:
  blur: 0
overlays:
  - id: 7
    text: hello
    x: 10
    y: 90
    font_size: 24
    color: white
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 640, cfg.Canvas.Width)
	assert.Equal(t, 60.0, cfg.Playback.RefreshRate, "untouched sections keep defaults")
	require.Len(t, cfg.Overlays, 1)
	assert.Equal(t, "hello", cfg.Overlays[0].Text)
	assert.Equal(t, 24.0, cfg.Overlays[0].FontSize)

	cc, err := cfg.Compositor()
	require.NoError(t, err)
	assert.Equal(t, 640, cc.DefaultSize.X)
	assert.Equal(t, draw.CatmullRom, cc.Scaler)
	assert.Zero(t, cc.Shadow.Blur)
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[playback]
refresh_rate = 30

[export]
filename = "still.jpg"
dir = "out"
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30.0, cfg.Playback.RefreshRate)
	assert.Equal(t, "still.jpg", cfg.Export.Filename)
	assert.Equal(t, "out", cfg.Export.Dir)
	assert.InDelta(t, float64(time.Second/30), float64(cfg.Interval()), 1)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("canvas: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTripsBothFormats(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Canvas.Width = 320
	cfg.Fonts["Brand"] = FontFiles{Regular: "/fonts/brand.ttf"}

	for _, name := range []string{"c.yaml", "c.toml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, cfg.Save(path), name)

		got, err := Load(path)
		require.NoError(t, err, name)
		assert.Equal(t, 320, got.Canvas.Width, name)
		assert.Equal(t, "/fonts/brand.ttf", got.Fonts["Brand"].Regular, name)
		assert.Equal(t, cfg.Overlays, got.Overlays, name)
	}
}

func TestCompositorDefaultsMatchBuiltins(t *testing.T) {
	cc, err := Default().Compositor()
	require.NoError(t, err)
	assert.Equal(t, compositor.DefaultShadow, cc.Shadow)
	assert.Equal(t, compositor.DefaultSize, cc.DefaultSize)
}

func TestCompositorRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Canvas.Scaler = "lanczos"
	_, err := cfg.Compositor()
	assert.Error(t, err)

	cfg = Default()
	cfg.Shadow.Color = "not-a-color"
	_, err = cfg.Compositor()
	assert.Error(t, err)

	cfg = Default()
	cfg.Shadow.Blur = -1
	_, err = cfg.Compositor()
	assert.Error(t, err)
}

func TestRegisterFonts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "italic.ttf")
	require.NoError(t, os.WriteFile(path, goitalic.TTF, 0644))

	book, err := compositor.NewFontBook()
	require.NoError(t, err)

	cfg := Default()
	cfg.Fonts["Slanted"] = FontFiles{Regular: path}
	require.NoError(t, cfg.RegisterFonts(book))
	assert.True(t, book.Has("Slanted"))

	cfg.Fonts["Broken"] = FontFiles{}
	assert.Error(t, cfg.RegisterFonts(book))
}

func TestContextRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Canvas.Width = 99

	ctx := WithConfig(context.Background(), cfg)
	assert.Same(t, cfg, FromContext(ctx))
	assert.Equal(t, 1280, FromContext(context.Background()).Canvas.Width)
}
