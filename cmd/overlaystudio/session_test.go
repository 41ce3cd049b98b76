package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/phinze/overlaystudio/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildStoreFromConfig(t *testing.T) {
	store, err := buildStore(config.Default(), []string{`text="Extra",y=50`}, false)
	require.NoError(t, err)

	list := store.List()
	require.Len(t, list, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, "Extra", list[2].Text)
	assert.Equal(t, 1, store.SelectedID())
}

func TestBuildStoreNumbersConfigOverlaysWithoutID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlaystudio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
overlays:
  - text: Headline
    y: 20
  - id: 5
    text: Footer
  - text: Badge
`), 0644))
	cfg, err := config.Load(path)
	require.NoError(t, err)

	store, err := buildStore(cfg, []string{"text=Extra"}, false)
	require.NoError(t, err)

	var got []string
	for _, o := range store.List() {
		got = append(got, fmt.Sprintf("%d:%s", o.ID, o.Text))
	}
	assert.Equal(t, []string{"5:Footer", "6:Headline", "7:Badge", "8:Extra"}, got)
	assert.Equal(t, 5, store.SelectedID())
}

func TestBuildStoreWithoutDefaults(t *testing.T) {
	store, err := buildStore(config.Default(), []string{"text=only"}, true)
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())
	assert.Equal(t, 1, store.SelectedID())

	store, err = buildStore(config.Default(), nil, true)
	require.NoError(t, err)
	assert.Zero(t, store.Len())
	assert.Zero(t, store.SelectedID())

	_, err = buildStore(config.Default(), []string{"nonsense"}, false)
	assert.Error(t, err)
}

func TestExportThroughCoordinator(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "still.png")
	f, err := os.Create(input)
	require.NoError(t, err)
	img := image.NewRGBA(image.Rect(0, 0, 120, 80))
	img.Set(0, 0, color.White)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	cfg := config.Default()
	cfg.Export.Filename = "out.jpg"
	store, err := buildStore(cfg, nil, false)
	require.NoError(t, err)

	coord, err := newCoordinator(cfg, store, nil, zerolog.Nop())
	require.NoError(t, err)
	defer coord.Close()

	ctx := context.Background()
	require.NoError(t, coord.Load(ctx, input))
	path, err := coord.SaveCurrentFrame(ctx, filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "out.jpg"), path)
}

func TestNewCoordinatorRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Canvas.Scaler = "sinc"
	_, err := newCoordinator(cfg, nil, nil, zerolog.Nop())
	assert.Error(t, err)
}
