package main

import (
	"github.com/phinze/overlaystudio/internal/compositor"
	"github.com/phinze/overlaystudio/internal/config"
	"github.com/phinze/overlaystudio/internal/coordinator"
	"github.com/phinze/overlaystudio/internal/export"
	"github.com/phinze/overlaystudio/internal/overlay"
	"github.com/phinze/overlaystudio/internal/playback"
	"github.com/phinze/overlaystudio/internal/shell"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// buildStore seeds a store from the configured overlays plus any given on
// the command line. The first overlay starts selected.
func buildStore(cfg *config.Config, specs []string, noDefaults bool) (*overlay.Store, error) {
	var seed []overlay.TextOverlay
	if !noDefaults {
		seed = append(seed, cfg.Overlays...)
	}

	store := overlay.NewStore(seed...)
	for _, spec := range specs {
		o, err := shell.ParseOverlay(spec)
		if err != nil {
			return nil, errors.Wrapf(err, "--overlay %q", spec)
		}
		store.Add(o)
	}

	if list := store.List(); len(list) > 0 {
		store.Select(list[0].ID)
	}
	return store, nil
}

// newCoordinator wires the compositor, fonts and scheduler described by cfg.
func newCoordinator(cfg *config.Config, store *overlay.Store, presenter coordinator.Presenter, logger zerolog.Logger) (*coordinator.Coordinator, error) {
	book, err := compositor.NewFontBook()
	if err != nil {
		return nil, err
	}
	if err := cfg.RegisterFonts(book); err != nil {
		return nil, err
	}

	compCfg, err := cfg.Compositor()
	if err != nil {
		return nil, err
	}

	return coordinator.New(store, compositor.New(book, compCfg, logger), coordinator.Options{
		Scheduler: playback.NewTickerScheduler(cfg.Interval()),
		Presenter: presenter,
		Exporter:  export.New(cfg.Export.Filename),
		Logger:    logger,
	}), nil
}
