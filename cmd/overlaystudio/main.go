package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/phinze/overlaystudio/internal/config"
	"github.com/phinze/overlaystudio/internal/coordinator"
	"github.com/phinze/overlaystudio/internal/logging"
	"github.com/phinze/overlaystudio/internal/media"
	"github.com/phinze/overlaystudio/internal/shell"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	logJSON bool
)

func main() {
	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "overlaystudio",
	Short: "overlaystudio - text overlays on video frames",
	Long:  "Preview video with styled text overlays, edit them live, and export the current frame as an image.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(logging.Options{Verbose: verbose, JSON: logJSON})

		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./overlaystudio.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON lines")

	exportCmd.Flags().String("at", "0", "playback position to export (seconds, 1m30s or m:ss)")
	exportCmd.Flags().String("out-dir", "", "directory to write the image to (default from config)")
	exportCmd.Flags().String("filename", "", "output filename; the extension picks the format")
	exportCmd.Flags().StringArray("overlay", nil, `extra overlay, e.g. text="Hi",x=50,y=10,size=48,color=#fff,weight=bold`)
	exportCmd.Flags().Bool("no-defaults", false, "skip the overlays from config")

	playCmd.Flags().String("preview", "preview.png", "file the preview frames are written to")
	playCmd.Flags().Duration("preview-interval", shell.DefaultPreviewInterval, "minimum time between preview writes while playing")
	playCmd.Flags().Duration("for", 0, "stop after this long (0 plays until the end or ctrl-c)")
	playCmd.Flags().Bool("interactive", false, "read editor commands from stdin")
	playCmd.Flags().StringArray("overlay", nil, "extra overlay (see export --help)")
	playCmd.Flags().Bool("no-defaults", false, "skip the overlays from config")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configShowCmd.Flags().Bool("toml", false, "print as TOML")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(configCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [input video]",
	Short: "Render the overlays onto one frame and save it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		at, _ := cmd.Flags().GetString("at")
		outDir, _ := cmd.Flags().GetString("out-dir")
		filename, _ := cmd.Flags().GetString("filename")
		specs, _ := cmd.Flags().GetStringArray("overlay")
		noDefaults, _ := cmd.Flags().GetBool("no-defaults")

		pos, err := shell.ParsePosition(at)
		if err != nil {
			return err
		}
		if outDir == "" {
			outDir = cfg.Export.Dir
		}
		if filename != "" {
			cfg.Export.Filename = filename
		}

		store, err := buildStore(cfg, specs, noDefaults)
		if err != nil {
			return err
		}
		coord, err := newCoordinator(cfg, store, nil, log.Logger)
		if err != nil {
			return err
		}
		defer coord.Close()

		if err := coord.Load(ctx, args[0]); err != nil {
			return err
		}
		if err := coord.Seek(ctx, pos); err != nil {
			return err
		}

		path, err := coord.SaveCurrentFrame(ctx, outDir)
		if err != nil {
			return err
		}

		log.Info().
			Str("path", path).
			Dur("position", coord.Position()).
			Int("overlays", store.Len()).
			Msg("frame exported")
		fmt.Println(path)
		return nil
	},
}

var playCmd = &cobra.Command{
	Use:   "play [input video]",
	Short: "Play a video with overlays into a preview image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		previewPath, _ := cmd.Flags().GetString("preview")
		interval, _ := cmd.Flags().GetDuration("preview-interval")
		limit, _ := cmd.Flags().GetDuration("for")
		interactive, _ := cmd.Flags().GetBool("interactive")
		specs, _ := cmd.Flags().GetStringArray("overlay")
		noDefaults, _ := cmd.Flags().GetBool("no-defaults")

		preview, err := shell.NewPreview(previewPath, interval, log.Logger)
		if err != nil {
			return err
		}
		store, err := buildStore(cfg, specs, noDefaults)
		if err != nil {
			return err
		}
		coord, err := newCoordinator(cfg, store, preview, log.Logger)
		if err != nil {
			return err
		}
		defer coord.Close()

		if err := coord.Load(ctx, args[0]); err != nil {
			return err
		}

		runCtx := ctx
		if limit > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, limit)
			defer cancel()
		}

		if err := coord.Play(); err != nil {
			return err
		}
		log.Info().
			Str("session", coord.ID()).
			Str("preview", previewPath).
			Msg("playing, press ctrl-c to stop")

		if interactive {
			console := shell.NewConsole(coord, os.Stdout, cfg.Export.Dir, log.Logger)
			err = console.Run(runCtx, os.Stdin)
		} else {
			err = waitForEnd(runCtx, coord)
		}

		coord.Pause()
		log.Info().
			Dur("position", coord.Position()).
			Int("previews", preview.Written()).
			Msg("stopped")
		return err
	},
}

// waitForEnd blocks until playback reaches the end of the media or ctx is
// done.
func waitForEnd(ctx context.Context, coord *coordinator.Coordinator) error {
	meta, _ := coord.Metadata()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if meta.Duration > 0 && coord.Position() >= meta.Duration {
				return nil
			}
		}
	}
}

var probeCmd = &cobra.Command{
	Use:   "probe [input video]",
	Short: "Print what the decoders see in a media file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := media.Open(cmd.Context(), args[0], log.Logger)
		if err != nil {
			return err
		}
		defer src.Close()

		meta := src.Metadata()
		fmt.Printf("path:     %s\n", meta.Path)
		fmt.Printf("size:     %dx%d\n", meta.Width, meta.Height)
		fmt.Printf("duration: %s\n", meta.Duration)
		if meta.FPS > 0 {
			fmt.Printf("fps:      %.3f\n", meta.FPS)
		}
		if meta.Codec != "" {
			fmt.Printf("codec:    %s\n", meta.Codec)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		asTOML, _ := cmd.Flags().GetBool("toml")
		data, err := config.FromContext(cmd.Context()).Marshal(asTOML)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "overlaystudio.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("config written")
		return nil
	},
}
