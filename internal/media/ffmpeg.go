package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// VideoSource decodes frames from a video file with ffmpeg, keeping the
// last decoded frame for repeated positions.
type VideoSource struct {
	meta   Metadata
	logger zerolog.Logger

	mu          sync.Mutex
	cachedIndex int64
	cached      image.Image
	stream      *frameStream
}

// OpenVideo probes path with ffprobe. Files ffprobe rejects, or that have
// no video stream, are reported as ErrUnsupportedMedia.
func OpenVideo(ctx context.Context, path string, logger zerolog.Logger) (*VideoSource, error) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return nil, errors.Wrap(ErrUnsupportedMedia, "ffprobe not found in PATH")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	probe, err := ffmpeg.Probe(path)
	if err != nil {
		return nil, errors.Wrapf(ErrUnsupportedMedia, "probe %s: %v", path, err)
	}

	meta, err := parseProbe(probe)
	if err != nil {
		return nil, errors.Wrapf(ErrUnsupportedMedia, "probe %s: %v", path, err)
	}
	meta.Path = path

	logger = logger.With().Str("component", "media").Str("path", path).Logger()
	logger.Debug().
		Int("width", meta.Width).
		Int("height", meta.Height).
		Dur("duration", meta.Duration).
		Float64("fps", meta.FPS).
		Str("codec", meta.Codec).
		Msg("probed video")

	return &VideoSource{
		meta:        meta,
		logger:      logger,
		cachedIndex: -1,
	}, nil
}

// probeResult matches the parts of ffprobe's JSON output we read.
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		Duration   string `json:"duration"`
	} `json:"streams"`
}

func parseProbe(probe string) (Metadata, error) {
	var res probeResult
	if err := json.Unmarshal([]byte(probe), &res); err != nil {
		return Metadata{}, errors.WithStack(err)
	}

	var meta Metadata
	found := false
	for _, s := range res.Streams {
		if s.CodecType != "video" {
			continue
		}
		meta.Width = s.Width
		meta.Height = s.Height
		meta.Codec = s.CodecName
		meta.FPS = parseFrameRate(s.RFrameRate)
		meta.Duration = parseSeconds(s.Duration)
		found = true
		break
	}
	if !found {
		return Metadata{}, fmt.Errorf("no video stream found")
	}

	// Prefer the stream duration, fall back to the container's.
	if meta.Duration == 0 {
		meta.Duration = parseSeconds(res.Format.Duration)
	}
	return meta, nil
}

func parseSeconds(s string) time.Duration {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}

// parseFrameRate parses ffprobe rationals such as "30000/1001".
func parseFrameRate(s string) float64 {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

func (v *VideoSource) Metadata() Metadata {
	return v.meta
}

// frameIndex maps a position to the index of the frame on screen.
func (v *VideoSource) frameIndex(t time.Duration) int64 {
	fps := v.meta.FPS
	if fps <= 0 {
		fps = 30
	}
	return int64(math.Floor(t.Seconds() * fps))
}

// FrameAt returns the frame at t. Playback that moves forward a few frames
// at a time is read from a running rawvideo stream; other positions are
// extracted one at a time as PNG.
func (v *VideoSource) FrameAt(ctx context.Context, t time.Duration) (image.Image, error) {
	t = clampPosition(t, v.meta.Duration)
	idx := v.frameIndex(t)

	v.mu.Lock()
	defer v.mu.Unlock()

	if idx == v.cachedIndex && v.cached != nil {
		return v.cached, nil
	}

	if !v.stream.reaches(idx) {
		v.stopStream()
		if v.followsCached(idx) {
			stream, err := startStream(v.meta, idx, t.Seconds())
			if err != nil {
				v.logger.Debug().Err(err).Msg("frame stream unavailable")
			} else {
				v.stream = stream
			}
		}
	}

	if v.stream != nil {
		img, err := v.stream.frameAt(ctx, idx)
		if err == nil {
			v.keep(idx, img)
			return img, nil
		}
		v.stopStream()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		v.logger.Debug().Err(err).Int64("frame", idx).Msg("frame stream ended")
	}

	img, err := v.extractFrame(ctx, t)
	if err != nil {
		return nil, err
	}
	v.keep(idx, img)
	return img, nil
}

// followsCached reports whether idx lies just ahead of the last decoded
// frame, which is what a playing clock asks for.
func (v *VideoSource) followsCached(idx int64) bool {
	return v.cachedIndex >= 0 && idx > v.cachedIndex && idx-v.cachedIndex <= streamWindow
}

func (v *VideoSource) keep(idx int64, img image.Image) {
	v.cachedIndex = idx
	v.cached = img
}

func (v *VideoSource) stopStream() {
	if v.stream == nil {
		return
	}
	if stderr := v.stream.close(); stderr != "" {
		v.logger.Trace().Str("stderr", stderr).Msg("frame stream stopped")
	}
	v.stream = nil
}

// extractFrame runs a one-shot ffmpeg that seeks to t and writes a single
// PNG frame to a pipe.
func (v *VideoSource) extractFrame(ctx context.Context, t time.Duration) (image.Image, error) {
	// Seeking exactly to the end yields no frame; step back one frame.
	if v.meta.Duration > 0 && t >= v.meta.Duration && v.meta.FPS > 0 {
		t -= time.Duration(float64(time.Second) / v.meta.FPS)
		if t < 0 {
			t = 0
		}
	}

	var stdout, stderr bytes.Buffer
	cmd := ffmpeg.Input(v.meta.Path, ffmpeg.KwArgs{"ss": fmt.Sprintf("%.3f", t.Seconds())}).
		Output("pipe:", ffmpeg.KwArgs{
			"vframes": 1,
			"format":  "image2",
			"vcodec":  "png",
		}).
		Compile()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := runWithContext(ctx, cmd); err != nil {
		v.logger.Debug().Str("stderr", stderr.String()).Msg("frame extraction failed")
		return nil, errors.Wrapf(err, "extract frame at %s", t)
	}

	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, errors.Wrapf(ErrUnsupportedMedia, "decode frame at %s: %v", t, err)
	}
	return img, nil
}

// runWithContext runs cmd, killing it if ctx is cancelled first.
func runWithContext(ctx context.Context, cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "start ffmpeg")
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return ctx.Err()
	}
}

func (v *VideoSource) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopStream()
	v.cached = nil
	v.cachedIndex = -1
	return nil
}
