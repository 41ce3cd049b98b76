package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// streamWindow is how far ahead of a running stream a request may land
// and still be served by reading forward instead of seeking.
const streamWindow = 48

// frameStream is a long-lived ffmpeg process decoding consecutive frames
// as raw RGBA into a pipe. Sequential playback reads from it; seeks spawn
// a one-shot extraction instead.
type frameStream struct {
	cmd    *exec.Cmd
	out    io.ReadCloser
	stderr bytes.Buffer

	width  int
	height int
	// next is the index of the frame the next read yields.
	next int64
}

// startStream launches ffmpeg decoding from t, which is the time of frame
// index start, at the source's frame rate.
func startStream(meta Metadata, start int64, t float64) (*frameStream, error) {
	if meta.Width <= 0 || meta.Height <= 0 {
		return nil, errors.Errorf("stream needs frame dimensions, got %dx%d", meta.Width, meta.Height)
	}

	out := ffmpeg.KwArgs{
		"format":  "rawvideo",
		"pix_fmt": "rgba",
		"s":       fmt.Sprintf("%dx%d", meta.Width, meta.Height),
	}
	if meta.FPS > 0 {
		out["r"] = fmt.Sprintf("%g", meta.FPS)
	}
	cmd := ffmpeg.Input(meta.Path, ffmpeg.KwArgs{"ss": fmt.Sprintf("%.3f", t)}).
		Output("pipe:", out).
		Compile()

	s := &frameStream{
		cmd:    cmd,
		width:  meta.Width,
		height: meta.Height,
		next:   start,
	}
	cmd.Stderr = &s.stderr

	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stream stdout")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "start ffmpeg stream")
	}
	s.out = pipe
	return s, nil
}

// reaches reports whether frame idx can be read from the stream without
// going backwards or skipping more than streamWindow frames.
func (s *frameStream) reaches(idx int64) bool {
	return s != nil && idx >= s.next && idx-s.next <= streamWindow
}

// frameAt reads forward to frame idx. A cancelled ctx kills the process,
// after which the stream is unusable.
func (s *frameStream) frameAt(ctx context.Context, idx int64) (*image.RGBA, error) {
	if !s.reaches(idx) {
		return nil, errors.Errorf("frame %d is not ahead of stream at %d", idx, s.next)
	}

	stop := context.AfterFunc(ctx, s.kill)
	defer stop()

	size := int64(s.width * s.height * 4)
	if skip := idx - s.next; skip > 0 {
		if _, err := io.CopyN(io.Discard, s.out, skip*size); err != nil {
			return nil, s.readErr(ctx, err)
		}
		s.next = idx
	}

	img, err := readRGBA(s.out, s.width, s.height)
	if err != nil {
		return nil, s.readErr(ctx, err)
	}
	s.next++
	return img, nil
}

func (s *frameStream) readErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.Wrapf(err, "read frame %d", s.next)
}

func (s *frameStream) kill() {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
}

// close stops ffmpeg and reaps it. The stream's stderr is returned for
// logging.
func (s *frameStream) close() string {
	if s == nil {
		return ""
	}
	s.kill()
	_ = s.out.Close()
	_ = s.cmd.Wait()
	return s.stderr.String()
}

// readRGBA reads one w x h frame of packed RGBA bytes from r.
func readRGBA(r io.Reader, w, h int) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if _, err := io.ReadFull(r, img.Pix); err != nil {
		return nil, err
	}
	return img, nil
}
