package media

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageSource serves one still frame for every position.
type ImageSource struct {
	frame image.Image
	meta  Metadata
}

// NewImageSource wraps an in-memory frame. duration sets the length of the
// timeline the frame is shown for; zero is allowed.
func NewImageSource(frame image.Image, duration time.Duration) *ImageSource {
	size := frame.Bounds().Size()
	return &ImageSource{
		frame: frame,
		meta: Metadata{
			Width:    size.X,
			Height:   size.Y,
			Duration: duration,
		},
	}
}

// OpenImage decodes a still image file.
func OpenImage(path string) (*ImageSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open image")
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(ErrUnsupportedMedia, "decode %s: %v", path, err)
	}

	src := NewImageSource(img, 0)
	src.meta.Path = path
	src.meta.Codec = format
	return src, nil
}

// isStillImage reports whether the file header matches a registered image
// format.
func isStillImage(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	_, _, err = image.DecodeConfig(f)
	return err == nil
}

func (s *ImageSource) Metadata() Metadata {
	return s.meta
}

func (s *ImageSource) FrameAt(ctx context.Context, t time.Duration) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.frame, nil
}

func (s *ImageSource) Close() error {
	return nil
}
