// Package export encodes composited frames into image files.
package export

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// DefaultFilename is the name a downloaded frame is saved under.
const DefaultFilename = "video-frame-with-text.png"

// Format is a raster encoding.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	BMP  Format = "bmp"
	TIFF Format = "tiff"
)

// FormatFor picks the encoding from a filename extension, defaulting to PNG.
func FormatFor(filename string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case "", ".png":
		return PNG, nil
	case ".jpg", ".jpeg":
		return JPEG, nil
	case ".bmp":
		return BMP, nil
	case ".tif", ".tiff":
		return TIFF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", ext)
	}
}

// Exporter writes frames under a fixed filename.
type Exporter struct {
	Filename    string
	JPEGQuality int
}

// New creates an exporter. An empty filename uses DefaultFilename.
func New(filename string) *Exporter {
	if filename == "" {
		filename = DefaultFilename
	}
	return &Exporter{Filename: filename, JPEGQuality: 92}
}

// Format returns the encoding implied by the exporter's filename.
func (e *Exporter) Format() (Format, error) {
	return FormatFor(e.Filename)
}

// Encode writes img to w in the exporter's format.
func (e *Exporter) Encode(w io.Writer, img image.Image) error {
	format, err := e.Format()
	if err != nil {
		return err
	}

	switch format {
	case JPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: e.JPEGQuality})
	case BMP:
		err = bmp.Encode(w, img)
	case TIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = png.Encode(w, img)
	}
	return errors.Wrapf(err, "encode %s", format)
}

// Bytes encodes img into memory.
func (e *Exporter) Bytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes data to dir/Filename, replacing any previous export, and
// returns the path written.
func (e *Exporter) Save(dir string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("refusing to write an empty export")
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "create export dir")
	}

	path := filepath.Join(dir, e.Filename)
	if err := WriteFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteFileAtomic writes data to a temp file beside path and renames it
// into place, so readers never see a partial image.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "chmod temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "rename temp file")
	}
	return nil
}
