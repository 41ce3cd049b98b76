package compositor

import (
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/phinze/overlaystudio/internal/overlay"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

type fontKey struct {
	family string
	weight overlay.FontWeight
}

type faceKey struct {
	fontKey
	size float64
}

// FontBook resolves (family, weight, size) to a font face. Built-in
// families map onto the embedded Go fonts; other families can be
// registered from TrueType or OpenType data.
//
// Faces returned by a FontBook are shared and, like all opentype faces, not
// safe for concurrent drawing. The Compositor serializes its use of them.
type FontBook struct {
	mu       sync.Mutex
	fonts    map[fontKey]*opentype.Font
	faces    map[faceKey]font.Face
	fallback string
}

// NewFontBook creates a font book with the built-in families registered.
func NewFontBook() (*FontBook, error) {
	b := &FontBook{
		fonts:    make(map[fontKey]*opentype.Font),
		faces:    make(map[faceKey]font.Face),
		fallback: overlay.FamilyArial,
	}

	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bold font: %w", err)
	}
	mono, err := opentype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mono font: %w", err)
	}
	monoBold, err := opentype.Parse(gomonobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mono bold font: %w", err)
	}

	for _, family := range []string{
		overlay.FamilyArial,
		overlay.FamilyGeorgia,
		overlay.FamilyTimesNewRoman,
		overlay.FamilyVerdana,
	} {
		b.set(family, overlay.WeightNormal, regular)
		b.set(family, overlay.WeightBold, bold)
	}
	b.set(overlay.FamilyCourierNew, overlay.WeightNormal, mono)
	b.set(overlay.FamilyCourierNew, overlay.WeightBold, monoBold)
	// Impact only comes in one heavy cut.
	b.set(overlay.FamilyImpact, overlay.WeightNormal, bold)
	b.set(overlay.FamilyImpact, overlay.WeightBold, bold)

	return b, nil
}

func (b *FontBook) set(family string, weight overlay.FontWeight, f *opentype.Font) {
	b.fonts[fontKey{family: normalizeFamily(family), weight: weight}] = f
}

func normalizeFamily(family string) string {
	return strings.ToLower(strings.TrimSpace(family))
}

// Register adds or replaces a family cut from raw font data.
func (b *FontBook) Register(family string, weight overlay.FontWeight, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse font %q (%s): %w", family, weight, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.set(family, weight, f)
	// Drop cached faces of this family so the new cut is picked up.
	for k := range b.faces {
		if k.family == normalizeFamily(family) {
			delete(b.faces, k)
		}
	}
	return nil
}

// RegisterFile registers a family cut from a font file on disk.
func (b *FontBook) RegisterFile(family string, weight overlay.FontWeight, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read font file: %w", err)
	}
	return b.Register(family, weight, data)
}

// Has reports whether family has at least one registered cut.
func (b *FontBook) Has(family string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.lookup(family, overlay.WeightNormal)
	if !ok {
		_, ok = b.lookup(family, overlay.WeightBold)
	}
	return ok
}

func (b *FontBook) lookup(family string, weight overlay.FontWeight) (*opentype.Font, bool) {
	f, ok := b.fonts[fontKey{family: normalizeFamily(family), weight: weight}]
	return f, ok
}

// resolve picks the closest registered cut: the requested weight, the
// family's other weight, then the fallback family.
func (b *FontBook) resolve(family string, weight overlay.FontWeight) (fontKey, *opentype.Font) {
	if weight != overlay.WeightBold {
		weight = overlay.WeightNormal
	}
	other := overlay.WeightBold
	if weight == overlay.WeightBold {
		other = overlay.WeightNormal
	}

	for _, k := range []fontKey{
		{family: family, weight: weight},
		{family: family, weight: other},
		{family: b.fallback, weight: weight},
		{family: b.fallback, weight: other},
	} {
		if f, ok := b.lookup(k.family, k.weight); ok {
			return fontKey{family: normalizeFamily(k.family), weight: k.weight}, f
		}
	}
	return fontKey{}, nil
}

// Face returns a face for the given family, weight and pixel size. Faces
// are cached and reused across calls. The size must be finite and
// positive.
func (b *FontBook) Face(family string, weight overlay.FontWeight, size float64) (font.Face, error) {
	if math.IsNaN(size) || math.IsInf(size, 0) || size <= 0 {
		return nil, fmt.Errorf("invalid font size %v", size)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key, f := b.resolve(family, weight)
	if f == nil {
		return nil, fmt.Errorf("no font registered for %q", family)
	}

	fk := faceKey{fontKey: key, size: size}
	if face, ok := b.faces[fk]; ok {
		return face, nil
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create face: %w", err)
	}
	b.faces[fk] = face
	return face, nil
}
