package compositor

import (
	"image"
	"image/color"
	"math"
)

// Shadow describes the drop shadow painted under every label.
type Shadow struct {
	Color   color.NRGBA
	Blur    float64
	OffsetX int
	OffsetY int
}

// DefaultShadow is black at 80% opacity, blur 10, offset (2,2).
var DefaultShadow = Shadow{
	Color:   color.NRGBA{A: 204},
	Blur:    10,
	OffsetX: 2,
	OffsetY: 2,
}

// sigma converts a blur radius to a gaussian deviation the way canvas
// shadowBlur does.
func (s Shadow) sigma() float64 {
	return s.Blur / 2
}

// padding is how far the blurred mask can reach past the glyph ink.
func (s Shadow) padding() int {
	return int(math.Ceil(3*s.sigma())) + 1
}

func (s Shadow) visible() bool {
	return s.Color.A > 0
}

// boxRadii returns three box-blur radii approximating a gaussian of the
// given deviation.
func boxRadii(sigma float64) [3]int {
	var radii [3]int
	if sigma <= 0 {
		return radii
	}

	const n = 3
	wIdeal := math.Sqrt(12*sigma*sigma/n + 1)
	wl := int(math.Floor(wIdeal))
	if wl%2 == 0 {
		wl--
	}
	wu := wl + 2

	mIdeal := (12*sigma*sigma - n*float64(wl*wl) - 4*n*float64(wl) - 3*n) / (-4*float64(wl) - 4)
	m := int(math.Round(mIdeal))

	for i := range radii {
		w := wu
		if i < m {
			w = wl
		}
		radii[i] = (w - 1) / 2
	}
	return radii
}

// blurAlpha blurs mask in place. Pixels outside the mask count as empty.
func blurAlpha(mask *image.Alpha, sigma float64) {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return
	}

	tmp := make([]uint8, len(mask.Pix))
	for _, r := range boxRadii(sigma) {
		if r <= 0 {
			continue
		}
		boxBlurH(mask.Pix, tmp, mask.Stride, w, h, r)
		boxBlurV(tmp, mask.Pix, mask.Stride, w, h, r)
	}
}

func boxBlurH(src, dst []uint8, stride, w, h, r int) {
	div := 2*r + 1
	for y := 0; y < h; y++ {
		row := y * stride
		sum := 0
		for x := 0; x <= r && x < w; x++ {
			sum += int(src[row+x])
		}
		for x := 0; x < w; x++ {
			dst[row+x] = uint8(sum / div)
			if in := x + r + 1; in < w {
				sum += int(src[row+in])
			}
			if out := x - r; out >= 0 {
				sum -= int(src[row+out])
			}
		}
	}
}

func boxBlurV(src, dst []uint8, stride, w, h, r int) {
	div := 2*r + 1
	for x := 0; x < w; x++ {
		sum := 0
		for y := 0; y <= r && y < h; y++ {
			sum += int(src[y*stride+x])
		}
		for y := 0; y < h; y++ {
			dst[y*stride+x] = uint8(sum / div)
			if in := y + r + 1; in < h {
				sum += int(src[in*stride+x])
			}
			if out := y - r; out >= 0 {
				sum -= int(src[out*stride+x])
			}
		}
	}
}
