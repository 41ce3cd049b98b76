// Package overlay holds the text overlay descriptors drawn on top of video
// frames and the store that owns them.
package overlay

import "math"

// FontWeight selects the regular or bold face of a family.
type FontWeight string

const (
	WeightNormal FontWeight = "normal"
	WeightBold   FontWeight = "bold"
)

// Font families offered by the editor. Any other family name is accepted
// and resolved by the compositor's font book.
const (
	FamilyArial         = "Arial"
	FamilyGeorgia       = "Georgia"
	FamilyTimesNewRoman = "Times New Roman"
	FamilyCourierNew    = "Courier New"
	FamilyVerdana       = "Verdana"
	FamilyImpact        = "Impact"
)

// Families lists the built-in family names in display order.
var Families = []string{
	FamilyArial,
	FamilyGeorgia,
	FamilyTimesNewRoman,
	FamilyCourierNew,
	FamilyVerdana,
	FamilyImpact,
}

// Value ranges enforced by the setters.
const (
	MinPosition = 0.0
	MaxPosition = 100.0
	MinFontSize = 12.0
	MaxFontSize = 120.0
)

// None is the selection value meaning nothing is selected. Overlay ids
// start at 1, so it never collides with a real id.
const None = 0

// TextOverlay is one label drawn on the video. X and Y are percentages of
// the frame width and height and locate the center of the text.
type TextOverlay struct {
	ID         int        `json:"id" yaml:"id" toml:"id"`
	Text       string     `json:"text" yaml:"text" toml:"text"`
	X          float64    `json:"x" yaml:"x" toml:"x"`
	Y          float64    `json:"y" yaml:"y" toml:"y"`
	FontSize   float64    `json:"fontSize" yaml:"font_size" toml:"font_size"`
	Color      string     `json:"color" yaml:"color" toml:"color"`
	FontWeight FontWeight `json:"fontWeight" yaml:"font_weight" toml:"font_weight"`
	FontFamily string     `json:"fontFamily" yaml:"font_family" toml:"font_family"`
}

// Patch carries a partial update. Nil fields are left untouched.
type Patch struct {
	Text       *string
	X          *float64
	Y          *float64
	FontSize   *float64
	Color      *string
	FontWeight *FontWeight
	FontFamily *string
}

// apply merges p into o, clamping numeric fields into their ranges.
func (p Patch) apply(o *TextOverlay) {
	if p.Text != nil {
		o.Text = *p.Text
	}
	if p.X != nil {
		o.X = clamp(*p.X, MinPosition, MaxPosition)
	}
	if p.Y != nil {
		o.Y = clamp(*p.Y, MinPosition, MaxPosition)
	}
	if p.FontSize != nil {
		o.FontSize = clamp(*p.FontSize, MinFontSize, MaxFontSize)
	}
	if p.Color != nil {
		o.Color = *p.Color
	}
	if p.FontWeight != nil {
		o.FontWeight = *p.FontWeight
	}
	if p.FontFamily != nil {
		o.FontFamily = *p.FontFamily
	}
}

// normalize clamps a freshly added overlay the same way setters do.
func (o TextOverlay) normalize() TextOverlay {
	o.X = clamp(o.X, MinPosition, MaxPosition)
	o.Y = clamp(o.Y, MinPosition, MaxPosition)
	o.FontSize = clamp(o.FontSize, MinFontSize, MaxFontSize)
	if o.FontWeight == "" {
		o.FontWeight = WeightNormal
	}
	if o.FontFamily == "" {
		o.FontFamily = FamilyArial
	}
	return o
}

// clamp pins v into [lo, hi]. NaN has no place in the range and maps to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Default returns the fields used for a newly added overlay.
func Default() TextOverlay {
	return TextOverlay{
		Text:       "New Text",
		X:          50,
		Y:          50,
		FontSize:   32,
		Color:      "#FFFFFF",
		FontWeight: WeightNormal,
		FontFamily: FamilyArial,
	}
}

// Campaign returns the two overlays a fresh editor starts with.
func Campaign() []TextOverlay {
	return []TextOverlay{
		{
			ID:         1,
			Text:       "BLACK FRIDAY 28 NËNTORI",
			X:          50,
			Y:          20,
			FontSize:   48,
			Color:      "#FFFFFF",
			FontWeight: WeightBold,
			FontFamily: FamilyArial,
		},
		{
			ID:         2,
			Text:       "Personalizoni shishet me logo foto shkrime sipas dëshirës",
			X:          50,
			Y:          80,
			FontSize:   32,
			Color:      "#FFD700",
			FontWeight: WeightNormal,
			FontFamily: FamilyArial,
		},
	}
}
