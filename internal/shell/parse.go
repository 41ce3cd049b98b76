package shell

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/phinze/overlaystudio/internal/overlay"
	"github.com/pkg/errors"
)

// ParseOverlay builds an overlay from comma separated key=value pairs, for
// example `text="Hello, world",x=50,y=20,size=48,color=#fff,weight=bold`.
// Unset fields take the default overlay's values. Values may be wrapped
// in double quotes to include commas.
func ParseOverlay(s string) (overlay.TextOverlay, error) {
	o := overlay.Default()

	pairs, err := splitPairs(s)
	if err != nil {
		return o, err
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return o, errors.Errorf("overlay field %q: expected key=value", pair)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = unquote(strings.TrimSpace(value))

		switch key {
		case "text":
			o.Text = value
		case "x", "y", "size", "font_size", "fontsize":
			v, err := parseNumber(value)
			if err != nil {
				return o, errors.Wrapf(err, "overlay field %s", key)
			}
			switch key {
			case "x":
				o.X = v
			case "y":
				o.Y = v
			default:
				o.FontSize = v
			}
		case "color", "colour":
			o.Color = value
		case "weight", "font_weight":
			w, err := ParseWeight(value)
			if err != nil {
				return o, err
			}
			o.FontWeight = w
		case "family", "font", "font_family":
			o.FontFamily = value
		default:
			return o, errors.Errorf("unknown overlay field %q", key)
		}
	}
	return o, nil
}

// parseNumber parses a finite decimal number. NaN and the infinities are
// refused so they never reach the store's setters.
func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("not a finite number")
	}
	return v, nil
}

// ParseWeight accepts normal/regular and bold.
func ParseWeight(s string) (overlay.FontWeight, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "regular", "400":
		return overlay.WeightNormal, nil
	case "bold", "700":
		return overlay.WeightBold, nil
	default:
		return "", errors.Errorf("unknown font weight %q", s)
	}
}

// ParsePosition reads a playback position as seconds ("12.5"), a Go
// duration ("1m30s") or m:ss ("1:30").
func ParsePosition(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty position")
	}

	if m, sec, ok := strings.Cut(s, ":"); ok {
		mins, err := strconv.Atoi(m)
		if err != nil {
			return 0, errors.Wrapf(err, "position %q", s)
		}
		secs, err := strconv.ParseFloat(sec, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "position %q", s)
		}
		return time.Duration(mins)*time.Minute + time.Duration(secs*float64(time.Second)), nil
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(v * float64(time.Second)), nil
	}

	d, err := time.ParseDuration(s)
	return d, errors.Wrapf(err, "position %q", s)
}

// splitPairs splits on commas outside double quotes.
func splitPairs(s string) ([]string, error) {
	var (
		pairs   []string
		current strings.Builder
		quoted  bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			current.WriteRune(r)
		case r == ',' && !quoted:
			if p := strings.TrimSpace(current.String()); p != "" {
				pairs = append(pairs, p)
			}
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if quoted {
		return nil, errors.Errorf("unterminated quote in %q", s)
	}
	if p := strings.TrimSpace(current.String()); p != "" {
		pairs = append(pairs, p)
	}
	return pairs, nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
