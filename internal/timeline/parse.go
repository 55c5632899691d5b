package timeline

import (
	"math"
	"strconv"
	"strings"
)

// Parse-or-default helpers for the loosely typed detail fields. None of them
// fail: malformed input yields the documented default.

const DefaultFontSize = 48

// PixelOffset parses "120px", "120" or "-4.6px" into whole pixels. Default 0.
func PixelOffset(s FlexString) int {
	v := strings.TrimSpace(string(s))
	v = strings.TrimSpace(strings.TrimSuffix(v, "px"))
	f, ok := parseFinite(v)
	if !ok {
		return 0
	}
	return int(math.Round(f))
}

// ScaleFactor extracts the argument of scale(...) from a CSS-like transform.
// Default 1.
func ScaleFactor(s FlexString) float64 {
	t := string(s)
	start := strings.Index(t, "scale(")
	if start < 0 {
		return 1
	}
	rest := t[start+len("scale("):]
	end := strings.IndexByte(rest, ')')
	if end < 0 {
		return 1
	}
	f, ok := parseFinite(strings.TrimSpace(rest[:end]))
	if !ok {
		return 1
	}
	return f
}

// Degrees parses "90deg", "-45" or "12.5deg". Default 0.
func Degrees(s FlexString) float64 {
	v := strings.TrimSpace(string(s))
	v = strings.TrimSpace(strings.TrimSuffix(v, "deg"))
	f, ok := parseFinite(v)
	if !ok {
		return 0
	}
	return f
}

// Alpha maps an opacity percentage to [0,1]. Default 1.
func Alpha(opacity *float64) float64 {
	if opacity == nil || math.IsNaN(*opacity) {
		return 1
	}
	return clamp(*opacity/100, 0, 1)
}

// Gain maps a volume percentage to a linear multiplier. Default 1.
func Gain(volume *float64) float64 {
	if volume == nil || math.IsNaN(*volume) {
		return 1
	}
	return math.Max(*volume/100, 0)
}

// BrightnessOffset maps a brightness percentage (100 = unchanged) to the
// engine's [-1,1] offset. Default 0.
func BrightnessOffset(brightness *float64) float64 {
	if brightness == nil || math.IsNaN(*brightness) {
		return 0
	}
	return clamp((*brightness-100)/100, -1, 1)
}

// FontSize returns the declared font size or 48.
func FontSize(size *int) int {
	if size == nil || *size <= 0 {
		return DefaultFontSize
	}
	return *size
}

func parseFinite(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
