package colors

import (
	"math"
	"strconv"
	"strings"
)

// RGB is an 8-bit colour
type RGB struct {
	R, G, B uint8
}

// ParseHex parses "#rrggbb" (the # is optional)
func ParseHex(hexColor string) (RGB, bool) {
	hex := strings.TrimPrefix(hexColor, "#")
	if len(hex) != 6 {
		return RGB{}, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, false
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, true
}

// Hex formats c as "#rrggbb"
func (c RGB) Hex() string {
	return "#" + toHex(c.R) + toHex(c.G) + toHex(c.B)
}

func toHex(v uint8) string {
	s := strconv.FormatUint(uint64(v), 16)
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// GetLuminance calculates the relative luminance of a color per WCAG formula
// Returns a value between 0 (black) and 1 (white)
func GetLuminance(hexColor string) float64 {
	c, ok := ParseHex(hexColor)
	if !ok {
		return 0
	}
	return 0.2126*gammaSRGB(float64(c.R)/255) +
		0.7152*gammaSRGB(float64(c.G)/255) +
		0.0722*gammaSRGB(float64(c.B)/255)
}

func gammaSRGB(val float64) float64 {
	if val <= 0.03928 {
		return val / 12.92
	}
	return math.Pow((val+0.055)/1.055, 2.4)
}

// GetContrastRatio calculates the WCAG contrast ratio between two colors,
// from 1 (none) to 21
func GetContrastRatio(fg, bg string) float64 {
	l1, l2 := GetLuminance(fg), GetLuminance(bg)
	if l1 < l2 {
		l1, l2 = l2, l1
	}
	return (l1 + 0.05) / (l2 + 0.05)
}

// IsLightColor returns true if the color is closer to white than black
func IsLightColor(hexColor string) bool {
	return GetLuminance(hexColor) > 0.5
}

// EnsureContrast moves fg away from bg until the ratio reaches minRatio,
// falling back to black or white
func EnsureContrast(fg, bg string, minRatio float64) string {
	if GetContrastRatio(fg, bg) >= minRatio {
		return fg
	}
	lighter := GetLuminance(fg) > GetLuminance(bg)
	for amount := 0.1; amount <= 1.0; amount += 0.1 {
		adjusted := Darken(fg, amount)
		if lighter {
			adjusted = Lighten(fg, amount)
		}
		if GetContrastRatio(adjusted, bg) >= minRatio {
			return adjusted
		}
	}
	if GetLuminance(bg) > 0.5 {
		return "#000000"
	}
	return "#ffffff"
}

// Lighten moves a color towards white by amount (0 to 1)
func Lighten(hexColor string, amount float64) string {
	c, ok := ParseHex(hexColor)
	if !ok {
		return hexColor
	}
	up := func(v uint8) uint8 { return v + uint8(float64(255-v)*amount) }
	return RGB{up(c.R), up(c.G), up(c.B)}.Hex()
}

// Darken moves a color towards black by amount (0 to 1)
func Darken(hexColor string, amount float64) string {
	c, ok := ParseHex(hexColor)
	if !ok {
		return hexColor
	}
	down := func(v uint8) uint8 { return uint8(float64(v) * (1 - amount)) }
	return RGB{down(c.R), down(c.G), down(c.B)}.Hex()
}
