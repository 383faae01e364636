package colors

import "hash/fnv"

// HSL converts hue (degrees), saturation and lightness (0-1) to RGB
func HSL(h, s, l float64) RGB {
	if s == 0 {
		v := uint8(l * 255)
		return RGB{v, v, v}
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	return RGB{
		R: uint8(hueToRGB(p, q, h/360+1.0/3) * 255),
		G: uint8(hueToRGB(p, q, h/360) * 255),
		B: uint8(hueToRGB(p, q, h/360-1.0/3) * 255),
	}
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	}
	return p
}

var (
	folderColor  = RGB{0xe0, 0xaf, 0x3a}
	unknownColor = RGB{0x9a, 0x9a, 0x9a}
)

// FileColor picks a stable colour for a file kind. kind is a lower-case
// extension including the dot, "" for files without one, or "/" for
// directories.
func FileColor(kind string) RGB {
	switch kind {
	case "/":
		return folderColor
	case "":
		return unknownColor
	}
	h := fnv.New32a()
	h.Write([]byte(kind))
	return HSL(float64(h.Sum32()%360), 0.6, 0.55)
}
