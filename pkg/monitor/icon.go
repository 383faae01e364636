package monitor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/b/shelf/pkg/colors"
)

// IconSize is the edge length of generated icons in pixels
const IconSize = 32

// Icons renders file icons: a page whose colour is derived from the file
// extension, or a folder shape for directories. Encoded icons are cached per
// extension.
type Icons struct {
	mu    sync.Mutex
	cache map[string][]byte
}

// NewIcons creates an empty icon cache
func NewIcons() *Icons {
	return &Icons{cache: make(map[string][]byte)}
}

// Icon returns the PNG icon for path
func (ic *Icons) Icon(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFile, path)
		}
		return nil, err
	}

	key := strings.ToLower(filepath.Ext(path))
	if info.IsDir() {
		key = "/"
	}

	ic.mu.Lock()
	defer ic.mu.Unlock()
	if data, ok := ic.cache[key]; ok {
		return data, nil
	}
	data, err := renderIcon(key)
	if err != nil {
		return nil, err
	}
	ic.cache[key] = data
	return data, nil
}

func renderIcon(key string) ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, IconSize, IconSize))
	fill := colorFor(key)
	edge := shade(fill, 0.6)

	const margin, fold = 4, 8
	for y := 0; y < IconSize; y++ {
		for x := 0; x < IconSize; x++ {
			var c color.NRGBA
			switch {
			case key == "/":
				// folder: tab on the top-left, body below
				inTab := y >= 6 && y < 10 && x >= margin && x < 16
				inBody := y >= 10 && y < IconSize-margin && x >= margin && x < IconSize-margin
				if inTab || inBody {
					c = fill
				}
			default:
				inPage := x >= margin+2 && x < IconSize-margin-2 && y >= margin-2 && y < IconSize-margin+2
				cornerX := x - (IconSize - margin - 2 - fold)
				cornerY := y - (margin - 2)
				inFold := cornerX >= 0 && cornerY < fold && cornerY < cornerX
				switch {
				case inPage && inFold:
					c = color.NRGBA{}
				case inPage && cornerX >= 0 && cornerY < fold && cornerY == cornerX:
					c = edge
				case inPage:
					c = fill
				}
			}
			img.SetNRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode icon: %w", err)
	}
	return buf.Bytes(), nil
}

func colorFor(key string) color.NRGBA {
	c := colors.FileColor(key)
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

func shade(c color.NRGBA, f float64) color.NRGBA {
	return color.NRGBA{R: uint8(float64(c.R) * f), G: uint8(float64(c.G) * f), B: uint8(float64(c.B) * f), A: c.A}
}
