package colors

// Palette is the set of colours the widget renders with, as "#rrggbb"
type Palette struct {
	Background string
	Border     string
	Text       string
	Dim        string
	Hover      string // border of the slot under the pointer
	Pending    string // slot waiting for the host to register its file
	Closing    string // slot being torn down
	Collapsed  string // the collapsed handle
}

// NewPalette derives a palette for a dark or light terminal background
func NewPalette(dark bool) Palette {
	p := Palette{
		Background: "#1a1a2e",
		Border:     "#444444",
		Text:       "#cccccc",
		Dim:        "#888888",
		Hover:      "#3498db",
		Pending:    "#e0af3a",
		Closing:    "#c0392b",
		Collapsed:  "#666666",
	}
	if !dark {
		p = Palette{
			Background: "#faf4ed",
			Border:     "#dfdad9",
			Text:       "#575279",
			Dim:        "#9893a5",
			Hover:      "#286983",
			Pending:    "#ea9d34",
			Closing:    "#b4637a",
			Collapsed:  "#9893a5",
		}
	}
	for _, c := range []*string{&p.Text, &p.Hover, &p.Pending, &p.Closing} {
		*c = EnsureContrast(*c, p.Background, 3.0)
	}
	return p
}

// FileAccent returns the file kind's colour, adjusted to read on bg
func FileAccent(kind, bg string) string {
	return EnsureContrast(FileColor(kind).Hex(), bg, 3.0)
}
