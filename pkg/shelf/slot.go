package shelf

import (
	"fmt"
	"strings"
)

// Handle identifies a slot in the shelf's arena
type Handle int

// State is a slot's position in its lifecycle
type State int

const (
	Empty State = iota
	PendingRegister
	Tracking
	Closing
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case PendingRegister:
		return "pending_register"
	case Tracking:
		return "tracking"
	case Closing:
		return "closing"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Confidence is the tracker's belief in its last poll result
type Confidence int

const (
	Confirmed Confidence = iota
	Provisional
)

func (c Confidence) String() string {
	if c == Provisional {
		return "provisional"
	}
	return "confirmed"
}

// Point is a position in window coordinates
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is a slot's on-screen bounds
type Rect struct {
	X, Y, W, H float64
}

// Contains reports whether p lies inside r, edges included
func (r Rect) Contains(p Point) bool {
	return r.X <= p.X && p.X <= r.X+r.W && r.Y <= p.Y && p.Y <= r.Y+r.H
}

// View is what a renderer needs to draw one slot
type View struct {
	Handle     Handle
	State      State
	File       string
	Name       string
	Icon       []byte // PNG, nil until the host answers
	Hovered    bool
	Full       bool
	Confidence Confidence
	Age        int
}

// Layout splits the shelf between occupied slots and the spacer region
// (occupied : Capacity-occupied).
type Layout struct {
	Occupied int
	Spacer   int
}

// slot is one arena record. All fields are guarded by Shelf.mu.
type slot struct {
	handle Handle
	bounds Rect

	state          State
	storedFile     string
	fileID         string
	confidence     Confidence
	age            int
	closeRequested bool

	// gen changes on every accepted drop so late icon answers for a previous
	// occupant are dropped.
	gen     uint64
	name    string
	icon    []byte
	hovered bool

	done chan struct{} // closed when the tracker finishes teardown
}

func (s *slot) view() View {
	return View{
		Handle:     s.handle,
		State:      s.state,
		File:       s.storedFile,
		Name:       s.name,
		Icon:       s.icon,
		Hovered:    s.hovered,
		Full:       s.state != Empty,
		Confidence: s.confidence,
		Age:        s.age,
	}
}

func (s *slot) reset() {
	s.state = Empty
	s.storedFile = ""
	s.fileID = ""
	s.confidence = Confirmed
	s.age = 0
	s.closeRequested = false
	s.name = ""
	s.icon = nil
	s.hovered = false
}

// DisplayName is the file name of path, cut to its last limit characters
// behind a leading "..." when longer. Both separators are accepted since
// the host may report either.
func DisplayName(path string, limit int) string {
	name := path
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		name = path[i+1:]
	}
	runes := []rune(name)
	if limit > 0 && len(runes) > limit {
		return "..." + string(runes[len(runes)-limit:])
	}
	return name
}

// isNetworkPath reports UNC paths (\\server\share), which are never accepted
func isNetworkPath(path string) bool {
	return strings.HasPrefix(path, `\\`)
}
