// Package geometry holds the axis-aligned rectangle math used to compare
// rendered element bounds.
package geometry

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Rect is a bounding box in viewport coordinates. Width and Height must be
// non-negative; callers that build a Rect from anything other than a
// freshly-read element box are responsible for that.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Left() float64   { return r.X }
func (r Rect) Right() float64  { return r.X + r.Width }
func (r Rect) Top() float64    { return r.Y }
func (r Rect) Bottom() float64 { return r.Y + r.Height }

func (r Rect) String() string {
	return fmt.Sprintf("{x:%g y:%g w:%g h:%g}", r.X, r.Y, r.Width, r.Height)
}

// Overlaps reports whether the interiors of a and b intersect. Rectangles
// that only share an edge do not overlap; containment does.
func Overlaps(a, b Rect) bool {
	return a.Left() < b.Right() && b.Left() < a.Right() &&
		a.Top() < b.Bottom() && b.Top() < a.Bottom()
}

// Intersection returns the overlapping region of a and b. ok is false when
// the rectangles do not overlap.
func Intersection(a, b Rect) (Rect, bool) {
	if !Overlaps(a, b) {
		return Rect{}, false
	}
	left := math.Max(a.Left(), b.Left())
	top := math.Max(a.Top(), b.Top())
	right := math.Min(a.Right(), b.Right())
	bottom := math.Min(a.Bottom(), b.Bottom())
	return Rect{X: left, Y: top, Width: right - left, Height: bottom - top}, true
}

// ParseRect parses "x,y,width,height".
func ParseRect(raw string) (Rect, error) {
	parts := strings.Split(strings.TrimSpace(raw), ",")
	if len(parts) != 4 {
		return Rect{}, errors.New("rect must be x,y,width,height")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return Rect{}, errors.New("rect must be x,y,width,height")
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return Rect{}, fmt.Errorf("rect values must be numbers: %q", p)
		}
		vals[i] = v
	}
	if vals[2] < 0 || vals[3] < 0 {
		return Rect{}, errors.New("rect width/height must be non-negative")
	}
	return Rect{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}
