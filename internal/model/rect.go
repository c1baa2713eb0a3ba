package model

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// Rect is an axis-aligned rectangle. Right and Bottom are exclusive.
type Rect struct {
	Left   int `json:"l" yaml:"l"`
	Top    int `json:"t" yaml:"t"`
	Right  int `json:"r" yaml:"r"`
	Bottom int `json:"b" yaml:"b"`
}

// Point is a screen coordinate.
type Point struct {
	X, Y int
}

func (r Rect) Width() int  { return r.Right - r.Left }
func (r Rect) Height() int { return r.Bottom - r.Top }

// Empty reports whether r has no area.
func (r Rect) Empty() bool { return r.Right <= r.Left || r.Bottom <= r.Top }

// Center returns the rectangle's midpoint.
func (r Rect) Center() Point {
	return Point{X: (r.Left + r.Right) / 2, Y: (r.Top + r.Bottom) / 2}
}

// Contains reports whether o lies entirely inside r (edges inclusive).
func (r Rect) Contains(o Rect) bool {
	return r.Left <= o.Left && r.Top <= o.Top && r.Right >= o.Right && r.Bottom >= o.Bottom
}

// IntersectionArea returns the overlap area of r and o, 0 when disjoint.
func (r Rect) IntersectionArea(o Rect) int {
	w := min(r.Right, o.Right) - max(r.Left, o.Left)
	h := min(r.Bottom, o.Bottom) - max(r.Top, o.Top)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// EdgeDistance is the Euclidean distance between the nearest edges of r
// and o. Each axis contributes 0 where the projections already overlap.
func (r Rect) EdgeDistance(o Rect) float64 {
	dx := max(0, max(o.Left-r.Right, r.Left-o.Right))
	dy := max(0, max(o.Top-r.Bottom, r.Top-o.Bottom))
	return math.Hypot(float64(dx), float64(dy))
}

// Scale divides every edge by factor, rounding to the nearest unit.
func (r Rect) Scale(factor float64) Rect {
	if factor <= 0 || factor == 1 {
		return r
	}
	return Rect{
		Left:   int(math.Round(float64(r.Left) / factor)),
		Top:    int(math.Round(float64(r.Top) / factor)),
		Right:  int(math.Round(float64(r.Right) / factor)),
		Bottom: int(math.Round(float64(r.Bottom) / factor)),
	}
}

// Offset translates r by dx, dy.
func (r Rect) Offset(dx, dy int) Rect {
	return Rect{Left: r.Left + dx, Top: r.Top + dy, Right: r.Right + dx, Bottom: r.Bottom + dy}
}

// String formats r as "[left,top][right,bottom]".
func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d][%d,%d]", r.Left, r.Top, r.Right, r.Bottom)
}

var boundsRe = regexp.MustCompile(`^\[(-?\d+),(-?\d+)\]\[(-?\d+),(-?\d+)\]$`)

// ParseRect parses the "[left,top][right,bottom]" format.
func ParseRect(s string) (Rect, error) {
	m := boundsRe.FindStringSubmatch(s)
	if m == nil {
		return Rect{}, fmt.Errorf("invalid bounds %q: expected [l,t][r,b]", s)
	}
	var v [4]int
	for i := range v {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Rect{}, fmt.Errorf("invalid bounds %q: %w", s, err)
		}
		v[i] = n
	}
	return Rect{Left: v[0], Top: v[1], Right: v[2], Bottom: v[3]}, nil
}
