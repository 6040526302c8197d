// Package geom classifies label centers by their position relative to the
// image center.
//
// Three rules are in use and they are deliberately kept apart:
//
//   - [Classify] splits the unit square into four 90° sectors around the
//     center with the diagonals as the boundaries. Ties go to the horizontal
//     sectors. It drives patch selection and label box sizing.
//   - [ClassifyDiagonal] collapses the square into two groups by testing the
//     point against the lines y = x and y = 1 - x. It only answers
//     vertical/horizontal, and it evaluates the boundary from the raw
//     coordinates rather than from the offsets to the center, so for points
//     within rounding distance of a diagonal the two rules can disagree.
//     It is only used when resizing bright labels in the parity scenario.
//   - [ClassifyHalf] picks one of the two bright texture patches by the
//     horizontal half of the image.
package geom

import (
	"fmt"
	"math"
)

// Point is a label center in image-fraction coordinates.
type Point struct {
	X float64
	Y float64
}

// Valid reports whether both coordinates lie in [0, 1].
func (p Point) Valid() bool {
	return p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}

// Manhattan returns the L1 distance between p and q.
func (p Point) Manhattan(q Point) float64 {
	return math.Abs(p.X-q.X) + math.Abs(p.Y-q.Y)
}

func (p Point) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.X, p.Y)
}

// Direction is one of the four radial sectors of the image.
// The numeric values match the template file naming (patch_texture_g_0.png
// is the Up patch).
type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

// Directions lists all directions in numeric order.
var Directions = []Direction{Up, Right, Down, Left}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Vertical reports whether d is Up or Down.
func (d Direction) Vertical() bool {
	return d == Up || d == Down
}

// Classify returns the sector of (x, y) relative to the image center.
func Classify(x, y float64) Direction {
	dx := x - 0.5
	dy := y - 0.5
	if math.Abs(dy) > math.Abs(dx) {
		if y < 0.5 {
			return Up
		}
		return Down
	}
	if x < 0.5 {
		return Left
	}
	return Right
}

// ClassifyPoint is Classify for a Point.
func ClassifyPoint(p Point) Direction {
	return Classify(p.X, p.Y)
}

// AxisGroup is the two-way result of ClassifyDiagonal.
type AxisGroup int

const (
	Vertical   AxisGroup = 0 // top or bottom wedge
	Horizontal AxisGroup = 1 // left or right wedge
)

func (g AxisGroup) String() string {
	if g == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// ClassifyDiagonal groups (x, y) by the two diagonals y = x and y = 1 - x.
// Comparisons are strict, so points on either diagonal are Horizontal.
func ClassifyDiagonal(x, y float64) AxisGroup {
	switch {
	case y > x && y > -x+1:
		return Vertical
	case y < x && y > -x+1:
		return Horizontal
	case y < x && y < -x+1:
		return Vertical
	default:
		return Horizontal
	}
}

// ClassifyHalf picks Up for the left half of the image and Right for the
// right half.
func ClassifyHalf(x float64) Direction {
	if x < 0.5 {
		return Up
	}
	return Right
}
