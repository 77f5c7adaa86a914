// Package tile provides tile coordinates, tiles and the interfaces
// connecting a tile pyramid to its loader and viewport.
package tile

import (
	"fmt"

	"github.com/google/hilbert"
)

// Coord represents tile coordinates in the XYZ scheme (Tiled web map),
// y growing down. At zoom Z there are 2^Z tiles along each axis.
// A normalized coord has X in [0, 2^Z); Y is never wrapped.
type Coord struct {
	Z int
	X int
	Y int
}

func (c Coord) Valid() bool {
	return c.Z >= 0 && c.Z <= 30 && c.X >= 0 && c.X < 1<<c.Z && c.Y >= 0 && c.Y < 1<<c.Z
}

func (c Coord) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// Key encodes the normalized coord as a 64-bit value unique for Z <= 30.
// Coords on the 2^Z grid map to a Hilbert index, shifted past the
// (4^Z - 1) / 3 coords of all lower zoom levels.
func (c Coord) Key() uint64 {
	n := c.Normalize()
	h, _ := hilbert.NewHilbert(1 << n.Z)
	code, _ := h.MapInverse(n.X, n.Y)

	tilesCount := (uint64(1)<<(2*uint(n.Z)) - 1) / 3
	return uint64(code) + tilesCount
}

// Normalize returns the coord with X reduced modulo 2^Z using Euclidean
// remainder, so X = -1 maps to 2^Z - 1.
func (c Coord) Normalize() Coord {
	span := 1 << c.Z
	x := c.X % span
	if x < 0 {
		x += span
	}
	return Coord{Z: c.Z, X: x, Y: c.Y}
}

// IsAncestorOf reports whether c is a strict ancestor of o, i.e. c.Z < o.Z
// and the footprint of o lies inside the footprint of c.
func (c Coord) IsAncestorOf(o Coord) bool {
	if c.Z >= o.Z {
		return false
	}
	d := uint(o.Z - c.Z)
	return o.X>>d == c.X && o.Y>>d == c.Y
}

// IsDescendantOf reports whether c is a strict descendant of o.
func (c Coord) IsDescendantOf(o Coord) bool {
	return o.IsAncestorOf(c)
}

// Ancestor returns the ancestor coord offset zoom levels up.
// offset must be in [1, c.Z].
func (c Coord) Ancestor(offset int) Coord {
	d := uint(offset)
	return Coord{Z: c.Z - offset, X: c.X >> d, Y: c.Y >> d}
}

// Descendants returns the 4^offset descendant coords offset zoom levels
// down, in row-major order: y rows outer, x inner. The order is relied on
// by the LOD substitution algorithm.
func (c Coord) Descendants(offset int) []Coord {
	d := uint(offset)
	span := 1 << d
	baseX := c.X << d
	baseY := c.Y << d

	coords := make([]Coord, 0, span*span)
	for dy := 0; dy < span; dy++ {
		for dx := 0; dx < span; dx++ {
			coords = append(coords, Coord{Z: c.Z + offset, X: baseX + dx, Y: baseY + dy})
		}
	}
	return coords
}
