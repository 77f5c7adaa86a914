// Package view provides a plot-pixel viewport over the tile plane,
// implementing the tile.Viewport adapter a pyramid classifies responses
// against.
package view

import (
	"math"

	"github.com/Ottervanger/lumo/tile"
)

// View is a rectangle in plot pixels over the tile plane at an integer
// zoom level. The origin is the top-left corner of the world; x grows
// east, y grows south. Like the pyramid it serves, a View is confined to
// one goroutine.
type View struct {
	zoom     int
	tileSize float64
	x, y     float64
	width    float64
	height   float64
}

func New(zoom int, tileSize, width, height float64) *View {
	return &View{
		zoom:     zoom,
		tileSize: tileSize,
		width:    width,
		height:   height,
	}
}

func (v *View) Zoom() int {
	return v.zoom
}

func (v *View) SetZoom(zoom int) {
	v.zoom = zoom
}

// SetOffset moves the view's top-left corner to (x, y) plot pixels.
func (v *View) SetOffset(x, y float64) {
	v.x = x
	v.y = y
}

func (v *View) PlotOffset() (float64, float64) {
	return v.x, v.y
}

// TargetVisibleCoords returns the coord of every tile at the view zoom
// whose pixel box intersects the view rectangle. X is left unnormalized
// when the view crosses the world's horizontal edge; Y is clamped to the
// world.
func (v *View) TargetVisibleCoords() []tile.Coord {
	span := 1 << uint(v.zoom)

	x0 := int(math.Floor(v.x / v.tileSize))
	x1 := int(math.Ceil((v.x+v.width)/v.tileSize)) - 1
	y0 := max(int(math.Floor(v.y/v.tileSize)), 0)
	y1 := min(int(math.Ceil((v.y+v.height)/v.tileSize))-1, span-1)

	var coords []tile.Coord
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			coords = append(coords, tile.Coord{Z: v.zoom, X: x, Y: y})
		}
	}
	return coords
}

// IsInView reports whether the coord's pixel box intersects the view
// rectangle. With wraparound set, the box is also tested shifted one
// world span east and west. Coords at other zoom levels are compared by
// footprint.
func (v *View) IsInView(c tile.Coord, wraparound bool) bool {
	scale := v.tileSize * math.Pow(2, float64(v.zoom-c.Z))
	left := float64(c.X) * scale
	top := float64(c.Y) * scale

	if v.intersects(left, top, scale) {
		return true
	}
	if !wraparound {
		return false
	}

	world := float64(int(1)<<uint(v.zoom)) * v.tileSize
	return v.intersects(left+world, top, scale) || v.intersects(left-world, top, scale)
}

func (v *View) intersects(left, top, size float64) bool {
	return left < v.x+v.width && left+size > v.x &&
		top < v.y+v.height && top+size > v.y
}
