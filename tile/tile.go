package tile

// Tile is a loaded tile: a coord plus the payload the loader produced for
// it. Tiles are never mutated after creation; observers receiving tiles
// through events share them read-only.
type Tile struct {
	Coord Coord
	Data  []byte
}

// Partial pairs a tile with the coord it substitutes for. Target is the
// coord the caller wanted; Relative is the coord the positional offset is
// computed from. For an exact match and for an ancestor substitute
// Relative equals Target; for a descendant substitute Relative is the
// descendant's own coord.
type Partial struct {
	Tile     *Tile
	Target   Coord
	Relative Coord
}

// Renderable describes how to draw a tile (or a sub-rectangle of it) in
// the slot of a target coord. TileOffset is in plot pixels, UVOffset is
// (u, v, w, h) in texture space, Scale is the draw scale relative to the
// target slot.
type Renderable struct {
	Tile       *Tile
	Scale      float64
	TileOffset [2]float64
	UVOffset   [4]float64
}

// Renderable computes the draw geometry for the partial given the layer
// tile size and the viewport plot offset. The partial triple is
// sufficient; no hierarchy walk is needed here.
func (p Partial) Renderable(tileSize, viewX, viewY float64) Renderable {
	target := p.Target
	tc := p.Tile.Coord

	r := Renderable{Tile: p.Tile}
	r.TileOffset[0] = float64(target.X)*tileSize - viewX
	r.TileOffset[1] = float64(target.Y)*tileSize - viewY

	if tc.Z <= target.Z {
		// Exact match or ancestor: sub-sample the tile over the slot.
		f := 1 / float64(int(1)<<uint(target.Z-tc.Z))
		r.Scale = 1 / f
		r.UVOffset = [4]float64{
			float64(target.X)*f - float64(tc.X),
			float64(target.Y)*f - float64(tc.Y),
			f, f,
		}
		return r
	}

	// Descendant: full tile drawn at reduced scale inside the slot.
	s := 1 / float64(int(1)<<uint(p.Relative.Z-target.Z))
	r.Scale = s
	r.UVOffset = [4]float64{0, 0, 1, 1}
	r.TileOffset[0] += (float64(p.Relative.X)*s - float64(target.X)) * tileSize
	r.TileOffset[1] += (float64(p.Relative.Y)*s - float64(target.Y)) * tileSize
	return r
}

// Loader produces tile payloads. Load must invoke done exactly once per
// call, either synchronously or on a later turn of the caller's
// goroutine. A nil data with a non-nil err reports a failed load.
type Loader interface {
	Load(c Coord, done func(data []byte, err error))
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(c Coord, done func(data []byte, err error))

func (f LoaderFunc) Load(c Coord, done func(data []byte, err error)) {
	f(c, done)
}

// Viewport is the adapter the pyramid uses to classify fresh responses and
// the enclosing layer uses to produce request batches. IsInView is always
// called with a normalized coord; with wraparound set the check also
// considers the horizontal world copies.
type Viewport interface {
	IsInView(c Coord, wraparound bool) bool
	TargetVisibleCoords() []Coord
	PlotOffset() (x, y float64)
}
