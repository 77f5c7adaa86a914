package pyramid

import "github.com/Ottervanger/lumo/tile"

// ClosestAncestor walks up from the coord's parent to zoom 0 and returns
// the first ancestor coord with a stored tile.
func (p *Pyramid) ClosestAncestor(c tile.Coord) (tile.Coord, bool) {
	n := c.Normalize()
	for n.Z > 0 {
		n = n.Ancestor(1)
		if p.store.has(n.Key()) {
			return n, true
		}
	}
	return tile.Coord{}, false
}

// Descendants returns the minimal set of stored descendant tiles whose
// footprints together cover the coord's full footprint, searching at most
// DescendantDepth levels down. Children are enumerated in row-major order,
// and a branch with no stored tile at any reachable depth fails the whole
// covering: the result is nil when no complete covering exists.
func (p *Pyramid) Descendants(c tile.Coord) []*tile.Tile {
	if p.cfg.DescendantDepth < 1 {
		return nil
	}
	return p.coverChildren(c.Normalize(), p.cfg.DescendantDepth)
}

func (p *Pyramid) coverChildren(c tile.Coord, depth int) []*tile.Tile {
	if c.Z >= p.cfg.MaxZoom || c.Z >= 30 {
		return nil
	}

	var tiles []*tile.Tile
	for _, child := range c.Descendants(1) {
		if t := p.store.get(child.Key()); t != nil {
			tiles = append(tiles, t)
			continue
		}
		if depth <= 1 {
			return nil
		}
		sub := p.coverChildren(child, depth-1)
		if sub == nil {
			return nil
		}
		tiles = append(tiles, sub...)
	}
	return tiles
}

// AvailableLOD resolves the best renderable substitute for the coord: the
// tile itself, else a sub-sample of the closest ancestor, else a covering
// set of descendants, each annotated with the geometry needed to draw it
// in the coord's slot. It returns nil when nothing renderable is stored.
func (p *Pyramid) AvailableLOD(c tile.Coord) []tile.Renderable {
	n := c.Normalize()
	vx, vy := p.view.PlotOffset()

	if t := p.store.get(n.Key()); t != nil {
		partial := tile.Partial{Tile: t, Target: n, Relative: n}
		return []tile.Renderable{partial.Renderable(p.cfg.TileSize, vx, vy)}
	}

	if a, ok := p.ClosestAncestor(n); ok {
		partial := tile.Partial{Tile: p.store.get(a.Key()), Target: n, Relative: n}
		return []tile.Renderable{partial.Renderable(p.cfg.TileSize, vx, vy)}
	}

	if tiles := p.Descendants(n); tiles != nil {
		renderables := make([]tile.Renderable, 0, len(tiles))
		for _, t := range tiles {
			partial := tile.Partial{Tile: t, Target: n, Relative: t.Coord}
			renderables = append(renderables, partial.Renderable(p.cfg.TileSize, vx, vy))
		}
		return renderables
	}

	return nil
}
