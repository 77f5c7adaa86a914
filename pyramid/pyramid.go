// Package pyramid implements the tile cache at the heart of a slippy-map
// viewer: it schedules loads for visible coords, retains a bounded working
// set with pinned low-zoom levels, discards responses that arrive for
// cancelled or out-of-view requests, and substitutes ancestors or
// descendants for tiles that are not resident yet.
package pyramid

import (
	"iter"
	"log/slog"

	"github.com/Ottervanger/lumo/tile"
)

// Config controls pyramid capacity and zoom policy. Use DefaultConfig as a
// starting point; New applies the config verbatim.
type Config struct {
	// CacheSize bounds the volatile LRU region of the store.
	CacheSize int
	// PersistentLevels is the number of low zoom levels to pin: tiles
	// with z < PersistentLevels never evict.
	PersistentLevels int
	// MinZoom and MaxZoom bound the zoom band; requested coords outside
	// the band are filtered out.
	MinZoom int
	MaxZoom int
	// DescendantDepth caps how far below a target coord the descendants
	// search looks for a covering.
	DescendantDepth int
	// TileSize is the tile edge length in plot pixels.
	TileSize float64
	// Wraparound enables the horizontal world copies in viewport checks.
	Wraparound bool
}

func DefaultConfig() Config {
	return Config{
		CacheSize:        256,
		PersistentLevels: 4,
		MinZoom:          0,
		MaxZoom:          22,
		DescendantDepth:  3,
		TileSize:         256,
		Wraparound:       true,
	}
}

// Option configures a pyramid beyond its Config.
type Option func(*Pyramid)

// WithLogger attaches a logger for debug tracing of pyramid transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pyramid) { p.logger = logger }
}

// pendingRequest tracks one in-flight loader call. The loader callback is
// bound to its specific record: a record cancelled by Clear routes the
// eventual response to the stale path no matter what the registries hold
// for the coord by then.
type pendingRequest struct {
	coord     tile.Coord
	key       uint64
	cancelled bool
}

// Pyramid owns the tile store, the pending registry and the stale
// registry. It is not safe for concurrent use: all calls, including loader
// callbacks, must happen on one goroutine.
type Pyramid struct {
	cfg    Config
	loader tile.Loader
	view   tile.Viewport
	logger *slog.Logger

	store   *tileStore
	pending map[uint64]*pendingRequest
	stale   map[uint64]int

	// freshDone counts non-stale completions in the current in-flight
	// group; it gates the load event and resets on each drain and on
	// Clear.
	freshDone int

	events emitter
}

// New creates a pyramid over the given loader and viewport. Both are
// required; a nil loader or viewport panics.
func New(loader tile.Loader, view tile.Viewport, cfg Config, opts ...Option) *Pyramid {
	if loader == nil {
		panic("lumo: pyramid requires a loader")
	}
	if view == nil {
		panic("lumo: pyramid requires a viewport")
	}

	p := &Pyramid{
		cfg:     cfg,
		loader:  loader,
		view:    view,
		logger:  slog.New(slog.DiscardHandler),
		pending: make(map[uint64]*pendingRequest),
		stale:   make(map[uint64]int),
	}
	p.store = newTileStore(cfg.CacheSize, cfg.PersistentLevels, func(t *tile.Tile) {
		p.events.emit(EventTileRemove, Event{Coord: t.Coord, Tile: t})
	})
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// On registers a handler for the named event. Handlers dispatch in
// registration order.
func (p *Pyramid) On(name string, h Handler) {
	p.events.on(name, h)
}

// RequestTiles requests the batch of coords that are not already stored or
// pending. Coords are normalized and deduplicated first; coords outside
// the zoom band are dropped. Every surviving coord is registered as
// pending before any loader call is made, so a synchronous loader cannot
// drain the group early.
func (p *Pyramid) RequestTiles(coords []tile.Coord) {
	batch := make([]*pendingRequest, 0, len(coords))
	for _, c := range coords {
		if c.Z < p.cfg.MinZoom || c.Z > p.cfg.MaxZoom {
			continue
		}
		n := c.Normalize()
		key := n.Key()
		if p.store.has(key) {
			continue
		}
		if _, inflight := p.pending[key]; inflight {
			continue
		}
		req := &pendingRequest{coord: n, key: key}
		p.pending[key] = req
		batch = append(batch, req)
		p.events.emit(EventTileRequest, Event{Coord: n})
	}

	for _, req := range batch {
		p.logger.Debug("lumo: dispatching tile request", "coord", req.coord.String())
		p.loader.Load(req.coord, func(data []byte, err error) {
			p.resolve(req, data, err)
		})
	}
}

func (p *Pyramid) resolve(req *pendingRequest, data []byte, err error) {
	if req.cancelled {
		// Stale path: the request was cancelled by Clear before the
		// response arrived. Consume one stale credit and discard.
		if n := p.stale[req.key]; n > 1 {
			p.stale[req.key] = n - 1
		} else {
			delete(p.stale, req.key)
		}
		p.events.emit(EventTileDiscard, Event{Coord: req.coord})
		return
	}

	delete(p.pending, req.key)
	p.freshDone++

	switch {
	case err != nil:
		p.events.emit(EventTileFailure, Event{Coord: req.coord, Err: err})
	case !p.view.IsInView(req.coord, p.cfg.Wraparound):
		p.events.emit(EventTileDiscard, Event{Coord: req.coord})
	default:
		t := &tile.Tile{Coord: req.coord, Data: data}
		p.store.set(req.key, t)
		p.events.emit(EventTileAdd, Event{Coord: req.coord, Tile: t})
	}

	if len(p.pending) == 0 && p.freshDone > 0 {
		p.freshDone = 0
		p.events.emit(EventLoad, Event{})
	}
}

// Clear cancels every pending request and empties the store. Cancelled
// requests move to the stale registry; their eventual callbacks are
// discarded. Every stored tile is removed with a tile:remove event. Clear
// is safe to call from a loader body or an event handler.
func (p *Pyramid) Clear() {
	for key, req := range p.pending {
		req.cancelled = true
		p.stale[key]++
		delete(p.pending, key)
	}
	p.freshDone = 0
	p.logger.Debug("lumo: clearing store", "tiles", p.store.len(), "stale", len(p.stale))
	p.store.clear(func(t *tile.Tile) {
		p.events.emit(EventTileRemove, Event{Coord: t.Coord, Tile: t})
	})
}

// Get returns the stored tile for the normalized coord, or nil.
func (p *Pyramid) Get(c tile.Coord) *tile.Tile {
	return p.store.get(c.Normalize().Key())
}

// Has reports whether the normalized coord is stored.
func (p *Pyramid) Has(c tile.Coord) bool {
	return p.store.has(c.Normalize().Key())
}

// IsPending reports whether a fresh request for the normalized coord is
// outstanding.
func (p *Pyramid) IsPending(c tile.Coord) bool {
	_, ok := p.pending[c.Normalize().Key()]
	return ok
}

// IsInView reports whether the normalized coord intersects the target
// view, honoring the configured wraparound policy.
func (p *Pyramid) IsInView(c tile.Coord) bool {
	return p.view.IsInView(c.Normalize(), p.cfg.Wraparound)
}

// Capacity returns the total tile capacity: the volatile cache size plus
// the coord count of the persistent levels.
func (p *Pyramid) Capacity() int {
	return p.store.capacity()
}

// Len returns the number of tiles currently stored.
func (p *Pyramid) Len() int {
	return p.store.len()
}

// Tiles iterates over the stored working set. Iteration order is
// unspecified.
func (p *Pyramid) Tiles() iter.Seq2[tile.Coord, *tile.Tile] {
	return p.store.all()
}
