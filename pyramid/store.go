package pyramid

import (
	"container/list"
	"iter"

	"github.com/Ottervanger/lumo/tile"
)

// tileStore is the bounded coord -> tile mapping backing a pyramid. Tiles
// on the persistentLevels lowest zoom levels (z < persistentLevels) live
// in the persistent region and are never evicted; deeper tiles live in an
// LRU of cacheSize entries. Get and Set promote an entry to
// most-recently-used only in the volatile region.
type tileStore struct {
	persistentLevels int
	cacheSize        int

	persistent map[uint64]*tile.Tile
	volatile   map[uint64]*list.Element
	lru        *list.List // front is MRU

	onEvict func(*tile.Tile)
}

func newTileStore(cacheSize, persistentLevels int, onEvict func(*tile.Tile)) *tileStore {
	return &tileStore{
		persistentLevels: persistentLevels,
		cacheSize:        cacheSize,
		persistent:       make(map[uint64]*tile.Tile),
		volatile:         make(map[uint64]*list.Element),
		lru:              list.New(),
		onEvict:          onEvict,
	}
}

// capacity returns cacheSize plus the total coord count of the persistent
// levels, sum 4^z for z in [0, persistentLevels).
func (s *tileStore) capacity() int {
	persistent := (uint64(1)<<(2*uint(s.persistentLevels)) - 1) / 3
	return s.cacheSize + int(persistent)
}

func (s *tileStore) get(key uint64) *tile.Tile {
	if t, ok := s.persistent[key]; ok {
		return t
	}
	if el, ok := s.volatile[key]; ok {
		s.lru.MoveToFront(el)
		return el.Value.(*tile.Tile)
	}
	return nil
}

func (s *tileStore) has(key uint64) bool {
	if _, ok := s.persistent[key]; ok {
		return true
	}
	_, ok := s.volatile[key]
	return ok
}

// set inserts or replaces the tile under key. Replacement occurs after a
// clear-then-reload race and is the intended recovery. Inserting into a
// full volatile region evicts the least-recently-used entry through
// onEvict.
func (s *tileStore) set(key uint64, t *tile.Tile) {
	if t.Coord.Z < s.persistentLevels {
		s.persistent[key] = t
		return
	}

	if el, ok := s.volatile[key]; ok {
		el.Value = t
		s.lru.MoveToFront(el)
		return
	}

	s.volatile[key] = s.lru.PushFront(t)
	if s.lru.Len() <= s.cacheSize {
		return
	}

	el := s.lru.Back()
	evicted := el.Value.(*tile.Tile)
	s.lru.Remove(el)
	delete(s.volatile, evicted.Coord.Key())
	if s.onEvict != nil {
		s.onEvict(evicted)
	}
}

func (s *tileStore) delete(key uint64) {
	if _, ok := s.persistent[key]; ok {
		delete(s.persistent, key)
		return
	}
	if el, ok := s.volatile[key]; ok {
		s.lru.Remove(el)
		delete(s.volatile, key)
	}
}

func (s *tileStore) len() int {
	return len(s.persistent) + len(s.volatile)
}

// clear empties both regions, then reports every removed tile through
// removed. State is reset before the first callback so observers see the
// post-clear store.
func (s *tileStore) clear(removed func(*tile.Tile)) {
	tiles := make([]*tile.Tile, 0, s.len())
	for _, t := range s.persistent {
		tiles = append(tiles, t)
	}
	for el := s.lru.Front(); el != nil; el = el.Next() {
		tiles = append(tiles, el.Value.(*tile.Tile))
	}

	s.persistent = make(map[uint64]*tile.Tile)
	s.volatile = make(map[uint64]*list.Element)
	s.lru = list.New()

	if removed != nil {
		for _, t := range tiles {
			removed(t)
		}
	}
}

func (s *tileStore) all() iter.Seq2[tile.Coord, *tile.Tile] {
	return func(yield func(tile.Coord, *tile.Tile) bool) {
		for _, t := range s.persistent {
			if !yield(t.Coord, t) {
				return
			}
		}
		for el := s.lru.Front(); el != nil; el = el.Next() {
			t := el.Value.(*tile.Tile)
			if !yield(t.Coord, t) {
				return
			}
		}
	}
}
