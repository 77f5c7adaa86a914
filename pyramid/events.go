package pyramid

import "github.com/Ottervanger/lumo/tile"

// Event names emitted by a pyramid.
const (
	EventTileRequest = "tile:request"
	EventTileAdd     = "tile:add"
	EventTileFailure = "tile:failure"
	EventTileDiscard = "tile:discard"
	EventTileRemove  = "tile:remove"
	EventLoad        = "load"
)

// Event carries the payload of a pyramid notification. Coord is the target
// coord for request/failure/discard, Tile is set for add/remove, Err for
// failure. A load event carries neither.
type Event struct {
	Coord tile.Coord
	Tile  *tile.Tile
	Err   error
}

// Handler observes pyramid events. Handlers run synchronously on the
// pyramid's goroutine and see the post-change pyramid state. Tiles passed
// through events are shared read-only.
type Handler func(Event)

type emitter struct {
	handlers map[string][]Handler
}

func (e *emitter) on(name string, h Handler) {
	if e.handlers == nil {
		e.handlers = make(map[string][]Handler)
	}
	e.handlers[name] = append(e.handlers[name], h)
}

func (e *emitter) emit(name string, ev Event) {
	for _, h := range e.handlers[name] {
		h(ev)
	}
}
