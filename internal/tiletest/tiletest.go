// Package tiletest provides shared test doubles for exercising a tile
// pyramid: a loader with manually resolved callbacks, a scriptable
// viewport, and an event recorder.
package tiletest

import (
	"fmt"

	"github.com/Ottervanger/lumo/pyramid"
	"github.com/Ottervanger/lumo/tile"
)

type pendingCall struct {
	coord tile.Coord
	done  func(data []byte, err error)
}

// Loader implements tile.Loader with callbacks held for manual
// resolution, so tests control the interleaving of responses with other
// pyramid operations. With an auto function set, callbacks resolve
// synchronously inside Load instead.
type Loader struct {
	auto    func(tile.Coord) ([]byte, error)
	pending []pendingCall
	loads   []tile.Coord
}

// NewManualLoader returns a loader whose callbacks fire only through
// Resolve and Fail.
func NewManualLoader() *Loader {
	return &Loader{}
}

// NewSyncLoader returns a loader that resolves every Load synchronously
// with the result of fn.
func NewSyncLoader(fn func(tile.Coord) ([]byte, error)) *Loader {
	return &Loader{auto: fn}
}

func (l *Loader) Load(c tile.Coord, done func(data []byte, err error)) {
	l.loads = append(l.loads, c)
	if l.auto != nil {
		done(l.auto(c))
		return
	}
	l.pending = append(l.pending, pendingCall{coord: c, done: done})
}

// Loads returns every coord passed to Load, in dispatch order.
func (l *Loader) Loads() []tile.Coord {
	return l.loads
}

// Outstanding returns the number of unresolved callbacks.
func (l *Loader) Outstanding() int {
	return len(l.pending)
}

// Resolve fires the oldest unresolved callback for the coord with a
// successful payload. It panics when no such callback exists, which in a
// test means the pyramid never dispatched the load.
func (l *Loader) Resolve(c tile.Coord, data []byte) {
	l.take(c)(data, nil)
}

// Fail fires the oldest unresolved callback for the coord with err.
func (l *Loader) Fail(c tile.Coord, err error) {
	l.take(c)(nil, err)
}

// ResolveNewest fires the most recent unresolved callback for the coord,
// for tests where a later request's response overtakes an earlier one.
func (l *Loader) ResolveNewest(c tile.Coord, data []byte) {
	n := c.Normalize()
	for i := len(l.pending) - 1; i >= 0; i-- {
		if l.pending[i].coord == n {
			done := l.pending[i].done
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			done(data, nil)
			return
		}
	}
	panic(fmt.Sprintf("tiletest: no outstanding load for %v", n))
}

func (l *Loader) take(c tile.Coord) func([]byte, error) {
	n := c.Normalize()
	for i, call := range l.pending {
		if call.coord == n {
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			return call.done
		}
	}
	panic(fmt.Sprintf("tiletest: no outstanding load for %v", n))
}

// Viewport implements tile.Viewport from fixed data. The zero value keeps
// every coord in view at plot offset (0, 0).
type Viewport struct {
	Coords []tile.Coord
	InView func(c tile.Coord) bool
	X, Y   float64
}

func (v *Viewport) IsInView(c tile.Coord, wraparound bool) bool {
	if v.InView != nil {
		return v.InView(c)
	}
	return true
}

func (v *Viewport) TargetVisibleCoords() []tile.Coord {
	return v.Coords
}

func (v *Viewport) PlotOffset() (float64, float64) {
	return v.X, v.Y
}

// AllEventNames lists every event a pyramid emits.
var AllEventNames = []string{
	pyramid.EventTileRequest,
	pyramid.EventTileAdd,
	pyramid.EventTileFailure,
	pyramid.EventTileDiscard,
	pyramid.EventTileRemove,
	pyramid.EventLoad,
}

// Recorder captures pyramid events by name, in emission order.
type Recorder struct {
	Names  []string
	Events []pyramid.Event
}

// Attach subscribes the recorder to every event of p.
func (r *Recorder) Attach(p *pyramid.Pyramid) {
	for _, name := range AllEventNames {
		p.On(name, func(ev pyramid.Event) {
			r.Names = append(r.Names, name)
			r.Events = append(r.Events, ev)
		})
	}
}

// Count returns how many events with the given name were recorded.
func (r *Recorder) Count(name string) int {
	count := 0
	for _, n := range r.Names {
		if n == name {
			count++
		}
	}
	return count
}

// Coords returns the coords of every recorded event with the given name.
func (r *Recorder) Coords(name string) []tile.Coord {
	var coords []tile.Coord
	for i, n := range r.Names {
		if n == name {
			coords = append(coords, r.Events[i].Coord)
		}
	}
	return coords
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.Names = nil
	r.Events = nil
}
