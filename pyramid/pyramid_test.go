package pyramid_test

import (
	"errors"
	"testing"

	"github.com/Ottervanger/lumo/internal/tiletest"
	"github.com/Ottervanger/lumo/pyramid"
	"github.com/Ottervanger/lumo/tile"
	"github.com/google/go-cmp/cmp"
)

func testConfig() pyramid.Config {
	cfg := pyramid.DefaultConfig()
	cfg.CacheSize = 8
	cfg.PersistentLevels = 0
	return cfg
}

func payloadFor(c tile.Coord) ([]byte, error) {
	return []byte(c.String()), nil
}

func TestRequestDedupeWithinBatch(t *testing.T) {
	loader := tiletest.NewManualLoader()
	p := pyramid.New(loader, &tiletest.Viewport{}, testConfig())

	c := tile.Coord{Z: 3, X: 1, Y: 2}
	p.RequestTiles([]tile.Coord{c, c, c})

	if got, want := len(loader.Loads()), 1; got != want {
		t.Errorf("loader calls = %v, want %v", got, want)
	}
}

func TestRequestDedupeAcrossWrap(t *testing.T) {
	loader := tiletest.NewManualLoader()
	p := pyramid.New(loader, &tiletest.Viewport{}, testConfig())

	p.RequestTiles([]tile.Coord{
		{Z: 2, X: 1, Y: 0},
		{Z: 2, X: 5, Y: 0},
		{Z: 2, X: -3, Y: 0},
	})

	want := []tile.Coord{{Z: 2, X: 1, Y: 0}}
	if diff := cmp.Diff(want, loader.Loads()); diff != "" {
		t.Errorf("loader calls mismatch (-want+got):\n%v", diff)
	}
}

func TestRequestSkipsStoredAndPending(t *testing.T) {
	loader := tiletest.NewManualLoader()
	p := pyramid.New(loader, &tiletest.Viewport{}, testConfig())

	a := tile.Coord{Z: 1, X: 0, Y: 0}
	b := tile.Coord{Z: 1, X: 1, Y: 0}
	p.RequestTiles([]tile.Coord{a, b})
	loader.Resolve(a, []byte("a"))

	// a is stored, b is still pending: neither dispatches again.
	p.RequestTiles([]tile.Coord{a, b})
	if got, want := len(loader.Loads()), 2; got != want {
		t.Errorf("loader calls = %v, want %v", got, want)
	}
}

func TestRequestFiltersZoomBand(t *testing.T) {
	loader := tiletest.NewManualLoader()
	cfg := testConfig()
	cfg.MinZoom = 1
	cfg.MaxZoom = 3
	p := pyramid.New(loader, &tiletest.Viewport{}, cfg)

	p.RequestTiles([]tile.Coord{
		{Z: -1, X: 0, Y: 0},
		{Z: 0, X: 0, Y: 0},
		{Z: 2, X: 1, Y: 1},
		{Z: 4, X: 0, Y: 0},
	})

	want := []tile.Coord{{Z: 2, X: 1, Y: 1}}
	if diff := cmp.Diff(want, loader.Loads()); diff != "" {
		t.Errorf("loader calls mismatch (-want+got):\n%v", diff)
	}
}

func TestFreshSuccess(t *testing.T) {
	loader := tiletest.NewManualLoader()
	p := pyramid.New(loader, &tiletest.Viewport{}, testConfig())
	rec := &tiletest.Recorder{}
	rec.Attach(p)

	c := tile.Coord{Z: 2, X: -1, Y: 1}
	n := c.Normalize()
	p.RequestTiles([]tile.Coord{c})

	if !p.IsPending(c) {
		t.Fatal("IsPending = false before resolution, want true")
	}
	if p.Has(c) {
		t.Fatal("Has and IsPending must be mutually exclusive")
	}

	loader.Resolve(c, []byte("payload"))

	if p.IsPending(c) {
		t.Error("IsPending = true after resolution, want false")
	}
	if !p.Has(c) {
		t.Fatal("Has = false after fresh in-view success, want true")
	}
	if got, want := p.Get(c).Coord, n; got != want {
		t.Errorf("Get(c).Coord = %v, want normalized %v", got, want)
	}
	if got, want := rec.Names, []string{
		pyramid.EventTileRequest, pyramid.EventTileAdd, pyramid.EventLoad,
	}; !cmp.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestFreshFailure(t *testing.T) {
	loader := tiletest.NewManualLoader()
	p := pyramid.New(loader, &tiletest.Viewport{}, testConfig())
	rec := &tiletest.Recorder{}
	rec.Attach(p)

	c := tile.Coord{Z: 1, X: 0, Y: 0}
	p.RequestTiles([]tile.Coord{c})
	loader.Fail(c, errors.New("boom"))

	if p.Has(c) || p.IsPending(c) {
		t.Error("failed load must leave the coord neither stored nor pending")
	}
	if got, want := rec.Names, []string{
		pyramid.EventTileRequest, pyramid.EventTileFailure, pyramid.EventLoad,
	}; !cmp.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
	if rec.Events[1].Err == nil {
		t.Error("failure event must carry the loader error")
	}
}

func TestFreshOutOfViewDiscards(t *testing.T) {
	loader := tiletest.NewManualLoader()
	view := &tiletest.Viewport{InView: func(tile.Coord) bool { return false }}
	p := pyramid.New(loader, view, testConfig())
	rec := &tiletest.Recorder{}
	rec.Attach(p)

	c := tile.Coord{Z: 1, X: 0, Y: 0}
	p.RequestTiles([]tile.Coord{c})
	loader.Resolve(c, []byte("late"))

	if p.Has(c) {
		t.Error("out-of-view success must not be stored")
	}
	if got, want := rec.Count(pyramid.EventTileDiscard), 1; got != want {
		t.Errorf("discard events = %v, want %v", got, want)
	}
	if got, want := rec.Count(pyramid.EventLoad), 1; got != want {
		t.Errorf("load events = %v, want %v", got, want)
	}
}

// Scenario: cacheSize 2, nothing pinned, three tiles loaded synchronously.
// The first tile is the LRU victim and one load event closes the group.
func TestEvictionOnOverflow(t *testing.T) {
	loader := tiletest.NewSyncLoader(payloadFor)
	cfg := testConfig()
	cfg.CacheSize = 2
	p := pyramid.New(loader, &tiletest.Viewport{}, cfg)
	rec := &tiletest.Recorder{}
	rec.Attach(p)

	p.RequestTiles([]tile.Coord{
		{Z: 0, X: 0, Y: 0},
		{Z: 1, X: 0, Y: 0},
		{Z: 1, X: 1, Y: 0},
	})

	if got, want := rec.Count(pyramid.EventTileAdd), 3; got != want {
		t.Errorf("add events = %v, want %v", got, want)
	}
	if got, want := p.Len(), 2; got != want {
		t.Errorf("Len() = %v, want %v", got, want)
	}
	if got, want := rec.Coords(pyramid.EventTileRemove), []tile.Coord{{Z: 0, X: 0, Y: 0}}; !cmp.Equal(got, want) {
		t.Errorf("removed coords = %v, want %v", got, want)
	}
	if p.Has(tile.Coord{Z: 0, X: 0, Y: 0}) {
		t.Error("evicted coord still stored")
	}
	if got, want := rec.Count(pyramid.EventLoad), 1; got != want {
		t.Errorf("load events = %v, want %v", got, want)
	}
}

// Scenario: a request cancelled by Clear resolves afterwards. The response
// is discarded and no load event fires.
func TestClearBeforeResolution(t *testing.T) {
	loader := tiletest.NewManualLoader()
	p := pyramid.New(loader, &tiletest.Viewport{}, testConfig())
	rec := &tiletest.Recorder{}
	rec.Attach(p)

	c := tile.Coord{Z: 0, X: 0, Y: 0}
	p.RequestTiles([]tile.Coord{c})
	p.Clear()

	if p.IsPending(c) {
		t.Fatal("IsPending = true after Clear, want false")
	}

	loader.Resolve(c, []byte("late"))

	if p.Has(c) {
		t.Error("stale success must not be stored")
	}
	if got, want := rec.Count(pyramid.EventTileAdd), 0; got != want {
		t.Errorf("add events = %v, want %v", got, want)
	}
	if got, want := rec.Count(pyramid.EventTileDiscard), 1; got != want {
		t.Errorf("discard events = %v, want %v", got, want)
	}
	if got, want := rec.Count(pyramid.EventLoad), 0; got != want {
		t.Errorf("load events = %v, want %v", got, want)
	}
}

// Scenario: three request/clear cycles on one coord. The two stale
// responses are discarded, the third lands.
func TestClearReissueCycles(t *testing.T) {
	loader := tiletest.NewManualLoader()
	p := pyramid.New(loader, &tiletest.Viewport{}, testConfig())
	rec := &tiletest.Recorder{}
	rec.Attach(p)

	c := tile.Coord{Z: 0, X: 0, Y: 0}
	p.RequestTiles([]tile.Coord{c})
	p.Clear()
	p.RequestTiles([]tile.Coord{c})
	p.Clear()
	p.RequestTiles([]tile.Coord{c})

	loader.Resolve(c, []byte("stale1"))
	loader.Resolve(c, []byte("stale2"))
	loader.Resolve(c, []byte("fresh"))

	if got, want := rec.Count(pyramid.EventTileDiscard), 2; got != want {
		t.Errorf("discard events = %v, want %v", got, want)
	}
	if got, want := rec.Count(pyramid.EventTileAdd), 1; got != want {
		t.Errorf("add events = %v, want %v", got, want)
	}
	if got, want := string(p.Get(c).Data), "fresh"; got != want {
		t.Errorf("Get(c).Data = %q, want %q", got, want)
	}
}

func TestClearEmitsRemovePerTile(t *testing.T) {
	loader := tiletest.NewSyncLoader(payloadFor)
	p := pyramid.New(loader, &tiletest.Viewport{}, testConfig())
	rec := &tiletest.Recorder{}
	rec.Attach(p)

	coords := []tile.Coord{
		{Z: 0, X: 0, Y: 0},
		{Z: 1, X: 1, Y: 1},
		{Z: 2, X: 3, Y: 0},
	}
	p.RequestTiles(coords)
	rec.Reset()

	p.Clear()

	if got, want := rec.Count(pyramid.EventTileRemove), len(coords); got != want {
		t.Errorf("remove events = %v, want %v", got, want)
	}
	for _, c := range coords {
		if p.Has(c) {
			t.Errorf("Has(%v) = true after Clear, want false", c)
		}
	}
	if got, want := p.Len(), 0; got != want {
		t.Errorf("Len() = %v, want %v", got, want)
	}
}

// Scenario: the loader clears the pyramid from inside its own body before
// resolving successfully. The response must take the stale path.
func TestClearInsideLoader(t *testing.T) {
	var p *pyramid.Pyramid
	loader := tile.LoaderFunc(func(c tile.Coord, done func([]byte, error)) {
		p.Clear()
		done([]byte("payload"), nil)
	})
	p = pyramid.New(loader, &tiletest.Viewport{}, testConfig())
	rec := &tiletest.Recorder{}
	rec.Attach(p)

	c := tile.Coord{Z: 0, X: 0, Y: 0}
	p.RequestTiles([]tile.Coord{c})

	if p.Has(c) {
		t.Error("Has = true, want false")
	}
	if p.IsPending(c) {
		t.Error("IsPending = true, want false")
	}
	if got, want := rec.Count(pyramid.EventTileDiscard), 1; got != want {
		t.Errorf("discard events = %v, want %v", got, want)
	}
	if got, want := rec.Count(pyramid.EventLoad), 0; got != want {
		t.Errorf("load events = %v, want %v", got, want)
	}
}

// A fresh request issued after Clear must be unaffected by the stale
// credits of its coord, whichever response arrives first.
func TestStaleCreditDoesNotPoisonReissue(t *testing.T) {
	loader := tiletest.NewManualLoader()
	p := pyramid.New(loader, &tiletest.Viewport{}, testConfig())
	rec := &tiletest.Recorder{}
	rec.Attach(p)

	c := tile.Coord{Z: 1, X: 0, Y: 0}
	p.RequestTiles([]tile.Coord{c})
	p.Clear()
	p.RequestTiles([]tile.Coord{c})

	if got, want := loader.Outstanding(), 2; got != want {
		t.Fatalf("outstanding loads = %v, want %v", got, want)
	}

	// The fresh response overtakes the stale one.
	loader.ResolveNewest(c, []byte("fresh"))
	loader.Resolve(c, []byte("stale"))

	if got, want := string(p.Get(c).Data), "fresh"; got != want {
		t.Errorf("Get(c).Data = %q, want %q", got, want)
	}
	if got, want := rec.Count(pyramid.EventTileDiscard), 1; got != want {
		t.Errorf("discard events = %v, want %v", got, want)
	}
}

func TestLoadFiresOncePerDrain(t *testing.T) {
	loader := tiletest.NewManualLoader()
	p := pyramid.New(loader, &tiletest.Viewport{}, testConfig())
	rec := &tiletest.Recorder{}
	rec.Attach(p)

	a := tile.Coord{Z: 1, X: 0, Y: 0}
	b := tile.Coord{Z: 1, X: 1, Y: 0}
	p.RequestTiles([]tile.Coord{a, b})

	loader.Resolve(a, []byte("a"))
	if got, want := rec.Count(pyramid.EventLoad), 0; got != want {
		t.Fatalf("load events before drain = %v, want %v", got, want)
	}
	loader.Resolve(b, []byte("b"))
	if got, want := rec.Count(pyramid.EventLoad), 1; got != want {
		t.Fatalf("load events after drain = %v, want %v", got, want)
	}

	// A second group drains independently.
	c := tile.Coord{Z: 1, X: 0, Y: 1}
	p.RequestTiles([]tile.Coord{c})
	loader.Resolve(c, []byte("c"))
	if got, want := rec.Count(pyramid.EventLoad), 2; got != want {
		t.Errorf("load events after second drain = %v, want %v", got, want)
	}
}

func TestCapacity(t *testing.T) {
	for _, tc := range []struct {
		cacheSize        int
		persistentLevels int
		want             int
	}{
		{256, 0, 256},
		{256, 1, 257},
		{256, 5, 597},
		{2, 0, 2},
	} {
		cfg := testConfig()
		cfg.CacheSize = tc.cacheSize
		cfg.PersistentLevels = tc.persistentLevels
		p := pyramid.New(tiletest.NewManualLoader(), &tiletest.Viewport{}, cfg)
		if got := p.Capacity(); got != tc.want {
			t.Errorf("Capacity(cacheSize=%v, persistentLevels=%v) = %v, want %v",
				tc.cacheSize, tc.persistentLevels, got, tc.want)
		}
	}
}

func TestPersistentLevelsNeverEvict(t *testing.T) {
	loader := tiletest.NewSyncLoader(payloadFor)
	cfg := testConfig()
	cfg.CacheSize = 1
	cfg.PersistentLevels = 2
	p := pyramid.New(loader, &tiletest.Viewport{}, cfg)

	pinned := []tile.Coord{
		{Z: 0, X: 0, Y: 0},
		{Z: 1, X: 0, Y: 0},
		{Z: 1, X: 1, Y: 1},
	}
	churn := []tile.Coord{
		{Z: 2, X: 0, Y: 0},
		{Z: 2, X: 1, Y: 0},
		{Z: 2, X: 2, Y: 0},
	}
	p.RequestTiles(pinned)
	p.RequestTiles(churn)

	for _, c := range pinned {
		if !p.Has(c) {
			t.Errorf("Has(%v) = false after churn, want true (pinned)", c)
		}
	}
	// Only the most recent volatile tile survives the size-1 LRU.
	if !p.Has(churn[2]) || p.Has(churn[0]) || p.Has(churn[1]) {
		t.Error("volatile region did not evict in LRU order")
	}
}

func TestTilesIteration(t *testing.T) {
	loader := tiletest.NewSyncLoader(payloadFor)
	p := pyramid.New(loader, &tiletest.Viewport{}, testConfig())

	coords := []tile.Coord{
		{Z: 0, X: 0, Y: 0},
		{Z: 3, X: 4, Y: 5},
	}
	p.RequestTiles(coords)

	got := make(map[tile.Coord]string)
	for c, tl := range p.Tiles() {
		got[c] = string(tl.Data)
	}
	want := map[tile.Coord]string{
		{Z: 0, X: 0, Y: 0}: "0/0/0",
		{Z: 3, X: 4, Y: 5}: "3/4/5",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Tiles() mismatch (-want+got):\n%v", diff)
	}
}

func TestNewPanicsWithoutCollaborators(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New(nil loader) did not panic")
		}
	}()
	pyramid.New(nil, &tiletest.Viewport{}, testConfig())
}
