package xyz_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/Ottervanger/lumo/tile"
	"github.com/Ottervanger/lumo/xyz"
	"github.com/google/go-cmp/cmp"
)

func TestWriterSource(t *testing.T) {
	pattern := filepath.Join(t.TempDir(), "{z}", "{x}", "{y}.png")

	tiles := map[tile.Coord][]byte{
		{Z: 0, X: 0, Y: 0}: []byte("tile000"),
		{Z: 1, X: 1, Y: 1}: []byte("tile111"),
		{Z: 6, X: 6, Y: 6}: []byte("tile666"),
	}

	writer, err := xyz.NewWriter(pattern)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	for c, data := range tiles {
		if err := writer.WriteTile(c, data); err != nil {
			t.Errorf("WriteTile(%v) failed: %v", c, err)
		}
	}

	source, err := xyz.NewSource(pattern)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}

	for c, want := range tiles {
		data, err := source.ReadTile(c)
		if err != nil {
			t.Errorf("ReadTile(%v) failed: %v", c, err)
			continue
		}
		if !cmp.Equal(data, want) {
			t.Errorf("ReadTile(%v) = %q, want %q", c, data, want)
		}
	}

	if _, err := source.ReadTile(tile.Coord{Z: 9, X: 9, Y: 9}); !errors.Is(err, xyz.ErrTileNotFound) {
		t.Errorf("ReadTile(missing) error = %v, want ErrTileNotFound", err)
	}
}

func TestSourceNormalizesWrap(t *testing.T) {
	pattern := filepath.Join(t.TempDir(), "{z}", "{x}", "{y}.png")

	writer, err := xyz.NewWriter(pattern)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	if err := writer.WriteTile(tile.Coord{Z: 2, X: 3, Y: 0}, []byte("east")); err != nil {
		t.Fatalf("WriteTile failed: %v", err)
	}

	source, err := xyz.NewSource(pattern)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	data, err := source.ReadTile(tile.Coord{Z: 2, X: -1, Y: 0})
	if err != nil {
		t.Fatalf("ReadTile(wrapped) failed: %v", err)
	}
	if got, want := string(data), "east"; got != want {
		t.Errorf("ReadTile(wrapped) = %q, want %q", got, want)
	}
}

func TestInvalidPattern(t *testing.T) {
	if _, err := xyz.NewSource("/tiles/{z}/{x}.png"); !errors.Is(err, xyz.ErrInvalidPattern) {
		t.Errorf("NewSource error = %v, want ErrInvalidPattern", err)
	}
	if _, err := xyz.NewWriter("/tiles/plain.png"); !errors.Is(err, xyz.ErrInvalidPattern) {
		t.Errorf("NewWriter error = %v, want ErrInvalidPattern", err)
	}
}

func TestSourceLoadCallback(t *testing.T) {
	pattern := filepath.Join(t.TempDir(), "{z}", "{x}", "{y}.png")

	writer, err := xyz.NewWriter(pattern)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	if err := writer.WriteTile(tile.Coord{Z: 0, X: 0, Y: 0}, []byte("root")); err != nil {
		t.Fatalf("WriteTile failed: %v", err)
	}

	source, err := xyz.NewSource(pattern)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}

	calls := 0
	source.Load(tile.Coord{Z: 0, X: 0, Y: 0}, func(data []byte, err error) {
		calls++
		if err != nil || string(data) != "root" {
			t.Errorf("Load callback = (%q, %v), want (%q, nil)", data, err, "root")
		}
	})
	if got, want := calls, 1; got != want {
		t.Fatalf("callback invocations = %v, want %v", got, want)
	}
}
