// Package xyz provides a tile source over an XYZ directory tree, where
// tiles are stored as individual files with paths like "/z/x/y.ext".
package xyz

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ottervanger/lumo/tile"
)

var ErrInvalidPattern = errors.New("lumo: invalid file pattern")

// ErrTileNotFound reports a coord with no file in the tree. The pyramid
// surfaces it as a tile:failure event.
var ErrTileNotFound = errors.New("lumo: tile not found")

func validatePattern(pattern string) error {
	for _, p := range []string{"{x}", "{y}", "{z}"} {
		if !strings.Contains(pattern, p) {
			return fmt.Errorf("%w: placeholder %v not found", ErrInvalidPattern, p)
		}
	}
	return nil
}

func formatPattern(pattern string, c tile.Coord) string {
	result := pattern
	result = strings.ReplaceAll(result, "{x}", fmt.Sprintf("%d", c.X))
	result = strings.ReplaceAll(result, "{y}", fmt.Sprintf("%d", c.Y))
	result = strings.ReplaceAll(result, "{z}", fmt.Sprintf("%d", c.Z))
	return result
}

// Source reads tiles from a file pattern (e.g.
// "/home/user/tiles/{z}/{x}/{y}.png"). Load resolves its callback
// synchronously on the caller's goroutine.
type Source struct {
	filePattern string
}

func NewSource(filePattern string) (*Source, error) {
	if err := validatePattern(filePattern); err != nil {
		return nil, err
	}
	return &Source{filePattern}, nil
}

// ReadTile reads the payload for the coord, or ErrTileNotFound.
func (s *Source) ReadTile(c tile.Coord) ([]byte, error) {
	filePath := formatPattern(s.filePattern, c.Normalize())
	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %v", ErrTileNotFound, c.Normalize())
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Load implements tile.Loader.
func (s *Source) Load(c tile.Coord, done func(data []byte, err error)) {
	done(s.ReadTile(c))
}

// Writer stores tiles as individual files under the same pattern; lumo
// uses it for test fixtures and warm targets.
type Writer struct {
	filePattern string
}

func NewWriter(filePattern string) (*Writer, error) {
	if err := validatePattern(filePattern); err != nil {
		return nil, err
	}
	return &Writer{filePattern}, nil
}

func (w *Writer) WriteTile(c tile.Coord, data []byte) error {
	filePath := formatPattern(w.filePattern, c.Normalize())

	dirPath := filepath.Dir(filePath)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return err
	}

	return os.WriteFile(filePath, data, 0644)
}
