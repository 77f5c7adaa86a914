// Package mb provides an MBTiles-backed tile source implementing the
// pyramid's loader interface.
//
// Note: the package registers the sqlite3 database/sql driver through
// github.com/mattn/go-sqlite3.
package mb

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/klauspost/compress/gzip"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Ottervanger/lumo/tile"
)

// ErrTileNotFound reports a coord with no row in the tileset. The pyramid
// surfaces it as a tile:failure event.
var ErrTileNotFound = errors.New("lumo: tile not found")

var gzipMagic = []byte{0x1f, 0x8b}

type sourceConfig struct {
	Decompression bool
	Logger        *slog.Logger
}

type SourceOption func(*sourceConfig)

// WithDecompression gunzips tile payloads on read. MBTiles stores vector
// tiles gzip-compressed; raster payloads pass through untouched.
func WithDecompression() SourceOption {
	return func(c *sourceConfig) { c.Decompression = true }
}

func WithLogger(logger *slog.Logger) SourceOption {
	return func(c *sourceConfig) { c.Logger = logger }
}

// Source reads tiles from an MBTiles file. Load resolves its callback
// synchronously on the caller's goroutine, which satisfies the loader
// contract of the pyramid.
type Source struct {
	db         *sql.DB
	stmt       *sql.Stmt
	decompress bool
	logger     *slog.Logger
}

// Open opens an MBTiles file read-only.
//
// The returned Source must be closed after use to release database
// resources.
func Open(filePath string, opts ...SourceOption) (*Source, error) {
	config := sourceConfig{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", filePath))
	if err != nil {
		return nil, err
	}

	stmt, err := db.Prepare("SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?")
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Source{
		db:         db,
		stmt:       stmt,
		decompress: config.Decompression,
		logger:     config.Logger,
	}, nil
}

func (s *Source) Close() error {
	return errors.Join(s.stmt.Close(), s.db.Close())
}

// Metadata returns the name/value pairs of the metadata table.
func (s *Source) Metadata() (map[string]string, error) {
	metadata := make(map[string]string)

	rows, err := s.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		metadata[name] = value
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return metadata, nil
}

// ReadTile reads the payload for the coord, or ErrTileNotFound.
func (s *Source) ReadTile(c tile.Coord) ([]byte, error) {
	n := c.Normalize()
	x, z := n.X, n.Z
	y := (1 << uint(z)) - 1 - n.Y // XYZ -> TMS

	var data []byte
	if err := s.stmt.QueryRow(z, x, y).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %v", ErrTileNotFound, n)
		}
		return nil, err
	}

	if s.decompress && bytes.HasPrefix(data, gzipMagic) {
		return gunzip(data)
	}
	return data, nil
}

// Load implements tile.Loader.
func (s *Source) Load(c tile.Coord, done func(data []byte, err error)) {
	data, err := s.ReadTile(c)
	if err != nil {
		s.logger.Debug("lumo: mbtiles read failed", "coord", c.String(), "err", err)
	}
	done(data, err)
}

func gunzip(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress tile: %w", err)
	}
	defer reader.Close()

	result, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress tile: %w", err)
	}
	return result, nil
}
