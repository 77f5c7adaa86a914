package mb

import (
	"bytes"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/klauspost/compress/gzip"

	"github.com/Ottervanger/lumo/tile"
)

type writerConfig struct {
	Metadata    map[string]string
	Compression bool
	Logger      *slog.Logger
}

type WriterOption func(*writerConfig)

func WithWriterMetadata(metadata map[string]string) WriterOption {
	return func(c *writerConfig) { c.Metadata = metadata }
}

// WithCompression gzips tile payloads on write, the way vector tilesets
// are conventionally stored.
func WithCompression() WriterOption {
	return func(c *writerConfig) { c.Compression = true }
}

func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) { c.Logger = logger }
}

// Writer creates MBTiles tilesets; lumo uses it for cache-warm targets
// and test fixtures.
type Writer struct {
	db       *sql.DB
	stmt     *sql.Stmt
	compress bool
	logger   *slog.Logger
}

// NewWriter creates a Writer over a fresh MBTiles file. Finalize must be
// called before Close for the tileset to be readable efficiently.
func NewWriter(filePath string, opts ...WriterOption) (*Writer, error) {
	config := writerConfig{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	var err error
	db, err := sql.Open("sqlite3", filePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// Bulk-load settings; the file is written once and read many times.
	_, err = db.Exec(`
		PRAGMA synchronous=0;
		PRAGMA journal_mode=DELETE;
		CREATE TABLE metadata (name TEXT, value TEXT);
		CREATE TABLE tiles (
			zoom_level INTEGER,
			tile_column INTEGER,
			tile_row INTEGER,
			tile_data BLOB
		);
	`)
	if err != nil {
		return nil, err
	}

	for k, v := range config.Metadata {
		_, err = db.Exec("INSERT INTO metadata (name, value) VALUES (?, ?)", k, v)
		if err != nil {
			return nil, err
		}
	}

	stmt, err := db.Prepare("INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)")
	if err != nil {
		return nil, err
	}

	return &Writer{
		db:       db,
		stmt:     stmt,
		compress: config.Compression,
		logger:   config.Logger,
	}, nil
}

func (w *Writer) Close() error {
	return errors.Join(w.stmt.Close(), w.db.Close())
}

func (w *Writer) WriteTile(c tile.Coord, data []byte) error {
	n := c.Normalize()
	x, z := n.X, n.Z
	y := (1 << uint(z)) - 1 - n.Y // XYZ -> TMS

	if w.compress {
		var buffer bytes.Buffer
		zw := gzip.NewWriter(&buffer)
		if _, err := zw.Write(data); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		data = buffer.Bytes()
	}

	_, err := w.stmt.Exec(z, x, y, data)
	return err
}

func (w *Writer) Finalize() error {
	w.logger.Debug("lumo: creating tile index")
	_, err := w.db.Exec("CREATE UNIQUE INDEX tile_index ON tiles (zoom_level, tile_column, tile_row)")
	return err
}
