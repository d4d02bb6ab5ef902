package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"tmengine/internal/tmerr"
)

const writeBatch = 1024

// codecFor maps the configured compression name to a Parquet codec.
func codecFor(name string) (compress.Codec, error) {
	switch name {
	case "", "zstd":
		return &parquet.Zstd, nil
	case "snappy":
		return &parquet.Snappy, nil
	case "gzip":
		return &parquet.Gzip, nil
	case "none":
		return &parquet.Uncompressed, nil
	default:
		return nil, tmerr.Wrap(tmerr.ErrConfiguration, "archive", "codec",
			fmt.Sprintf("unsupported compression %q", name), nil)
	}
}

// writeRows writes rows to a temp file beside path and renames it into
// place. The previous file survives any failure, cancellation included.
func writeRows[T any](ctx context.Context, path string, rows []T, codec compress.Codec) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	w := parquet.NewGenericWriter[T](tmp, parquet.Compression(codec))
	for start := 0; start < len(rows); start += writeBatch {
		if err := ctx.Err(); err != nil {
			return tmerr.FromContext("archive", "write", err)
		}
		end := min(start+writeBatch, len(rows))
		if _, err := w.Write(rows[start:end]); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish parquet file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return tmerr.FromContext("archive", "write", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// readRows loads every row of path. A missing file yields no rows.
func readRows[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return rows, nil
}
