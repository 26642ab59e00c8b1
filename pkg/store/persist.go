package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"
)

// Backend is the durable snapshot store. Each series is persisted as a
// zstd-compressed JSON array of its entity records under a single key, so
// a snapshot write replaces the previous one atomically.
type Backend struct {
	db      *badger.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// OpenBackend opens the durable backend rooted at path. An open failure
// is not fatal to the service: the caller runs memory-only and logs the
// degraded mode.
func OpenBackend(path string) (*Backend, error) {
	opts := badger.DefaultOptions(filepath.Join(path, "badger"))
	opts.Logger = nil // Disable BadgerDB logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	return &Backend{db: db, encoder: encoder, decoder: decoder}, nil
}

// Close closes the backend and its compressor resources.
func (b *Backend) Close() error {
	if b.encoder != nil {
		b.encoder.Close()
	}
	if b.decoder != nil {
		b.decoder.Close()
	}
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// SaveSeries persists a series snapshot under its name.
func SaveSeries[T any](b *Backend, name string, entries []T) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal series %s: %w", name, err)
	}

	compressed := b.encoder.EncodeAll(payload, make([]byte, 0, len(payload)))

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(seriesKey(name), compressed)
	})
}

// LoadSeries reads back the last persisted snapshot for a series. A
// series that was never saved yields an empty result, not an error.
func LoadSeries[T any](b *Backend, name string) ([]T, error) {
	var compressed []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(seriesKey(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			compressed = append([]byte{}, val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read series %s: %w", name, err)
	}

	payload, err := b.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompression failed for series %s: %w", name, err)
	}

	var entries []T
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal series %s: %w", name, err)
	}
	return entries, nil
}

func seriesKey(name string) []byte {
	return []byte("series/" + name)
}
