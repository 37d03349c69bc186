// Package badger provides a BadgerDB-backed resource store.
//
// BadgerDB is a key-value store, so resources are split into fixed-size
// blocks to keep random reads and writes cheap: a ReadAt or WriteAt touches
// only the blocks its byte range overlaps, never the whole resource.
//
// Key Namespace Prefixes:
//
// Data Type       Prefix   Key Format                Value
// =================================================================
// Resource Meta   "m:"     m:<key>                   resourceMeta (JSON)
// Block Data      "b:"     b:<key>:<idx big-endian>  up to blockSize bytes
package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"mime"
	"path"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/streamfs/pkg/source"
)

// blockSize is the fixed block size for resource data. 256KiB keeps values
// well under Badger's value log limits while amortizing transaction cost.
const blockSize = 256 * 1024

const (
	prefixMeta  = "m:"
	prefixBlock = "b:"
)

// resourceMeta holds per-resource metadata stored under the "m:" namespace.
type resourceMeta struct {
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	ModTime     time.Time `json:"mod_time"`
}

// Config holds configuration for the Badger store.
type Config struct {
	// Path is the directory for the Badger database files.
	Path string

	// InMemory runs Badger without any files on disk. Used by tests.
	InMemory bool
}

// Store is a BadgerDB-backed implementation of source.Store.
type Store struct {
	db *badger.DB

	mu     sync.RWMutex
	closed bool
}

// New opens a Badger database at cfg.Path and returns a store over it.
// Badger's own logger is disabled; the store logs through the application
// logger at the call sites that matter.
func New(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &Store{db: db}, nil
}

// keyMeta generates the metadata key for a resource: "m:<key>"
func keyMeta(key string) []byte {
	return []byte(prefixMeta + key)
}

// keyBlock generates a block key: "b:<key>:<idx>" with a big-endian index so
// blocks sort in offset order for range scans.
func keyBlock(key string, idx int64) []byte {
	k := make([]byte, 0, len(prefixBlock)+len(key)+1+8)
	k = append(k, prefixBlock...)
	k = append(k, key...)
	k = append(k, ':')
	k = binary.BigEndian.AppendUint64(k, uint64(idx))
	return k
}

// getMeta reads resource metadata inside a transaction.
func getMeta(txn *badger.Txn, key string) (*resourceMeta, error) {
	item, err := txn.Get(keyMeta(key))
	if err == badger.ErrKeyNotFound {
		return nil, source.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var meta resourceMeta
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &meta)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode resource metadata: %w", err)
	}
	return &meta, nil
}

// putMeta writes resource metadata inside a transaction.
func putMeta(txn *badger.Txn, key string, meta *resourceMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode resource metadata: %w", err)
	}
	return txn.Set(keyMeta(key), data)
}

// Stat retrieves resource metadata.
// Returns source.ErrNotFound if the key doesn't exist.
func (s *Store) Stat(ctx context.Context, key string) (source.Resource, error) {
	if err := ctx.Err(); err != nil {
		return source.Resource{}, err
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return source.Resource{}, source.ErrStoreClosed
	}
	s.mu.RUnlock()

	var meta *resourceMeta
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		meta, err = getMeta(txn, key)
		return err
	})
	if err != nil {
		return source.Resource{}, err
	}

	return source.Resource{
		Key:         key,
		Size:        meta.Size,
		ContentType: meta.ContentType,
		ModTime:     meta.ModTime,
	}, nil
}

// ReadAt reads up to len(p) bytes at the given offset, touching only the
// blocks the range overlaps. A read past the end of the resource returns a
// short count with a nil error.
func (s *Store) ReadAt(ctx context.Context, key string, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return 0, source.ErrStoreClosed
	}
	s.mu.RUnlock()

	if len(p) == 0 {
		return 0, nil
	}

	var n int
	err := s.db.View(func(txn *badger.Txn) error {
		meta, err := getMeta(txn, key)
		if err != nil {
			return err
		}

		if off >= meta.Size {
			return nil
		}

		want := int64(len(p))
		if off+want > meta.Size {
			want = meta.Size - off
		}

		for n < int(want) {
			pos := off + int64(n)
			idx := pos / blockSize
			inBlock := int(pos % blockSize)

			item, err := txn.Get(keyBlock(key, idx))
			if err == badger.ErrKeyNotFound {
				// Sparse block: zero-fill up to the block boundary.
				fill := blockSize - inBlock
				if n+fill > int(want) {
					fill = int(want) - n
				}
				for i := 0; i < fill; i++ {
					p[n+i] = 0
				}
				n += fill
				continue
			}
			if err != nil {
				return err
			}

			err = item.Value(func(val []byte) error {
				if inBlock >= len(val) {
					// Block shorter than the read position: zero-fill.
					fill := blockSize - inBlock
					if n+fill > int(want) {
						fill = int(want) - n
					}
					for i := 0; i < fill; i++ {
						p[n+i] = 0
					}
					n += fill
					return nil
				}
				copied := copy(p[n:want], val[inBlock:])
				n += copied
				if inBlock+copied == len(val) && len(val) < blockSize && n < int(want) {
					// Short block in the middle of the resource: zero-fill
					// the remainder of its span.
					fill := blockSize - (inBlock + copied)
					if n+fill > int(want) {
						fill = int(want) - n
					}
					for i := 0; i < fill; i++ {
						p[n+i] = 0
					}
					n += fill
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// WriteAt writes p at the given offset, creating the resource on first
// write. Partial block overlaps read-modify-write the affected block.
func (s *Store) WriteAt(ctx context.Context, key string, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return 0, source.ErrStoreClosed
	}
	s.mu.RUnlock()

	if len(p) == 0 {
		return 0, nil
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		meta, err := getMeta(txn, key)
		if err == source.ErrNotFound {
			meta = &resourceMeta{ContentType: contentTypeForKey(key)}
		} else if err != nil {
			return err
		}

		written := 0
		for written < len(p) {
			pos := off + int64(written)
			idx := pos / blockSize
			inBlock := int(pos % blockSize)

			chunk := blockSize - inBlock
			if chunk > len(p)-written {
				chunk = len(p) - written
			}

			var block []byte
			if inBlock == 0 && chunk == blockSize {
				// Full block overwrite: no read needed.
				block = p[written : written+chunk]
			} else {
				block = make([]byte, blockSize)
				item, err := txn.Get(keyBlock(key, idx))
				blockLen := inBlock + chunk
				if err == nil {
					err = item.Value(func(val []byte) error {
						copy(block, val)
						if len(val) > blockLen {
							blockLen = len(val)
						}
						return nil
					})
					if err != nil {
						return err
					}
				} else if err != badger.ErrKeyNotFound {
					return err
				}
				copy(block[inBlock:], p[written:written+chunk])
				block = block[:blockLen]
			}

			if err := txn.Set(keyBlock(key, idx), block); err != nil {
				return err
			}
			written += chunk
		}

		if end := off + int64(len(p)); end > meta.Size {
			meta.Size = end
		}
		meta.ModTime = time.Now()
		return putMeta(txn, key, meta)
	})
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// Remove deletes a resource and all its blocks.
// Returns source.ErrNotFound if the key doesn't exist.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return source.ErrStoreClosed
	}
	s.mu.RUnlock()

	return s.db.Update(func(txn *badger.Txn) error {
		meta, err := getMeta(txn, key)
		if err != nil {
			return err
		}

		blocks := (meta.Size + blockSize - 1) / blockSize
		for idx := int64(0); idx < blocks; idx++ {
			err := txn.Delete(keyBlock(key, idx))
			if err != nil && err != badger.ErrKeyNotFound {
				return err
			}
		}
		return txn.Delete(keyMeta(key))
	})
}

// HealthCheck verifies the database accepts transactions.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return source.ErrStoreClosed
	}
	s.mu.RUnlock()

	return s.db.View(func(txn *badger.Txn) error {
		return nil
	})
}

// Backend returns "badger".
func (s *Store) Backend() string {
	return "badger"
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// contentTypeForKey guesses a content type from the key's extension.
func contentTypeForKey(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Ensure Store implements source.Store.
var _ source.Store = (*Store)(nil)
