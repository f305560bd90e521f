package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/strevio/strev/internal/observability"
)

// FileCache is the file-backed provider: segment/playlist bytes and their
// metadata are stored under separate key prefixes in a single badger
// database, mirroring a sidecar-metadata-file layout without needing a
// second filesystem namespace. Expiry is evaluated against our own
// Metadata.TTL/InsertedAt rather than badger's native per-entry TTL, so
// Sweep can report exactly how many entries it removed.
type FileCache struct {
	db     *badger.DB
	logger *slog.Logger
}

const (
	dataPrefix = "data:"
	metaPrefix = "meta:"
)

// NewFileCache opens (creating if absent) a badger database rooted at dir.
func NewFileCache(dir string, logger *slog.Logger) (*FileCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &FileCache{db: db, logger: logger}, nil
}

func (f *FileCache) Get(ctx context.Context, key Key) (Entry, bool) {
	k := key.String()
	var meta Metadata
	var body []byte

	err := f.db.View(func(txn *badger.Txn) error {
		metaItem, err := txn.Get([]byte(metaPrefix + k))
		if err != nil {
			return err
		}
		if err := metaItem.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		}); err != nil {
			return err
		}
		dataItem, err := txn.Get([]byte(dataPrefix + k))
		if err != nil {
			return err
		}
		return dataItem.Value(func(val []byte) error {
			body = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		if err != badger.ErrKeyNotFound {
			f.logger.Warn("file cache read failed, treating as miss", "key", k, "err", err)
		}
		observability.CacheRequestTotal.WithLabelValues("file", "miss").Inc()
		return Entry{}, false
	}

	entry := Entry{Bytes: body, Metadata: meta}
	if entry.Expired(time.Now()) {
		f.Delete(ctx, key)
		observability.CacheRequestTotal.WithLabelValues("file", "miss").Inc()
		return Entry{}, false
	}
	observability.CacheRequestTotal.WithLabelValues("file", "hit").Inc()
	return entry, true
}

func (f *FileCache) Put(ctx context.Context, key Key, entry Entry) {
	k := key.String()
	metaBuf, err := json.Marshal(entry.Metadata)
	if err != nil {
		f.logger.Warn("file cache put skipped, metadata marshal failed", "key", k, "err", err)
		return
	}
	err = f.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(metaPrefix+k), metaBuf); err != nil {
			return err
		}
		return txn.Set([]byte(dataPrefix+k), entry.Bytes)
	})
	if err != nil {
		f.logger.Warn("file cache put failed, degrading to miss", "key", k, "err", err)
	}
}

func (f *FileCache) Delete(ctx context.Context, key Key) {
	k := key.String()
	err := f.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(metaPrefix + k)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Delete([]byte(dataPrefix + k)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return nil
	})
	if err != nil {
		f.logger.Warn("file cache delete failed", "key", k, "err", err)
	}
}

// Sweep removes every entry whose metadata has expired, returning the count
// removed. It is safe to call periodically from a background timer.
func (f *FileCache) Sweep(ctx context.Context) int {
	var expiredKeys []string
	now := time.Now()

	err := f.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(metaPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			item := it.Item()
			var meta Metadata
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				continue
			}
			entry := Entry{Metadata: meta}
			if entry.Expired(now) {
				key := string(item.Key()[len(metaPrefix):])
				expiredKeys = append(expiredKeys, key)
			}
		}
		return nil
	})
	if err != nil {
		f.logger.Warn("file cache sweep scan failed", "err", err)
		return 0
	}

	for _, k := range expiredKeys {
		f.deleteRawKey(k)
	}
	if len(expiredKeys) > 0 {
		observability.CacheSweepRemovedTotal.WithLabelValues("file").Add(float64(len(expiredKeys)))
	}
	return len(expiredKeys)
}

func (f *FileCache) deleteRawKey(k string) {
	err := f.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(metaPrefix + k)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Delete([]byte(dataPrefix + k)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return nil
	})
	if err != nil {
		f.logger.Warn("file cache sweep delete failed", "key", k, "err", err)
	}
}

func (f *FileCache) Close() error { return f.db.Close() }
