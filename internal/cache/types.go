// Package cache implements the optional byte-cache layer: an in-memory
// provider for hot entries and a file-backed provider with sidecar
// metadata for larger or longer-lived ones. Cache operations never fail
// the caller; a provider error degrades to a cache miss.
package cache

import (
	"context"
	"time"

	"github.com/strevio/strev/internal/bytesutil"
)

// Key identifies one cached resource. Range is empty for whole-resource
// entries and otherwise an opaque byte-range string ("start-end").
type Key struct {
	ResourceType string
	URL          string
	Range        string
}

// String renders Key as a single cache-provider key.
func (k Key) String() string {
	s := k.ResourceType + "|" + k.URL
	if k.Range != "" {
		s += "|" + k.Range
	}
	return s
}

// Metadata accompanies a cached entry's bytes.
type Metadata struct {
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
	TTL          time.Duration
	InsertedAt   time.Time
}

// Entry bundles bytes and their metadata as handed back by a Provider.
type Entry struct {
	Bytes    bytesutil.ByteView
	Metadata Metadata
}

// Expired reports whether e should be treated as a miss given now.
func (e Entry) Expired(now time.Time) bool {
	if e.Metadata.TTL <= 0 {
		return false
	}
	return now.After(e.Metadata.InsertedAt.Add(e.Metadata.TTL))
}

// Provider is satisfied by both the in-memory and file-backed caches.
// Get's second return is false on miss, expiry, or any internal error;
// Put and Delete never return an error the caller must handle, since a
// cache write failure degrades to "as if nothing was cached."
type Provider interface {
	Get(ctx context.Context, key Key) (Entry, bool)
	Put(ctx context.Context, key Key, entry Entry)
	Delete(ctx context.Context, key Key)
	Close() error
}

// Sweeper is implemented by providers that can remove all expired entries
// in one explicit sweep; an expired entry that Get happens to read is
// dropped at that point as well.
type Sweeper interface {
	Sweep(ctx context.Context) (removed int)
}
