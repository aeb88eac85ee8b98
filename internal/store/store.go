// Package store provides the partitioned response cache backing the
// offline gateway, with per-partition entry-count and age eviction.
package store

import (
	"errors"
	"net/http"
	"time"
)

// Entry represents a cached HTTP response snapshot
type Entry struct {
	Status   int         `json:"status"`
	Header   http.Header `json:"header,omitempty"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"stored_at"`
}

// Partition is a named grouping of entries with its own eviction policy.
// MaxAge of zero means entries never expire by age.
type Partition struct {
	Name       string
	MaxEntries int
	MaxAge     time.Duration
}

// ErrNotFound is returned when no live entry exists for a key.
var ErrNotFound = errors.New("store: entry not found")

// ErrUnknownPartition is returned for a partition name the store was not
// configured with.
var ErrUnknownPartition = errors.New("store: unknown partition")

// Reader defines the read side of the cache
type Reader interface {
	// Get retrieves the entry for key within partition.
	// Entries older than the partition's max age are treated as absent.
	Get(partition, key string) (*Entry, error)
}

// Writer defines the write side of the cache
type Writer interface {
	// Put stores an entry, overwriting any prior entry for the key, then
	// enforces the partition's eviction limits.
	Put(partition, key string, e *Entry) error

	// Evict drops expired entries and any excess beyond the partition's
	// max entry count, oldest first.
	Evict(partition string) error
}

// Store is the main cache interface
type Store interface {
	Reader
	Writer

	// Keys lists the keys currently held in a partition.
	Keys(partition string) ([]string, error)

	// Partitions returns the partitions the store was configured with.
	Partitions() []Partition

	Close() error
}

func partitionMap(parts []Partition) map[string]Partition {
	m := make(map[string]Partition, len(parts))
	for _, p := range parts {
		m[p.Name] = p
	}
	return m
}

func expired(e *Entry, maxAge time.Duration, now time.Time) bool {
	return maxAge > 0 && now.Sub(e.StoredAt) > maxAge
}
