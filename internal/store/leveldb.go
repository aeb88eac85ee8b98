package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB implements Store on a goleveldb database so cached responses
// survive process restarts. Entries live under "e:<partition>:<key>".
type LevelDB struct {
	db    *leveldb.DB
	parts map[string]Partition

	// guards eviction passes; individual reads/writes are already
	// serialized by leveldb itself
	mu sync.Mutex

	now func() time.Time
}

// OpenLevelDB opens (creating if needed) a cache database at path.
func OpenLevelDB(path string, parts []Partition) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	return &LevelDB{db: db, parts: partitionMap(parts), now: time.Now}, nil
}

func (s *LevelDB) Close() error {
	return s.db.Close()
}

func (s *LevelDB) Partitions() []Partition {
	out := make([]Partition, 0, len(s.parts))
	for _, p := range s.parts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *LevelDB) Get(partition, key string) (*Entry, error) {
	p, ok := s.parts[partition]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPartition, partition)
	}
	b, err := s.db.Get(entryKey(partition, key), nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cache entry: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	if expired(&e, p.MaxAge, s.now()) {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (s *LevelDB) Put(partition, key string, e *Entry) error {
	if _, ok := s.parts[partition]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPartition, partition)
	}
	if e.StoredAt.IsZero() {
		e.StoredAt = s.now()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := s.db.Put(entryKey(partition, key), b, nil); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return s.Evict(partition)
}

func (s *LevelDB) Evict(partition string) error {
	p, ok := s.parts[partition]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPartition, partition)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	type aged struct {
		key      string
		storedAt time.Time
	}
	var live []aged

	now := s.now()
	batch := new(leveldb.Batch)

	it := s.db.NewIterator(util.BytesPrefix(partitionPrefix(partition)), nil)
	for it.Next() {
		var e Entry
		if err := json.Unmarshal(it.Value(), &e); err != nil {
			// unreadable entry, drop it
			batch.Delete(append([]byte{}, it.Key()...))
			continue
		}
		if expired(&e, p.MaxAge, now) {
			batch.Delete(append([]byte{}, it.Key()...))
			continue
		}
		live = append(live, aged{key: string(it.Key()), storedAt: e.StoredAt})
	}
	it.Release()
	if err := it.Error(); err != nil {
		return fmt.Errorf("scan partition %s: %w", partition, err)
	}

	if p.MaxEntries > 0 && len(live) > p.MaxEntries {
		sort.Slice(live, func(i, j int) bool {
			return live[i].storedAt.Before(live[j].storedAt)
		})
		for _, a := range live[:len(live)-p.MaxEntries] {
			batch.Delete([]byte(a.key))
		}
	}

	if batch.Len() == 0 {
		return nil
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("evict partition %s: %w", partition, err)
	}
	return nil
}

func (s *LevelDB) Keys(partition string) ([]string, error) {
	if _, ok := s.parts[partition]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPartition, partition)
	}
	prefix := partitionPrefix(partition)
	var keys []string
	it := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	for it.Next() {
		keys = append(keys, strings.TrimPrefix(string(it.Key()), string(prefix)))
	}
	it.Release()
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("scan partition %s: %w", partition, err)
	}
	return keys, nil
}

func entryKey(partition, key string) []byte {
	return []byte("e:" + partition + ":" + key)
}

func partitionPrefix(partition string) []byte {
	return []byte("e:" + partition + ":")
}
