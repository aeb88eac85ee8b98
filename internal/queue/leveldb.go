package queue

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB implements Queue on a goleveldb database. Entries live under
// "q:<seq>" with a zero-padded sequence number, so lexicographic key
// order is enqueue order.
type LevelDB struct {
	db *leveldb.DB

	mu   sync.Mutex
	seq  uint64
	keys map[string]string // request ID -> db key
}

// OpenLevelDB opens (creating if needed) a queue database at path and
// rebuilds the ID index from whatever survived the last run.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}
	q := &LevelDB{db: db, keys: map[string]string{}}
	if err := q.loadIndex(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return q, nil
}

func (q *LevelDB) loadIndex() error {
	it := q.db.NewIterator(util.BytesPrefix([]byte("q:")), nil)
	defer it.Release()
	for it.Next() {
		key := string(it.Key())
		var req Request
		if err := json.Unmarshal(it.Value(), &req); err != nil {
			continue
		}
		q.keys[req.ID] = key
		if n, err := strconv.ParseUint(strings.TrimPrefix(key, "q:"), 10, 64); err == nil && n >= q.seq {
			q.seq = n + 1
		}
	}
	return it.Error()
}

func (q *LevelDB) Close() error {
	return q.db.Close()
}

func (q *LevelDB) Enqueue(req *Request) error {
	stamp(req)
	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode queued request: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	key := fmt.Sprintf("q:%020d", q.seq)
	if err := q.db.Put([]byte(key), b, nil); err != nil {
		return fmt.Errorf("enqueue request: %w", err)
	}
	q.seq++
	q.keys[req.ID] = key
	return nil
}

func (q *LevelDB) DequeueAll() ([]*Request, error) {
	var out []*Request
	it := q.db.NewIterator(util.BytesPrefix([]byte("q:")), nil)
	defer it.Release()
	for it.Next() {
		var req Request
		if err := json.Unmarshal(it.Value(), &req); err != nil {
			continue
		}
		out = append(out, &req)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("scan queue: %w", err)
	}
	return out, nil
}

func (q *LevelDB) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	key, ok := q.keys[id]
	if !ok {
		return ErrNotFound
	}
	if err := q.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("remove queued request: %w", err)
	}
	delete(q.keys, id)
	return nil
}
