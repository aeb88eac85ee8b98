package queue

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func openQueues(t *testing.T) map[string]Queue {
	t.Helper()
	ldb, err := OpenLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("open leveldb queue: %v", err)
	}
	t.Cleanup(func() { _ = ldb.Close() })
	return map[string]Queue{
		"leveldb": ldb,
		"memory":  NewMemory(),
	}
}

func TestFIFOOrder(t *testing.T) {
	for name, q := range openQueues(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				req := &Request{URL: "/backend/advice", Body: []byte(fmt.Sprintf(`{"question":"q%d"}`, i))}
				if err := q.Enqueue(req); err != nil {
					t.Fatalf("enqueue %d: %v", i, err)
				}
			}

			reqs, err := q.DequeueAll()
			if err != nil {
				t.Fatalf("dequeue: %v", err)
			}
			if len(reqs) != 5 {
				t.Fatalf("expected 5 requests, got %d", len(reqs))
			}
			for i, r := range reqs {
				want := fmt.Sprintf(`{"question":"q%d"}`, i)
				if string(r.Body) != want {
					t.Errorf("position %d: got %s, want %s", i, r.Body, want)
				}
			}
		})
	}
}

func TestRemove(t *testing.T) {
	for name, q := range openQueues(t) {
		t.Run(name, func(t *testing.T) {
			req := &Request{URL: "/backend/advice", Body: []byte(`{}`)}
			if err := q.Enqueue(req); err != nil {
				t.Fatalf("enqueue: %v", err)
			}
			if err := q.Remove(req.ID); err != nil {
				t.Fatalf("remove: %v", err)
			}
			reqs, err := q.DequeueAll()
			if err != nil {
				t.Fatalf("dequeue: %v", err)
			}
			if len(reqs) != 0 {
				t.Errorf("expected empty queue, got %d entries", len(reqs))
			}
			if err := q.Remove(req.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound on double remove, got %v", err)
			}
		})
	}
}

func TestDequeueDoesNotRemove(t *testing.T) {
	for name, q := range openQueues(t) {
		t.Run(name, func(t *testing.T) {
			if err := q.Enqueue(&Request{URL: "/backend/advice"}); err != nil {
				t.Fatalf("enqueue: %v", err)
			}
			if _, err := q.DequeueAll(); err != nil {
				t.Fatalf("first dequeue: %v", err)
			}
			reqs, err := q.DequeueAll()
			if err != nil {
				t.Fatalf("second dequeue: %v", err)
			}
			if len(reqs) != 1 {
				t.Errorf("entries must stay queued until removed, got %d", len(reqs))
			}
		})
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	fresh := &Request{EnqueuedAt: now.Add(-23 * time.Hour)}
	stale := &Request{EnqueuedAt: now.Add(-25 * time.Hour)}
	if fresh.Expired(DefaultRetention, now) {
		t.Error("23h-old request should still be replayable")
	}
	if !stale.Expired(DefaultRetention, now) {
		t.Error("25h-old request should be expired")
	}
}

// Queued writes must survive a restart before connectivity returns.
func TestLevelDBPersistence(t *testing.T) {
	dir := t.TempDir()

	q1, err := OpenLevelDB(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	first := &Request{URL: "/backend/advice", Body: []byte(`{"question":"When to sow wheat?"}`)}
	if err := q1.Enqueue(first); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	q2, err := OpenLevelDB(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = q2.Close() }()

	// new entries keep ordering after the old ones
	if err := q2.Enqueue(&Request{URL: "/backend/advice", Body: []byte(`{"question":"second"}`)}); err != nil {
		t.Fatalf("enqueue after reopen: %v", err)
	}

	reqs, err := q2.DequeueAll()
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(reqs))
	}
	if string(reqs[0].Body) != `{"question":"When to sow wheat?"}` {
		t.Errorf("pre-restart entry should come first, got %s", reqs[0].Body)
	}
	if err := q2.Remove(reqs[0].ID); err != nil {
		t.Errorf("remove pre-restart entry: %v", err)
	}
}
