package queue

import "sync"

// Memory implements Queue on a slice, for tests.
type Memory struct {
	mu   sync.Mutex
	reqs []*Request
}

func NewMemory() *Memory { return &Memory{} }

func (q *Memory) Close() error { return nil }

func (q *Memory) Enqueue(req *Request) error {
	stamp(req)
	cp := *req
	q.mu.Lock()
	q.reqs = append(q.reqs, &cp)
	q.mu.Unlock()
	return nil
}

func (q *Memory) DequeueAll() ([]*Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Request, len(q.reqs))
	for i, r := range q.reqs {
		cp := *r
		out[i] = &cp
	}
	return out, nil
}

func (q *Memory) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, r := range q.reqs {
		if r.ID == id {
			q.reqs = append(q.reqs[:i], q.reqs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
