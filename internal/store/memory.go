package store

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory implements Store on a plain map. It backs tests and is handy
// for running the gateway without a data directory.
type Memory struct {
	mu      sync.Mutex
	parts   map[string]Partition
	entries map[string]map[string]*Entry

	now func() time.Time
}

func NewMemory(parts []Partition) *Memory {
	m := &Memory{
		parts:   partitionMap(parts),
		entries: make(map[string]map[string]*Entry, len(parts)),
		now:     time.Now,
	}
	for _, p := range parts {
		m.entries[p.Name] = make(map[string]*Entry)
	}
	return m
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Partitions() []Partition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Partition, 0, len(m.parts))
	for _, p := range m.parts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Memory) Get(partition, key string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parts[partition]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPartition, partition)
	}
	e, ok := m.entries[partition][key]
	if !ok || expired(e, p.MaxAge, m.now()) {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *Memory) Put(partition, key string, e *Entry) error {
	m.mu.Lock()
	if _, ok := m.parts[partition]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownPartition, partition)
	}
	if e.StoredAt.IsZero() {
		e.StoredAt = m.now()
	}
	cp := *e
	m.entries[partition][key] = &cp
	m.mu.Unlock()
	return m.Evict(partition)
}

func (m *Memory) Evict(partition string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parts[partition]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPartition, partition)
	}

	now := m.now()
	ents := m.entries[partition]
	for k, e := range ents {
		if expired(e, p.MaxAge, now) {
			delete(ents, k)
		}
	}

	if p.MaxEntries > 0 && len(ents) > p.MaxEntries {
		type aged struct {
			key      string
			storedAt time.Time
		}
		live := make([]aged, 0, len(ents))
		for k, e := range ents {
			live = append(live, aged{key: k, storedAt: e.StoredAt})
		}
		sort.Slice(live, func(i, j int) bool {
			return live[i].storedAt.Before(live[j].storedAt)
		})
		for _, a := range live[:len(live)-p.MaxEntries] {
			delete(ents, a.key)
		}
	}
	return nil
}

func (m *Memory) Keys(partition string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.parts[partition]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPartition, partition)
	}
	keys := make([]string, 0, len(m.entries[partition]))
	for k := range m.entries[partition] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
