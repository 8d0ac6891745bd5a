package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memoryStore keeps everything in process memory. Used by tests and the
// "memory" driver; mutation semantics mirror the sqlite backend.
type memoryStore struct {
	mu         sync.RWMutex
	subs       map[int64]Subscriber
	dispatches []DispatchRecord
}

func NewMemory() Store {
	return &memoryStore{subs: map[int64]Subscriber{}}
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) UpsertSubscriber(_ context.Context, s Subscriber) error {
	if s.LastActiveAt.IsZero() {
		s.LastActiveAt = time.Now()
	}
	m.mu.Lock()
	m.subs[s.ID] = s
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) RemoveSubscriber(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subs[id]
	delete(m.subs, id)
	return ok, nil
}

func (m *memoryStore) GetSubscriber(_ context.Context, id int64) (Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subs[id]
	if !ok {
		return Subscriber{}, ErrNotFound
	}
	return s, nil
}

func (m *memoryStore) ListSubscribers(_ context.Context) ([]Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Subscriber, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) RecentSubscribers(ctx context.Context, limit int) ([]Subscriber, error) {
	if limit <= 0 {
		limit = 5
	}
	out, err := m.ListSubscribers(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActiveAt.After(out[j].LastActiveAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) CountSubscribers(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs), nil
}

func (m *memoryStore) LogDispatch(_ context.Context, r DispatchRecord) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	m.mu.Lock()
	m.dispatches = append(m.dispatches, r)
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) RecentDispatches(_ context.Context, limit int) ([]DispatchRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]DispatchRecord, 0, limit)
	for i := len(m.dispatches) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.dispatches[i])
	}
	return out, nil
}
