package deferred

import (
	"context"
	"path"
	"sync"
)

// mockStore is an in-memory hashStore for tests.
type mockStore struct {
	mu     sync.Mutex
	hashes map[string]map[string]string

	scanErr error
	hsetErr error
}

func newMockStore() *mockStore {
	return &mockStore{hashes: make(map[string]map[string]string)}
}

func (m *mockStore) HSet(_ context.Context, key string, fields map[string]string) error {
	if m.hsetErr != nil {
		return m.hsetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (m *mockStore) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i] = map[string]string{}
		for f, v := range m.hashes[k] {
			out[i][f] = v
		}
	}
	return out, nil
}

func (m *mockStore) HSetIfExists(_ context.Context, key, field, value string) (bool, error) {
	if m.hsetErr != nil {
		return false, m.hsetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		return false, nil
	}
	h[field] = value
	return true, nil
}

func (m *mockStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.hashes, k)
	}
	m.mu.Unlock()
	return nil
}

func (m *mockStore) ScanHashes(_ context.Context, pattern string) ([]string, error) {
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.hashes {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
