package chi

import (
	"context"
	"strings"
	"sync"

	"github.com/kailas-cloud/solango/internal/domain/query"
	"github.com/kailas-cloud/solango/internal/domain/result"
)

// fakeBackend serves every backend-facing contract of the usecases.
type fakeBackend struct {
	mu        sync.Mutex
	available bool
	body      string
	selectErr error
	postErr   error
	adds      int
	optimizes int
	posts     []string
	selected  []string
}

func (f *fakeBackend) Available(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available
}

func (f *fakeBackend) Add(_ context.Context, docs []string, _ bool) result.Updates {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds += len(docs)
	return result.Updates{{Method: result.MethodAdd, Payload: "<add>" + strings.Join(docs, "") + "</add>"}}
}

func (f *fakeBackend) Delete(_ context.Context, ids []string, _ bool) result.Updates {
	return result.Updates{{Method: result.MethodDelete, Payload: "<delete>" + strings.Join(ids, "") + "</delete>"}}
}

func (f *fakeBackend) Optimize(context.Context) *result.Update {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.optimizes++
	return &result.Update{Method: result.MethodOptimize, Payload: "<optimize/>"}
}

func (f *fakeBackend) Post(_ context.Context, method, payload string) *result.Update {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, payload)
	if f.postErr != nil {
		return result.Failed(method, "http://solr/update", payload, f.postErr)
	}
	return &result.Update{Method: method, Payload: payload}
}

func (f *fakeBackend) Select(_ context.Context, q *query.Query) (string, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = append(f.selected, q.URL())
	if f.selectErr != nil {
		return "", nil, f.selectErr
	}
	return "http://solr/select?" + q.URL(), []byte(f.body), nil
}

type mockLocker struct {
	held bool
}

func (m *mockLocker) TryLock() (bool, error) { return !m.held, nil }
func (m *mockLocker) Unlock() error          { return nil }
