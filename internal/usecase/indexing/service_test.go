package indexing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/kailas-cloud/solango/internal/domain"
	domdef "github.com/kailas-cloud/solango/internal/domain/deferred"
	"github.com/kailas-cloud/solango/internal/domain/document"
	"github.com/kailas-cloud/solango/internal/domain/field"
	"github.com/kailas-cloud/solango/internal/domain/registry"
	"github.com/kailas-cloud/solango/internal/domain/result"
)

// --- Mocks ---

type call struct {
	method string
	frags  []string
	commit bool
}

type mockBackend struct {
	mu        sync.Mutex
	calls     []call
	optimizes int
	failWith  error // applied to add/delete requests
	failOpt   error
}

func (m *mockBackend) update(method string, frags []string, commit bool) result.Updates {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{method: method, frags: frags, commit: commit})
	payload := "<" + method + ">" + strings.Join(frags, "") + "</" + method + ">"
	var u *result.Update
	if m.failWith != nil {
		u = result.Failed(method, "http://solr/update", payload, m.failWith)
	} else {
		u = &result.Update{Method: method, Payload: payload}
	}
	us := result.Updates{u}
	if commit {
		us = append(us, &result.Update{Method: result.MethodCommit, Payload: "<commit/>"})
	}
	return us
}

func (m *mockBackend) Add(_ context.Context, docs []string, commit bool) result.Updates {
	return m.update(result.MethodAdd, docs, commit)
}

func (m *mockBackend) Delete(_ context.Context, ids []string, commit bool) result.Updates {
	return m.update(result.MethodDelete, ids, commit)
}

func (m *mockBackend) Optimize(_ context.Context) *result.Update {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.optimizes++
	if m.failOpt != nil {
		return result.Failed(result.MethodOptimize, "http://solr/update", "<optimize/>", m.failOpt)
	}
	return &result.Update{Method: result.MethodOptimize, Payload: "<optimize/>"}
}

func (m *mockBackend) byMethod(method string) []call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []call
	for _, c := range m.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

type mockQueue struct {
	mu      sync.Mutex
	records []domdef.Record
	err     error
}

func (m *mockQueue) Enqueue(
	_ context.Context, method domdef.Method, payload, docKey, errMsg string,
) (domdef.Record, error) {
	if m.err != nil {
		return domdef.Record{}, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := domdef.Record{ID: fmt.Sprint(len(m.records)), Method: method, Payload: payload, DocKey: docKey, Error: errMsg}
	m.records = append(m.records, rec)
	return rec, nil
}

type mockRecords struct {
	records map[string][]domain.Record
	err     error
	getErr  error
}

func (m *mockRecords) All(_ context.Context, typeKey string) ([]domain.Record, error) {
	return m.records[typeKey], m.err
}

func (m *mockRecords) Get(_ context.Context, typeKey, id string) (domain.Record, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, r := range m.records[typeKey] {
		if r.RecordID() == id {
			return r, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

type mockKeys struct {
	mu      sync.Mutex
	pending []domdef.Pending
	acked   []string
	pushErr error
	// onPending runs after the snapshot is taken, to simulate concurrent pushes.
	onPending func()
}

func (m *mockKeys) Push(_ context.Context, typeKey, recordID string) (domdef.Pending, error) {
	if m.pushErr != nil {
		return domdef.Pending{}, m.pushErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := domdef.Pending{ID: fmt.Sprint(len(m.pending) + len(m.acked)), TypeKey: typeKey, RecordID: recordID}
	m.pending = append(m.pending, p)
	return p, nil
}

func (m *mockKeys) Pending(_ context.Context) ([]domdef.Pending, error) {
	m.mu.Lock()
	out := slices.Clone(m.pending)
	m.mu.Unlock()
	if m.onPending != nil {
		m.onPending()
	}
	return out, nil
}

func (m *mockKeys) Ack(_ context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, ids...)
	m.pending = slices.DeleteFunc(m.pending, func(p domdef.Pending) bool { return slices.Contains(ids, p.ID) })
	return nil
}

// --- Helpers ---

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	s := document.Standard().
		Field(field.New("title", field.String)).
		Indexable(func(rec domain.Record) bool {
			v, _ := rec.Attr("draft")
			return v != true
		}).
		MustBuild()
	if err := reg.Register("blog__post", s); err != nil {
		t.Fatal(err)
	}
	return reg
}

func post(id string, draft bool) *domain.MapRecord {
	return domain.NewMapRecord("blog__post", id, map[string]any{"title": "Post " + id, "draft": draft})
}

func posts(n int) []domain.Record {
	out := make([]domain.Record, n)
	for i := range out {
		out[i] = post(fmt.Sprint(i+1), false)
	}
	return out
}

// --- Tests ---

func TestOnChange_Add(t *testing.T) {
	be, q := &mockBackend{}, &mockQueue{}
	svc := New(be, q, newRegistry(t), nil)

	rep, err := svc.OnChange(context.Background(), post("1", false), false)
	if err != nil {
		t.Fatalf("OnChange() error: %v", err)
	}
	adds := be.byMethod(result.MethodAdd)
	if len(adds) != 1 || len(adds[0].frags) != 1 || !adds[0].commit {
		t.Fatalf("add calls = %+v", adds)
	}
	if !strings.Contains(adds[0].frags[0], `<field name="id">blog__post__1</field>`) {
		t.Errorf("fragment = %s", adds[0].frags[0])
	}
	if rep.Added != 1 || len(q.records) != 0 {
		t.Errorf("report = %+v, deferred = %d", rep, len(q.records))
	}
}

func TestOnChange_NotIndexableDeletes(t *testing.T) {
	tests := []struct {
		name    string
		rec     *domain.MapRecord
		deleted bool
	}{
		{"not indexable", post("2", true), false},
		{"deleted", post("2", false), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be := &mockBackend{}
			svc := New(be, &mockQueue{}, newRegistry(t), nil)
			if _, err := svc.OnChange(context.Background(), tt.rec, tt.deleted); err != nil {
				t.Fatal(err)
			}
			if len(be.byMethod(result.MethodAdd)) != 0 {
				t.Error("add issued for removed record")
			}
			dels := be.byMethod(result.MethodDelete)
			if len(dels) != 1 || dels[0].frags[0] != "<id>blog__post__2</id>" {
				t.Errorf("delete calls = %+v", dels)
			}
		})
	}
}

func TestOnChange_FailedAddIsDeferredOnce(t *testing.T) {
	be := &mockBackend{failWith: domain.NewTransportError("POST", "http://solr/update", "", 500, errors.New("boom"))}
	q := &mockQueue{}
	svc := New(be, q, newRegistry(t), nil)

	rep, err := svc.OnChange(context.Background(), post("1", false), false)
	if err != nil {
		t.Fatalf("OnChange() error: %v", err)
	}
	if len(q.records) != 1 {
		t.Fatalf("deferred = %+v, want exactly one", q.records)
	}
	rec := q.records[0]
	wantPayload := "<add>" + be.calls[0].frags[0] + "</add>"
	if rec.Method != domdef.Add || rec.Payload != wantPayload {
		t.Errorf("deferred record = %+v", rec)
	}
	if rec.DocKey != "blog__post__1" || rec.Error == "" {
		t.Errorf("deferred record = %+v", rec)
	}
	if rep.Deferred != 1 || rep.Added != 0 {
		t.Errorf("report = %+v", rep)
	}
}

func TestOnChange_Unregistered(t *testing.T) {
	svc := New(&mockBackend{}, &mockQueue{}, newRegistry(t), nil)
	_, err := svc.OnChange(context.Background(), domain.NewMapRecord("shop__item", "1", nil), false)
	if !errors.Is(err, domain.ErrNotRegistered) {
		t.Errorf("OnChange() = %v, want ErrNotRegistered", err)
	}
}

func TestIndexRecords_Batches(t *testing.T) {
	be, q := &mockBackend{}, &mockQueue{}
	svc := New(be, q, newRegistry(t), nil).WithBatchSize(10)

	recs := posts(25)
	recs = append(recs, post("draft", true), domain.NewMapRecord("unknown", "1", nil))
	rep, err := svc.IndexRecords(context.Background(), recs)
	if err != nil {
		t.Fatal(err)
	}

	adds := be.byMethod(result.MethodAdd)
	if len(adds) != 3 || len(adds[0].frags) != 10 || len(adds[2].frags) != 5 {
		t.Errorf("add batches = %d", len(adds))
	}
	for _, c := range adds {
		if c.commit {
			t.Error("batch writes must not commit individually")
		}
	}
	if dels := be.byMethod(result.MethodDelete); len(dels) != 1 {
		t.Errorf("delete batches = %d", len(dels))
	}
	if be.optimizes != 1 {
		t.Errorf("optimizes = %d, want 1", be.optimizes)
	}
	if rep.Added != 25 || rep.Deleted != 1 || rep.Skipped != 1 {
		t.Errorf("report = %+v", rep)
	}
}

func TestIndexRecords_DefersBatchWithoutDocKey(t *testing.T) {
	be := &mockBackend{failWith: domain.ErrUnavailable, failOpt: domain.ErrUnavailable}
	q := &mockQueue{}
	svc := New(be, q, newRegistry(t), nil).WithBatchSize(2)

	rep, err := svc.IndexRecords(context.Background(), posts(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(q.records) != 3 {
		t.Fatalf("deferred = %d, want 2 adds + optimize", len(q.records))
	}
	if q.records[0].DocKey != "" {
		t.Errorf("multi-document batch has doc key %q", q.records[0].DocKey)
	}
	if q.records[1].DocKey != "blog__post__3" {
		t.Errorf("single-document batch doc key = %q", q.records[1].DocKey)
	}
	if q.records[2].Method != domdef.Optimize {
		t.Errorf("last deferred = %+v", q.records[2])
	}
	if rep.Deferred != 3 {
		t.Errorf("report = %+v", rep)
	}
}

func TestIndexKeys(t *testing.T) {
	be := &mockBackend{}
	store := &mockRecords{records: map[string][]domain.Record{"blog__post": {post("1", false)}}}
	svc := New(be, &mockQueue{}, newRegistry(t), nil).WithRecords(store)

	rep, err := svc.IndexKeys(context.Background(), []Key{
		{TypeKey: "blog__post", ID: "1"},
		{TypeKey: "blog__post", ID: "1"},
		{TypeKey: "blog__post", ID: "99"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Added != 1 || rep.Deleted != 1 {
		t.Errorf("report = %+v", rep)
	}
	dels := be.byMethod(result.MethodDelete)
	if len(dels) != 1 || dels[0].frags[0] != "<id>blog__post__99</id>" {
		t.Errorf("delete calls = %+v", dels)
	}
}

func TestIndexKeys_NoStore(t *testing.T) {
	svc := New(&mockBackend{}, &mockQueue{}, newRegistry(t), nil)
	if _, err := svc.IndexKeys(context.Background(), nil); err == nil {
		t.Error("expected error without record store")
	}
}

func TestReindex_AbortsWhenUnavailable(t *testing.T) {
	be := &mockBackend{failWith: domain.ErrUnavailable}
	q := &mockQueue{}
	store := &mockRecords{records: map[string][]domain.Record{"blog__post": posts(30)}}
	svc := New(be, q, newRegistry(t), nil).WithRecords(store).WithBatchSize(10)

	_, err := svc.Reindex(context.Background(), "blog__post")
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("Reindex() = %v, want ErrUnavailable", err)
	}
	if adds := be.byMethod(result.MethodAdd); len(adds) != 1 {
		t.Errorf("add batches = %d, want 1", len(adds))
	}
	if len(q.records) != 1 || q.records[0].Method != domdef.Add {
		t.Errorf("deferred = %+v", q.records)
	}
}

func TestReindex_AbortDefersPendingDeletes(t *testing.T) {
	be := &mockBackend{failWith: domain.ErrUnavailable}
	q := &mockQueue{}
	recs := []domain.Record{post("1", true), post("2", true), post("3", false), post("4", false), post("5", false)}
	store := &mockRecords{records: map[string][]domain.Record{"blog__post": recs}}
	svc := New(be, q, newRegistry(t), nil).WithRecords(store).WithBatchSize(3)

	_, err := svc.Reindex(context.Background(), "blog__post")
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("Reindex() = %v, want ErrUnavailable", err)
	}

	var methods []domdef.Method
	for _, r := range q.records {
		methods = append(methods, r.Method)
	}
	if len(q.records) != 2 || q.records[0].Method != domdef.Add || q.records[1].Method != domdef.Delete {
		t.Fatalf("deferred methods = %v, want [add delete]", methods)
	}
	if !strings.Contains(q.records[1].Payload, "<id>blog__post__1</id><id>blog__post__2</id>") {
		t.Errorf("deferred delete payload = %s", q.records[1].Payload)
	}
}

func TestReindex_UnknownType(t *testing.T) {
	svc := New(&mockBackend{}, &mockQueue{}, newRegistry(t), nil).WithRecords(&mockRecords{})
	if _, err := svc.Reindex(context.Background(), "nope"); !errors.Is(err, domain.ErrNotRegistered) {
		t.Errorf("Reindex() = %v", err)
	}
}

func TestReindexParallel_SingleOptimize(t *testing.T) {
	be := &mockBackend{}
	store := &mockRecords{records: map[string][]domain.Record{"blog__post": posts(47)}}
	svc := New(be, &mockQueue{}, newRegistry(t), nil).WithRecords(store).WithBatchSize(5)

	rep, err := svc.ReindexParallel(context.Background(), "blog__post", 4)
	if err != nil {
		t.Fatal(err)
	}
	if be.optimizes != 1 {
		t.Errorf("optimizes = %d, want 1", be.optimizes)
	}
	if rep.Added != 47 {
		t.Errorf("Added = %d, want 47", rep.Added)
	}

	seen := map[string]bool{}
	for _, c := range be.byMethod(result.MethodAdd) {
		for _, f := range c.frags {
			if seen[f] {
				t.Fatal("record indexed by two workers")
			}
			seen[f] = true
		}
	}
	if len(seen) != 47 {
		t.Errorf("distinct documents = %d", len(seen))
	}
}

func TestReindexParallel_MoreWorkersThanRecords(t *testing.T) {
	be := &mockBackend{}
	store := &mockRecords{records: map[string][]domain.Record{"blog__post": posts(2)}}
	svc := New(be, &mockQueue{}, newRegistry(t), nil).WithRecords(store)

	rep, err := svc.ReindexParallel(context.Background(), "blog__post", 8)
	if err != nil || rep.Added != 2 || be.optimizes != 1 {
		t.Errorf("rep = %+v, err = %v, optimizes = %d", rep, err, be.optimizes)
	}
}

func TestReindexParallel_Empty(t *testing.T) {
	be := &mockBackend{}
	svc := New(be, &mockQueue{}, newRegistry(t), nil).WithRecords(&mockRecords{})
	if _, err := svc.ReindexParallel(context.Background(), "blog__post", 0); err != nil {
		t.Fatal(err)
	}
	if be.optimizes != 1 {
		t.Errorf("optimizes = %d, want 1", be.optimizes)
	}
}

func TestOnChange_QueuedSave(t *testing.T) {
	be, keys := &mockBackend{}, &mockKeys{}
	svc := New(be, &mockQueue{}, newRegistry(t), nil).WithKeyQueue(keys, true)

	rep, err := svc.OnChange(context.Background(), post("5", false), false)
	if err != nil {
		t.Fatalf("OnChange() error: %v", err)
	}
	if rep.Queued != 1 || len(be.calls) != 0 {
		t.Errorf("report = %+v, backend calls = %d, want queued only", rep, len(be.calls))
	}
	if len(keys.pending) != 1 || keys.pending[0].TypeKey != "blog__post" || keys.pending[0].RecordID != "5" {
		t.Errorf("pending = %+v", keys.pending)
	}
}

func TestOnChange_QueuedModeWritesDeletes(t *testing.T) {
	be, keys := &mockBackend{}, &mockKeys{}
	svc := New(be, &mockQueue{}, newRegistry(t), nil).WithKeyQueue(keys, true)

	rep, err := svc.OnChange(context.Background(), post("5", false), true)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Deleted != 1 || len(keys.pending) != 0 {
		t.Errorf("report = %+v, pending = %d", rep, len(keys.pending))
	}
}

func TestOnChange_QueuePushError(t *testing.T) {
	keys := &mockKeys{pushErr: domain.ErrQueueDisabled}
	svc := New(&mockBackend{}, &mockQueue{}, newRegistry(t), nil).WithKeyQueue(keys, true)

	if _, err := svc.OnChange(context.Background(), post("5", false), false); !errors.Is(err, domain.ErrQueueDisabled) {
		t.Errorf("OnChange() = %v, want ErrQueueDisabled", err)
	}
}

func TestIndexQueued(t *testing.T) {
	be := &mockBackend{}
	keys := &mockKeys{}
	store := &mockRecords{records: map[string][]domain.Record{"blog__post": {post("1", false), post("2", false)}}}
	svc := New(be, &mockQueue{}, newRegistry(t), nil).WithRecords(store).WithKeyQueue(keys, true)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "1", "9"} {
		if _, err := svc.OnChange(ctx, post(id, false), false); err != nil {
			t.Fatal(err)
		}
	}
	keys.onPending = func() {
		keys.onPending = nil
		_, _ = keys.Push(ctx, "blog__post", "2")
	}

	rep, err := svc.IndexQueued(ctx)
	if err != nil {
		t.Fatalf("IndexQueued() error: %v", err)
	}
	if rep.Added != 2 || rep.Deleted != 1 {
		t.Errorf("report = %+v, want 2 added (deduplicated) and 1 deleted", rep)
	}
	if dels := be.byMethod(result.MethodDelete); len(dels) != 1 || dels[0].frags[0] != "<id>blog__post__9</id>" {
		t.Errorf("delete calls = %+v", dels)
	}
	if be.optimizes != 1 {
		t.Errorf("optimizes = %d, want 1", be.optimizes)
	}
	if !slices.Equal(keys.acked, []string{"0", "1", "2", "3"}) {
		t.Errorf("acked = %v", keys.acked)
	}
	if len(keys.pending) != 1 || keys.pending[0].RecordID != "2" {
		t.Errorf("key pushed during the run = %+v, want it kept", keys.pending)
	}
}

func TestIndexQueued_FailureKeepsKeys(t *testing.T) {
	keys := &mockKeys{}
	store := &mockRecords{getErr: errors.New("store down")}
	svc := New(&mockBackend{}, &mockQueue{}, newRegistry(t), nil).WithRecords(store).WithKeyQueue(keys, true)
	ctx := context.Background()

	if _, err := svc.OnChange(ctx, post("1", false), false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.IndexQueued(ctx); err == nil {
		t.Fatal("expected error")
	}
	if len(keys.acked) != 0 || len(keys.pending) != 1 {
		t.Errorf("acked = %v, pending = %d", keys.acked, len(keys.pending))
	}
}

func TestIndexQueued_Empty(t *testing.T) {
	be := &mockBackend{}
	svc := New(be, &mockQueue{}, newRegistry(t), nil).WithRecords(&mockRecords{}).WithKeyQueue(&mockKeys{}, false)

	rep, err := svc.IndexQueued(context.Background())
	if err != nil || rep.Added != 0 || be.optimizes != 0 {
		t.Errorf("IndexQueued() = %+v, %v, optimizes = %d", rep, err, be.optimizes)
	}
	if _, err := New(be, &mockQueue{}, newRegistry(t), nil).IndexQueued(context.Background()); err == nil {
		t.Error("expected error without key queue")
	}
}

func TestQueueKeys(t *testing.T) {
	keys := &mockKeys{}
	svc := New(&mockBackend{}, &mockQueue{}, newRegistry(t), nil).WithKeyQueue(keys, false)
	ctx := context.Background()

	rep, err := svc.QueueKeys(ctx, []Key{{"blog__post", "1"}, {"blog__post", "2"}})
	if err != nil {
		t.Fatalf("QueueKeys() error: %v", err)
	}
	if rep.Queued != 2 || len(keys.pending) != 2 {
		t.Errorf("report = %+v, pending = %d", rep, len(keys.pending))
	}

	if _, err := svc.QueueKeys(ctx, []Key{{"wiki__page", "1"}}); !errors.Is(err, domain.ErrNotRegistered) {
		t.Errorf("QueueKeys(unknown type) = %v, want ErrNotRegistered", err)
	}

	// Saves are written immediately when only the key queue is set.
	be := &mockBackend{}
	svc = New(be, &mockQueue{}, newRegistry(t), nil).WithKeyQueue(keys, false)
	if rep, _ := svc.OnChange(ctx, post("3", false), false); rep.Added != 1 || rep.Queued != 0 {
		t.Errorf("OnChange() = %+v, want immediate add", rep)
	}
}
