package replay

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kailas-cloud/solango/internal/domain"
	domdef "github.com/kailas-cloud/solango/internal/domain/deferred"
	"github.com/kailas-cloud/solango/internal/domain/result"
	"github.com/kailas-cloud/solango/internal/lease"
	deferredrepo "github.com/kailas-cloud/solango/internal/repository/deferred"
)

// --- Mocks ---

type post struct{ method, payload string }

type mockPoster struct {
	posts []post
	fail  map[string]error // by payload
}

func (m *mockPoster) Post(_ context.Context, method, payload string) *result.Update {
	m.posts = append(m.posts, post{method, payload})
	if err, ok := m.fail[payload]; ok {
		return result.Failed(method, "http://solr/update", payload, err)
	}
	return &result.Update{Method: method, Payload: payload}
}

type mockLocker struct {
	held     bool
	err      error
	unlocked int
}

func (m *mockLocker) TryLock() (bool, error) { return !m.held, m.err }
func (m *mockLocker) Unlock() error          { m.unlocked++; return nil }

func seed(t *testing.T, recs ...[3]string) *deferredrepo.Memory {
	t.Helper()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := deferredrepo.NewMemory().WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})
	for _, r := range recs {
		if _, err := q.Enqueue(context.Background(), domdef.Method(r[0]), r[1], r[2], "initial"); err != nil {
			t.Fatal(err)
		}
	}
	return q
}

// --- Tests ---

func TestDrain_ReplaysOldestFirstAndRemoves(t *testing.T) {
	q := seed(t,
		[3]string{"add", "<add>1</add>", ""},
		[3]string{"delete", "<delete>2</delete>", ""},
		[3]string{"commit", "<commit/>", ""},
	)
	p := &mockPoster{}
	rep, err := New(q, p, nil).Drain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Replayed != 3 || rep.Failed != 0 {
		t.Errorf("report = %+v", rep)
	}
	want := []post{{"add", "<add>1</add>"}, {"delete", "<delete>2</delete>"}, {"commit", "<commit/>"}}
	for i := range want {
		if p.posts[i] != want[i] {
			t.Errorf("post[%d] = %+v, want %+v", i, p.posts[i], want[i])
		}
	}
	if left, _ := q.List(context.Background()); len(left) != 0 {
		t.Errorf("pending = %+v", left)
	}
}

func TestDrain_FailureKeepsRecordWithNewError(t *testing.T) {
	q := seed(t,
		[3]string{"add", "<add>bad</add>", ""},
		[3]string{"add", "<add>good</add>", ""},
	)
	p := &mockPoster{fail: map[string]error{"<add>bad</add>": domain.ErrUnavailable}}
	rep, err := New(q, p, nil).Drain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Replayed != 1 || rep.Failed != 1 {
		t.Errorf("report = %+v", rep)
	}
	left, _ := q.List(context.Background())
	if len(left) != 1 || left[0].Payload != "<add>bad</add>" {
		t.Fatalf("pending = %+v", left)
	}
	if left[0].Error != domain.ErrUnavailable.Error() {
		t.Errorf("error = %q", left[0].Error)
	}
}

func TestDrain_SupersededByDocKey(t *testing.T) {
	q := seed(t,
		[3]string{"add", "<add>v1</add>", "blog__post__1"},
		[3]string{"add", "<add>other</add>", "blog__post__2"},
		[3]string{"delete", "<delete>v2</delete>", "blog__post__1"},
	)
	p := &mockPoster{}
	rep, err := New(q, p, nil).Drain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Superseded != 1 || rep.Replayed != 2 {
		t.Errorf("report = %+v", rep)
	}
	for _, ps := range p.posts {
		if ps.payload == "<add>v1</add>" {
			t.Error("superseded record was replayed")
		}
	}
}

func TestDrain_Locker(t *testing.T) {
	q := seed(t, [3]string{"commit", "<commit/>", ""})

	held := &mockLocker{held: true}
	if _, err := New(q, &mockPoster{}, nil).WithLocker(held).Drain(context.Background()); !errors.Is(err, domain.ErrDrainInProgress) {
		t.Errorf("Drain() = %v, want ErrDrainInProgress", err)
	}

	boom := errors.New("io")
	if _, err := New(q, &mockPoster{}, nil).WithLocker(&mockLocker{err: boom}).Drain(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Drain() = %v, want lock error", err)
	}

	free := &mockLocker{}
	if _, err := New(q, &mockPoster{}, nil).WithLocker(free).Drain(context.Background()); err != nil {
		t.Fatal(err)
	}
	if free.unlocked != 1 {
		t.Errorf("unlocked = %d", free.unlocked)
	}
}

func TestDrain_CanceledContext(t *testing.T) {
	q := seed(t, [3]string{"commit", "<commit/>", ""})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &mockPoster{}
	if _, err := New(q, p, nil).Drain(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Drain() = %v", err)
	}
	if len(p.posts) != 0 {
		t.Error("posted after cancel")
	}
}

func TestDrain_FileLease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drain.lock")
	other := lease.NewFileLock(path)
	if ok, err := other.TryLock(); !ok || err != nil {
		t.Fatalf("TryLock() = %v, %v", ok, err)
	}

	q := seed(t, [3]string{"commit", "<commit/>", ""})
	svc := New(q, &mockPoster{}, nil).WithLocker(lease.NewFileLock(path))
	if _, err := svc.Drain(context.Background()); !errors.Is(err, domain.ErrDrainInProgress) {
		t.Errorf("Drain() = %v, want ErrDrainInProgress", err)
	}

	_ = other.Unlock()
	rep, err := svc.Drain(context.Background())
	if err != nil || rep.Replayed != 1 {
		t.Errorf("Drain() = %+v, %v", rep, err)
	}
}
