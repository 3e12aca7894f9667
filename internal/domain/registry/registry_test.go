package registry

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/kailas-cloud/solango/internal/domain"
	"github.com/kailas-cloud/solango/internal/domain/document"
)

func TestRegistry_RegisterLookup(t *testing.T) {
	r := New()
	s := document.Standard().MustBuild()

	if err := r.Register("blog__post", s); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	got, err := r.Lookup("blog__post")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if got != s {
		t.Error("Lookup() returned a different schema")
	}
}

func TestRegistry_Errors(t *testing.T) {
	r := New()
	s := document.Standard().MustBuild()
	_ = r.Register("a", s)

	if err := r.Register("a", s); !errors.Is(err, domain.ErrAlreadyRegistered) {
		t.Errorf("duplicate Register() = %v", err)
	}
	if _, err := r.Lookup("missing"); !errors.Is(err, domain.ErrNotRegistered) {
		t.Errorf("Lookup(missing) = %v", err)
	}
	if err := r.Unregister("missing"); !errors.Is(err, domain.ErrNotRegistered) {
		t.Errorf("Unregister(missing) = %v", err)
	}
	if err := r.Register("", s); !errors.Is(err, domain.ErrInvalidSchema) {
		t.Errorf("Register(empty) = %v", err)
	}
	if err := r.Register("b", nil); !errors.Is(err, domain.ErrInvalidSchema) {
		t.Errorf("Register(nil) = %v", err)
	}
}

func TestRegistry_UnregisterAndKeys(t *testing.T) {
	r := New()
	s := document.Standard().MustBuild()
	for _, k := range []string{"c", "a", "b"} {
		_ = r.Register(k, s)
	}
	if got := r.Keys(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Keys() = %v", got)
	}
	if err := r.Unregister("b"); err != nil {
		t.Fatal(err)
	}
	if got := r.Keys(); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("Keys() after Unregister = %v", got)
	}
}

func TestRegistry_Document(t *testing.T) {
	r := New()
	_ = r.Register("blog__post", document.Standard().MustBuild())

	d, err := r.Document(domain.NewMapRecord("blog__post", "3", nil))
	if err != nil {
		t.Fatal(err)
	}
	if d.PrimaryKey() != "blog__post__3" {
		t.Errorf("PrimaryKey() = %q", d.PrimaryKey())
	}
	if _, err := r.Document(domain.NewMapRecord("other", "3", nil)); !errors.Is(err, domain.ErrNotRegistered) {
		t.Errorf("Document(unregistered) = %v", err)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New()
	s := document.Standard().MustBuild()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := string(rune('a' + i))
			_ = r.Register(key, s)
			_, _ = r.Lookup(key)
			_ = r.Keys()
		}()
	}
	wg.Wait()
	if len(r.Keys()) != 20 {
		t.Errorf("Keys() = %d, want 20", len(r.Keys()))
	}
}
