package search

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/kailas-cloud/solango/internal/domain"
	"github.com/kailas-cloud/solango/internal/domain/document"
	"github.com/kailas-cloud/solango/internal/domain/field"
	"github.com/kailas-cloud/solango/internal/domain/query"
	"github.com/kailas-cloud/solango/internal/domain/registry"
)

// --- Mocks ---

type mockSelecter struct {
	got  *query.Query
	body string
	err  error
}

func (m *mockSelecter) Select(_ context.Context, q *query.Query) (string, []byte, error) {
	m.got = q
	return "http://solr/select?" + q.URL(), []byte(m.body), m.err
}

const okBody = `{
  "responseHeader": {"status": 0, "QTime": 1, "params": {"rows": "5"}},
  "response": {"numFound": 1, "start": 0, "docs": [
    {"id": "blog__post__1", "model": "blog__post", "title": "Hello"}
  ]},
  "facet_counts": {"facet_fields": {"model": ["blog__post", 1]}}
}`

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	s := document.Standard().Field(field.New("title", field.String)).MustBuild()
	if err := reg.Register("blog__post", s); err != nil {
		t.Fatal(err)
	}
	return reg
}

func defaults(t *testing.T) *query.Query {
	t.Helper()
	q := query.New()
	for k, v := range map[string]any{
		"facet.field": "model",
		"hl.fl":       "text",
		"sort":        "score desc",
		"rows":        10,
	} {
		if err := q.Add(k, v); err != nil {
			t.Fatal(err)
		}
	}
	return q
}

// --- Tests ---

func TestSearch_MergesDefaults(t *testing.T) {
	be := &mockSelecter{body: okBody}
	svc := New(be, newRegistry(t)).WithDefaults(defaults(t))

	user := query.Text("hello")
	_ = user.Add("rows", 5)
	_ = user.Add("facet.field", "category")

	res, err := svc.Search(context.Background(), user)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	got := be.got
	if v := got.Get("rows"); len(v) != 1 || v[0] != "5" {
		t.Errorf("rows = %v, caller value must win", v)
	}
	if v := got.Get("facet.field"); len(v) != 2 {
		t.Errorf("facet.field = %v, want union", v)
	}
	if !got.FacetEnabled() || !got.HighlightEnabled() {
		t.Error("default groups must be enabled")
	}
	if v := got.Get("q"); len(v) != 1 || v[0] != "hello" {
		t.Errorf("q = %v", v)
	}

	if res.Count != 1 || len(res.Documents) != 1 || res.Documents[0].Get("title") != "Hello" {
		t.Errorf("result = %+v", res)
	}
	if _, ok := res.Facet("model"); !ok {
		t.Error("model facet missing")
	}
}

func TestSearch_DefaultsAreNotMutated(t *testing.T) {
	d := defaults(t)
	svc := New(&mockSelecter{body: okBody}, newRegistry(t)).WithDefaults(d)

	q := query.New()
	_ = q.Add("fq", "model:blog__post")
	if _, err := svc.Search(context.Background(), q); err != nil {
		t.Fatal(err)
	}
	if d.Has("fq") || d.Has("q") {
		t.Error("defaults mutated by Search")
	}
}

func TestSearch_MatchAllWithoutQuery(t *testing.T) {
	be := &mockSelecter{body: okBody}
	if _, err := New(be, newRegistry(t)).Search(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if v := be.got.Get("q"); len(v) != 1 || v[0] != MatchAll {
		t.Errorf("q = %v", v)
	}
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name string
		be   *mockSelecter
		want error
	}{
		{"unavailable", &mockSelecter{err: domain.ErrUnavailable}, domain.ErrUnavailable},
		{"malformed", &mockSelecter{body: "<html>"}, domain.ErrNoResults},
		{"no response", &mockSelecter{body: `{"responseHeader": {"status": 0}}`}, domain.ErrNoResults},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.be, newRegistry(t)).Search(context.Background(), query.New())
			if !errors.Is(err, tt.want) {
				t.Errorf("Search() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSearchValues(t *testing.T) {
	be := &mockSelecter{body: okBody}
	svc := New(be, newRegistry(t))

	if _, err := svc.SearchValues(context.Background(), url.Values{"q": {"solr"}, "author": {"bob"}}); err != nil {
		t.Fatal(err)
	}
	if v := be.got.Get("q"); len(v) != 2 {
		t.Errorf("q = %v", v)
	}

	_, err := svc.SearchValues(context.Background(), url.Values{"facet.bogus": {"1"}})
	if !errors.Is(err, domain.ErrUnknownParam) {
		t.Errorf("SearchValues() = %v, want ErrUnknownParam", err)
	}
}
