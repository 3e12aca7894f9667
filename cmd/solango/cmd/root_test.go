package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/solango/internal/domain"
)

const okUpdate = `<response><lst name="responseHeader"><int name="status">0</int><int name="QTime">1</int></lst></response>`

const selectBody = `{"responseHeader":{"status":0,"QTime":2,"params":{"rows":"20"}},
"response":{"numFound":1,"start":0,"docs":[{"id":"blog__post__1","model":"blog__post","site_id":1,"title":"Hello"}]},
"facet_counts":{"facet_fields":{"model":["blog__post",1]}}}`

// fakeSolr is a chi-routed stand-in for the search backend.
type fakeSolr struct {
	mu       sync.Mutex
	pingCode int
	update   int
	updates  []string
	selects  []string
}

func newFakeSolr(t *testing.T) (*fakeSolr, *httptest.Server) {
	t.Helper()
	fs := &fakeSolr{pingCode: http.StatusOK, update: http.StatusOK}

	r := chi.NewRouter()
	r.Get("/solr/admin/ping", func(w http.ResponseWriter, _ *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		w.WriteHeader(fs.pingCode)
	})
	r.Post("/solr/update", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fs.mu.Lock()
		fs.updates = append(fs.updates, string(body))
		code := fs.update
		fs.mu.Unlock()
		w.WriteHeader(code)
		_, _ = w.Write([]byte(okUpdate))
	})
	r.Get("/solr/select", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.selects = append(fs.selects, r.URL.RawQuery)
		fs.mu.Unlock()
		_, _ = w.Write([]byte(selectBody))
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return fs, srv
}

func (fs *fakeSolr) set(ping, update int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.pingCode, fs.update = ping, update
}

func (fs *fakeSolr) posted() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.updates...)
}

const configTemplate = `
http:
  port: 8090
logging:
  level: error
backend:
  update_url: %[1]s/solr/update
search:
  default_operator: AND
  params:
    rows: 20
    facet.field: [model]
deferred:
  backend: sqlite
  sqlite:
    path: %[2]s/deferred.db
  lock_path: %[2]s/replay.lock
records:
  path: %[2]s/records.jsonl
documents:
  blog__post:
    indexable_if: published
    fields:
      - {name: title, type: string, copy: true}
      - {name: views, type: integer, dynamic: true}
`

const recordsJSONL = `{"type":"blog__post","id":"1","attrs":{"title":"Hello","published":true,"views":3}}
{"type":"blog__post","id":"2","attrs":{"title":"World","published":true}}
{"type":"blog__post","id":"3","attrs":{"title":"Draft","published":false}}
`

func writeConfig(t *testing.T, backendURL string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "records.jsonl"), []byte(recordsJSONL), 0o600); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "solango.yaml")
	if err := os.WriteFile(path, []byte(fmt.Sprintf(configTemplate, backendURL, dir)), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--env", "local"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	want := []string{"serve", "reindex", "index", "index-queued", "flush", "replay", "schema", "ping", "search", "version"}
	cmd := NewRootCmd()
	for _, name := range want {
		if c, _, err := cmd.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestSchemaCmd(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1")

	out, err := run(t, "--config", cfg, "schema")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	for _, want := range []string{
		`<field name="title" type="string"`,
		`<dynamicField name="*_i" type="integer"`,
		`<copyField source="title" dest="text"/>`,
		`<solrQueryParser defaultOperator="AND"/>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("schema output missing %s", want)
		}
	}

	file := filepath.Join(t.TempDir(), "conf", "schema.xml")
	if _, err := run(t, "--config", cfg, "schema", "-o", file); err != nil {
		t.Fatal(err)
	}
	if b, err := os.ReadFile(file); err != nil || !strings.Contains(string(b), "<uniqueKey>id</uniqueKey>") {
		t.Errorf("schema file: %v", err)
	}
}

func TestPingCmd(t *testing.T) {
	fs, srv := newFakeSolr(t)
	cfg := writeConfig(t, srv.URL)

	out, err := run(t, "--config", cfg, "ping")
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if !strings.Contains(out, ": available") {
		t.Errorf("ping output = %q", out)
	}

	fs.set(http.StatusServiceUnavailable, http.StatusOK)
	if _, err := run(t, "--config", cfg, "ping"); !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("ping unavailable = %v", err)
	}
}

func TestReindexDeferAndReplay(t *testing.T) {
	fs, srv := newFakeSolr(t)
	cfg := writeConfig(t, srv.URL)

	fs.set(http.StatusOK, http.StatusInternalServerError)
	out, err := run(t, "--config", cfg, "reindex", "--workers", "1")
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if !strings.Contains(out, "blog__post: added 0") || !strings.Contains(out, "deleted 0") {
		t.Errorf("reindex output = %q", out)
	}
	failedPosts := len(fs.posted())
	if failedPosts == 0 {
		t.Fatal("backend saw no update requests")
	}

	out, err = run(t, "--config", cfg, "replay", "--list")
	if err != nil {
		t.Fatalf("replay --list: %v", err)
	}
	if !strings.Contains(out, "add") || !strings.Contains(out, "status 500") {
		t.Errorf("deferred list = %q", out)
	}

	fs.set(http.StatusOK, http.StatusOK)
	out, err = run(t, "--config", cfg, "replay")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if strings.Contains(out, "replayed 0") || !strings.Contains(out, "failed 0") {
		t.Errorf("replay output = %q", out)
	}

	replayed := fs.posted()[failedPosts:]
	var sawAdd bool
	for _, p := range replayed {
		if strings.Contains(p, `<field name="id">blog__post__1</field>`) {
			sawAdd = true
		}
		if strings.Contains(p, `<field name="id">blog__post__3</field>`) {
			t.Errorf("draft record was indexed: %s", p)
		}
	}
	if !sawAdd {
		t.Errorf("replayed payloads = %v", replayed)
	}

	out, err = run(t, "--config", cfg, "replay", "--list", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "null" && strings.TrimSpace(out) != "[]" {
		t.Errorf("queue not empty after replay: %s", out)
	}
}

func TestIndexCmd(t *testing.T) {
	fs, srv := newFakeSolr(t)
	cfg := writeConfig(t, srv.URL)

	out, err := run(t, "--config", cfg, "index", "blog__post", "1", "99")
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if !strings.Contains(out, "added 1") || !strings.Contains(out, "deleted 1") {
		t.Errorf("index output = %q", out)
	}
	var sawDelete bool
	for _, p := range fs.posted() {
		if strings.Contains(p, "<delete><id>blog__post__99</id></delete>") {
			sawDelete = true
		}
	}
	if !sawDelete {
		t.Errorf("posted = %v", fs.posted())
	}
}

func TestIndexQueuedCmd(t *testing.T) {
	fs, srv := newFakeSolr(t)
	cfg := writeConfig(t, srv.URL)

	out, err := run(t, "--config", cfg, "index", "--queue", "blog__post", "1", "2", "1")
	if err != nil {
		t.Fatalf("index --queue: %v", err)
	}
	if !strings.Contains(out, "queued 3") || len(fs.posted()) != 0 {
		t.Errorf("index --queue output = %q, posted = %d", out, len(fs.posted()))
	}

	out, err = run(t, "--config", cfg, "index-queued")
	if err != nil {
		t.Fatalf("index-queued: %v", err)
	}
	if !strings.Contains(out, "queued: added 2") {
		t.Errorf("index-queued output = %q", out)
	}

	out, err = run(t, "--config", cfg, "index-queued")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "added 0") {
		t.Errorf("second run output = %q, want empty queue", out)
	}
}

func TestFlushCmd(t *testing.T) {
	fs, srv := newFakeSolr(t)
	cfg := writeConfig(t, srv.URL)

	cmd := NewRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader("n\n"))
	cmd.SetArgs([]string{"--env", "local", "--config", cfg, "flush"})
	if err := cmd.Execute(); !errors.Is(err, errFlushDeclined) {
		t.Fatalf("flush without confirmation = %v, want errFlushDeclined", err)
	}
	if len(fs.posted()) != 0 {
		t.Fatal("declined flush reached the backend")
	}

	if _, err := run(t, "--config", cfg, "flush", "--yes", "--query", "model:blog__post"); err != nil {
		t.Fatalf("flush: %v", err)
	}
	got := fs.posted()
	if len(got) != 2 || got[0] != "<delete><query>model:blog__post</query></delete>" || got[1] != "<commit/>" {
		t.Errorf("posted = %q", got)
	}
}

func TestSearchCmd(t *testing.T) {
	fs, srv := newFakeSolr(t)
	cfg := writeConfig(t, srv.URL)

	out, err := run(t, "--config", cfg, "search", "--fq", "model:blog__post", "-p", "sort=score desc", "hello")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out, "1 hits") || !strings.Contains(out, "blog__post__1") || !strings.Contains(out, "[model]") {
		t.Errorf("search output = %q", out)
	}
	sent := fs.selects[0]
	for _, want := range []string{"q=hello", "fq=model%3Ablog__post", "sort=score+desc", "rows=20", "q.op=AND"} {
		if !strings.Contains(sent, want) {
			t.Errorf("select %q missing %s", sent, want)
		}
	}

	if _, err := run(t, "--config", cfg, "search", "-p", "facet.bogus=1"); !errors.Is(err, domain.ErrUnknownParam) {
		t.Errorf("unknown param = %v", err)
	}
	if _, err := run(t, "--config", cfg, "search", "-p", "novalue"); err == nil {
		t.Error("malformed --param accepted")
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "solango dev") {
		t.Errorf("version = %q", out)
	}
}
