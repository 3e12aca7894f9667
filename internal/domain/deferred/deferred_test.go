package deferred

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/kailas-cloud/solango/internal/domain"
)

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{"add", Add, false},
		{"DELETE", Delete, false},
		{" commit ", Commit, false},
		{"optimize", Optimize, false},
		{"rollback", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMethod(tt.in)
		if tt.wantErr {
			if !errors.Is(err, domain.ErrInvalidMethod) {
				t.Errorf("ParseMethod(%q) err = %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseMethod(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestNew(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	r, err := New(Add, "<add/>", "blog__post__1", "connection refused", now)
	if err != nil {
		t.Fatal(err)
	}
	if r.ID == "" || r.Method != Add || r.Payload != "<add/>" || r.DocKey != "blog__post__1" {
		t.Errorf("record = %+v", r)
	}
	if r.Timestamp.Location() != time.UTC || !r.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v", r.Timestamp)
	}
	if _, err := New("bogus", "", "", "", now); !errors.Is(err, domain.ErrInvalidMethod) {
		t.Errorf("New(bogus) = %v", err)
	}
}

func TestCompare(t *testing.T) {
	base := time.Now()
	a, _ := New(Add, "a", "", "", base)
	b, _ := New(Add, "b", "", "", base.Add(time.Second))
	c, _ := New(Add, "c", "", "", base)

	records := []Record{b, c, a}
	slices.SortFunc(records, Compare)
	if records[2].Payload != "b" {
		t.Errorf("newest must sort last: %v", records)
	}
	if records[0].ID > records[1].ID {
		t.Error("ties must break by id")
	}
}

func TestNewPending(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	p, err := NewPending("blog__post", "7", now)
	if err != nil {
		t.Fatalf("NewPending() error: %v", err)
	}
	if p.ID == "" || p.TypeKey != "blog__post" || p.RecordID != "7" || p.Timestamp.Location() != time.UTC {
		t.Errorf("NewPending() = %+v", p)
	}

	for _, k := range [][2]string{{"", "7"}, {"blog__post", ""}} {
		if _, err := NewPending(k[0], k[1], now); !errors.Is(err, domain.ErrInvalidKey) {
			t.Errorf("NewPending(%q, %q) = %v, want ErrInvalidKey", k[0], k[1], err)
		}
	}
}

func TestComparePending(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ps := []Pending{
		{ID: "b", Timestamp: t0},
		{ID: "c", Timestamp: t0.Add(-time.Second)},
		{ID: "a", Timestamp: t0},
	}
	slices.SortFunc(ps, ComparePending)
	var ids []string
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	if !slices.Equal(ids, []string{"c", "a", "b"}) {
		t.Errorf("order = %v", ids)
	}
}
