package result

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/solango/internal/domain"
)

func TestParseUpdate(t *testing.T) {
	body := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<response>
<lst name="responseHeader"><int name="status">0</int><int name="QTime">12</int></lst>
</response>`)
	u := ParseUpdate(MethodAdd, "http://x/update", "<add/>", body)
	if !u.OK() {
		t.Fatalf("OK() = false, err = %v", u.Err)
	}
	if u.QTime != 12 || u.Payload != "<add/>" || u.Method != MethodAdd {
		t.Errorf("Update = %+v", u)
	}
}

func TestParseUpdate_Failures(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		noResults bool
	}{
		{"empty", "", true},
		{"not xml", "<html", true},
		{"no header", "<response></response>", true},
		{"backend status", `<response><lst name="responseHeader"><int name="status">400</int></lst></response>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := ParseUpdate(MethodCommit, "http://x/update", "<commit/>", []byte(tt.body))
			if u.OK() {
				t.Fatal("OK() = true")
			}
			if got := errors.Is(u.Err, domain.ErrNoResults); got != tt.noResults {
				t.Errorf("errors.Is(ErrNoResults) = %v, want %v (%v)", got, tt.noResults, u.Err)
			}
			if u.Payload != "<commit/>" {
				t.Errorf("Payload = %q", u.Payload)
			}
		})
	}
}

func TestFailed(t *testing.T) {
	cause := domain.NewTransportError("POST", "http://x/update", "<add/>", 503, errors.New("unavailable"))
	u := Failed(MethodAdd, "http://x/update", "<add/>", cause)
	if u.OK() {
		t.Fatal("OK() = true")
	}
	var te *domain.TransportError
	if !errors.As(u.Err, &te) || te.Code != 503 {
		t.Errorf("Err = %v", u.Err)
	}
}

func TestUpdates(t *testing.T) {
	ok := &Update{Method: MethodAdd}
	bad := Failed(MethodCommit, "u", "<commit/>", domain.ErrUnavailable)

	if !(Updates{ok}).OK() || (Updates{ok}).Err() != nil {
		t.Error("all-ok updates reported failure")
	}
	us := Updates{ok, bad}
	if us.OK() {
		t.Error("OK() = true with a failure")
	}
	if got := us.Failed(); len(got) != 1 || got[0] != bad {
		t.Errorf("Failed() = %v", got)
	}
	if !errors.Is(us.Err(), domain.ErrUnavailable) {
		t.Errorf("Err() = %v", us.Err())
	}
}
