package chi

import (
	"time"

	domdef "github.com/kailas-cloud/solango/internal/domain/deferred"
	"github.com/kailas-cloud/solango/internal/domain/facet"
	"github.com/kailas-cloud/solango/internal/domain/result"
	healthuc "github.com/kailas-cloud/solango/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/solango/internal/usecase/indexing"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Pending *int              `json:"pending,omitempty"`
}

// SearchResponse is the body of GET /search.
type SearchResponse struct {
	Count      int64              `json:"count"`
	Start      int64              `json:"start"`
	Rows       int64              `json:"rows"`
	QTime      int                `json:"qtime"`
	Documents  []DocumentResponse `json:"documents"`
	Facets     []*facet.Facet     `json:"facets,omitempty"`
	DateGap    string             `json:"date_gap,omitempty"`
	Unresolved int                `json:"unresolved,omitempty"`
}

// DocumentResponse is one search hit.
type DocumentResponse struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	RecordID   string            `json:"record_id"`
	Fields     map[string]any    `json:"fields"`
	Highlight  string            `json:"highlight,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// DeferredResponse is one pending deferred write.
type DeferredResponse struct {
	ID        string    `json:"id"`
	Method    string    `json:"method"`
	DocKey    string    `json:"doc_key,omitempty"`
	Payload   string    `json:"payload"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DeferredListResponse is the body of GET /deferred.
type DeferredListResponse struct {
	Items []DeferredResponse `json:"items"`
	Count int                `json:"count"`
}

// ReplayResponse is the body of POST /deferred/replay.
type ReplayResponse struct {
	Replayed   int `json:"replayed"`
	Failed     int `json:"failed"`
	Superseded int `json:"superseded"`
}

// IndexResponse is the body of POST /reindex/{type}.
type IndexResponse struct {
	Type     string `json:"type"`
	Added    int    `json:"added"`
	Deleted  int    `json:"deleted"`
	Deferred int    `json:"deferred"`
	Skipped  int    `json:"skipped"`
	Requests int    `json:"requests"`
	Failed   int    `json:"failed"`
}

func healthToResponse(r healthuc.Report) HealthResponse {
	checks := make(map[string]string, len(r.Checks))
	for k, v := range r.Checks {
		checks[k] = string(v)
	}
	resp := HealthResponse{Status: string(r.Status), Checks: checks}
	if r.Pending >= 0 {
		n := r.Pending
		resp.Pending = &n
	}
	return resp
}

func selectToResponse(s *result.Select) SearchResponse {
	docs := make([]DocumentResponse, 0, len(s.Documents))
	for _, d := range s.Documents {
		dr := DocumentResponse{
			ID:        d.PrimaryKey(),
			Type:      d.TypeKey(),
			RecordID:  d.RecordID(),
			Fields:    d.Values(),
			Highlight: d.Highlight(),
		}
		for _, f := range d.Fields() {
			if h := f.Highlight(); h != "" {
				if dr.Highlights == nil {
					dr.Highlights = make(map[string]string)
				}
				dr.Highlights[f.Name()] = h
			}
		}
		docs = append(docs, dr)
	}
	return SearchResponse{
		Count:      s.Count,
		Start:      s.Start,
		Rows:       s.Rows,
		QTime:      s.Header.QTime,
		Documents:  docs,
		Facets:     s.Facets,
		DateGap:    s.DateGap,
		Unresolved: len(s.Unresolved),
	}
}

func deferredToResponse(r domdef.Record) DeferredResponse {
	return DeferredResponse{
		ID:        r.ID,
		Method:    string(r.Method),
		DocKey:    r.DocKey,
		Payload:   r.Payload,
		Error:     r.Error,
		Timestamp: r.Timestamp,
	}
}

func indexReportToResponse(typeKey string, r indexinguc.Report) IndexResponse {
	return IndexResponse{
		Type:     typeKey,
		Added:    r.Added,
		Deleted:  r.Deleted,
		Deferred: r.Deferred,
		Skipped:  r.Skipped,
		Requests: len(r.Updates),
		Failed:   len(r.Updates.Failed()),
	}
}
