package indexing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/solango/internal/domain"
	domdef "github.com/kailas-cloud/solango/internal/domain/deferred"
	"github.com/kailas-cloud/solango/internal/domain/document"
	"github.com/kailas-cloud/solango/internal/domain/result"
	"github.com/kailas-cloud/solango/internal/metrics"
)

// Defaults for batch runs.
const (
	DefaultBatchSize = 10
	DefaultWorkers   = 4
)

// Key addresses one source record.
type Key struct {
	TypeKey string
	ID      string
}

// Report summarizes an indexing run.
type Report struct {
	Added    int
	Deleted  int
	Deferred int
	Skipped  int
	Queued   int
	Updates  result.Updates
}

func (r *Report) merge(o Report) {
	r.Added += o.Added
	r.Deleted += o.Deleted
	r.Deferred += o.Deferred
	r.Skipped += o.Skipped
	r.Queued += o.Queued
	r.Updates = append(r.Updates, o.Updates...)
}

// Service pushes record changes to the search backend and defers failed writes.
type Service struct {
	backend   Backend
	queue     Queue
	schemas   SchemaLookup
	records   RecordStore
	keys      KeyQueue
	queueSave bool
	logger    *zap.Logger
	batchSize int
	workers   int
}

// New creates an indexing service. logger may be nil.
func New(backend Backend, queue Queue, schemas SchemaLookup, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		backend:   backend,
		queue:     queue,
		schemas:   schemas,
		logger:    logger,
		batchSize: DefaultBatchSize,
		workers:   DefaultWorkers,
	}
}

// WithRecords sets the record store used by IndexKeys and Reindex.
func (s *Service) WithRecords(records RecordStore) *Service {
	s.records = records
	return s
}

// WithKeyQueue sets the queue drained by IndexQueued. With queueSaves set,
// OnChange queues saved records there instead of writing them.
func (s *Service) WithKeyQueue(keys KeyQueue, queueSaves bool) *Service {
	s.keys = keys
	s.queueSave = keys != nil && queueSaves
	return s
}

// WithBatchSize sets the number of documents per add or delete request.
func (s *Service) WithBatchSize(n int) *Service {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// WithWorkers sets the default parallelism of ReindexParallel.
func (s *Service) WithWorkers(n int) *Service {
	if n > 0 {
		s.workers = n
	}
	return s
}

// OnChange is the change hook for a single record. Deleted or non-indexable
// records are removed from the index; others are added. The write commits.
// Backend failures are deferred, not returned.
//
// When saves are queued, a saved record is only pushed to the key queue and
// indexed by the next IndexQueued run. Deletes are always written at once:
// a later run could still find the record in the store.
func (s *Service) OnChange(ctx context.Context, rec domain.Record, deleted bool) (Report, error) {
	schema, err := s.schemas.Lookup(rec.TypeKey())
	if err != nil {
		return Report{Skipped: 1}, fmt.Errorf("on change %s: %w", rec.TypeKey(), err)
	}
	if s.queueSave && !deleted {
		if _, err := s.keys.Push(ctx, rec.TypeKey(), rec.RecordID()); err != nil {
			return Report{}, fmt.Errorf("queue %s/%s: %w", rec.TypeKey(), rec.RecordID(), err)
		}
		metrics.QueuedKeysTotal.Inc()
		return Report{Queued: 1}, nil
	}
	doc := document.FromRecord(schema, rec)

	var rep Report
	if deleted || !schema.Indexable(rec) {
		s.write(ctx, &rep, domdef.Delete, []*document.Document{doc}, true)
	} else {
		s.write(ctx, &rep, domdef.Add, []*document.Document{doc}, true)
	}
	return rep, nil
}

// IndexRecords indexes records in batches and optimizes once at the end.
// Failed batches are deferred and the run continues.
func (s *Service) IndexRecords(ctx context.Context, recs []domain.Record) (Report, error) {
	b := s.newBatch(false)
	for _, rec := range recs {
		schema, err := s.schemas.Lookup(rec.TypeKey())
		if err != nil {
			b.rep.Skipped++
			s.logger.Warn("skipping record", zap.String("type", rec.TypeKey()), zap.Error(err))
			continue
		}
		b.push(ctx, document.FromRecord(schema, rec), !schema.Indexable(rec))
	}
	b.flush(ctx)
	s.optimize(ctx, &b.rep)
	return b.rep, nil
}

// IndexKeys fetches each addressed record and indexes it; records missing
// from the store are deleted from the index. Duplicate keys are indexed once.
func (s *Service) IndexKeys(ctx context.Context, keys []Key) (Report, error) {
	if s.records == nil {
		return Report{}, errors.New("index keys: no record store configured")
	}
	b := s.newBatch(false)
	seen := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}

		schema, err := s.schemas.Lookup(k.TypeKey)
		if err != nil {
			b.rep.Skipped++
			s.logger.Warn("skipping key", zap.String("type", k.TypeKey), zap.Error(err))
			continue
		}
		doc, err := document.FromKey(schema, k.TypeKey, k.ID, func(typeKey, id string) (domain.Record, error) {
			return s.records.Get(ctx, typeKey, id)
		})
		if err != nil {
			return b.rep, fmt.Errorf("fetch %s/%s: %w", k.TypeKey, k.ID, err)
		}
		remove := doc.IsDeleted() || !schema.Indexable(doc.Record())
		b.push(ctx, doc, remove)
	}
	b.flush(ctx)
	s.optimize(ctx, &b.rep)
	return b.rep, nil
}

// QueueKeys pushes keys to the key queue for the next IndexQueued run.
func (s *Service) QueueKeys(ctx context.Context, keys []Key) (Report, error) {
	if s.keys == nil {
		return Report{}, errors.New("queue keys: no key queue configured")
	}
	var rep Report
	for _, k := range keys {
		if _, err := s.schemas.Lookup(k.TypeKey); err != nil {
			return rep, fmt.Errorf("queue %s/%s: %w", k.TypeKey, k.ID, err)
		}
		if _, err := s.keys.Push(ctx, k.TypeKey, k.ID); err != nil {
			return rep, fmt.Errorf("queue %s/%s: %w", k.TypeKey, k.ID, err)
		}
		rep.Queued++
		metrics.QueuedKeysTotal.Inc()
	}
	return rep, nil
}

// IndexQueued indexes every key queued so far, then acknowledges exactly
// those keys. Keys pushed while the run is in progress stay queued for the
// next run. Nothing is acknowledged when the run fails.
func (s *Service) IndexQueued(ctx context.Context) (Report, error) {
	if s.keys == nil {
		return Report{}, errors.New("index queued: no key queue configured")
	}
	pending, err := s.keys.Pending(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("index queued: %w", err)
	}
	if len(pending) == 0 {
		return Report{}, nil
	}

	keys := make([]Key, len(pending))
	ids := make([]string, len(pending))
	for i, p := range pending {
		keys[i] = Key{TypeKey: p.TypeKey, ID: p.RecordID}
		ids[i] = p.ID
	}
	rep, err := s.IndexKeys(ctx, keys)
	if err != nil {
		return rep, fmt.Errorf("index queued: %w", err)
	}
	if err := s.keys.Ack(ctx, ids...); err != nil {
		return rep, fmt.Errorf("index queued: %w", err)
	}
	s.logger.Info("queued keys indexed",
		zap.Int("keys", len(pending)), zap.Int("added", rep.Added), zap.Int("deleted", rep.Deleted))
	return rep, nil
}

// Reindex indexes every stored record of typeKey. The run aborts on the
// first batch that finds the backend unavailable; that batch and any
// documents already batched are deferred, later records are not visited.
func (s *Service) Reindex(ctx context.Context, typeKey string) (Report, error) {
	recs, err := s.load(ctx, typeKey)
	if err != nil {
		return Report{}, err
	}
	rep, err := s.reindexSlice(ctx, recs)
	s.optimize(ctx, &rep)
	return rep, err
}

// ReindexParallel splits the records of typeKey into disjoint slices indexed
// by concurrent workers. Only the last worker to finish optimizes.
// workers <= 0 uses the configured default.
func (s *Service) ReindexParallel(ctx context.Context, typeKey string, workers int) (Report, error) {
	recs, err := s.load(ctx, typeKey)
	if err != nil {
		return Report{}, err
	}
	if workers <= 0 {
		workers = s.workers
	}
	if workers > len(recs) {
		workers = max(len(recs), 1)
	}

	var (
		mu      sync.Mutex
		total   Report
		pending atomic.Int32
		g       errgroup.Group
	)
	pending.Store(int32(workers))
	chunk := (len(recs) + workers - 1) / workers

	for w := range workers {
		lo := min(w*chunk, len(recs))
		hi := min(lo+chunk, len(recs))
		part := recs[lo:hi]
		g.Go(func() error {
			rep, err := s.reindexSlice(ctx, part)
			if pending.Add(-1) == 0 {
				s.optimize(ctx, &rep)
			}
			mu.Lock()
			total.merge(rep)
			mu.Unlock()
			return err
		})
	}
	err = g.Wait()
	return total, err
}

func (s *Service) load(ctx context.Context, typeKey string) ([]domain.Record, error) {
	if s.records == nil {
		return nil, errors.New("reindex: no record store configured")
	}
	if _, err := s.schemas.Lookup(typeKey); err != nil {
		return nil, fmt.Errorf("reindex %s: %w", typeKey, err)
	}
	recs, err := s.records.All(ctx, typeKey)
	if err != nil {
		return nil, fmt.Errorf("load %s records: %w", typeKey, err)
	}
	return recs, nil
}

func (s *Service) reindexSlice(ctx context.Context, recs []domain.Record) (Report, error) {
	b := s.newBatch(true)
	for _, rec := range recs {
		if b.aborted != nil {
			break
		}
		schema, err := s.schemas.Lookup(rec.TypeKey())
		if err != nil {
			b.rep.Skipped++
			continue
		}
		b.push(ctx, document.FromRecord(schema, rec), !schema.Indexable(rec))
	}
	b.flush(ctx)
	if b.aborted != nil {
		return b.rep, fmt.Errorf("reindex aborted: %w", b.aborted)
	}
	return b.rep, nil
}

func (s *Service) optimize(ctx context.Context, rep *Report) {
	u := s.backend.Optimize(ctx)
	rep.Updates = append(rep.Updates, u)
	if !u.OK() {
		s.deferUpdate(ctx, rep, u, "")
	}
}

// write sends one add or delete request for docs and defers what fails.
func (s *Service) write(ctx context.Context, rep *Report, method domdef.Method, docs []*document.Document, commit bool) {
	if len(docs) == 0 {
		return
	}
	frags := make([]string, len(docs))
	for i, d := range docs {
		if method == domdef.Add {
			frags[i] = d.AddFragment()
			if err := d.Err(); err != nil {
				s.logger.Warn("document has invalid fields",
					zap.String("key", d.PrimaryKey()), zap.Error(err))
			}
		} else {
			frags[i] = d.DeleteFragment()
		}
	}

	var us result.Updates
	if method == domdef.Add {
		us = s.backend.Add(ctx, frags, commit)
	} else {
		us = s.backend.Delete(ctx, frags, commit)
	}
	rep.Updates = append(rep.Updates, us...)

	docKey := ""
	if len(docs) == 1 {
		docKey = docs[0].PrimaryKey()
	}
	if us[0].OK() {
		if method == domdef.Add {
			rep.Added += len(docs)
		} else {
			rep.Deleted += len(docs)
		}
		metrics.IndexedDocumentsTotal.WithLabelValues(string(method)).Add(float64(len(docs)))
	}
	for _, u := range us.Failed() {
		key := ""
		if u == us[0] {
			key = docKey
		}
		s.deferUpdate(ctx, rep, u, key)
	}
}

func (s *Service) deferUpdate(ctx context.Context, rep *Report, u *result.Update, docKey string) {
	method, err := domdef.ParseMethod(u.Method)
	if err != nil || errors.Is(u.Err, domain.ErrEmptyPayload) {
		return
	}
	errMsg := ""
	if err := (result.Updates{u}).Err(); err != nil {
		errMsg = err.Error()
	}
	if _, err := s.queue.Enqueue(ctx, method, u.Payload, docKey, errMsg); err != nil {
		s.logger.Error("failed to defer write",
			zap.String("method", u.Method), zap.String("doc_key", docKey), zap.Error(err))
		return
	}
	rep.Deferred++
	metrics.DeferredEnqueuedTotal.WithLabelValues(string(method)).Inc()
	s.logger.Warn("write deferred",
		zap.String("method", u.Method), zap.String("doc_key", docKey), zap.String("error", errMsg))
}

// batch accumulates add and delete fragments and flushes each at the
// configured size.
type batch struct {
	svc     *Service
	abort   bool
	aborted error
	adds    []*document.Document
	deletes []*document.Document
	rep     Report
}

func (s *Service) newBatch(abort bool) *batch {
	return &batch{svc: s, abort: abort}
}

func (b *batch) push(ctx context.Context, doc *document.Document, remove bool) {
	if remove {
		b.deletes = append(b.deletes, doc)
		if len(b.deletes) >= b.svc.batchSize {
			b.send(ctx, domdef.Delete)
		}
		return
	}
	b.adds = append(b.adds, doc)
	if len(b.adds) >= b.svc.batchSize {
		b.send(ctx, domdef.Add)
	}
}

// flush sends what is still pending. After an abort the pending documents
// are still handed to the backend, which rejects them as unavailable
// without a round trip, so they end up deferred rather than dropped.
func (b *batch) flush(ctx context.Context) {
	b.send(ctx, domdef.Add)
	b.send(ctx, domdef.Delete)
}

func (b *batch) send(ctx context.Context, method domdef.Method) {
	docs := &b.adds
	if method == domdef.Delete {
		docs = &b.deletes
	}
	if len(*docs) == 0 {
		return
	}
	before := len(b.rep.Updates)
	b.svc.write(ctx, &b.rep, method, *docs, false)
	*docs = nil

	if !b.abort {
		return
	}
	for _, u := range b.rep.Updates[before:] {
		if errors.Is(u.Err, domain.ErrUnavailable) {
			b.aborted = u.Err
			return
		}
	}
}
