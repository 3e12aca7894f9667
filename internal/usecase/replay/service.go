package replay

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/solango/internal/domain"
	domdef "github.com/kailas-cloud/solango/internal/domain/deferred"
	"github.com/kailas-cloud/solango/internal/domain/result"
	"github.com/kailas-cloud/solango/internal/metrics"
)

// Report summarizes one drain.
type Report struct {
	Replayed   int
	Failed     int
	Superseded int
}

// Service drains the deferred queue through the backend.
type Service struct {
	queue   Queue
	backend Poster
	locker  Locker
	logger  *zap.Logger
}

// New creates a replay service. logger may be nil.
func New(queue Queue, backend Poster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{queue: queue, backend: backend, logger: logger}
}

// WithLocker makes Drain fail with domain.ErrDrainInProgress while another
// holder owns l.
func (s *Service) WithLocker(l Locker) *Service {
	s.locker = l
	return s
}

// List returns the pending records oldest first.
func (s *Service) List(ctx context.Context) ([]domdef.Record, error) {
	recs, err := s.queue.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list deferred: %w", err)
	}
	return recs, nil
}

// Drain replays pending records oldest first. A replayed record is removed;
// a failed one stays with its error updated. A record whose doc key also
// appears on a newer record is removed without replay.
func (s *Service) Drain(ctx context.Context) (Report, error) {
	var rep Report
	if s.locker != nil {
		ok, err := s.locker.TryLock()
		if err != nil {
			return rep, fmt.Errorf("acquire drain lease: %w", err)
		}
		if !ok {
			return rep, domain.ErrDrainInProgress
		}
		defer func() {
			if err := s.locker.Unlock(); err != nil {
				s.logger.Warn("failed to release drain lease", zap.Error(err))
			}
		}()
	}

	recs, err := s.List(ctx)
	if err != nil {
		return rep, err
	}

	latest := make(map[string]int, len(recs))
	for i, r := range recs {
		if r.DocKey != "" {
			latest[r.DocKey] = i
		}
	}

	for i, r := range recs {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		if r.DocKey != "" && latest[r.DocKey] != i {
			if err := s.queue.Remove(ctx, r.ID); err != nil {
				return rep, fmt.Errorf("remove superseded %s: %w", r.ID, err)
			}
			rep.Superseded++
			metrics.DeferredReplayedTotal.WithLabelValues(string(r.Method), "superseded").Inc()
			continue
		}

		u := s.backend.Post(ctx, string(r.Method), r.Payload)
		if u.OK() {
			if err := s.queue.Remove(ctx, r.ID); err != nil {
				return rep, fmt.Errorf("remove replayed %s: %w", r.ID, err)
			}
			rep.Replayed++
			metrics.DeferredReplayedTotal.WithLabelValues(string(r.Method), "success").Inc()
			continue
		}

		errMsg := (result.Updates{u}).Err().Error()
		if err := s.queue.Update(ctx, r.ID, errMsg); err != nil {
			return rep, fmt.Errorf("update %s: %w", r.ID, err)
		}
		rep.Failed++
		metrics.DeferredReplayedTotal.WithLabelValues(string(r.Method), "error").Inc()
		s.logger.Warn("deferred replay failed",
			zap.String("id", r.ID), zap.String("method", string(r.Method)), zap.String("error", errMsg))
	}

	metrics.DeferredPending.Set(float64(rep.Failed))
	s.logger.Info("deferred queue drained",
		zap.Int("replayed", rep.Replayed),
		zap.Int("failed", rep.Failed),
		zap.Int("superseded", rep.Superseded),
	)
	return rep, nil
}
