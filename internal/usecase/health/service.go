package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status  Status
	Checks  map[string]CheckResult
	Pending int // deferred records awaiting replay, -1 when unknown
}

// Service coordinates health checks.
type Service struct {
	backend BackendChecker
	pinger  QueuePinger
	queue   QueueLister
}

// New creates a Service. pinger and queue can be nil.
func New(backend BackendChecker, pinger QueuePinger, queue QueueLister) *Service {
	return &Service{backend: backend, pinger: pinger, queue: queue}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if s.backend.Available(ctx) {
		checks["backend"] = CheckOK
	} else {
		checks["backend"] = CheckError
	}

	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			checks["deferred"] = CheckError
		} else {
			checks["deferred"] = CheckOK
		}
	}

	pending := -1
	if s.queue != nil {
		if recs, err := s.queue.List(ctx); err == nil {
			pending = len(recs)
		}
	}

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}
	status := Healthy
	switch {
	case failed == len(checks):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}

	return Report{Status: status, Checks: checks, Pending: pending}
}
