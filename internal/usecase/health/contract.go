package health

import (
	"context"

	domdef "github.com/kailas-cloud/solango/internal/domain/deferred"
)

// BackendChecker reports search backend availability.
type BackendChecker interface {
	Available(ctx context.Context) bool
}

// QueuePinger checks deferred queue storage connectivity.
type QueuePinger interface {
	Ping(ctx context.Context) error
}

// QueueLister lists pending deferred records.
type QueueLister interface {
	List(ctx context.Context) ([]domdef.Record, error)
}
