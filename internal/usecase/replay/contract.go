package replay

import (
	"context"

	domdef "github.com/kailas-cloud/solango/internal/domain/deferred"
	"github.com/kailas-cloud/solango/internal/domain/result"
)

// Queue is the deferred write store being drained.
type Queue interface {
	List(ctx context.Context) ([]domdef.Record, error)
	Remove(ctx context.Context, id string) error
	Update(ctx context.Context, id, errMsg string) error
}

// Poster replays a raw update payload against the backend.
type Poster interface {
	Post(ctx context.Context, method, payload string) *result.Update
}

// Locker guards a drain against concurrent drains.
type Locker interface {
	TryLock() (bool, error)
	Unlock() error
}
