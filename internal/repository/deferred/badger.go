package deferred

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/kailas-cloud/solango/internal/domain"
	domdef "github.com/kailas-cloud/solango/internal/domain/deferred"
)

var (
	badgerPrefix        = []byte("deferred/")
	badgerPendingPrefix = []byte("queued/")
)

// Badger stores records as JSON values in an embedded Badger database.
type Badger struct {
	db  *badger.DB
	now func() time.Time
}

// OpenBadger opens (creating if needed) the database in dir. An empty dir
// opens an in-memory database.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db, now: time.Now}, nil
}

// WithClock overrides the timestamp source.
func (b *Badger) WithClock(now func() time.Time) *Badger {
	b.now = now
	return b
}

// Enqueue stores a new record.
func (b *Badger) Enqueue(
	_ context.Context, method domdef.Method, payload, docKey, errMsg string,
) (domdef.Record, error) {
	rec, err := domdef.New(method, payload, docKey, errMsg, b.now())
	if err != nil {
		return domdef.Record{}, err
	}
	if err := b.put(rec); err != nil {
		return domdef.Record{}, err
	}
	return rec, nil
}

// List returns all records oldest first.
func (b *Badger) List(_ context.Context) ([]domdef.Record, error) {
	var out []domdef.Record
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(badgerPrefix); it.ValidForPrefix(badgerPrefix); it.Next() {
			var rec domdef.Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list deferred: %w", err)
	}
	slices.SortFunc(out, domdef.Compare)
	return out, nil
}

// Remove deletes a record.
func (b *Badger) Remove(_ context.Context, id string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(id))
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// Update replaces the error message of a record.
func (b *Badger) Update(_ context.Context, id, errMsg string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrDeferredNotFound
		}
		if err != nil {
			return err
		}
		var rec domdef.Record
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
			return err
		}
		rec.Error = errMsg
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(badgerKey(id), data)
	})
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	return nil
}

// Push queues a record key. Keys sort by their time-ordered id.
func (b *Badger) Push(_ context.Context, typeKey, recordID string) (domdef.Pending, error) {
	p, err := domdef.NewPending(typeKey, recordID, b.now())
	if err != nil {
		return domdef.Pending{}, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return domdef.Pending{}, fmt.Errorf("marshal %s: %w", p.ID, err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(pendingKey(p.ID), data)
	})
	if err != nil {
		return domdef.Pending{}, fmt.Errorf("put %s: %w", p.ID, err)
	}
	return p, nil
}

// Pending returns the queued keys oldest first.
func (b *Badger) Pending(_ context.Context) ([]domdef.Pending, error) {
	var out []domdef.Pending
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: badgerPendingPrefix})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var p domdef.Pending
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &p) }); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list queued keys: %w", err)
	}
	slices.SortFunc(out, domdef.ComparePending)
	return out, nil
}

// Ack removes queued keys by id in a single write batch.
func (b *Badger) Ack(_ context.Context, ids ...string) error {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, id := range ids {
		if err := wb.Delete(pendingKey(id)); err != nil {
			return fmt.Errorf("ack %s: %w", id, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("ack queued keys: %w", err)
	}
	return nil
}

// Close closes the database.
func (b *Badger) Close() error {
	return b.db.Close()
}

func (b *Badger) put(rec domdef.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", rec.ID, err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(rec.ID), data)
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", rec.ID, err)
	}
	return nil
}

func badgerKey(id string) []byte {
	return append(slices.Clone(badgerPrefix), id...)
}

func pendingKey(id string) []byte {
	return append(slices.Clone(badgerPendingPrefix), id...)
}
