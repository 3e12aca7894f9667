package deferred

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kailas-cloud/solango/internal/domain"
	domdef "github.com/kailas-cloud/solango/internal/domain/deferred"
)

// DefaultKeyPrefix namespaces deferred hashes in Redis.
const DefaultKeyPrefix = "solango:deferred:"

const (
	hashID        = "id"
	hashMethod    = "method"
	hashDocKey    = "doc_key"
	hashPayload   = "payload"
	hashError     = "error"
	hashTimestamp = "timestamp"
	hashTypeKey   = "type_key"
	hashRecordID  = "record_id"
)

// hashStore is the subset of db.HashStore the queue uses.
type hashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetIfExists(ctx context.Context, key, field, value string) (bool, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	ScanHashes(ctx context.Context, pattern string) ([]string, error)
}

// Redis stores one hash per record under a shared key prefix. Queued
// record keys live under a sibling prefix, "<prefix>.queued:", which the
// record scan pattern does not match.
type Redis struct {
	store         hashStore
	prefix        string
	pendingPrefix string
	now           func() time.Time
}

// NewRedis creates a Redis-backed queue. An empty prefix uses DefaultKeyPrefix.
func NewRedis(s hashStore, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Redis{
		store:         s,
		prefix:        prefix,
		pendingPrefix: strings.TrimSuffix(prefix, ":") + ".queued:",
		now:           time.Now,
	}
}

// WithClock overrides the timestamp source.
func (r *Redis) WithClock(now func() time.Time) *Redis {
	r.now = now
	return r
}

// Enqueue stores a new record.
func (r *Redis) Enqueue(
	ctx context.Context, method domdef.Method, payload, docKey, errMsg string,
) (domdef.Record, error) {
	rec, err := domdef.New(method, payload, docKey, errMsg, r.now())
	if err != nil {
		return domdef.Record{}, err
	}
	if err := r.store.HSet(ctx, r.key(rec.ID), toHash(rec)); err != nil {
		return domdef.Record{}, fmt.Errorf("hset %s: %w", rec.ID, err)
	}
	return rec, nil
}

// List returns all records oldest first. Hashes that vanish between scan
// and read are skipped.
func (r *Redis) List(ctx context.Context) ([]domdef.Record, error) {
	keys, err := r.store.ScanHashes(ctx, r.prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan deferred: %w", err)
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("read deferred: %w", err)
	}

	out := make([]domdef.Record, 0, len(hashes))
	for i, h := range hashes {
		if len(h) == 0 {
			continue
		}
		rec, err := fromHash(h)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		out = append(out, rec)
	}
	slices.SortFunc(out, domdef.Compare)
	return out, nil
}

// Remove deletes a record.
func (r *Redis) Remove(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.key(id)); err != nil {
		return fmt.Errorf("del %s: %w", id, err)
	}
	return nil
}

// Update replaces the error message of a record. A record removed by a
// concurrent drain is not recreated.
func (r *Redis) Update(ctx context.Context, id, errMsg string) error {
	ok, err := r.store.HSetIfExists(ctx, r.key(id), hashError, errMsg)
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("update %s: %w", id, domain.ErrDeferredNotFound)
	}
	return nil
}

// Push queues a record key.
func (r *Redis) Push(ctx context.Context, typeKey, recordID string) (domdef.Pending, error) {
	p, err := domdef.NewPending(typeKey, recordID, r.now())
	if err != nil {
		return domdef.Pending{}, err
	}
	err = r.store.HSet(ctx, r.pendingPrefix+p.ID, map[string]string{
		hashID:        p.ID,
		hashTypeKey:   p.TypeKey,
		hashRecordID:  p.RecordID,
		hashTimestamp: p.Timestamp.Format(time.RFC3339Nano),
	})
	if err != nil {
		return domdef.Pending{}, fmt.Errorf("hset %s: %w", p.ID, err)
	}
	return p, nil
}

// Pending returns the queued keys oldest first.
func (r *Redis) Pending(ctx context.Context) ([]domdef.Pending, error) {
	keys, err := r.store.ScanHashes(ctx, r.pendingPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan queued keys: %w", err)
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("read queued keys: %w", err)
	}
	out := make([]domdef.Pending, 0, len(hashes))
	for i, h := range hashes {
		if len(h) == 0 {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, h[hashTimestamp])
		if err != nil {
			return nil, fmt.Errorf("decode %s: parse timestamp: %w", keys[i], err)
		}
		out = append(out, domdef.Pending{
			ID:        h[hashID],
			TypeKey:   h[hashTypeKey],
			RecordID:  h[hashRecordID],
			Timestamp: ts.UTC(),
		})
	}
	slices.SortFunc(out, domdef.ComparePending)
	return out, nil
}

// Ack removes queued keys by id with a single DEL.
func (r *Redis) Ack(ctx context.Context, ids ...string) error {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.pendingPrefix + id
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("ack %d queued keys: %w", len(ids), err)
	}
	return nil
}

// Close is a no-op; the store is owned by the caller.
func (r *Redis) Close() error { return nil }

func (r *Redis) key(id string) string { return r.prefix + id }

func toHash(rec domdef.Record) map[string]string {
	return map[string]string{
		hashID:        rec.ID,
		hashMethod:    string(rec.Method),
		hashDocKey:    rec.DocKey,
		hashPayload:   rec.Payload,
		hashError:     rec.Error,
		hashTimestamp: rec.Timestamp.Format(time.RFC3339Nano),
	}
}

func fromHash(h map[string]string) (domdef.Record, error) {
	method, err := domdef.ParseMethod(h[hashMethod])
	if err != nil {
		return domdef.Record{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, h[hashTimestamp])
	if err != nil {
		return domdef.Record{}, fmt.Errorf("parse timestamp: %w", err)
	}
	if strings.TrimSpace(h[hashID]) == "" {
		return domdef.Record{}, errors.New("missing id")
	}
	return domdef.Record{
		ID:        h[hashID],
		Method:    method,
		DocKey:    h[hashDocKey],
		Payload:   h[hashPayload],
		Error:     h[hashError],
		Timestamp: ts.UTC(),
	}, nil
}
