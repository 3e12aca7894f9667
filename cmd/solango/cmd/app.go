package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/solango/internal/config"
	dbRedis "github.com/kailas-cloud/solango/internal/db/redis"
	"github.com/kailas-cloud/solango/internal/domain/registry"
	"github.com/kailas-cloud/solango/internal/lease"
	logpkg "github.com/kailas-cloud/solango/internal/logger"
	deferredrepo "github.com/kailas-cloud/solango/internal/repository/deferred"
	"github.com/kailas-cloud/solango/internal/repository/records"
	"github.com/kailas-cloud/solango/internal/transport/solr"
	healthuc "github.com/kailas-cloud/solango/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/solango/internal/usecase/indexing"
	replayuc "github.com/kailas-cloud/solango/internal/usecase/replay"
	searchuc "github.com/kailas-cloud/solango/internal/usecase/search"
)

// deferredQueue is the full contract every deferred backend satisfies.
type deferredQueue interface {
	indexinguc.Queue
	indexinguc.KeyQueue
	replayuc.Queue
	Close() error
}

// app is the composition root shared by the commands. Backend, queue and
// record store are opened on first use so that offline commands such as
// schema never touch the network.
type app struct {
	env     string
	cfg     config.Config
	logger  *zap.Logger
	schemas *registry.Registry

	conn    *solr.Connection
	queue   deferredQueue
	pinger  healthuc.QueuePinger
	records *records.Store
	closers []func()
}

func newApp(opts *rootOptions) (*app, error) {
	var (
		cfg config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load(opts.env)
	}
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	logger, err := logpkg.NewLogger(opts.env, level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	schemas, err := cfg.Registry()
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	return &app{env: opts.env, cfg: cfg, logger: logger, schemas: schemas}, nil
}

// Close releases everything opened by the app in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}

func (a *app) connection() *solr.Connection {
	if a.conn == nil {
		b := a.cfg.Backend
		a.conn = solr.New(&solr.Config{
			UpdateURL: b.UpdateURL,
			SelectURL: b.SelectURL,
			PingURLs:  b.PingURLs,
			Timeout:   time.Duration(b.TimeoutSec) * time.Second,
			Staleness: time.Duration(b.StalenessSec) * time.Second,
			Logger:    a.logger,
		})
	}
	return a.conn
}

// deferred opens the configured deferred queue backend.
func (a *app) deferred(ctx context.Context) (deferredQueue, error) {
	if a.queue != nil {
		return a.queue, nil
	}

	d := a.cfg.Deferred
	switch d.Backend {
	case config.DeferredMemory:
		a.queue = deferredrepo.NewMemory()
	case config.DeferredNone:
		a.queue = deferredrepo.Noop{}
	case config.DeferredSQLite:
		q, err := deferredrepo.OpenSQLite(ctx, d.SQLite.Path)
		if err != nil {
			return nil, err
		}
		a.queue, a.pinger = q, q
	case config.DeferredBadger:
		q, err := deferredrepo.OpenBadger(d.Badger.Dir)
		if err != nil {
			return nil, err
		}
		a.queue = q
	case config.DeferredRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    d.Redis.Addrs,
			Password: d.Redis.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		if err := store.WaitForReady(ctx, time.Duration(d.Redis.ReadinessTimeout)*time.Second); err != nil {
			store.Close()
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.queue, a.pinger = deferredrepo.NewRedis(store, d.Redis.KeyPrefix), store
	default:
		return nil, fmt.Errorf("unknown deferred backend %q", d.Backend)
	}

	q := a.queue
	a.closers = append(a.closers, func() {
		if err := q.Close(); err != nil {
			a.logger.Warn("Failed to close deferred queue", zap.Error(err))
		}
	})
	a.logger.Debug("Deferred queue opened", zap.String("backend", d.Backend))
	return a.queue, nil
}

func (a *app) recordStore() (*records.Store, error) {
	if a.records != nil {
		return a.records, nil
	}
	if a.cfg.Records.Path == "" {
		return nil, errors.New("records.path is not configured")
	}
	s, err := records.Open(a.cfg.Records.Path)
	if err != nil {
		return nil, err
	}
	a.records = s
	return s, nil
}

func (a *app) indexing(ctx context.Context) (*indexinguc.Service, error) {
	q, err := a.deferred(ctx)
	if err != nil {
		return nil, err
	}
	svc := indexinguc.New(a.connection(), q, a.schemas, a.logger).
		WithBatchSize(a.cfg.Index.BatchSize).
		WithWorkers(a.cfg.Index.Workers).
		WithKeyQueue(q, false)
	if a.cfg.Records.Path != "" {
		recs, err := a.recordStore()
		if err != nil {
			return nil, err
		}
		svc.WithRecords(recs)
	}
	return svc, nil
}

func (a *app) replay(ctx context.Context) (*replayuc.Service, error) {
	q, err := a.deferred(ctx)
	if err != nil {
		return nil, err
	}
	svc := replayuc.New(q, a.connection(), a.logger)
	if p := a.cfg.Deferred.LockPath; p != "" {
		svc.WithLocker(lease.NewFileLock(p))
	}
	return svc, nil
}

func (a *app) search() (*searchuc.Service, error) {
	defaults, err := a.cfg.Search.Query()
	if err != nil {
		return nil, err
	}
	return searchuc.New(a.connection(), a.schemas).
		WithDefaults(defaults).
		WithFacetOptions(a.cfg.FacetOptions()), nil
}

func (a *app) health(ctx context.Context) (*healthuc.Service, error) {
	q, err := a.deferred(ctx)
	if err != nil {
		return nil, err
	}
	return healthuc.New(a.connection(), a.pinger, q), nil
}
