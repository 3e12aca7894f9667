package solango

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/solango/internal/db/redis"
	"github.com/kailas-cloud/solango/internal/domain/registry"
	"github.com/kailas-cloud/solango/internal/lease"
	deferredrepo "github.com/kailas-cloud/solango/internal/repository/deferred"
	"github.com/kailas-cloud/solango/internal/repository/records"
	"github.com/kailas-cloud/solango/internal/transport/solr"
	indexinguc "github.com/kailas-cloud/solango/internal/usecase/indexing"
	replayuc "github.com/kailas-cloud/solango/internal/usecase/replay"
	"github.com/kailas-cloud/solango/internal/usecase/schemaxml"
	searchuc "github.com/kailas-cloud/solango/internal/usecase/search"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultKeyPrefix        = "solango:deferred:"
)

// RecordStore enumerates and fetches source records for reindexing.
type RecordStore = indexinguc.RecordStore

// Key addresses one record by type key and id.
type Key = indexinguc.Key

// OpenRecords opens a JSON-lines record file as a RecordStore.
func OpenRecords(path string) (RecordStore, error) {
	s, err := records.Open(path)
	if err != nil {
		return nil, fmt.Errorf("solango: %w", err)
	}
	return s, nil
}

type queue interface {
	indexinguc.Queue
	indexinguc.KeyQueue
	replayuc.Queue
	Close() error
}

// Client is the solango SDK entry point. It keeps a registry of document
// schemas, writes documents to the search backend and defers failed writes.
type Client struct {
	conn      *solr.Connection
	schemas   *registry.Registry
	queue     queue
	closers   []func()
	indexSvc  *indexinguc.Service
	replaySvc *replayuc.Service
	searchSvc *searchuc.Service
	logger    *zap.Logger
}

// New creates a Client. Without a queue option failed writes are kept in memory.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{driver: driverMemory, keyPrefix: defaultKeyPrefix}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.queueSaves && cfg.driver == driverNone {
		return nil, errors.New("solango: queued indexing needs a queue")
	}

	q, closers, err := createQueue(cfg)
	if err != nil {
		return nil, err
	}
	return wireClient(q, closers, cfg), nil
}

func createQueue(cfg *clientConfig) (queue, []func(), error) {
	switch cfg.driver {
	case driverMemory:
		return deferredrepo.NewMemory(), nil, nil
	case driverNone:
		return deferredrepo.Noop{}, nil, nil
	case driverSQLite:
		q, err := deferredrepo.OpenSQLite(context.Background(), cfg.path)
		if err != nil {
			return nil, nil, fmt.Errorf("solango: open sqlite queue: %w", err)
		}
		return q, nil, nil
	case driverBadger:
		q, err := deferredrepo.OpenBadger(cfg.path)
		if err != nil {
			return nil, nil, fmt.Errorf("solango: open badger queue: %w", err)
		}
		return q, nil, nil
	case driverRedis:
		if len(cfg.addrs) == 0 {
			return nil, nil, errors.New("solango: redis address required")
		}
		s, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.addrs, Password: cfg.password})
		if err != nil {
			return nil, nil, fmt.Errorf("solango: create redis store: %w", err)
		}
		if err := s.WaitForReady(context.Background(), defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("solango: redis not ready: %w", err)
		}
		return deferredrepo.NewRedis(s, cfg.keyPrefix), []func(){s.Close}, nil
	default:
		return nil, nil, fmt.Errorf("solango: unknown queue driver %q", cfg.driver)
	}
}

func wireClient(q queue, closers []func(), cfg *clientConfig) *Client {
	conn := solr.New(&solr.Config{
		UpdateURL:  cfg.updateURL,
		SelectURL:  cfg.selectURL,
		PingURLs:   cfg.pingURLs,
		HTTPClient: cfg.httpClient,
		Timeout:    cfg.timeout,
		Staleness:  cfg.staleness,
		Logger:     cfg.logger,
	})
	schemas := registry.New()

	indexSvc := indexinguc.New(conn, q, schemas, cfg.logger)
	if cfg.batchSize > 0 {
		indexSvc.WithBatchSize(cfg.batchSize)
	}
	if cfg.workers > 0 {
		indexSvc.WithWorkers(cfg.workers)
	}
	if cfg.records != nil {
		indexSvc.WithRecords(cfg.records)
	}
	indexSvc.WithKeyQueue(q, cfg.queueSaves)

	replaySvc := replayuc.New(q, conn, cfg.logger)
	if cfg.lockPath != "" {
		replaySvc.WithLocker(lease.NewFileLock(cfg.lockPath))
	}

	searchSvc := searchuc.New(conn, schemas).WithFacetOptions(cfg.facets)
	if cfg.defaults != nil {
		searchSvc.WithDefaults(cfg.defaults)
	}

	return &Client{
		conn:      conn,
		schemas:   schemas,
		queue:     q,
		closers:   closers,
		indexSvc:  indexSvc,
		replaySvc: replaySvc,
		searchSvc: searchSvc,
		logger:    cfg.logger,
	}
}

// Close releases the deferred queue and its connections.
func (c *Client) Close() error {
	err := c.queue.Close()
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	if err != nil {
		return fmt.Errorf("solango: close queue: %w", err)
	}
	return nil
}

// Register adds a schema for typeKey.
func (c *Client) Register(typeKey string, schema *Schema) error {
	return c.schemas.Register(typeKey, schema)
}

// Unregister removes the schema for typeKey.
func (c *Client) Unregister(typeKey string) error {
	return c.schemas.Unregister(typeKey)
}

// Schema returns the schema registered for typeKey.
func (c *Client) Schema(typeKey string) (*Schema, error) {
	return c.schemas.Lookup(typeKey)
}

// Available reports whether the backend answers its ping endpoints.
func (c *Client) Available(ctx context.Context) bool {
	return c.conn.Available(ctx)
}

// Save indexes rec, or removes it when it is not indexable.
func (c *Client) Save(ctx context.Context, rec Record) (IndexReport, error) {
	return c.indexSvc.OnChange(ctx, rec, false)
}

// Delete removes rec from the index.
func (c *Client) Delete(ctx context.Context, rec Record) (IndexReport, error) {
	return c.indexSvc.OnChange(ctx, rec, true)
}

// IndexRecords indexes recs in batches.
func (c *Client) IndexRecords(ctx context.Context, recs ...Record) (IndexReport, error) {
	return c.indexSvc.IndexRecords(ctx, recs)
}

// IndexKeys refetches the addressed records from the record store.
func (c *Client) IndexKeys(ctx context.Context, keys ...Key) (IndexReport, error) {
	return c.indexSvc.IndexKeys(ctx, keys)
}

// IndexQueued indexes the records queued by Save since the last run and
// clears them from the queue. It needs a record store.
func (c *Client) IndexQueued(ctx context.Context) (IndexReport, error) {
	return c.indexSvc.IndexQueued(ctx)
}

// Flush deletes every document from the index and commits.
func (c *Client) Flush(ctx context.Context) error {
	return c.DeleteByQuery(ctx, "*:*")
}

// DeleteByQuery deletes the documents matching q and commits. Failures are
// returned, not deferred.
func (c *Client) DeleteByQuery(ctx context.Context, q string) error {
	if err := c.conn.DeleteByQuery(ctx, q, true).Err(); err != nil {
		return fmt.Errorf("solango: delete by query: %w", err)
	}
	return nil
}

// Reindex indexes every stored record of typeKey. workers > 1 splits the
// records across concurrent batches.
func (c *Client) Reindex(ctx context.Context, typeKey string, workers int) (IndexReport, error) {
	if workers > 1 {
		return c.indexSvc.ReindexParallel(ctx, typeKey, workers)
	}
	return c.indexSvc.Reindex(ctx, typeKey)
}

// Search runs q merged over the client defaults.
func (c *Client) Search(ctx context.Context, q *Query) (*SearchResult, error) {
	return c.searchSvc.Search(ctx, q)
}

// Deferred lists the writes waiting for replay, oldest first.
func (c *Client) Deferred(ctx context.Context) ([]Deferred, error) {
	return c.replaySvc.List(ctx)
}

// Replay drains the deferred queue through the backend.
func (c *Client) Replay(ctx context.Context) (ReplayReport, error) {
	return c.replaySvc.Drain(ctx)
}

// WriteSchemaXML renders the backend schema.xml for every registered type.
func (c *Client) WriteSchemaXML(w io.Writer) error {
	return schemaxml.New(c.schemas).Render(w)
}

type driver string

const (
	driverMemory driver = "memory"
	driverNone   driver = "none"
	driverSQLite driver = "sqlite"
	driverBadger driver = "badger"
	driverRedis  driver = "redis"
)

type clientConfig struct {
	updateURL  string
	selectURL  string
	pingURLs   []string
	httpClient *http.Client
	timeout    time.Duration
	staleness  time.Duration
	logger     *zap.Logger

	driver    driver
	addrs     []string
	password  string
	keyPrefix string
	path      string
	lockPath  string

	batchSize  int
	workers    int
	records    RecordStore
	queueSaves bool
	defaults   *Query
	facets     FacetOptions
}

// Option configures a Client.
type Option func(*clientConfig)

// WithBackend sets the update and select endpoints. Without ping URLs the
// connection pings the default admin endpoint.
func WithBackend(updateURL, selectURL string, pingURLs ...string) Option {
	return func(c *clientConfig) {
		c.updateURL = updateURL
		c.selectURL = selectURL
		c.pingURLs = pingURLs
	}
}

// WithHTTPClient sets the HTTP client used for backend requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = hc }
}

// WithTimeout sets the backend request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.timeout = d }
}

// WithStaleness sets how long a backend availability check stays valid.
func WithStaleness(d time.Duration) Option {
	return func(c *clientConfig) { c.staleness = d }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

// WithoutQueue drops failed writes instead of deferring them.
func WithoutQueue() Option {
	return func(c *clientConfig) { c.driver = driverNone }
}

// WithSQLiteQueue stores failed writes in a SQLite database file.
func WithSQLiteQueue(path string) Option {
	return func(c *clientConfig) {
		c.driver = driverSQLite
		c.path = path
	}
}

// WithBadgerQueue stores failed writes in a Badger directory.
func WithBadgerQueue(dir string) Option {
	return func(c *clientConfig) {
		c.driver = driverBadger
		c.path = dir
	}
}

// WithRedisQueue stores failed writes as Redis hashes.
func WithRedisQueue(addr, password string) Option {
	return func(c *clientConfig) {
		c.driver = driverRedis
		c.addrs = []string{addr}
		c.password = password
	}
}

// WithKeyPrefix sets the Redis key prefix for deferred records.
func WithKeyPrefix(prefix string) Option {
	return func(c *clientConfig) { c.keyPrefix = prefix }
}

// WithReplayLock guards Replay with an exclusive file lock at path.
func WithReplayLock(path string) Option {
	return func(c *clientConfig) { c.lockPath = path }
}

// WithBatchSize sets how many documents go into one update request.
func WithBatchSize(n int) Option {
	return func(c *clientConfig) { c.batchSize = n }
}

// WithWorkers sets the default worker count for parallel reindexing.
func WithWorkers(n int) Option {
	return func(c *clientConfig) { c.workers = n }
}

// WithRecords sets the record store used by Reindex and IndexKeys.
func WithRecords(s RecordStore) Option {
	return func(c *clientConfig) { c.records = s }
}

// WithQueuedIndexing makes Save queue the record key instead of writing it.
// IndexQueued later indexes the queued records. Delete still writes at once.
func WithQueuedIndexing() Option {
	return func(c *clientConfig) { c.queueSaves = true }
}

// WithSearchDefaults merges q under every search.
func WithSearchDefaults(q *Query) Option {
	return func(c *clientConfig) { c.defaults = q }
}

// WithFacetOptions controls how facet labels are resolved.
func WithFacetOptions(opts FacetOptions) Option {
	return func(c *clientConfig) { c.facets = opts }
}
