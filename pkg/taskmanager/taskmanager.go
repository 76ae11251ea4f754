// Package taskmanager implements spec §4.12's façade: the single entry
// point external producers (transport routes, the importer) use to push
// work onto the three queue groups, plus the start/stop/join protocol that
// brings up and tears down the three worker pools in a fixed order.
//
// Grounded on cuemby-warren's top-level manager type (one struct owning
// every subsystem's handle, a stopping flag, and an explicit start/stop
// pair other packages call into) generalised from one subsystem to the
// three-pool, three-queue-group pipeline this domain needs.
package taskmanager

import (
	"sync"
	"time"

	"github.com/cuemby/restpose/pkg/checkpoint"
	"github.com/cuemby/restpose/pkg/collection"
	"github.com/cuemby/restpose/pkg/log"
	"github.com/cuemby/restpose/pkg/queuegroup"
	"github.com/cuemby/restpose/pkg/workerpool"
)

// Config tunes queue watermarks, pool sizes, and the indexing pool's idle
// commit timer.
type Config struct {
	SearchWorkers     int
	ProcessingWorkers int
	IndexingWorkers   int

	QueueThrottle int
	QueueMax      int

	IdleCommitTimeout time.Duration
}

// DefaultConfig returns reasonable pool sizes and watermarks for a single
// process serving a handful of collections.
func DefaultConfig() Config {
	return Config{
		SearchWorkers:     4,
		ProcessingWorkers: 4,
		IndexingWorkers:   2,
		QueueThrottle:     256,
		QueueMax:          1024,
		IdleCommitTimeout: 2 * time.Second,
	}
}

// Manager is the task manager façade of spec §4.12.
type Manager struct {
	cfg  Config
	pool *collection.Pool

	search     *queuegroup.Group
	processing *queuegroup.Group
	indexing   *queuegroup.Group

	searchPool     *workerpool.Pool
	processingPool *workerpool.Pool
	indexingPool   *workerpool.Pool

	mu          sync.Mutex
	stopping    bool
	checkpoints map[string]*checkpoint.Registry
}

// New returns a Manager over pool, with its queue groups created but its
// worker pools not yet started; call Start to begin processing.
func New(pool *collection.Pool, cfg Config) *Manager {
	return &Manager{
		cfg:         cfg,
		pool:        pool,
		search:      queuegroup.New(cfg.QueueThrottle, cfg.QueueMax, nil),
		processing:  queuegroup.New(cfg.QueueThrottle, cfg.QueueMax, nil),
		indexing:    queuegroup.New(cfg.QueueThrottle, cfg.QueueMax, nil),
		checkpoints: make(map[string]*checkpoint.Registry),
	}
}

// checkpointsFor returns collName's checkpoint registry, creating it on
// first reference. Checkpoints are in-memory only (spec §6.4) — nothing
// here touches the backend.
func (m *Manager) checkpointsFor(collName string) *checkpoint.Registry {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.checkpoints[collName]
	if !ok {
		reg = checkpoint.NewRegistry()
		m.checkpoints[collName] = reg
	}
	return reg
}

func (m *Manager) isStopping() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopping
}

// Start spawns the three worker pools, per spec §4.12 step 1.
func (m *Manager) Start() {
	m.searchPool = workerpool.SearchPool(m.cfg.SearchWorkers, m.search, m.pool)
	m.processingPool = workerpool.ProcessingPool(m.cfg.ProcessingWorkers, m.processing, m.pool, m)
	m.indexingPool = workerpool.IndexingPool(m.cfg.IndexingWorkers, m.indexing, m.pool, m.cfg.IdleCommitTimeout)
	log.Info("task manager started")
}

// Stop sets the stopping flag (new pushes are rejected from here on, per
// isStopping's checks in the queue_* methods) and closes the processing
// and search queue groups, per spec §4.12 step 2. It does not block; call
// Join to wait for drain and pool shutdown.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopping = true
	m.mu.Unlock()

	m.processing.Close()
	m.search.Close()
	log.Info("task manager stopping")
}

// Join waits for every pending task to finish and every worker to exit, in
// the exact order spec §4.12 step 3 specifies: processing drains first (so
// nothing more is produced for indexing), then indexing's queues are
// closed, then each pool is waited on in turn.
func (m *Manager) Join() {
	m.processing.WaitEmpty()
	m.indexing.Close()
	m.processingPool.Wait()

	m.search.WaitEmpty()
	m.searchPool.Wait()

	m.indexing.WaitEmpty()
	m.indexingPool.Wait()

	log.Info("task manager stopped")
}
