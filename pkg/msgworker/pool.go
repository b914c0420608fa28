package msgworker

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is one unit of webhook work. Jobs sharing TenantID and ChatKey always
// land on the same worker and run in dispatch order.
type Job struct {
	TenantID string
	ChatKey  string
	Handler  func(ctx context.Context) error
}

func (j Job) key() string {
	return j.TenantID + "|" + j.ChatKey
}

// PoolStats contiene métricas en tiempo real del worker pool
type PoolStats struct {
	NumWorkers      int                    `json:"num_workers"`
	QueueSize       int                    `json:"queue_size"`
	ActiveWorkers   int                    `json:"active_workers"`
	TotalDispatched int64                  `json:"total_dispatched"`
	TotalProcessed  int64                  `json:"total_processed"`
	TotalDropped    int64                  `json:"total_dropped"`
	TotalErrors     int64                  `json:"total_errors"`
	Uptime          string                 `json:"uptime"`
	WorkerStats     []WorkerStats          `json:"worker_stats"`
	ActiveChats     map[string]int         `json:"active_chats"` // tenant|chat -> worker_id
	Tenants         map[string]TenantStats `json:"tenants"`
}

// TenantStats cuenta jobs por tenant desde el arranque del pool
type TenantStats struct {
	Dispatched int64 `json:"dispatched"`
	Processed  int64 `json:"processed"`
	Dropped    int64 `json:"dropped"`
	Errors     int64 `json:"errors"`
}

// WorkerStats contiene métricas por worker individual
type WorkerStats struct {
	WorkerID      int   `json:"worker_id"`
	QueueDepth    int   `json:"queue_depth"`
	IsProcessing  bool  `json:"is_processing"`
	JobsProcessed int64 `json:"jobs_processed"`
}

type activeChatEntry struct {
	workerID  int
	updatedAt time.Time
}

const activeChatTTL = 2 * time.Second

// Pool is a sharded worker pool: one queue per worker, chats hashed to workers.
type Pool struct {
	numWorkers int
	queueSize  int
	workers    []*worker
	wg         sync.WaitGroup
	stopOnce   sync.Once
	stopped    int32
	stopCh     chan struct{}

	totalDispatched int64
	totalProcessed  int64
	totalDropped    int64
	totalErrors     int64
	activeChatsMu   sync.Mutex
	activeChats     map[string]activeChatEntry
	startTime       time.Time
	tenantsMu       sync.Mutex
	tenants         map[string]*TenantStats

	// JobTimeout acota cada Handler; 0 = sin límite
	JobTimeout time.Duration

	// Hooks para monitoreo externo
	OnJobStart func(workerID int, chatKey string)
	OnJobEnd   func(workerID int, chatKey string, err error)
	OnDrop     func(chatKey string)
}

type worker struct {
	id            int
	jobQueue      chan Job
	ctx           context.Context
	cancel        context.CancelFunc
	isProcessing  int32
	jobsProcessed int64
	pool          *Pool
}

// NewPool crea un pool; valores <= 0 usan los defaults.
func NewPool(numWorkers, queueSize int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 8
	}
	if queueSize <= 0 {
		queueSize = 500
	}

	return &Pool{
		numWorkers:  numWorkers,
		queueSize:   queueSize,
		workers:     make([]*worker, numWorkers),
		activeChats: make(map[string]activeChatEntry),
		tenants:     make(map[string]*TenantStats),
		stopCh:      make(chan struct{}),
		startTime:   time.Now(),
	}
}

// Start inicia todos los workers del pool
func (p *Pool) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.reapActiveChats(ctx)

	for i := 0; i < p.numWorkers; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		w := &worker{
			id:       i,
			jobQueue: make(chan Job, p.queueSize),
			ctx:      workerCtx,
			cancel:   cancel,
			pool:     p,
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(&p.wg)
	}

	logrus.Infof("[MSG_WORKER_POOL] Started with %d workers, queue size: %d", p.numWorkers, p.queueSize)
}

func (p *Pool) reapActiveChats(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			p.activeChatsMu.Lock()
			for k, v := range p.activeChats {
				if now.Sub(v.updatedAt) > activeChatTTL {
					delete(p.activeChats, k)
				}
			}
			p.activeChatsMu.Unlock()
		}
	}
}

// TryDispatch encola el job sin bloquear y retorna si pudo encolarse.
func (p *Pool) TryDispatch(job Job) bool {
	chatKey := job.key()
	if atomic.LoadInt32(&p.stopped) == 1 {
		p.drop(job)
		return false
	}

	shard := p.shardFor(chatKey)
	atomic.AddInt64(&p.totalDispatched, 1)
	p.countTenant(job.TenantID, func(ts *TenantStats) { ts.Dispatched++ })

	p.activeChatsMu.Lock()
	p.activeChats[chatKey] = activeChatEntry{workerID: shard, updatedAt: time.Now()}
	p.activeChatsMu.Unlock()

	sent := func() (ok bool) {
		// Stop may close the queue between the stopped check and the send.
		defer func() {
			if r := recover(); r != nil {
				ok = false
			}
		}()
		select {
		case p.workers[shard].jobQueue <- job:
			return true
		default:
			return false
		}
	}()

	if sent {
		return true
	}

	p.activeChatsMu.Lock()
	delete(p.activeChats, chatKey)
	p.activeChatsMu.Unlock()

	p.drop(job)
	logrus.Warnf("[MSG_WORKER_POOL] Worker %d queue full (or stopped), dropping job for %s", shard, chatKey)
	return false
}

// Dispatch envía un job al worker apropiado (no bloqueante)
func (p *Pool) Dispatch(job Job) {
	_ = p.TryDispatch(job)
}

func (p *Pool) drop(job Job) {
	atomic.AddInt64(&p.totalDropped, 1)
	p.countTenant(job.TenantID, func(ts *TenantStats) { ts.Dropped++ })
	if p.OnDrop != nil {
		p.OnDrop(job.key())
	}
}

func (p *Pool) countTenant(tenantID string, fn func(*TenantStats)) {
	p.tenantsMu.Lock()
	defer p.tenantsMu.Unlock()
	ts, ok := p.tenants[tenantID]
	if !ok {
		ts = &TenantStats{}
		p.tenants[tenantID] = ts
	}
	fn(ts)
}

// Stop detiene el pool; los jobs ya encolados se procesan antes de salir.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		atomic.StoreInt32(&p.stopped, 1)
		close(p.stopCh)
		logrus.Info("[MSG_WORKER_POOL] Stopping workers...")

		for _, w := range p.workers {
			if w == nil {
				continue
			}
			w.cancel()
			close(w.jobQueue)
		}

		p.wg.Wait()
		logrus.Info("[MSG_WORKER_POOL] All workers stopped")
	})
}

func (p *Pool) shardFor(chatKey string) int {
	h := fnv.New32a()
	h.Write([]byte(chatKey))
	return int(h.Sum32() % uint32(p.numWorkers))
}

// GetStats retorna estadísticas en tiempo real del pool
func (p *Pool) GetStats() PoolStats {
	workerStats := make([]WorkerStats, 0, len(p.workers))
	activeWorkers := 0

	for _, w := range p.workers {
		if w == nil {
			continue
		}
		isProcessing := atomic.LoadInt32(&w.isProcessing) == 1
		if isProcessing {
			activeWorkers++
		}
		workerStats = append(workerStats, WorkerStats{
			WorkerID:      w.id,
			QueueDepth:    len(w.jobQueue),
			IsProcessing:  isProcessing,
			JobsProcessed: atomic.LoadInt64(&w.jobsProcessed),
		})
	}

	now := time.Now()
	p.activeChatsMu.Lock()
	activeChats := make(map[string]int, len(p.activeChats))
	for k, v := range p.activeChats {
		if now.Sub(v.updatedAt) > activeChatTTL {
			delete(p.activeChats, k)
			continue
		}
		activeChats[k] = v.workerID
	}
	p.activeChatsMu.Unlock()

	p.tenantsMu.Lock()
	tenants := make(map[string]TenantStats, len(p.tenants))
	for id, ts := range p.tenants {
		tenants[id] = *ts
	}
	p.tenantsMu.Unlock()

	return PoolStats{
		NumWorkers:      p.numWorkers,
		QueueSize:       p.queueSize,
		ActiveWorkers:   activeWorkers,
		TotalDispatched: atomic.LoadInt64(&p.totalDispatched),
		TotalProcessed:  atomic.LoadInt64(&p.totalProcessed),
		TotalDropped:    atomic.LoadInt64(&p.totalDropped),
		TotalErrors:     atomic.LoadInt64(&p.totalErrors),
		Uptime:          time.Since(p.startTime).Round(time.Second).String(),
		WorkerStats:     workerStats,
		ActiveChats:     activeChats,
		Tenants:         tenants,
	}
}

func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()
	logrus.Debugf("[MSG_WORKER_POOL] Worker %d started", w.id)

	for {
		select {
		case job, ok := <-w.jobQueue:
			if !ok {
				logrus.Debugf("[MSG_WORKER_POOL] Worker %d shutting down", w.id)
				return
			}
			w.process(job)

		case <-w.ctx.Done():
			logrus.Debugf("[MSG_WORKER_POOL] Worker %d context cancelled, draining queue...", w.id)
			w.drainQueue()
			return
		}
	}
}

// process ejecuta un job con recover para que un panic no mate al worker.
func (w *worker) process(job Job) {
	chatKey := job.key()
	pool := w.pool

	if pool.OnJobStart != nil {
		pool.OnJobStart(w.id, chatKey)
	}
	atomic.StoreInt32(&w.isProcessing, 1)

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			logrus.Errorf("[MSG_WORKER_POOL] Worker %d panic for %s: %v", w.id, chatKey, r)
		}
		if err != nil {
			atomic.AddInt64(&pool.totalErrors, 1)
		}
		pool.countTenant(job.TenantID, func(ts *TenantStats) {
			ts.Processed++
			if err != nil {
				ts.Errors++
			}
		})
		if pool.OnJobEnd != nil {
			pool.OnJobEnd(w.id, chatKey, err)
		}
		atomic.StoreInt32(&w.isProcessing, 0)
		atomic.AddInt64(&w.jobsProcessed, 1)
		atomic.AddInt64(&pool.totalProcessed, 1)
	}()

	// Drained jobs still need a live context to reach the database.
	ctx := w.ctx
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	if pool.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pool.JobTimeout)
		defer cancel()
	}

	err = job.Handler(ctx)
	if err != nil {
		logrus.WithError(err).Errorf("[MSG_WORKER_POOL] Worker %d job failed for %s", w.id, chatKey)
	}
}

func (w *worker) drainQueue() {
	for {
		select {
		case job, ok := <-w.jobQueue:
			if !ok {
				return
			}
			w.process(job)
		default:
			return
		}
	}
}
