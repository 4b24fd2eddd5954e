/*
Buffer cache manages a fixed pool of buffers holding cached copies of device blocks.
Caching blocks in memory reduces device reads, and it also gives the goroutines using
the same block a single place to synchronize on.

the methods as main entry point are described below
- Acquire returns a buffer locked by the calling process, holding the valid content of the block
- Commit writes the content of a locked buffer to the device. only the process holding the lock may call it
- Release unlocks the buffer and drops the caller's reference. the buffer must not be used afterward
- Pin/Unpin keep a buffer cached without holding its lock

Only one goroutine at a time can use a buffer, so it should not be kept longer than necessary.

# The list of locks used for the buffer cache

- bucket lock (spinlock, one per bucket):
  - this protects the bucket chain, and the identity/reference count/timestamp
    of the buffers whose identity hashes into the bucket

- global cache lock (spinlock):
  - this serializes the insertion of repurposed buffers.
    it is always taken before the target bucket lock

- buffer lock (sleeplock, one per buffer):
  - this protects the content and the valid flag. it is never taken while a spinlock is held

---

The common path, a block which is already cached, takes a single bucket lock.
A miss runs the eviction scan (see eviction.go) and then, under the global lock and
the target bucket lock, inserts the chosen buffer into the target bucket.
Before the chosen buffer is repurposed, the target bucket is searched again:
a concurrent Acquire of the same block may have inserted it while the scan was running.
In that case the block found is returned, and the chosen buffer stays on the target chain
without identity until a later scan takes it again.
*/
package buffer

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/HayatoShiba/xvmem/common"
	"github.com/HayatoShiba/xvmem/lock"
	"github.com/HayatoShiba/xvmem/metrics"
	"github.com/HayatoShiba/xvmem/param"
	"github.com/HayatoShiba/xvmem/storage/disk"
)

// Driver transfers block contents between buffers and devices.
// ReadWrite returns after the transfer has completed
type Driver interface {
	ReadWrite(blk disk.Block, write bool) error
}

// Manager is the buffer cache
type Manager struct {
	// driver fills and flushes buffer contents
	driver Driver
	// buffers are the buffer slots. the number never changes
	buffers []Buffer
	// buckets are the shards of the hash table
	buckets []bucket
	// lock is the global cache lock
	lock lock.Spinlock
	// clock stamps released buffers
	clock Clock

	logger  *zap.Logger
	metrics *metrics.Metrics

	// testHookBeforeScan is called between the lookup miss and the eviction scan if it is set
	testHookBeforeScan func()
	// testHookAfterScan is called between the eviction scan and the insertion if it is set
	testHookAfterScan func()
}

// Option configures the Manager
type Option func(*Manager)

// WithLogger sets the logger. zap.NewNop() is used by default
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l.Named("bcache")
		}
	}
}

// WithMetrics sets the collectors the cache reports to
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		if mt != nil {
			m.metrics = mt
		}
	}
}

// WithClock sets the clock of release timestamps. a TickClock is used by default
func WithClock(c Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// NewManager initializes the buffer cache with cfg.Buffers buffers and cfg.Buckets buckets.
// all buffers start invalid and unreferenced on the chain of the first bucket
func NewManager(driver Driver, cfg param.Config, opts ...Option) (*Manager, error) {
	if driver == nil {
		return nil, errors.New("driver must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	m := &Manager{
		driver:  driver,
		buckets: newBuckets(cfg.Buckets),
		clock:   NewTickClock(defaultTickInterval),
		logger:  zap.NewNop(),
		metrics: metrics.New(nil),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lock.Init("bcache")
	m.buffers = newBuffers(cfg.Buffers, m.clock.Now())
	m.buckets[0].head = 0
	m.logger.Info("buffer cache initialized", zap.Int("buffers", cfg.Buffers), zap.Int("buckets", cfg.Buckets))
	return m, nil
}

// Acquire returns the buffer holding the content of the block, locked by pid.
// the content is read from the device if the block is not cached.
// the caller must call Release after it completes using the buffer
func (m *Manager) Acquire(pid common.PID, dev common.Device, blockno common.BlockNo) *Buffer {
	b := m.get(pid, dev, blockno)
	if !b.valid {
		m.readWrite(b, false)
		b.valid = true
	}
	return b
}

// get looks for the block in the cache. if not found, it repurposes an unreferenced buffer.
// in either case the returned buffer is referenced and locked by pid
func (m *Manager) get(pid common.PID, dev common.Device, blockno common.BlockNo) *Buffer {
	target := m.hash(dev, blockno)
	bk := &m.buckets[target]

	// is the block already cached?
	bk.lock.Lock()
	if b := m.lookup(bk, dev, blockno); b != nil {
		b.refcnt++
		bk.lock.Unlock()
		m.metrics.CacheHits.Inc()
		b.lock.Acquire(pid)
		return b
	}
	bk.lock.Unlock()
	m.metrics.CacheMisses.Inc()
	if hook := m.testHookBeforeScan; hook != nil {
		hook()
	}

	// not cached. take the buffer chosen by the eviction scan out of its bucket
	v := m.findVictim()
	if v == nil {
		common.Halt("bget: no buffers")
	}
	cand := v.detach()
	if hook := m.testHookAfterScan; hook != nil {
		hook()
	}

	// global lock first, then the target bucket
	m.lock.Lock()
	bk.lock.Lock()
	// a concurrent get may have inserted the block while the scan was running.
	// cand itself matches when it was the block's own buffer, released during the scan
	b := m.lookup(bk, dev, blockno)
	m.pushFront(bk, cand)
	if b == nil && cand.matches(dev, blockno) {
		b = cand
	}
	if b != nil {
		b.refcnt++
		if b != cand {
			// cand stays on this chain, but without identity it can never shadow b
			cand.ident = false
			cand.valid = false
			m.metrics.CacheLostRaces.Inc()
			m.logger.Debug("block inserted concurrently",
				zap.Uint32("dev", uint32(dev)), zap.Uint32("blockno", uint32(blockno)), zap.Int("buffer", b.id))
		}
		bk.lock.Unlock()
		m.lock.Unlock()
		b.lock.Acquire(pid)
		return b
	}

	if cand.ident {
		m.metrics.CacheEvictions.Inc()
		m.logger.Debug("evicted block",
			zap.Int("buffer", cand.id),
			zap.Uint32("dev", uint32(cand.dev)), zap.Uint32("blockno", uint32(cand.blockno)),
			zap.Uint64("timestamp", cand.timestamp))
	}
	cand.dev = dev
	cand.blockno = blockno
	cand.ident = true
	cand.valid = false
	cand.refcnt = 1
	bk.lock.Unlock()
	m.lock.Unlock()

	cand.lock.Acquire(pid)
	return cand
}

// Release releases the buffer lock held by pid and drops its reference.
// when no reference remains, the buffer is stamped with the clock for the eviction scan.
// releasing a buffer which pid has not locked halts
func (m *Manager) Release(pid common.PID, b *Buffer) {
	if !b.lock.Holding(pid) {
		common.Halt("brelse: buffer %d is not locked by pid %d", b.id, pid)
	}
	b.lock.Release(pid)

	bk := m.bucketOf(b)
	bk.lock.Lock()
	b.refcnt--
	if b.refcnt == 0 {
		b.timestamp = m.clock.Now()
	}
	bk.lock.Unlock()
}

// Commit writes the content of the buffer to the device.
// committing a buffer which pid has not locked halts
func (m *Manager) Commit(pid common.PID, b *Buffer) {
	if !b.lock.Holding(pid) {
		common.Halt("bwrite: buffer %d is not locked by pid %d", b.id, pid)
	}
	m.readWrite(b, true)
}

// Pin adds a reference to the buffer so that it is not evicted
func (m *Manager) Pin(b *Buffer) {
	bk := m.bucketOf(b)
	bk.lock.Lock()
	b.refcnt++
	bk.lock.Unlock()
}

// Unpin drops the reference added by Pin.
// unpinning a buffer which has no reference halts
func (m *Manager) Unpin(b *Buffer) {
	bk := m.bucketOf(b)
	bk.lock.Lock()
	if b.refcnt == 0 {
		bk.lock.Unlock()
		common.Halt("bunpin: buffer %d has no reference", b.id)
	}
	b.refcnt--
	bk.lock.Unlock()
}

// RefCount returns the reference count of the buffer
func (m *Manager) RefCount(b *Buffer) int {
	bk := m.bucketOf(b)
	bk.lock.Lock()
	defer bk.lock.Unlock()
	return b.refcnt
}

// Size returns the number of buffers
func (m *Manager) Size() int {
	return len(m.buffers)
}

// readWrite calls the driver. the buffer lock must be held.
// device failure is not recoverable here
func (m *Manager) readWrite(b *Buffer, write bool) {
	if err := m.driver.ReadWrite(b, write); err != nil {
		common.Halt("disk rw: dev %d block %d: %v", b.dev, b.blockno, err)
	}
}
