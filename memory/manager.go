/*
Physical page allocator.

The allocator owns every page between the end of the kernel image and the end of
physical memory, and hands them out one whole 4096-byte page at a time to page tables,
process memory, kernel stacks and pipe buffers.

Every cpu has its own free list protected by its own spinlock, so alloc/free on
different cpus do not contend. When the free list of the cpu is empty, alloc steals
from the other cpus, visiting them in index order and holding one lock at a time.
A freed page always goes back to the free list of the cpu that frees it, not to the one
it was allocated from. This keeps free a single-lock operation.

Pages are filled with junk on alloc and on free, with different values. A caller that
reads a page before writing it, or that keeps using a page after freeing it, sees junk
instead of plausible data.

At boot, all pages are pushed onto the free list of the boot cpu.
*/
package memory

import (
	"bytes"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/HayatoShiba/xvmem/common"
	"github.com/HayatoShiba/xvmem/metrics"
	"github.com/HayatoShiba/xvmem/param"
)

// Addr is the physical address of a page
type Addr uint64

// ErrNoFreePage is returned by Alloc when no cpu has a free page.
// the caller decides how to handle it (e.g. fail the operation which needs the page)
var ErrNoFreePage = errors.New("kalloc: no free page")

const (
	// AllocJunk is written over a page when it is allocated
	AllocJunk byte = 5
	// FreeJunk is written over a page when it is freed, to catch dangling references
	FreeJunk byte = 1
)

var (
	allocPattern = bytes.Repeat([]byte{AllocJunk}, param.PGSIZE)
	freePattern  = bytes.Repeat([]byte{FreeJunk}, param.PGSIZE)
)

// Manager is the physical page allocator
type Manager struct {
	// kernelEnd is the first address after the kernel. no page below it is managed
	kernelEnd uint64
	// phyStop is the end of physical memory
	phyStop uint64
	// base is the address of the first managed page (kernelEnd rounded up)
	base uint64
	// arena is the memory of the managed pages. page i is arena[i*PGSIZE:(i+1)*PGSIZE]
	arena []byte
	// next links the free pages. next[i] is the page after page i on its free list
	next []int
	// freeLists are the per-cpu free lists
	freeLists []freeList

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures the Manager
type Option func(*Manager)

// WithLogger sets the logger. zap.NewNop() is used by default
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l.Named("kalloc")
		}
	}
}

// WithMetrics sets the collectors the allocator reports to
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		if mt != nil {
			m.metrics = mt
		}
	}
}

// NewManager initializes the allocator with all pages in [KernelEnd, PhysTop)
// on the free list of the boot cpu
func NewManager(cfg param.Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	base := param.PGROUNDUP(cfg.KernelEnd)
	npages := int((cfg.PhysTop - base) / param.PGSIZE)
	arena, err := mapArena(npages * param.PGSIZE)
	if err != nil {
		return nil, errors.Wrap(err, "mapArena failed")
	}

	m := &Manager{
		kernelEnd: cfg.KernelEnd,
		phyStop:   cfg.PhysTop,
		base:      base,
		arena:     arena,
		next:      make([]int, npages),
		freeLists: newFreeLists(cfg.CPUs),
		logger:    zap.NewNop(),
		metrics:   metrics.New(nil),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.freeRange(base, cfg.PhysTop)
	m.logger.Info("physical memory initialized",
		zap.String("start", hex(base)), zap.String("end", hex(cfg.PhysTop)),
		zap.Int("pages", npages), zap.Int("cpus", cfg.CPUs))
	return m, nil
}

// freeRange pushes every whole page in [start, end) onto the boot cpu's free list.
// pages are not scrubbed here
func (m *Manager) freeRange(start, end uint64) {
	fl := &m.freeLists[common.BootCPU]
	fl.lock.Lock()
	for p := param.PGROUNDUP(start); p+param.PGSIZE <= end; p += param.PGSIZE {
		m.push(fl, m.index(Addr(p)))
	}
	fl.lock.Unlock()
}

// Alloc allocates one page for cpu and returns its address.
// the page is filled with junk. if no cpu has a free page, ErrNoFreePage is returned
func (m *Manager) Alloc(cpu common.CPUID) (Addr, error) {
	fl := m.freeList(cpu)
	fl.lock.Lock()
	index := m.pop(fl)
	fl.lock.Unlock()
	if index != freeListInvalidID {
		return m.allocated(cpu, index, metrics.SourceLocal), nil
	}

	// the local list is empty. steal from the other cpus one lock at a time
	// the local lock has already been released so two locks are never held together
	for i := range m.freeLists {
		if common.CPUID(i) == cpu {
			continue
		}
		victim := &m.freeLists[i]
		victim.lock.Lock()
		index = m.pop(victim)
		victim.lock.Unlock()
		if index != freeListInvalidID {
			m.logger.Debug("stole page", zap.Int("cpu", int(cpu)), zap.Int("from", i))
			return m.allocated(cpu, index, metrics.SourceSteal), nil
		}
	}

	m.metrics.PageAllocFailures.Inc()
	m.logger.Debug("out of physical memory", zap.Int("cpu", int(cpu)))
	return 0, ErrNoFreePage
}

// allocated scrubs the page removed from a free list and returns its address
func (m *Manager) allocated(cpu common.CPUID, index int, source string) Addr {
	copy(m.page(index), allocPattern)
	m.metrics.PageAllocs.WithLabelValues(strconv.Itoa(int(cpu)), source).Inc()
	return m.addr(index)
}

// Free returns the page at addr, which must have been returned by Alloc,
// to the free list of cpu.
// an address which is not page-aligned or is out of the managed range halts
func (m *Manager) Free(cpu common.CPUID, addr Addr) {
	if !m.valid(addr) {
		common.Halt("kfree: bad address %s", hex(uint64(addr)))
	}
	index := m.index(addr)
	copy(m.page(index), freePattern)

	fl := m.freeList(cpu)
	fl.lock.Lock()
	m.push(fl, index)
	fl.lock.Unlock()
	m.metrics.PageFrees.WithLabelValues(strconv.Itoa(int(cpu))).Inc()
}

// Page returns the contents of the page at addr.
// the caller must own the page (it was returned by Alloc and is not freed yet)
func (m *Manager) Page(addr Addr) []byte {
	if !m.valid(addr) {
		common.Halt("page: bad address %s", hex(uint64(addr)))
	}
	return m.page(m.index(addr))
}

// NumPages returns the number of managed pages
func (m *Manager) NumPages() int {
	return len(m.next)
}

// NumFree returns the number of pages on the free list of cpu
func (m *Manager) NumFree(cpu common.CPUID) int {
	fl := m.freeList(cpu)
	fl.lock.Lock()
	defer fl.lock.Unlock()
	n := 0
	for i := fl.head; i != freeListInvalidID; i = m.next[i] {
		n++
	}
	return n
}

// Range returns the first managed page and the end of physical memory
func (m *Manager) Range() (Addr, Addr) {
	return Addr(m.base), Addr(m.phyStop)
}

// valid checks that addr is a page-aligned address of a managed page
func (m *Manager) valid(addr Addr) bool {
	a := uint64(addr)
	if a%param.PGSIZE != 0 || a < m.kernelEnd || a >= m.phyStop {
		return false
	}
	// phyStop may not be page-aligned, so the last partial page is not managed
	return int((a-m.base)/param.PGSIZE) < len(m.next)
}

// freeList returns the free list of cpu
func (m *Manager) freeList(cpu common.CPUID) *freeList {
	if cpu < 0 || int(cpu) >= len(m.freeLists) {
		common.Halt("kalloc: cpu %d out of range", cpu)
	}
	return &m.freeLists[cpu]
}

func (m *Manager) index(addr Addr) int {
	return int((uint64(addr) - m.base) / param.PGSIZE)
}

func (m *Manager) addr(index int) Addr {
	return Addr(m.base + uint64(index)*param.PGSIZE)
}

func (m *Manager) page(index int) []byte {
	off := index * param.PGSIZE
	return m.arena[off : off+param.PGSIZE : off+param.PGSIZE]
}

func hex(a uint64) string {
	return "0x" + strconv.FormatUint(a, 16)
}
