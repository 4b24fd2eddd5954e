/*
Two lock classes protect the memory core.

Spinlock is for short critical sections: a bucket chain, a per-core free list, the global
cache lock. The holder never sleeps while holding it and the waiter keeps retrying.
It is a single uint32 word updated with compare-and-swap, the same way a buffer header
lock is taken in a shared buffer pool. The waiter yields the processor between attempts
so that goroutines multiplexed on few OS threads still make progress.

Sleeplock is the exclusive-use lock of a buffer. Its holder may keep it across device IO,
so a waiter is suspended until the holder releases it.
*/
package lock

import (
	"runtime"
	"sync/atomic"

	"github.com/HayatoShiba/xvmem/common"
)

const (
	unlocked uint32 = 0
	locked   uint32 = 1
)

// Spinlock is a mutual exclusion lock that spins while waiting.
// the zero value is an unlocked lock
type Spinlock struct {
	// state is locked or unlocked
	state uint32
	// name is for diagnostics
	name string
}

// NewSpinlock initializes the spinlock with name
func NewSpinlock(name string) *Spinlock {
	return &Spinlock{name: name}
}

// Init names the spinlock. the lock must not be in use
func (l *Spinlock) Init(name string) {
	l.name = name
	atomic.StoreUint32(&l.state, unlocked)
}

// Lock acquires the spinlock
func (l *Spinlock) Lock() {
	for !atomic.CompareAndSwapUint32(&l.state, unlocked, locked) {
		runtime.Gosched()
	}
}

// TryLock acquires the spinlock only when nobody holds it
func (l *Spinlock) TryLock() bool {
	return atomic.CompareAndSwapUint32(&l.state, unlocked, locked)
}

// Unlock releases the spinlock.
// releasing a lock nobody holds halts
func (l *Spinlock) Unlock() {
	if !atomic.CompareAndSwapUint32(&l.state, locked, unlocked) {
		common.Halt("release: spinlock %s is not held", l.name)
	}
}

// Holding reports whether somebody holds the spinlock
func (l *Spinlock) Holding() bool {
	return atomic.LoadUint32(&l.state) == locked
}

// Name returns the name of the spinlock
func (l *Spinlock) Name() string {
	return l.name
}
