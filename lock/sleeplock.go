package lock

import (
	"sync"

	"github.com/HayatoShiba/xvmem/common"
)

// Sleeplock is a mutual exclusion lock whose waiters sleep.
// it records the process holding it, so that only the holder can release it.
// the zero value is an unlocked lock
type Sleeplock struct {
	// mu protects locked and owner and is the locker of cond
	mu     sync.Mutex
	cond   *sync.Cond
	locked bool
	// owner is the process holding the lock
	owner common.PID
	name  string
}

// Init names the sleeplock. the lock must not be in use
func (l *Sleeplock) Init(name string) {
	l.mu.Lock()
	l.name = name
	l.locked = false
	l.owner = 0
	l.mu.Unlock()
}

// condLocked returns the condition variable, creating it on first use.
// l.mu must be held
func (l *Sleeplock) condLocked() *sync.Cond {
	if l.cond == nil {
		l.cond = sync.NewCond(&l.mu)
	}
	return l.cond
}

// Acquire takes the sleeplock for pid, sleeping while somebody else holds it
func (l *Sleeplock) Acquire(pid common.PID) {
	l.mu.Lock()
	for l.locked {
		l.condLocked().Wait()
	}
	l.locked = true
	l.owner = pid
	l.mu.Unlock()
}

// Release releases the sleeplock held by pid and wakes up its waiters.
// releasing a lock pid does not hold halts
func (l *Sleeplock) Release(pid common.PID) {
	l.mu.Lock()
	if !l.locked || l.owner != pid {
		l.mu.Unlock()
		common.Halt("releasesleep: sleeplock %s is not held by pid %d", l.name, pid)
	}
	l.locked = false
	l.owner = 0
	l.condLocked().Broadcast()
	l.mu.Unlock()
}

// Holding reports whether pid holds the sleeplock
func (l *Sleeplock) Holding(pid common.PID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked && l.owner == pid
}

// Locked reports whether any process holds the sleeplock
func (l *Sleeplock) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked
}
