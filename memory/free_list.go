/*
the implementation of per-cpu free list

A free list is a stack of page indexes linked through the next array.
next[i] is only meaningful while page i is on some free list; the page contents
themselves are scrubbed on alloc/free, so the link is kept outside of the page.
*/
package memory

import (
	"fmt"

	"github.com/HayatoShiba/xvmem/lock"
)

const (
	// this indicates the end of the free list
	freeListInvalidID = -1
)

// freeList is the free list of one cpu
type freeList struct {
	lock lock.Spinlock
	// head is the index of the first free page
	head int
}

// newFreeLists initializes empty free lists, one per cpu
func newFreeLists(ncpu int) []freeList {
	fls := make([]freeList, ncpu)
	for i := range fls {
		fls[i].lock.Init(fmt.Sprintf("kmem%d", i))
		fls[i].head = freeListInvalidID
	}
	return fls
}

// push pushes page index onto the free list of cpu.
// the lock of the free list must be held
func (m *Manager) push(fl *freeList, index int) {
	m.next[index] = fl.head
	fl.head = index
}

// pop removes the first page from the free list and returns it.
// if the list is empty, return freeListInvalidID.
// the lock of the free list must be held
func (m *Manager) pop(fl *freeList) int {
	index := fl.head
	if index == freeListInvalidID {
		return freeListInvalidID
	}
	fl.head = m.next[index]
	m.next[index] = freeListInvalidID
	return index
}
