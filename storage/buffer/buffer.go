/*
Buffer holds the cached copy of one device block and its metadata.

The metadata is protected by two different locks:
  - the lock of the bucket the buffer's identity hashes into protects the identity (dev, blockno),
    the reference count and the release timestamp
  - the sleeplock of the buffer protects the content and the valid flag.
    Acquire returns the buffer with the sleeplock held, and the caller gives it back with Release

Reference count:
  - This is the number of holders of the buffer's identity, whether or not they hold the sleeplock.
  - While it is not 0, the buffer is never evicted and its identity never changes.
  - Pin/Unpin adjust it without touching the sleeplock, so that a buffer stays cached
    across operations (e.g. the blocks of a log transaction) without being locked the whole time.
*/
package buffer

import (
	"fmt"

	"github.com/HayatoShiba/xvmem/common"
	"github.com/HayatoShiba/xvmem/lock"
	"github.com/HayatoShiba/xvmem/param"
)

// noBuffer indicates the end of a bucket chain
const noBuffer = -1

// Buffer is one slot of the buffer cache
type Buffer struct {
	// id is the index of the buffer in the cache
	id int
	// dev and blockno are the identity of the cached block
	dev     common.Device
	blockno common.BlockNo
	// ident is false until the buffer is given an identity,
	// and again after it lost an insertion race (see Manager.get)
	ident bool
	// valid is true when data has been read from the device
	valid bool
	// refcnt is the reference count
	refcnt int
	// timestamp is the clock reading when refcnt last dropped to 0
	timestamp uint64
	// next is the id of the next buffer on the same bucket chain
	next int
	// lock is the exclusive-use lock
	lock lock.Sleeplock
	// data is the block content
	data [param.BSIZE]byte
}

// newBuffers initializes the buffer slots chained in id order
// this function is expected to be called only in NewManager() and test
func newBuffers(n int, timestamp uint64) []Buffer {
	bufs := make([]Buffer, n)
	for i := range bufs {
		bufs[i].id = i
		bufs[i].next = i + 1
		bufs[i].timestamp = timestamp
		bufs[i].lock.Init(fmt.Sprintf("buffer%d", i))
	}
	bufs[n-1].next = noBuffer
	return bufs
}

// Device returns the device of the cached block
func (b *Buffer) Device() common.Device {
	return b.dev
}

// BlockNo returns the block number of the cached block
func (b *Buffer) BlockNo() common.BlockNo {
	return b.blockno
}

// Data returns the block content.
// the caller must hold the buffer (returned by Acquire and not released yet)
func (b *Buffer) Data() []byte {
	return b.data[:]
}

// Valid reports whether the content has been read from the device.
// the caller must hold the buffer
func (b *Buffer) Valid() bool {
	return b.valid
}

// ID returns the index of the buffer slot
func (b *Buffer) ID() int {
	return b.id
}

// matches checks the identity of the buffer.
// the lock of the bucket which chains the buffer must be held
func (b *Buffer) matches(dev common.Device, blockno common.BlockNo) bool {
	return b.ident && b.dev == dev && b.blockno == blockno
}
