/*
Buckets are the shards of the buffer cache's hash table.
Each bucket is a spinlock and a chain of buffers linked through Buffer.next.
A block (dev, blockno) is looked up in bucket (dev*blockno) mod the number of buckets only,
so lookups of blocks in different buckets do not contend.
*/
package buffer

import (
	"fmt"

	"github.com/HayatoShiba/xvmem/common"
	"github.com/HayatoShiba/xvmem/lock"
)

// bucket is one shard of the hash table
type bucket struct {
	lock lock.Spinlock
	// head is the id of the first buffer on the chain
	head int
}

// newBuckets initializes n empty buckets
func newBuckets(n int) []bucket {
	bks := make([]bucket, n)
	for i := range bks {
		bks[i].lock.Init(fmt.Sprintf("bcache.bucket%d", i))
		bks[i].head = noBuffer
	}
	return bks
}

// hash returns the bucket index of the block.
// the product wraps around in 32 bits
func (m *Manager) hash(dev common.Device, blockno common.BlockNo) int {
	return int((uint32(dev) * uint32(blockno)) % uint32(len(m.buckets)))
}

// bucketOf returns the bucket the buffer's identity hashes into.
// the caller must hold a reference to the buffer so that the identity does not change
func (m *Manager) bucketOf(b *Buffer) *bucket {
	return &m.buckets[m.hash(b.dev, b.blockno)]
}

// lookup searches the chain of bk for the block and returns the buffer, or nil if not found.
// the lock of bk must be held
func (m *Manager) lookup(bk *bucket, dev common.Device, blockno common.BlockNo) *Buffer {
	for id := bk.head; id != noBuffer; id = m.buffers[id].next {
		if b := &m.buffers[id]; b.matches(dev, blockno) {
			return b
		}
	}
	return nil
}

// pushFront inserts the buffer at the head of the chain of bk.
// the lock of bk must be held
func (m *Manager) pushFront(bk *bucket, b *Buffer) {
	b.next = bk.head
	bk.head = b.id
}
