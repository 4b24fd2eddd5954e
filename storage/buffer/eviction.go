/*
Eviction scan.

When the requested block is not cached, a buffer nobody references is taken from whichever
bucket holds it and moved to the bucket of the requested block. This happens in two phases.

Phase 1 (findVictim) visits every bucket in index order and locks each in turn.
Among the buffers with reference count 0 it keeps the one with the greatest release timestamp
(ties keep the one found first). The lock of the bucket holding the current candidate stays held;
the lock of a bucket whose candidate is superseded, or which has no candidate, is released.
So at most two bucket locks are held at once, always taken in increasing index order.
At the end, only the candidate's bucket is locked, and the candidate is handed over as a victim
that still holds that lock.

Phase 2 (Manager.get) detaches the victim, which releases the lock, and then inserts
the buffer into the target bucket under the global cache lock and the target bucket lock.

note: the greatest timestamp is the most recently released buffer among the unreferenced ones.
*/
package buffer

// victim is the buffer chosen by the eviction scan.
// the lock of its bucket is held until detach is called
type victim struct {
	m *Manager
	// bucket is the index of the bucket whose chain holds the buffer
	bucket int
	// prev is the id of the buffer before it on the chain, or noBuffer if it is the head
	prev int
	// buf is the chosen buffer
	buf *Buffer
}

// findVictim selects the unreferenced buffer to repurpose.
// if no buffer is unreferenced, nil is returned and no lock is held.
// otherwise the returned victim holds the lock of its bucket
func (m *Manager) findVictim() *victim {
	var best *victim
	for i := range m.buckets {
		bk := &m.buckets[i]
		bk.lock.Lock()

		found := false
		prev := noBuffer
		for id := bk.head; id != noBuffer; prev, id = id, m.buffers[id].next {
			b := &m.buffers[id]
			if b.refcnt != 0 {
				continue
			}
			if best != nil && b.timestamp <= best.buf.timestamp {
				continue
			}
			// superseded: the previous candidate's bucket is not needed anymore
			if best != nil && best.bucket != i {
				m.buckets[best.bucket].lock.Unlock()
			}
			best = &victim{m: m, bucket: i, prev: prev, buf: b}
			found = true
		}
		if !found {
			bk.lock.Unlock()
		}
	}
	return best
}

// detach unlinks the buffer from its bucket chain, releases the bucket lock and returns the buffer.
// no other goroutine can find the buffer afterward until it is inserted again
func (v *victim) detach() *Buffer {
	m := v.m
	bk := &m.buckets[v.bucket]
	if v.prev == noBuffer {
		bk.head = v.buf.next
	} else {
		m.buffers[v.prev].next = v.buf.next
	}
	v.buf.next = noBuffer
	bk.lock.Unlock()
	return v.buf
}
