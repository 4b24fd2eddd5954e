package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// place puts the buffers on the chain of the bucket in the given order
func place(m *Manager, bucket int, ids ...int) {
	for i := len(ids) - 1; i >= 0; i-- {
		m.pushFront(&m.buckets[bucket], &m.buffers[ids[i]])
	}
}

func TestFindVictim(t *testing.T) {
	type buf struct {
		bucket    int
		refcnt    int
		timestamp uint64
	}
	tests := []struct {
		name       string
		bufs       []buf
		wantID     int
		wantBucket int
		wantPrev   int
	}{
		{
			name:       "greatest timestamp",
			bufs:       []buf{{0, 0, 3}, {0, 0, 9}, {2, 0, 5}, {4, 0, 1}},
			wantID:     1,
			wantBucket: 0,
			wantPrev:   0,
		},
		{
			name:       "candidate in a later bucket",
			bufs:       []buf{{0, 0, 3}, {1, 0, 2}, {3, 0, 8}, {3, 0, 4}},
			wantID:     2,
			wantBucket: 3,
			wantPrev:   noBuffer,
		},
		{
			name:       "tie keeps the first found",
			bufs:       []buf{{2, 0, 7}, {1, 0, 7}, {1, 0, 7}, {0, 0, 2}},
			wantID:     1,
			wantBucket: 1,
			wantPrev:   noBuffer,
		},
		{
			name:       "referenced buffers are skipped",
			bufs:       []buf{{0, 1, 100}, {0, 0, 1}, {1, 3, 50}, {2, 0, 0}},
			wantID:     1,
			wantBucket: 0,
			wantPrev:   0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, _, err := TestingNewManager(len(tt.bufs), 5)
			require.Nil(t, err)
			m.buckets[0].head = noBuffer
			for id, b := range tt.bufs {
				m.buffers[id].refcnt = b.refcnt
				m.buffers[id].timestamp = b.timestamp
			}
			// keep the id order inside every bucket
			for id := len(tt.bufs) - 1; id >= 0; id-- {
				place(m, tt.bufs[id].bucket, id)
			}

			v := m.findVictim()
			require.NotNil(t, v)
			assert.Equal(t, tt.wantID, v.buf.ID())
			assert.Equal(t, tt.wantBucket, v.bucket)
			assert.Equal(t, tt.wantPrev, v.prev)
			// only the victim's bucket is left locked
			for i := range m.buckets {
				assert.Equal(t, i == tt.wantBucket, m.buckets[i].lock.Holding(), "bucket %d", i)
			}

			b := v.detach()
			assert.Equal(t, noBuffer, b.next)
			assert.False(t, m.buckets[tt.wantBucket].lock.Holding())
			assert.NotContains(t, chain(m, tt.wantBucket), tt.wantID)
			total := 0
			for i := range m.buckets {
				total += len(chain(m, i))
			}
			assert.Equal(t, len(tt.bufs)-1, total)
		})
	}
}

func TestFindVictimNone(t *testing.T) {
	m, _, _, err := TestingNewManager(3, 4)
	require.Nil(t, err)
	for i := range m.buffers {
		m.buffers[i].refcnt = 1
	}
	assert.Nil(t, m.findVictim())
	for i := range m.buckets {
		assert.False(t, m.buckets[i].lock.Holding(), "bucket %d", i)
	}
}

func TestDetachMiddle(t *testing.T) {
	m, _, _, err := TestingNewManager(3, 4)
	require.Nil(t, err)
	m.buffers[0].refcnt = 1
	m.buffers[1].timestamp = 5
	m.buffers[2].timestamp = 1

	v := m.findVictim()
	require.NotNil(t, v)
	assert.Equal(t, 1, v.buf.ID())
	assert.Equal(t, 0, v.prev)
	v.detach()
	assert.Equal(t, []int{0, 2}, chain(m, 0))
}
