package disk

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HayatoShiba/xvmem/common"
	"github.com/HayatoShiba/xvmem/metrics"
	"github.com/HayatoShiba/xvmem/param"
)

func newRandomBlock(dev common.Device, no common.BlockNo) *TestingBlock {
	b := &TestingBlock{Dev: dev, No: no}
	for i := range b.Buf {
		b.Buf[i] = byte(i*7) + byte(no)
	}
	return b
}

func TestReadWrite(t *testing.T) {
	tests := []struct {
		name string
		new  func(t *testing.T) (*Manager, error)
	}{
		{
			name: "in-memory images",
			new:  func(t *testing.T) (*Manager, error) { return TestingNewBufferManager() },
		},
		{
			name: "image files",
			new:  TestingNewFileManager,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.new(t)
			require.Nil(t, err)

			written := newRandomBlock(1, 5)
			assert.Nil(t, m.ReadWrite(written, true))

			read := &TestingBlock{Dev: 1, No: 5}
			assert.Nil(t, m.ReadWrite(read, false))
			assert.True(t, bytes.Equal(written.Data(), read.Data()))

			// blocks before the written one read as zeros
			hole := newRandomBlock(1, 2)
			assert.Nil(t, m.ReadWrite(hole, false))
			assert.True(t, bytes.Equal(make([]byte, param.BSIZE), hole.Data()))

			// blocks past the end of the image read as zeros
			beyond := newRandomBlock(1, 100)
			assert.Nil(t, m.ReadWrite(beyond, false))
			assert.True(t, bytes.Equal(make([]byte, param.BSIZE), beyond.Data()))

			// devices do not share images
			other := &TestingBlock{Dev: 2, No: 5}
			assert.Nil(t, m.ReadWrite(other, false))
			assert.True(t, bytes.Equal(make([]byte, param.BSIZE), other.Data()))

			assert.Nil(t, m.Sync())
		})
	}
}

func TestReadWriteMetrics(t *testing.T) {
	mt := metrics.New(nil)
	m, err := NewManager("", WithMetrics(mt))
	require.Nil(t, err)

	assert.Nil(t, m.ReadWrite(newRandomBlock(1, 0), true))
	assert.Nil(t, m.ReadWrite(&TestingBlock{Dev: 1, No: 0}, false))
	assert.Nil(t, m.ReadWrite(&TestingBlock{Dev: 1, No: 1}, false))
	assert.Equal(t, float64(1), testutil.ToFloat64(mt.DiskWrites))
	assert.Equal(t, float64(2), testutil.ToFloat64(mt.DiskReads))
}

func TestImageFilesOutliveManager(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.Nil(t, err)
	written := newRandomBlock(3, 4)
	require.Nil(t, m.ReadWrite(written, true))
	require.Nil(t, m.Sync())

	st, err := os.Stat(filepath.Join(dir, "3.img"))
	require.Nil(t, err)
	assert.Equal(t, int64(5*param.BSIZE), st.Size())

	m2, err := NewManager(dir)
	require.Nil(t, err)
	read := &TestingBlock{Dev: 3, No: 4}
	assert.Nil(t, m2.ReadWrite(read, false))
	assert.True(t, bytes.Equal(written.Data(), read.Data()))
}

type shortBlock struct {
	TestingBlock
}

func (b *shortBlock) Data() []byte { return b.Buf[:10] }

func TestReadWriteWrongSize(t *testing.T) {
	m, err := TestingNewBufferManager()
	require.Nil(t, err)
	assert.NotNil(t, m.ReadWrite(&shortBlock{}, false))
}
