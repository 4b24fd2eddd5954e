package buffer

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/HayatoShiba/xvmem/common"
	"github.com/HayatoShiba/xvmem/param"
	"github.com/HayatoShiba/xvmem/storage/disk"
)

// TestingDriver is the in-memory disk manager which counts the requests per block
type TestingDriver struct {
	dm *disk.Manager

	mu     sync.Mutex
	reads  map[[2]uint32]int
	writes map[[2]uint32]int
	// beforeRead is called before every read if it is set
	beforeRead func(blk disk.Block)
	// err is returned by every request if it is set
	err error
}

// TestingNewDriver initializes TestingDriver
func TestingNewDriver() (*TestingDriver, error) {
	dm, err := disk.TestingNewBufferManager()
	if err != nil {
		return nil, errors.Wrap(err, "disk.TestingNewBufferManager failed")
	}
	return &TestingDriver{
		dm:     dm,
		reads:  make(map[[2]uint32]int),
		writes: make(map[[2]uint32]int),
	}, nil
}

// ReadWrite counts the request and forwards it to the disk manager
func (d *TestingDriver) ReadWrite(blk disk.Block, write bool) error {
	key := [2]uint32{uint32(blk.Device()), uint32(blk.BlockNo())}
	d.mu.Lock()
	hook, err := d.beforeRead, d.err
	if write {
		d.writes[key]++
	} else {
		d.reads[key]++
	}
	d.mu.Unlock()
	if err != nil {
		return err
	}
	if !write && hook != nil {
		hook(blk)
	}
	return d.dm.ReadWrite(blk, write)
}

// Reads returns how many times the block has been read
func (d *TestingDriver) Reads(dev common.Device, blockno common.BlockNo) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads[[2]uint32{uint32(dev), uint32(blockno)}]
}

// Writes returns how many times the block has been written
func (d *TestingDriver) Writes(dev common.Device, blockno common.BlockNo) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes[[2]uint32{uint32(dev), uint32(blockno)}]
}

// TotalReads returns how many reads have been issued
func (d *TestingDriver) TotalReads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.reads {
		n += c
	}
	return n
}

// SetBeforeRead sets the function called before every read
func (d *TestingDriver) SetBeforeRead(f func(blk disk.Block)) {
	d.mu.Lock()
	d.beforeRead = f
	d.mu.Unlock()
}

// SetError makes every following request fail with err
func (d *TestingDriver) SetError(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

// TestingClock is a Clock which moves only when told to
type TestingClock struct {
	mu  sync.Mutex
	now uint64
}

// Now returns the current reading
func (c *TestingClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set sets the current reading
func (c *TestingClock) Set(now uint64) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// TestingNewManager initializes the buffer cache with nbuf buffers and nbucket buckets
// on top of TestingDriver. the clock does not move unless the test sets it
func TestingNewManager(nbuf, nbucket int) (*Manager, *TestingDriver, *TestingClock, error) {
	d, err := TestingNewDriver()
	if err != nil {
		return nil, nil, nil, err
	}
	cfg := param.DefaultConfig()
	cfg.Buffers = nbuf
	cfg.Buckets = nbucket
	clock := &TestingClock{}
	m, err := NewManager(d, cfg, WithClock(clock))
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "NewManager failed")
	}
	return m, d, clock, nil
}
