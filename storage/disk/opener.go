/*
This file defines opener interface and its implementations.
We don't want to execute disk I/O in test, so it's better to use byte slice instead of actual file in test.
For this reason, opener interface is defined. Opener opens the image of a device. The implementations are:
- fileOpener: open and return file.
- bufferOpener: open and return byte slice.
*/
package disk

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/HayatoShiba/xvmem/common"
)

// opener opens device images
type opener interface {
	open(common.Device) (storage, error)
	// opened returns the images opened so far
	opened() map[common.Device]storage
}

// fileOpener opens image files under dir
type fileOpener struct {
	dir string
	// cache storages after open the files
	st map[common.Device]storage
}

// newFileOpener initializes fileOpener. dir is created if it does not exist
func newFileOpener(dir string) (*fileOpener, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "os.MkdirAll failed")
	}
	return &fileOpener{
		dir: dir,
		st:  make(map[common.Device]storage),
	}, nil
}

// open opens and returns the image file of the device
func (fo *fileOpener) open(dev common.Device) (storage, error) {
	// when the file is cached, just return it
	if st, ok := fo.st[dev]; ok {
		return st, nil
	}
	fd, err := os.OpenFile(imagePath(fo.dir, dev), os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, errors.Wrap(err, "os.OpenFile failed")
	}
	fo.st[dev] = fileStorage{fd}
	return fo.st[dev], nil
}

func (fo *fileOpener) opened() map[common.Device]storage {
	return fo.st
}

// imagePath returns the path of the image file of the device
func imagePath(dir string, dev common.Device) string {
	return filepath.Join(dir, fmt.Sprintf("%d.img", dev))
}

// bufferOpener opens in-memory images
type bufferOpener struct {
	st map[common.Device]storage
}

// newBufferOpener initializes bufferOpener
func newBufferOpener() *bufferOpener {
	return &bufferOpener{
		st: make(map[common.Device]storage),
	}
}

// open returns the image of the device, creating an empty one the first time
func (bo *bufferOpener) open(dev common.Device) (storage, error) {
	if st, ok := bo.st[dev]; ok {
		return st, nil
	}
	st := newBufferStorage()
	bo.st[dev] = st
	return st, nil
}

func (bo *bufferOpener) opened() map[common.Device]storage {
	return bo.st
}
