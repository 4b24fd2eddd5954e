/*
This file defines storage interface and its implementations.
The implementations are:
- fileStorage: wrapper of os.File
- bufferStorage: this consists of byte slice and the current position of the byte slice.

note:
- bytes.Buffer doesn't implement io.Seeker because it is designed to read data in buffer once.
- bytes.Reader doesn't implement io.Writer
- so bufferStorage is defined here.
*/
package disk

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// storage is the image of one device
type storage interface {
	io.ReadWriteSeeker
	Size() (int64, error)
	Sync() error
}

// fileStorage is file storage
type fileStorage struct {
	*os.File
}

// Size returns the storage's size
func (fs fileStorage) Size() (int64, error) {
	stat, err := fs.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "Stat failed")
	}
	return stat.Size(), nil
}

// bufferStorage is buffer storage
type bufferStorage struct {
	// buf is actual contents
	buf []byte
	// off is current position
	off int
}

// newBufferStorage initializes empty bufferStorage
func newBufferStorage() *bufferStorage {
	return &bufferStorage{}
}

// Size returns the buffer size
func (bs *bufferStorage) Size() (int64, error) {
	return int64(len(bs.buf)), nil
}

// Sync doesn't do anything
func (bs *bufferStorage) Sync() error {
	// on-memory byte slice doesn't need sync
	return nil
}

// Read reads buffer at current position into p.
// it returns io.EOF at the end of the buffer as os.File does
func (bs *bufferStorage) Read(p []byte) (int, error) {
	if bs.off >= len(bs.buf) {
		return 0, io.EOF
	}
	nread := copy(p, bs.buf[bs.off:])
	bs.off += nread
	return nread, nil
}

// Write writes p into buffer at current position.
// the buffer is extended when p does not fit
func (bs *bufferStorage) Write(p []byte) (int, error) {
	if end := bs.off + len(p); end > len(bs.buf) {
		bs.buf = append(bs.buf, make([]byte, end-len(bs.buf))...)
	}
	nwritten := copy(bs.buf[bs.off:], p)
	bs.off += nwritten
	return nwritten, nil
}

// Seek moves the current position. only io.SeekStart is supported
func (bs *bufferStorage) Seek(offset int64, whence int) (int64, error) {
	if whence != io.SeekStart {
		return 0, errors.Errorf("whence is unexpected: %d", whence)
	}
	if offset < 0 {
		return 0, errors.Errorf("negative offset: %d", offset)
	}
	bs.off = int(offset)
	return offset, nil
}
