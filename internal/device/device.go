// Package device implements the block device primitive logfs is built on:
// positioned 4 KiB reads and writes over a fixed-size backing file. It has
// no caching and no write-back buffering — every call is a blocking
// syscall, and the caller owns the buffer it passes in.
package device

import (
	"fmt"
	"os"

	"github.com/logfs/logfs/pkg/lfserr"
	"github.com/logfs/logfs/pkg/types"
)

// File is a BlockDevice backed by a regular file opened read-write.
type File struct {
	f *os.File
}

// Open opens path read-write. The file must already exist and be at
// least one block long; formatting a fresh image is internal/mkfs's job.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, lfserr.Wrap(lfserr.IoError, "device.Open", err).WithPath(path)
	}
	return &File{f: f}, nil
}

// Create creates path fresh (truncating any existing file), sizes it to
// hold totalBlocks blocks, and returns it opened read-write. Formatting
// the image's contents is the caller's job.
func Create(path string, totalBlocks uint32) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return nil, lfserr.Wrap(lfserr.IoError, "device.Create", err).WithPath(path)
	}
	if err := f.Truncate(int64(totalBlocks) * types.BlockSize); err != nil {
		f.Close()
		return nil, lfserr.Wrap(lfserr.IoError, "device.Create", err).WithPath(path)
	}
	return &File{f: f}, nil
}

// ReadBlock reads exactly BlockSize bytes at block n into out.
func (d *File) ReadBlock(n uint32, out []byte) error {
	if len(out) != types.BlockSize {
		return lfserr.New(lfserr.IoError, "device.ReadBlock").
			WithContext("reason", fmt.Sprintf("buffer size %d != %d", len(out), types.BlockSize))
	}
	nread, err := d.f.ReadAt(out, int64(n)*types.BlockSize)
	if err != nil {
		return lfserr.Wrap(lfserr.IoError, "device.ReadBlock", err).
			WithContext("block", fmt.Sprintf("%d", n))
	}
	if nread != types.BlockSize {
		return lfserr.New(lfserr.IoError, "device.ReadBlock").
			WithContext("block", fmt.Sprintf("%d", n)).
			WithContext("reason", fmt.Sprintf("short read: %d bytes", nread))
	}
	return nil
}

// WriteBlock writes exactly BlockSize bytes from in at block n.
func (d *File) WriteBlock(n uint32, in []byte) error {
	if len(in) != types.BlockSize {
		return lfserr.New(lfserr.IoError, "device.WriteBlock").
			WithContext("reason", fmt.Sprintf("buffer size %d != %d", len(in), types.BlockSize))
	}
	nwritten, err := d.f.WriteAt(in, int64(n)*types.BlockSize)
	if err != nil {
		return lfserr.Wrap(lfserr.IoError, "device.WriteBlock", err).
			WithContext("block", fmt.Sprintf("%d", n))
	}
	if nwritten != types.BlockSize {
		return lfserr.New(lfserr.IoError, "device.WriteBlock").
			WithContext("block", fmt.Sprintf("%d", n)).
			WithContext("reason", fmt.Sprintf("short write: %d bytes", nwritten))
	}
	return nil
}

// Close releases the underlying file handle. Close is idempotent: closing
// an already-closed device returns nil.
func (d *File) Close() error {
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	if err != nil {
		return lfserr.Wrap(lfserr.IoError, "device.Close", err)
	}
	return nil
}

var _ types.BlockDevice = (*File)(nil)
