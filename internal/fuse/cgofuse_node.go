//go:build cgofuse
// +build cgofuse

// This file provides the same bridge as node.go/mount.go but over
// github.com/winfsp/cgofuse instead of go-fuse, for platforms without a
// native kernel FUSE (macOS via macFUSE, Windows via WinFsp). Build with
// -tags cgofuse. Like node.go, every method does nothing but translate
// arguments, call one internal/lfs operation under the shared mutex, and
// translate the resulting error to a negated errno.
package fuse

import (
	"sync"
	"time"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/logfs/logfs/internal/lfs"
	"github.com/logfs/logfs/pkg/lfserr"
	"github.com/logfs/logfs/pkg/types"
)

// CgoFuseFS adapts *lfs.Filesystem to cgofuse's FileSystemInterface. Like
// the go-fuse FileSystem, it holds no cached file data of its own.
type CgoFuseFS struct {
	fuse.FileSystemBase

	mu      sync.Mutex
	core    *lfs.Filesystem
	metrics types.MetricsCollector

	host *fuse.FileSystemHost
}

// NewCgoFuseFS wraps core for the cgofuse bridge.
func NewCgoFuseFS(core *lfs.Filesystem, metrics types.MetricsCollector) *CgoFuseFS {
	return &CgoFuseFS{core: core, metrics: metrics}
}

func (fs *CgoFuseFS) record(op string, start time.Time, err error) {
	if fs.metrics != nil {
		fs.metrics.RecordOperation(op, time.Since(start), err == nil)
	}
}

func cgoErrno(err error) int {
	if err == nil {
		return 0
	}
	return -int(lfserr.KindOf(err).Errno())
}

func normalize(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

func (fs *CgoFuseFS) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	start := time.Now()
	fs.mu.Lock()
	attr, err := fs.core.GetAttr(normalize(path))
	fs.mu.Unlock()
	fs.record("getattr", start, err)
	if err != nil {
		return cgoErrno(err)
	}

	if attr.IsDir {
		stat.Mode = fuse.S_IFDIR | 0755
	} else {
		stat.Mode = fuse.S_IFREG | 0644
	}
	stat.Size = int64(attr.Size)
	stat.Nlink = attr.NLinks
	return 0
}

func (fs *CgoFuseFS) Open(path string, flags int) (int, uint64) {
	return 0, 0
}

func (fs *CgoFuseFS) Create(path string, flags int, mode uint32) (int, uint64) {
	start := time.Now()
	fs.mu.Lock()
	err := fs.core.Create(normalize(path))
	fs.mu.Unlock()
	fs.record("create", start, err)
	if err != nil {
		return cgoErrno(err), 0
	}
	return 0, 0
}

func (fs *CgoFuseFS) Read(path string, buff []byte, ofst int64, fh uint64) int {
	start := time.Now()
	fs.mu.Lock()
	data, err := fs.core.Read(normalize(path), ofst, len(buff))
	fs.mu.Unlock()
	fs.record("read", start, err)
	if err != nil {
		return cgoErrno(err)
	}
	return copy(buff, data)
}

func (fs *CgoFuseFS) Write(path string, buff []byte, ofst int64, fh uint64) int {
	start := time.Now()
	fs.mu.Lock()
	n, err := fs.core.Write(normalize(path), ofst, buff)
	fs.mu.Unlock()
	fs.record("write", start, err)
	if err != nil {
		return cgoErrno(err)
	}
	return n
}

func (fs *CgoFuseFS) Truncate(path string, size int64, fh uint64) int {
	start := time.Now()
	fs.mu.Lock()
	err := fs.core.Truncate(normalize(path), uint32(size))
	fs.mu.Unlock()
	fs.record("truncate", start, err)
	return cgoErrno(err)
}

func (fs *CgoFuseFS) Release(path string, fh uint64) int {
	return 0
}

func (fs *CgoFuseFS) Readdir(path string, fill func(name string, stat *fuse.Stat_t, ofst int64) bool, ofst int64, fh uint64) int {
	start := time.Now()
	fs.mu.Lock()
	entries, err := fs.core.ReadDir(normalize(path))
	fs.mu.Unlock()
	fs.record("readdir", start, err)
	if err != nil {
		return cgoErrno(err)
	}

	for _, e := range entries {
		if !fill(e.Name, nil, 0) {
			break
		}
	}
	return 0
}

// Mount mounts the filesystem at mountPoint and blocks until unmounted.
func (fs *CgoFuseFS) Mount(mountPoint string) error {
	fs.host = fuse.NewFileSystemHost(fs)
	fs.host.SetCapReaddirPlus(false)
	options := []string{"-o", "fsname=logfs", "-o", "subtype=logfs"}
	if !fs.host.Mount(mountPoint, options) {
		return lfserr.New(lfserr.IoError, "cgofuse mount failed").WithPath(mountPoint)
	}
	return nil
}

// Unmount unmounts a filesystem previously mounted with Mount.
func (fs *CgoFuseFS) Unmount() bool {
	if fs.host == nil {
		return true
	}
	return fs.host.Unmount()
}
