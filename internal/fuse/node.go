// Package fuse adapts the single-threaded internal/lfs core to the
// kernel, via either github.com/hanwen/go-fuse/v2 (this file, the default
// build) or github.com/winfsp/cgofuse (cgofuse_node.go, built with the
// cgofuse tag). Every callback below does nothing but translate
// arguments, call exactly one internal/lfs operation under the shared
// mutex, and translate the resulting error to a negated errno.
package fuse

import (
	"context"
	"sync"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/logfs/logfs/internal/lfs"
	"github.com/logfs/logfs/pkg/lfserr"
	"github.com/logfs/logfs/pkg/types"
)

// FileSystem wraps a mounted *lfs.Filesystem for the go-fuse bridge. The
// core itself takes no locks and assumes a single-threaded caller
// (internal/lfs's package doc); mu is what makes that assumption safe
// against go-fuse's own worker goroutines.
type FileSystem struct {
	mu      sync.Mutex
	core    *lfs.Filesystem
	metrics types.MetricsCollector
}

// NewFileSystem wraps core for FUSE.
func NewFileSystem(core *lfs.Filesystem, metrics types.MetricsCollector) *FileSystem {
	return &FileSystem{core: core, metrics: metrics}
}

// Root returns the filesystem's single directory node.
func (f *FileSystem) Root() fs.InodeEmbedder {
	return &DirNode{fs: f}
}

func (f *FileSystem) record(op string, start time.Time, err error) {
	if f.metrics != nil {
		f.metrics.RecordOperation(op, time.Since(start), err == nil)
	}
}

// errno translates a pkg/lfserr error to the negated syscall.Errno
// go-fuse expects, per the error kind -> errno table.
func errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	return lfserr.KindOf(err).Errno()
}

// DirNode is the filesystem's single directory: the root. There are no
// subdirectories in this layout.
type DirNode struct {
	fs.Inode
	fs *FileSystem
}

func (n *DirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	start := time.Now()
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()

	attr, err := n.fs.core.GetAttr("/" + name)
	n.fs.record("lookup", start, err)
	if err != nil {
		return nil, errno(err)
	}

	fillAttr(&out.Attr, attr)
	child := &FileNode{fs: n.fs, path: "/" + name}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFREG, Ino: uint64(attr.InodeNo)}), 0
}

func (n *DirNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	start := time.Now()
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()

	attr, err := n.fs.core.GetAttr("/")
	n.fs.record("getattr", start, err)
	if err != nil {
		return errno(err)
	}
	fillAttr(&out.Attr, attr)
	return 0
}

func (n *DirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	start := time.Now()
	n.fs.mu.Lock()
	entries, err := n.fs.core.ReadDir("/")
	n.fs.mu.Unlock()
	n.fs.record("readdir", start, err)
	if err != nil {
		return nil, errno(err)
	}

	out := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		mode := uint32(fuse.S_IFREG)
		if e.Name == "." || e.Name == ".." {
			mode = fuse.S_IFDIR
		}
		out = append(out, fuse.DirEntry{Name: e.Name, Mode: mode, Ino: uint64(e.InodeNo)})
	}
	return fs.NewListDirStream(out), 0
}

func (n *DirNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	start := time.Now()
	n.fs.mu.Lock()
	err := n.fs.core.Create("/" + name)
	n.fs.mu.Unlock()
	n.fs.record("create", start, err)
	if err != nil {
		return nil, nil, 0, errno(err)
	}

	child := &FileNode{fs: n.fs, path: "/" + name}
	inode := n.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFREG})
	return inode, &FileHandle{fs: n.fs, path: child.path}, 0, 0
}

// FileNode is a regular file backed entirely by the lfs core — it holds
// no cached data of its own, since the only source of truth is the
// append-only log.
type FileNode struct {
	fs.Inode
	fs   *FileSystem
	path string
}

func (n *FileNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	start := time.Now()
	n.fs.mu.Lock()
	attr, err := n.fs.core.GetAttr(n.path)
	n.fs.mu.Unlock()
	n.fs.record("getattr", start, err)
	if err != nil {
		return errno(err)
	}
	fillAttr(&out.Attr, attr)
	return 0
}

func (n *FileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return &FileHandle{fs: n.fs, path: n.path}, 0, 0
}

func (n *FileNode) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		start := time.Now()
		n.fs.mu.Lock()
		err := n.fs.core.Truncate(n.path, uint32(size))
		n.fs.mu.Unlock()
		n.fs.record("truncate", start, err)
		if err != nil {
			return errno(err)
		}
	}
	return n.Getattr(ctx, fh, out)
}

// FileHandle serves reads and writes for one open file. It carries no
// buffered state; every call goes straight through to the core.
type FileHandle struct {
	fs   *FileSystem
	path string
}

func (h *FileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	start := time.Now()
	h.fs.mu.Lock()
	data, err := h.fs.core.Read(h.path, off, len(dest))
	h.fs.mu.Unlock()
	h.fs.record("read", start, err)
	if err != nil {
		return nil, errno(err)
	}
	return fuse.ReadResultData(data), 0
}

func (h *FileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	start := time.Now()
	h.fs.mu.Lock()
	n, err := h.fs.core.Write(h.path, off, data)
	h.fs.mu.Unlock()
	h.fs.record("write", start, err)
	if err != nil {
		return uint32(n), errno(err)
	}
	return uint32(n), 0
}

// fillAttr copies an lfs.Attr into a go-fuse fuse.Attr.
func fillAttr(out *fuse.Attr, attr lfs.Attr) {
	if attr.IsDir {
		out.Mode = syscall.S_IFDIR | 0755
	} else {
		out.Mode = syscall.S_IFREG | 0644
	}
	out.Size = uint64(attr.Size)
	out.Nlink = attr.NLinks
	out.Ino = uint64(attr.InodeNo)
}
