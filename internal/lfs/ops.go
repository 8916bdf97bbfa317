package lfs

import (
	"github.com/logfs/logfs/pkg/lfserr"
	"github.com/logfs/logfs/pkg/types"
)

// Attr is the subset of inode metadata the FUSE bridge needs to answer a
// getattr call.
type Attr struct {
	InodeNo uint32
	IsDir   bool
	Size    uint32
	NLinks  uint32
}

// MaxFileSize is the largest offset+length a file's direct pointers can
// address.
const MaxFileSize = int64(types.MaxDirectPtrs) * types.BlockSize

// maybeGC runs the garbage collector if the log is low on free space and,
// if it ran, re-reads ino so the caller's in-memory copy reflects any
// relocation GC performed. Every operation that is about to append calls
// this first.
func (fs *Filesystem) maybeGC(ino uint32, cached types.Inode) (types.Inode, error) {
	if !fs.shouldRunGC() {
		return cached, nil
	}
	if err := fs.gc(); err != nil {
		return cached, err
	}
	return fs.readInode(ino)
}

// GetAttr resolves path and returns its metadata.
func (fs *Filesystem) GetAttr(path string) (Attr, error) {
	ino, err := fs.resolve(path)
	if err != nil {
		return Attr{}, err
	}
	in, err := fs.readInode(ino)
	if err != nil {
		return Attr{}, err
	}
	nlinks := in.NLinks
	if nlinks == 0 {
		nlinks = 1
	}
	return Attr{InodeNo: ino, IsDir: in.IsDir(), Size: in.Size, NLinks: nlinks}, nil
}

// ReadDir lists the entries of the root directory: "." and ".." are
// always synthesized first, followed by every stored entry with a
// nonzero inode number whose name isn't "." or ".." (the placeholder
// dot-entries mkfs writes into the directory block itself carry inode
// number 0, so this filter naturally excludes them; the name check
// guards the same invariant defensively). Only "/" is a directory in
// this layout, so any other existing path fails with NotDir.
func (fs *Filesystem) ReadDir(path string) ([]types.DirEntry, error) {
	ino, err := fs.resolve(path)
	if err != nil {
		return nil, err
	}
	dir, err := fs.readInode(ino)
	if err != nil {
		return nil, err
	}
	if !dir.IsDir() {
		return nil, lfserr.New(lfserr.NotDir, "ReadDir").WithPath(path)
	}

	db, err := fs.readDirBlock(dir)
	if err != nil {
		return nil, err
	}
	entries := []types.DirEntry{
		{InodeNo: ino, Name: "."},
		{InodeNo: ino, Name: ".."},
	}
	n := int(dir.Size / types.DirEntSize())
	for i := 0; i < n && i < types.MaxDirents; i++ {
		e := db.Entries[i]
		if e.InodeNo != 0 && e.Name != "." && e.Name != ".." {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Read returns up to size bytes of a file starting at offset. Reading
// past the current size returns fewer bytes; reading entirely past the
// end returns an empty slice. Direct pointers that were never allocated
// (a lazily-allocated hole) read back as zeros.
func (fs *Filesystem) Read(path string, offset int64, size int) ([]byte, error) {
	if offset < 0 || size < 0 {
		return nil, lfserr.New(lfserr.OutOfRange, "Read").WithPath(path)
	}
	ino, err := fs.resolve(path)
	if err != nil {
		return nil, err
	}
	in, err := fs.readInode(ino)
	if err != nil {
		return nil, err
	}
	if !in.IsFile() {
		return nil, lfserr.New(lfserr.IsDir, "Read").WithPath(path)
	}

	if offset >= int64(in.Size) {
		return []byte{}, nil
	}
	end := offset + int64(size)
	if end > int64(in.Size) {
		end = int64(in.Size)
	}

	out := make([]byte, 0, end-offset)
	for pos := offset; pos < end; {
		blockIdx := uint32(pos / types.BlockSize)
		if blockIdx >= types.MaxDirectPtrs {
			break
		}
		inBlockOff := pos % types.BlockSize
		chunk := int64(types.BlockSize) - inBlockOff
		if remain := end - pos; chunk > remain {
			chunk = remain
		}

		ptr := in.Direct[blockIdx]
		if ptr == 0 {
			out = append(out, make([]byte, chunk)...)
		} else {
			var buf [types.BlockSize]byte
			if err := fs.dev.ReadBlock(ptr, buf[:]); err != nil {
				return nil, lfserr.Wrap(lfserr.IoError, "Read", err).WithPath(path)
			}
			out = append(out, buf[inBlockOff:inBlockOff+chunk]...)
		}
		pos += chunk
	}
	return out, nil
}

// Create adds a new, empty file to the root directory. It fails with
// AlreadyExists if the name is taken.
func (fs *Filesystem) Create(path string) error {
	name, err := splitOneLevel(path)
	if err != nil {
		return err
	}
	if _, err := fs.resolve(path); err == nil {
		return lfserr.New(lfserr.AlreadyExists, "Create").WithPath(path)
	} else if lfserr.KindOf(err) != lfserr.NotFound {
		return err
	}

	root, err := fs.readInode(rootIno)
	if err != nil {
		return err
	}
	root, err = fs.maybeGC(rootIno, root)
	if err != nil {
		return err
	}

	childIno, err := fs.allocInode()
	if err != nil {
		return err
	}
	child := types.Inode{InodeNo: childIno, Type: types.InodeTypeFile, NLinks: 1}
	if err := fs.writeInode(child); err != nil {
		return err
	}

	if _, err := fs.addDirEntry(root, childIno, name); err != nil {
		return err
	}
	return fs.checkpoint()
}

// Write stores data at offset in path's file, copy-on-write: every touched
// block is read (if it already exists), merged with the incoming bytes,
// and appended as a new block, with the inode re-appended right after
// pointing at it. Fails with FileTooBig if offset itself is past what the
// direct pointers can address; a write that starts inside that range but
// would run past it is clamped to end at the limit instead of failing.
func (fs *Filesystem) Write(path string, offset int64, data []byte) (int, error) {
	if offset < 0 {
		return 0, lfserr.New(lfserr.OutOfRange, "Write").WithPath(path)
	}
	if offset >= MaxFileSize {
		return 0, lfserr.New(lfserr.FileTooBig, "Write").WithPath(path)
	}
	end := offset + int64(len(data))
	if end > MaxFileSize {
		end = MaxFileSize
	}

	ino, err := fs.resolve(path)
	if err != nil {
		return 0, err
	}
	in, err := fs.readInode(ino)
	if err != nil {
		return 0, err
	}
	if !in.IsFile() {
		return 0, lfserr.New(lfserr.IsDir, "Write").WithPath(path)
	}

	if offset == end {
		if uint32(end) > in.Size {
			in.Size = uint32(end)
			if err := fs.writeInode(in); err != nil {
				return 0, err
			}
		}
		return 0, fs.checkpoint()
	}

	written := 0
	for pos := offset; pos < end; {
		// Checked fresh before every block, not just once up front: an
		// earlier block's append in this same write can be what pushes
		// the log over the GC threshold. The inode is re-appended after
		// every block below (not only once at the end) so that a GC pass
		// triggered here always sees this write's own blocks so far as
		// live, instead of treating them as dead and compacting over them.
		in, err = fs.maybeGC(ino, in)
		if err != nil {
			return written, err
		}

		blockIdx := uint32(pos / types.BlockSize)
		inBlockOff := pos % types.BlockSize
		chunk := int64(types.BlockSize) - inBlockOff
		if remain := end - pos; chunk > remain {
			chunk = remain
		}

		var buf [types.BlockSize]byte
		if in.Direct[blockIdx] != 0 {
			if err := fs.dev.ReadBlock(in.Direct[blockIdx], buf[:]); err != nil {
				return written, lfserr.Wrap(lfserr.IoError, "Write", err).WithPath(path)
			}
		}
		copy(buf[inBlockOff:], data[written:written+int(chunk)])

		block, err := fs.append(buf[:], in.InodeNo, blockIdx)
		if err != nil {
			return written, err
		}
		in.Direct[blockIdx] = block
		pos += chunk
		written += int(chunk)

		if uint32(pos) > in.Size {
			in.Size = uint32(pos)
		}
		if err := fs.writeInode(in); err != nil {
			return written, err
		}
	}

	return written, fs.checkpoint()
}

// Truncate resets a file to empty. Only size == 0 is accepted; any other
// size is rejected with NotPermitted before anything else is touched.
// Truncating drops every direct pointer, leaving their blocks dead for GC
// to reclaim.
func (fs *Filesystem) Truncate(path string, size uint32) error {
	if size != 0 {
		return lfserr.New(lfserr.NotPermitted, "Truncate").WithPath(path)
	}
	ino, err := fs.resolve(path)
	if err != nil {
		return err
	}
	in, err := fs.readInode(ino)
	if err != nil {
		return err
	}
	if !in.IsFile() {
		return lfserr.New(lfserr.IsDir, "Truncate").WithPath(path)
	}

	in, err = fs.maybeGC(ino, in)
	if err != nil {
		return err
	}

	for j := range in.Direct {
		in.Direct[j] = 0
	}
	in.Size = 0

	if err := fs.writeInode(in); err != nil {
		return err
	}
	return fs.checkpoint()
}
