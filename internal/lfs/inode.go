package lfs

import (
	"fmt"

	"github.com/logfs/logfs/pkg/lfserr"
	"github.com/logfs/logfs/pkg/types"
)

// readInode looks up ino in the inode map and reads the block it points
// at.
func (fs *Filesystem) readInode(ino uint32) (types.Inode, error) {
	if ino >= types.InodeMapSize {
		return types.Inode{}, lfserr.New(lfserr.OutOfRange, "readInode").
			WithContext("ino", fmt.Sprintf("%d", ino))
	}
	block := fs.inodeMap[ino]
	if block == 0 {
		return types.Inode{}, lfserr.New(lfserr.NotAllocated, "readInode").
			WithContext("ino", fmt.Sprintf("%d", ino))
	}
	return fs.readInodeAt(block)
}

func (fs *Filesystem) readInodeAt(block uint32) (types.Inode, error) {
	var buf [types.BlockSize]byte
	if err := fs.dev.ReadBlock(block, buf[:]); err != nil {
		return types.Inode{}, lfserr.Wrap(lfserr.IoError, "readInodeAt", err).
			WithContext("block", fmt.Sprintf("%d", block))
	}
	return types.DecodeInode(buf[:]), nil
}

// writeInode appends a new copy of in to the log and updates the inode
// map to point at it. It does not checkpoint — the caller batches
// checkpoints at the end of an operation.
func (fs *Filesystem) writeInode(in types.Inode) error {
	buf := in.Encode()
	block, err := fs.append(buf[:], in.InodeNo, 0)
	if err != nil {
		return err
	}
	fs.inodeMap[in.InodeNo] = block
	return nil
}

// allocInode returns the lowest unused inode number in [1, InodeMapSize).
// It does not reserve the slot: the caller must writeInode the new inode
// before any other allocation runs, since concurrent allocators are not
// supported (the concurrency model guarantees a single-threaded caller).
func (fs *Filesystem) allocInode() (uint32, error) {
	for i := uint32(1); i < types.InodeMapSize; i++ {
		if fs.inodeMap[i] == 0 {
			return i, nil
		}
	}
	return 0, lfserr.New(lfserr.MapFull, "allocInode")
}
