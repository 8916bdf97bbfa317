// Package lfs implements the log-structured filesystem core: the log
// writer, the inode indirection layer, the one-level directory layer, the
// VFS-shaped filesystem operations, and the segment-compacting garbage
// collector. Everything in this package operates on a single
// process-wide state value owned by its caller — there is no
// package-level mutable state, and the core itself takes no locks; it
// assumes a single-threaded caller, exactly as the concurrency model
// requires.
package lfs

import (
	"fmt"
	"log"

	"github.com/logfs/logfs/pkg/lfserr"
	"github.com/logfs/logfs/pkg/types"
)

// Filesystem is the in-memory state of a mounted logfs image: the
// superblock, the inode map, and the block device handle it all sits on
// top of. A Filesystem is not safe for concurrent use — callers above
// this package (the FUSE bridge) are responsible for serializing calls
// into it.
type Filesystem struct {
	dev types.BlockDevice

	sb       types.Superblock
	inodeMap types.InodeMap

	metrics types.MetricsCollector
	logger  *log.Logger

	// gcThreshold overrides types.GCThreshold when non-zero, so tests and
	// operators can shrink the reference image and still exercise GC.
	gcThreshold uint32
}

// Option configures a Filesystem at Mount time.
type Option func(*Filesystem)

// WithMetrics attaches a metrics collector; every GC run and every
// checkpoint's log occupancy report through it. Per-operation timings are
// recorded by the FUSE bridge, not by this package.
func WithMetrics(m types.MetricsCollector) Option {
	return func(fs *Filesystem) { fs.metrics = m }
}

// WithLogger overrides the default stderr logger.
func WithLogger(l *log.Logger) Option {
	return func(fs *Filesystem) { fs.logger = l }
}

// WithGCThreshold overrides the free-block headroom GC triggers on;
// intended for tests that use a small image and want to observe GC
// without allocating thousands of blocks.
func WithGCThreshold(threshold uint32) Option {
	return func(fs *Filesystem) { fs.gcThreshold = threshold }
}

// Mount reads the superblock and inode map off dev and returns a mounted
// Filesystem. It fails with BadMagic if the superblock's magic doesn't
// match, per the formatter contract: "the core reads whatever layout the
// formatter wrote and requires only that the superblock's magic matches".
func Mount(dev types.BlockDevice, opts ...Option) (*Filesystem, error) {
	fs := &Filesystem{
		dev:    dev,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(fs)
	}

	var sbBuf [types.BlockSize]byte
	if err := dev.ReadBlock(0, sbBuf[:]); err != nil {
		return nil, lfserr.Wrap(lfserr.IoError, "Mount", err)
	}
	sb := types.DecodeSuperblock(sbBuf[:])
	if sb.Magic != types.Magic {
		return nil, lfserr.New(lfserr.BadMagic, "Mount").
			WithContext("found", fmt.Sprintf("0x%08x", sb.Magic)).
			WithContext("want", fmt.Sprintf("0x%08x", types.Magic))
	}
	fs.sb = sb

	var imapBuf [types.BlockSize]byte
	if err := dev.ReadBlock(types.InodeMapBlock, imapBuf[:]); err != nil {
		return nil, lfserr.Wrap(lfserr.IoError, "Mount", err)
	}
	fs.inodeMap = types.DecodeInodeMap(imapBuf[:])

	fs.logger.Printf("lfs: mounted, log_tail=%d total_blocks=%d", fs.sb.LogTail, fs.sb.TotalBlocks)
	return fs, nil
}

// Unmount performs a final checkpoint and closes the block device, per
// the concurrency model: "destroyed by the unmount-time handler (which
// performs a final checkpoint)".
func (fs *Filesystem) Unmount() error {
	if err := fs.checkpoint(); err != nil {
		return err
	}
	fs.logger.Printf("lfs: unmounting, log_tail=%d", fs.sb.LogTail)
	return fs.dev.Close()
}

func (fs *Filesystem) threshold() uint32 {
	if fs.gcThreshold != 0 {
		return fs.gcThreshold
	}
	return types.GCThreshold
}
