package lfs

import (
	"fmt"
	"time"

	"github.com/logfs/logfs/pkg/lfserr"
	"github.com/logfs/logfs/pkg/types"
)

// shouldRunGC reports whether the garbage collector should run before the
// next append, per the should-run predicate: the log has fewer than the
// threshold's worth of free blocks left.
func (fs *Filesystem) shouldRunGC() bool {
	free := fs.sb.TotalBlocks - fs.sb.LogTail
	return free < fs.threshold()
}

// liveness computes, once, which blocks in [log_start, log_tail) are
// live: referenced by the inode map, or by some live inode's direct[].
// It is computed up front and never re-derived mid-compaction, so the
// two-pointer scan never has to re-read a block whose content might
// already have moved.
func (fs *Filesystem) liveness() (map[uint32]bool, error) {
	live := make(map[uint32]bool)
	for i, block := range fs.inodeMap {
		if block == 0 {
			continue
		}
		live[block] = true
		in, err := fs.readInodeAt(block)
		if err != nil {
			return nil, lfserr.Wrap(lfserr.IoError, "liveness", err).
				WithContext("ino", fmt.Sprintf("%d", i))
		}
		for _, ptr := range in.Direct {
			if ptr != 0 {
				live[ptr] = true
			}
		}
	}

	// A segment's summary block (offset 0 within the segment) is never
	// referenced by the inode map or any direct[], so it would otherwise
	// look dead and become fair game for compaction to overwrite with
	// relocated file data — silently breaking the invariant that offset 0
	// is never a data target. Mark every summary address always-live so
	// compact never moves anything there or takes it as a source.
	for b := uint32(0); b < fs.sb.LogTail; b += types.BlocksPerSegment {
		if b >= types.LogStart {
			live[b] = true
		}
	}
	return live, nil
}

// gc runs the garbage collector to completion. It is a no-op if there are
// no dead blocks in the log's used range.
func (fs *Filesystem) gc() error {
	start := time.Now()
	oldTail := fs.sb.LogTail

	live, err := fs.liveness()
	if err != nil {
		return err
	}

	deadCount := 0
	for b := uint32(types.LogStart); b < oldTail; b++ {
		if !live[b] {
			deadCount++
		}
	}
	if deadCount == 0 {
		return nil
	}

	relocation, err := fs.compact(live, oldTail)
	if err != nil {
		return err
	}

	if err := fs.applyRelocations(relocation); err != nil {
		return err
	}

	newTail := fs.rewindTail(oldTail)
	fs.sb.LogTail = newTail

	if err := fs.checkpoint(); err != nil {
		return err
	}

	fs.logger.Printf("gc: reclaimed %d blocks, log_tail %d -> %d", oldTail-newTail, oldTail, newTail)
	if fs.metrics != nil {
		fs.metrics.RecordGCRun(oldTail-newTail, time.Since(start))
	}
	return nil
}

// compact runs the two-pointer forward compaction described by the
// design: a dst cursor advances past already-live blocks, a src cursor
// retreats past already-dead blocks, and whenever both stop the live
// block at src is physically moved into the dead slot at dst. It returns
// a map from every relocated block's old address to its new address.
//
// This phase only moves raw bytes; it does not touch the inode map or any
// inode's direct[] pointers, which is what makes it safe to drive purely
// off the liveness snapshot computed before any block moved.
func (fs *Filesystem) compact(live map[uint32]bool, oldTail uint32) (map[uint32]uint32, error) {
	relocation := make(map[uint32]uint32)

	dst := uint32(types.LogStart)
	src := oldTail - 1

	for dst < src {
		for dst < src && live[dst] {
			dst++
		}
		// Summary blocks are marked live but stay where they are.
		for src > dst && (!live[src] || fs.segOffset(src) == 0) {
			src--
		}
		if dst >= src {
			break
		}

		var buf [types.BlockSize]byte
		if err := fs.dev.ReadBlock(src, buf[:]); err != nil {
			return nil, lfserr.Wrap(lfserr.IoError, "compact", err).
				WithContext("src", fmt.Sprintf("%d", src))
		}
		if err := fs.dev.WriteBlock(dst, buf[:]); err != nil {
			return nil, lfserr.Wrap(lfserr.IoError, "compact", err).
				WithContext("dst", fmt.Sprintf("%d", dst))
		}

		var zero [types.BlockSize]byte
		if err := fs.dev.WriteBlock(src, zero[:]); err != nil {
			return nil, lfserr.Wrap(lfserr.IoError, "compact", err).
				WithContext("src", fmt.Sprintf("%d", src))
		}

		relocation[src] = dst
		dst++
		src--
	}

	return relocation, nil
}

// applyRelocations patches every stale reference left behind by compact
// in a single pass over the inode map: first the inode map entries
// themselves (an inode block that moved needs no content change, only a
// pointer update), then every live inode's direct[] pointers. An inode
// whose direct[] needed patching is corrected in place at its current
// (possibly just-relocated) block address — never through the log
// writer — so this fixup phase can never push the log tail past the
// pre-GC tail; see the design note on this choice in DESIGN.md.
func (fs *Filesystem) applyRelocations(relocation map[uint32]uint32) error {
	if len(relocation) == 0 {
		return nil
	}

	for i, block := range fs.inodeMap {
		if block == 0 {
			continue
		}
		if newBlock, moved := relocation[block]; moved {
			fs.inodeMap[i] = newBlock
		}
	}

	for i, block := range fs.inodeMap {
		if block == 0 {
			continue
		}
		in, err := fs.readInodeAt(block)
		if err != nil {
			return lfserr.Wrap(lfserr.IoError, "applyRelocations", err).
				WithContext("ino", fmt.Sprintf("%d", i))
		}

		dirty := false
		for j, ptr := range in.Direct {
			if ptr == 0 {
				continue
			}
			if newPtr, moved := relocation[ptr]; moved {
				in.Direct[j] = newPtr
				dirty = true
			}
		}
		if !dirty {
			continue
		}

		buf := in.Encode()
		if err := fs.dev.WriteBlock(block, buf[:]); err != nil {
			return lfserr.Wrap(lfserr.IoError, "applyRelocations", err).
				WithContext("ino", fmt.Sprintf("%d", i)).
				WithContext("block", fmt.Sprintf("%d", block))
		}
	}
	return nil
}

// rewindTail scans the post-relocation inode map and every live inode's
// direct[] for the highest referenced block, rounds one past it up to
// the next segment boundary, and clamps the result to oldTail so that
// rounding can never push the tail past where it started.
func (fs *Filesystem) rewindTail(oldTail uint32) uint32 {
	highest := uint32(types.LogStart)
	for _, block := range fs.inodeMap {
		if block == 0 {
			continue
		}
		if block+1 > highest {
			highest = block + 1
		}
		in, err := fs.readInodeAt(block)
		if err != nil {
			continue
		}
		for _, ptr := range in.Direct {
			if ptr != 0 && ptr+1 > highest {
				highest = ptr + 1
			}
		}
	}

	newTail := highest
	if rem := newTail % types.BlocksPerSegment; rem != 0 {
		newTail += types.BlocksPerSegment - rem
	}
	if newTail > oldTail {
		newTail = oldTail
	}
	return newTail
}
