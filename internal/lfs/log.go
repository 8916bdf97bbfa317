package lfs

import (
	"fmt"

	"github.com/logfs/logfs/pkg/lfserr"
	"github.com/logfs/logfs/pkg/types"
)

// append writes buf at the current log tail, records (inodeNo, blockIdx)
// in the owning segment's summary, advances the tail, and returns the
// block number written. It never places a data block at offset 0 within
// a segment — that offset is reserved for the segment summary itself —
// so if the tail lands exactly on a segment boundary, append first writes
// a zero summary there and advances past it before writing buf.
func (fs *Filesystem) append(buf []byte, inodeNo, blockIdx uint32) (uint32, error) {
	if len(buf) != types.BlockSize {
		return 0, lfserr.New(lfserr.IoError, "append").WithContext("reason", "bad buffer size")
	}

	if fs.sb.LogTail >= fs.sb.TotalBlocks {
		return 0, lfserr.New(lfserr.NoSpace, "append").
			WithContext("log_tail", fmt.Sprintf("%d", fs.sb.LogTail))
	}

	if fs.segOffset(fs.sb.LogTail) == 0 {
		if err := fs.advancePastSummary(); err != nil {
			return 0, err
		}
	}

	if fs.sb.LogTail >= fs.sb.TotalBlocks {
		return 0, lfserr.New(lfserr.NoSpace, "append").
			WithContext("log_tail", fmt.Sprintf("%d", fs.sb.LogTail))
	}

	block := fs.sb.LogTail
	if err := fs.dev.WriteBlock(block, buf); err != nil {
		return 0, lfserr.Wrap(lfserr.IoError, "append", err).
			WithContext("block", fmt.Sprintf("%d", block))
	}

	offset := fs.segOffset(block)
	if offset != 0 {
		if err := fs.setSummaryEntry(fs.segBase(block), offset, inodeNo, blockIdx); err != nil {
			return 0, err
		}
	}

	fs.sb.LogTail = block + 1
	return block, nil
}

// advancePastSummary is called when the tail sits exactly on a segment
// boundary: it writes a zero summary block there (offset 0 is never a
// data block target) and advances the tail by one so the next append
// lands at offset >= 1.
func (fs *Filesystem) advancePastSummary() error {
	if fs.sb.LogTail >= fs.sb.TotalBlocks {
		return lfserr.New(lfserr.NoSpace, "advancePastSummary")
	}
	sum := types.SegSummary{}
	buf := sum.Encode()
	if err := fs.dev.WriteBlock(fs.sb.LogTail, buf[:]); err != nil {
		return lfserr.Wrap(lfserr.IoError, "advancePastSummary", err)
	}
	fs.sb.LogTail++
	return nil
}

func (fs *Filesystem) segBase(block uint32) uint32 {
	return (block / types.BlocksPerSegment) * types.BlocksPerSegment
}

func (fs *Filesystem) segOffset(block uint32) uint32 {
	return block - fs.segBase(block)
}

func (fs *Filesystem) setSummaryEntry(segBase, offset, inodeNo, blockIdx uint32) error {
	var buf [types.BlockSize]byte
	if err := fs.dev.ReadBlock(segBase, buf[:]); err != nil {
		return lfserr.Wrap(lfserr.IoError, "setSummaryEntry", err).
			WithContext("segment_base", fmt.Sprintf("%d", segBase))
	}
	sum := types.DecodeSegSummary(buf[:])
	sum.Entries[offset] = types.SegSummaryEntry{InodeNo: inodeNo, BlockIdx: blockIdx}
	out := sum.Encode()
	if err := fs.dev.WriteBlock(segBase, out[:]); err != nil {
		return lfserr.Wrap(lfserr.IoError, "setSummaryEntry", err).
			WithContext("segment_base", fmt.Sprintf("%d", segBase))
	}
	return nil
}

// checkpoint durably writes the in-memory inode map and superblock, in
// that order, so a crash between the two leaves the old superblock (and
// therefore the old, still-consistent, log tail) as the durable state.
func (fs *Filesystem) checkpoint() error {
	imapBuf := fs.inodeMap.Encode()
	if err := fs.dev.WriteBlock(types.InodeMapBlock, imapBuf[:]); err != nil {
		return lfserr.Wrap(lfserr.IoError, "checkpoint", err)
	}

	sbBuf := fs.sb.Encode()
	if err := fs.dev.WriteBlock(0, sbBuf[:]); err != nil {
		return lfserr.Wrap(lfserr.IoError, "checkpoint", err)
	}

	if fs.metrics != nil {
		fs.metrics.SetLogOccupancy(fs.sb.LogTail, fs.sb.TotalBlocks)
	}
	return nil
}
