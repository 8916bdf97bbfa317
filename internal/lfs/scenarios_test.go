package lfs

import (
	"fmt"
	"testing"

	"github.com/logfs/logfs/internal/device"
	"github.com/logfs/logfs/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestCreateWriteRemountScenarioS2(t *testing.T) {
	fs, dev := newTestFS(t, 256)
	require.NoError(t, fs.Create("/a"))
	_, err := fs.Write("/a", 0, []byte("abc"))
	require.NoError(t, err)
	require.NoError(t, fs.Unmount())

	remounted := device.NewMemoryFromSnapshot(dev.Snapshot())
	fs2, err := Mount(remounted)
	require.NoError(t, err)

	got, err := fs2.Read("/a", 0, 16)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)

	attr, err := fs2.GetAttr("/a")
	require.NoError(t, err)
	require.Equal(t, uint32(3), attr.Size)
}

// TestGCReclaimsSpaceScenarioS4 repeatedly overwrites a single block of a
// file until the log is within GC_THRESHOLD of the end, then checks that
// the next write triggers a GC pass that shrinks the tail while
// preserving the file's last-written content and invariant 1 (every
// allocated inode map entry points at a block that decodes back to that
// same inode number).
func TestGCReclaimsSpaceScenarioS4(t *testing.T) {
	const threshold = 8
	const totalBlocks = 64
	fs, _ := newTestFS(t, totalBlocks, WithGCThreshold(threshold))
	require.NoError(t, fs.Create("/a"))

	var last string
	for fs.sb.TotalBlocks-fs.sb.LogTail >= threshold {
		last = fmt.Sprintf("v%d", fs.sb.LogTail)
		_, err := fs.Write("/a", 0, []byte(last))
		require.NoError(t, err)
	}

	tailBeforeGCTrigger := fs.sb.LogTail
	last = "final-write-triggers-gc"
	_, err := fs.Write("/a", 0, []byte(last))
	require.NoError(t, err)

	require.Less(t, fs.sb.LogTail, tailBeforeGCTrigger+2,
		"GC should have reclaimed space instead of only growing the tail")

	got, err := fs.Read("/a", 0, len(last))
	require.NoError(t, err)
	require.Equal(t, []byte(last), got)

	assertInvariant1(t, fs)
}

// assertInvariant1 checks that every allocated inode map entry points at
// a block within [log_start, log_tail) whose stored inode number matches.
func assertInvariant1(t *testing.T, fs *Filesystem) {
	t.Helper()
	for i, block := range fs.inodeMap {
		if block == 0 {
			continue
		}
		require.GreaterOrEqual(t, block, uint32(types.LogStart))
		require.Less(t, block, fs.sb.LogTail)

		in, err := fs.readInodeAt(block)
		require.NoError(t, err)
		require.Equal(t, uint32(i), in.InodeNo)
	}
}

func TestGCPreservesMultipleFiles(t *testing.T) {
	const threshold = 8
	fs, _ := newTestFS(t, 64, WithGCThreshold(threshold))
	require.NoError(t, fs.Create("/a"))
	require.NoError(t, fs.Create("/b"))
	_, err := fs.Write("/a", 0, []byte("alpha"))
	require.NoError(t, err)
	_, err = fs.Write("/b", 0, []byte("beta"))
	require.NoError(t, err)

	for fs.sb.TotalBlocks-fs.sb.LogTail >= threshold {
		_, err := fs.Write("/a", 0, []byte("padding-write"))
		require.NoError(t, err)
	}

	// Free space is now under the threshold, so this write runs GC first.
	tailBeforeGC := fs.sb.LogTail
	_, err = fs.Write("/a", 0, []byte("padding-write"))
	require.NoError(t, err)
	require.Less(t, fs.sb.LogTail, tailBeforeGC)

	gotA, err := fs.Read("/a", 0, 32)
	require.NoError(t, err)
	require.Equal(t, []byte("padding-write"), gotA)

	gotB, err := fs.Read("/b", 0, 32)
	require.NoError(t, err)
	require.Equal(t, []byte("beta"), gotB)

	assertInvariant1(t, fs)
}

// TestWriteTriggersGCBetweenBlocksOfSameWrite pins the free-space/threshold
// line exactly at the point where a write's first block append crosses it,
// so GC must fire between that write's own blocks rather than only at the
// top of Write. A write spanning two blocks is used, and the write's second
// block and its own earlier (first) block both have to survive the GC pass
// sitting between them.
func TestWriteTriggersGCBetweenBlocksOfSameWrite(t *testing.T) {
	fs, _ := newTestFS(t, 64, WithGCThreshold(8))
	require.NoError(t, fs.Create("/a"))

	// Repeated single-byte overwrites of the same file's first block each
	// leave their predecessor's data and inode blocks dead, building up a
	// pile of reclaimable space.
	for i := 0; i < 8; i++ {
		_, err := fs.Write("/a", 0, []byte{byte('a' + i)})
		require.NoError(t, err)
	}

	// Pin the threshold to the free space sitting right now: shouldRunGC
	// is false entering the write below, so GC cannot have run before its
	// first block. Appending that first block alone drops free space by
	// one, crossing under the threshold, which is what forces the second
	// block's append to run GC first.
	free := fs.sb.TotalBlocks - fs.sb.LogTail
	require.Greater(t, free, uint32(0))
	fs.gcThreshold = free

	data := make([]byte, types.BlockSize+16)
	for i := range data {
		data[i] = byte(i)
	}
	n, err := fs.Write("/a", 0, data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	got, err := fs.Read("/a", 0, len(data))
	require.NoError(t, err)
	require.Equal(t, data, got)

	assertInvariant1(t, fs)
}
