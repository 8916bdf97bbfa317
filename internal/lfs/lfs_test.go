package lfs

import (
	"testing"

	"github.com/logfs/logfs/internal/device"
	"github.com/logfs/logfs/pkg/lfserr"
	"github.com/logfs/logfs/pkg/types"
	"github.com/stretchr/testify/require"
)

// newTestFS bootstraps a blank in-memory image, mounts it, and creates the
// root directory — the minimum any operation-level test needs. totalBlocks
// lets GC-boundary tests use a small image instead of the 1024-block
// reference size.
func newTestFS(t *testing.T, totalBlocks uint32, opts ...Option) (*Filesystem, *device.Memory) {
	t.Helper()
	dev := device.NewMemory(totalBlocks)

	sb := types.Superblock{
		Magic:         types.Magic,
		BlockSize:     types.BlockSize,
		TotalBlocks:   totalBlocks,
		InodeMapBlock: types.InodeMapBlock,
		LogStart:      types.LogStart,
		LogTail:       types.LogStart,
	}
	sbBuf := sb.Encode()
	require.NoError(t, dev.WriteBlock(0, sbBuf[:]))

	var imap types.InodeMap
	imapBuf := imap.Encode()
	require.NoError(t, dev.WriteBlock(types.InodeMapBlock, imapBuf[:]))

	fs, err := Mount(dev, opts...)
	require.NoError(t, err)
	require.NoError(t, fs.InitRoot())
	return fs, dev
}

func TestMountRejectsBadMagic(t *testing.T) {
	dev := device.NewMemory(64)
	sb := types.Superblock{Magic: 0xdeadbeef, TotalBlocks: 64, InodeMapBlock: types.InodeMapBlock, LogStart: types.LogStart, LogTail: types.LogStart}
	buf := sb.Encode()
	require.NoError(t, dev.WriteBlock(0, buf[:]))

	_, err := Mount(dev)
	require.Error(t, err)
}

func TestInitRootIsIdempotent(t *testing.T) {
	fs, _ := newTestFS(t, 128)
	require.NoError(t, fs.InitRoot())

	entries, err := fs.ReadDir("/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestCreateAndResolve(t *testing.T) {
	fs, _ := newTestFS(t, 128)
	require.NoError(t, fs.Create("/a"))

	ino, err := fs.resolve("/a")
	require.NoError(t, err)
	require.NotEqual(t, uint32(0), ino)

	attr, err := fs.GetAttr("/a")
	require.NoError(t, err)
	require.False(t, attr.IsDir)
	require.Equal(t, uint32(0), attr.Size)
}

func TestCreateDuplicateFails(t *testing.T) {
	fs, _ := newTestFS(t, 128)
	require.NoError(t, fs.Create("/a"))
	err := fs.Create("/a")
	require.Error(t, err)
}

func TestWriteReadRoundTrip(t *testing.T) {
	fs, _ := newTestFS(t, 128)
	require.NoError(t, fs.Create("/a"))

	n, err := fs.Write("/a", 0, []byte("abc"))
	require.NoError(t, err)
	require.Equal(t, 3, n)

	got, err := fs.Read("/a", 0, 16)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)

	attr, err := fs.GetAttr("/a")
	require.NoError(t, err)
	require.Equal(t, uint32(3), attr.Size)
}

func TestWriteSameBytesTwiceIsStable(t *testing.T) {
	fs, _ := newTestFS(t, 128)
	require.NoError(t, fs.Create("/a"))

	_, err := fs.Write("/a", 0, []byte("same"))
	require.NoError(t, err)
	first, err := fs.Read("/a", 0, 4)
	require.NoError(t, err)

	_, err = fs.Write("/a", 0, []byte("same"))
	require.NoError(t, err)
	second, err := fs.Read("/a", 0, 4)
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestOverwriteAppendsNewBlocksScenarioS3(t *testing.T) {
	fs, dev := newTestFS(t, 256)
	require.NoError(t, fs.Create("/a"))
	_, err := fs.Write("/a", 0, []byte("abc"))
	require.NoError(t, err)

	tailBefore := fs.sb.LogTail
	_, err = fs.Write("/a", 0, []byte("XYZ"))
	require.NoError(t, err)

	// One data block and one inode block: exactly two blocks appended.
	require.Equal(t, tailBefore+2, fs.sb.LogTail)

	got, err := fs.Read("/a", 0, 3)
	require.NoError(t, err)
	require.Equal(t, []byte("XYZ"), got)
	_ = dev
}

func TestTruncateToZeroScenarioS6(t *testing.T) {
	fs, _ := newTestFS(t, 256)
	require.NoError(t, fs.Create("/a"))
	_, err := fs.Write("/a", 0, []byte("XYZ"))
	require.NoError(t, err)

	require.NoError(t, fs.Truncate("/a", 0))

	got, err := fs.Read("/a", 0, 16)
	require.NoError(t, err)
	require.Empty(t, got)

	attr, err := fs.GetAttr("/a")
	require.NoError(t, err)
	require.Equal(t, uint32(0), attr.Size)
}

// TestTruncateRejectsNonZeroSize checks that Truncate only ever accepts
// size == 0: any other size, whether it would grow or shrink the file,
// is rejected with NotPermitted and leaves the file untouched.
func TestTruncateRejectsNonZeroSize(t *testing.T) {
	fs, _ := newTestFS(t, 256)
	require.NoError(t, fs.Create("/a"))
	_, err := fs.Write("/a", 0, []byte("XYZ"))
	require.NoError(t, err)

	err = fs.Truncate("/a", 1)
	require.Error(t, err)
	require.Equal(t, lfserr.NotPermitted, lfserr.KindOf(err))

	err = fs.Truncate("/a", 4096)
	require.Error(t, err)
	require.Equal(t, lfserr.NotPermitted, lfserr.KindOf(err))

	got, err := fs.Read("/a", 0, 16)
	require.NoError(t, err)
	require.Equal(t, []byte("XYZ"), got)
}

func TestTruncateThenReadAllSizesEmpty(t *testing.T) {
	fs, _ := newTestFS(t, 128)
	require.NoError(t, fs.Create("/a"))
	_, err := fs.Write("/a", 0, []byte("hello"))
	require.NoError(t, err)
	require.NoError(t, fs.Truncate("/a", 0))

	for _, n := range []int{0, 1, 16, 4096} {
		got, err := fs.Read("/a", 0, n)
		require.NoError(t, err)
		require.Empty(t, got)
	}
}

func TestDirectoryListingScenarioS5(t *testing.T) {
	fs, _ := newTestFS(t, 128)
	require.NoError(t, fs.Create("/x"))
	require.NoError(t, fs.Create("/y"))

	entries, err := fs.ReadDir("/")
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name] = true
	}
	require.Equal(t, map[string]bool{".": true, "..": true, "x": true, "y": true}, names)
}

func TestWriteSpanningBlockBoundary(t *testing.T) {
	fs, _ := newTestFS(t, 128)
	require.NoError(t, fs.Create("/a"))

	data := make([]byte, 10)
	for i := range data {
		data[i] = byte(i)
	}
	offset := int64(types.BlockSize - 5)
	_, err := fs.Write("/a", offset, data)
	require.NoError(t, err)

	got, err := fs.Read("/a", offset, len(data))
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestWriteAtMaxOffsetBoundary(t *testing.T) {
	fs, _ := newTestFS(t, 512)
	require.NoError(t, fs.Create("/a"))

	last := MaxFileSize - 1
	_, err := fs.Write("/a", last, []byte{0x42})
	require.NoError(t, err)

	_, err = fs.Write("/a", MaxFileSize, []byte{0x42})
	require.Error(t, err)
	require.Equal(t, lfserr.FileTooBig, lfserr.KindOf(err))
}

// TestWriteClampsWhenItWouldOverrunMaxFileSize checks that a write
// starting inside the addressable range but whose length would carry it
// past MaxFileSize is clamped to end at the limit, rather than being
// rejected outright the way a write starting at or past the limit is.
func TestWriteClampsWhenItWouldOverrunMaxFileSize(t *testing.T) {
	fs, _ := newTestFS(t, 512)
	require.NoError(t, fs.Create("/a"))

	n, err := fs.Write("/a", MaxFileSize-1, []byte{0x41, 0x42})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := fs.Read("/a", MaxFileSize-1, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{0x41}, got)
}

func TestAllocInodeExhaustion(t *testing.T) {
	fs, _ := newTestFS(t, 4096)
	// The one-block root directory holds far fewer entries than the inode
	// map, so the map is filled through the inode layer directly.
	for i := 0; i < types.InodeMapSize-1; i++ {
		ino, err := fs.allocInode()
		require.NoError(t, err, "inode %d", i)
		require.NoError(t, fs.writeInode(types.Inode{InodeNo: ino, Type: types.InodeTypeFile, NLinks: 1}), "inode %d", i)
	}

	err := fs.Create("/overflow")
	require.Error(t, err)
	require.Equal(t, lfserr.MapFull, lfserr.KindOf(err))
}

func TestDirectoryFullRejectsCreate(t *testing.T) {
	fs, _ := newTestFS(t, 8192)
	limit := types.BlockSize/int(types.DirEntSize()) - 2 // minus "." and ".."
	for i := 0; i < limit; i++ {
		name := "/n" + string(rune('a'+i%26)) + string(rune('A'+(i/26)%26))
		require.NoError(t, fs.Create(name), "entry %d", i)
	}

	err := fs.Create("/overflow")
	require.Error(t, err)
}
