package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuperblockRoundTrip(t *testing.T) {
	sb := Superblock{
		Magic:         Magic,
		BlockSize:     BlockSize,
		TotalBlocks:   TotalBlocksDefault,
		InodeMapBlock: InodeMapBlock,
		LogStart:      LogStart,
		LogTail:       42,
	}
	buf := sb.Encode()
	assert.Equal(t, BlockSize, len(buf))

	got := DecodeSuperblock(buf[:])
	assert.Equal(t, sb, got)
}

func TestInodeMapRoundTrip(t *testing.T) {
	var m InodeMap
	m[0] = 2
	m[5] = 99

	buf := m.Encode()
	got := DecodeInodeMap(buf[:])
	assert.Equal(t, m, got)
}

func TestInodeRoundTrip(t *testing.T) {
	in := Inode{InodeNo: 3, Type: InodeTypeFile, Size: 12345, NLinks: 1}
	in.Direct[0] = 11
	in.Direct[9] = 20

	buf := in.Encode()
	got := DecodeInode(buf[:])
	assert.Equal(t, in, got)
	assert.True(t, got.IsFile())
	assert.False(t, got.IsDir())
}

func TestDirBlockRoundTrip(t *testing.T) {
	var db DirBlock
	db.Entries[0] = DirEntry{InodeNo: 0, Name: "."}
	db.Entries[1] = DirEntry{InodeNo: 0, Name: ".."}
	db.Entries[2] = DirEntry{InodeNo: 7, Name: "hello.txt"}

	buf := db.Encode()
	got := DecodeDirBlock(buf[:])
	assert.Equal(t, db, got)
	assert.True(t, got.Entries[3].Free())
}

func TestMaxDirentsFitsBlock(t *testing.T) {
	assert.Equal(t, 128, MaxDirents)
	assert.Equal(t, uint32(32), DirEntSize())
}

func TestSegSummaryRoundTrip(t *testing.T) {
	var s SegSummary
	s.Entries[1] = SegSummaryEntry{InodeNo: 4, BlockIdx: 2}
	s.Entries[31] = SegSummaryEntry{InodeNo: 0, BlockIdx: 0}

	buf := s.Encode()
	got := DecodeSegSummary(buf[:])
	assert.Equal(t, s, got)
}
