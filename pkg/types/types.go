// Package types defines the on-disk data model shared by every layer of
// logfs: the block device, the log writer, the inode layer, and the FUSE
// bridge all encode and decode the same fixed-layout structures defined
// here. Every multi-byte integer is little-endian, per the disk image
// layout.
package types

import "encoding/binary"

const (
	// BlockSize is the fixed size of every block on disk and in memory.
	BlockSize = 4096

	// Magic identifies a valid logfs image.
	Magic uint32 = 0x4C465331

	// TotalBlocksDefault is the reference image size: a 4 MiB image.
	TotalBlocksDefault = 1024

	// InodeMapBlock is the fixed block holding the inode map.
	InodeMapBlock = 1

	// LogStart is the first block available to the log writer; blocks
	// below it are reserved for the superblock, inode map, and padding.
	LogStart = 10

	// InodeMapSize is the number of entries in the inode map, i.e. the
	// number of inode numbers the filesystem can ever allocate.
	InodeMapSize = 256

	// MaxDirectPtrs is the number of direct block pointers an inode
	// carries; there are no indirect blocks.
	MaxDirectPtrs = 10

	// MaxNameLen is the maximum length of a directory entry name,
	// including the terminating NUL.
	MaxNameLen = 28

	// BlocksPerSegment is the number of blocks in one segment, including
	// its summary block.
	BlocksPerSegment = 32

	// GCThreshold is the free-block headroom below which the garbage
	// collector runs before the next append.
	GCThreshold = 700

	// InodeTypeFile and InodeTypeDir are the two inode types.
	InodeTypeFile = 1
	InodeTypeDir  = 2

	// dirEntSize is the encoded size of one directory entry: a u32
	// inode number plus a MaxNameLen-byte name.
	dirEntSize = 4 + MaxNameLen

	// MaxDirents is the number of directory entries that fit in one
	// block, since a directory's data is always exactly one block.
	MaxDirents = BlockSize / dirEntSize
)

// Superblock is the on-disk layout of block 0.
type Superblock struct {
	Magic         uint32
	BlockSize     uint32
	TotalBlocks   uint32
	InodeMapBlock uint32
	LogStart      uint32
	LogTail       uint32
}

// Encode writes sb into a zero-padded 4096-byte block.
func (sb *Superblock) Encode() [BlockSize]byte {
	var buf [BlockSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], sb.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], sb.BlockSize)
	binary.LittleEndian.PutUint32(buf[8:12], sb.TotalBlocks)
	binary.LittleEndian.PutUint32(buf[12:16], sb.InodeMapBlock)
	binary.LittleEndian.PutUint32(buf[16:20], sb.LogStart)
	binary.LittleEndian.PutUint32(buf[20:24], sb.LogTail)
	return buf
}

// DecodeSuperblock reads a Superblock from a 4096-byte block.
func DecodeSuperblock(buf []byte) Superblock {
	return Superblock{
		Magic:         binary.LittleEndian.Uint32(buf[0:4]),
		BlockSize:     binary.LittleEndian.Uint32(buf[4:8]),
		TotalBlocks:   binary.LittleEndian.Uint32(buf[8:12]),
		InodeMapBlock: binary.LittleEndian.Uint32(buf[12:16]),
		LogStart:      binary.LittleEndian.Uint32(buf[16:20]),
		LogTail:       binary.LittleEndian.Uint32(buf[20:24]),
	}
}

// InodeMap is the in-memory and on-disk array of inode-number -> block
// mappings held at block InodeMapBlock. An entry whose value is 0 means
// "unallocated"; entry 0 itself is the root directory.
type InodeMap [InodeMapSize]uint32

// Encode writes m into a zero-padded 4096-byte block.
func (m *InodeMap) Encode() [BlockSize]byte {
	var buf [BlockSize]byte
	for i, v := range m {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], v)
	}
	return buf
}

// DecodeInodeMap reads an InodeMap from a 4096-byte block.
func DecodeInodeMap(buf []byte) InodeMap {
	var m InodeMap
	for i := range m {
		m[i] = binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
	}
	return m
}

// Inode is the on-disk layout of an inode. It always occupies a whole
// block; there is no packing of multiple inodes per block.
type Inode struct {
	InodeNo uint32
	Type    uint32
	Size    uint32
	NLinks  uint32
	Direct  [MaxDirectPtrs]uint32
}

// IsDir reports whether the inode is a directory.
func (in *Inode) IsDir() bool { return in.Type == InodeTypeDir }

// IsFile reports whether the inode is a regular file.
func (in *Inode) IsFile() bool { return in.Type == InodeTypeFile }

// Encode writes in into a zero-padded 4096-byte block.
func (in *Inode) Encode() [BlockSize]byte {
	var buf [BlockSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], in.InodeNo)
	binary.LittleEndian.PutUint32(buf[4:8], in.Type)
	binary.LittleEndian.PutUint32(buf[8:12], in.Size)
	binary.LittleEndian.PutUint32(buf[12:16], in.NLinks)
	for i, ptr := range in.Direct {
		off := 16 + i*4
		binary.LittleEndian.PutUint32(buf[off:off+4], ptr)
	}
	return buf
}

// DecodeInode reads an Inode from a 4096-byte block.
func DecodeInode(buf []byte) Inode {
	var in Inode
	in.InodeNo = binary.LittleEndian.Uint32(buf[0:4])
	in.Type = binary.LittleEndian.Uint32(buf[4:8])
	in.Size = binary.LittleEndian.Uint32(buf[8:12])
	in.NLinks = binary.LittleEndian.Uint32(buf[12:16])
	for i := range in.Direct {
		off := 16 + i*4
		in.Direct[i] = binary.LittleEndian.Uint32(buf[off : off+4])
	}
	return in
}

// DirEntry is one entry of a directory's data block.
type DirEntry struct {
	InodeNo uint32
	Name    string
}

// Free reports whether the slot is unused.
func (d DirEntry) Free() bool { return d.InodeNo == 0 }

// encodeDirEntry writes one dirent at buf[off:off+dirEntSize].
func encodeDirEntry(buf []byte, off int, d DirEntry) {
	binary.LittleEndian.PutUint32(buf[off:off+4], d.InodeNo)
	name := buf[off+4 : off+dirEntSize]
	for i := range name {
		name[i] = 0
	}
	copy(name, d.Name)
}

// decodeDirEntry reads one dirent at buf[off:off+dirEntSize].
func decodeDirEntry(buf []byte, off int) DirEntry {
	inodeNo := binary.LittleEndian.Uint32(buf[off : off+4])
	raw := buf[off+4 : off+dirEntSize]
	n := 0
	for n < len(raw) && raw[n] != 0 {
		n++
	}
	return DirEntry{InodeNo: inodeNo, Name: string(raw[:n])}
}

// DirBlock is the decoded contents of a directory's single data block:
// up to MaxDirents entries, some free.
type DirBlock struct {
	Entries [MaxDirents]DirEntry
}

// Encode writes db into a zero-padded 4096-byte block.
func (db *DirBlock) Encode() [BlockSize]byte {
	var buf [BlockSize]byte
	for i, e := range db.Entries {
		encodeDirEntry(buf[:], i*dirEntSize, e)
	}
	return buf
}

// DecodeDirBlock reads a DirBlock from a 4096-byte block.
func DecodeDirBlock(buf []byte) DirBlock {
	var db DirBlock
	for i := range db.Entries {
		db.Entries[i] = decodeDirEntry(buf, i*dirEntSize)
	}
	return db
}

// DirEntSize returns the on-disk size of one directory entry, used by
// callers computing slot indices from an inode's Size field.
func DirEntSize() uint32 { return dirEntSize }

// SegSummaryEntry identifies the owner of one block within a segment.
type SegSummaryEntry struct {
	InodeNo  uint32
	BlockIdx uint32
}

// SegSummary is the on-disk layout of a segment's first block: one entry
// per block in the segment. Entry 0 is unused — that slot is the summary
// block itself.
type SegSummary struct {
	Entries [BlocksPerSegment]SegSummaryEntry
}

// Encode writes s into a zero-padded 4096-byte block.
func (s *SegSummary) Encode() [BlockSize]byte {
	var buf [BlockSize]byte
	for i, e := range s.Entries {
		off := i * 8
		binary.LittleEndian.PutUint32(buf[off:off+4], e.InodeNo)
		binary.LittleEndian.PutUint32(buf[off+4:off+8], e.BlockIdx)
	}
	return buf
}

// DecodeSegSummary reads a SegSummary from a 4096-byte block.
func DecodeSegSummary(buf []byte) SegSummary {
	var s SegSummary
	for i := range s.Entries {
		off := i * 8
		s.Entries[i] = SegSummaryEntry{
			InodeNo:  binary.LittleEndian.Uint32(buf[off : off+4]),
			BlockIdx: binary.LittleEndian.Uint32(buf[off+4 : off+8]),
		}
	}
	return s
}
