package device

import (
	"fmt"

	"github.com/logfs/logfs/pkg/lfserr"
	"github.com/logfs/logfs/pkg/types"
)

// Memory is an in-memory BlockDevice, used by tests that want to exercise
// the log writer, inode layer, and GC without touching a real file.
type Memory struct {
	blocks [][types.BlockSize]byte
	closed bool
}

// NewMemory creates an in-memory device with totalBlocks blocks, all
// zeroed.
func NewMemory(totalBlocks uint32) *Memory {
	return &Memory{blocks: make([][types.BlockSize]byte, totalBlocks)}
}

// NewMemoryFromSnapshot creates an in-memory device pre-populated with
// blocks, standing in for reopening a real file that outlives the
// process — tests use this to simulate unmount/mount across a restart.
func NewMemoryFromSnapshot(blocks [][types.BlockSize]byte) *Memory {
	out := make([][types.BlockSize]byte, len(blocks))
	copy(out, blocks)
	return &Memory{blocks: out}
}

func (m *Memory) ReadBlock(n uint32, out []byte) error {
	if m.closed {
		return lfserr.New(lfserr.IoError, "memory.ReadBlock").WithContext("reason", "device closed")
	}
	if int(n) >= len(m.blocks) {
		return lfserr.New(lfserr.IoError, "memory.ReadBlock").
			WithContext("reason", fmt.Sprintf("block %d out of range", n))
	}
	if len(out) != types.BlockSize {
		return lfserr.New(lfserr.IoError, "memory.ReadBlock").WithContext("reason", "bad buffer size")
	}
	copy(out, m.blocks[n][:])
	return nil
}

func (m *Memory) WriteBlock(n uint32, in []byte) error {
	if m.closed {
		return lfserr.New(lfserr.IoError, "memory.WriteBlock").WithContext("reason", "device closed")
	}
	if int(n) >= len(m.blocks) {
		return lfserr.New(lfserr.IoError, "memory.WriteBlock").
			WithContext("reason", fmt.Sprintf("block %d out of range", n))
	}
	if len(in) != types.BlockSize {
		return lfserr.New(lfserr.IoError, "memory.WriteBlock").WithContext("reason", "bad buffer size")
	}
	copy(m.blocks[n][:], in)
	return nil
}

func (m *Memory) Close() error {
	m.closed = true
	return nil
}

// Snapshot returns a copy of the raw block contents, useful for asserting
// on-disk state directly in tests.
func (m *Memory) Snapshot() [][types.BlockSize]byte {
	out := make([][types.BlockSize]byte, len(m.blocks))
	copy(out, m.blocks)
	return out
}

var _ types.BlockDevice = (*Memory)(nil)
