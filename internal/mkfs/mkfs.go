// Package mkfs formats a fresh logfs image: it lays down a minimal valid
// superblock and inode map by hand, then hands the image to the lfs core
// so the root directory and any seed content are written through the
// same log writer every later mount uses — mkfs never pokes file data
// into the image directly.
package mkfs

import (
	"github.com/logfs/logfs/internal/device"
	"github.com/logfs/logfs/internal/lfs"
	"github.com/logfs/logfs/pkg/types"
)

// Config controls image formatting.
type Config struct {
	// TotalBlocks sizes the image. Zero selects types.TotalBlocksDefault.
	TotalBlocks uint32
	// SeedHello, when true, creates /hello.txt with the reference greeting
	// used by the bundled demo and its end-to-end test.
	SeedHello bool
}

// helloContents matches the seeded demo file used throughout the test
// suite; it intentionally differs from the very first prototype's message
// by one trailing character.
const helloContents = "Hello from LFS!\n"

// Format creates a new image at path and writes it out. It always leaves
// behind a mountable filesystem with an empty root directory; SeedHello
// additionally populates /hello.txt.
func Format(path string, cfg Config) error {
	total := cfg.TotalBlocks
	if total == 0 {
		total = types.TotalBlocksDefault
	}

	dev, err := device.Create(path, total)
	if err != nil {
		return err
	}
	if err := writeBootstrap(dev, total); err != nil {
		dev.Close()
		return err
	}

	fs, err := lfs.Mount(dev)
	if err != nil {
		dev.Close()
		return err
	}
	if err := fs.InitRoot(); err != nil {
		fs.Unmount()
		return err
	}

	if cfg.SeedHello {
		if err := fs.Create("/hello.txt"); err != nil {
			fs.Unmount()
			return err
		}
		if _, err := fs.Write("/hello.txt", 0, []byte(helloContents)); err != nil {
			fs.Unmount()
			return err
		}
	}

	return fs.Unmount()
}

// writeBootstrap lays down the smallest superblock and inode map that
// lfs.Mount will accept: a valid magic, the fixed layout constants, and a
// log tail sitting at log_start with nothing allocated yet. Everything
// past this point is written through the log.
func writeBootstrap(dev types.BlockDevice, total uint32) error {
	sb := types.Superblock{
		Magic:         types.Magic,
		BlockSize:     types.BlockSize,
		TotalBlocks:   total,
		InodeMapBlock: types.InodeMapBlock,
		LogStart:      types.LogStart,
		LogTail:       types.LogStart,
	}
	sbBuf := sb.Encode()
	if err := dev.WriteBlock(0, sbBuf[:]); err != nil {
		return err
	}

	var imap types.InodeMap
	imapBuf := imap.Encode()
	return dev.WriteBlock(types.InodeMapBlock, imapBuf[:])
}
