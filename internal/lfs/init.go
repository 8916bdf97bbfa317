package lfs

import "github.com/logfs/logfs/pkg/types"

// InitRoot creates the root directory inode (inode 0) if the image does
// not already have one, and checkpoints. The formatter calls this once,
// immediately after mounting a freshly zeroed image, before any file can
// be created — every other operation assumes inode 0 already resolves.
func (fs *Filesystem) InitRoot() error {
	if fs.inodeMap[rootIno] != 0 {
		return nil
	}
	root := types.Inode{InodeNo: rootIno, Type: types.InodeTypeDir, NLinks: 1}
	if err := fs.writeInode(root); err != nil {
		return err
	}

	// Seed "." and ".." the way the reference formatter does, both
	// pointing back at the root inode — there is no parent to link to in
	// a single-level filesystem.
	root, err := fs.addDirEntry(root, rootIno, ".")
	if err != nil {
		return err
	}
	if _, err := fs.addDirEntry(root, rootIno, ".."); err != nil {
		return err
	}
	return fs.checkpoint()
}
