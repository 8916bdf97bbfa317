package lfs

import (
	"strings"

	"github.com/logfs/logfs/pkg/lfserr"
	"github.com/logfs/logfs/pkg/types"
)

const rootIno = 0

// resolve maps a single-level absolute path to an inode number. Only "/"
// and "/name" shapes are supported — no nested directories, no links.
func (fs *Filesystem) resolve(path string) (uint32, error) {
	if path == "/" {
		return rootIno, nil
	}
	name, err := splitOneLevel(path)
	if err != nil {
		return 0, err
	}

	root, err := fs.readInode(rootIno)
	if err != nil {
		return 0, err
	}
	db, err := fs.readDirBlock(root)
	if err != nil {
		return 0, err
	}

	n := int(root.Size / types.DirEntSize())
	for i := 0; i < n && i < types.MaxDirents; i++ {
		e := db.Entries[i]
		if e.InodeNo != 0 && e.Name == name {
			return e.InodeNo, nil
		}
	}
	return 0, lfserr.New(lfserr.NotFound, "resolve").WithPath(path)
}

// splitOneLevel validates that path is "/<name>" with a name of legal
// length, and returns name.
func splitOneLevel(path string) (string, error) {
	if len(path) == 0 || path[0] != '/' {
		return "", lfserr.New(lfserr.InvalidPath, "splitOneLevel").WithPath(path)
	}
	rest := path[1:]
	if rest == "" || strings.Contains(rest, "/") {
		return "", lfserr.New(lfserr.InvalidPath, "splitOneLevel").WithPath(path)
	}
	if len(rest) >= types.MaxNameLen {
		return "", lfserr.New(lfserr.NameTooLong, "splitOneLevel").WithPath(path)
	}
	return rest, nil
}

// readDirBlock reads a directory inode's single data block. A directory
// with no data block yet (direct[0] == 0) decodes as all-empty entries.
func (fs *Filesystem) readDirBlock(dir types.Inode) (types.DirBlock, error) {
	if dir.Direct[0] == 0 {
		return types.DirBlock{}, nil
	}
	var buf [types.BlockSize]byte
	if err := fs.dev.ReadBlock(dir.Direct[0], buf[:]); err != nil {
		return types.DirBlock{}, lfserr.Wrap(lfserr.IoError, "readDirBlock", err)
	}
	return types.DecodeDirBlock(buf[:]), nil
}

// addDirEntry adds (childIno, name) to the root directory: it locates the
// next free slot, rejects the add if the directory block is full,
// appends the updated directory data block and the updated root inode
// through the log, and returns. It does not checkpoint.
func (fs *Filesystem) addDirEntry(root types.Inode, childIno uint32, name string) (types.Inode, error) {
	slot := root.Size / types.DirEntSize()
	if (slot+1)*types.DirEntSize() > types.BlockSize {
		return root, lfserr.New(lfserr.NoSpace, "addDirEntry").WithPath(name)
	}

	db, err := fs.readDirBlock(root)
	if err != nil {
		return root, err
	}
	db.Entries[slot] = types.DirEntry{InodeNo: childIno, Name: name}

	buf := db.Encode()
	block, err := fs.append(buf[:], 0, 0)
	if err != nil {
		return root, err
	}

	root.Direct[0] = block
	root.Size += types.DirEntSize()
	if err := fs.writeInode(root); err != nil {
		return root, err
	}
	return root, nil
}
