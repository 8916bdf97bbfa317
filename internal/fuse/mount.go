package fuse

import (
	"fmt"
	"log"
	"os"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// MountOptions controls the go-fuse server. AttrTimeout and EntryTimeout
// default to zero regardless of what's passed in — see MountManager.Mount
// — because the kernel must never serve a stale page for data whose only
// source of truth is the append-only log.
type MountOptions struct {
	MountPoint string
	FSName     string
	AllowOther bool
	Debug      bool
}

// MountManager owns the lifecycle of one FUSE mount.
type MountManager struct {
	filesystem *FileSystem
	opts       MountOptions
	server     *fuse.Server
}

// NewMountManager creates a mount manager for filesystem.
func NewMountManager(filesystem *FileSystem, opts MountOptions) *MountManager {
	if opts.FSName == "" {
		opts.FSName = "logfs"
	}
	return &MountManager{filesystem: filesystem, opts: opts}
}

// Mount mounts the filesystem and starts serving in the background.
func (m *MountManager) Mount() error {
	if m.opts.MountPoint == "" {
		return fmt.Errorf("fuse: mount point cannot be empty")
	}
	info, err := os.Stat(m.opts.MountPoint)
	if err != nil {
		return fmt.Errorf("fuse: mount point: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("fuse: mount point %s is not a directory", m.opts.MountPoint)
	}

	zero := time.Duration(0)
	fsOpts := &gofuse.Options{
		MountOptions: fuse.MountOptions{
			Name:       m.opts.FSName,
			FsName:     m.opts.FSName,
			Debug:      m.opts.Debug,
			AllowOther: m.opts.AllowOther,
		},
		// No FUSE-layer attribute or entry caching: internal/lfs is the
		// only source of truth and it never invalidates a kernel cache.
		AttrTimeout:  &zero,
		EntryTimeout: &zero,
	}

	server, err := gofuse.Mount(m.opts.MountPoint, m.filesystem.Root(), fsOpts)
	if err != nil {
		return fmt.Errorf("fuse: mount: %w", err)
	}
	m.server = server

	log.Printf("fuse: mounted %s at %s", m.opts.FSName, m.opts.MountPoint)
	return nil
}

// Wait blocks until the mount is unmounted, either by Unmount or
// externally (e.g. `fusermount -u`).
func (m *MountManager) Wait() {
	if m.server != nil {
		m.server.Wait()
	}
}

// Unmount unmounts the filesystem.
func (m *MountManager) Unmount() error {
	if m.server == nil {
		return fmt.Errorf("fuse: not mounted")
	}
	if err := m.server.Unmount(); err != nil {
		return fmt.Errorf("fuse: unmount: %w", err)
	}
	log.Printf("fuse: unmounted %s", m.opts.MountPoint)
	return nil
}
