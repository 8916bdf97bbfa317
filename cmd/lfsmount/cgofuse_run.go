//go:build cgofuse
// +build cgofuse

package main

import (
	"os"

	"github.com/logfs/logfs/internal/config"
	fusebridge "github.com/logfs/logfs/internal/fuse"
	"github.com/logfs/logfs/internal/lfs"
	"github.com/logfs/logfs/pkg/types"
)

func runCgofuse(core *lfs.Filesystem, metrics types.MetricsCollector, cfg *config.Config, sigCh chan os.Signal) error {
	fs := fusebridge.NewCgoFuseFS(core, metrics)

	errCh := make(chan error, 1)
	go func() { errCh <- fs.Mount(cfg.MountPoint) }()

	<-sigCh
	fs.Unmount()

	if err := <-errCh; err != nil {
		return err
	}
	return core.Unmount()
}
