//go:build !cgofuse
// +build !cgofuse

package main

import (
	"fmt"
	"os"

	"github.com/logfs/logfs/internal/config"
	"github.com/logfs/logfs/internal/lfs"
	"github.com/logfs/logfs/pkg/types"
)

func runCgofuse(core *lfs.Filesystem, metrics types.MetricsCollector, cfg *config.Config, sigCh chan os.Signal) error {
	return fmt.Errorf("lfsmount: built without cgofuse support; rebuild with -tags cgofuse")
}
