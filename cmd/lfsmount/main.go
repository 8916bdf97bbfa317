// Command lfsmount mounts a logfs disk image at a directory over FUSE.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/logfs/logfs/internal/config"
	"github.com/logfs/logfs/internal/device"
	fusebridge "github.com/logfs/logfs/internal/fuse"
	"github.com/logfs/logfs/internal/lfs"
	"github.com/logfs/logfs/internal/metrics"
	"github.com/logfs/logfs/pkg/lfserr"
	"github.com/logfs/logfs/pkg/retry"
)

func main() {
	app := &cli.App{
		Name:  "lfsmount",
		Usage: "mount a logfs disk image over FUSE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "image", Usage: "path to the disk image"},
			&cli.StringFlag{Name: "mountpoint", Usage: "directory to mount at"},
			&cli.StringFlag{Name: "config", Usage: "path to a YAML config file"},
			&cli.StringFlag{Name: "fuse-impl", Usage: "go-fuse or cgofuse"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "address to serve /metrics on"},
			&cli.UintFlag{Name: "gc-threshold", Usage: "override the GC free-block threshold"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx *cli.Context) error {
	cfg := config.NewDefault()
	if path := ctx.String("config"); path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}
	if v := ctx.String("image"); v != "" {
		cfg.ImagePath = v
	}
	if v := ctx.String("mountpoint"); v != "" {
		cfg.MountPoint = v
	}
	if v := ctx.String("fuse-impl"); v != "" {
		cfg.FuseImpl = v
	}
	if v := ctx.String("metrics-addr"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := ctx.Uint("gc-threshold"); v != 0 {
		cfg.GCThreshold = uint32(v)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sessionID := uuid.NewString()
	logger := log.New(os.Stderr, fmt.Sprintf("lfsmount[%s] ", sessionID[:8]), log.LstdFlags)

	collector := metrics.NewCollector(metrics.Config{Namespace: "logfs"})
	if err := collector.Start(cfg.MetricsAddr); err != nil {
		return err
	}
	defer collector.Stop(context.Background())

	// Opening the image file is the only mount-time step that is retried.
	// Every open failure, a missing file included, is reported as IoError
	// and so is retried; the superblock read and magic check in lfs.Mount
	// below run once.
	var dev *DeviceHandle
	retryer := retry.New(retry.DefaultConfig())
	err := retryer.Do(func() error {
		d, openErr := openDevice(cfg.ImagePath)
		if openErr != nil {
			return openErr
		}
		dev = d
		return nil
	})
	if err != nil {
		return fmt.Errorf("lfsmount: opening image: %w", err)
	}

	core, err := lfs.Mount(dev.file,
		lfs.WithMetrics(collector),
		lfs.WithLogger(logger),
		lfs.WithGCThreshold(cfg.GCThreshold),
	)
	if err != nil {
		return fmt.Errorf("lfsmount: mounting core: %w", err)
	}

	bridge := fusebridge.NewFileSystem(core, collector)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	switch cfg.FuseImpl {
	case "cgofuse":
		return runCgofuse(core, collector, cfg, sigCh)
	default:
		return runGoFuse(bridge, cfg, sigCh, core)
	}
}

func runGoFuse(bridge *fusebridge.FileSystem, cfg *config.Config, sigCh chan os.Signal, core *lfs.Filesystem) error {
	manager := fusebridge.NewMountManager(bridge, fusebridge.MountOptions{
		MountPoint: cfg.MountPoint,
		FSName:     "logfs",
	})
	if err := manager.Mount(); err != nil {
		return err
	}

	go func() {
		<-sigCh
		_ = manager.Unmount()
	}()

	manager.Wait()
	return core.Unmount()
}

// DeviceHandle wraps the concrete block device so retry's closure above
// doesn't have to reason about *device.File directly.
type DeviceHandle struct {
	file *device.File
}

func openDevice(path string) (*DeviceHandle, error) {
	f, err := device.Open(path)
	if err != nil {
		return nil, lfserr.Wrap(lfserr.IoError, "openDevice", err).WithPath(path)
	}
	return &DeviceHandle{file: f}, nil
}
