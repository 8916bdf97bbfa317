// Command mkfs.lfs formats a fresh disk image for the log-structured
// filesystem.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/logfs/logfs/internal/mkfs"
	"github.com/logfs/logfs/pkg/types"
)

func main() {
	app := &cli.App{
		Name:  "mkfs.lfs",
		Usage: "format a disk image for logfs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "image",
				Usage:    "path to the disk image to create",
				Required: true,
			},
			&cli.UintFlag{
				Name:  "blocks",
				Usage: "total blocks in the image",
				Value: types.TotalBlocksDefault,
			},
			&cli.BoolFlag{
				Name:  "seed-hello",
				Usage: "seed the image with /hello.txt",
				Value: true,
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg := mkfs.Config{
				TotalBlocks: uint32(ctx.Uint("blocks")),
				SeedHello:   ctx.Bool("seed-hello"),
			}
			if err := mkfs.Format(ctx.String("image"), cfg); err != nil {
				return fmt.Errorf("mkfs.lfs: %w", err)
			}
			fmt.Printf("mkfs.lfs: formatted %s (%d blocks)\n", ctx.String("image"), cfg.TotalBlocks)
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
