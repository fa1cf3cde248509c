//go:build !fuse

package main

import "github.com/urfave/cli/v2"

func mountCmd() *cli.Command {
	return &cli.Command{
		Name:      "mount",
		Usage:     "mount an archive read-only via FUSE (requires building with -tags fuse)",
		ArgsUsage: "<archive> <mountpoint>",
		Action: func(c *cli.Context) error {
			return cli.Exit("zsr: this binary was built without FUSE support (build with -tags fuse)", 1)
		},
	}
}
