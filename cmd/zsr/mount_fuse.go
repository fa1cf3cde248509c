//go:build fuse

package main

import (
	"os"
	"os/signal"

	"github.com/showermat/zsr"
	"github.com/urfave/cli/v2"
)

func mountCmd() *cli.Command {
	return &cli.Command{
		Name:      "mount",
		Usage:     "mount an archive read-only via FUSE",
		ArgsUsage: "<archive> <mountpoint>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return cli.Exit("usage: zsr mount <archive> <mountpoint>", 1)
			}
			r, err := zsr.Open(c.Args().Get(0))
			if err != nil {
				return err
			}
			defer r.Close()

			server, err := zsr.Mount(r, c.Args().Get(1))
			if err != nil {
				return err
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt)
			go func() {
				<-sig
				server.Unmount()
			}()
			server.Wait()
			return nil
		},
	}
}
