// Command zsr creates, inspects, and extracts ZSR archives.
package main

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"sort"

	"github.com/showermat/zsr"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "zsr",
		Usage: "single-file, read-optimized archives",
		Commands: []*cli.Command{
			createCmd,
			extractCmd,
			extractDirCmd,
			lsCmd,
			mountCmd(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "zsr: %s\n", err)
		os.Exit(1)
	}
}

var createCmd = &cli.Command{
	Name:      "create",
	Usage:     "archive a directory tree into a ZSR file",
	ArgsUsage: "<srcdir> <outfile>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "sort", Value: true, Usage: "emit directory entries in sorted order"},
		&cli.BoolFlag{Name: "zstd", Usage: "use the zstd codec instead of lzma (requires the zstd build tag)"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return cli.Exit("usage: zsr create <srcdir> <outfile>", 1)
		}
		opts := []zsr.WriterOption{zsr.WithSort(c.Bool("sort"))}
		if c.Bool("zstd") {
			opts = append(opts, zsr.WithCodec(zsr.CodecZstd))
		}
		return zsr.Create(c.Args().Get(0), c.Args().Get(1), opts...)
	},
}

var extractCmd = &cli.Command{
	Name:      "extract",
	Usage:     "extract a whole archive to a directory, or one file to an output file",
	ArgsUsage: "<archive> <destdir> | <archive> <outfile> <inner-path>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 && c.NArg() != 3 {
			return cli.Exit("usage: zsr extract <archive> <destdir> | zsr extract <archive> <outfile> <inner-path>", 1)
		}
		r, err := zsr.Open(c.Args().Get(0))
		if err != nil {
			return err
		}
		defer r.Close()
		if c.NArg() == 2 {
			return r.ExtractAll(c.Args().Get(1))
		}
		data, err := r.GetFile(c.Args().Get(2))
		if err != nil {
			return err
		}
		return os.WriteFile(c.Args().Get(1), data, 0o644)
	},
}

var extractDirCmd = &cli.Command{
	Name:      "extract-dir",
	Usage:     "extract a subtree to a destination directory",
	ArgsUsage: "<archive> <inner-path> <dest>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 3 {
			return cli.Exit("usage: zsr extract-dir <archive> <inner-path> <dest>", 1)
		}
		r, err := zsr.Open(c.Args().Get(0))
		if err != nil {
			return err
		}
		defer r.Close()
		inner := c.Args().Get(1)
		if inner == "." {
			return r.ExtractAll(c.Args().Get(2))
		}
		return r.ExtractSubtree(inner, c.Args().Get(2))
	},
}

var lsCmd = &cli.Command{
	Name:      "ls",
	Usage:     "list the contents of a directory inside an archive",
	ArgsUsage: "<archive> [inner-path]",
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return cli.Exit("usage: zsr ls <archive> [inner-path]", 1)
		}
		r, err := zsr.Open(c.Args().Get(0))
		if err != nil {
			return err
		}
		defer r.Close()
		inner := "."
		if c.NArg() >= 2 {
			inner = c.Args().Get(1)
		}
		entries, err := r.FS().ReadDir(inner)
		if err != nil {
			return err
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, e := range entries {
			printEntry(inner, e)
		}
		return nil
	},
}

func printEntry(dir string, e fs.DirEntry) {
	typeChar := "-"
	if e.IsDir() {
		typeChar = "d"
	}
	info, err := e.Info()
	size := int64(0)
	if err == nil {
		size = info.Size()
	}
	fmt.Printf("%s %10d %s\n", typeChar, size, path.Join(dir, e.Name()))
}

func init() {
	log.SetFlags(0)
	log.SetPrefix("zsr: ")
}
