package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jpinol/fsimg/internal/dispatch"
	"github.com/jpinol/fsimg/internal/ext2"
	"github.com/jpinol/fsimg/internal/fat16"
	fsos "github.com/jpinol/fsimg/pkg/util/os"
)

var (
	catResDir string
	catMmap   bool
	catOutput string
)

// DefineCatCommand builds the "cat" subcommand, the Go counterpart of
// main.c's argc==4 "--cat" branch.
func DefineCatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cat <image> <path>",
		Short: "Print the contents of a file within the image",
		Args: func(c *cobra.Command, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("Error arguments")
			}
			return nil
		},
		RunE: func(c *cobra.Command, args []string) error {
			return runCat(args[0], args[1])
		},
	}
	cmd.Flags().StringVar(&catResDir, "res-dir", "res", "directory prefix resolved against a bare image filename")
	cmd.Flags().BoolVar(&catMmap, "mmap", false, "read the image through a memory-mapped view")
	cmd.Flags().StringVar(&catOutput, "output", "", "write to this path instead of stdout")
	return cmd
}

func runCat(path, target string) error {
	full := resolvePath(path, catResDir)

	img, err := openImage(full, catMmap)
	if err != nil {
		return err
	}
	defer img.Close()

	probed, err := dispatch.Probe(img)
	if err != nil {
		return fmt.Errorf("Error opening the file")
	}

	out, closeOut, err := openOutput(catOutput)
	if err != nil {
		return err
	}
	defer closeOut()

	log := newLogger()

	switch probed.Kind {
	case dispatch.EXT2:
		sb, err := ext2.ReadSuperblock(probed.Image)
		if err != nil {
			return err
		}
		if err := ext2.Cat(probed.Image, sb, target, out, log); err != nil {
			if err == ext2.ErrNotFound {
				return fmt.Errorf("EXT2: file '%s' not found", target)
			}
			return err
		}
	case dispatch.FAT16:
		bs, err := fat16.ReadBootSector(probed.Image)
		if err != nil {
			return err
		}
		if err := fat16.Cat(probed.Image, bs, target, out); err != nil {
			if err == fat16.ErrNotFound {
				return fmt.Errorf("Fitxer '%s' no trobat.", target)
			}
			return err
		}
	}
	return nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	if _, err := fsos.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}
