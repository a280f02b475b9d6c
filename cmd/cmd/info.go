package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jpinol/fsimg/internal/dispatch"
	"github.com/jpinol/fsimg/internal/ext2"
	"github.com/jpinol/fsimg/internal/fat16"
)

var (
	infoResDir string
	infoMmap   bool
	infoFormat string
)

// DefineInfoCommand builds the "info" subcommand, the Go counterpart of
// main.c's argc==3 "--info" branch.
func DefineInfoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <image>",
		Short: "Print filesystem metadata",
		Args: func(c *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("Error arguments")
			}
			return nil
		},
		RunE: func(c *cobra.Command, args []string) error {
			return runInfo(args[0])
		},
	}
	cmd.Flags().StringVar(&infoResDir, "res-dir", "res", "directory prefix resolved against a bare image filename")
	cmd.Flags().BoolVar(&infoMmap, "mmap", false, "read the image through a memory-mapped view")
	cmd.Flags().StringVar(&infoFormat, "format", "text", "output format: text or dfxml")
	return cmd
}

func runInfo(path string) error {
	full := resolvePath(path, infoResDir)

	img, err := openImage(full, infoMmap)
	if err != nil {
		return err
	}
	defer img.Close()

	probed, err := dispatch.Probe(img)
	if err != nil {
		return fmt.Errorf("Error opening the file")
	}

	if infoFormat == "dfxml" {
		switch probed.Kind {
		case dispatch.EXT2:
			sb, err := ext2.ReadSuperblock(probed.Image)
			if err != nil {
				return err
			}
			return ext2.InfoDFXML(probed.Image, sb, full, os.Stdout)
		case dispatch.FAT16:
			bs, err := fat16.ReadBootSector(probed.Image)
			if err != nil {
				return err
			}
			return fat16.InfoDFXML(probed.Image, bs, full, os.Stdout)
		}
		return nil
	}

	var text string
	switch probed.Kind {
	case dispatch.EXT2:
		text, err = ext2.Info(probed.Image)
	case dispatch.FAT16:
		text, err = fat16.Info(probed.Image)
	}
	if err != nil {
		return err
	}
	fmt.Print(text)
	return nil
}

func resolvePath(name, resDir string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(resDir, name)
}
