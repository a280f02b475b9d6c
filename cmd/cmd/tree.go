package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jpinol/fsimg/internal/dispatch"
	"github.com/jpinol/fsimg/internal/ext2"
	"github.com/jpinol/fsimg/internal/fat16"
	"github.com/jpinol/fsimg/pkg/pbar"
	"github.com/jpinol/fsimg/pkg/util/format"
)

var (
	treeResDir   string
	treeMmap     bool
	treeProgress bool
	treeLong     bool
	treeFormat   string
)

// DefineTreeCommand builds the "tree" subcommand, the Go counterpart of
// main.c's argc==3 "--tree" branch.
func DefineTreeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree <image>",
		Short: "Print the filesystem directory tree",
		Args: func(c *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("Error arguments")
			}
			return nil
		},
		RunE: func(c *cobra.Command, args []string) error {
			return runTree(args[0])
		},
	}
	cmd.Flags().StringVar(&treeResDir, "res-dir", "res", "directory prefix resolved against a bare image filename")
	cmd.Flags().BoolVar(&treeMmap, "mmap", false, "read the image through a memory-mapped view")
	cmd.Flags().BoolVar(&treeProgress, "progress", false, "render a progress bar while walking large volumes")
	cmd.Flags().BoolVar(&treeLong, "long", false, "annotate each line with its size and inode number")
	cmd.Flags().StringVar(&treeFormat, "format", "text", "output format: text or dfxml")
	return cmd
}

func runTree(path string) error {
	full := resolvePath(path, treeResDir)

	img, err := openImage(full, treeMmap)
	if err != nil {
		return err
	}
	defer img.Close()

	probed, err := dispatch.Probe(img)
	if err != nil {
		return fmt.Errorf("Error opening the file")
	}

	if treeFormat == "dfxml" {
		switch probed.Kind {
		case dispatch.EXT2:
			sb, err := ext2.ReadSuperblock(probed.Image)
			if err != nil {
				return err
			}
			root, err := ext2.ReadInode(probed.Image, sb, ext2.RootInode)
			if err != nil {
				return err
			}
			return ext2.TreeDFXML(probed.Image, sb, root, full, os.Stdout)
		case dispatch.FAT16:
			bs, err := fat16.ReadBootSector(probed.Image)
			if err != nil {
				return err
			}
			return fat16.TreeDFXML(probed.Image, bs, full, os.Stdout)
		}
		return nil
	}

	var bar *pbar.ProgressBarState
	count := 0
	if treeProgress {
		bar = pbar.NewProgressBarState(int64(estimateEntryCount(probed)))
	}

	render := func(line string, size uint32, hasMeta bool, inode uint32, hasInode bool) {
		switch {
		case treeLong && hasInode:
			fmt.Printf("%-40s [%8s inode=%d]\n", line, format.FormatBytes(int64(size)), inode)
		case treeLong && hasMeta:
			fmt.Printf("%-40s [%8s]\n", line, format.FormatBytes(int64(size)))
		default:
			fmt.Println(line)
		}
		count++
		if bar != nil {
			bar.FilesFound = count
			bar.ProcessedBytes = int64(count)
			bar.Render(false)
		}
	}

	var err2 error
	switch probed.Kind {
	case dispatch.EXT2:
		sb, err := ext2.ReadSuperblock(probed.Image)
		if err != nil {
			return err
		}
		root, err := ext2.ReadInode(probed.Image, sb, ext2.RootInode)
		if err != nil {
			return err
		}
		err2 = ext2.Tree(probed.Image, sb, root, func(e ext2.TreeEntry) {
			render(e.Line, e.Size, e.HasMeta, e.Inode, e.HasMeta)
		})
	case dispatch.FAT16:
		bs, err := fat16.ReadBootSector(probed.Image)
		if err != nil {
			return err
		}
		err2 = fat16.Tree(probed.Image, bs, func(e fat16.TreeEntry) {
			render(e.Line, e.Size, e.HasSize, 0, false)
		})
	}
	if err2 != nil {
		return err2
	}

	if bar != nil {
		bar.Render(true)
		bar.Finish()
	}
	return nil
}

// estimateEntryCount gives the progress bar a rough denominator: the
// total inode count for EXT2, or the root directory's entry capacity for
// FAT16 (both cheap superblock/boot-sector fields, not an exact walk).
func estimateEntryCount(probed *dispatch.Probed) int {
	switch probed.Kind {
	case dispatch.EXT2:
		if sb, err := ext2.ReadSuperblock(probed.Image); err == nil {
			return int(sb.InodesCount)
		}
	case dispatch.FAT16:
		if bs, err := fat16.ReadBootSector(probed.Image); err == nil {
			return int(bs.RootDirEntries)
		}
	}
	return 1
}
