package ext2

import (
	"fmt"
	"io"
	"strings"

	"github.com/jpinol/fsimg/internal/disk"
	"github.com/jpinol/fsimg/internal/logger"
	"github.com/jpinol/fsimg/internal/timefmt"
	"github.com/jpinol/fsimg/pkg/dfxml"
)

// Info renders EXT2 superblock metadata, labeled the way metadata_ext2
// prints it.
func Info(img disk.Image) (string, error) {
	sb, err := ReadSuperblock(img)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n------ Filesystem Information ------\n")
	fmt.Fprintf(&b, "\nFilesystem: EXT2\n")

	fmt.Fprintf(&b, "\nINODE INFO\n")
	fmt.Fprintf(&b, "  Size.............: %d\n", sb.InodeSize)
	fmt.Fprintf(&b, "  Num Inodes.......: %d\n", sb.InodesCount)
	fmt.Fprintf(&b, "  First Inode......: %d\n", sb.FirstIno)
	fmt.Fprintf(&b, "  Inodes per Group.: %d\n", sb.InodesPerGroup)
	fmt.Fprintf(&b, "  Free Inodes......: %d\n", sb.FreeInodesCount)

	fmt.Fprintf(&b, "\nBLOCK INFO\n")
	fmt.Fprintf(&b, "  Block Size.......: %d\n", sb.BlockSize())
	fmt.Fprintf(&b, "  Reserved Blocks..: %d\n", sb.RBlocksCount)
	fmt.Fprintf(&b, "  Free Blocks......: %d\n", sb.FreeBlocksCount)
	fmt.Fprintf(&b, "  Total Blocks.....: %d\n", sb.BlocksCount)
	fmt.Fprintf(&b, "  First Block......: %d\n", sb.FirstDataBlock)
	fmt.Fprintf(&b, "  Blocks per Group.: %d\n", sb.BlocksPerGroup)
	fmt.Fprintf(&b, "  Group Flags......: %d\n", sb.FeatureCompat)

	fmt.Fprintf(&b, "\nVOLUME INFO\n")
	fmt.Fprintf(&b, "  Volume Name......: %s\n", nullTerminated(sb.VolumeName[:]))
	fmt.Fprintf(&b, "  Last Checked.....: %s\n", timefmt.Format(sb.Lastcheck))
	fmt.Fprintf(&b, "  Last Mounted.....: %s\n", timefmt.Format(sb.Mtime))
	fmt.Fprintf(&b, "  Last Written.....: %s\n\n", timefmt.Format(sb.Wtime))
	return b.String(), nil
}

func nullTerminated(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// ErrNotFound is returned by Cat and ResolvePath when target is neither a
// path from the root to a regular file nor the name of any entry found by
// the recursive search.
var ErrNotFound = fmt.Errorf("file not found")

// ResolvePath resolves target against the filesystem root, trying it
// first as a direct "/"-separated path and falling back to a recursive
// whole-tree name search — matching main.c's EXT2 --cat dispatch, which
// tries find_inode_by_path first and only then search_dir.
func ResolvePath(img disk.Image, sb *Superblock, target string, log *logger.Logger) (uint32, error) {
	if ino, found, err := FindByPath(img, sb, target); err != nil {
		return 0, err
	} else if found {
		return ino, nil
	}

	if log != nil {
		log.Debugf("ext2: %q not found by direct path lookup, falling back to recursive search", target)
	}

	root, err := ReadInode(img, sb, RootInode)
	if err != nil {
		return 0, err
	}
	ino, found, err := Search(img, sb, root, target)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrNotFound
	}
	return ino, nil
}

// Cat streams the contents of the file named target to w.
func Cat(img disk.Image, sb *Superblock, target string, w io.Writer, log *logger.Logger) error {
	ino, err := ResolvePath(img, sb, target, log)
	if err != nil {
		return err
	}

	n, err := ReadInode(img, sb, ino)
	if err != nil {
		return err
	}

	rs, err := OpenFile(img, sb, n)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, rs)
	return err
}

// sourceHeader builds the DFXML header shared by InfoDFXML and TreeDFXML:
// source image name/size/sector size plus creator/exec-environment.
func sourceHeader(sb *Superblock, imagePath string) dfxml.DFXMLHeader {
	return dfxml.DFXMLHeader{
		XmlOutput: dfxml.XmlOutputVersion,
		Metadata:  dfxml.DefaultMetadata,
		Creator: dfxml.Creator{
			Package:              "fsimg",
			ExecutionEnvironment: dfxml.GetExecEnv(),
		},
		Source: dfxml.Source{
			ImageFilename: imagePath,
			SectorSize:    int(sb.BlockSize()),
			ImageSize:     uint64(sb.BlocksCount) * uint64(sb.BlockSize()),
		},
	}
}

// InfoDFXML emits a header-only DFXML document: the source image's name,
// size (blocks count × block size), and the block size as its sector
// size, plus the creator/exec environment block, with no file objects.
// The inode, block, and volume fields that Info prints are not included.
func InfoDFXML(img disk.Image, sb *Superblock, imagePath string, w io.Writer) error {
	dw := dfxml.NewDFXMLWriter(w)
	if err := dw.WriteHeader(sourceHeader(sb, imagePath)); err != nil {
		return err
	}
	return dw.Close()
}

// fileObject renders one regular file's DFXML FileObject, with a
// byte_runs entry per non-hole block returned by BlockList. A hole
// (sentinel block 0) has no image offset of its own and is skipped
// rather than emitted as a run.
func fileObject(name string, n *Inode, blocks []uint32, blockSize uint32) dfxml.FileObject {
	runs := make([]dfxml.ByteRun, 0, len(blocks))
	var logical uint64
	remaining := uint64(n.Size)
	for _, blk := range blocks {
		if remaining == 0 {
			break
		}
		length := uint64(blockSize)
		if remaining < length {
			length = remaining
		}
		if blk != 0 {
			runs = append(runs, dfxml.ByteRun{
				Offset:    logical,
				ImgOffset: uint64(blk) * uint64(blockSize),
				Length:    length,
			})
		}
		logical += length
		remaining -= length
	}
	return dfxml.FileObject{
		Filename: name,
		FileSize: uint64(n.Size),
		ByteRuns: dfxml.ByteRuns{Runs: runs},
	}
}

// TreeDFXML emits a DFXML document with one FileObject per non-directory
// entry reachable from root, walked the same way Tree walks the directory
// structure, with byte runs computed from each file's BlockList.
func TreeDFXML(img disk.Image, sb *Superblock, root *Inode, imagePath string, w io.Writer) error {
	dw := dfxml.NewDFXMLWriter(w)
	if err := dw.WriteHeader(sourceHeader(sb, imagePath)); err != nil {
		return err
	}
	if err := walkFileObjects(img, sb, root, "", dw); err != nil {
		return err
	}
	return dw.Close()
}

func walkFileObjects(img disk.Image, sb *Superblock, n *Inode, prefix string, dw *dfxml.DFXMLWriter) error {
	blocks, err := DirBlockList(img, sb, n)
	if err != nil {
		return err
	}
	for _, blk := range blocks {
		entries, err := readBlockEntries(img, sb, blk)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.Inode == 0 || isDotOrDotDot(e.Name) {
				continue
			}
			sub, err := ReadInode(img, sb, e.Inode)
			if err != nil {
				return err
			}
			name := prefix + e.Name
			if isDir(img, sb, e) {
				if err := walkFileObjects(img, sb, sub, name+"/", dw); err != nil {
					return err
				}
				continue
			}
			fileBlocks, err := BlockList(img, sb, sub)
			if err != nil {
				return err
			}
			if err := dw.WriteFileObject(fileObject(name, sub, fileBlocks, sb.BlockSize())); err != nil {
				return err
			}
		}
	}
	return nil
}
