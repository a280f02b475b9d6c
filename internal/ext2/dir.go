package ext2

import (
	"github.com/jpinol/fsimg/internal/disk"
)

// dirEntryHeaderSize is the fixed portion of a directory entry preceding
// its variable-length name.
const dirEntryHeaderSize = 8

// dirEntry is one parsed EXT2 directory entry.
type dirEntry struct {
	Inode    uint32
	RecLen   uint16
	NameLen  uint8
	FileType uint8
	Name     string
	isLast   bool // no further valid entries in this block after this one
}

// parseDirBlock decodes every entry in a single directory data block.
func parseDirBlock(buf []byte) []dirEntry {
	var entries []dirEntry
	blockSize := len(buf)

	off := 0
	for off < blockSize {
		if off+dirEntryHeaderSize > blockSize {
			break
		}
		recLen := le16(buf[off+4:])
		if recLen == 0 || off+int(recLen) > blockSize {
			break
		}
		nameLen := int(buf[off+6])
		if nameLen > 255 {
			nameLen = 255
		}
		fileType := buf[off+7]
		nameStart := off + dirEntryHeaderSize
		name := string(buf[nameStart : nameStart+min(nameLen, blockSize-nameStart)])

		entries = append(entries, dirEntry{
			Inode:    le32(buf[off:]),
			RecLen:   recLen,
			NameLen:  uint8(nameLen),
			FileType: fileType,
			Name:     name,
			isLast:   off+int(recLen) >= blockSize,
		})
		off += int(recLen)
	}
	return entries
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func isDotOrDotDot(name string) bool { return name == "." || name == ".." }

// readBlockEntries reads and parses the directory entries in a single
// data block.
func readBlockEntries(img disk.Image, sb *Superblock, block uint32) ([]dirEntry, error) {
	buf := make([]byte, sb.BlockSize())
	if _, err := img.ReadAt(buf, int64(block)*int64(sb.BlockSize())); err != nil {
		return nil, err
	}
	return parseDirBlock(buf), nil
}

// isDir reports whether the entry denotes a directory, falling back to
// the referenced inode's mode bits when file_type is unreliable (0).
func isDir(img disk.Image, sb *Superblock, e dirEntry) bool {
	if e.FileType == FTDir {
		return true
	}
	if e.FileType != FTUnknown {
		return false
	}
	sub, err := ReadInode(img, sb, e.Inode)
	return err == nil && sub.IsDir()
}

// TreeEntry is one rendered line of a directory tree, carrying the size
// and inode annotation --long needs alongside the box-drawing line.
type TreeEntry struct {
	Line    string
	Size    uint32
	Inode   uint32
	HasMeta bool // false for the root "." line, which names no entry
}

// Tree prints a box-drawing directory tree rooted at n to emit, starting
// with a single "." line for the root.
func Tree(img disk.Image, sb *Superblock, root *Inode, emit func(TreeEntry)) error {
	emit(TreeEntry{Line: "."})
	return treeSubdir(img, sb, root, "", emit)
}

func treeSubdir(img disk.Image, sb *Superblock, n *Inode, prefix string, emit func(TreeEntry)) error {
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
			glyph := "├── "
			childPrefix := prefix + "│   "
			if e.isLast {
				glyph = "└── "
				childPrefix = prefix + "    "
			}

			sub, err := ReadInode(img, sb, e.Inode)
			if err != nil {
				return err
			}
			emit(TreeEntry{Line: prefix + glyph + e.Name, Size: sub.Size, Inode: e.Inode, HasMeta: true})

			if isDir(img, sb, e) {
				if err := treeSubdir(img, sb, sub, childPrefix, emit); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// FindInDir scans a directory's direct and indirect blocks for an entry
// named name, returning its inode number and whether it was found.
func FindInDir(img disk.Image, sb *Superblock, n *Inode, name string) (uint32, bool, error) {
	blocks, err := DirBlockList(img, sb, n)
	if err != nil {
		return 0, false, err
	}
	for _, blk := range blocks {
		entries, err := readBlockEntries(img, sb, blk)
		if err != nil {
			return 0, false, err
		}
		for _, e := range entries {
			if e.Inode != 0 && e.Name == name {
				return e.Inode, true, nil
			}
		}
	}
	return 0, false, nil
}

// FindByPath resolves a "/"-separated path from the root, returning the
// inode number of the final component if it names a regular file.
func FindByPath(img disk.Image, sb *Superblock, path string) (uint32, bool, error) {
	ino := uint32(RootInode)
	node, err := ReadInode(img, sb, ino)
	if err != nil {
		return 0, false, err
	}

	for _, comp := range splitPath(path) {
		if comp == "" {
			continue
		}
		next, found, err := FindInDir(img, sb, node, comp)
		if err != nil || !found {
			return 0, false, err
		}
		ino = next
		node, err = ReadInode(img, sb, ino)
		if err != nil {
			return 0, false, err
		}
	}

	if !node.IsReg() {
		return 0, false, nil
	}
	return ino, true, nil
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}

// Search recursively walks the whole tree rooted at n looking for an
// entry named target, following subdirectories reachable through direct
// blocks only — matching the original implementation's "for simplicity"
// scope-limited recursive search. The result is threaded back up through
// return values rather than through package-level found-state.
func Search(img disk.Image, sb *Superblock, n *Inode, target string) (uint32, bool, error) {
	blocks, err := DirBlockList(img, sb, n)
	if err != nil {
		return 0, false, err
	}
	for _, blk := range blocks {
		entries, err := readBlockEntries(img, sb, blk)
		if err != nil {
			return 0, false, err
		}
		for _, e := range entries {
			if e.Inode != 0 && e.Name == target {
				return e.Inode, true, nil
			}
		}
	}

	for _, blk := range directBlocksSparse(n) {
		entries, err := readBlockEntries(img, sb, blk)
		if err != nil {
			return 0, false, err
		}
		for _, e := range entries {
			if e.Inode == 0 || e.FileType != FTDir || isDotOrDotDot(e.Name) {
				continue
			}
			sub, err := ReadInode(img, sb, e.Inode)
			if err != nil {
				return 0, false, err
			}
			if ino, found, err := Search(img, sb, sub, target); err != nil {
				return 0, false, err
			} else if found {
				return ino, true, nil
			}
		}
	}
	return 0, false, nil
}
