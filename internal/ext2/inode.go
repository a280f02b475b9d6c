package ext2

import "github.com/jpinol/fsimg/internal/disk"

const modeIFDir = 0x4000
const modeIFReg = 0x8000

// Inode mirrors the fields of ext2_inode used by this inspector. The
// 4-byte osd1 union of the original struct is decoded into OSD1 only to
// keep i_block at its on-disk offset; none of its OS-specific variants
// are consulted here.
type Inode struct {
	Mode        uint16
	UID         uint16
	Size        uint32
	Atime       uint32
	Ctime       uint32
	Mtime       uint32
	Dtime       uint32
	GID         uint16
	LinksCount  uint16
	Blocks      uint32
	Flags       uint32
	OSD1        uint32
	Block       [15]uint32
}

// IsDir reports whether the inode's mode bits mark it as a directory.
func (n *Inode) IsDir() bool { return n.Mode&0xF000 == modeIFDir }

// IsReg reports whether the inode's mode bits mark it as a regular file.
func (n *Inode) IsReg() bool { return n.Mode&0xF000 == modeIFReg }

// ReadInode reads inode number num (1-based) using the group descriptor
// table to resolve its inode-table block.
func ReadInode(img disk.Image, sb *Superblock, num uint32) (*Inode, error) {
	group := (num - 1) / sb.InodesPerGroup
	local := (num - 1) % sb.InodesPerGroup

	gd, err := ReadGroupDesc(img, sb, group)
	if err != nil {
		return nil, err
	}

	off := int64(uint64(gd.BgInodeTable)*uint64(sb.BlockSize()) + uint64(local)*uint64(sb.InodeSize))

	var n Inode
	if err := disk.ReadInto(img, off, &n); err != nil {
		return nil, err
	}
	return &n, nil
}
