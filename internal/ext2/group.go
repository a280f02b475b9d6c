package ext2

import "github.com/jpinol/fsimg/internal/disk"

// GroupDescSize is the on-disk size of one block group descriptor.
const GroupDescSize = 32

// GroupDesc mirrors ext2_group_desc. Only bg_inode_table is consulted by
// this inspector; the rest of the 32-byte record is skipped over.
type GroupDesc struct {
	Unused        [2]uint32
	BgInodeTable  uint32
}

// ReadGroupDesc reads the descriptor for block group, whose table starts
// at the block immediately following the superblock's first data block.
func ReadGroupDesc(img disk.Image, sb *Superblock, group uint32) (*GroupDesc, error) {
	tableBlock := uint64(sb.FirstDataBlock) + 1
	off := int64(tableBlock*uint64(sb.BlockSize()) + uint64(group)*GroupDescSize)

	var gd GroupDesc
	if err := disk.ReadInto(img, off, &gd); err != nil {
		return nil, err
	}
	return &gd, nil
}
