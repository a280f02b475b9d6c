// Package ext2 implements read-only traversal of the second extended
// filesystem: superblock/group/inode decoding, directory enumeration,
// name and path lookup, and file content streaming across direct and
// indirect data blocks.
package ext2

import (
	"github.com/jpinol/fsimg/internal/disk"
)

// SuperMagic is the fixed EXT2 superblock signature.
const SuperMagic = 0xEF53

// BaseOffset is the fixed byte offset of the superblock within the image.
const BaseOffset = 1024

// RootInode is the fixed inode number of the filesystem root directory.
const RootInode = 2

// Direct/indirect block pointer layout within an inode's i_block array.
const (
	NDirBlocks = 12
	IndBlock   = 12
	DIndBlock  = 13
	TIndBlock  = 14
)

// File type tags carried in a directory entry's file_type byte.
const (
	FTUnknown = 0
	FTRegFile = 1
	FTDir     = 2
)

// Superblock mirrors the fields of ext2_superblock consulted by this
// inspector, in their on-disk order; trailing reserved padding from the
// original 1024-byte structure is not represented since nothing reads it.
type Superblock struct {
	InodesCount     uint32
	BlocksCount     uint32
	RBlocksCount    uint32
	FreeBlocksCount uint32
	FreeInodesCount uint32
	FirstDataBlock  uint32
	LogBlockSize    uint32
	LogFragSize     uint32
	BlocksPerGroup  uint32
	FragsPerGroup   uint32
	InodesPerGroup  uint32
	Mtime           uint32
	Wtime           uint32
	MntCount        uint16
	MaxMntCount     uint16
	Magic           uint16
	State           uint16
	Errors          uint16
	MinorRevLevel   uint16
	Lastcheck       uint32
	CheckInterval   uint32
	CreatorOS       uint32
	RevLevel        uint32
	DefResuid       uint16
	DefResgid       uint16
	FirstIno        uint32
	InodeSize       uint16
	BlockGroupNr    uint16
	FeatureCompat   uint32
	FeatureIncompat uint32
	FeatureRoCompat uint32
	UUID            [16]byte
	VolumeName      [16]byte
}

// BlockSize returns the filesystem block size in bytes.
func (sb *Superblock) BlockSize() uint32 {
	return 1024 << sb.LogBlockSize
}

// ReadSuperblock reads and decodes the superblock at BaseOffset.
func ReadSuperblock(img disk.Image) (*Superblock, error) {
	var sb Superblock
	if err := disk.ReadInto(img, BaseOffset, &sb); err != nil {
		return nil, err
	}
	return &sb, nil
}

// Probe reports whether img carries a valid EXT2 superblock magic.
func Probe(img disk.Image) bool {
	sb, err := ReadSuperblock(img)
	if err != nil {
		return false
	}
	return sb.Magic == SuperMagic
}
