// Package fat16 implements read-only traversal of FAT16 volumes: boot
// sector decoding, root/subdirectory enumeration, 8.3 name lookup, and
// file content streaming across sequential clusters.
package fat16

import (
	"github.com/jpinol/fsimg/internal/disk"
)

const (
	AttrDirectory = 0x10
	AttrArchive   = 0x20
	AttrVolumeID  = 0x08
	attrLFNMask   = 0x0F
)

const dirEntrySize = 32

// BootSector mirrors fat16_boot_sector's packed layout.
type BootSector struct {
	Jmp                [3]byte
	OEM                [8]byte
	BytesPerSector     uint16
	SectorsPerCluster  uint8
	ReservedSectors    uint16
	NumberOfFATs       uint8
	RootDirEntries     uint16
	TotalSectorsSmall  uint16
	MediaDescriptor    uint8
	SectorsPerFAT      uint16
	SectorsPerTrack    uint16
	NumberOfHeads      uint16
	HiddenSectors      uint32
	TotalSectorsLong   uint32
	DriveNumber        uint8
	CurrentHead        uint8
	BootSignature      uint8
	VolumeID           uint32
	VolumeLabel        [11]byte
	FSType             [8]byte
}

// DirEntry mirrors fat16_dir_entry's packed layout.
type DirEntry struct {
	Filename         [11]byte
	Attributes       uint8
	Reserved         uint8
	CreationTimeTen  uint8
	CreationTime     uint16
	CreationDate     uint16
	LastAccessDate   uint16
	FirstClusterHigh uint16
	LastWriteTime    uint16
	LastWriteDate    uint16
	FirstClusterLow  uint16
	FileSize         uint32
}

// ReadBootSector reads and decodes the boot sector at offset 0.
func ReadBootSector(img disk.Image) (*BootSector, error) {
	var bs BootSector
	if err := disk.ReadInto(img, 0, &bs); err != nil {
		return nil, err
	}
	return &bs, nil
}

// RootDirSectors returns the number of sectors occupied by the fixed-size
// root directory region.
func (bs *BootSector) RootDirSectors() uint32 {
	return (uint32(bs.RootDirEntries)*dirEntrySize + uint32(bs.BytesPerSector) - 1) / uint32(bs.BytesPerSector)
}

// FirstRootSector returns the sector number where the root directory
// region begins, past the reserved area and the FAT copies.
func (bs *BootSector) FirstRootSector() uint32 {
	return uint32(bs.ReservedSectors) + uint32(bs.NumberOfFATs)*uint32(bs.SectorsPerFAT)
}

// DataBase returns the sector number where the cluster-addressed data
// region begins, immediately after the root directory region.
func (bs *BootSector) DataBase() uint32 {
	return bs.FirstRootSector() + bs.RootDirSectors()
}

// ClusterToSector converts a cluster number to its first data sector.
func (bs *BootSector) ClusterToSector(cluster uint32) uint32 {
	return bs.DataBase() + (cluster-2)*uint32(bs.SectorsPerCluster)
}

// EntriesPerSector returns how many 32-byte directory entries fit in one
// sector.
func (bs *BootSector) EntriesPerSector() uint32 {
	return uint32(bs.BytesPerSector) / dirEntrySize
}

// TotalSectors returns the volume's sector count, preferring the 16-bit
// field and falling back to the 32-bit one when the volume is too large
// to fit in it (the same fallback Probe's cluster-count heuristic uses).
func (bs *BootSector) TotalSectors() uint32 {
	if bs.TotalSectorsSmall != 0 {
		return uint32(bs.TotalSectorsSmall)
	}
	return bs.TotalSectorsLong
}

// Probe reports whether img carries a FAT16 volume, using the same
// derived-cluster-count heuristic as the source: a FAT12/FAT32 image
// yields a cluster count outside [4085, 65525).
func Probe(img disk.Image) bool {
	bs, err := ReadBootSector(img)
	if err != nil || bs.BytesPerSector == 0 || bs.SectorsPerCluster == 0 {
		return false
	}

	rootDirs := bs.RootDirSectors()
	fatSz := uint32(bs.SectorsPerFAT)
	totSec := bs.TotalSectors()
	dataSec := totSec - (uint32(bs.ReservedSectors) + uint32(bs.NumberOfFATs)*fatSz + rootDirs)
	count := dataSec / uint32(bs.SectorsPerCluster)
	return count >= 4085 && count < 65525
}
