// Package dispatch probes an opened image for a recognized filesystem
// and selects the matching engine, mirroring main.c's sequential
// is_ext2/is_fat16 checks.
package dispatch

import (
	"fmt"

	"github.com/jpinol/fsimg/internal/disk"
	"github.com/jpinol/fsimg/internal/ext2"
	"github.com/jpinol/fsimg/internal/fat16"
)

// Kind identifies which engine recognized an image.
type Kind int

const (
	Unknown Kind = iota
	EXT2
	FAT16
)

func (k Kind) String() string {
	switch k {
	case EXT2:
		return "EXT2"
	case FAT16:
		return "FAT16"
	default:
		return "unknown"
	}
}

// ErrUnrecognized is returned when no engine and no MBR partition probe
// recognizes the image.
var ErrUnrecognized = fmt.Errorf("unrecognized filesystem")

// Probed pairs the recognized kind with the image the engine should read
// from — the original image itself, or (per SPEC_FULL §3.1) a
// section-clamped view of one of its MBR partitions.
type Probed struct {
	Kind  Kind
	Image disk.Image
}

// Probe tries EXT2 and FAT16 directly at the image's start, then falls
// back to reading an MBR partition table and probing each FAT16- or
// Linux-typed partition in turn — a fallback the original single-image CLI never needed, since it
// was only ever pointed at bare filesystem images, not whole-disk ones.
func Probe(img disk.Image) (*Probed, error) {
	if ext2.Probe(img) {
		return &Probed{Kind: EXT2, Image: img}, nil
	}
	if fat16.Probe(img) {
		return &Probed{Kind: FAT16, Image: img}, nil
	}

	if p := probeMBR(img); p != nil {
		return p, nil
	}
	return nil, ErrUnrecognized
}

func probeMBR(img disk.Image) *Probed {
	buf := make([]byte, 512)
	if _, err := img.ReadAt(buf, 0); err != nil {
		return nil
	}
	mbr, err := disk.ParseMBR(buf)
	if err != nil {
		return nil
	}

	for _, entry := range mbr.PartitionEntries {
		switch entry.PartitionType {
		case disk.PartitionTypeFAT16LessThan32MB, disk.PartitionTypeFAT16GreaterThan32MB,
			disk.PartitionTypeFAT16LBA, disk.PartitionTypeLinuxFilesystem:
		default:
			continue
		}
		sectors := entry.ReadTotalSectors()
		if sectors == 0 {
			continue
		}
		offset := int64(entry.ReadStartLBA()) * disk.DefaultSectorSize
		size := int64(sectors) * disk.DefaultSectorSize
		part := disk.NewPartitionImage(img, offset, size)

		if ext2.Probe(part) {
			return &Probed{Kind: EXT2, Image: part}
		}
		if fat16.Probe(part) {
			return &Probed{Kind: FAT16, Image: part}
		}
	}
	return nil
}
