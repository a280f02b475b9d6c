package fat16

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"

	"github.com/jpinol/fsimg/internal/disk"
	"github.com/jpinol/fsimg/pkg/reader"
)

// Name renders a directory entry's 8.3 filename as a lowercase string,
// e.g. "readme.txt". Trailing spaces in either the base or the extension
// are trimmed.
func (e *DirEntry) Name() string {
	var b strings.Builder
	for i := 0; i < 8 && e.Filename[i] != ' '; i++ {
		b.WriteByte(toLower(e.Filename[i]))
	}
	if e.Filename[8] != ' ' {
		b.WriteByte('.')
		for i := 8; i < 11 && e.Filename[i] != ' '; i++ {
			b.WriteByte(toLower(e.Filename[i]))
		}
	}
	return b.String()
}

func toLower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c - 'A' + 'a'
	}
	return c
}

// IsDir reports whether the entry's attribute byte marks it a directory.
func (e *DirEntry) IsDir() bool { return e.Attributes&AttrDirectory != 0 }

func (e *DirEntry) isFree() bool     { return e.Filename[0] == 0x00 || e.Filename[0] == 0xE5 }
func (e *DirEntry) isLFNOrVol() bool {
	return e.Attributes&attrLFNMask == attrLFNMask || e.Attributes&AttrVolumeID != 0
}
func (e *DirEntry) isDotEntry() bool { return e.Filename[0] == '.' }

// readSectorEntries decodes every directory entry of sector in one pass,
// reading the sector through a buffered reader so the EntriesPerSector()
// fixed-size records it holds cost one positioned read against the image
// instead of one ReadAt per 32-byte entry.
func readSectorEntries(img disk.Image, bs *BootSector, sector uint32) ([]DirEntry, error) {
	off := int64(sector) * int64(bs.BytesPerSector)
	sec := io.NewSectionReader(img, off, int64(bs.BytesPerSector))
	br := reader.NewBufferedReadSeeker(sec, int(bs.BytesPerSector))

	n := bs.EntriesPerSector()
	entries := make([]DirEntry, n)
	buf := make([]byte, dirEntrySize)
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, err
		}
		if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// clusterSectors returns every sector in the cluster an entry addresses,
// extending the original implementation (which only ever scanned the
// first sector of a subdirectory's cluster) to cover the whole cluster.
func clusterSectors(bs *BootSector, e *DirEntry) []uint32 {
	first := bs.ClusterToSector(uint32(e.FirstClusterLow))
	sectors := make([]uint32, bs.SectorsPerCluster)
	for i := range sectors {
		sectors[i] = first + uint32(i)
	}
	return sectors
}

// isLastEntry reports whether no further valid entries follow idx within
// the already-decoded entries slice for a sector.
func isLastEntry(entries []DirEntry, idx uint32) bool {
	for k := idx + 1; k < uint32(len(entries)); k++ {
		if !entries[k].isFree() {
			return false
		}
	}
	return true
}

// TreeEntry is one rendered line of a directory tree, carrying the size
// annotation --long needs alongside the box-drawing line itself.
type TreeEntry struct {
	Line    string
	Size    uint32
	HasSize bool // false for the root "." line, which names no entry
}

// Tree prints a box-drawing directory tree of the whole root directory
// region to emit, starting with a "." line.
func Tree(img disk.Image, bs *BootSector, emit func(TreeEntry)) error {
	emit(TreeEntry{Line: "."})
	root := bs.FirstRootSector()
	for i := uint32(0); i < bs.RootDirSectors(); i++ {
		if err := treeSector(img, bs, root+i, "", emit); err != nil {
			return err
		}
	}
	return nil
}

func treeSector(img disk.Image, bs *BootSector, sector uint32, prefix string, emit func(TreeEntry)) error {
	entries, err := readSectorEntries(img, bs, sector)
	if err != nil {
		return err
	}
	for idx := range entries {
		e := entries[idx]
		if e.isFree() || e.isLFNOrVol() || e.isDotEntry() {
			continue
		}

		last := isLastEntry(entries, uint32(idx))
		glyph := "├── "
		childPrefix := prefix + "│   "
		if last {
			glyph = "└── "
			childPrefix = prefix + "    "
		}
		emit(TreeEntry{Line: prefix + glyph + e.Name(), Size: e.FileSize, HasSize: true})

		if e.IsDir() {
			for _, s := range clusterSectors(bs, &e) {
				if err := treeSector(img, bs, s, childPrefix, emit); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Find searches the whole volume for a non-directory entry named target,
// matching the original's tree-walk-with-early-exit search mode: both the
// per-sector entry loop and the root-sector loop stop as soon as a match
// is found, propagated here via ordinary return values instead of a
// package-level found flag.
func Find(img disk.Image, bs *BootSector, target string) (*DirEntry, bool, error) {
	root := bs.FirstRootSector()
	for i := uint32(0); i < bs.RootDirSectors(); i++ {
		e, found, err := findInSector(img, bs, root+i, target)
		if err != nil || found {
			return e, found, err
		}
	}
	return nil, false, nil
}

func findInSector(img disk.Image, bs *BootSector, sector uint32, target string) (*DirEntry, bool, error) {
	entries, err := readSectorEntries(img, bs, sector)
	if err != nil {
		return nil, false, err
	}
	for idx := range entries {
		e := entries[idx]
		if e.isFree() || e.isLFNOrVol() || e.isDotEntry() {
			continue
		}

		if !e.IsDir() && e.Name() == target {
			return &e, true, nil
		}

		if e.IsDir() {
			for _, s := range clusterSectors(bs, &e) {
				found, ok, err := findInSector(img, bs, s, target)
				if err != nil {
					return nil, false, err
				}
				if ok {
					return found, true, nil
				}
			}
		}
	}
	return nil, false, nil
}
