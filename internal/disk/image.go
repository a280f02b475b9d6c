package disk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jpinol/fsimg/internal/fs"
	"github.com/jpinol/fsimg/internal/mmap"
)

// Image is a read-only, positioned-read view over a filesystem image,
// whether that image is a whole file, a raw device, or a single
// partition carved out of a larger disk image.
type Image interface {
	io.ReaderAt
	Close() error
	Size() int64
}

// Options controls how OpenImage obtains its underlying backend.
type Options struct {
	// UseMmap selects the memory-mapped backend instead of positioned
	// reads through the OS file handle.
	UseMmap bool
}

// fileImage backs an Image with the cross-platform internal/fs.File
// (os.Open on most platforms, a raw Windows device handle otherwise).
type fileImage struct {
	f    fs.File
	size int64
}

func (i *fileImage) ReadAt(p []byte, off int64) (int, error) { return i.f.ReadAt(p, off) }
func (i *fileImage) Close() error                             { return i.f.Close() }
func (i *fileImage) Size() int64                              { return i.size }

// mmapImage backs an Image with a memory-mapped file region.
type mmapImage struct {
	m *mmap.MmapFile
}

func (i *mmapImage) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(i.m.Data)) {
		return 0, io.EOF
	}
	n := copy(p, i.m.Data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
func (i *mmapImage) Close() error { return i.m.Close() }
func (i *mmapImage) Size() int64  { return int64(i.m.FileSize) }

// OpenImage opens path (normalized via NormalizeVolumePath for Windows
// volume specs) and returns a ready-to-read Image using the requested
// backend.
func OpenImage(path string, opts Options) (Image, error) {
	path = NormalizeVolumePath(path)

	if opts.UseMmap {
		m, err := mmap.NewMmapFile(path)
		if err != nil {
			return nil, fmt.Errorf("disk: mmap open %s: %w", path, err)
		}
		return &mmapImage{m: m}, nil
	}

	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("disk: open %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("disk: stat %s: %w", path, err)
	}
	return &fileImage{f: f, size: fi.Size()}, nil
}

// partitionImage clamps an Image to a sub-range, so EXT2/FAT16 probing
// and traversal can operate against an MBR partition as if it were a
// standalone image starting at offset 0.
type partitionImage struct {
	base    Image
	section *io.SectionReader
	size    int64
}

// NewPartitionImage returns an Image view of base restricted to
// [offset, offset+size).
func NewPartitionImage(base Image, offset, size int64) Image {
	return &partitionImage{
		base:    base,
		section: io.NewSectionReader(base, offset, size),
		size:    size,
	}
}

func (p *partitionImage) ReadAt(b []byte, off int64) (int, error) { return p.section.ReadAt(b, off) }
func (p *partitionImage) Close() error                            { return p.base.Close() }
func (p *partitionImage) Size() int64                             { return p.size }

// ReadInto reads exactly binary.Size(v) bytes at off into v via
// encoding/binary, little-endian, returning an error on any short read.
func ReadInto(img Image, off int64, v any) error {
	size := binary.Size(v)
	if size < 0 {
		return fmt.Errorf("disk: type %T is not fixed-size", v)
	}
	buf := make([]byte, size)
	n, err := img.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return fmt.Errorf("disk: read at %d: %w", off, err)
	}
	if n < size {
		return fmt.Errorf("disk: short read at %d: got %d, want %d", off, n, size)
	}
	return binary.Read(bytes.NewReader(buf), binary.LittleEndian, v)
}
