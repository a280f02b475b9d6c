package ext2_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jpinol/fsimg/internal/ext2"
)

// memImage is a minimal in-memory disk.Image backed by a byte slice,
// used to build tiny synthetic EXT2 volumes for testing.
type memImage struct {
	data []byte
}

func (m *memImage) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
func (m *memImage) Close() error { return nil }
func (m *memImage) Size() int64  { return int64(len(m.data)) }

const blockSize = 1024

// buildImage assembles a one-group EXT2 volume with a root directory
// containing a single regular file "hello.txt".
func buildImage(t *testing.T) *memImage {
	t.Helper()

	buf := make([]byte, 13*blockSize)

	// Superblock at fixed offset 1024.
	sb := ext2.Superblock{
		InodesCount:     64,
		BlocksCount:     13,
		FreeBlocksCount: 1,
		FreeInodesCount: 53,
		FirstDataBlock:  1,
		LogBlockSize:    0,
		InodesPerGroup:  32,
		Magic:           ext2.SuperMagic,
		FirstIno:        11,
		InodeSize:       128,
	}
	writeStruct(t, buf, ext2.BaseOffset, &sb)

	// Group descriptor: inode table starts at block 3.
	gd := ext2.GroupDesc{BgInodeTable: 3}
	writeStruct(t, buf, int64(2)*blockSize, &gd)

	// Root inode (#2): directory data in block 10.
	rootInode := ext2.Inode{Mode: 0x4000, Size: blockSize}
	rootInode.Block[0] = 10
	writeInode(t, buf, 2, &rootInode)

	// File inode (#11): "hello.txt" content in block 11.
	fileInode := ext2.Inode{Mode: 0x8000, Size: 11}
	fileInode.Block[0] = 11
	writeInode(t, buf, 11, &fileInode)

	// Root directory block: ".", "..", "hello.txt".
	dirOff := 10 * blockSize
	writeDirEntry(buf[dirOff:], 2, 12, ".", ext2.FTDir)
	writeDirEntry(buf[dirOff+12:], 2, 12, "..", ext2.FTDir)
	writeDirEntry(buf[dirOff+24:], 11, blockSize-24, "hello.txt", ext2.FTRegFile)

	copy(buf[11*blockSize:], "hello world")

	return &memImage{data: buf}
}

func writeStruct(t *testing.T, buf []byte, off int64, v any) {
	t.Helper()
	var b bytes.Buffer
	require.NoError(t, binary.Write(&b, binary.LittleEndian, v))
	copy(buf[off:], b.Bytes())
}

func writeInode(t *testing.T, buf []byte, num uint32, n *ext2.Inode) {
	t.Helper()
	// group 0, inode table base block 3, local = num-1
	off := int64(3)*blockSize + int64(num-1)*128
	writeStruct(t, buf, off, n)
}

func writeDirEntry(dst []byte, inode uint32, recLen uint16, name string, fileType uint8) {
	binary.LittleEndian.PutUint32(dst[0:], inode)
	binary.LittleEndian.PutUint16(dst[4:], recLen)
	dst[6] = uint8(len(name))
	dst[7] = fileType
	copy(dst[8:], name)
}

func TestProbeRecognizesMagic(t *testing.T) {
	img := buildImage(t)
	require.True(t, ext2.Probe(img))
}

func TestProbeRejectsBadMagic(t *testing.T) {
	img := buildImage(t)
	binary.LittleEndian.PutUint16(img.data[ext2.BaseOffset+56:], 0x1234)
	require.False(t, ext2.Probe(img))
}

func TestBlockSize(t *testing.T) {
	sb, err := ext2.ReadSuperblock(buildImage(t))
	require.NoError(t, err)
	require.Equal(t, uint32(1024), sb.BlockSize())
}

func TestFindInDir(t *testing.T) {
	img := buildImage(t)
	sb, err := ext2.ReadSuperblock(img)
	require.NoError(t, err)

	root, err := ext2.ReadInode(img, sb, ext2.RootInode)
	require.NoError(t, err)
	require.True(t, root.IsDir())

	ino, found, err := ext2.FindInDir(img, sb, root, "hello.txt")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint32(11), ino)

	_, found, err = ext2.FindInDir(img, sb, root, "missing.txt")
	require.NoError(t, err)
	require.False(t, found)
}

func TestFindByPath(t *testing.T) {
	img := buildImage(t)
	sb, err := ext2.ReadSuperblock(img)
	require.NoError(t, err)

	ino, found, err := ext2.FindByPath(img, sb, "hello.txt")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint32(11), ino)
}

func TestSearchWholeTree(t *testing.T) {
	img := buildImage(t)
	sb, err := ext2.ReadSuperblock(img)
	require.NoError(t, err)

	root, err := ext2.ReadInode(img, sb, ext2.RootInode)
	require.NoError(t, err)

	ino, found, err := ext2.Search(img, sb, root, "hello.txt")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint32(11), ino)
}

func TestTreeListsEntries(t *testing.T) {
	img := buildImage(t)
	sb, err := ext2.ReadSuperblock(img)
	require.NoError(t, err)
	root, err := ext2.ReadInode(img, sb, ext2.RootInode)
	require.NoError(t, err)

	var lines []string
	err = ext2.Tree(img, sb, root, func(e ext2.TreeEntry) { lines = append(lines, e.Line) })
	require.NoError(t, err)

	require.Equal(t, []string{".", "└── hello.txt"}, lines)
}

func TestTreeAnnotatesSizeAndInode(t *testing.T) {
	img := buildImage(t)
	sb, err := ext2.ReadSuperblock(img)
	require.NoError(t, err)
	root, err := ext2.ReadInode(img, sb, ext2.RootInode)
	require.NoError(t, err)

	var entries []ext2.TreeEntry
	require.NoError(t, ext2.Tree(img, sb, root, func(e ext2.TreeEntry) { entries = append(entries, e) }))

	require.False(t, entries[0].HasMeta)
	require.True(t, entries[1].HasMeta)
	require.Equal(t, uint32(11), entries[1].Size)
	require.Equal(t, uint32(11), entries[1].Inode)
}

func TestOpenFileStreamsContent(t *testing.T) {
	img := buildImage(t)
	sb, err := ext2.ReadSuperblock(img)
	require.NoError(t, err)

	n, err := ext2.ReadInode(img, sb, 11)
	require.NoError(t, err)

	rs, err := ext2.OpenFile(img, sb, n)
	require.NoError(t, err)

	data, err := io.ReadAll(rs)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

// TestOpenFileZeroFillsIndirectHole builds an inode whose data lives
// entirely behind a single-indirect block (no direct blocks at all), with
// a zero pointer sitting between two real data blocks. This is scenario
// S7's sparse-hole case: the hole must read back as block_size zero
// bytes in its logical position, not be skipped and shift block 2's
// content one block early.
func TestOpenFileZeroFillsIndirectHole(t *testing.T) {
	buf := make([]byte, 6*blockSize)
	sb := ext2.Superblock{LogBlockSize: 0, Magic: ext2.SuperMagic}
	writeStruct(t, buf, ext2.BaseOffset, &sb)
	img := &memImage{data: buf}

	sbRead, err := ext2.ReadSuperblock(img)
	require.NoError(t, err)

	// Indirect pointer block at block 3: [data block 4, hole, data block 5].
	ptrOff := int64(3) * blockSize
	binary.LittleEndian.PutUint32(buf[ptrOff:], 4)
	binary.LittleEndian.PutUint32(buf[ptrOff+4:], 0)
	binary.LittleEndian.PutUint32(buf[ptrOff+8:], 5)

	copy(buf[4*blockSize:], bytes.Repeat([]byte("A"), blockSize))
	copy(buf[5*blockSize:], bytes.Repeat([]byte("C"), blockSize))

	var n ext2.Inode
	n.Size = 3 * blockSize
	n.Block[ext2.IndBlock] = 3

	rs, err := ext2.OpenFile(img, sbRead, &n)
	require.NoError(t, err)
	data, err := io.ReadAll(rs)
	require.NoError(t, err)

	require.Len(t, data, 3*blockSize)
	require.Equal(t, bytes.Repeat([]byte("A"), blockSize), data[0:blockSize])
	require.Equal(t, make([]byte, blockSize), data[blockSize:2*blockSize])
	require.Equal(t, bytes.Repeat([]byte("C"), blockSize), data[2*blockSize:3*blockSize])
}

func TestCatWritesFileContent(t *testing.T) {
	img := buildImage(t)
	sb, err := ext2.ReadSuperblock(img)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, ext2.Cat(img, sb, "hello.txt", &out, nil))
	require.Equal(t, "hello world", out.String())
}

func TestCatNotFound(t *testing.T) {
	img := buildImage(t)
	sb, err := ext2.ReadSuperblock(img)
	require.NoError(t, err)

	var out bytes.Buffer
	err = ext2.Cat(img, sb, "missing.txt", &out, nil)
	require.ErrorIs(t, err, ext2.ErrNotFound)
}

func TestInfoIncludesVolumeSection(t *testing.T) {
	img := buildImage(t)
	text, err := ext2.Info(img)
	require.NoError(t, err)
	require.Contains(t, text, "Filesystem: EXT2")
	require.Contains(t, text, "VOLUME INFO")
}

func TestInfoDFXMLIncludesSource(t *testing.T) {
	img := buildImage(t)
	sb, err := ext2.ReadSuperblock(img)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, ext2.InfoDFXML(img, sb, "test.img", &out))
	require.Contains(t, out.String(), "<image_filename>test.img</image_filename>")
	require.NotContains(t, out.String(), "<fileobject>")
}

func TestTreeDFXMLIncludesFileObject(t *testing.T) {
	img := buildImage(t)
	sb, err := ext2.ReadSuperblock(img)
	require.NoError(t, err)
	root, err := ext2.ReadInode(img, sb, ext2.RootInode)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, ext2.TreeDFXML(img, sb, root, "test.img", &out))
	require.Contains(t, out.String(), "<filename>hello.txt</filename>")
	require.Contains(t, out.String(), "<filesize>11</filesize>")
}
