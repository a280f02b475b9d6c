package fat16_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jpinol/fsimg/internal/fat16"
)

// memImage is a minimal in-memory disk.Image backed by a byte slice.
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

const sectorSize = 512

// buildImage assembles a minimal FAT16 volume: one FAT, a one-sector
// root directory holding a single file "HELLO.TXT", and one data
// cluster containing its content.
func buildImage(t *testing.T) *memImage {
	t.Helper()

	// total sectors large enough to land the derived cluster count in
	// [4085, 65525): reserved(1) + fat(1) + root(1) + data clusters.
	const dataClusters = 4090
	totalSectors := 1 + 1 + 1 + dataClusters

	buf := make([]byte, (totalSectors+2)*sectorSize)

	bs := fat16.BootSector{
		BytesPerSector:    sectorSize,
		SectorsPerCluster: 1,
		ReservedSectors:   1,
		NumberOfFATs:      1,
		RootDirEntries:    16,
		TotalSectorsSmall: uint16(totalSectors),
		SectorsPerFAT:     1,
	}
	copy(buf[0x03:0x0B], "FSIMGOEM")
	writeStruct(t, buf, 0, &bs)

	rootSector := int64(bs.FirstRootSector())
	writeDirEntry(buf, rootSector, 0, "HELLO   TXT", 0x20, 2, 11)

	dataSector := int64(bs.ClusterToSector(2))
	copy(buf[dataSector*sectorSize:], "hello world")

	return &memImage{data: buf}
}

func writeStruct(t *testing.T, buf []byte, off int64, v any) {
	t.Helper()
	var b bytes.Buffer
	require.NoError(t, binary.Write(&b, binary.LittleEndian, v))
	copy(buf[off:], b.Bytes())
}

func writeDirEntry(buf []byte, sector int64, idx uint32, name83 string, attrs uint8, cluster uint16, size uint32) {
	off := sector*sectorSize + int64(idx)*32
	copy(buf[off:off+11], name83)
	buf[off+11] = attrs
	binary.LittleEndian.PutUint16(buf[off+26:], cluster) // first_cluster_low
	binary.LittleEndian.PutUint32(buf[off+28:], size)
}

func TestProbeAcceptsFAT16ClusterRange(t *testing.T) {
	img := buildImage(t)
	require.True(t, fat16.Probe(img))
}

func TestProbeRejectsTinyVolume(t *testing.T) {
	buf := make([]byte, 4*sectorSize)
	bs := fat16.BootSector{
		BytesPerSector:    sectorSize,
		SectorsPerCluster: 1,
		ReservedSectors:   1,
		NumberOfFATs:      1,
		RootDirEntries:    16,
		TotalSectorsSmall: 4,
		SectorsPerFAT:     1,
	}
	writeStruct(t, buf, 0, &bs)
	img := &memImage{data: buf}
	require.False(t, fat16.Probe(img))
}

func TestDirEntryNameNormalization(t *testing.T) {
	var e fat16.DirEntry
	copy(e.Filename[:], "HELLO   TXT")
	require.Equal(t, "hello.txt", e.Name())
}

func TestDirEntryNameNoExtension(t *testing.T) {
	var e fat16.DirEntry
	copy(e.Filename[:], "README     ")
	require.Equal(t, "readme", e.Name())
}

func TestFind(t *testing.T) {
	img := buildImage(t)
	bs, err := fat16.ReadBootSector(img)
	require.NoError(t, err)

	e, found, err := fat16.Find(img, bs, "hello.txt")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint32(11), e.FileSize)

	_, found, err = fat16.Find(img, bs, "missing.txt")
	require.NoError(t, err)
	require.False(t, found)
}

func TestTreeListsFile(t *testing.T) {
	img := buildImage(t)
	bs, err := fat16.ReadBootSector(img)
	require.NoError(t, err)

	var lines []string
	require.NoError(t, fat16.Tree(img, bs, func(e fat16.TreeEntry) { lines = append(lines, e.Line) }))
	require.Equal(t, []string{".", "└── hello.txt"}, lines)
}

func TestTreeAnnotatesSize(t *testing.T) {
	img := buildImage(t)
	bs, err := fat16.ReadBootSector(img)
	require.NoError(t, err)

	var entries []fat16.TreeEntry
	require.NoError(t, fat16.Tree(img, bs, func(e fat16.TreeEntry) { entries = append(entries, e) }))
	require.False(t, entries[0].HasSize)
	require.True(t, entries[1].HasSize)
	require.Equal(t, uint32(11), entries[1].Size)
}

func TestCatWritesFileContent(t *testing.T) {
	img := buildImage(t)
	bs, err := fat16.ReadBootSector(img)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, fat16.Cat(img, bs, "hello.txt", &out))
	require.Equal(t, "hello world", out.String())
}

func TestCatNotFound(t *testing.T) {
	img := buildImage(t)
	bs, err := fat16.ReadBootSector(img)
	require.NoError(t, err)

	var out bytes.Buffer
	err = fat16.Cat(img, bs, "missing.txt", &out)
	require.ErrorIs(t, err, fat16.ErrNotFound)
}

func TestInfoIncludesLabel(t *testing.T) {
	img := buildImage(t)
	text, err := fat16.Info(img)
	require.NoError(t, err)
	require.Contains(t, text, "Sistema: FAT16")
	require.Contains(t, text, "Tamaño de sector: 512 bytes")
}

func TestInfoDFXMLIncludesSource(t *testing.T) {
	img := buildImage(t)
	bs, err := fat16.ReadBootSector(img)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, fat16.InfoDFXML(img, bs, "test.img", &out))
	require.Contains(t, out.String(), "<image_filename>test.img</image_filename>")
	require.NotContains(t, out.String(), "<fileobject>")
}

func TestTreeDFXMLIncludesFileObject(t *testing.T) {
	img := buildImage(t)
	bs, err := fat16.ReadBootSector(img)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, fat16.TreeDFXML(img, bs, "test.img", &out))
	require.Contains(t, out.String(), "<filename>hello.txt</filename>")
	require.Contains(t, out.String(), "<filesize>11</filesize>")
}
