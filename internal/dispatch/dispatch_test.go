package dispatch_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jpinol/fsimg/internal/disk"
	"github.com/jpinol/fsimg/internal/dispatch"
	"github.com/jpinol/fsimg/internal/ext2"
)

type memImage struct{ data []byte }

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

func minimalEXT2Bytes() []byte {
	buf := make([]byte, 4*1024)
	sb := ext2.Superblock{
		FirstDataBlock: 1,
		LogBlockSize:   0,
		InodesPerGroup: 32,
		Magic:          ext2.SuperMagic,
		InodeSize:      128,
	}
	var b bytes.Buffer
	_ = binary.Write(&b, binary.LittleEndian, &sb)
	copy(buf[ext2.BaseOffset:], b.Bytes())
	return buf
}

func TestProbeUnrecognizedImage(t *testing.T) {
	img := &memImage{data: make([]byte, 4*1024)}
	_, err := dispatch.Probe(img)
	require.ErrorIs(t, err, dispatch.ErrUnrecognized)
}

func TestProbeRecognizesEXT2Directly(t *testing.T) {
	img := &memImage{data: minimalEXT2Bytes()}
	probed, err := dispatch.Probe(img)
	require.NoError(t, err)
	require.Equal(t, dispatch.EXT2, probed.Kind)
}

func TestProbeFallsBackToMBRPartition(t *testing.T) {
	ext2Bytes := minimalEXT2Bytes()

	disk512 := make([]byte, 512+len(ext2Bytes))
	mbr := make([]byte, 512)
	// One partition entry: type 0x83 (Linux), start LBA 1, size in sectors.
	mbr[0x1BE] = 0x00
	mbr[0x1BE+4] = 0x83
	binary.LittleEndian.PutUint32(mbr[0x1BE+8:], 1)
	binary.LittleEndian.PutUint32(mbr[0x1BE+12:], uint32(len(ext2Bytes)/512))
	mbr[0x1FE] = 0x55
	mbr[0x1FF] = 0xAA
	copy(disk512, mbr)
	copy(disk512[512:], ext2Bytes)

	img := &memImage{data: disk512}
	probed, err := dispatch.Probe(img)
	require.NoError(t, err)
	require.Equal(t, dispatch.EXT2, probed.Kind)
	require.NotEqual(t, disk.Image(img), probed.Image)
}

func TestKindString(t *testing.T) {
	require.Equal(t, "EXT2", dispatch.EXT2.String())
	require.Equal(t, "FAT16", dispatch.FAT16.String())
	require.Equal(t, "unknown", dispatch.Unknown.String())
}
