package ext2

import (
	"bytes"
	"io"

	"github.com/jpinol/fsimg/internal/disk"
	"github.com/jpinol/fsimg/pkg/reader"
)

// directBlocks returns the inode's direct block pointers, stopping at the
// first zero entry. This mirrors cat_ext2's direct-block scan, the one
// traversal in the original implementation that actually breaks instead
// of skipping a hole.
func directBlocks(n *Inode) []uint32 {
	var blocks []uint32
	for i := 0; i < NDirBlocks; i++ {
		if n.Block[i] == 0 {
			break
		}
		blocks = append(blocks, n.Block[i])
	}
	return blocks
}

// directBlocksSparse returns the inode's nonzero direct block pointers,
// skipping zero entries rather than stopping at them. tree_ext2_subdir,
// find_inode_in_dir, and search_dir all scan i_block this way, so a hole
// among the first 12 pointers does not hide later direct blocks from
// directory traversal (only cat_ext2 stops short on the first hole).
func directBlocksSparse(n *Inode) []uint32 {
	var blocks []uint32
	for i := 0; i < NDirBlocks; i++ {
		if n.Block[i] == 0 {
			continue
		}
		blocks = append(blocks, n.Block[i])
	}
	return blocks
}

// subtreeSpan returns how many data-block slots an indirection subtree at
// the given depth can ever address: block_size/4 pointers at the
// innermost (level 1) table, that many times more per additional level of
// nesting above it.
func subtreeSpan(ptrsPerBlock uint32, level int) uint32 {
	span := ptrsPerBlock
	for i := 1; i < level; i++ {
		span *= ptrsPerBlock
	}
	return span
}

// indirectBlocksSkipHoles walks one level of indirection rooted at block,
// appending every nonzero pointer it contains and omitting zero entries
// entirely. Used for directory traversal (DirBlockList), where a hole
// names no directory block to read — there is nothing to zero-fill.
func indirectBlocksSkipHoles(img disk.Image, sb *Superblock, block uint32, level int) ([]uint32, error) {
	if block == 0 || level < 1 {
		return nil, nil
	}
	ptrs := sb.BlockSize() / 4
	buf := make([]byte, sb.BlockSize())
	if _, err := img.ReadAt(buf, int64(block)*int64(sb.BlockSize())); err != nil && err != io.EOF {
		return nil, err
	}

	var out []uint32
	for i := uint32(0); i < ptrs; i++ {
		ptr := le32(buf[i*4:])
		if ptr == 0 {
			continue
		}
		if level == 1 {
			out = append(out, ptr)
		} else {
			sub, err := indirectBlocksSkipHoles(img, sb, ptr, level-1)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
	}
	return out, nil
}

// indirectBlocksWithHoles is indirectBlocksSkipHoles's counterpart for the
// file-content streaming path. A zero pointer still occupies its logical
// slot — emitted as the sentinel value 0 — instead of being omitted, so
// OpenFile can zero-fill the hole rather than silently shifting every
// later block's logical offset earlier. Block number 0 is a safe sentinel
// here: EXT2 never allocates the image's first block to file data (it
// holds the boot sector and, for 1024-byte blocks, overlaps the
// superblock), so a real data block numbered 0 never occurs.
func indirectBlocksWithHoles(img disk.Image, sb *Superblock, block uint32, level int) ([]uint32, error) {
	if level < 1 {
		return nil, nil
	}
	ptrsPerBlock := sb.BlockSize() / 4
	if block == 0 {
		return make([]uint32, subtreeSpan(ptrsPerBlock, level)), nil
	}

	buf := make([]byte, sb.BlockSize())
	if _, err := img.ReadAt(buf, int64(block)*int64(sb.BlockSize())); err != nil && err != io.EOF {
		return nil, err
	}

	out := make([]uint32, 0, subtreeSpan(ptrsPerBlock, level))
	for i := uint32(0); i < ptrsPerBlock; i++ {
		ptr := le32(buf[i*4:])
		if level == 1 {
			out = append(out, ptr) // 0 is a legitimate hole sentinel here
			continue
		}
		sub, err := indirectBlocksWithHoles(img, sb, ptr, level-1)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// BlockList returns an inode's data blocks in logical order: direct
// blocks (stopping at the first zero, matching cat_ext2), then single,
// double, and triple indirect blocks in turn, with indirect holes kept as
// 0 sentinels so OpenFile can zero-fill them in place. Used for file
// content streaming (OpenFile).
func BlockList(img disk.Image, sb *Superblock, n *Inode) ([]uint32, error) {
	blocks := directBlocks(n)
	return appendIndirectWithHoles(img, sb, n, blocks)
}

// DirBlockList returns an inode's data blocks for directory traversal:
// direct blocks skipping holes (matching tree_ext2_subdir/
// find_inode_in_dir/search_dir), then indirect blocks with holes omitted
// the same way — a directory has nothing to zero-fill.
func DirBlockList(img disk.Image, sb *Superblock, n *Inode) ([]uint32, error) {
	blocks := directBlocksSparse(n)
	return appendIndirectSkipHoles(img, sb, n, blocks)
}

func appendIndirectSkipHoles(img disk.Image, sb *Superblock, n *Inode, blocks []uint32) ([]uint32, error) {
	for lvl, idx := range []int{IndBlock, DIndBlock, TIndBlock} {
		if n.Block[idx] == 0 {
			continue
		}
		ib, err := indirectBlocksSkipHoles(img, sb, n.Block[idx], lvl+1)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, ib...)
	}
	return blocks, nil
}

func appendIndirectWithHoles(img disk.Image, sb *Superblock, n *Inode, blocks []uint32) ([]uint32, error) {
	for lvl, idx := range []int{IndBlock, DIndBlock, TIndBlock} {
		if n.Block[idx] == 0 {
			continue
		}
		ib, err := indirectBlocksWithHoles(img, sb, n.Block[idx], lvl+1)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, ib...)
	}
	return blocks, nil
}

// OpenFile returns a seekable stream over an inode's data, sized to
// i_size, spanning direct and indirect blocks alike. This is the
// extension of the original cat implementation (which only ever read
// the first 12 direct blocks) to files that outgrow direct addressing.
// A block number of 0 in the indirect portion of the list marks a sparse
// hole and is streamed as zero bytes rather than read from the image.
func OpenFile(img disk.Image, sb *Superblock, n *Inode) (io.ReadSeeker, error) {
	blocks, err := BlockList(img, sb, n)
	if err != nil {
		return nil, err
	}

	blockSize := int64(sb.BlockSize())
	remaining := int64(n.Size)

	readers := make([]io.ReadSeeker, 0, len(blocks))
	sizes := make([]int64, 0, len(blocks))
	for _, blk := range blocks {
		if remaining <= 0 {
			break
		}
		chunk := blockSize
		if remaining < chunk {
			chunk = remaining
		}
		if blk == 0 {
			readers = append(readers, bytes.NewReader(make([]byte, chunk)))
		} else {
			readers = append(readers, io.NewSectionReader(img, int64(blk)*blockSize, chunk))
		}
		sizes = append(sizes, chunk)
		remaining -= chunk
	}

	if len(readers) == 0 {
		return io.NewSectionReader(img, 0, 0), nil
	}
	return reader.NewMultiReadSeeker(readers, sizes), nil
}
