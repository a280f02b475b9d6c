package disk

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"syscall"
	"unsafe"
)

// DefaultSectorSize is the assumed sector size for regular files or when
// a device's sector size cannot be determined.
const DefaultSectorSize = 512

// DiskInfo describes an opened image file or raw block device: its path,
// sector size, and total size, plus the underlying read-only handle.
type DiskInfo struct {
	DevicePath string
	SectorSize int64
	RealSize   int64
	IsDevice   bool
	file       *os.File
}

// Close closes the underlying file handle.
func (d *DiskInfo) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}

// ReadAt reads from the underlying handle at a specific offset.
func (d *DiskInfo) ReadAt(p []byte, off int64) (int, error) {
	if d.file == nil {
		return 0, fmt.Errorf("diskinfo: file handle is nil")
	}
	return d.file.ReadAt(p, off)
}

// getSectorSizeLinux retrieves the logical sector size of a Linux block
// device via the BLKSSZGET ioctl.
func getSectorSizeLinux(file *os.File) (int64, error) {
	var sectorSize uint32
	const blkSszGet = 0x1268
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, file.Fd(), blkSszGet, uintptr(unsafe.Pointer(&sectorSize)))
	if errno != 0 {
		return 0, fmt.Errorf("ioctl BLKSSZGET failed: %w", errno)
	}
	return int64(sectorSize), nil
}

// getDiskSizeLinux retrieves the total size in bytes of a Linux block
// device via the BLKGETSIZE64 ioctl.
func getDiskSizeLinux(file *os.File) (int64, error) {
	var size int64
	const blkGetSize64 = 0x80081272
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, file.Fd(), blkGetSize64, uintptr(unsafe.Pointer(&size)))
	if errno != 0 {
		return 0, fmt.Errorf("ioctl BLKGETSIZE64 failed: %w", errno)
	}
	return size, nil
}

// Stat opens devicePath read-only and reports its sector size and total
// size, using Linux block-device ioctls when the path is a device and
// falling back to a seek-to-end for regular files and other platforms.
func Stat(devicePath string) (*DiskInfo, error) {
	file, err := os.Open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", devicePath, err)
	}

	info := &DiskInfo{
		DevicePath: devicePath,
		SectorSize: DefaultSectorSize,
		file:       file,
	}

	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", devicePath, err)
	}
	info.IsDevice = fi.Mode()&os.ModeDevice != 0

	if info.IsDevice && runtime.GOOS == "linux" {
		if sectorSize, err := getSectorSizeLinux(file); err == nil {
			info.SectorSize = sectorSize
		}
		if realSize, err := getDiskSizeLinux(file); err == nil {
			info.RealSize = realSize
			return info, nil
		}
	}

	size, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("could not determine size of %s: %w", devicePath, err)
	}
	info.RealSize = size
	return info, nil
}
