package fat16

import (
	"fmt"
	"io"
	"strings"

	"github.com/jpinol/fsimg/internal/disk"
	"github.com/jpinol/fsimg/pkg/dfxml"
)

// Info renders FAT16 volume metadata, labeled the way metadata_fat16
// prints it.
func Info(img disk.Image) (string, error) {
	bs, err := ReadBootSector(img)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n------ Información del sistema FAT16 ------\n")
	fmt.Fprintf(&b, "Sistema: FAT16\n")
	fmt.Fprintf(&b, "Tamaño de sector: %d bytes\n", bs.BytesPerSector)
	fmt.Fprintf(&b, "Sectores por clúster: %d\n", bs.SectorsPerCluster)
	fmt.Fprintf(&b, "Sectores reservados: %d\n", bs.ReservedSectors)
	fmt.Fprintf(&b, "Número de FATs: %d\n", bs.NumberOfFATs)
	fmt.Fprintf(&b, "Entradas raíz máximas: %d\n", bs.RootDirEntries)
	fmt.Fprintf(&b, "Sectores por FAT: %d\n", bs.SectorsPerFAT)
	fmt.Fprintf(&b, "Etiqueta del volumen: %.11s\n\n", string(bs.VolumeLabel[:]))
	return b.String(), nil
}

// sourceHeader builds the DFXML header shared by InfoDFXML and TreeDFXML:
// source image name/size/sector size plus creator/exec-environment.
func sourceHeader(bs *BootSector, imagePath string) dfxml.DFXMLHeader {
	return dfxml.DFXMLHeader{
		XmlOutput: dfxml.XmlOutputVersion,
		Metadata:  dfxml.DefaultMetadata,
		Creator: dfxml.Creator{
			Package:              "fsimg",
			ExecutionEnvironment: dfxml.GetExecEnv(),
		},
		Source: dfxml.Source{
			ImageFilename: imagePath,
			SectorSize:    int(bs.BytesPerSector),
			ImageSize:     uint64(bs.TotalSectors()) * uint64(bs.BytesPerSector),
		},
	}
}

// InfoDFXML emits a header-only DFXML document: the source image's name,
// size (total sectors × bytes per sector), and sector size, plus the
// creator/exec environment block, with no file objects. The boot-sector
// fields that Info prints are not included.
func InfoDFXML(img disk.Image, bs *BootSector, imagePath string, w io.Writer) error {
	dw := dfxml.NewDFXMLWriter(w)
	if err := dw.WriteHeader(sourceHeader(bs, imagePath)); err != nil {
		return err
	}
	return dw.Close()
}

// TreeDFXML emits a DFXML document with one FileObject per regular file
// in the volume, walked the same way Tree walks the directory structure.
// Each file's byte run assumes cluster contiguity, matching Cat (§9, Open
// Question #3): this inspector never walks the FAT chain.
func TreeDFXML(img disk.Image, bs *BootSector, imagePath string, w io.Writer) error {
	dw := dfxml.NewDFXMLWriter(w)
	if err := dw.WriteHeader(sourceHeader(bs, imagePath)); err != nil {
		return err
	}

	root := bs.FirstRootSector()
	for i := uint32(0); i < bs.RootDirSectors(); i++ {
		if err := walkFileObjectsSector(img, bs, root+i, dw); err != nil {
			return err
		}
	}
	return dw.Close()
}

func walkFileObjectsSector(img disk.Image, bs *BootSector, sector uint32, dw *dfxml.DFXMLWriter) error {
	entries, err := readSectorEntries(img, bs, sector)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.isFree() || e.isLFNOrVol() || e.isDotEntry() {
			continue
		}
		if e.IsDir() {
			for _, s := range clusterSectors(bs, &e) {
				if err := walkFileObjectsSector(img, bs, s, dw); err != nil {
					return err
				}
			}
			continue
		}

		cluster := uint32(e.FirstClusterHigh)<<16 | uint32(e.FirstClusterLow)
		firstSector := bs.ClusterToSector(cluster)
		run := dfxml.ByteRun{
			Offset:    0,
			ImgOffset: uint64(firstSector) * uint64(bs.BytesPerSector),
			Length:    uint64(e.FileSize),
		}
		if err := dw.WriteFileObject(dfxml.FileObject{
			Filename: e.Name(),
			FileSize: uint64(e.FileSize),
			ByteRuns: dfxml.ByteRuns{Runs: []dfxml.ByteRun{run}},
		}); err != nil {
			return err
		}
	}
	return nil
}

// ErrNotFound is returned by Cat when target names no file on the volume.
var ErrNotFound = fmt.Errorf("file not found")

// Cat streams the contents of target to w, resolving it with Find and
// reading forward from its first cluster on the assumption that the
// file's clusters are laid out contiguously — the same assumption
// cat_fat16 makes; this inspector never walks the FAT chain (§9, Open
// Question #3).
func Cat(img disk.Image, bs *BootSector, target string, w io.Writer) error {
	e, found, err := Find(img, bs, target)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}

	cluster := uint32(e.FirstClusterHigh)<<16 | uint32(e.FirstClusterLow)
	sector := bs.ClusterToSector(cluster)
	remaining := int64(e.FileSize)
	sectorSize := int64(bs.BytesPerSector)

	buf := make([]byte, sectorSize)
	for remaining > 0 {
		chunk := sectorSize
		if remaining < chunk {
			chunk = remaining
		}
		if _, err := img.ReadAt(buf[:sectorSize], int64(sector)*sectorSize); err != nil && err != io.EOF {
			return err
		}
		if _, err := w.Write(buf[:chunk]); err != nil {
			return err
		}
		remaining -= chunk
		sector++
	}
	return nil
}
