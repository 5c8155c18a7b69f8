// Package fat32 implements the FAT32 driver (C12): boot sector parsing,
// FAT chain walking, and 8.3 directory I/O over a block.Cache. Long
// filenames are not supported — every name this package accepts or
// produces is an 8.3 uppercase name.
package fat32

import (
	"encoding/binary"

	"github.com/xwings/elinOS/internal/block"
)

const (
	sectorSize    = 512
	dirEntrySize  = 32
	fat32EOCMin   = 0x0FFFFFF8
	fat32FreeMark = 0x00000000
	bootSignature = 0xAA55

	attrReadOnly = 0x01
	attrHidden   = 0x02
	attrSystem   = 0x04
	attrVolumeID = 0x08
	attrDirectory = 0x10
	attrLongName  = 0x0F // long-filename entry marker, not a real file
)

// Entry is one file or directory found in a directory listing.
type Entry struct {
	Name         string
	IsDir        bool
	FirstCluster uint32
	Size         uint32
}

// FS is a mounted FAT32 filesystem.
type FS struct {
	dev *block.Cache

	bytesPerSector    uint16
	sectorsPerCluster uint8
	reservedSectors   uint16
	numFATs           uint8
	sectorsPerFAT     uint32
	rootCluster       uint32
	totalSectors      uint32
	signature         uint16

	fatStartSector  uint64
	dataStartSector uint64
	totalClusters   uint32
}

// Mount reads the boot sector from dev and validates it.
func Mount(dev *block.Cache) (*FS, error) {
	buf := make([]byte, sectorSize)
	if err := dev.ReadBlock(0, buf); err != nil {
		return nil, err
	}

	sig := binary.LittleEndian.Uint16(buf[510:512])
	if sig != bootSignature {
		return nil, ErrInvalidBootSector
	}

	fs := &FS{
		dev:               dev,
		bytesPerSector:    binary.LittleEndian.Uint16(buf[0x0B:0x0D]),
		sectorsPerCluster: buf[0x0D],
		reservedSectors:   binary.LittleEndian.Uint16(buf[0x0E:0x10]),
		numFATs:           buf[0x10],
		sectorsPerFAT:     binary.LittleEndian.Uint32(buf[0x24:0x28]),
		rootCluster:       binary.LittleEndian.Uint32(buf[0x2C:0x30]),
		totalSectors:      binary.LittleEndian.Uint32(buf[0x20:0x24]),
		signature:         sig,
	}
	if fs.bytesPerSector == 0 || fs.sectorsPerCluster == 0 || fs.numFATs == 0 {
		return nil, ErrInvalidBootSector
	}

	fs.fatStartSector = uint64(fs.reservedSectors)
	fs.dataStartSector = fs.fatStartSector + uint64(fs.numFATs)*uint64(fs.sectorsPerFAT)
	dataSectors := uint64(fs.totalSectors) - fs.dataStartSector
	fs.totalClusters = uint32(dataSectors / uint64(fs.sectorsPerCluster))

	return fs, nil
}

// GetInfo returns the boot sector signature, total sector count, and
// sector size.
func (fs *FS) GetInfo() (signature uint16, totalSectors uint32, bytesPerSector uint16) {
	return fs.signature, fs.totalSectors, fs.bytesPerSector
}

func (fs *FS) clusterToSector(cluster uint32) uint64 {
	return fs.dataStartSector + uint64(cluster-2)*uint64(fs.sectorsPerCluster)
}

// readFATEntry reads the 28-bit FAT32 chain entry for cluster from the
// first FAT table, at byte offset fat_start*bps + cluster*4.
func (fs *FS) readFATEntry(cluster uint32) (uint32, error) {
	byteOffset := uint64(cluster) * 4
	sector := fs.fatStartSector + byteOffset/uint64(fs.bytesPerSector)
	offsetInSector := byteOffset % uint64(fs.bytesPerSector)

	buf := make([]byte, sectorSize)
	if err := fs.dev.ReadBlock(sector, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[offsetInSector:offsetInSector+4]) & 0x0FFFFFFF, nil
}

func (fs *FS) writeFATEntry(cluster, value uint32) error {
	byteOffset := uint64(cluster) * 4
	sector := fs.fatStartSector + byteOffset/uint64(fs.bytesPerSector)
	offsetInSector := byteOffset % uint64(fs.bytesPerSector)

	buf := make([]byte, sectorSize)
	if err := fs.dev.ReadBlock(sector, buf); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(buf[offsetInSector:offsetInSector+4], value&0x0FFFFFFF)
	return fs.dev.WriteBlock(sector, buf)
}

// followChain walks the FAT chain starting at startCluster and returns every
// cluster in it, in order. A zero startCluster (the empty-file edge case)
// yields an empty chain without reading the FAT at all.
func (fs *FS) followChain(startCluster uint32) ([]uint32, error) {
	if startCluster == 0 {
		return nil, nil
	}
	var chain []uint32
	cluster := startCluster
	for cluster < fat32EOCMin {
		chain = append(chain, cluster)
		if len(chain) > int(fs.totalClusters)+1 {
			return nil, ErrCorruptChain
		}
		next, err := fs.readFATEntry(cluster)
		if err != nil {
			return nil, err
		}
		cluster = next
	}
	return chain, nil
}

func (fs *FS) clusterBytes() int {
	return int(fs.sectorsPerCluster) * sectorSize
}

func (fs *FS) readCluster(cluster uint32) ([]byte, error) {
	out := make([]byte, fs.clusterBytes())
	base := fs.clusterToSector(cluster)
	sector := make([]byte, sectorSize)
	for i := 0; i < int(fs.sectorsPerCluster); i++ {
		if err := fs.dev.ReadBlock(base+uint64(i), sector); err != nil {
			return nil, err
		}
		copy(out[i*sectorSize:], sector)
	}
	return out, nil
}

func (fs *FS) writeCluster(cluster uint32, data []byte) error {
	base := fs.clusterToSector(cluster)
	for i := 0; i < int(fs.sectorsPerCluster); i++ {
		start := i * sectorSize
		if start >= len(data) {
			break
		}
		end := start + sectorSize
		if end > len(data) {
			end = len(data)
		}
		sector := make([]byte, sectorSize)
		copy(sector, data[start:end])
		if err := fs.dev.WriteBlock(base+uint64(i), sector); err != nil {
			return err
		}
	}
	return nil
}

// findFreeCluster scans the FAT for the first entry equal to zero.
func (fs *FS) findFreeCluster() (uint32, error) {
	for c := uint32(2); c < fs.totalClusters+2; c++ {
		entry, err := fs.readFATEntry(c)
		if err != nil {
			return 0, err
		}
		if entry == fat32FreeMark {
			return c, nil
		}
	}
	return 0, ErrNoSpace
}

func (fs *FS) freeChain(startCluster uint32) error {
	chain, err := fs.followChain(startCluster)
	if err != nil {
		return err
	}
	for _, c := range chain {
		if err := fs.writeFATEntry(c, fat32FreeMark); err != nil {
			return err
		}
	}
	return nil
}
