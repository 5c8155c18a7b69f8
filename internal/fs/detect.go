// Package fs implements the filesystem detector (C11): the signature probe
// that decides whether a block device holds a FAT32 or ext2 filesystem
// before internal/fs/fat32 or internal/fs/ext2 is handed the device.
package fs

import "github.com/xwings/elinOS/internal/block"

// Kind is the detected filesystem type.
type Kind int

const (
	Unknown Kind = iota
	FAT32
	Ext2
)

func (k Kind) String() string {
	switch k {
	case FAT32:
		return "FAT32"
	case Ext2:
		return "Ext2"
	default:
		return "Unknown"
	}
}

const (
	bootSectorSignatureOffset = 510 // 0x55 0xAA
	fat32LabelOffset          = 82  // "FAT32" appears here in the BPB
	ext2SuperblockSector      = 2   // byte 1024 == sector 2 at 512 B/sector
	ext2MagicOffset           = 56  // within the superblock sector
	ext2Magic                 = 0xEF53
)

// Detect probes dev's sector 0 and the ext2 superblock location (byte 1024)
// and returns the filesystem kind it recognizes, or Unknown if neither
// signature matches. It is total over any device: an all-zero or garbage
// leading prefix always yields a definite answer, never an error.
func Detect(dev *block.Cache) (Kind, error) {
	sector0 := make([]byte, block.SectorSize())
	if err := dev.ReadBlock(0, sector0); err != nil {
		return Unknown, err
	}
	if sector0[bootSectorSignatureOffset] == 0x55 && sector0[bootSectorSignatureOffset+1] == 0xAA {
		if hasFAT32Label(sector0) {
			return FAT32, nil
		}
	}

	sector2 := make([]byte, block.SectorSize())
	if err := dev.ReadBlock(ext2SuperblockSector, sector2); err != nil {
		return Unknown, err
	}
	magic := uint16(sector2[ext2MagicOffset]) | uint16(sector2[ext2MagicOffset+1])<<8
	if magic == ext2Magic {
		return Ext2, nil
	}
	return Unknown, nil
}

func hasFAT32Label(sector0 []byte) bool {
	label := []byte("FAT32")
	if fat32LabelOffset+len(label) > len(sector0) {
		return false
	}
	for i, c := range label {
		if sector0[fat32LabelOffset+i] != c {
			return false
		}
	}
	return true
}
