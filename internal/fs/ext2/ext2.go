// Package ext2 implements the ext2 driver (C13): superblock/group-descriptor/
// inode parsing, direct and depth-0 extent data block resolution, and
// linear directory I/O, including mkdir/rmdir. Multi-block-group layouts
// are supported for block allocation, picking the least-loaded group each
// time; inode allocation scans the groups in order and takes the first one
// with a free inode, since there's no similar pressure to spread new inodes
// across groups the way there is for blocks.
package ext2

import (
	"encoding/binary"

	"github.com/xwings/elinOS/internal/block"
)

const (
	sectorSize       = 512
	superblockOffset = 1024
	ext2Magic        = 0xEF53
	RootInode        = 2

	ftRegFile = 1
	ftDir     = 2

	extentsFlag = 0x00080000
	extMagic    = 0xF30A

	inodeStructBytes = 128 // every field this package reads fits in the first 128 bytes
	dirEntryHeader   = 8
	groupDescSize    = 32
)

// Superblock holds the fixed-offset fields this driver needs out of the
// 1024-byte ext2 superblock, per original_source's structures.rs.
type Superblock struct {
	InodesCount      uint32
	BlocksCountLo    uint32
	FreeBlocksLo     uint32
	FreeInodesCount  uint32
	LogBlockSize     uint32
	BlocksPerGroup   uint32
	InodesPerGroup   uint32
	Magic            uint16
	RevLevel         uint32
	InodeSize        uint16
}

func parseSuperblock(raw []byte) Superblock {
	return Superblock{
		InodesCount:     binary.LittleEndian.Uint32(raw[0x00:0x04]),
		BlocksCountLo:   binary.LittleEndian.Uint32(raw[0x04:0x08]),
		FreeBlocksLo:    binary.LittleEndian.Uint32(raw[0x0C:0x10]),
		FreeInodesCount: binary.LittleEndian.Uint32(raw[0x10:0x14]),
		LogBlockSize:    binary.LittleEndian.Uint32(raw[0x18:0x1C]),
		BlocksPerGroup:  binary.LittleEndian.Uint32(raw[0x20:0x24]),
		InodesPerGroup:  binary.LittleEndian.Uint32(raw[0x28:0x2C]),
		Magic:           binary.LittleEndian.Uint16(raw[0x38:0x3A]),
		RevLevel:        binary.LittleEndian.Uint32(raw[0x4C:0x50]),
		InodeSize:       binary.LittleEndian.Uint16(raw[0x58:0x5A]),
	}
}

func encodeSuperblock(raw []byte, sb Superblock) {
	binary.LittleEndian.PutUint32(raw[0x00:0x04], sb.InodesCount)
	binary.LittleEndian.PutUint32(raw[0x04:0x08], sb.BlocksCountLo)
	binary.LittleEndian.PutUint32(raw[0x0C:0x10], sb.FreeBlocksLo)
	binary.LittleEndian.PutUint32(raw[0x10:0x14], sb.FreeInodesCount)
	binary.LittleEndian.PutUint32(raw[0x18:0x1C], sb.LogBlockSize)
	binary.LittleEndian.PutUint32(raw[0x20:0x24], sb.BlocksPerGroup)
	binary.LittleEndian.PutUint32(raw[0x28:0x2C], sb.InodesPerGroup)
	binary.LittleEndian.PutUint16(raw[0x38:0x3A], sb.Magic)
	binary.LittleEndian.PutUint32(raw[0x4C:0x50], sb.RevLevel)
	binary.LittleEndian.PutUint16(raw[0x58:0x5A], sb.InodeSize)
}

// GroupDesc holds the fields of one block group descriptor.
type GroupDesc struct {
	BlockBitmapLo   uint32
	InodeBitmapLo   uint32
	InodeTableLo    uint32
	FreeBlocksLo    uint16
	FreeInodesLo    uint16
	UsedDirsLo      uint16
}

func parseGroupDesc(raw []byte) GroupDesc {
	return GroupDesc{
		BlockBitmapLo: binary.LittleEndian.Uint32(raw[0x00:0x04]),
		InodeBitmapLo: binary.LittleEndian.Uint32(raw[0x04:0x08]),
		InodeTableLo:  binary.LittleEndian.Uint32(raw[0x08:0x0C]),
		FreeBlocksLo:  binary.LittleEndian.Uint16(raw[0x0C:0x0E]),
		FreeInodesLo:  binary.LittleEndian.Uint16(raw[0x0E:0x10]),
		UsedDirsLo:    binary.LittleEndian.Uint16(raw[0x10:0x12]),
	}
}

func encodeGroupDesc(raw []byte, gd GroupDesc) {
	binary.LittleEndian.PutUint32(raw[0x00:0x04], gd.BlockBitmapLo)
	binary.LittleEndian.PutUint32(raw[0x04:0x08], gd.InodeBitmapLo)
	binary.LittleEndian.PutUint32(raw[0x08:0x0C], gd.InodeTableLo)
	binary.LittleEndian.PutUint16(raw[0x0C:0x0E], gd.FreeBlocksLo)
	binary.LittleEndian.PutUint16(raw[0x0E:0x10], gd.FreeInodesLo)
	binary.LittleEndian.PutUint16(raw[0x10:0x12], gd.UsedDirsLo)
}

// Inode holds the fields of one ext2 inode.
type Inode struct {
	Mode        uint16
	SizeLo      uint32
	LinksCount  uint16
	Flags       uint32
	Block       [15]uint32
	SizeHigh    uint32
}

func (in Inode) IsDir() bool  { return in.Mode&0o170000 == 0o040000 }
func (in Inode) IsFile() bool { return in.Mode&0o170000 == 0o100000 }
func (in Inode) Size() uint64 { return uint64(in.SizeHigh)<<32 | uint64(in.SizeLo) }
func (in Inode) UsesExtents() bool { return in.Flags&extentsFlag != 0 }

func parseInode(raw []byte) Inode {
	var in Inode
	in.Mode = binary.LittleEndian.Uint16(raw[0x00:0x02])
	in.SizeLo = binary.LittleEndian.Uint32(raw[0x04:0x08])
	in.LinksCount = binary.LittleEndian.Uint16(raw[0x1A:0x1C])
	in.Flags = binary.LittleEndian.Uint32(raw[0x20:0x24])
	for i := 0; i < 15; i++ {
		off := 0x28 + i*4
		in.Block[i] = binary.LittleEndian.Uint32(raw[off : off+4])
	}
	in.SizeHigh = binary.LittleEndian.Uint32(raw[0x6C:0x70])
	return in
}

func encodeInode(raw []byte, in Inode) {
	binary.LittleEndian.PutUint16(raw[0x00:0x02], in.Mode)
	binary.LittleEndian.PutUint32(raw[0x04:0x08], in.SizeLo)
	binary.LittleEndian.PutUint16(raw[0x1A:0x1C], in.LinksCount)
	binary.LittleEndian.PutUint32(raw[0x20:0x24], in.Flags)
	for i := 0; i < 15; i++ {
		off := 0x28 + i*4
		binary.LittleEndian.PutUint32(raw[off:off+4], in.Block[i])
	}
	binary.LittleEndian.PutUint32(raw[0x6C:0x70], in.SizeHigh)
}

// Entry is one file or directory found in a directory listing.
type Entry struct {
	Name  string
	Inode uint32
	IsDir bool
}

// FS is a mounted ext2 filesystem.
type FS struct {
	dev *block.Cache

	sb        Superblock
	blockSize int
	groups    []GroupDesc
	gdtBlock  uint64
}

// Mount reads and validates the superblock and the group descriptor table.
func Mount(dev *block.Cache) (*FS, error) {
	raw := make([]byte, 1024)
	for i := 0; i < 2; i++ {
		sector := make([]byte, sectorSize)
		if err := dev.ReadBlock(uint64(superblockOffset/sectorSize+i), sector); err != nil {
			return nil, err
		}
		copy(raw[i*sectorSize:], sector)
	}

	sb := parseSuperblock(raw)
	if sb.Magic != ext2Magic {
		return nil, ErrInvalidSuperblock
	}

	fs := &FS{dev: dev, sb: sb, blockSize: 1024 << sb.LogBlockSize}
	fs.gdtBlock = 1
	if fs.blockSize == 1024 {
		fs.gdtBlock = 2
	}

	numGroups := (sb.BlocksCountLo + sb.BlocksPerGroup - 1) / sb.BlocksPerGroup
	if numGroups == 0 {
		numGroups = 1
	}
	gdtBytes := int(numGroups) * groupDescSize
	gdtBlocks := (gdtBytes + fs.blockSize - 1) / fs.blockSize

	gdtData := make([]byte, 0, gdtBlocks*fs.blockSize)
	for b := 0; b < gdtBlocks; b++ {
		blk, err := fs.readBlock(fs.gdtBlock + uint64(b))
		if err != nil {
			return nil, err
		}
		gdtData = append(gdtData, blk...)
	}
	for g := uint32(0); g < numGroups; g++ {
		off := int(g) * groupDescSize
		fs.groups = append(fs.groups, parseGroupDesc(gdtData[off:off+groupDescSize]))
	}

	return fs, nil
}

// GetInfo returns the superblock magic, total block count, and block size,
// mirroring fat32.FS.GetInfo's shape for the VFS facade.
func (fs *FS) GetInfo() (signature uint16, totalBlocks uint32, blockSize uint32) {
	return fs.sb.Magic, fs.sb.BlocksCountLo, uint32(fs.blockSize)
}

func (fs *FS) readBlock(blockNum uint64) ([]byte, error) {
	sectorsPerBlock := fs.blockSize / sectorSize
	out := make([]byte, fs.blockSize)
	sector := make([]byte, sectorSize)
	base := blockNum * uint64(sectorsPerBlock)
	for i := 0; i < sectorsPerBlock; i++ {
		if err := fs.dev.ReadBlock(base+uint64(i), sector); err != nil {
			return nil, err
		}
		copy(out[i*sectorSize:], sector)
	}
	return out, nil
}

func (fs *FS) writeBlock(blockNum uint64, data []byte) error {
	sectorsPerBlock := fs.blockSize / sectorSize
	base := blockNum * uint64(sectorsPerBlock)
	for i := 0; i < sectorsPerBlock; i++ {
		start := i * sectorSize
		end := start + sectorSize
		sector := make([]byte, sectorSize)
		if start < len(data) {
			copy(sector, data[start:min(end, len(data))])
		}
		if err := fs.dev.WriteBlock(base+uint64(i), sector); err != nil {
			return err
		}
	}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (fs *FS) inodeLocation(inodeNum uint32) (group uint32, blockNum uint64, offsetInBlock int) {
	group = (inodeNum - 1) / fs.sb.InodesPerGroup
	index := (inodeNum - 1) % fs.sb.InodesPerGroup
	inodeSize := int(fs.sb.InodeSize)
	if fs.sb.RevLevel == 0 {
		inodeSize = 128
	}
	byteOffset := int(index) * inodeSize
	blockNum = uint64(fs.groups[group].InodeTableLo) + uint64(byteOffset/fs.blockSize)
	offsetInBlock = byteOffset % fs.blockSize
	return
}

func (fs *FS) readInode(inodeNum uint32) (Inode, error) {
	if inodeNum == 0 {
		return Inode{}, ErrInvalidInode
	}
	group, blockNum, offsetInBlock := fs.inodeLocation(inodeNum)
	if int(group) >= len(fs.groups) {
		return Inode{}, ErrUnsupportedFilesystem
	}
	data, err := fs.readBlock(blockNum)
	if err != nil {
		return Inode{}, err
	}
	if offsetInBlock+inodeStructBytes > len(data) {
		return Inode{}, ErrCorruptedFilesystem
	}
	return parseInode(data[offsetInBlock : offsetInBlock+inodeStructBytes]), nil
}

func (fs *FS) writeInode(inodeNum uint32, in Inode) error {
	group, blockNum, offsetInBlock := fs.inodeLocation(inodeNum)
	if int(group) >= len(fs.groups) {
		return ErrUnsupportedFilesystem
	}
	data, err := fs.readBlock(blockNum)
	if err != nil {
		return err
	}
	encodeInode(data[offsetInBlock:offsetInBlock+inodeStructBytes], in)
	return fs.writeBlock(blockNum, data)
}

func (fs *FS) writeGroupDesc(group uint32) error {
	data, err := fs.readBlock(fs.gdtBlock)
	if err != nil {
		return err
	}
	off := int(group) * groupDescSize
	if off+groupDescSize > len(data) {
		return ErrCorruptedFilesystem
	}
	encodeGroupDesc(data[off:off+groupDescSize], fs.groups[group])
	return fs.writeBlock(fs.gdtBlock, data)
}
