package ext2

import "encoding/binary"

// resolveDataBlocks returns every physical data block an inode's content
// occupies, via whichever addressing mode the inode uses. Extents are read
// as a single inline leaf stored in i_block (eh_depth must be 0; a deeper
// tree is rejected as unsupported). Direct pointers use i_block[0..12];
// the single-indirect pointer (i_block[12]) is not implemented, so any
// inode that sets it is rejected outright rather than silently truncated
// to its first 12 blocks.
func (fs *FS) resolveDataBlocks(in Inode) ([]uint32, error) {
	if in.UsesExtents() {
		return fs.resolveExtents(in)
	}
	var blocks []uint32
	for i := 0; i < 12; i++ {
		if in.Block[i] == 0 {
			break
		}
		blocks = append(blocks, in.Block[i])
	}
	if in.Block[12] != 0 {
		return nil, ErrCorruptedFilesystem
	}
	return blocks, nil
}

func (fs *FS) resolveExtents(in Inode) ([]uint32, error) {
	var raw [60]byte
	for i := 0; i < 15; i++ {
		binary.LittleEndian.PutUint32(raw[i*4:i*4+4], in.Block[i])
	}
	magic := binary.LittleEndian.Uint16(raw[0:2])
	depth := binary.LittleEndian.Uint16(raw[6:8])
	entries := binary.LittleEndian.Uint16(raw[2:4])
	if magic != extMagic {
		return nil, ErrCorruptedFilesystem
	}
	if depth != 0 {
		return nil, ErrUnsupportedFilesystem
	}

	var blocks []uint32
	for e := uint16(0); e < entries; e++ {
		off := 12 + int(e)*12
		if off+12 > len(raw) {
			break
		}
		length := binary.LittleEndian.Uint16(raw[off+4 : off+6])
		startHi := binary.LittleEndian.Uint16(raw[off+6 : off+8])
		startLo := binary.LittleEndian.Uint32(raw[off+8 : off+12])
		start := uint64(startHi)<<32 | uint64(startLo)
		for b := uint64(0); b < uint64(length); b++ {
			blocks = append(blocks, uint32(start+b))
		}
	}
	return blocks, nil
}

// listDirInode returns every live entry in a directory inode's data
// blocks, advancing by rec_len and validating rec_len >= 8+name_len and
// rec_len % 4 == 0, stopping at inode == 0 or when the cumulative offset
// reaches the directory's recorded size.
func (fs *FS) listDirInode(in Inode) ([]Entry, error) {
	if !in.IsDir() {
		return nil, ErrNotADirectory
	}
	blocks, err := fs.resolveDataBlocks(in)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	remaining := in.Size()
	for _, blockNum := range blocks {
		if remaining == 0 {
			break
		}
		data, err := fs.readBlock(uint64(blockNum))
		if err != nil {
			return nil, err
		}
		consumed := uint64(0)
		limit := uint64(len(data))
		if remaining < limit {
			limit = remaining
		}
		for off := uint64(0); off+dirEntryHeader <= limit; {
			inodeNum := binary.LittleEndian.Uint32(data[off : off+4])
			recLen := binary.LittleEndian.Uint16(data[off+4 : off+6])
			nameLen := data[off+6]
			fileType := data[off+7]
			if recLen == 0 {
				break
			}
			if recLen < uint16(dirEntryHeader+int(nameLen)) || recLen%4 != 0 {
				return nil, ErrCorruptedFilesystem
			}
			if inodeNum == 0 {
				break
			}
			name := string(data[off+dirEntryHeader : off+dirEntryHeader+uint64(nameLen)])
			if name != "." && name != ".." {
				entries = append(entries, Entry{Name: name, Inode: inodeNum, IsDir: fileType == ftDir})
			}
			off += uint64(recLen)
			consumed = off
		}
		remaining -= consumed
	}
	return entries, nil
}

// findInDirInode looks up name in a directory inode's data blocks.
func (fs *FS) findInDirInode(in Inode, name string) (uint32, bool, error) {
	if !in.IsDir() {
		return 0, false, ErrNotADirectory
	}
	blocks, err := fs.resolveDataBlocks(in)
	if err != nil {
		return 0, false, err
	}
	for _, blockNum := range blocks {
		data, err := fs.readBlock(uint64(blockNum))
		if err != nil {
			return 0, false, err
		}
		for off := 0; off+dirEntryHeader <= len(data); {
			inodeNum := binary.LittleEndian.Uint32(data[off : off+4])
			recLen := binary.LittleEndian.Uint16(data[off+4 : off+6])
			nameLen := data[off+6]
			if recLen == 0 {
				break
			}
			if recLen < uint16(dirEntryHeader+int(nameLen)) || recLen%4 != 0 {
				return 0, false, ErrCorruptedFilesystem
			}
			if inodeNum != 0 {
				candidate := string(data[off+dirEntryHeader : off+dirEntryHeader+int(nameLen)])
				if candidate == name {
					return inodeNum, true, nil
				}
			}
			off += int(recLen)
		}
	}
	return 0, false, nil
}

// addDirEntry adds an entry for name to parentInode. A directory with no
// data block gets a fresh block holding name as its only, block-spanning
// entry. Otherwise the last live entry of the last block is shrunk to its
// minimum rec_len and the new entry takes the rest of the block; when that
// tail is too small, ErrNoSpace is returned. A directory never grows past
// the data blocks it already has.
func (fs *FS) addDirEntry(parentInodeNum uint32, childInodeNum uint32, name string, fileType uint8) error {
	if len(name) > 255 {
		return ErrNameTooLong
	}
	parent, err := fs.readInode(parentInodeNum)
	if err != nil {
		return err
	}
	if !parent.IsDir() {
		return ErrNotADirectory
	}

	blocks, err := fs.resolveDataBlocks(parent)
	if err != nil {
		return err
	}

	if len(blocks) == 0 {
		newBlock, err := fs.allocateBlock()
		if err != nil {
			return err
		}
		parent.Block[0] = newBlock
		blocks = []uint32{newBlock}
	} else {
		// Find the last entry in the last block and split its rec_len so
		// the new entry fits after it, matching the original's
		// "entry spans the rest of the block until the next write" layout.
		lastBlock := blocks[len(blocks)-1]
		data, err := fs.readBlock(uint64(lastBlock))
		if err != nil {
			return err
		}
		off := 0
		lastOff := -1
		for off+dirEntryHeader <= len(data) {
			inodeNum := binary.LittleEndian.Uint32(data[off : off+4])
			recLen := int(binary.LittleEndian.Uint16(data[off+4 : off+6]))
			if recLen == 0 {
				break
			}
			if inodeNum != 0 {
				lastOff = off
			}
			off += recLen
		}
		if lastOff < 0 {
			return fs.writeFreshEntry(lastBlock, childInodeNum, name, fileType, fs.blockSize)
		}
		nameLen := int(data[lastOff+6])
		minLen := align4(dirEntryHeader + nameLen)
		oldRecLen := int(binary.LittleEndian.Uint16(data[lastOff+4 : lastOff+6]))
		newEntryOffset := lastOff + minLen
		newRecLen := oldRecLen - minLen
		if newRecLen < dirEntryHeader+len(name) {
			return ErrNoSpace // this simplified layout has no room left in the block
		}
		binary.LittleEndian.PutUint16(data[lastOff+4:lastOff+6], uint16(minLen))
		writeDirEntry(data[newEntryOffset:], childInodeNum, uint16(newRecLen), name, fileType)
		if err := fs.writeBlock(uint64(lastBlock), data); err != nil {
			return err
		}
		return fs.writeInode(parentInodeNum, parent)
	}

	if err := fs.writeFreshEntry(blocks[0], childInodeNum, name, fileType, fs.blockSize); err != nil {
		return err
	}
	return fs.writeInode(parentInodeNum, parent)
}

func (fs *FS) writeFreshEntry(blockNum uint32, inodeNum uint32, name string, fileType uint8, recLen int) error {
	data := make([]byte, fs.blockSize)
	writeDirEntry(data, inodeNum, uint16(recLen), name, fileType)
	return fs.writeBlock(uint64(blockNum), data)
}

func writeDirEntry(dst []byte, inodeNum uint32, recLen uint16, name string, fileType uint8) {
	binary.LittleEndian.PutUint32(dst[0:4], inodeNum)
	binary.LittleEndian.PutUint16(dst[4:6], recLen)
	dst[6] = byte(len(name))
	dst[7] = fileType
	copy(dst[8:8+len(name)], name)
}

func align4(n int) int { return (n + 3) &^ 3 }

// removeDirEntry marks name's entry as deleted by zeroing its inode field,
// leaving rec_len intact so the scan above keeps working.
func (fs *FS) removeDirEntry(parentInodeNum uint32, name string) error {
	parent, err := fs.readInode(parentInodeNum)
	if err != nil {
		return err
	}
	blocks, err := fs.resolveDataBlocks(parent)
	if err != nil {
		return err
	}
	for _, blockNum := range blocks {
		data, err := fs.readBlock(uint64(blockNum))
		if err != nil {
			return err
		}
		for off := 0; off+dirEntryHeader <= len(data); {
			inodeNum := binary.LittleEndian.Uint32(data[off : off+4])
			recLen := int(binary.LittleEndian.Uint16(data[off+4 : off+6]))
			if recLen == 0 {
				break
			}
			nameLen := int(data[off+6])
			if inodeNum != 0 && string(data[off+8:off+8+nameLen]) == name {
				binary.LittleEndian.PutUint32(data[off:off+4], 0)
				return fs.writeBlock(uint64(blockNum), data)
			}
			off += recLen
		}
	}
	return ErrFileNotFound
}
