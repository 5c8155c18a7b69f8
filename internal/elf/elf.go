// Package elf implements the ELF64 loader (C15): header and program-header
// validation for little-endian RISC-V executables and shared objects, and
// PT_LOAD segment materialization through the fallible allocation API (C6).
package elf

import (
	"encoding/binary"
	"unsafe"

	"github.com/xwings/elinOS/internal/mm"
)

const (
	headerSize  = 64
	phEntrySize = 56

	elfClass64    = 2
	elfData2LSB   = 1
	machineRISCV  = 243
	typeExec      = 2
	typeDyn       = 3
	ptLoad        = 1
	flagExecute   = 1
	flagWrite     = 2
	flagRead      = 4
)

var elfMagic = [4]byte{0x7F, 'E', 'L', 'F'}

// Header holds the fields of an ELF64 file header this loader validates or
// needs to locate program headers.
type Header struct {
	Type     uint16
	Machine  uint16
	Entry    uint64
	PhOff    uint64
	PhEntSize uint16
	PhNum    uint16
}

func parseHeader(data []byte) (Header, error) {
	if len(data) < headerSize {
		return Header{}, ErrInvalidHeader
	}
	var ident [4]byte
	copy(ident[:], data[0:4])
	if ident != elfMagic {
		return Header{}, ErrInvalidMagic
	}
	if data[4] != elfClass64 {
		return Header{}, ErrUnsupportedClass
	}
	if data[5] != elfData2LSB {
		return Header{}, ErrUnsupportedEndian
	}

	h := Header{
		Type:      binary.LittleEndian.Uint16(data[16:18]),
		Machine:   binary.LittleEndian.Uint16(data[18:20]),
		Entry:     binary.LittleEndian.Uint64(data[24:32]),
		PhOff:     binary.LittleEndian.Uint64(data[32:40]),
		PhEntSize: binary.LittleEndian.Uint16(data[54:56]),
		PhNum:     binary.LittleEndian.Uint16(data[56:58]),
	}
	if h.Machine != machineRISCV {
		return Header{}, ErrUnsupportedMachine
	}
	if h.Type != typeExec && h.Type != typeDyn {
		return Header{}, ErrUnsupportedType
	}
	return h, nil
}

// ProgramHeader holds the fields of one ELF64 program header entry.
type ProgramHeader struct {
	Type   uint32
	Flags  uint32
	Offset uint64
	VAddr  uint64
	FileSz uint64
	MemSz  uint64
}

func parseProgramHeader(raw []byte) ProgramHeader {
	return ProgramHeader{
		Type:   binary.LittleEndian.Uint32(raw[0:4]),
		Flags:  binary.LittleEndian.Uint32(raw[4:8]),
		Offset: binary.LittleEndian.Uint64(raw[8:16]),
		VAddr:  binary.LittleEndian.Uint64(raw[16:24]),
		FileSz: binary.LittleEndian.Uint64(raw[32:40]),
		MemSz:  binary.LittleEndian.Uint64(raw[40:48]),
	}
}

// Segment records one loaded PT_LOAD segment: where it was asked to live
// (VAddr/MemSz/Flags, as the original binary specifies them) and where its
// bytes actually ended up in this kernel's single physical address space
// (PhysAddr), since there is no MMU to back the requested virtual address.
type Segment struct {
	VAddr     uint64
	MemSz     uint64
	Flags     uint32
	PhysAddr  uint64
	Readable  bool
	Writable  bool
	Executable bool
}

// Loaded is the result of a successful Load: the entry point and every
// PT_LOAD segment's placement.
type Loaded struct {
	Entry    uint64
	Segments []Segment
}

// Validate parses and checks an ELF64 header without loading any segment
// data: magic, class, endianness, machine, and type must all match before
// any segment is touched.
func Validate(data []byte) (Header, error) {
	return parseHeader(data)
}

// Load validates the header, then for every PT_LOAD program header
// allocates page-aligned memory covering [p_vaddr, p_vaddr+p_memsz),
// copies p_filesz bytes from the file image, and zeroes the remainder.
func Load(data []byte, alloc *mm.Allocator) (Loaded, error) {
	header, err := parseHeader(data)
	if err != nil {
		return Loaded{}, err
	}

	phOff := int(header.PhOff)
	phEntSize := int(header.PhEntSize)
	phNum := int(header.PhNum)
	if phEntSize < phEntrySize {
		return Loaded{}, ErrInvalidHeader
	}
	if phOff < 0 || phOff+phEntSize*phNum > len(data) {
		return Loaded{}, ErrInvalidHeader
	}

	result := Loaded{Entry: header.Entry}
	for i := 0; i < phNum; i++ {
		raw := data[phOff+i*phEntSize : phOff+i*phEntSize+phEntrySize]
		ph := parseProgramHeader(raw)
		if ph.Type != ptLoad {
			continue
		}

		seg, err := loadSegment(data, ph, alloc)
		if err != nil {
			return Loaded{}, err
		}
		result.Segments = append(result.Segments, seg)
	}
	return result, nil
}

func loadSegment(data []byte, ph ProgramHeader, alloc *mm.Allocator) (Segment, error) {
	if ph.Offset > uint64(len(data)) || ph.Offset+ph.FileSz > uint64(len(data)) {
		return Segment{}, ErrSegmentOutOfRange
	}
	if ph.FileSz > ph.MemSz {
		return Segment{}, ErrSegmentOutOfRange
	}

	pageSize := uint64(mm.PageSize)
	pageStart := ph.VAddr &^ (pageSize - 1)
	pageEnd := (ph.VAddr + ph.MemSz + pageSize - 1) &^ (pageSize - 1)
	allocSize := pageEnd - pageStart
	if allocSize == 0 {
		allocSize = pageSize
	}
	if allocSize > uint64(^uint32(0)) {
		return Segment{}, ErrSegmentTooLarge
	}

	physAddr, err := alloc.Alloc(uint32(allocSize), uint32(pageSize))
	if err != nil {
		return Segment{}, err
	}

	mem := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(physAddr))), allocSize)
	for i := range mem {
		mem[i] = 0
	}

	offsetInPage := ph.VAddr - pageStart
	if ph.FileSz > 0 {
		copy(mem[offsetInPage:offsetInPage+ph.FileSz], data[ph.Offset:ph.Offset+ph.FileSz])
	}

	return Segment{
		VAddr:      ph.VAddr,
		MemSz:      ph.MemSz,
		Flags:      ph.Flags,
		PhysAddr:   physAddr + offsetInPage,
		Readable:   ph.Flags&flagRead != 0,
		Writable:   ph.Flags&flagWrite != 0,
		Executable: ph.Flags&flagExecute != 0,
	}, nil
}

// Exec simulates execution of a loaded image: it reports the entry point
// and segment layout rather than transferring control, since jumping to
// user mode requires an MMU this kernel does not implement (a documented
// non-goal).
func Exec(loaded Loaded) (entry uint64, segments []Segment) {
	return loaded.Entry, loaded.Segments
}
