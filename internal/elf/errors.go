package elf

import "errors"

var (
	ErrInvalidMagic       = errors.New("elf: bad magic")
	ErrUnsupportedClass   = errors.New("elf: not a 64-bit object")
	ErrUnsupportedEndian  = errors.New("elf: not little-endian")
	ErrUnsupportedMachine = errors.New("elf: not RISC-V")
	ErrUnsupportedType    = errors.New("elf: not an executable or shared object")
	ErrInvalidHeader      = errors.New("elf: malformed header")
	ErrSegmentOutOfRange  = errors.New("elf: segment extends past file image")
	ErrSegmentTooLarge    = errors.New("elf: segment too large to allocate")
)
