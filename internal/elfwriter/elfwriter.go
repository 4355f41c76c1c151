// Package elfwriter implements spec.md §4.6's ELF writer: it wraps a
// flat byte stream of machine code in the smallest ELF64 executable the
// Linux kernel will load and run — one ELF header, one PT_LOAD program
// header, no section headers, no symbol table.
//
// Grounded on the original compiler's emit/elf/{header,mod}.rs, which
// fix the exact header field values (phoff=0x40 immediately following
// the 64-byte ELF header, the program text always starting at file
// offset 0x1000, vaddr 0x400000) this package reproduces field-for-field
// in Go's encoding/binary idiom rather than Rust's `#[repr(C, packed)]`
// + zerocopy struct layout — Go has no portable equivalent of a packed
// repr struct cast to bytes, so each field is written individually
// through binary.Write in declared order, which for a repr(C, packed)
// source struct is exactly equivalent.
package elfwriter

import (
	"bytes"
	"encoding/binary"
	"io"
)

// loadVaddr is the virtual address the kernel maps the whole file at;
// PRG_OFFSET in the original.
const loadVaddr = 0x0040_0000

// fileOffset is where the program's own bytes begin within the file. The
// single PT_LOAD segment maps the file starting at loadVaddr from this
// same file offset, so byte k of prog loads at loadVaddr+k directly —
// fileOffset places the code within the file and plays no further part
// in translating a byte's position to its load address.
const fileOffset = 0x1000

const (
	elfHeaderSize = 64
	phdrSize      = 56
)

// Write renders prog (the machine code internal/encode produced) as a
// complete ELF64 executable and writes it to w. entryOffset is the byte
// offset within prog at which execution should begin (internal/encode's
// Encoded.EntryOffset).
func Write(w io.Writer, prog []byte, entryOffset int64) error {
	var buf bytes.Buffer

	entry := uint64(loadVaddr + entryOffset)
	writeHeader(&buf, entry, 1)
	writeProgramHeader(&buf, uint64(len(prog)))

	pad := fileOffset - buf.Len()
	buf.Write(make([]byte, pad))
	buf.Write(prog)

	_, err := w.Write(buf.Bytes())
	return err
}

// writeHeader emits the 64-byte ELF64 header, field by field, matching
// header.rs's ElfHeader layout.
func writeHeader(buf *bytes.Buffer, entry uint64, phnum uint16) {
	buf.Write([]byte{0x7F, 'E', 'L', 'F'}) // ei_magic
	buf.WriteByte(2)                       // ei_class: ELFCLASS64
	buf.WriteByte(1)                       // ei_data: little-endian
	buf.WriteByte(1)                       // ei_version
	buf.WriteByte(0)                       // ei_osabi: System V
	buf.WriteByte(0)                       // ei_abiversion
	buf.Write(make([]byte, 7))             // ei_pad

	le16 := func(v uint16) { binary.Write(buf, binary.LittleEndian, v) }
	le32 := func(v uint32) { binary.Write(buf, binary.LittleEndian, v) }
	le64 := func(v uint64) { binary.Write(buf, binary.LittleEndian, v) }

	le16(2)      // e_type: ET_EXEC
	le16(0x3E)   // e_machine: EM_X86_64
	le32(1)      // e_version
	le64(entry)  // e_entry
	le64(64)     // e_phoff: program headers immediately follow this header
	le64(0)      // e_shoff: no section headers
	le32(0)      // e_flags
	le16(elfHeaderSize) // e_ehsize
	le16(phdrSize)      // e_phentsize
	le16(phnum)         // e_phnum
	le16(0)             // e_shentsize
	le16(0)             // e_shnum
	le16(0)             // e_shstrndx
}

// writeProgramHeader emits the single PT_LOAD segment description:
// type LOAD, flags R+X, loaded at loadVaddr from file offset
// fileOffset, filesz == memsz == the program's byte length, no
// alignment requirement (spec.md §4.6 says align 0 — the loader maps
// the file directly with no padding this writer doesn't already emit
// itself via fileOffset).
func writeProgramHeader(buf *bytes.Buffer, size uint64) {
	le32 := func(v uint32) { binary.Write(buf, binary.LittleEndian, v) }
	le64 := func(v uint64) { binary.Write(buf, binary.LittleEndian, v) }

	le32(1)               // p_type: PT_LOAD
	le32(5)                // p_flags: PF_R | PF_X
	le64(fileOffset)       // p_offset
	le64(loadVaddr)        // p_vaddr
	le64(loadVaddr)        // p_paddr
	le64(size)             // p_filesz
	le64(size)             // p_memsz
	le64(0)                // p_align
}
