package elfwriter_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"jjc/internal/elfwriter"
)

func TestWriteMagicAndClass(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, elfwriter.Write(&buf, []byte{0xC3}, 0))
	out := buf.Bytes()
	require.Equal(t, []byte{0x7F, 'E', 'L', 'F'}, out[0:4])
	require.Equal(t, byte(2), out[4], "ELFCLASS64")
	require.Equal(t, byte(1), out[5], "little-endian")
}

func TestWriteProgramHeaderOffsetIsImmediatelyAfterTheElfHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, elfwriter.Write(&buf, []byte{0xC3}, 0))
	out := buf.Bytes()
	phoff := binary.LittleEndian.Uint64(out[0x20:0x28])
	require.Equal(t, uint64(0x40), phoff)
	phnum := binary.LittleEndian.Uint16(out[0x38:0x3A])
	require.Equal(t, uint16(1), phnum)
}

func TestWritePadsToFileOffset0x1000AndEmitsCodeThere(t *testing.T) {
	code := []byte{0x90, 0xC3}
	var buf bytes.Buffer
	require.NoError(t, elfwriter.Write(&buf, code, 0))
	out := buf.Bytes()
	require.Equal(t, 0x1000+len(code), len(out))
	require.Equal(t, code, out[0x1000:])
	for _, b := range out[0x40+56 : 0x1000] {
		require.Equal(t, byte(0), b, "bytes between the program header and the code must be zero padding")
	}
}

func TestWriteEntryPointAccountsForEntryOffset(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, elfwriter.Write(&buf, []byte{0x90, 0xC3}, 1))
	out := buf.Bytes()
	entry := binary.LittleEndian.Uint64(out[0x18:0x20])
	// e_entry must land inside the mapped LOAD segment: p_vaddr(0x400000)
	// + p_offset-relative byte index into the code, NOT the file offset
	// the code happens to start at. Asserting against the vaddr the
	// kernel will actually map the entry byte at (rather than re-deriving
	// the same formula Write uses) is what catches an accidental extra
	// +fileOffset term.
	require.Equal(t, uint64(0x0040_0000+1), entry)
}

func TestWriteProgramHeaderDescribesASingleReadExecuteLoadSegment(t *testing.T) {
	var buf bytes.Buffer
	code := []byte{0x90, 0x90, 0xC3}
	require.NoError(t, elfwriter.Write(&buf, code, 0))
	out := buf.Bytes()
	ph := out[0x40 : 0x40+56]
	require.Equal(t, uint32(1), binary.LittleEndian.Uint32(ph[0:4]), "p_type PT_LOAD")
	require.Equal(t, uint32(5), binary.LittleEndian.Uint32(ph[4:8]), "p_flags R|X")
	require.Equal(t, uint64(0x1000), binary.LittleEndian.Uint64(ph[8:16]), "p_offset")
	require.Equal(t, uint64(0x0040_0000), binary.LittleEndian.Uint64(ph[16:24]), "p_vaddr")
	require.Equal(t, uint64(0x0040_0000), binary.LittleEndian.Uint64(ph[24:32]), "p_paddr")
	require.Equal(t, uint64(len(code)), binary.LittleEndian.Uint64(ph[32:40]), "p_filesz")
	require.Equal(t, uint64(len(code)), binary.LittleEndian.Uint64(ph[40:48]), "p_memsz")
}
