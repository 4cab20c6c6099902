package process

import (
	"encoding/binary"
	"errors"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// Offsets into the 64-bit PEB and RTL_USER_PROCESS_PARAMETERS. These are
// undocumented and only valid when reader and target are both 64-bit.
const (
	pebProcessParametersOff   = 0x20
	paramsCurrentDirectoryOff = 0x38

	// UNICODE_STRING: Length u16, MaximumLength u16, 4 bytes padding, Buffer u64.
	unicodeStringSize      = 16
	unicodeStringLengthOff = 0
	unicodeStringBufferOff = 8
)

var errShortRead = errors.New("short remote memory read")

// memoryReader reads bytes from another process's address space.
type memoryReader interface {
	ReadAt(addr uint64, n int) ([]byte, error)
}

// readCurrentDirectory follows PEB -> ProcessParameters ->
// CurrentDirectory.DosPath and decodes the UTF-16 path. Every failed or
// implausible read yields "".
func readCurrentDirectory(m memoryReader, peb uint64) string {
	if peb == 0 {
		return ""
	}

	params, err := readPointer(m, peb+pebProcessParametersOff)
	if err != nil || params == 0 {
		return ""
	}

	hdr, err := m.ReadAt(params+paramsCurrentDirectoryOff, unicodeStringSize)
	if err != nil || len(hdr) < unicodeStringSize {
		return ""
	}
	length := binary.LittleEndian.Uint16(hdr[unicodeStringLengthOff:])
	buffer := binary.LittleEndian.Uint64(hdr[unicodeStringBufferOff:])
	if length == 0 || buffer == 0 {
		return ""
	}

	raw, err := m.ReadAt(buffer, int(length))
	if err != nil || len(raw) < int(length) {
		return ""
	}

	dir, err := decodeUTF16(raw)
	if err != nil {
		return ""
	}
	return trimTrailingSeparator(dir)
}

func readPointer(m memoryReader, addr uint64) (uint64, error) {
	b, err := m.ReadAt(addr, 8)
	if err != nil {
		return 0, err
	}
	if len(b) < 8 {
		return 0, errShortRead
	}
	return binary.LittleEndian.Uint64(b), nil
}

func decodeUTF16(raw []byte) (string, error) {
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// trimTrailingSeparator drops one trailing backslash unless the path is a
// bare drive root such as `C:\`.
func trimTrailingSeparator(dir string) string {
	if len(dir) > 3 && strings.HasSuffix(dir, `\`) {
		return dir[:len(dir)-1]
	}
	return dir
}
