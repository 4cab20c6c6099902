//go:build windows

package process

import (
	"strconv"
	"unsafe"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/windows"

	"github.com/lu-zhengda/devkill/internal/logging"
)

// processBasicInformation mirrors PROCESS_BASIC_INFORMATION with every
// field as uintptr, so the foreign PEB address is never held in a Go pointer.
type processBasicInformation struct {
	ExitStatus                   uintptr
	PebBaseAddress               uintptr
	AffinityMask                 uintptr
	BasePriority                 uintptr
	UniqueProcessID              uintptr
	InheritedFromUniqueProcessID uintptr
}

// systemInspector reads process metadata through kernel32 and ntdll.
type systemInspector struct{}

// NewSystemInspector returns the Inspector for the running OS.
func NewSystemInspector() Inspector {
	return systemInspector{}
}

// Identity opens pid with limited query rights to read its image path. When
// that is denied (protected and system processes) the name still comes from
// the process snapshot.
func (systemInspector) Identity(pid int) (name, path string) {
	path = imagePath(pid)
	if path != "" {
		return nameFromPath(path), path
	}

	id, ok := pid32(pid)
	if !ok {
		return "", ""
	}
	p, err := process.NewProcess(id)
	if err != nil {
		return "", ""
	}
	n, err := p.Name()
	if err != nil {
		log.Debug("process name unavailable", logging.KeyPID, pid, logging.KeyError, err)
		return "", ""
	}
	return trimExe(n), ""
}

func imagePath(pid int) string {
	if !inPIDRange(pid) {
		return ""
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, windows.MAX_LONG_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return ""
	}
	return windows.UTF16ToString(buf[:size])
}

// WorkingDir reads CurrentDirectory from the target's process parameters.
// Only 64-bit readers and native 64-bit targets are supported.
func (systemInspector) WorkingDir(pid int) string {
	if strconv.IntSize != 64 || !inPIDRange(pid) {
		return ""
	}

	h, err := windows.OpenProcess(windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_VM_READ, false, uint32(pid))
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(h)

	var wow64 bool
	if err := windows.IsWow64Process(h, &wow64); err != nil || wow64 {
		return ""
	}

	var pbi processBasicInformation
	err = windows.NtQueryInformationProcess(h, windows.ProcessBasicInformation,
		unsafe.Pointer(&pbi), uint32(unsafe.Sizeof(pbi)), nil)
	if err != nil || pbi.PebBaseAddress == 0 {
		return ""
	}

	return readCurrentDirectory(handleMemory{h: h}, uint64(pbi.PebBaseAddress))
}

// handleMemory reads remote memory through an open process handle.
type handleMemory struct {
	h windows.Handle
}

func (m handleMemory) ReadAt(addr uint64, n int) ([]byte, error) {
	if n <= 0 {
		return nil, errShortRead
	}
	buf := make([]byte, n)
	var read uintptr
	if err := windows.ReadProcessMemory(m.h, uintptr(addr), &buf[0], uintptr(n), &read); err != nil {
		return nil, err
	}
	if int(read) != n {
		return nil, errShortRead
	}
	return buf, nil
}
