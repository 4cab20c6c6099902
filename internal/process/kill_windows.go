//go:build windows

package process

import (
	"errors"
	"math"

	"golang.org/x/sys/windows"
)

// maxPID is the largest process id a DWORD can hold.
const maxPID uint64 = math.MaxUint32

// protectedPIDs are the System Idle Process and System.
var protectedPIDs = map[int]bool{
	0: true,
	4: true,
}

const (
	stillActive = 259
	killWaitMs  = 3000
)

func terminate(pid int) error {
	if !inPIDRange(pid) {
		return ErrProcessGone
	}
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE|windows.SYNCHRONIZE|windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		// OpenProcess reports a pid with no process as an invalid parameter.
		if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
			return ErrProcessGone
		}
		return err
	}
	defer windows.CloseHandle(h)

	if err := windows.TerminateProcess(h, 1); err != nil {
		// Terminating a process that is already exiting is denied.
		var code uint32
		if windows.GetExitCodeProcess(h, &code) == nil && code != stillActive {
			return ErrProcessGone
		}
		return err
	}

	_, _ = windows.WaitForSingleObject(h, killWaitMs)
	return nil
}
