//go:build unix

package process

import (
	"errors"
	"math"

	"golang.org/x/sys/unix"
)

// maxPID is the largest value a pid_t can hold.
const maxPID uint64 = math.MaxInt32

// protectedPIDs lists PIDs that should never be killed.
var protectedPIDs = map[int]bool{
	0: true,
	1: true,
}

func terminate(pid int) error {
	if !inPIDRange(pid) {
		return ErrProcessGone
	}
	err := unix.Kill(pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return ErrProcessGone
	}
	return err
}
