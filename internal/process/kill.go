package process

import (
	"errors"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/lu-zhengda/devkill/internal/logging"
)

// ErrProcessGone is returned by a terminate func when the pid no longer exists.
var ErrProcessGone = errors.New("process does not exist")

// Killer terminates a process together with its descendants.
type Killer struct {
	children  func(pid int) []int
	terminate func(pid int) error
}

// NewKiller returns a Killer that walks the live process tree and terminates
// through the OS.
func NewKiller() *Killer {
	return &Killer{children: childPIDs, terminate: terminate}
}

// Kill terminates pid and every live descendant. It reports true if each of
// them ended or was already gone. Negative pids and pids beyond the
// platform's pid range cannot exist and succeed immediately; protected pids
// fail without a syscall. Kill never panics or returns an error and may be
// called again for the same pid.
func (k *Killer) Kill(pid int) bool {
	if !inPIDRange(pid) {
		return true
	}
	if protectedPIDs[pid] {
		log.Warn("refusing to kill protected process", logging.KeyPID, pid)
		return false
	}

	// Collect the tree first; once the root is gone its children are harder
	// to find.
	tree := k.descendants(pid)

	ok := k.end(pid)
	for _, child := range tree {
		if !k.end(child) {
			ok = false
		}
	}
	return ok
}

func (k *Killer) end(pid int) bool {
	err := k.terminate(pid)
	if err == nil || errors.Is(err, ErrProcessGone) {
		return true
	}
	log.Debug("terminate failed", logging.KeyPID, pid, logging.KeyError, err)
	return false
}

// descendants returns the live descendants of pid in breadth-first order.
func (k *Killer) descendants(pid int) []int {
	seen := map[int]bool{pid: true}
	var out []int
	queue := []int{pid}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range k.children(cur) {
			if seen[c] || c <= 0 || protectedPIDs[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out
}

func childPIDs(pid int) []int {
	id, ok := pid32(pid)
	if !ok {
		return nil
	}
	p, err := process.NewProcess(id)
	if err != nil {
		return nil
	}
	kids, err := p.Children()
	if err != nil {
		return nil
	}
	pids := make([]int, 0, len(kids))
	for _, c := range kids {
		pids = append(pids, int(c.Pid))
	}
	return pids
}
