package process

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// Manager provides process lifecycle management.
type Manager interface {
	Kill(pid int) bool
	Info(ctx context.Context, pid int) (*ProcessInfo, error)
	IsRunning(pid int) bool
	VerifyProcess(pid int, expectedName string) bool
}

// RealManager implements Manager against the running OS.
type RealManager struct {
	killer    *Killer
	inspector Inspector
	fetcher   *InfoFetcher
}

// NewRealManager creates a new process manager.
func NewRealManager() *RealManager {
	return &RealManager{
		killer:    NewKiller(),
		inspector: NewSystemInspector(),
		fetcher:   NewInfoFetcher(),
	}
}

// Kill terminates pid and its process tree. See Killer.Kill.
func (m *RealManager) Kill(pid int) bool {
	return m.killer.Kill(pid)
}

// Info retrieves detailed process information.
func (m *RealManager) Info(ctx context.Context, pid int) (*ProcessInfo, error) {
	return m.fetcher.GetInfo(ctx, pid)
}

// IsRunning checks if a process with the given PID exists.
func (m *RealManager) IsRunning(pid int) bool {
	id, ok := pid32(pid)
	if !ok {
		return false
	}
	exists, err := process.PidExists(id)
	return err == nil && exists
}

// VerifyProcess checks if a PID still corresponds to the expected process
// by comparing the image name. It guards against pid reuse between a scan
// and a kill. An empty expected name cannot be verified and passes.
func (m *RealManager) VerifyProcess(pid int, expectedName string) bool {
	if expectedName == "" {
		return true
	}
	name, _ := m.inspector.Identity(pid)
	if name == "" {
		return false
	}
	return strings.EqualFold(trimExe(name), trimExe(expectedName))
}
