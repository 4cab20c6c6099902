package process

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessInfo holds detailed information about a running process.
type ProcessInfo struct {
	PID        int
	PPID       int
	Name       string
	Command    string // full command line
	Exe        string
	Cwd        string
	User       string
	StartTime  time.Time
	CPUPercent float64
	MemRSS     int64 // in bytes
	State      string
	Children   []int // child PIDs
}

// procHandle is the subset of *process.Process the fetcher reads.
type procHandle interface {
	PpidWithContext(ctx context.Context) (int32, error)
	NameWithContext(ctx context.Context) (string, error)
	CmdlineWithContext(ctx context.Context) (string, error)
	ExeWithContext(ctx context.Context) (string, error)
	CwdWithContext(ctx context.Context) (string, error)
	UsernameWithContext(ctx context.Context) (string, error)
	CreateTimeWithContext(ctx context.Context) (int64, error)
	CPUPercentWithContext(ctx context.Context) (float64, error)
	MemoryInfoWithContext(ctx context.Context) (*process.MemoryInfoStat, error)
	StatusWithContext(ctx context.Context) ([]string, error)
	ChildrenWithContext(ctx context.Context) ([]*process.Process, error)
}

// InfoFetcher retrieves detailed process information.
type InfoFetcher struct {
	open func(ctx context.Context, pid int32) (procHandle, error)
}

// NewInfoFetcher creates a new InfoFetcher.
func NewInfoFetcher() *InfoFetcher {
	return &InfoFetcher{
		open: func(ctx context.Context, pid int32) (procHandle, error) {
			return process.NewProcessWithContext(ctx, pid)
		},
	}
}

// GetInfo retrieves detailed information for a process. Individual fields
// that cannot be read are left zero; only a missing process is an error.
func (f *InfoFetcher) GetInfo(ctx context.Context, pid int) (*ProcessInfo, error) {
	id, ok := pid32(pid)
	if !ok || id == 0 {
		return nil, fmt.Errorf("invalid PID %d", pid)
	}

	p, err := f.open(ctx, id)
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return nil, fmt.Errorf("process %d not found", pid)
		}
		return nil, fmt.Errorf("failed to open process %d: %w", pid, err)
	}

	info := &ProcessInfo{PID: pid}

	if ppid, err := p.PpidWithContext(ctx); err == nil {
		info.PPID = int(ppid)
	}
	if name, err := p.NameWithContext(ctx); err == nil {
		info.Name = name
	}
	if cmd, err := p.CmdlineWithContext(ctx); err == nil {
		info.Command = cmd
	}
	if exe, err := p.ExeWithContext(ctx); err == nil {
		info.Exe = exe
	}
	if cwd, err := p.CwdWithContext(ctx); err == nil {
		info.Cwd = cwd
	}
	if user, err := p.UsernameWithContext(ctx); err == nil {
		info.User = user
	}
	if ms, err := p.CreateTimeWithContext(ctx); err == nil && ms > 0 {
		info.StartTime = time.UnixMilli(ms)
	}
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		info.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		info.MemRSS = int64(mem.RSS)
	}
	if status, err := p.StatusWithContext(ctx); err == nil {
		info.State = strings.Join(status, ",")
	}
	if kids, err := p.ChildrenWithContext(ctx); err == nil {
		for _, c := range kids {
			info.Children = append(info.Children, int(c.Pid))
		}
	}

	if info.Name == "" && info.Exe != "" {
		info.Name = nameFromPath(info.Exe)
	}
	return info, nil
}
