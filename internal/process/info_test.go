package process

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// fakeHandle serves canned values; failing names the fields that error.
type fakeHandle struct {
	ppid    int32
	name    string
	cmdline string
	exe     string
	cwd     string
	user    string
	created int64
	cpu     float64
	rss     uint64
	status  []string
	kids    []int32
	failing map[string]bool
}

var errDenied = errors.New("access denied")

func (h *fakeHandle) fail(field string) error {
	if h.failing[field] {
		return errDenied
	}
	return nil
}

func (h *fakeHandle) PpidWithContext(context.Context) (int32, error) {
	return h.ppid, h.fail("ppid")
}

func (h *fakeHandle) NameWithContext(context.Context) (string, error) {
	return h.name, h.fail("name")
}

func (h *fakeHandle) CmdlineWithContext(context.Context) (string, error) {
	return h.cmdline, h.fail("cmdline")
}

func (h *fakeHandle) ExeWithContext(context.Context) (string, error) {
	return h.exe, h.fail("exe")
}

func (h *fakeHandle) CwdWithContext(context.Context) (string, error) {
	return h.cwd, h.fail("cwd")
}

func (h *fakeHandle) UsernameWithContext(context.Context) (string, error) {
	return h.user, h.fail("user")
}

func (h *fakeHandle) CreateTimeWithContext(context.Context) (int64, error) {
	return h.created, h.fail("created")
}

func (h *fakeHandle) CPUPercentWithContext(context.Context) (float64, error) {
	return h.cpu, h.fail("cpu")
}

func (h *fakeHandle) MemoryInfoWithContext(context.Context) (*process.MemoryInfoStat, error) {
	if err := h.fail("mem"); err != nil {
		return nil, err
	}
	return &process.MemoryInfoStat{RSS: h.rss}, nil
}

func (h *fakeHandle) StatusWithContext(context.Context) ([]string, error) {
	return h.status, h.fail("status")
}

func (h *fakeHandle) ChildrenWithContext(context.Context) ([]*process.Process, error) {
	if err := h.fail("children"); err != nil {
		return nil, err
	}
	var out []*process.Process
	for _, pid := range h.kids {
		out = append(out, &process.Process{Pid: pid})
	}
	return out, nil
}

func fetcherFor(h procHandle, err error) *InfoFetcher {
	return &InfoFetcher{open: func(context.Context, int32) (procHandle, error) {
		return h, err
	}}
}

func TestGetInfo_AllFields(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	h := &fakeHandle{
		ppid:    1,
		name:    "node.exe",
		cmdline: "node server.js --port 3000",
		exe:     `C:\Program Files\nodejs\node.exe`,
		cwd:     `C:\src\app`,
		user:    `DESKTOP\dev`,
		created: start.UnixMilli(),
		cpu:     2.5,
		rss:     52428800,
		status:  []string{"running"},
		kids:    []int32{1235, 1236},
	}

	info, err := fetcherFor(h, nil).GetInfo(context.Background(), 1234)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.PID != 1234 || info.PPID != 1 {
		t.Errorf("pid/ppid = %d/%d", info.PID, info.PPID)
	}
	if info.Name != "node.exe" || info.Command != "node server.js --port 3000" {
		t.Errorf("name/command = %q/%q", info.Name, info.Command)
	}
	if info.Cwd != `C:\src\app` || info.User != `DESKTOP\dev` {
		t.Errorf("cwd/user = %q/%q", info.Cwd, info.User)
	}
	if !info.StartTime.Equal(start) {
		t.Errorf("StartTime = %v, want %v", info.StartTime, start)
	}
	if info.CPUPercent != 2.5 || info.MemRSS != 52428800 {
		t.Errorf("cpu/mem = %v/%d", info.CPUPercent, info.MemRSS)
	}
	if info.State != "running" {
		t.Errorf("State = %q", info.State)
	}
	if !slices.Equal(info.Children, []int{1235, 1236}) {
		t.Errorf("Children = %v", info.Children)
	}
}

func TestGetInfo_PartialAccess(t *testing.T) {
	h := &fakeHandle{
		exe:     `C:\tools\caddy.exe`,
		cwd:     `C:\should-not-appear`,
		failing: map[string]bool{"name": true, "cwd": true, "user": true, "mem": true},
	}

	info, err := fetcherFor(h, nil).GetInfo(context.Background(), 50)
	if err != nil {
		t.Fatalf("denied fields should not fail the lookup: %v", err)
	}
	if info.Name != "caddy" {
		t.Errorf("Name should fall back to the image name, got %q", info.Name)
	}
	if info.Cwd != "" || info.User != "" || info.MemRSS != 0 {
		t.Errorf("denied fields should stay zero: %+v", info)
	}
	if !info.StartTime.IsZero() {
		t.Errorf("zero create time should leave StartTime unset, got %v", info.StartTime)
	}
}

func TestGetInfo_NotFound(t *testing.T) {
	_, err := fetcherFor(nil, process.ErrorProcessNotRunning).GetInfo(context.Background(), 99999)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestGetInfo_OpenError(t *testing.T) {
	_, err := fetcherFor(nil, errDenied).GetInfo(context.Background(), 10)
	if !errors.Is(err, errDenied) {
		t.Errorf("expected wrapped open error, got %v", err)
	}
}

func TestGetInfo_InvalidPID(t *testing.T) {
	f := fetcherFor(&fakeHandle{}, nil)
	pids := []int{0, -1}
	if strconv.IntSize == 64 {
		var wide int64 = 1<<32 + 10
		pids = append(pids, int(wide))
	}
	for _, pid := range pids {
		if _, err := f.GetInfo(context.Background(), pid); err == nil {
			t.Errorf("GetInfo(%d) should fail", pid)
		}
	}
}
