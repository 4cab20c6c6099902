package tui

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lu-zhengda/devkill/internal/port"
	"github.com/lu-zhengda/devkill/internal/process"
)

type fakeLister struct {
	entries []port.PortEntry
}

func (f *fakeLister) Scan() []port.PortEntry {
	return slices.Clone(f.entries)
}

type fakeManager struct {
	names  map[int]string
	fail   map[int]bool
	killed []int
}

func (f *fakeManager) Kill(pid int) bool {
	f.killed = append(f.killed, pid)
	return !f.fail[pid]
}

func (f *fakeManager) Info(_ context.Context, pid int) (*process.ProcessInfo, error) {
	return &process.ProcessInfo{PID: pid, Command: "node server.js"}, nil
}

func (f *fakeManager) IsRunning(pid int) bool { return f.names[pid] != "" }

func (f *fakeManager) VerifyProcess(pid int, expected string) bool {
	return expected == "" || f.names[pid] == expected
}

func testEntries() []port.PortEntry {
	return []port.PortEntry{
		{Port: 135, PID: 900, ProcessName: "svchost", Protocol: port.TCP, LocalAddress: "0.0.0.0", State: port.StateListen},
		{Port: 5173, PID: 150, ProcessName: "vite", Protocol: port.UDP, LocalAddress: "::", IsDevProcess: true},
		{Port: 3000, PID: 100, ProcessName: "node", Protocol: port.TCP, LocalAddress: "0.0.0.0", State: port.StateListen,
			WorkingDirectory: `C:\src\shop`, IsDevProcess: true},
	}
}

func newTestModel(t *testing.T) (Model, *fakeManager) {
	t.Helper()
	mgr := &fakeManager{names: map[int]string{900: "svchost", 150: "vite", 100: "node"}, fail: map[int]bool{}}
	m := New(&fakeLister{entries: testEntries()}, mgr, Options{Version: "test", Interval: time.Second})
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = update(t, m, scanDoneMsg{entries: testEntries(), at: time.Now()})
	return m, mgr
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func visiblePIDs(m Model) []int {
	var pids []int
	for _, idx := range m.filtered {
		pids = append(pids, m.entries[idx].PID)
	}
	return pids
}

func TestScanDone_GroupsDevServersFirst(t *testing.T) {
	m, _ := newTestModel(t)

	if got := visiblePIDs(m); !slices.Equal(got, []int{100, 150, 900}) {
		t.Errorf("row order = %v, want [100 150 900]", got)
	}
	view := m.View()
	dev := strings.Index(view, "Dev Servers (2)")
	other := strings.Index(view, "Other Ports (1)")
	if dev < 0 || other < 0 || dev > other {
		t.Errorf("group headers missing or out of order:\n%s", view)
	}
	if !strings.Contains(view, `C:\src\shop`) {
		t.Error("working directory should be shown as the path")
	}
}

func TestScanDone_UnchangedSnapshotKeepsState(t *testing.T) {
	m, _ := newTestModel(t)
	m = update(t, m, key("s"))
	m = update(t, m, key("j"))
	before := visiblePIDs(m)

	m = update(t, m, scanDoneMsg{entries: testEntries(), at: time.Now()})
	if got := visiblePIDs(m); !slices.Equal(got, before) {
		t.Errorf("identical refresh reordered rows: %v -> %v", before, got)
	}
	if m.cursor != 1 {
		t.Errorf("cursor moved to %d", m.cursor)
	}
}

func TestScanDone_ChangeRebuildsRows(t *testing.T) {
	m, _ := newTestModel(t)
	entries := testEntries()[:2]
	m = update(t, m, scanDoneMsg{entries: entries, at: time.Now()})
	if got := visiblePIDs(m); !slices.Equal(got, []int{150, 900}) {
		t.Errorf("rows = %v, want [150 900]", got)
	}
}

func TestSearch(t *testing.T) {
	m, _ := newTestModel(t)
	m = update(t, m, key("/"))
	if m.currentView != viewFilter {
		t.Fatal("expected filter view")
	}
	for _, r := range "shop" {
		m = update(t, m, key(string(r)))
	}
	m = update(t, m, key("enter"))

	if got := visiblePIDs(m); !slices.Equal(got, []int{100}) {
		t.Errorf("search by working dir = %v, want [100]", got)
	}

	m = update(t, m, key("esc"))
	if len(m.filtered) != 3 {
		t.Errorf("esc should clear the search, got %d rows", len(m.filtered))
	}
}

func TestDevOnlyToggle(t *testing.T) {
	m, _ := newTestModel(t)
	m = update(t, m, key("d"))
	if got := visiblePIDs(m); !slices.Equal(got, []int{100, 150}) {
		t.Errorf("dev only rows = %v", got)
	}
	m = update(t, m, key("d"))
	if len(m.filtered) != 3 {
		t.Errorf("toggle back should show all, got %d", len(m.filtered))
	}
}

func TestKill_SelectedRow(t *testing.T) {
	m, mgr := newTestModel(t)
	m = update(t, m, key("K"))
	if m.currentView != viewKillConfirm || len(m.killQueue) != 1 || m.killQueue[0].pid != 100 {
		t.Fatalf("expected confirmation for pid 100, got view=%d queue=%+v", m.currentView, m.killQueue)
	}
	if !strings.Contains(m.View(), "node (PID 100) on port 3000") {
		t.Errorf("confirmation should describe the target:\n%s", m.View())
	}

	next, cmd := m.Update(key("y"))
	if cmd == nil {
		t.Fatal("confirming should start the kill")
	}
	m = update(t, next.(Model), cmd())

	if !slices.Equal(mgr.killed, []int{100}) {
		t.Errorf("killed %v, want [100]", mgr.killed)
	}
	if m.currentView != viewKillResult || !strings.Contains(m.View(), "Killed node (PID 100)") {
		t.Errorf("expected kill result view:\n%s", m.View())
	}
}

func TestKill_MarkedRows(t *testing.T) {
	m, mgr := newTestModel(t)
	mgr.fail[900] = true

	m = update(t, m, key(" ")) // marks 100, cursor moves to 150
	m = update(t, m, key("j")) // 900
	m = update(t, m, key(" ")) // marks 900
	if len(m.marked) != 2 {
		t.Fatalf("marked = %v", m.marked)
	}

	m = update(t, m, key("K"))
	var pids []int
	for _, tgt := range m.killQueue {
		pids = append(pids, tgt.pid)
	}
	if !slices.Equal(pids, []int{100, 900}) {
		t.Fatalf("queue = %v, want [100 900]", pids)
	}

	next, cmd := m.Update(key("y"))
	m = update(t, next.(Model), cmd())

	view := m.View()
	if !strings.Contains(view, "Could not kill PID(s) 900") {
		t.Errorf("failed pid should be listed:\n%s", view)
	}
	if len(m.marked) != 0 {
		t.Error("marks should clear after a kill")
	}
}

func TestKill_SkipsRecycledPID(t *testing.T) {
	m, mgr := newTestModel(t)
	mgr.names[100] = "notepad"

	m = update(t, m, key("K"))
	next, cmd := m.Update(key("y"))
	m = update(t, next.(Model), cmd())

	if len(mgr.killed) != 0 {
		t.Errorf("recycled pid must not be killed, killed %v", mgr.killed)
	}
	if !strings.Contains(m.View(), "Skipped node (PID 100)") {
		t.Errorf("expected skipped notice:\n%s", m.View())
	}
}

func TestKill_Cancel(t *testing.T) {
	m, mgr := newTestModel(t)
	m = update(t, m, key("K"))
	m = update(t, m, key("n"))
	if m.currentView != viewTable || m.killQueue != nil || len(mgr.killed) != 0 {
		t.Errorf("cancel should return to the table without killing")
	}
}

func TestInfoView(t *testing.T) {
	m, _ := newTestModel(t)
	next, cmd := m.Update(key("i"))
	m = update(t, next.(Model), cmd())

	if m.currentView != viewInfo {
		t.Fatal("expected info view")
	}
	view := m.View()
	for _, want := range []string{"3000/TCP", `C:\src\shop`, "node server.js", "Dev Servers"} {
		if !strings.Contains(view, want) {
			t.Errorf("info view missing %q:\n%s", want, view)
		}
	}
}

func TestTickRespectsPause(t *testing.T) {
	m, _ := newTestModel(t)
	m = update(t, m, key("p"))
	if !m.paused || !strings.Contains(m.View(), "[PAUSED]") {
		t.Error("p should pause refresh")
	}
}

func TestTruncateLeft(t *testing.T) {
	if got := truncateLeft(`C:\Users\dev\projects\shop`, 12); got != `...ects\shop` {
		t.Errorf("truncateLeft = %q", got)
	}
	if got := truncateLeft("short", 12); got != "short" {
		t.Errorf("truncateLeft = %q", got)
	}
}

type countingLister struct {
	calls int
}

func (c *countingLister) Scan() []port.PortEntry {
	c.calls++
	return testEntries()
}

// run executes cmd and any commands it batches, discarding their messages.
func run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	if batch, ok := cmd().(tea.BatchMsg); ok {
		for _, c := range batch {
			run(c)
		}
	}
}

func send(m Model, msg tea.Msg) Model {
	next, cmd := m.Update(msg)
	run(cmd)
	return next.(Model)
}

func TestScan_OneInFlight(t *testing.T) {
	lister := &countingLister{}
	mgr := &fakeManager{names: map[int]string{}, fail: map[int]bool{}}
	m := New(lister, mgr, Options{Interval: time.Millisecond})
	_ = m.Init() // initial scan dispatched, result not delivered yet

	m = send(m, tickMsg(time.Now()))
	m = send(m, key("r"))
	if lister.calls != 0 {
		t.Fatalf("%d scans started while the initial scan was in flight", lister.calls)
	}

	m = send(m, scanDoneMsg{entries: testEntries(), at: time.Now()})
	m = send(m, tickMsg(time.Now()))
	if lister.calls != 1 || !m.scanning {
		t.Fatalf("tick after a finished scan: calls=%d scanning=%v", lister.calls, m.scanning)
	}

	m = send(m, key("r"))
	m = send(m, tickMsg(time.Now()))
	if lister.calls != 1 {
		t.Errorf("%d scans started while one was in flight", lister.calls)
	}

	m = send(m, scanDoneMsg{entries: testEntries(), at: time.Now()})
	m = send(m, key("r"))
	if lister.calls != 2 {
		t.Errorf("refresh after the scan finished: calls=%d, want 2", lister.calls)
	}
}
