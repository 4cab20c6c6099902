package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/lu-zhengda/devkill/internal/port"
	"github.com/lu-zhengda/devkill/internal/process"
	"github.com/lu-zhengda/devkill/internal/snapshot"
)

// viewState tracks which screen the TUI is currently showing.
type viewState int

const (
	viewTable viewState = iota
	viewInfo
	viewKillConfirm
	viewKillResult
	viewFilter
)

// Options configures the TUI.
type Options struct {
	Version  string
	Interval time.Duration
	DevOnly  bool
	Exclude  []string
	Color    bool
}

// Messages for async operations.
type scanDoneMsg struct {
	entries []port.PortEntry
	at      time.Time
}

type tickMsg time.Time

type killDoneMsg struct {
	outcomes []killOutcome
}

type infoDoneMsg struct {
	info *process.ProcessInfo
	err  error
}

// killTarget is one pid selected for termination with what the scan knew
// about it.
type killTarget struct {
	pid     int
	process string
	ports   []int
}

type killOutcome struct {
	killTarget
	killed  bool
	skipped bool
}

// Model is the main Bubbletea model for the devkill TUI.
type Model struct {
	lister   port.Lister
	manager  process.Manager
	opts     Options
	snap     *snapshot.Snapshot
	entries  []port.PortEntry
	filtered []int // indices into entries for currently displayed items
	marked   map[int]bool

	cursor       int
	scrollOffset int
	sortBy       port.SortField
	devOnly      bool
	searchQuery  string
	paused       bool
	lastScan     time.Time

	// Info view state.
	infoEntry *port.PortEntry
	infoData  *process.ProcessInfo
	infoErr   error

	// Kill state.
	killQueue    []killTarget
	killOutcomes []killOutcome

	scanning bool
	spinner  spinner.Model

	width  int
	height int

	currentView viewState
}

// New creates a new TUI model.
func New(lister port.Lister, manager process.Manager, opts Options) Model {
	if opts.Interval <= 0 {
		opts.Interval = 3 * time.Second
	}
	if !opts.Color {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorCyan)

	return Model{
		lister:      lister,
		manager:     manager,
		opts:        opts,
		devOnly:     opts.DevOnly,
		marked:      map[int]bool{},
		scanning:    true,
		spinner:     sp,
		currentView: viewTable,
	}
}

// Init starts the spinner and kicks off the initial scan.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.doScan(), m.tickCmd())
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.opts.Interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) doScan() tea.Cmd {
	lister := m.lister
	return func() tea.Msg {
		return scanDoneMsg{entries: lister.Scan(), at: time.Now()}
	}
}

// startScan dispatches a scan unless one is still in flight. The lister
// must not be called concurrently, and results are applied in arrival order.
func (m *Model) startScan() tea.Cmd {
	if m.scanning {
		return nil
	}
	m.scanning = true
	return tea.Batch(m.doScan(), m.spinner.Tick)
}

func (m Model) doKill(targets []killTarget) tea.Cmd {
	mgr := m.manager
	return func() tea.Msg {
		outcomes := make([]killOutcome, 0, len(targets))
		for _, t := range targets {
			o := killOutcome{killTarget: t}
			if !mgr.VerifyProcess(t.pid, t.process) {
				o.skipped = true
			} else {
				o.killed = mgr.Kill(t.pid)
			}
			outcomes = append(outcomes, o)
		}
		return killDoneMsg{outcomes: outcomes}
	}
}

func (m Model) doGetInfo(pid int) tea.Cmd {
	mgr := m.manager
	return func() tea.Msg {
		info, err := mgr.Info(context.Background(), pid)
		return infoDoneMsg{info: info, err: err}
	}
}

// Update handles all messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.adjustScroll()
		return m, nil

	case spinner.TickMsg:
		if m.scanning {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tickMsg:
		if !m.paused && m.currentView == viewTable {
			scan := m.startScan()
			return m, tea.Batch(scan, m.tickCmd())
		}
		return m, m.tickCmd()

	case scanDoneMsg:
		m.scanning = false
		m.lastScan = msg.at
		next := snapshot.Of(msg.entries, msg.at)
		if m.snap != nil && snapshot.Equal(m.snap, next) {
			return m, nil
		}
		m.snap = next
		m.entries = msg.entries
		m.applyView()
		return m, nil

	case killDoneMsg:
		m.killOutcomes = msg.outcomes
		m.killQueue = nil
		m.marked = map[int]bool{}
		m.currentView = viewKillResult
		return m, nil

	case infoDoneMsg:
		m.infoData = msg.info
		m.infoErr = msg.err
		m.currentView = viewInfo
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		switch m.currentView {
		case viewTable:
			return m.updateTable(msg)
		case viewInfo:
			return m.updateInfo(msg)
		case viewKillConfirm:
			return m.updateKillConfirm(msg)
		case viewKillResult:
			return m.updateKillResult(msg)
		case viewFilter:
			return m.updateFilter(msg)
		}
	}

	return m, nil
}

func (m Model) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "j", "down":
		if len(m.filtered) > 0 && m.cursor < len(m.filtered)-1 {
			m.cursor++
			m.ensureCursorVisible()
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
			m.ensureCursorVisible()
		}
	case " ":
		if entry := m.selectedEntry(); entry != nil {
			if m.marked[entry.PID] {
				delete(m.marked, entry.PID)
			} else {
				m.marked[entry.PID] = true
			}
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
				m.ensureCursorVisible()
			}
		}
	case "K":
		if targets := m.killTargets(); len(targets) > 0 {
			m.killQueue = targets
			m.currentView = viewKillConfirm
		}
	case "i", "enter":
		if entry := m.selectedEntry(); entry != nil {
			m.infoEntry = entry
			m.infoData = nil
			m.infoErr = nil
			return m, m.doGetInfo(entry.PID)
		}
	case "r":
		cmd := m.startScan()
		return m, cmd
	case "s":
		m.sortBy = m.sortBy.Next()
		m.applyView()
	case "d":
		m.devOnly = !m.devOnly
		m.applyView()
	case "p":
		m.paused = !m.paused
	case "/":
		m.currentView = viewFilter
		m.searchQuery = ""
		m.applyView()
	case "esc":
		switch {
		case m.searchQuery != "":
			m.searchQuery = ""
			m.applyView()
		case len(m.marked) > 0:
			m.marked = map[int]bool{}
		}
	}
	return m, nil
}

func (m Model) updateInfo(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "backspace":
		m.currentView = viewTable
	case "K":
		if m.infoEntry != nil {
			m.killQueue = m.targetsFor([]int{m.infoEntry.PID})
			m.currentView = viewKillConfirm
		}
	}
	return m, nil
}

func (m Model) updateKillConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		if len(m.killQueue) > 0 {
			return m, m.doKill(m.killQueue)
		}
	case "n", "esc", "N":
		m.currentView = viewTable
		m.killQueue = nil
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateKillResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "enter", "backspace":
		m.currentView = viewTable
		m.killOutcomes = nil
		// Refresh after kill.
		cmd := m.startScan()
		return m, cmd
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.currentView = viewTable
		m.applyView()
	case tea.KeyEsc:
		m.currentView = viewTable
		m.searchQuery = ""
		m.applyView()
	case tea.KeyBackspace:
		if len(m.searchQuery) > 0 {
			r := []rune(m.searchQuery)
			m.searchQuery = string(r[:len(r)-1])
			m.applyView()
		}
	case tea.KeyRunes:
		m.searchQuery += string(msg.Runes)
		m.applyView()
	case tea.KeySpace:
		m.searchQuery += " "
		m.applyView()
	}
	return m, nil
}

func (m *Model) selectedEntry() *port.PortEntry {
	if len(m.filtered) == 0 || m.cursor < 0 || m.cursor >= len(m.filtered) {
		return nil
	}
	idx := m.filtered[m.cursor]
	if idx >= len(m.entries) {
		return nil
	}
	entry := m.entries[idx]
	return &entry
}

// killTargets returns the marked pids, or the selected one when nothing
// is marked.
func (m *Model) killTargets() []killTarget {
	if len(m.marked) > 0 {
		var pids []int
		for _, idx := range m.filtered {
			pid := m.entries[idx].PID
			if m.marked[pid] && !containsInt(pids, pid) {
				pids = append(pids, pid)
			}
		}
		// Marked rows hidden by the current filter still count.
		for pid := range m.marked {
			if !containsInt(pids, pid) {
				pids = append(pids, pid)
			}
		}
		return m.targetsFor(pids)
	}
	if entry := m.selectedEntry(); entry != nil {
		return m.targetsFor([]int{entry.PID})
	}
	return nil
}

func (m *Model) targetsFor(pids []int) []killTarget {
	targets := make([]killTarget, 0, len(pids))
	for _, pid := range pids {
		t := killTarget{pid: pid}
		for _, e := range m.entries {
			if e.PID != pid {
				continue
			}
			t.process = e.ProcessName
			if !containsInt(t.ports, e.Port) {
				t.ports = append(t.ports, e.Port)
			}
		}
		targets = append(targets, t)
	}
	return targets
}

// applyView re-sorts the entries and rebuilds the visible index list.
func (m *Model) applyView() {
	port.Sort(m.entries, m.sortBy)

	f := port.Filter{
		DevOnly: m.devOnly,
		Exclude: m.opts.Exclude,
		Query:   m.searchQuery,
	}
	m.filtered = m.filtered[:0]
	for i, e := range m.entries {
		if f.Match(e) {
			m.filtered = append(m.filtered, i)
		}
	}

	for pid := range m.marked {
		if !m.hasPID(pid) {
			delete(m.marked, pid)
		}
	}

	if m.cursor >= len(m.filtered) {
		m.cursor = max(0, len(m.filtered)-1)
	}
	m.adjustScroll()
}

func (m *Model) hasPID(pid int) bool {
	for _, e := range m.entries {
		if e.PID == pid {
			return true
		}
	}
	return false
}

func (m *Model) ensureCursorVisible() {
	visible := m.visibleRows()
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+visible {
		m.scrollOffset = m.cursor - visible + 1
	}
}

func (m *Model) adjustScroll() {
	m.ensureCursorVisible()
	maxOffset := max(0, len(m.filtered)-m.visibleRows())
	if m.scrollOffset > maxOffset {
		m.scrollOffset = maxOffset
	}
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
}

func (m Model) visibleRows() int {
	// Reserve lines for: header (2), column headers (1), two group
	// headers (4), scroll indicator (1), search (1), help (2) = 11.
	const reserved = 11
	return max(1, m.height-reserved)
}

// View renders the TUI.
func (m Model) View() string {
	switch m.currentView {
	case viewInfo:
		return m.viewInfo()
	case viewKillConfirm:
		return m.viewKillConfirm()
	case viewKillResult:
		return m.viewKillResult()
	case viewFilter:
		return m.viewFilter()
	default:
		return m.viewTable()
	}
}

func (m Model) viewTable() string {
	var b strings.Builder

	// Header bar.
	title := titleStyle.Render(fmt.Sprintf("devkill %s", m.opts.Version))
	dev := 0
	for _, e := range m.entries {
		if e.IsDevProcess {
			dev++
		}
	}
	stats := dimStyle.Render(fmt.Sprintf("Dev servers: %d  Total: %d", dev, len(m.entries)))
	if !m.lastScan.IsZero() {
		stats += dimStyle.Render("  " + m.lastScan.Format("15:04:05"))
	}
	var flags []string
	if m.devOnly {
		flags = append(flags, "[DEV ONLY]")
	}
	if m.paused {
		flags = append(flags, "[PAUSED]")
	}
	if len(m.marked) > 0 {
		flags = append(flags, fmt.Sprintf("[%d MARKED]", len(m.marked)))
	}
	indicator := ""
	if len(flags) > 0 {
		indicator = warnStyle.Render("  " + strings.Join(flags, " "))
	}
	b.WriteString(title + "  " + stats + indicator + "\n")

	if m.scanning && len(m.entries) == 0 {
		b.WriteString("\n" + m.spinner.View() + " Scanning ports...\n")
		return b.String()
	}

	// Column headers.
	sortIndicator := func(field port.SortField) string {
		if m.sortBy == field {
			return " ^"
		}
		return ""
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf(
		"    %-7s %-5s %-15s %-7s %-16s %s",
		"PORT"+sortIndicator(port.SortByPort),
		"PROTO",
		"ADDRESS",
		"PID"+sortIndicator(port.SortByPID),
		"PROCESS"+sortIndicator(port.SortByProcess),
		"PATH",
	)) + "\n")

	if len(m.filtered) == 0 {
		if m.searchQuery != "" {
			b.WriteString("\n  No results matching: " + m.searchQuery + "\n")
		} else {
			b.WriteString("\n  No listening ports found.\n")
		}
	} else {
		viewportRows := m.visibleRows()
		end := min(m.scrollOffset+viewportRows, len(m.filtered))

		group := ""
		for i := m.scrollOffset; i < end; i++ {
			e := m.entries[m.filtered[i]]

			if g := e.GroupName(); g != group {
				group = g
				b.WriteString(groupStyle.Render(fmt.Sprintf("%s (%d)", g, m.groupCount(g))) + "\n")
			}

			cursor := "  "
			if i == m.cursor {
				cursor = cursorStyle.Render("> ")
			}
			mark := "  "
			if m.marked[e.PID] {
				mark = markStyle.Render("* ")
			}

			maxPath := max(10, m.width-60)
			style := rowStyle(e)
			b.WriteString(cursor + mark +
				style.Render(fmt.Sprintf("%-7d", e.Port)) + " " +
				protocolStyle(e.Protocol).Render(fmt.Sprintf("%-5s", e.Protocol)) + " " +
				style.Render(fmt.Sprintf("%-15s %-7d %-16s %s",
					truncate(e.LocalAddress, 15),
					e.PID,
					truncate(orDash(e.ProcessName), 16),
					truncateLeft(e.DisplayPath(), maxPath),
				)) + "\n")
		}

		// Scroll indicator.
		if len(m.filtered) > viewportRows {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  [%d-%d of %d]",
				m.scrollOffset+1, end, len(m.filtered))) + "\n")
		}
	}

	// Search indicator.
	if m.searchQuery != "" {
		b.WriteString("\n" + dimStyle.Render(fmt.Sprintf("  filter: %s", m.searchQuery)))
	}

	// Help bar.
	b.WriteString(helpStyle.Render("j/k:navigate  space:mark  K:kill  i:info  d:dev only  r:refresh  s:sort  p:pause  /:search  q:quit") + "\n")

	return b.String()
}

func (m Model) groupCount(group string) int {
	n := 0
	for _, idx := range m.filtered {
		if m.entries[idx].GroupName() == group {
			n++
		}
	}
	return n
}

func (m Model) viewInfo() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("devkill -- Port Info") + "\n\n")

	if m.infoEntry == nil {
		b.WriteString("  No port selected.\n")
		b.WriteString(helpStyle.Render("\nesc back | q quit") + "\n")
		return b.String()
	}

	e := m.infoEntry
	row := func(label, value string) {
		if value != "" {
			b.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
		}
	}
	row("Port:", fmt.Sprintf("%d/%s on %s", e.Port, e.Protocol, e.LocalAddress))
	row("State:", string(e.State))
	row("Process:", fmt.Sprintf("%s (PID %d)", orDash(e.ProcessName), e.PID))
	row("Group:", e.GroupName())
	row("Executable:", e.ProcessPath)
	row("Directory:", e.WorkingDirectory)

	if m.infoErr != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("\n  Details unavailable: %v", m.infoErr)) + "\n")
	}

	if info := m.infoData; info != nil {
		row("Command:", info.Command)
		row("User:", info.User)
		if !info.StartTime.IsZero() {
			ago := time.Since(info.StartTime).Truncate(time.Second)
			row("Started:", fmt.Sprintf("%s ago (%s)", formatDuration(ago), info.StartTime.Format("2006-01-02 15:04:05")))
		}
		row("CPU:", fmt.Sprintf("%.1f%%", info.CPUPercent))
		row("Memory:", formatBytes(info.MemRSS)+" (RSS)")
		if info.PPID > 0 {
			row("Parent PID:", strconv.Itoa(info.PPID))
		}
		if len(info.Children) > 0 {
			childStrs := make([]string, len(info.Children))
			for i, c := range info.Children {
				childStrs[i] = strconv.Itoa(c)
			}
			row("Children:", strings.Join(childStrs, ", "))
		}
	}

	b.WriteString(helpStyle.Render("\nK:kill  esc:back  q:quit") + "\n")
	return b.String()
}

func (m Model) viewKillConfirm() string {
	var b strings.Builder

	b.WriteString(dangerStyle.Render(" KILL PROCESS ") + "\n\n")

	if len(m.killQueue) == 0 {
		b.WriteString("  No process selected.\n")
		b.WriteString(helpStyle.Render("\nesc cancel | q quit") + "\n")
		return b.String()
	}

	if len(m.killQueue) == 1 {
		b.WriteString(fmt.Sprintf("  Kill %s and its child processes?\n\n", describe(m.killQueue[0])))
	} else {
		b.WriteString(fmt.Sprintf("  Kill %d processes and their children?\n\n", len(m.killQueue)))
		for _, t := range m.killQueue {
			b.WriteString("    " + describe(t) + "\n")
		}
		b.WriteString("\n")
	}

	for _, t := range m.killQueue {
		if !m.isDev(t.pid) {
			b.WriteString(warnStyle.Render("  WARNING: not every selected process is a dev server.") + "\n\n")
			break
		}
	}

	b.WriteString(helpStyle.Render("y:kill  n/esc:cancel") + "\n")
	return b.String()
}

func (m Model) isDev(pid int) bool {
	for _, e := range m.entries {
		if e.PID == pid {
			return e.IsDevProcess
		}
	}
	return false
}

func (m Model) viewKillResult() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("devkill -- Kill Result") + "\n\n")

	var failed []string
	for _, o := range m.killOutcomes {
		switch {
		case o.skipped:
			b.WriteString(warnStyle.Render(fmt.Sprintf("  Skipped %s: PID changed since scan", describe(o.killTarget))) + "\n")
		case o.killed:
			b.WriteString(successStyle.Render(fmt.Sprintf("  Killed %s", describe(o.killTarget))) + "\n")
		default:
			b.WriteString(errorStyle.Render(fmt.Sprintf("  Failed: %s", describe(o.killTarget))) + "\n")
			failed = append(failed, strconv.Itoa(o.pid))
		}
	}
	if len(failed) > 0 {
		b.WriteString("\n" + errorStyle.Render("  Could not kill PID(s) "+strings.Join(failed, ", ")+"; try an elevated terminal.") + "\n")
	}

	b.WriteString(helpStyle.Render("\nenter/esc:back  q:quit") + "\n")
	return b.String()
}

func (m Model) viewFilter() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("devkill -- Search") + "\n\n")
	b.WriteString("  Type to filter: " + m.searchQuery + "_\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d match(es)", len(m.filtered))) + "\n")
	b.WriteString(helpStyle.Render("\nenter:apply  esc:cancel") + "\n")

	return b.String()
}

func describe(t killTarget) string {
	s := fmt.Sprintf("%s (PID %d)", orDash(t.process), t.pid)
	if len(t.ports) > 0 {
		strs := make([]string, len(t.ports))
		for i, p := range t.ports {
			strs[i] = strconv.Itoa(p)
		}
		s += " on port " + strings.Join(strs, ", ")
	}
	return s
}

// truncate truncates a string to max length, appending "..." if truncated.
func truncate(s string, maxLen int) string {
	if maxLen < 4 {
		maxLen = 4
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// truncateLeft keeps the end of s, which is the informative part of a path.
func truncateLeft(s string, maxLen int) string {
	if maxLen < 4 {
		maxLen = 4
	}
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen+3:]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// formatBytes formats bytes into a human-readable string.
func formatBytes(b int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	hours := int(d.Hours())
	if hours < 24 {
		return fmt.Sprintf("%dh %dm", hours, int(d.Minutes())%60)
	}
	days := hours / 24
	return fmt.Sprintf("%dd %dh", days, hours%24)
}
