package port

import (
	"sort"
	"strconv"
	"strings"
)

// SortField defines what column entries are ordered by within a group.
type SortField int

const (
	SortByPort SortField = iota
	SortByPID
	SortByProcess
)

// Next cycles to the following sort field.
func (f SortField) Next() SortField {
	return (f + 1) % 3
}

// Sort orders entries Dev Servers first, then by field. Ties fall back to
// the identity key so the order is stable across refreshes.
func Sort(entries []PortEntry, field SortField) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.IsDevProcess != b.IsDevProcess {
			return a.IsDevProcess
		}
		switch field {
		case SortByPID:
			if a.PID != b.PID {
				return a.PID < b.PID
			}
		case SortByProcess:
			an, bn := strings.ToLower(a.ProcessName), strings.ToLower(b.ProcessName)
			if an != bn {
				return an < bn
			}
		}
		if a.Port != b.Port {
			return a.Port < b.Port
		}
		if a.PID != b.PID {
			return a.PID < b.PID
		}
		if a.Protocol != b.Protocol {
			return a.Protocol < b.Protocol
		}
		return a.LocalAddress < b.LocalAddress
	})
}

// Filter selects the entries shown by the CLI and the TUI. The zero value
// matches everything.
type Filter struct {
	Port     int      // exact port, 0 for any
	Process  string   // substring of name or path, case-insensitive
	Protocol Protocol // TCP, UDP or empty for both
	DevOnly  bool
	Exclude  []string // process names hidden entirely
	Query    string   // free text over port, pid, name, path and protocol
}

// Match reports whether e passes every criterion of f.
func (f Filter) Match(e PortEntry) bool {
	if f.Port > 0 && e.Port != f.Port {
		return false
	}
	if f.Protocol != "" && e.Protocol != f.Protocol {
		return false
	}
	if f.DevOnly && !e.IsDevProcess {
		return false
	}
	for _, ex := range f.Exclude {
		if ex != "" && strings.EqualFold(stripExe(strings.ToLower(ex)), stripExe(strings.ToLower(e.ProcessName))) {
			return false
		}
	}
	if f.Process != "" && !containsFold(e.ProcessName, f.Process) && !containsFold(e.ProcessPath, f.Process) {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		match := strings.Contains(strconv.Itoa(e.Port), q) ||
			strings.Contains(strconv.Itoa(e.PID), q) ||
			strings.Contains(strings.ToLower(e.ProcessName), q) ||
			strings.Contains(strings.ToLower(e.DisplayPath()), q) ||
			strings.Contains(strings.ToLower(string(e.Protocol)), q)
		if !match {
			return false
		}
	}
	return true
}

// Apply returns the entries matching f, preserving order.
func (f Filter) Apply(entries []PortEntry) []PortEntry {
	var out []PortEntry
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// ParseProtocol maps "tcp"/"udp" in any case to a Protocol. An empty
// string means both.
func ParseProtocol(s string) (Protocol, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return "", true
	case string(TCP):
		return TCP, true
	case string(UDP):
		return UDP, true
	}
	return "", false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
