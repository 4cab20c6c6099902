package snapshot

import (
	"sort"
	"time"

	"github.com/lu-zhengda/devkill/internal/port"
)

// EventType describes what happened to a port.
type EventType string

const (
	EventOpen  EventType = "open"
	EventClose EventType = "close"
)

// Event represents a single port open or close event.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Port      int       `json:"port"`
	Protocol  string    `json:"protocol"`
	Address   string    `json:"address"`
	PID       int       `json:"pid"`
	Process   string    `json:"process"`
}

// Snapshot is the set of entries seen by one scan, keyed by port.Key.
// Snapshots live in memory only.
type Snapshot struct {
	Timestamp time.Time
	entries   map[port.Key]port.PortEntry
}

// Of builds a snapshot from a scan result.
func Of(entries []port.PortEntry, ts time.Time) *Snapshot {
	s := &Snapshot{
		Timestamp: ts,
		entries:   make(map[port.Key]port.PortEntry, len(entries)),
	}
	for _, e := range entries {
		if _, dup := s.entries[e.Key()]; !dup {
			s.entries[e.Key()] = e
		}
	}
	return s
}

// Len returns the number of distinct entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Contains reports whether the snapshot holds an entry with key k.
func (s *Snapshot) Contains(k port.Key) bool {
	if s == nil {
		return false
	}
	_, ok := s.entries[k]
	return ok
}

// Entries returns the entries of s in no particular order.
func (s *Snapshot) Entries() []port.PortEntry {
	if s == nil {
		return nil
	}
	out := make([]port.PortEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

// Equal reports whether a and b hold the same entries with the same
// metadata. Timestamps are ignored.
func Equal(a, b *Snapshot) bool {
	if a.Len() != b.Len() {
		return false
	}
	if a.Len() == 0 {
		return true
	}
	for k, ea := range a.entries {
		eb, ok := b.entries[k]
		if !ok || ea != eb {
			return false
		}
	}
	return true
}

// Diff compares a previous snapshot to the current one and returns events
// for entries that appeared or went away. A nil prev reports every current
// entry as opened. Events are sorted by port, then type.
func Diff(prev, cur *Snapshot) []Event {
	var ts time.Time
	if cur != nil {
		ts = cur.Timestamp
	}

	var events []Event
	if cur != nil {
		for k, e := range cur.entries {
			if !prev.Contains(k) {
				events = append(events, eventFor(EventOpen, e, ts))
			}
		}
	}
	if prev != nil {
		for k, e := range prev.entries {
			if !cur.Contains(k) {
				events = append(events, eventFor(EventClose, e, ts))
			}
		}
	}

	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Port != b.Port {
			return a.Port < b.Port
		}
		if a.Type != b.Type {
			return a.Type > b.Type
		}
		if a.Protocol != b.Protocol {
			return a.Protocol < b.Protocol
		}
		if a.PID != b.PID {
			return a.PID < b.PID
		}
		return a.Address < b.Address
	})
	return events
}

// Opened returns only the open events of Diff(prev, cur).
func Opened(prev, cur *Snapshot) []Event {
	var out []Event
	for _, ev := range Diff(prev, cur) {
		if ev.Type == EventOpen {
			out = append(out, ev)
		}
	}
	return out
}

func eventFor(t EventType, e port.PortEntry, ts time.Time) Event {
	return Event{
		Timestamp: ts,
		Type:      t,
		Port:      e.Port,
		Protocol:  string(e.Protocol),
		Address:   e.LocalAddress,
		PID:       e.PID,
		Process:   e.ProcessName,
	}
}
