package port

import (
	"iter"

	"github.com/lu-zhengda/devkill/internal/logging"
	"github.com/lu-zhengda/devkill/internal/process"
)

var log = logging.L("port")

// Lister discovers listening ports and their processes.
type Lister interface {
	Scan() []PortEntry
}

// RowSource yields the decoded rows of one connection table. A table that
// cannot be read yields nothing.
type RowSource interface {
	Rows(l Layout) iter.Seq[Row]
}

// Scanner reads every table in ScanOrder, resolves owners, classifies them
// and deduplicates dual-stack wildcard entries. Calls must not overlap.
type Scanner struct {
	source     RowSource
	inspector  process.Inspector
	classifier *Classifier
}

// NewScanner creates a scanner over the given collaborators. A nil
// classifier means DefaultClassifier.
func NewScanner(source RowSource, inspector process.Inspector, classifier *Classifier) *Scanner {
	if classifier == nil {
		classifier = DefaultClassifier
	}
	return &Scanner{source: source, inspector: inspector, classifier: classifier}
}

// NewSystemScanner creates a scanner backed by the OS connection tables.
func NewSystemScanner(classifier *Classifier) *Scanner {
	return NewScanner(systemSource(), process.NewSystemInspector(), classifier)
}

// Scan returns all TCP listeners plus the UDP sockets owned by dev
// processes, in table order. UDP sockets are too numerous to show
// unfiltered and carry no listening state, so classification is their only
// filter. Scan never fails; unreadable tables or processes just contribute
// less.
func (s *Scanner) Scan() []PortEntry {
	cache := process.NewCache(s.inspector)

	var entries []PortEntry
	for _, l := range ScanOrder {
		n := 0
		for row := range s.source.Rows(l) {
			id := cache.Lookup(row.PID)
			dev := s.classifier.IsDev(id.Name)
			if row.Protocol == UDP && !dev {
				continue
			}
			entries = append(entries, PortEntry{
				Port:             row.Port,
				PID:              row.PID,
				ProcessName:      id.Name,
				ProcessPath:      id.Path,
				WorkingDirectory: id.WorkingDir,
				Protocol:         row.Protocol,
				LocalAddress:     row.LocalAddress,
				State:            row.State,
				IsDevProcess:     dev,
			})
			n++
		}
		log.Debug("table scanned", logging.KeyTable, l.Name, "entries", n)
	}

	return Dedupe(entries)
}

// FindByPort returns the entries of a scan bound to port.
func FindByPort(entries []PortEntry, port int) []PortEntry {
	var matched []PortEntry
	for _, e := range entries {
		if e.Port == port {
			matched = append(matched, e)
		}
	}
	return matched
}
