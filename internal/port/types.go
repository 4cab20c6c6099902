package port

import "fmt"

// Protocol represents a network protocol.
type Protocol string

const (
	TCP Protocol = "TCP"
	UDP Protocol = "UDP"
)

// State is the socket state reported for an entry. TCP entries are always
// StateListen, UDP entries are always StateNone.
type State string

const (
	StateListen State = "LISTEN"
	StateNone   State = ""
)

// Group names used to split entries for presentation.
const (
	GroupDevServers = "Dev Servers"
	GroupOtherPorts = "Other Ports"
)

// PortEntry represents a local socket and the process that owns it. Any of
// the process metadata strings may be empty when the process exited or
// denied access.
type PortEntry struct {
	Port             int
	PID              int
	ProcessName      string
	ProcessPath      string
	WorkingDirectory string
	Protocol         Protocol
	LocalAddress     string
	State            State
	IsDevProcess     bool
}

// Key identifies an entry across scans.
type Key struct {
	Port         int
	PID          int
	Protocol     Protocol
	LocalAddress string
}

// Key returns the identity key of the entry.
func (e PortEntry) Key() Key {
	return Key{Port: e.Port, PID: e.PID, Protocol: e.Protocol, LocalAddress: e.LocalAddress}
}

// GroupName returns "Dev Servers" for dev processes and "Other Ports" otherwise.
func (e PortEntry) GroupName() string {
	if e.IsDevProcess {
		return GroupDevServers
	}
	return GroupOtherPorts
}

// DisplayPath prefers the working directory and falls back to the executable path.
func (e PortEntry) DisplayPath() string {
	if e.WorkingDirectory != "" {
		return e.WorkingDirectory
	}
	return e.ProcessPath
}

// String returns a human-readable representation of the entry.
func (e PortEntry) String() string {
	return fmt.Sprintf("%d/%s (PID %d, %s)", e.Port, e.Protocol, e.PID, e.ProcessName)
}

func stateFor(proto Protocol) State {
	if proto == TCP {
		return StateListen
	}
	return StateNone
}
