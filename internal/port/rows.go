package port

import (
	"encoding/binary"
	"iter"
	"math/bits"
	"net/netip"
)

// Family is an IP address family.
type Family int

const (
	IPv4 Family = 4
	IPv6 Family = 6
)

// tcpStateListen is MIB_TCP_STATE_LISTEN.
const tcpStateListen = 2

// tableHeaderSize is the leading row-count DWORD of every owner-pid table.
const tableHeaderSize = 4

// Layout describes one fixed-width owner-pid row by the byte offsets of the
// fields we read. StateOff is -1 for rows without a state field.
type Layout struct {
	Name     string
	Protocol Protocol
	Family   Family
	RowSize  int
	AddrOff  int
	PortOff  int
	PIDOff   int
	StateOff int
}

// Row layouts of MIB_{TCP,TCP6,UDP,UDP6}ROW_OWNER_PID.
var (
	LayoutTCP4 = Layout{Name: "tcp4", Protocol: TCP, Family: IPv4, RowSize: 24, StateOff: 0, AddrOff: 4, PortOff: 8, PIDOff: 20}
	LayoutTCP6 = Layout{Name: "tcp6", Protocol: TCP, Family: IPv6, RowSize: 56, AddrOff: 0, PortOff: 20, StateOff: 48, PIDOff: 52}
	LayoutUDP4 = Layout{Name: "udp4", Protocol: UDP, Family: IPv4, RowSize: 12, StateOff: -1, AddrOff: 0, PortOff: 4, PIDOff: 8}
	LayoutUDP6 = Layout{Name: "udp6", Protocol: UDP, Family: IPv6, RowSize: 28, StateOff: -1, AddrOff: 0, PortOff: 20, PIDOff: 24}
)

// ScanOrder is the order tables are read in. IPv4 precedes IPv6 for each
// protocol so Dedupe keeps the IPv4 entry.
var ScanOrder = []Layout{LayoutTCP4, LayoutTCP6, LayoutUDP4, LayoutUDP6}

// Row is one decoded socket. TCP rows only exist for listening sockets.
type Row struct {
	Port         int
	PID          int
	LocalAddress string
	Protocol     Protocol
	State        State
}

// Decode yields the rows of a filled table buffer. The row count in the
// header is trusted; a trailing fragment shorter than a full row is never
// decoded. TCP rows not in the listening state are skipped.
func Decode(buf []byte, l Layout) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		if len(buf) < tableHeaderSize || l.RowSize <= 0 {
			return
		}
		count := int(binary.LittleEndian.Uint32(buf))
		if fit := (len(buf) - tableHeaderSize) / l.RowSize; count > fit {
			count = fit
		}
		for i := 0; i < count; i++ {
			off := tableHeaderSize + i*l.RowSize
			row, ok := decodeRow(buf[off:off+l.RowSize], l)
			if !ok {
				continue
			}
			if !yield(row) {
				return
			}
		}
	}
}

func decodeRow(b []byte, l Layout) (Row, bool) {
	if l.StateOff >= 0 && binary.LittleEndian.Uint32(b[l.StateOff:]) != tcpStateListen {
		return Row{}, false
	}
	return Row{
		Port:         NetworkToHostPort(binary.LittleEndian.Uint32(b[l.PortOff:])),
		PID:          int(binary.LittleEndian.Uint32(b[l.PIDOff:])),
		LocalAddress: decodeAddr(b[l.AddrOff:], l.Family),
		Protocol:     l.Protocol,
		State:        stateFor(l.Protocol),
	}, true
}

// decodeAddr reads the address bytes as stored, which is network order.
func decodeAddr(b []byte, fam Family) string {
	if fam == IPv4 {
		return netip.AddrFrom4([4]byte(b[:4])).String()
	}
	return netip.AddrFrom16([16]byte(b[:16])).String()
}

// NetworkToHostPort converts the DWORD port field of an owner-pid row. Only
// the low 16 bits are used and they hold the port in network byte order.
// The result is always in 0..65535.
func NetworkToHostPort(raw uint32) int {
	return int(bits.ReverseBytes16(uint16(raw & 0xFFFF)))
}
