package port

import (
	"encoding/binary"
	"slices"
	"testing"
)

// netPort encodes port the way owner-pid rows store it.
func netPort(port int) uint32 {
	return uint32(port>>8) | uint32(port&0xFF)<<8
}

type testRow struct {
	state uint32
	addr  []byte
	port  int
	pid   uint32
}

// buildTable lays out rows with the header and offsets of l.
func buildTable(l Layout, rows ...testRow) []byte {
	buf := make([]byte, tableHeaderSize+len(rows)*l.RowSize)
	binary.LittleEndian.PutUint32(buf, uint32(len(rows)))
	for i, r := range rows {
		b := buf[tableHeaderSize+i*l.RowSize:]
		if l.StateOff >= 0 {
			binary.LittleEndian.PutUint32(b[l.StateOff:], r.state)
		}
		copy(b[l.AddrOff:], r.addr)
		binary.LittleEndian.PutUint32(b[l.PortOff:], netPort(r.port))
		binary.LittleEndian.PutUint32(b[l.PIDOff:], r.pid)
	}
	return buf
}

func TestNetworkToHostPort(t *testing.T) {
	tests := []struct {
		raw  uint32
		want int
	}{
		{80 << 8, 80},
		{0xBB<<8 | 0x01, 443},
		{0xB8<<8 | 0x0B, 3000},
		{0x90<<8 | 0x1F, 8080},
		{0x00<<8 | 0xC0, 49152},
		{0xFF<<8 | 0xFF, 65535},
		// The high word is garbage and must be ignored.
		{0xDEAD0000 | 0x90<<8 | 0x1F, 8080},
	}
	for _, tt := range tests {
		got := NetworkToHostPort(tt.raw)
		if got != tt.want {
			t.Errorf("NetworkToHostPort(%#x) = %d, want %d", tt.raw, got, tt.want)
		}
		if got < 0 {
			t.Errorf("NetworkToHostPort(%#x) sign-extended to %d", tt.raw, got)
		}
	}
}

func TestNetworkToHostPort_RoundTrip(t *testing.T) {
	for _, p := range []int{80, 443, 3000, 8080, 32767, 32768, 49152, 65535} {
		if got := NetworkToHostPort(netPort(p)); got != p {
			t.Errorf("port %d decoded as %d", p, got)
		}
	}
}

func TestDecode_TCP4(t *testing.T) {
	buf := buildTable(LayoutTCP4,
		testRow{state: tcpStateListen, addr: []byte{0, 0, 0, 0}, port: 3000, pid: 100},
		testRow{state: 5, addr: []byte{10, 0, 0, 2}, port: 51000, pid: 101}, // ESTABLISHED
		testRow{state: tcpStateListen, addr: []byte{127, 0, 0, 1}, port: 49152, pid: 102},
	)

	rows := slices.Collect(Decode(buf, LayoutTCP4))
	if len(rows) != 2 {
		t.Fatalf("expected 2 listening rows, got %d: %+v", len(rows), rows)
	}

	want := []Row{
		{Port: 3000, PID: 100, LocalAddress: "0.0.0.0", Protocol: TCP, State: StateListen},
		{Port: 49152, PID: 102, LocalAddress: "127.0.0.1", Protocol: TCP, State: StateListen},
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row[%d] = %+v, want %+v", i, rows[i], want[i])
		}
	}
}

func TestDecode_TCP6(t *testing.T) {
	loopback := make([]byte, 16)
	loopback[15] = 1
	buf := buildTable(LayoutTCP6,
		testRow{state: tcpStateListen, addr: make([]byte, 16), port: 8080, pid: 7},
		testRow{state: 11, addr: loopback, port: 8081, pid: 7}, // TIME_WAIT
		testRow{state: tcpStateListen, addr: loopback, port: 65535, pid: 8},
	)

	rows := slices.Collect(Decode(buf, LayoutTCP6))
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].LocalAddress != "::" || rows[0].Port != 8080 || rows[0].PID != 7 {
		t.Errorf("row[0] = %+v", rows[0])
	}
	if rows[1].LocalAddress != "::1" || rows[1].Port != 65535 || rows[1].PID != 8 {
		t.Errorf("row[1] = %+v", rows[1])
	}
}

func TestDecode_UDPKeepsAllRows(t *testing.T) {
	buf := buildTable(LayoutUDP4,
		testRow{addr: []byte{0, 0, 0, 0}, port: 5353, pid: 1},
		testRow{addr: []byte{192, 168, 1, 5}, port: 137, pid: 4},
	)
	rows := slices.Collect(Decode(buf, LayoutUDP4))
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r.Protocol != UDP || r.State != StateNone {
			t.Errorf("UDP row has protocol=%q state=%q", r.Protocol, r.State)
		}
	}
	if rows[1].LocalAddress != "192.168.1.5" {
		t.Errorf("address: got %q, want 192.168.1.5", rows[1].LocalAddress)
	}

	buf6 := buildTable(LayoutUDP6, testRow{addr: make([]byte, 16), port: 5173, pid: 9})
	rows6 := slices.Collect(Decode(buf6, LayoutUDP6))
	if len(rows6) != 1 || rows6[0].LocalAddress != "::" || rows6[0].Port != 5173 {
		t.Errorf("udp6 rows = %+v", rows6)
	}
}

func TestDecode_TruncatedBuffer(t *testing.T) {
	buf := buildTable(LayoutUDP4,
		testRow{addr: []byte{0, 0, 0, 0}, port: 1, pid: 1},
		testRow{addr: []byte{0, 0, 0, 0}, port: 2, pid: 2},
	)
	// Claim three rows, cut the second one short.
	binary.LittleEndian.PutUint32(buf, 3)
	buf = buf[:len(buf)-1]

	rows := slices.Collect(Decode(buf, LayoutUDP4))
	if len(rows) != 1 || rows[0].Port != 1 {
		t.Errorf("expected only the complete row, got %+v", rows)
	}
}

func TestDecode_EmptyInput(t *testing.T) {
	if rows := slices.Collect(Decode(nil, LayoutTCP4)); len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
	if rows := slices.Collect(Decode([]byte{0, 0, 0, 0}, LayoutTCP4)); len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestDecode_StopsEarly(t *testing.T) {
	buf := buildTable(LayoutUDP4,
		testRow{addr: []byte{0, 0, 0, 0}, port: 1, pid: 1},
		testRow{addr: []byte{0, 0, 0, 0}, port: 2, pid: 2},
		testRow{addr: []byte{0, 0, 0, 0}, port: 3, pid: 3},
	)
	n := 0
	for range Decode(buf, LayoutUDP4) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("expected to stop after 2 rows, got %d", n)
	}
}

func TestScanOrder_IPv4First(t *testing.T) {
	names := make([]string, len(ScanOrder))
	for i, l := range ScanOrder {
		names[i] = l.Name
	}
	want := []string{"tcp4", "tcp6", "udp4", "udp6"}
	if !slices.Equal(names, want) {
		t.Errorf("ScanOrder = %v, want %v", names, want)
	}
}
