//go:build windows

package port

import (
	"iter"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/lu-zhengda/devkill/internal/logging"
)

var (
	iphlpapi                = windows.NewLazySystemDLL("iphlpapi.dll")
	procGetExtendedTcpTable = iphlpapi.NewProc("GetExtendedTcpTable")
	procGetExtendedUdpTable = iphlpapi.NewProc("GetExtendedUdpTable")
)

const (
	afInet              = 2
	afInet6             = 23
	tcpTableOwnerPidAll = 5
	udpTableOwnerPid    = 1
)

// tableSource reads the iphlpapi extended TCP/UDP tables.
type tableSource struct{}

func systemSource() RowSource {
	return tableSource{}
}

func (tableSource) Rows(l Layout) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		buf, err := fillTable(extendedTableQuery(l))
		if err != nil {
			log.Debug("connection table unavailable", logging.KeyTable, l.Name, logging.KeyError, err)
			return
		}
		for row := range Decode(buf, l) {
			if !yield(row) {
				return
			}
		}
	}
}

// extendedTableQuery binds GetExtendedTcpTable or GetExtendedUdpTable to
// the family and owner-pid table class of l.
func extendedTableQuery(l Layout) tableQuery {
	proc, class := procGetExtendedTcpTable, uintptr(tcpTableOwnerPidAll)
	if l.Protocol == UDP {
		proc, class = procGetExtendedUdpTable, uintptr(udpTableOwnerPid)
	}
	af := uintptr(afInet)
	if l.Family == IPv6 {
		af = afInet6
	}

	return func(buf []byte, size *uint32) error {
		var p uintptr
		if len(buf) > 0 {
			p = uintptr(unsafe.Pointer(&buf[0]))
		}
		r0, _, _ := proc.Call(p, uintptr(unsafe.Pointer(size)), 0, af, class, 0)
		switch errno := syscall.Errno(r0); errno {
		case 0:
			return nil
		case windows.ERROR_INSUFFICIENT_BUFFER:
			return errInsufficientBuffer
		default:
			return errno
		}
	}
}
