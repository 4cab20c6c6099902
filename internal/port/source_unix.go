//go:build unix

package port

import (
	"iter"

	"github.com/shirou/gopsutil/v3/net"

	"github.com/lu-zhengda/devkill/internal/logging"
)

// connSource reads sockets through gopsutil where the iphlpapi tables do
// not exist. Layout.Name doubles as the gopsutil connection kind.
type connSource struct{}

func systemSource() RowSource {
	return connSource{}
}

func (connSource) Rows(l Layout) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		conns, err := net.Connections(l.Name)
		if err != nil {
			log.Debug("connection table unavailable", logging.KeyTable, l.Name, logging.KeyError, err)
			return
		}
		for _, c := range conns {
			row, ok := rowFromConn(c, l)
			if !ok {
				continue
			}
			if !yield(row) {
				return
			}
		}
	}
}

func rowFromConn(c net.ConnectionStat, l Layout) (Row, bool) {
	if l.Protocol == TCP && c.Status != string(StateListen) {
		return Row{}, false
	}
	return Row{
		Port:         int(c.Laddr.Port & 0xFFFF),
		PID:          int(c.Pid),
		LocalAddress: c.Laddr.IP,
		Protocol:     l.Protocol,
		State:        stateFor(l.Protocol),
	}, true
}
