package port

// wildcardAddrs are the unspecified and loopback literals of both families.
// A dual-stack listener shows up once per family on one of these.
var wildcardAddrs = map[string]struct{}{
	"0.0.0.0":   {},
	"::":        {},
	"127.0.0.1": {},
	"::1":       {},
}

type dedupeKey struct {
	port  int
	pid   int
	proto Protocol
}

// Dedupe drops every wildcard-bound entry whose (port, pid, protocol) was
// already seen on a wildcard address earlier in entries. Entries bound to a
// specific address are always kept. Order is preserved, so the IPv4 entry
// wins when IPv4 tables are read first.
func Dedupe(entries []PortEntry) []PortEntry {
	seen := make(map[dedupeKey]struct{})
	out := make([]PortEntry, 0, len(entries))
	for _, e := range entries {
		if _, wild := wildcardAddrs[e.LocalAddress]; wild {
			k := dedupeKey{port: e.Port, pid: e.PID, proto: e.Protocol}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
		}
		out = append(out, e)
	}
	return out
}
