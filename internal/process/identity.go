package process

import (
	"math"
	"strings"

	"github.com/lu-zhengda/devkill/internal/logging"
)

var log = logging.L("process")

// Identity is what a scan records about the owner of a socket. Empty
// fields are valid: the process may have exited or denied access.
type Identity struct {
	Name       string
	Path       string
	WorkingDir string
}

// Inspector reads process metadata. Implementations never fail; anything
// they cannot read comes back empty.
type Inspector interface {
	// Identity returns the image name and the executable path of pid.
	Identity(pid int) (name, path string)

	// WorkingDir returns the current working directory of pid.
	WorkingDir(pid int) string
}

// Cache resolves identities through an Inspector, querying each pid at most
// once. A Cache must not outlive a single scan because pids get recycled.
// It is not safe for concurrent use.
type Cache struct {
	inspector Inspector
	entries   map[int]Identity
}

// NewCache returns an empty cache over inspector.
func NewCache(inspector Inspector) *Cache {
	return &Cache{inspector: inspector, entries: make(map[int]Identity)}
}

// Lookup returns the identity of pid, consulting the inspector on a miss.
// Empty results are cached too.
func (c *Cache) Lookup(pid int) Identity {
	if id, ok := c.entries[pid]; ok {
		return id
	}

	name, path := c.inspector.Identity(pid)
	id := Identity{
		Name:       name,
		Path:       path,
		WorkingDir: c.inspector.WorkingDir(pid),
	}
	if name == "" {
		log.Debug("process identity unavailable", logging.KeyPID, pid)
	}

	c.entries[pid] = id
	return id
}

// Len returns the number of cached pids.
func (c *Cache) Len() int {
	return len(c.entries)
}

// nameFromPath returns the base name of an executable path without a
// trailing ".exe". Both separators are accepted.
func nameFromPath(path string) string {
	if i := strings.LastIndexAny(path, `\/`); i >= 0 {
		path = path[i+1:]
	}
	return trimExe(path)
}

func trimExe(name string) string {
	if len(name) > 4 && strings.EqualFold(name[len(name)-4:], ".exe") {
		return name[:len(name)-4]
	}
	return name
}

// inPIDRange reports whether pid fits the platform's process id type.
// Larger values would wrap when narrowed and name an unrelated process.
func inPIDRange(pid int) bool {
	return pid >= 0 && uint64(pid) <= maxPID
}

// ValidPID reports whether pid can name a process on this platform.
func ValidPID(pid int) bool {
	return pid > 0 && inPIDRange(pid)
}

// pid32 narrows pid for gopsutil, which models pids as int32.
func pid32(pid int) (int32, bool) {
	if pid < 0 || pid > math.MaxInt32 {
		return 0, false
	}
	return int32(pid), true
}
