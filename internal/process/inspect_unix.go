//go:build unix

package process

import (
	"github.com/shirou/gopsutil/v3/process"
)

// systemInspector reads process metadata through gopsutil.
type systemInspector struct{}

// NewSystemInspector returns the Inspector for the running OS.
func NewSystemInspector() Inspector {
	return systemInspector{}
}

func (systemInspector) Identity(pid int) (name, path string) {
	id, ok := pid32(pid)
	if !ok {
		return "", ""
	}
	p, err := process.NewProcess(id)
	if err != nil {
		return "", ""
	}
	name, _ = p.Name()
	path, _ = p.Exe()
	if name == "" && path != "" {
		name = nameFromPath(path)
	}
	return name, path
}

func (systemInspector) WorkingDir(pid int) string {
	id, ok := pid32(pid)
	if !ok {
		return ""
	}
	p, err := process.NewProcess(id)
	if err != nil {
		return ""
	}
	cwd, err := p.Cwd()
	if err != nil {
		return ""
	}
	return cwd
}
