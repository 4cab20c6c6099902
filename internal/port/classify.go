package port

import "strings"

// defaultDevNames are the executables treated as development servers.
var defaultDevNames = []string{
	"node", "dotnet", "php", "iisexpress", "python", "python3",
	"ruby", "java", "deno", "bun", "uvicorn", "gunicorn",
	"nginx", "httpd", "apache", "hugo", "caddy", "vite",
}

// Classifier decides whether a process name belongs to a development
// server. It is immutable once built and safe for concurrent use.
type Classifier struct {
	names map[string]struct{}
}

// DefaultClassifier is built from the default name set at startup.
var DefaultClassifier = NewClassifier()

// NewClassifier builds a classifier from the default names plus extra.
// Names are compared case-insensitively.
func NewClassifier(extra ...string) *Classifier {
	names := make(map[string]struct{}, len(defaultDevNames)+len(extra))
	for _, n := range defaultDevNames {
		names[n] = struct{}{}
	}
	for _, n := range extra {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			names[stripExe(n)] = struct{}{}
		}
	}
	return &Classifier{names: names}
}

// IsDev reports whether name, with one trailing ".exe" removed, is an exact
// case-insensitive match for a known dev executable.
func (c *Classifier) IsDev(name string) bool {
	if name == "" {
		return false
	}
	_, ok := c.names[stripExe(strings.ToLower(name))]
	return ok
}

// IsDevProcessName classifies name with DefaultClassifier.
func IsDevProcessName(name string) bool {
	return DefaultClassifier.IsDev(name)
}

// stripExe expects a lowercased name.
func stripExe(name string) string {
	return strings.TrimSuffix(name, ".exe")
}
