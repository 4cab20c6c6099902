package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/devkill/internal/port"
	"github.com/lu-zhengda/devkill/internal/process"
)

var (
	killPIDs []int
	killYes  bool
)

var killCmd = &cobra.Command{
	Use:   "kill <port>...",
	Short: "Kill the processes listening on ports",
	Long: `Terminate every process listening on the given ports, including child
processes. With --pid, terminate the given process ids instead.`,
	Example: `  devkill kill 3000
  devkill kill 3000 5173 --yes
  devkill kill --pid 4242`,
	RunE: runKill,
}

func init() {
	killCmd.Flags().IntSliceVar(&killPIDs, "pid", nil, "Kill these process ids instead of resolving ports")
	killCmd.Flags().BoolVarP(&killYes, "yes", "y", false, "Do not ask for confirmation")
}

// killTarget is one process selected for termination.
type killTarget struct {
	PID     int    `json:"pid"`
	Process string `json:"process"`
	Ports   []int  `json:"ports,omitempty"`
}

// killResult reports the outcome for one target.
type killResult struct {
	killTarget
	Killed  bool `json:"killed"`
	Skipped bool `json:"skipped,omitempty"`
}

// killFailedError is returned when at least one target survived.
type killFailedError struct {
	pids []int
}

func (e *killFailedError) Error() string {
	strs := make([]string, len(e.pids))
	for i, p := range e.pids {
		strs[i] = strconv.Itoa(p)
	}
	return fmt.Sprintf("failed to kill PID(s): %s", strings.Join(strs, ", "))
}

func runKill(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && len(killPIDs) == 0 {
		return fmt.Errorf("specify at least one port or --pid")
	}
	if len(args) > 0 && len(killPIDs) > 0 {
		return fmt.Errorf("ports and --pid cannot be combined")
	}

	ports, err := parsePorts(args)
	if err != nil {
		return err
	}
	if err := checkPIDs(killPIDs); err != nil {
		return err
	}

	entries := baseFilter().Apply(newScanner().Scan())

	var targets []killTarget
	if len(ports) > 0 {
		var missing []int
		targets, missing = targetsForPorts(entries, ports)
		for _, p := range missing {
			fmt.Fprintf(os.Stderr, "No process listening on port %d.\n", p)
		}
	} else {
		targets = targetsForPIDs(entries, killPIDs)
	}
	if len(targets) == 0 {
		return fmt.Errorf("nothing to kill")
	}

	if !killYes && !jsonOutput {
		if !confirm(os.Stdin, os.Stdout, targets) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	results := killTargets(process.NewRealManager(), targets)

	if jsonOutput {
		if err := encodeJSON(os.Stdout, results); err != nil {
			return err
		}
	} else {
		printKillResults(os.Stdout, results)
	}

	if failed := failedPIDs(results); len(failed) > 0 {
		return &killFailedError{pids: failed}
	}
	return nil
}

func parsePorts(args []string) ([]int, error) {
	ports := make([]int, 0, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid port number %q: %w", a, err)
		}
		if n < 1 || n > 65535 {
			return nil, fmt.Errorf("port %d out of range (1-65535)", n)
		}
		ports = append(ports, n)
	}
	return ports, nil
}

func checkPIDs(pids []int) error {
	for _, pid := range pids {
		if !process.ValidPID(pid) {
			return fmt.Errorf("invalid PID %d", pid)
		}
	}
	return nil
}

// targetsForPorts groups the listeners of ports by pid, in first-seen
// order. Ports without a listener are returned as missing.
func targetsForPorts(entries []port.PortEntry, ports []int) (targets []killTarget, missing []int) {
	index := map[int]int{}
	for _, p := range ports {
		found := port.FindByPort(entries, p)
		if len(found) == 0 {
			missing = append(missing, p)
			continue
		}
		for _, e := range found {
			i, ok := index[e.PID]
			if !ok {
				i = len(targets)
				index[e.PID] = i
				targets = append(targets, killTarget{PID: e.PID, Process: e.ProcessName})
			}
			if !containsInt(targets[i].Ports, e.Port) {
				targets[i].Ports = append(targets[i].Ports, e.Port)
			}
		}
	}
	return targets, missing
}

// targetsForPIDs attaches the scanned name and ports to each pid when known.
func targetsForPIDs(entries []port.PortEntry, pids []int) []killTarget {
	var targets []killTarget
	seen := map[int]bool{}
	for _, pid := range pids {
		if seen[pid] {
			continue
		}
		seen[pid] = true
		t := killTarget{PID: pid}
		for _, e := range entries {
			if e.PID != pid {
				continue
			}
			t.Process = e.ProcessName
			if !containsInt(t.Ports, e.Port) {
				t.Ports = append(t.Ports, e.Port)
			}
		}
		targets = append(targets, t)
	}
	return targets
}

// killTargets verifies each pid still runs the scanned image before
// terminating it, so a recycled pid is never hit.
func killTargets(m process.Manager, targets []killTarget) []killResult {
	results := make([]killResult, 0, len(targets))
	for _, t := range targets {
		r := killResult{killTarget: t}
		if !m.VerifyProcess(t.PID, t.Process) {
			r.Skipped = true
			results = append(results, r)
			continue
		}
		r.Killed = m.Kill(t.PID)
		results = append(results, r)
	}
	return results
}

func failedPIDs(results []killResult) []int {
	var pids []int
	for _, r := range results {
		if !r.Killed && !r.Skipped {
			pids = append(pids, r.PID)
		}
	}
	return pids
}

func confirm(in io.Reader, out io.Writer, targets []killTarget) bool {
	fmt.Fprintln(out, "About to kill:")
	for _, t := range targets {
		fmt.Fprintf(out, "  %s\n", describeTarget(t))
	}
	fmt.Fprint(out, "Proceed? [y/N] ")

	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func printKillResults(w io.Writer, results []killResult) {
	for _, r := range results {
		switch {
		case r.Skipped:
			fmt.Fprintf(w, "Skipped %s: PID changed since scan.\n", describeTarget(r.killTarget))
		case r.Killed:
			fmt.Fprintf(w, "Killed %s.\n", describeTarget(r.killTarget))
		default:
			fmt.Fprintf(w, "Failed to kill %s.\n", describeTarget(r.killTarget))
		}
	}
}

func describeTarget(t killTarget) string {
	s := fmt.Sprintf("%s (PID %d)", orDash(t.Process), t.PID)
	if len(t.Ports) > 0 {
		strs := make([]string, len(t.Ports))
		for i, p := range t.Ports {
			strs[i] = strconv.Itoa(p)
		}
		s += " on port " + strings.Join(strs, ", ")
	}
	return s
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
