package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/devkill/internal/port"
	"github.com/lu-zhengda/devkill/internal/process"
)

var infoCmd = &cobra.Command{
	Use:   "info <port>",
	Short: "Detailed info about a port and its process",
	Long:  "Display detailed information about the process listening on the specified port.",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	ports, err := parsePorts(args)
	if err != nil {
		return err
	}
	portNum := ports[0]

	target := pickEntry(port.FindByPort(newScanner().Scan(), portNum))
	if target == nil {
		return fmt.Errorf("no process found on port %d", portNum)
	}

	manager := process.NewRealManager()
	info, err := manager.Info(cmd.Context(), target.PID)

	if jsonOutput {
		return printInfoJSON(os.Stdout, target, info)
	}
	return printInfoHuman(os.Stdout, target, info, err)
}

// pickEntry prefers a TCP listener over a UDP socket on the same port.
func pickEntry(entries []port.PortEntry) *port.PortEntry {
	for i := range entries {
		if entries[i].Protocol == port.TCP {
			return &entries[i]
		}
	}
	if len(entries) > 0 {
		return &entries[0]
	}
	return nil
}

func printInfoHuman(w io.Writer, entry *port.PortEntry, info *process.ProcessInfo, infoErr error) error {
	fmt.Fprintf(w, "Port:        %d/%s on %s\n", entry.Port, entry.Protocol, entry.LocalAddress)
	if entry.State != port.StateNone {
		fmt.Fprintf(w, "State:       %s\n", entry.State)
	}
	fmt.Fprintf(w, "Process:     %s (PID %d)\n", orDash(entry.ProcessName), entry.PID)
	fmt.Fprintf(w, "Group:       %s\n", entry.GroupName())
	if entry.ProcessPath != "" {
		fmt.Fprintf(w, "Executable:  %s\n", entry.ProcessPath)
	}
	if entry.WorkingDirectory != "" {
		fmt.Fprintf(w, "Directory:   %s\n", entry.WorkingDirectory)
	}

	if info == nil {
		if infoErr != nil {
			fmt.Fprintf(w, "Details:     (unavailable: %v)\n", infoErr)
		}
		return nil
	}

	if info.Command != "" {
		fmt.Fprintf(w, "Command:     %s\n", info.Command)
	}
	if info.User != "" {
		fmt.Fprintf(w, "User:        %s\n", info.User)
	}
	if !info.StartTime.IsZero() {
		ago := time.Since(info.StartTime).Truncate(time.Second)
		fmt.Fprintf(w, "Started:     %s ago (%s)\n",
			formatDuration(ago),
			info.StartTime.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(w, "CPU:         %.1f%%\n", info.CPUPercent)
	fmt.Fprintf(w, "Memory:      %s (RSS)\n", formatBytes(info.MemRSS))
	if info.PPID > 0 {
		fmt.Fprintf(w, "Parent PID:  %d\n", info.PPID)
	}
	if len(info.Children) > 0 {
		childStrs := make([]string, len(info.Children))
		for i, c := range info.Children {
			childStrs[i] = strconv.Itoa(c)
		}
		fmt.Fprintf(w, "Children:    %s\n", strings.Join(childStrs, ", "))
	}
	return nil
}

func printInfoJSON(w io.Writer, entry *port.PortEntry, info *process.ProcessInfo) error {
	type jsonInfo struct {
		jsonEntry
		Command    string  `json:"command,omitempty"`
		User       string  `json:"user,omitempty"`
		StartTime  string  `json:"start_time,omitempty"`
		CPUPercent float64 `json:"cpu_percent,omitempty"`
		MemoryRSS  int64   `json:"memory_rss_bytes,omitempty"`
		PPID       int     `json:"ppid,omitempty"`
		Children   []int   `json:"children,omitempty"`
	}

	out := jsonInfo{jsonEntry: toJSONEntry(*entry)}
	if info != nil {
		out.Command = info.Command
		out.User = info.User
		out.CPUPercent = info.CPUPercent
		out.MemoryRSS = info.MemRSS
		out.PPID = info.PPID
		out.Children = info.Children
		if !info.StartTime.IsZero() {
			out.StartTime = info.StartTime.Format(time.RFC3339)
		}
	}
	return encodeJSON(w, out)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	hours := int(d.Hours())
	if hours < 24 {
		return fmt.Sprintf("%d hours", hours)
	}
	days := hours / 24
	return fmt.Sprintf("%d days %d hours", days, hours%24)
}

func formatBytes(b int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
