package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/devkill/internal/port"
	"github.com/lu-zhengda/devkill/internal/snapshot"
)

var (
	watchInterval int
	watchAlert    bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Auto-refresh port table in terminal",
	Long: `Continuously display listening ports with periodic refresh. Ports that
opened or closed since the previous refresh are listed under the table.

With --alert, monitors for new port listeners that appear after the initial
scan. When a new listener is detected, prints an alert and exits with code 1.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVar(&watchInterval, "interval", 0, "Refresh interval in seconds (default from config)")
	watchCmd.Flags().BoolVar(&listDev, "dev", false, "Only show dev servers")
	watchCmd.Flags().BoolVar(&watchAlert, "alert", false, "Alert and exit on new port listeners")
	addFilterFlags(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	f, err := cliFilter()
	if err != nil {
		return err
	}

	interval := cfg.Interval()
	if watchInterval > 0 {
		interval = time.Duration(watchInterval) * time.Second
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	scanner := newScanner()
	scan := func() *snapshot.Snapshot {
		return snapshot.Of(f.Apply(scanner.Scan()), time.Now())
	}

	if watchAlert {
		return watchForNew(ctx, os.Stdout, scan, interval)
	}
	return watchTable(ctx, os.Stdout, scan, interval, f)
}

func watchTable(ctx context.Context, w io.Writer, scan func() *snapshot.Snapshot, interval time.Duration, f port.Filter) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prev *snapshot.Snapshot
	for {
		cur := scan()
		var events []snapshot.Event
		if prev != nil {
			events = snapshot.Diff(prev, cur)
		}
		renderWatch(w, cur, events, f)
		prev = cur

		select {
		case <-ctx.Done():
			fmt.Fprintln(w, "\nStopped watching.")
			return nil
		case <-ticker.C:
		}
	}
}

func renderWatch(w io.Writer, s *snapshot.Snapshot, events []snapshot.Event, f port.Filter) {
	entries := s.Entries()
	port.Sort(entries, port.SortByPort)

	if jsonOutput {
		encodeJSON(w, struct {
			Timestamp time.Time        `json:"timestamp"`
			Entries   []jsonEntry      `json:"entries"`
			Events    []snapshot.Event `json:"events,omitempty"`
		}{s.Timestamp, toJSONEntries(entries), events})
		return
	}

	// Clear screen.
	fmt.Fprint(w, "\033[2J\033[H")

	dev := 0
	for _, e := range entries {
		if e.IsDevProcess {
			dev++
		}
	}
	fmt.Fprintf(w, "devkill watch | Dev servers: %d  Total: %d | %s | Ctrl+C to stop\n\n",
		dev, len(entries), s.Timestamp.Format("15:04:05"))

	if len(entries) == 0 {
		fmt.Fprintln(w, "No ports found matching filter.")
	} else {
		printTable(w, entries)
	}

	if len(events) > 0 {
		fmt.Fprintln(w)
		for _, ev := range events {
			sign := "+"
			if ev.Type == snapshot.EventClose {
				sign = "-"
			}
			fmt.Fprintf(w, "%s %d/%s %s (PID %d)\n", sign, ev.Port, ev.Protocol, orDash(ev.Process), ev.PID)
		}
	}

	if filter := activeFilter(f); filter != "" {
		fmt.Fprintf(w, "\nFilter: %s\n", filter)
	}
}

func watchForNew(ctx context.Context, w io.Writer, scan func() *snapshot.Snapshot, interval time.Duration) error {
	baseline := scan()
	if !jsonOutput {
		fmt.Fprintf(w, "Monitoring %d port(s) for new listeners... (interval: %s)\n",
			baseline.Len(), interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if !jsonOutput {
				fmt.Fprintln(w, "\nStopped watching.")
			}
			return nil
		case <-ticker.C:
			opened := snapshot.Opened(baseline, scan())
			if len(opened) == 0 {
				continue
			}
			if jsonOutput {
				return printAlertJSON(w, opened)
			}
			return printAlertHuman(w, opened)
		}
	}
}

// alertExitError is returned when --alert detects new ports.
// The CLI should exit with code 1.
type alertExitError struct {
	count int
}

func (e *alertExitError) Error() string {
	return fmt.Sprintf("alert: %d new port listener(s) detected", e.count)
}

func printAlertJSON(w io.Writer, events []snapshot.Event) error {
	out := struct {
		Alert  string           `json:"alert"`
		Count  int              `json:"count"`
		Events []snapshot.Event `json:"events"`
	}{"new_port_listeners", len(events), events}

	if err := encodeJSON(w, out); err != nil {
		return fmt.Errorf("failed to encode alert JSON: %w", err)
	}
	return &alertExitError{count: len(events)}
}

func printAlertHuman(w io.Writer, events []snapshot.Event) error {
	fmt.Fprintf(w, "\nALERT: %d new port listener(s) detected!\n\n", len(events))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PORT\tPROTO\tADDRESS\tPID\tPROCESS")
	for _, ev := range events {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", ev.Port, ev.Protocol, ev.Address, ev.PID, orDash(ev.Process))
	}
	tw.Flush()

	return &alertExitError{count: len(events)}
}

func activeFilter(f port.Filter) string {
	var parts []string
	if f.Port > 0 {
		parts = append(parts, fmt.Sprintf("port=%d", f.Port))
	}
	if f.Process != "" {
		parts = append(parts, fmt.Sprintf("process=%s", f.Process))
	}
	if f.Protocol != "" {
		parts = append(parts, fmt.Sprintf("protocol=%s", f.Protocol))
	}
	if f.DevOnly {
		parts = append(parts, "dev")
	}
	return strings.Join(parts, ", ")
}
