package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/devkill/internal/config"
	"github.com/lu-zhengda/devkill/internal/port"
)

var (
	listDev     bool
	listAll     bool
	filterPort  int
	filterProc  string
	filterProto string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List listening ports",
	Long: `Display a table of TCP listeners and dev server UDP sockets,
Dev Servers first, then by port.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listDev, "dev", false, "Only show dev servers")
	listCmd.Flags().BoolVar(&listAll, "all", false, "Show all ports even when default_view is dev")
	addFilterFlags(listCmd)
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&filterPort, "port", 0, "Filter by port number")
	cmd.Flags().StringVar(&filterProc, "process", "", "Filter by process name or path")
	cmd.Flags().StringVar(&filterProto, "protocol", "", "Filter by protocol (tcp/udp)")
}

func runList(cmd *cobra.Command, args []string) error {
	f, err := cliFilter()
	if err != nil {
		return err
	}

	entries := f.Apply(newScanner().Scan())
	port.Sort(entries, port.SortByPort)

	if jsonOutput {
		return printJSON(os.Stdout, entries)
	}
	return printTable(os.Stdout, entries)
}

// cliFilter combines the config with the filter flags.
func cliFilter() (port.Filter, error) {
	proto, ok := port.ParseProtocol(filterProto)
	if !ok {
		return port.Filter{}, fmt.Errorf("invalid protocol %q (use tcp or udp)", filterProto)
	}
	f := baseFilter()
	f.Port = filterPort
	f.Process = filterProc
	f.Protocol = proto
	f.DevOnly = listDev || (cfg.DefaultView == config.ViewDev && !listAll)
	return f, nil
}

func printTable(w io.Writer, entries []port.PortEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tPORT\tPROTO\tADDRESS\tPID\tPROCESS\tPATH")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\t%s\t%s\n",
			e.GroupName(), e.Port, e.Protocol, e.LocalAddress, e.PID, orDash(e.ProcessName), e.DisplayPath())
	}
	return tw.Flush()
}

type jsonEntry struct {
	Port             int    `json:"port"`
	Protocol         string `json:"protocol"`
	LocalAddress     string `json:"local_address"`
	State            string `json:"state,omitempty"`
	PID              int    `json:"pid"`
	ProcessName      string `json:"process_name"`
	ProcessPath      string `json:"process_path,omitempty"`
	WorkingDirectory string `json:"working_directory,omitempty"`
	IsDevProcess     bool   `json:"is_dev_process"`
	Group            string `json:"group"`
}

func toJSONEntry(e port.PortEntry) jsonEntry {
	return jsonEntry{
		Port:             e.Port,
		Protocol:         string(e.Protocol),
		LocalAddress:     e.LocalAddress,
		State:            string(e.State),
		PID:              e.PID,
		ProcessName:      e.ProcessName,
		ProcessPath:      e.ProcessPath,
		WorkingDirectory: e.WorkingDirectory,
		IsDevProcess:     e.IsDevProcess,
		Group:            e.GroupName(),
	}
}

func printJSON(w io.Writer, entries []port.PortEntry) error {
	return encodeJSON(w, toJSONEntries(entries))
}

func toJSONEntries(entries []port.PortEntry) []jsonEntry {
	out := make([]jsonEntry, len(entries))
	for i, e := range entries {
		out[i] = toJSONEntry(e)
	}
	return out
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
