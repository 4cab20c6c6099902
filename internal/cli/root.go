package cli

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/lu-zhengda/devkill/internal/config"
	"github.com/lu-zhengda/devkill/internal/logging"
	"github.com/lu-zhengda/devkill/internal/port"
	"github.com/lu-zhengda/devkill/internal/process"
	"github.com/lu-zhengda/devkill/internal/tui"
)

var (
	// Set via ldflags at build time.
	version = "dev"

	// Global flags.
	jsonOutput bool
	configPath string
	logLevel   string
	logFormat  string
	logFile    string

	// Loaded in PersistentPreRunE.
	cfg     *config.Config
	logSink io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "devkill",
	Short: "Find and kill the dev servers holding your ports",
	Long: `devkill shows which processes listen on which local ports, highlights
development servers, and kills a process together with its children.
Launch without subcommands for interactive TUI mode.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logSink != nil {
			logSink.Close()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if shell, _ := cmd.Flags().GetString("generate-completion"); shell != "" {
			switch shell {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s (use bash, zsh, fish, or powershell)", shell)
			}
		}

		// The TUI owns the terminal; logs only go to an explicit file.
		if logFile == "" {
			logging.Discard()
		}

		model := tui.New(newScanner(), process.NewRealManager(), tui.Options{
			Version:  version,
			Interval: cfg.Interval(),
			DevOnly:  cfg.DefaultView == config.ViewDev,
			Exclude:  cfg.Exclude,
			Color:    cfg.ColorEnabled,
		})
		p := tea.NewProgram(model, tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("devkill %s\n", version))
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.Flags().String("generate-completion", "", "Generate shell completion (bash, zsh, fish, powershell)")
	rootCmd.Flags().MarkHidden("generate-completion")

	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	pf.StringVar(&configPath, "config", "", "Config file (default ~/.config/devkill/config.yaml)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "", "Log format: text or json")
	pf.StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(killCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}

// setup loads the config and initializes logging. Flags override the file.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	if logLevel != "" {
		if !logging.ValidLevel(logLevel) {
			return fmt.Errorf("unknown log level %q", logLevel)
		}
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}

	var out io.Writer = os.Stderr
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		out, logSink = f, f
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, out)
	return nil
}

// newScanner builds a system scanner with the configured dev names.
func newScanner() *port.Scanner {
	return port.NewSystemScanner(port.NewClassifier(cfg.DevProcesses...))
}

// baseFilter returns the filter every command starts from.
func baseFilter() port.Filter {
	return port.Filter{Exclude: cfg.Exclude}
}
