package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/devkill/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize the config file",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(resolvedConfigPath())
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			return encodeJSON(os.Stdout, cfg)
		}
		fmt.Printf("refresh_interval: %d\n", cfg.RefreshInterval)
		fmt.Printf("default_view:     %s\n", cfg.DefaultView)
		fmt.Printf("exclude:          %v\n", cfg.Exclude)
		fmt.Printf("dev_processes:    %v\n", cfg.DevProcesses)
		fmt.Printf("color_enabled:    %t\n", cfg.ColorEnabled)
		fmt.Printf("log_level:        %s\n", cfg.LogLevel)
		fmt.Printf("log_format:       %s\n", cfg.LogFormat)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolvedConfigPath()
		if path == "" {
			return errors.New("cannot determine config location; pass --config")
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configPathCmd, configShowCmd, configInitCmd)
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}
