package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vrdesk/ovrly/internal/config"
)

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the daemon configuration",
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the current configuration",
		RunE:  runConfigShow,
	}

	configSetPortCmd = &cobra.Command{
		Use:   "set-port <port>",
		Short: "Set the API server port",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigSetPort,
	}

	configSetLogLevelCmd = &cobra.Command{
		Use:   "set-log-level <level>",
		Short: "Set the log level (debug, info, warn, error)",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigSetLogLevel,
	}
)

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetPortCmd)
	configCmd.AddCommand(configSetLogLevelCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configManager, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	data, err := yaml.Marshal(configManager.Get())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Printf("# %s\n%s", configManager.GetConfigPath(), data)
	return nil
}

func runConfigSetPort(cmd *cobra.Command, args []string) error {
	port, err := strconv.Atoi(args[0])
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %q", args[0])
	}

	configManager, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	if err := configManager.SetPort(port); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Printf("Server port set to %d\n", port)
	return nil
}

func runConfigSetLogLevel(cmd *cobra.Command, args []string) error {
	level := args[0]
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", level)
	}

	configManager, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	if err := configManager.SetLogLevel(level); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Printf("Log level set to %s\n", level)
	return nil
}
