package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "ovrly",
		Short: "ovrly - desktop overlay compositor for VR",
		Long: `ovrly pins desktop windows and monitors as floating quads inside a VR
scene. Up to four overlay slots are shared with external tooling through a
memory-mapped state region; controllers drag, resize, rotate and minimize
the overlays and click through onto the underlying desktop windows.

Features:
  • Capture X11 windows and monitors as overlay content
  • Grab, push/pull, rotate and resize overlays with the controllers
  • Click-through pointer injection into the captured windows
  • Shared-memory slot state for external configuration tools
  • REST API and MJPEG preview for headset-free inspection`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/ovrly/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "server port (default is 8080)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
