package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vrdesk/ovrly/internal/window"
)

var (
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List capturable windows and monitors",
	}

	listWindowsCmd = &cobra.Command{
		Use:   "windows",
		Short: "List capturable X11 windows",
		RunE:  runListWindows,
	}

	listMonitorsCmd = &cobra.Command{
		Use:   "monitors",
		Short: "List connected monitors",
		RunE:  runListMonitors,
	}
)

func init() {
	listCmd.AddCommand(listWindowsCmd)
	listCmd.AddCommand(listMonitorsCmd)
	rootCmd.AddCommand(listCmd)
}

func runListWindows(cmd *cobra.Command, args []string) error {
	mgr, err := window.NewManager()
	if err != nil {
		return fmt.Errorf("failed to connect to X server: %w", err)
	}
	defer mgr.Close()

	windows, err := mgr.ListWindows()
	if err != nil {
		return fmt.Errorf("failed to list windows: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "HANDLE\tCLASS\tSIZE\tTITLE")
	for _, win := range windows {
		fmt.Fprintf(w, "0x%x\t%s\t%dx%d\t%s\n", win.Handle, win.Class, win.Width, win.Height, win.Title)
	}
	return w.Flush()
}

func runListMonitors(cmd *cobra.Command, args []string) error {
	mgr, err := window.NewManager()
	if err != nil {
		return fmt.Errorf("failed to connect to X server: %w", err)
	}
	defer mgr.Close()

	monitors, err := mgr.ListMonitors()
	if err != nil {
		return fmt.Errorf("failed to list monitors: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tNAME\tGEOMETRY")
	for _, m := range monitors {
		fmt.Fprintf(w, "%d\t%s\t%dx%d+%d+%d\n", m.Index, m.Name, m.Width, m.Height, m.X, m.Y)
	}
	return w.Flush()
}
