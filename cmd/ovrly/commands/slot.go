package commands

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vrdesk/ovrly/internal/config"
	"github.com/vrdesk/ovrly/internal/sharedmem"
)

var (
	assignMonitor    bool
	assignOpacity    uint8
	assignPlacement  string
	assignFrozen     bool
	assignNoInteract bool

	slotCmd = &cobra.Command{
		Use:   "slot",
		Short: "Manage overlay slots in a running daemon",
	}

	slotAssignCmd = &cobra.Command{
		Use:   "assign <slot> <handle>",
		Short: "Assign a window or monitor to an overlay slot",
		Long: `Assigns a capture handle to one of the overlay slots. Window handles are
X11 window IDs (see "ovrly list windows"); with --monitor the handle is a
monitor index plus one (see "ovrly list monitors").`,
		Args: cobra.ExactArgs(2),
		RunE: runSlotAssign,
	}

	slotClearCmd = &cobra.Command{
		Use:   "clear <slot>",
		Short: "Clear an overlay slot",
		Args:  cobra.ExactArgs(1),
		RunE:  runSlotClear,
	}

	slotShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show the shared slot state",
		RunE:  runSlotShow,
	}
)

func init() {
	slotAssignCmd.Flags().BoolVar(&assignMonitor, "monitor", false, "handle is a monitor index plus one")
	slotAssignCmd.Flags().Uint8Var(&assignOpacity, "opacity", 100, "overlay opacity, 0-100")
	slotAssignCmd.Flags().StringVar(&assignPlacement, "placement", "world", "placement mode (world, head)")
	slotAssignCmd.Flags().BoolVar(&assignFrozen, "frozen", false, "ignore grab gestures")
	slotAssignCmd.Flags().BoolVar(&assignNoInteract, "no-interact", false, "disable click-through")

	slotCmd.AddCommand(slotAssignCmd)
	slotCmd.AddCommand(slotClearCmd)
	slotCmd.AddCommand(slotShowCmd)
	rootCmd.AddCommand(slotCmd)
}

// openStore maps the shared region of a running daemon.
func openStore() (*sharedmem.Store, error) {
	configManager, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}
	store, err := sharedmem.Open(configManager.Get().SharedRegion)
	if err != nil {
		return nil, fmt.Errorf("is the daemon running? %w", err)
	}
	return store, nil
}

func parseSlot(arg string) (int, error) {
	slot, err := strconv.Atoi(arg)
	if err != nil || slot < 0 || slot >= sharedmem.OverlayCount {
		return 0, fmt.Errorf("slot must be 0-%d", sharedmem.OverlayCount-1)
	}
	return slot, nil
}

func runSlotAssign(cmd *cobra.Command, args []string) error {
	slot, err := parseSlot(args[0])
	if err != nil {
		return err
	}
	handle, err := strconv.ParseUint(args[1], 0, 64)
	if err != nil || handle == 0 {
		return fmt.Errorf("invalid handle %q", args[1])
	}
	if assignOpacity > 100 {
		return fmt.Errorf("opacity must be 0-100")
	}

	d := sharedmem.NewDescriptor(handle, assignMonitor)
	d.Opacity = assignOpacity
	d.IsFrozen = assignFrozen
	d.IsInteractable = !assignNoInteract
	switch assignPlacement {
	case "world":
		d.Placement = sharedmem.WorldLocked
	case "head":
		d.Placement = sharedmem.HeadLocked
	default:
		return fmt.Errorf("placement must be \"world\" or \"head\"")
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	store.WriteDescriptor(slot, d)
	fmt.Printf("Assigned handle 0x%x to slot %d\n", handle, slot)
	return nil
}

func runSlotClear(cmd *cobra.Command, args []string) error {
	slot, err := parseSlot(args[0])
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	store.ClearHandle(slot)
	fmt.Printf("Cleared slot %d\n", slot)
	return nil
}

func runSlotShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLOT\tHANDLE\tKIND\tSCALE\tOPACITY\tPLACEMENT\tFLAGS")
	for slot := 0; slot < sharedmem.OverlayCount; slot++ {
		d := store.Read(slot)
		if d.Handle == 0 {
			fmt.Fprintf(w, "%d\t-\t\t\t\t\t\n", slot)
			continue
		}
		kind := "window"
		if d.IsMonitor {
			kind = "monitor"
		}
		placement := "world"
		if d.Placement == sharedmem.HeadLocked {
			placement = "head"
		}
		flags := ""
		if !d.IsInteractable {
			flags += " no-interact"
		}
		if d.IsFrozen {
			flags += " frozen"
		}
		if d.IsMinimized {
			flags += " minimized"
		}
		fmt.Fprintf(w, "%d\t0x%x\t%s\t%.2f\t%d%%\t%s\t%s\n",
			slot, d.Handle, kind, d.Scale, d.Opacity, placement, flags)
	}
	return w.Flush()
}
