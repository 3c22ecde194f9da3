package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
	"github.com/Mschirtzinger/hardlinks/internal/host"
	"github.com/Mschirtzinger/hardlinks/internal/plugin"
	"github.com/Mschirtzinger/hardlinks/internal/ui"
	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:     "put <logical-path> [file]",
	GroupID: "objects",
	Short:   "Store a payload as a new data object",
	Long: `Store a payload as a new data object on the default resource.

The payload is read from file, or from stdin when file is omitted or "-".
It is written to the vault path derived from the logical path.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := parsePath(args[0])
		if err != nil {
			return err
		}

		var data []byte
		if len(args) == 1 || args[1] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			// #nosec G304 - controlled path from CLI
			data, err = os.ReadFile(args[1])
		}
		if err != nil {
			return fmt.Errorf("failed to read payload: %w", err)
		}

		h, closeHost, err := openHost(hostOptions{})
		if err != nil {
			return err
		}
		defer closeHost()

		obj, err := h.Put(cmd.Context(), session(), p, data)
		if err != nil {
			return err
		}

		fmt.Printf("%s Stored %s\n", ui.RenderPass("✓"), ui.RenderAccent(p.String()))
		ui.KeyValue(os.Stdout, "Physical path", obj.PhysicalPath)
		ui.KeyValue(os.Stdout, "Size", obj.Size)
		return nil
	},
}

var lnCmd = &cobra.Command{
	Use:     "ln <source> <link>",
	GroupID: "objects",
	Short:   "Create a hard link to a data object",
	Long: `Create <link> as a new data object sharing <source>'s payload.

Both objects end up tagged with the same hard-link group id. If <source>
is not yet in a group, a fresh group id is allocated.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := parsePath(args[0])
		if err != nil {
			return err
		}
		link, err := parsePath(args[1])
		if err != nil {
			return err
		}

		doc, err := json.Marshal(map[string]string{
			"operation":    plugin.OpMakeLink,
			"logical_path": source.String(),
			"link_name":    link.String(),
		})
		if err != nil {
			return err
		}

		h, closeHost, err := openHost(hostOptions{})
		if err != nil {
			return err
		}
		defer closeHost()

		sess := session()
		if _, err := h.ExecRuleText(cmd.Context(), sess, "@external rule { "+string(doc)+" }"); err != nil {
			printSessionErrors(sess)
			return err
		}

		info, err := h.Stat(cmd.Context(), link)
		if err != nil {
			return err
		}
		fmt.Printf("%s Linked %s → %s\n", ui.RenderPass("✓"), ui.RenderAccent(link.String()), source)
		ui.KeyValue(os.Stdout, "Group", info.GroupID)
		ui.KeyValue(os.Stdout, "Members", len(info.Siblings)+1)
		return nil
	},
}

var mvCmd = &cobra.Command{
	Use:     "mv <src> <dst>",
	GroupID: "objects",
	Short:   "Rename a data object",
	Long: `Rename a data object and move its payload to the destination's vault path.

Every other member of the object's hard-link group is updated to the new
payload location. Members that could not be updated are reported; fix them
with an administrative replica update.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := parsePath(args[0])
		if err != nil {
			return err
		}
		dst, err := parsePath(args[1])
		if err != nil {
			return err
		}

		h, closeHost, err := openHost(hostOptions{})
		if err != nil {
			return err
		}
		defer closeHost()

		sess := session()
		err = h.Rename(cmd.Context(), sess, src, dst)
		printSessionErrors(sess)
		if err != nil {
			return err
		}

		fmt.Printf("%s Renamed %s → %s\n", ui.RenderPass("✓"), src, ui.RenderAccent(dst.String()))
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <logical-path>",
	GroupID: "objects",
	Short:   "Delete a data object",
	Long: `Delete a data object.

If other hard links share its payload, only this record is removed and the
payload stays. The payload is destroyed with the last member of the group.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDelete(cmd, args[0], (*host.Host).Unlink)
	},
}

var trimCmd = &cobra.Command{
	Use:     "trim <logical-path>",
	GroupID: "objects",
	Short:   "Trim a data object's replica",
	Long: `Trim the replica of a data object.

Hard links are handled as for rm: a member with siblings is detached and
the shared payload is kept.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDelete(cmd, args[0], (*host.Host).Trim)
	},
}

type deleteFunc func(*host.Host, context.Context, *catalog.Session, catalog.LogicalPath) (*host.DeleteResult, error)

func runDelete(cmd *cobra.Command, raw string, del deleteFunc) error {
	p, err := parsePath(raw)
	if err != nil {
		return err
	}

	h, closeHost, err := openHost(hostOptions{})
	if err != nil {
		return err
	}
	defer closeHost()

	info, err := h.Stat(cmd.Context(), p)
	if err != nil {
		return err
	}

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		title := fmt.Sprintf("Delete %s and its payload?", p)
		if len(info.Siblings) > 0 {
			title = fmt.Sprintf("Delete %s? %d other link(s) keep the payload.", p, len(info.Siblings))
		}
		ok, err := ui.Confirm(title, true)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted")
			return nil
		}
	}

	sess := session()
	res, err := del(h, cmd.Context(), sess, p)
	printSessionErrors(sess)
	if err != nil {
		return err
	}

	if res.Skipped {
		fmt.Printf("%s Removed link %s, payload kept for %d other link(s)\n",
			ui.RenderPass("✓"), ui.RenderAccent(p.String()), len(info.Siblings))
	} else {
		fmt.Printf("%s Removed %s and its payload\n", ui.RenderPass("✓"), ui.RenderAccent(p.String()))
	}
	return nil
}

var statCmd = &cobra.Command{
	Use:     "stat <logical-path>",
	GroupID: "objects",
	Short:   "Show a data object and its hard-link group",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := parsePath(args[0])
		if err != nil {
			return err
		}

		h, closeHost, err := openHost(hostOptions{})
		if err != nil {
			return err
		}
		defer closeHost()

		info, err := h.Stat(cmd.Context(), p)
		if err != nil {
			return err
		}

		if jsonOutput() {
			return printJSON(info)
		}

		fmt.Printf("\n%s %s\n", ui.RenderAccent("●"), info.Path)
		ui.KeyValue(os.Stdout, "Physical path", info.PhysicalPath)
		ui.KeyValue(os.Stdout, "Resource", info.ResourceID)
		ui.KeyValue(os.Stdout, "Size", info.Size)
		ui.KeyValue(os.Stdout, "Records", info.PayloadRefs)
		if !info.PayloadFound {
			ui.KeyValue(os.Stdout, "Payload", ui.RenderWarn("missing"))
		}
		if info.GroupID == "" {
			ui.KeyValue(os.Stdout, "Group", ui.RenderMuted("none"))
			fmt.Println()
			return nil
		}
		ui.KeyValue(os.Stdout, "Group", info.GroupID)
		for _, s := range info.Siblings {
			fmt.Printf("     %s %s\n", ui.RenderMuted("↔"), s)
		}
		fmt.Println()
		return nil
	},
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func init() {
	rmCmd.Flags().BoolP("yes", "y", false, "delete without asking")
	trimCmd.Flags().BoolP("yes", "y", false, "trim without asking")

	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(lnCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(trimCmd)
	rootCmd.AddCommand(statCmd)
}
