package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
	"github.com/Mschirtzinger/hardlinks/internal/ui"
	"github.com/spf13/cobra"
)

var ruleCmd = &cobra.Command{
	Use:     "rule [text]",
	GroupID: "rules",
	Short:   "Execute rule text against the hard_links plugin",
	Long: `Execute a direct invocation of the hard_links plugin.

The text is a JSON document naming an operation, optionally wrapped as an
inline rule or a script file:

  hl rule '{"operation": "hard_links_make_link", "logical_path": "/z/a", "link_name": "/z/b"}'
  hl rule '@external rule { {"operation": "hard_links_count_links", "logical_path": "/z/a"} }'
  hl rule -f make_link.r

Operations: hard_links_make_link, hard_links_count_links,
hard_links_list_data_objects.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		var text string
		switch {
		case file != "" && len(args) > 0:
			return fmt.Errorf("pass rule text or --file, not both")
		case file != "":
			// #nosec G304 - controlled path from CLI
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read rule file: %w", err)
			}
			text = string(data)
		case len(args) == 1:
			text = args[0]
		default:
			return fmt.Errorf("rule text or --file is required")
		}

		h, closeHost, err := openHost(hostOptions{})
		if err != nil {
			return err
		}
		defer closeHost()

		sess := session()
		code, err := h.ExecRuleText(cmd.Context(), sess, strings.TrimSpace(text))
		if err != nil {
			printSessionErrors(sess)
			status := catalog.StatusOf(err)
			return fmt.Errorf("%s (%d): %w", status, int(status), err)
		}

		fmt.Printf("%s %s\n", ui.RenderPass("✓"), code)
		return nil
	},
}

func init() {
	ruleCmd.Flags().StringP("file", "f", "", "read rule text from file")
	rootCmd.AddCommand(ruleCmd)
}
