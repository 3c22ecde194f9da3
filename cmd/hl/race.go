package main

import (
	"fmt"
	"os"

	"github.com/Mschirtzinger/hardlinks/internal/race"
	"github.com/Mschirtzinger/hardlinks/internal/ui"
	"github.com/spf13/cobra"
)

var raceCmd = &cobra.Command{
	Use:     "race <source>",
	GroupID: "advanced",
	Short:   "Create many links to one object concurrently and check grouping",
	Long: `Create links to <source> concurrently and report the resulting groups.

Links are named <source>.link000, <source>.link001, ... and must not exist.
When <source> starts untagged, concurrent calls may each allocate a fresh
group id; the report shows how many distinct ids the links ended up with.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := parsePath(args[0])
		if err != nil {
			return err
		}
		links, _ := cmd.Flags().GetInt("links")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		h, closeHost, err := openHost(hostOptions{})
		if err != nil {
			return err
		}
		defer closeHost()

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		report, err := race.Run(ctx, h, race.Options{
			Source:      source,
			Links:       links,
			Concurrency: concurrency,
			User:        cfg.Session.User,
		})
		if err != nil {
			return err
		}

		if jsonOutput() {
			return printJSON(report)
		}

		report.PrintStats(os.Stdout)
		switch {
		case len(report.Errors) > 0:
			fmt.Printf("%s %d call(s) failed\n", ui.RenderFail("✗"), len(report.Errors))
		case report.Fragmented():
			fmt.Printf("%s Links split across %d groups\n", ui.RenderWarn("⚠"), len(report.GroupIDs))
		default:
			fmt.Printf("%s All links share one group\n", ui.RenderPass("✓"))
		}
		return nil
	},
}

func init() {
	raceCmd.Flags().Int("links", 10, "number of links to create")
	raceCmd.Flags().Int("concurrency", 0, "max in-flight calls (default: --links)")
	rootCmd.AddCommand(raceCmd)
}
