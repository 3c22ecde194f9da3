package main

import (
	"fmt"
	"os"
	"time"

	"github.com/Mschirtzinger/hardlinks/internal/catalog/seed"
	"github.com/Mschirtzinger/hardlinks/internal/logging"
	"github.com/Mschirtzinger/hardlinks/internal/ui"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:     "catalog",
	GroupID: "advanced",
	Short:   "Catalog management",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <manifest>",
	Short: "Load data objects from a JSONL or YAML manifest",
	Long: `Load data objects from a manifest.

JSONL manifests hold one object per line; YAML manifests hold an "objects"
list. Each object has a path and either content, a physical_path to
register, or link_to to create it as a hard link of another path:

  objects:
    - path: /tempZone/home/rods/a.txt
      content: hello
    - path: /tempZone/home/rods/b.txt
      link_to: /tempZone/home/rods/a.txt

Links are created after all other objects.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		done := logging.LogOperationStart(logger, "catalog import")
		defer done()

		entries, err := seed.Load(args[0])
		if err != nil {
			return err
		}

		h, closeHost, err := openHost(hostOptions{})
		if err != nil {
			return err
		}
		defer closeHost()

		fmt.Printf("%s Importing %d entries from %s...\n", ui.RenderAccent("→"), len(entries), args[0])
		start := time.Now()

		result, err := seed.Import(cmd.Context(), h, entries, seed.Options{DryRun: dryRun, User: cfg.Session.User})
		if err != nil {
			return err
		}

		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderWarn("⚠"), e)
		}

		verb := "Imported"
		if dryRun {
			verb = "Validated"
		}
		fmt.Printf("%s %s in %v\n", ui.RenderPass("✓"), verb, time.Since(start).Round(time.Millisecond))
		ui.KeyValue(os.Stdout, "Objects", result.Objects)
		ui.KeyValue(os.Stdout, "Links", result.Links)
		ui.KeyValue(os.Stdout, "Metadata", result.Metadata)
		if len(result.Errors) > 0 {
			return fmt.Errorf("%d entries failed", len(result.Errors))
		}
		return nil
	},
}

var catalogStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show catalog status",
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := os.Stat(cfg.Catalog.Path)
		if os.IsNotExist(err) {
			fmt.Printf("\n%s Catalog not initialized\n", ui.RenderWarn("⚠"))
			fmt.Printf("   Run 'hl put' or 'hl catalog import' to create it\n\n")
			return nil
		}
		if err != nil {
			return err
		}

		h, closeHost, err := openHost(hostOptions{})
		if err != nil {
			return err
		}
		defer closeHost()

		objects, err := h.Catalog().GetObjectCountContext(cmd.Context())
		if err != nil {
			return err
		}
		groups, err := h.Catalog().GetGroupCountContext(cmd.Context())
		if err != nil {
			return err
		}

		if jsonOutput() {
			return printJSON(map[string]interface{}{
				"catalog":          h.Catalog().Path(),
				"size_bytes":       info.Size(),
				"objects":          objects,
				"groups":           groups,
				"default_resource": h.Catalog().DefaultResource(),
				"vault":            h.Vault().Root(),
				"config":           cfg.Source(),
			})
		}

		fmt.Printf("\n%s Catalog\n", ui.RenderAccent("●"))
		ui.KeyValue(os.Stdout, "Location", h.Catalog().Path())
		ui.KeyValue(os.Stdout, "Size", fmt.Sprintf("%.1f KB", float64(info.Size())/1024))
		ui.KeyValue(os.Stdout, "Objects", objects)
		ui.KeyValue(os.Stdout, "Groups", groups)
		ui.KeyValue(os.Stdout, "Resource", h.Catalog().DefaultResource())
		ui.KeyValue(os.Stdout, "Vault", h.Vault().Root())
		if src := cfg.Source(); src != "" {
			ui.KeyValue(os.Stdout, "Config", src)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	catalogImportCmd.Flags().Bool("dry-run", false, "validate the manifest without writing")

	catalogCmd.AddCommand(catalogImportCmd)
	catalogCmd.AddCommand(catalogStatusCmd)
	rootCmd.AddCommand(catalogCmd)
}
