package main

import (
	"fmt"
	"path/filepath"

	"github.com/Mschirtzinger/hardlinks/internal/config"
	"github.com/Mschirtzinger/hardlinks/internal/ui"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "advanced",
	Short:   "Manage hl configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	// Overrides the root hook: a broken config must not block rewriting it.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		force, _ := cmd.Flags().GetBool("force")

		if err := config.WriteDefault(path, force); err != nil {
			return err
		}
		fmt.Printf("%s Wrote %s\n", ui.RenderPass("✓"), ui.RenderAccent(path))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput() {
			return printJSON(cfg)
		}

		src := cfg.Source()
		if src == "" {
			src = ui.RenderMuted("(built-in defaults)")
		}
		fmt.Printf("\n%s Configuration %s\n", ui.RenderAccent("●"), src)
		ui.KeyValue(cmd.OutOrStdout(), "catalog.path", cfg.Catalog.Path)
		ui.KeyValue(cmd.OutOrStdout(), "catalog.default_resource", cfg.Catalog.DefaultResource)
		ui.KeyValue(cmd.OutOrStdout(), "vault.root", cfg.Vault.Root)
		ui.KeyValue(cmd.OutOrStdout(), "log.level", cfg.Log.Level)
		ui.KeyValue(cmd.OutOrStdout(), "log.file", cfg.Log.File)
		ui.KeyValue(cmd.OutOrStdout(), "spool.dir", cfg.Spool.Dir)
		ui.KeyValue(cmd.OutOrStdout(), "spool.debounce", cfg.Spool.Debounce)
		ui.KeyValue(cmd.OutOrStdout(), "server.port", cfg.Server.Port)
		ui.KeyValue(cmd.OutOrStdout(), "session.user", cfg.Session.User)
		fmt.Println()
		return nil
	},
}

func init() {
	configInitCmd.Flags().String("path", filepath.Join(".hardlinks", config.FileName), "where to write the file")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
