// Command hl manages hard-link groups of catalog data objects.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
	"github.com/Mschirtzinger/hardlinks/internal/catalog/db"
	"github.com/Mschirtzinger/hardlinks/internal/config"
	"github.com/Mschirtzinger/hardlinks/internal/host"
	"github.com/Mschirtzinger/hardlinks/internal/logging"
	"github.com/Mschirtzinger/hardlinks/internal/metrics"
	"github.com/Mschirtzinger/hardlinks/internal/plugin"
	"github.com/Mschirtzinger/hardlinks/internal/ui"
	"github.com/Mschirtzinger/hardlinks/internal/vault"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	logLevel     string
	outputFormat string
	userFlag     string

	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hl",
	Short: "Hard-link groups for catalog data objects",
	Long: `hl keeps several logical paths pointing at one physical payload.

Data objects live in a SQLite catalog (.hardlinks/catalog.db) and their
payloads in a vault directory. A hard link is a second catalog record for
the same payload, tagged with a shared group id. Renames propagate the new
payload location to every member of the group, and deleting a member only
destroys the payload when it is the last one.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if userFlag != "" {
			cfg.Session.User = userFlag
		}

		format, err := ui.ParseFormat(outputFormat)
		if err != nil {
			return err
		}
		ui.SetFormat(format)

		logger = logging.New(logging.Options{
			Level:      cfg.Log.Level,
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			NoColor:    !ui.IsTerminal(os.Stderr),
		})
		return nil
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "objects", Title: "Data Objects:"},
		&cobra.Group{ID: "rules", Title: "Rules:"},
		&cobra.Group{ID: "advanced", Title: "Advanced:"},
	)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: search .hardlinks/, $XDG_CONFIG_HOME/hardlinks/)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "output format: auto, term, text, json")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "session user")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("Error:"), err)
		os.Exit(1)
	}
}

// hostOptions tweak openHost.
type hostOptions struct {
	metrics *metrics.Metrics
	onEvent func(plugin.HookEvent)
}

// openHost opens the configured catalog and vault and assembles a host.
// The caller must call the returned close function.
func openHost(opts hostOptions) (*host.Host, func(), error) {
	cat, err := db.OpenWithConfig(cfg.Catalog.Path, &db.Config{
		DefaultResourceID: cfg.Catalog.DefaultResource,
	})
	if err != nil {
		return nil, nil, err
	}

	root, err := filepath.Abs(cfg.Vault.Root)
	if err != nil {
		_ = cat.Close()
		return nil, nil, fmt.Errorf("failed to resolve vault root: %w", err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		_ = cat.Close()
		return nil, nil, fmt.Errorf("failed to create vault root: %w", err)
	}

	m := opts.metrics
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}

	h := host.Assemble(cat, vault.NewOS(root), host.Options{
		Logger:  logger,
		Metrics: m,
		OnEvent: opts.onEvent,
	})

	logger.Debug().Str("catalog", cat.Path()).Str("vault", root).Msg("Host ready")
	return h, func() { _ = cat.Close() }, nil
}

func session() *catalog.Session {
	return catalog.NewSession(cfg.Session.User)
}

func parsePath(raw string) (catalog.LogicalPath, error) {
	p, err := catalog.ParsePath(raw)
	if err != nil {
		return "", fmt.Errorf("invalid logical path %q: %w", raw, err)
	}
	return p, nil
}

func jsonOutput() bool {
	f, err := ui.ParseFormat(outputFormat)
	return err == nil && f == ui.FormatJSON
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printSessionErrors shows the session's error stack on stderr.
func printSessionErrors(sess *catalog.Session) {
	for _, e := range sess.Errors() {
		fmt.Fprintf(os.Stderr, "%s [%s] %s\n", ui.RenderWarn("⚠"), e.Status, e.Message)
	}
}
