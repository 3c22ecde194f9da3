package main

import (
	"fmt"
	"os"

	"github.com/Mschirtzinger/hardlinks/internal/logging"
	"github.com/Mschirtzinger/hardlinks/internal/metrics"
	"github.com/Mschirtzinger/hardlinks/internal/server"
	"github.com/Mschirtzinger/hardlinks/internal/spool"
	"github.com/Mschirtzinger/hardlinks/internal/ui"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var spoolCmd = &cobra.Command{
	Use:     "spool",
	GroupID: "rules",
	Short:   "Execute rule files dropped into the spool directory",
	Long: `Watch the spool directory and execute every rule file written to it.

Files ending in .r or .json are executed as rule text once they have been
quiet for the debounce interval. The answer is written next to the request
as <name>.result.json and the request is removed.

Files already waiting when the daemon starts are executed first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = cfg.Spool.Dir
		}
		debounce, err := cfg.DebounceInterval()
		if err != nil {
			return err
		}

		h, closeHost, err := openHost(hostOptions{})
		if err != nil {
			return err
		}
		defer closeHost()

		d, err := spool.NewWithConfig(h, dir, &spool.Config{
			DebounceInterval: debounce,
			User:             cfg.Session.User,
			Logger:           logging.Component(logger, "spool"),
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s Watching %s (debounce %v)\n", ui.RenderAccent("👁"), dir, debounce)
		fmt.Println("Press Ctrl+C to stop...")

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		return d.Start(ctx)
	},
}

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "rules",
	Short:   "Serve the HTTP API and WebSocket hook-event stream",
	Long: `Start the event server.

Routes:
  POST /api/rules          execute rule text (request body)
  GET  /api/objects?path=  data object and hard-link group
  GET  /api/stats          catalog and hook statistics
  GET  /ws                 WebSocket stream of hook_event messages
  GET  /metrics            Prometheus metrics
  GET  /health             health check`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		if !cmd.Flags().Changed("port") {
			port = cfg.Server.Port
		}

		reg := prometheus.NewRegistry()
		srv := server.NewServer(&server.Config{
			Port:     port,
			Gatherer: reg,
			User:     cfg.Session.User,
			Logger:   logging.Component(logger, "server"),
		})

		h, closeHost, err := openHost(hostOptions{
			metrics: metrics.New(reg),
			onEvent: srv.Events().OnHookEvent,
		})
		if err != nil {
			return err
		}
		defer closeHost()
		srv.SetHost(h)

		if err := srv.Start(); err != nil {
			return err
		}

		fmt.Printf("%s Server started on http://%s\n", ui.RenderPass("✓"), srv.GetAddr())
		fmt.Printf("WebSocket endpoint: ws://%s/ws\n", srv.GetAddr())
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		<-ctx.Done()

		fmt.Println("\nShutting down server...")
		if err := srv.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			return err
		}
		return nil
	},
}

func init() {
	spoolCmd.Flags().String("dir", "", "spool directory (default from config)")
	serveCmd.Flags().Int("port", 8080, "port to listen on")

	rootCmd.AddCommand(spoolCmd)
	rootCmd.AddCommand(serveCmd)
}
