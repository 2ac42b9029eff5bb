package cmd

import (
	"fmt"
	"os"

	"github.com/andresmejia3/oculus/internal/server"
	"github.com/andresmejia3/oculus/internal/sink"
	"github.com/andresmejia3/oculus/internal/utils"
	"github.com/spf13/cobra"
)

var (
	serveAddr     string
	serveFallback bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the capture engine behind an HTTP and WebSocket API",
	Long: `Starts the frame source and waits for clients to start scans.

  GET  /health       liveness
  GET  /status       current session status
  POST /scan/start   begin a session (409 if one is running)
  POST /scan/stop    end the current session
  GET  /capture      latest captured JPEG
  GET  /ws           live status events`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runServe(cmd)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", ":8080", "Listen address")
	serveCmd.Flags().BoolVar(&serveFallback, "fallback", false, "Use the time-based fallback instead of a detector (demo mode)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command) error {
	cfg := Cfg
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = serveAddr
	}
	if cmd.Flags().Changed("fallback") {
		cfg.FallbackMode = serveFallback
	}

	ctx := cmd.Context()

	eng, err := buildEngine(ctx, cfg, Logger)
	if err != nil {
		utils.ShowError("Startup failed", err, nil)
		return err
	}
	defer eng.Close()

	hub := sink.NewHub(Logger)
	sched, err := eng.newScheduler(cfg, eng.sinks(hub), Logger)
	if err != nil {
		utils.ShowError("Failed to create scheduler", err, nil)
		return err
	}

	fmt.Fprintf(os.Stderr, "🌐 Oculus listening on %s (target zone %s)\n", cfg.Server.Addr, cfg.TargetZone)
	if err := server.New(ctx, sched, hub, Logger).ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		utils.ShowError("HTTP server failed", err, nil)
		return err
	}
	fmt.Fprintf(os.Stderr, "\n🛑 Server stopped.\n")
	return nil
}
