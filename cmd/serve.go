package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/frontdesk/internal/config"
	"github.com/kozaktomas/frontdesk/internal/database"
	"github.com/kozaktomas/frontdesk/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reception API server",
	Long: `Start the Frontdesk HTTP API.
The API exposes the session state, face decisions, login and enrollment
passcodes, employee lookups and the visitor log to the reception front end.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().StringSlice("allowed-origin", nil, "Additional CORS origin, repeatable")
	serveCmd.Flags().Bool("greeting", false, "Start the greeting loop on startup")
	serveCmd.Flags().Bool("enroll-mode", true, "Start with an empty embedding store when the file is missing")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	cfg.Web.AllowedOrigins = append(cfg.Web.AllowedOrigins, mustGetStringSlice(cmd, "allowed-origin")...)

	mode := database.OpenModeMatch
	if mustGetBool(cmd, "enroll-mode") {
		mode = database.OpenModeEnroll
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := buildApp(ctx, cfg, mode)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Web.APIToken == "" {
		a.log.Warn("API_TOKEN is not set, the API is unauthenticated")
	}

	if mustGetBool(cmd, "greeting") {
		if err := a.engine.StartGreeting(ctx); err != nil {
			return fmt.Errorf("starting greeting loop: %w", err)
		}
	}

	server := web.NewServer(cfg, a.engine)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Frontdesk API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Printf("Identities enrolled: %d\n", len(a.store.Identities()))
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
