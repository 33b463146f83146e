package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/soulscribe/soulscribe/internal/config"
	"github.com/soulscribe/soulscribe/internal/server"
	"github.com/soulscribe/soulscribe/internal/storedb"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the SoulScribe server",
	Long: `Start the SoulScribe HTTP server.

This starts both the HTTP API server and the document store container.
When the server shuts down (via Ctrl+C or SIGTERM), the store is also stopped.

The server provides:
  - /health - Basic server health check
  - /ready  - Readiness check (includes store status)
  - /api/*  - Story, run, prompt, and metrics endpoints

Examples:
  soulscribe serve                    # Start on default port 8080
  soulscribe serve --port 3000        # Start on custom port
  soulscribe serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		// Get home directory
		h, err := getHome()
		if err != nil {
			return err
		}

		// Load config with hot reload so provider changes apply live
		configMgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		configMgr.WatchConfig()

		// Ensure store data directory exists
		storeDataPath := filepath.Join(h.Path(), "storedb")
		if err := os.MkdirAll(storeDataPath, 0755); err != nil {
			return err
		}

		storeCfg := configMgr.Get().StoreDB

		// Create server
		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			StoreDataPath: storeDataPath,
			StoreConfig: storedb.DockerConfig{
				ContainerName: storeCfg.ContainerName,
				Image:         storeCfg.Image,
				HostPort:      storeCfg.Port,
			},
			ConfigManager: configMgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
