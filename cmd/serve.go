package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mj1618/uibridge/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an MCP server exposing snapshot and action tools",
	Long: `Start a Model Context Protocol (MCP) server that exposes the device as tools:
snapshot, act, find and wait. AI agents can call tools directly without shell
overhead.

Supported transports:
  stdio   Standard I/O (default, for local MCP clients)
  http    Streamable HTTP transport (for remote agents)

Examples:
  uibridge serve
  uibridge serve --transport http --port 8080
  uibridge serve --cache-ttl 0`,
	Annotations: needsDevice,
	RunE:        runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("transport", "", "Transport: stdio, http (default: mcp.transport from config)")
	serveCmd.Flags().Int("port", 0, "HTTP port for the http transport (default: mcp.port from config)")
	serveCmd.Flags().Int("cache-ttl", 500, "Snapshot reuse window in milliseconds (0 to disable)")
}

func runServe(cmd *cobra.Command, args []string) error {
	transport, _ := cmd.Flags().GetString("transport")
	port, _ := cmd.Flags().GetInt("port")
	cacheTTLMs, _ := cmd.Flags().GetInt("cache-ttl")
	if transport == "" {
		transport = cfg.MCP.Transport
	}
	if port == 0 {
		port = cfg.MCP.Port
	}

	srv := server.New(server.Options{
		Dispatcher: dev.disp,
		Waiter:     dev.newWaiter(),
		Observer:   dev.provider.Observer,
		CacheTTL:   cacheTTL(cacheTTLMs),
	}, logger)
	if err := srv.Serve(cmd.Context(), transport, port); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// cacheTTL maps the flag onto server.Options, where zero means the default.
func cacheTTL(ms int) time.Duration {
	if ms <= 0 {
		return -1
	}
	return time.Duration(ms) * time.Millisecond
}
