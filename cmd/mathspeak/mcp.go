package main

import (
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	mcpAdapter "github.com/aretw0/mathspeak/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the Model Context Protocol (MCP) server",
		Long: `Serves the speak and list_constraints tools and the mathspeak://constraints
resource over MCP.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
		RunE: runMCP,
	}
	cmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	cmd.Flags().String("addr", ":8081", "Listen address (only for SSE)")
	return cmd
}

func runMCP(cmd *cobra.Command, args []string) error {
	transport, _ := cmd.Flags().GetString("transport")
	if transport != "stdio" && transport != "sse" {
		return fmt.Errorf("unknown transport %q (supported: stdio, sse)", transport)
	}
	cfg, err := settings(cmd)
	if err != nil {
		return err
	}
	// Logs go to stderr so they never corrupt JSON-RPC on stdout.
	logger := newLogger(cfg, cmd.ErrOrStderr())

	eng, release, err := buildEngine(cmd, cfg, logger)
	if err != nil {
		return err
	}
	defer release()

	srv := mcpAdapter.NewServer(eng, cfg.Constraint())
	if transport == "stdio" {
		logger.Info("starting mathspeak MCP server (stdio)")
		return srv.ServeStdio()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	addr, _ := cmd.Flags().GetString("addr")
	if err := srv.ServeSSE(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("mcp server error: %w", err)
	}
	logger.Info("MCP server stopped gracefully")
	return nil
}
