// Package mcp exposes the simulation platform to agents over the Model
// Context Protocol. Each tool call is one platform action: the handler
// submits it on the correlation channel and blocks for the result, so
// agents on different MCP connections interleave through the single
// dispatcher exactly like in-process callers.
package mcp

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mimus-sim/mimus/internal/action"
	"github.com/mimus-sim/mimus/internal/platform"
)

// exitTimeout bounds the platform drain when the transport goes away.
const exitTimeout = 10 * time.Second

// Server bridges MCP tool calls onto the platform channel.
type Server struct {
	server *sdk.Server
	ch     *platform.Chan
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "mimus")
	Version string // Server version
}

// NewServer creates an MCP server submitting into ch.
func NewServer(cfg *Config, ch *platform.Chan) *Server {
	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			// Client initialized, ready to serve
		},
	})

	s := &Server{server: mcpServer, ch: ch}
	s.registerTools()
	return s
}

// Run serves MCP over stdio until the client disconnects or a signal
// arrives, then drains the platform with an Exit action.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		cancel()
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	s.shutdownPlatform()

	return err
}

// shutdownPlatform submits an Exit and waits for the platform to drain
// and close its store.
func (s *Server) shutdownPlatform() {
	id, err := s.ch.Submit(action.Request{Type: action.TypeExit})
	if err != nil {
		return // already closed
	}

	ctx, cancel := context.WithTimeout(context.Background(), exitTimeout)
	defer cancel()
	_, _ = s.ch.Await(ctx, id)
}
