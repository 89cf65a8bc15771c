package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// Server is the MCP server for SorobAI.
type Server struct {
	ports  *Ports
	server *mcp.Server
	logger *zap.Logger
}

// NewServer creates a new MCP server with the given ports. The version is
// reported to clients during initialization.
func NewServer(ports *Ports, version string, logger *zap.Logger) (*Server, error) {
	if ports == nil {
		return nil, ErrMissingAsker
	}
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	impl := &mcp.Implementation{
		Name:    "sorobai",
		Version: version,
	}

	s := &Server{
		ports:  ports,
		server: mcp.NewServer(impl, nil),
		logger: logger,
	}

	s.registerTools()

	return s, nil
}

// Run serves MCP over stdio until the context is cancelled or the client
// disconnects. Nothing else may write to stdout while it runs.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves MCP over streamable HTTP on addr until the context is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("mcp http shutdown", zap.Error(err))
		}
	}()

	s.logger.Info("mcp server listening", zap.String("addr", addr))
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
