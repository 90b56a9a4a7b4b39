package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avezina/deepscout/internal/config"
	"github.com/avezina/deepscout/internal/health"
	"github.com/avezina/deepscout/internal/observe"
)

// Version is reported in the MCP implementation info.
const Version = "1.0.0"

const toolDescription = "Perform deep, web-search augmented research on a topic. " +
	"Accepts a research question (10-2000 characters) plus an accuracy level " +
	"(high for thorough premium-tier research, medium for faster standard-tier " +
	"research) and returns a structured report with an executive summary, " +
	"source count, token usage, and cost information."

// Server wires the do_deep_research tool onto an MCP server and runs it over
// the configured transport.
type Server struct {
	mcp     *mcp.Server
	cfg     config.ServerConfig
	metrics *observe.Metrics
	health  *health.Handler
	logger  *slog.Logger
}

// New constructs the MCP server and registers the tool. The input schema is
// derived from the handler's typed argument struct.
func New(cfg config.ServerConfig, h *Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	srv := mcp.NewServer(&mcp.Implementation{Name: "deepscout", Version: Version}, nil)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "do_deep_research",
		Description: toolDescription,
	}, h.DoDeepResearch)

	var checkers []health.Checker
	if rc, ok := h.researcher.(readyChecker); ok {
		checkers = append(checkers, health.Checker{Name: "research_api", Check: rc.Ready})
	}

	return &Server{
		mcp:     srv,
		cfg:     cfg,
		metrics: h.metrics,
		health:  health.New(checkers...),
		logger:  logger,
	}
}

// Run serves MCP until ctx is cancelled. In stdio mode it owns the process
// pipes; in streamable-http mode it serves /mcp alongside /metrics, /healthz,
// and /readyz.
func (s *Server) Run(ctx context.Context) error {
	switch s.cfg.Transport {
	case config.TransportStreamableHTTP:
		return s.runHTTP(ctx)
	default:
		s.logger.Info("serving MCP over stdio")
		return s.mcp.Run(ctx, &mcp.StdioTransport{})
	}
}

func (s *Server) runHTTP(ctx context.Context) error {
	streamable := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil)

	r := chi.NewRouter()
	if s.metrics != nil {
		r.Use(observe.Middleware(s.metrics))
	}
	r.Handle("/mcp", streamable)
	r.Handle("/metrics", promhttp.Handler())
	s.health.Register(r)

	httpSrv := &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: r,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving MCP over streamable HTTP", "listen_addr", s.cfg.ListenAddr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: http shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: http listen on %s: %w", s.cfg.ListenAddr, err)
	}
}
