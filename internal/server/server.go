// Package server exposes snapshots and actions as Model Context Protocol
// tools.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/mj1618/uibridge/internal/dispatch"
	"github.com/mj1618/uibridge/internal/platform"
	"github.com/mj1618/uibridge/internal/stability"
	"github.com/mj1618/uibridge/internal/uithread"
	"github.com/mj1618/uibridge/internal/version"
)

// Transports accepted by Serve.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// DefaultCacheTTL is how long a snapshot answers reads before the screen
// is captured again.
const DefaultCacheTTL = 500 * time.Millisecond

// Options wires a Server.
type Options struct {
	Dispatcher *dispatch.Dispatcher
	Waiter     *stability.Waiter
	Observer   platform.LayoutObserver // optional; feeds the waiter
	Clock      uithread.Clock          // nil = wall clock
	CacheTTL   time.Duration           // 0 = DefaultCacheTTL, negative disables reuse
}

// Server holds the MCP server and the collaborators its tools drive.
// Tool calls are serialized: one snapshot or action at a time.
type Server struct {
	mu     sync.Mutex
	disp   *dispatch.Dispatcher
	waiter *stability.Waiter
	obs    platform.LayoutObserver
	clock  uithread.Clock
	cache  *snapshotCache
	mcp    *mcpserver.MCPServer
	logger *zap.Logger
}

// New creates a Server with every tool registered.
func New(opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = uithread.RealClock()
	}
	ttl := opts.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	s := &Server{
		disp:   opts.Dispatcher,
		waiter: opts.Waiter,
		obs:    opts.Observer,
		clock:  opts.Clock,
		cache:  newSnapshotCache(ttl, opts.Clock.Now),
		logger: logger.Named("mcp"),
	}
	s.mcp = mcpserver.NewMCPServer("uibridge", version.Version)
	s.registerTools()
	return s
}

// MCP returns the underlying MCP server.
func (s *Server) MCP() *mcpserver.MCPServer { return s.mcp }

// Serve runs the layout observer and the MCP transport until ctx is done
// or the transport ends.
func (s *Server) Serve(ctx context.Context, transport string, port int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()
	if s.obs != nil && s.waiter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.obs.Observe(ctx, s.waiter.Notify); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn("layout observer stopped", zap.Error(err))
			}
		}()
	}

	switch transport {
	case TransportStdio:
		s.logger.Info("serving MCP", zap.String("transport", transport))
		return mcpserver.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
	case TransportHTTP:
		addr := fmt.Sprintf(":%d", port)
		httpServer := mcpserver.NewStreamableHTTPServer(s.mcp)
		stop := context.AfterFunc(ctx, func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			httpServer.Shutdown(shutdownCtx)
		})
		defer stop()
		s.logger.Info("serving MCP", zap.String("transport", transport), zap.String("addr", addr))
		if err := httpServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	default:
		return fmt.Errorf("unsupported transport: %s (use stdio or http)", transport)
	}
}

func (s *Server) registerTools() {
	s.mcp.AddTool(
		mcp.NewTool("snapshot",
			mcp.WithDescription("Capture the current screen as one unified element tree. Every node carries an index for act; indices are only valid for the generation they were returned with."),
			mcp.WithString("format", mcp.Description("Output format: yaml (default), json or xml")),
			mcp.WithBoolean("fresh", mcp.Description("Always capture again instead of reusing a snapshot taken moments ago")),
		),
		s.handleSnapshot,
	)

	s.mcp.AddTool(
		mcp.NewTool("act",
			mcp.WithDescription("Perform an action on a node of the current snapshot, then wait for the screen to settle"),
			mcp.WithString("action", mcp.Required(), mcp.Description("Action to perform"),
				mcp.Enum("click", "input", "scroll", "long-click", "go-back", "go-home")),
			mcp.WithNumber("index", mcp.Description("Node index from the snapshot (not needed for go-back and go-home)")),
			mcp.WithString("input_text", mcp.Description("Text to enter for input")),
			mcp.WithString("direction", mcp.Description("Scroll direction: up, down, left, right")),
			mcp.WithString("generation", mcp.Description("Snapshot generation the index belongs to; rejected when stale")),
			mcp.WithBoolean("wait", mcp.Description("Wait for the screen to settle after the action (default: true)")),
		),
		s.handleAct,
	)

	s.mcp.AddTool(
		mcp.NewTool("find",
			mcp.WithDescription("Find nodes whose text, description or resource id contains the given text"),
			mcp.WithString("text", mcp.Required(), mcp.Description("Text to search for (case-insensitive)")),
			mcp.WithBoolean("clickable", mcp.Description("Only return nodes that accept a click")),
		),
		s.handleFind,
	)

	s.mcp.AddTool(
		mcp.NewTool("wait",
			mcp.WithDescription("Block until the screen settles, then capture it"),
			mcp.WithBoolean("first_load", mcp.Description("Use the single first-load delay, as after starting a new task")),
			mcp.WithNumber("timeout_ms", mcp.Description("Give up after this many milliseconds")),
		),
		s.handleWait,
	)
}

// waitLimit bounds one settle cycle: an action cycle ends at the latest one
// ceiling after the first layout change, which itself comes within one
// ceiling of arming.
func (s *Server) waitLimit() time.Duration {
	t := s.waiter.Timing()
	return t.FirstLoad + 2*t.Ceiling + time.Second
}
