package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/benoute/fetchmcp"
)

const (
	serverName   = "fetch-mcp-server"
	mcpPath      = "/mcp"
	readTimeout  = 30 * time.Second
	drainTimeout = 5 * time.Second
)

// Version is set at build time with -ldflags "-X main.Version=v1.2.3".
var Version string

// version reports the running build's semantic version.
func version() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "v0.0.0-dev"
}

// app owns the MCP server and whichever transport is serving it. It is built
// once by newApp and torn down once by Shutdown.
type app struct {
	cfg    config
	log    zerolog.Logger
	server *mcp.Server

	mu      sync.Mutex
	closed  bool
	cancel  context.CancelFunc
	httpSrv *http.Server
	addr    net.Addr
	ready   chan struct{}

	readyOnce sync.Once
	once      sync.Once
}

// newApp validates cfg, builds the MCP server and registers the fetch tool.
func newApp(cfg config, logger zerolog.Logger) (*app, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version()}, nil)

	fetcher := fetchmcp.NewFetcher(fetchmcp.FetcherOptions{
		Timeout:      cfg.Timeout,
		MaxBodyBytes: cfg.MaxBodyBytes,
		UserAgent:    cfg.UserAgent,
	})
	registerFetch(server, &fetchHandler{
		fetcher:   fetcher,
		extractor: fetchmcp.NewReadabilityExtractor(),
		metadata:  cfg.Metadata,
		log:       logger.With().Str("tool", toolName).Logger(),
	})

	return &app{
		cfg:    cfg,
		log:    logger,
		server: server,
		ready:  make(chan struct{}),
	}, nil
}

// Run serves the configured transport until ctx is done, Shutdown is
// called, or the transport fails.
func (a *app) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.markReady()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.cancel = cancel
	a.mu.Unlock()

	switch a.cfg.Transport {
	case transportStdio:
		return a.runStdio(ctx)
	case transportHTTP:
		return a.runHTTP(ctx)
	}
	return fmt.Errorf("unknown transport: %s. Use '%s' or '%s'", a.cfg.Transport, transportStdio, transportHTTP)
}

func (a *app) runStdio(ctx context.Context) error {
	a.log.Info().Str("version", version()).Msg("MCP server running on stdio")
	a.markReady()

	err := a.server.Run(ctx, &mcp.StdioTransport{})
	if ctx.Err() != nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (a *app) runHTTP(ctx context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(a.cfg.Host, strconv.Itoa(a.cfg.Port)))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	srv := &http.Server{
		Handler:           a.httpHandler(),
		ReadHeaderTimeout: readTimeout,
	}

	a.mu.Lock()
	a.httpSrv = srv
	a.addr = ln.Addr()
	a.mu.Unlock()
	a.markReady()

	a.log.Info().Str("addr", ln.Addr().String()).Str("version", version()).Msg("MCP server running in HTTP mode")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return nil
}

// httpHandler routes POST, GET and DELETE on /mcp to the streamable HTTP
// transport. Nothing else is served.
func (a *app) httpHandler() http.Handler {
	mcpHandler := mcp.NewStreamableHTTPHandler(
		func(*http.Request) *mcp.Server { return a.server },
		&mcp.StreamableHTTPOptions{Stateless: true},
	)

	mux := http.NewServeMux()
	for _, method := range []string{http.MethodPost, http.MethodGet, http.MethodDelete} {
		mux.Handle(method+" "+mcpPath, mcpHandler)
	}

	return cors.New(cors.Options{
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Content-Type",
			"Authorization",
			"Mcp-Session-Id",
			"mcp-protocol-version",
			"Last-Event-ID",
		},
		ExposedHeaders:   []string{"Mcp-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler(mux)
}

func (a *app) markReady() {
	a.readyOnce.Do(func() { close(a.ready) })
}

// Addr blocks until Run has started serving or has failed, then returns the
// HTTP listen address. It is nil for stdio or when the listener never came up.
func (a *app) Addr() net.Addr {
	<-a.ready
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// Shutdown stops a running transport and releases the listener. It is safe
// to call more than once and before Run.
func (a *app) Shutdown(ctx context.Context) error {
	var err error
	a.once.Do(func() {
		a.mu.Lock()
		a.closed = true
		cancel, srv := a.cancel, a.httpSrv
		a.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if srv != nil {
			if shutdownErr := srv.Shutdown(ctx); shutdownErr != nil && !errors.Is(shutdownErr, http.ErrServerClosed) {
				err = shutdownErr
			}
		}
		a.log.Info().Msg("MCP server stopped")
	})
	return err
}
