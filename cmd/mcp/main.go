package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"helios/api/internal/app"
	"helios/api/internal/config"
	"helios/api/internal/logging"
)

const version = "0.1.0"

func main() {
	transport := flag.String("transport", "stdio", "Transport mode: stdio or http")
	addr := flag.String("addr", ":8090", "Listen address (only used with -transport http)")
	flag.Parse()

	cfg := config.Load()
	// stdout carries the stdio protocol, so logs go to stderr.
	logger := logging.Init(os.Stderr, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	service, closeBackends, err := app.Bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer closeBackends()

	srv := app.NewMCPServer(service, version)

	switch *transport {
	case "stdio":
		logger.Info("helios mcp server starting (stdio)")
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
			logger.Error("server error", "error", err)
		}
	case "http":
		handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return srv
		}, nil)
		server := &http.Server{Addr: *addr, Handler: handler}
		go func() {
			<-ctx.Done()
			server.Close()
		}()
		logger.Info("helios mcp server listening", "addr", *addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	default:
		logger.Error("unknown transport, use stdio or http", "transport", *transport)
	}
}
