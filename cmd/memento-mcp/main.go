// Command memento-mcp serves the captured contacts to MCP clients, either over
// stdio (the default) or over Streamable HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/memento/internal/config"
	"github.com/MrWong99/memento/internal/contacts"
)

var version = "dev"

const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to the YAML configuration file; sink.output_dir is served")
	dir := flag.String("dir", "", "contact directory to serve; overrides -config")
	httpAddr := flag.String("http", "", "serve Streamable HTTP on this address instead of stdio")
	flag.Parse()

	// stdout carries the protocol in stdio mode, so logs go to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	path := *dir
	if path == "" {
		path = config.DefaultOutputDir
		if *configPath != "" {
			cfg, err := config.LoadFile(*configPath, config.ValidateServer)
			if err != nil {
				fmt.Fprintf(os.Stderr, "memento-mcp: %v\n", err)
				return 1
			}
			path = cfg.Sink.OutputDir
		}
	}

	d, err := contacts.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "memento-mcp: %v\n", err)
		return 1
	}
	server := contacts.NewServer(d, version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *httpAddr == "" {
		slog.Info("memento-mcp serving over stdio", "dir", d.Path())
		if err := server.Run(ctx, &mcpsdk.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("mcp server error", "err", err)
			return 1
		}
		return 0
	}

	srv := &http.Server{
		Addr: *httpAddr,
		Handler: mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
			return server
		}, nil),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("memento-mcp serving over HTTP", "addr", *httpAddr, "dir", d.Path())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		slog.Error("http server error", "err", err)
		return 1
	}
	return 0
}
