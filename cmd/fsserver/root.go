package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/reactmesh/fsserver"
	"github.com/hupe1980/reactmesh/logging"
)

type flags struct {
	root      string
	maxLines  int
	transport string
	addr      string
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "fsserver [root]",
		Short: "Serve sandboxed filesystem tools over MCP",
		Long: `Serve list_directory, read_file and get_file_info over MCP.

Every path is resolved against the root directory and refused when it
resolves outside of it, symlinks included.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				f.root = args[0]
			}

			return run(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVar(&f.root, "root", "", "Directory the tools are confined to (default: working directory)")
	cmd.Flags().IntVar(&f.maxLines, "max-lines", fsserver.DefaultMaxLines, "Default line cap for read_file")
	cmd.Flags().StringVar(&f.transport, "transport", "stdio", "Transport to serve on: stdio or sse")
	cmd.Flags().StringVar(&f.addr, "addr", "localhost:8080", "Listen address for the sse transport")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "text", "Log format: text or json")

	return cmd
}

func run(ctx context.Context, f flags) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if f.root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}

		f.root = wd
	}

	// stdout carries the protocol on stdio, so logs always go to stderr.
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(f.logLevel),
		Format:    f.logFormat,
		Output:    os.Stderr,
		Component: "fsserver",
	})

	srv, err := fsserver.New(f.root, func(o *fsserver.Options) {
		o.MaxLines = f.maxLines
		o.Logger = logger
	})
	if err != nil {
		return err
	}

	logger.Info("fsserver.start", "root", srv.Root(), "transport", f.transport, "max_lines", f.maxLines)

	switch f.transport {
	case "stdio":
		return srv.ServeStdio()
	case "sse":
		return serveSSE(ctx, srv, f.addr, logger)
	default:
		return fmt.Errorf("unknown transport %q (want stdio or sse)", f.transport)
	}
}

func serveSSE(ctx context.Context, srv *fsserver.Server, addr string, logger logging.Logger) error {
	sse := srv.NewSSEServer("http://" + addr)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		errCh <- sse.Start(addr)
	}()

	logger.Info("fsserver.listen", "addr", addr, "endpoint", "http://"+addr+"/sse")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("fsserver.shutdown")

	return sse.Shutdown(shutdownCtx)
}
