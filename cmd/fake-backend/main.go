// ABOUTME: Self-contained development double of the analysis backend.
// ABOUTME: Usage: fake-backend [-addr localhost:8000] [-delay 150ms] [-fail-stream]

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
	"time"
)

func main() {
	addr := flag.String("addr", "localhost:8000", "listen address")
	delay := flag.Duration("delay", 150*time.Millisecond, "pause between stream frames")
	failStream := flag.Bool("fail-stream", false, "end every generation with an error frame")
	flag.Parse()

	if err := run(*addr, *delay, *failStream); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(addr string, delay time.Duration, failStream bool) error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	s := newServer(logger, delay, failStream)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("fake backend listening",
			"addr", addr,
			"delay", delay.String(),
			"fail_stream", failStream,
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
