package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/evostrat/internal/archive"
	"github.com/cwbudde/evostrat/internal/server"
	"github.com/cwbudde/evostrat/internal/store"
)

var (
	serveAddr      string
	serveDataDir   string
	archiveBackend string
	archivePath    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP job server",
	Long: `Starts the HTTP server that accepts optimization jobs, streams
progress events, writes checkpoints and archives finished runs.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "./data", "Base directory for checkpoints and traces")
	serveCmd.Flags().StringVar(&archiveBackend, "archive", "memory", "Run archive backend: memory, sqlite")
	serveCmd.Flags().StringVar(&archivePath, "archive-path", "", "SQLite database path (sqlite backend)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	checkpoints, err := store.NewFSStore(serveDataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	runs, err := archive.NewArchive(archiveBackend, archivePath)
	if err != nil {
		return fmt.Errorf("failed to open run archive: %w", err)
	}
	defer archive.CloseIfSupported(runs)

	if err := runs.Init(context.Background()); err != nil {
		return fmt.Errorf("failed to init run archive: %w", err)
	}

	srv := server.NewServer(serveAddr, serveDataDir, checkpoints, runs)

	// Run the listener in the background so signals can drive shutdown.
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-sigCh:
		slog.Info("Received signal, shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
