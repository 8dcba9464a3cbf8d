package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adapterchannel "github.com/renato0307/sessiond/internal/adapters/channel"
	"github.com/renato0307/sessiond/internal/adapters/watcher"
	"github.com/renato0307/sessiond/internal/config"
	"github.com/renato0307/sessiond/internal/logging"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd runs the channel server, the transcript watcher and optional periodic syncs
type ServeCmd struct {
	Addr         string        `help:"Address to listen on" env:"SESSIOND_LISTEN_ADDR"`
	Agent        string        `help:"Agent runner that answers send_message (echo)"`
	Debounce     time.Duration `help:"Quiet period before a changed transcript directory is reconciled" default:"500ms"`
	NoWatch      bool          `help:"Disable the transcript watcher"`
	SyncInterval time.Duration `help:"Reconcile every project at this interval (0 = watcher only)" default:"0s"`
}

// Run executes the serve command and blocks until SIGINT or SIGTERM
func (s *ServeCmd) Run(cli *CLI) error {
	settings := cli.Settings()
	logging.EnableConsole(os.Stderr, slog.LevelInfo)

	addr := s.Addr
	if addr == "" {
		addr = settings.ListenAddr
	}
	if addr == "" {
		addr = config.DefaultListenAddr
	}
	interval := s.SyncInterval
	if interval == 0 {
		interval = settings.SyncInterval()
	}

	channelService, err := cli.Container.StartChannel(s.Agent)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initial pass so the store reflects transcripts written while we were down
	if _, err := cli.Container.SyncService.SyncAll(ctx, cli.UserID); err != nil {
		logging.Logger.Warn("Initial sync failed", "error", err)
	}

	if !s.NoWatch {
		w, err := watcher.New(cli.Container.Source.Root(), s.Debounce, func(ctx context.Context, dir string) {
			if _, err := cli.Container.SyncService.SyncDir(ctx, dir, cli.UserID); err != nil {
				logging.Logger.Warn("Sync after transcript change failed", "dir", dir, "error", err)
			}
		})
		if err != nil {
			return err
		}
		go func() {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Logger.Error("Transcript watcher stopped", "error", err)
			}
		}()
	}

	if interval > 0 {
		go s.syncPeriodically(ctx, cli, interval)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	server := &http.Server{
		Handler:           adapterchannel.NewServer(channelService).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logging.Logger.Info("Serving session channel",
			"addr", listener.Addr().String(),
			"logs_root", cli.Container.Source.Root(),
			"sync_interval", interval.String(),
			"watch", !s.NoWatch)
		serveErr <- server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown; closing the
	// hub ends their subscriptions and the server side closes them
	channelService.Close()
	cli.Container.Hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	logging.Logger.Info("Server stopped")
	return nil
}

func (s *ServeCmd) syncPeriodically(ctx context.Context, cli *CLI, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			results, err := cli.Container.SyncService.SyncAll(ctx, cli.UserID)
			if err != nil {
				logging.Logger.Warn("Periodic sync failed", "error", err)
				continue
			}
			logging.Logger.Debug("Periodic sync done", "projects", len(results))
		}
	}
}
