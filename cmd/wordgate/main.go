// Command wordgate runs the vocabulary study daemon: an SQLite-backed
// item pool fed by word-list sources, an FSRS scheduler, and a web
// surface for studying, word management and settings.
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

	"github.com/spf13/pflag"

	"github.com/example/wordgate/internal/config"
	"github.com/example/wordgate/internal/fsrs"
	"github.com/example/wordgate/internal/storage"
	"github.com/example/wordgate/internal/study"
	syncpkg "github.com/example/wordgate/internal/sync"
	"github.com/example/wordgate/internal/web"
)

func main() {
	def := config.Default()

	flags := pflag.NewFlagSet("wordgate", pflag.ExitOnError)
	flags.String("config", "", "path to a YAML config file")
	flags.String("db_path", def.DBPath, "path to the SQLite database")
	flags.String("listen_addr", def.ListenAddr, "address for the web server")
	flags.String("repos_dir", def.ReposDir, "directory for cloned word-list repositories")
	flags.Duration("sync_interval", def.SyncInterval, "interval between source syncs (0 disables)")
	flags.String("log_level", def.LogLevel, "log level: debug, info, warn or error")
	flags.String("add_source", "", "register a word-list source (path or git URL) and exit")
	flags.Bool("sync", false, "run one sync pass and exit")
	flags.Parse(os.Args[1:])

	configFile, _ := flags.GetString("config")
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, flags, logger); err != nil {
		logger.Error("wordgate failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, flags *pflag.FlagSet, logger *slog.Logger) error {
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One-shot modes.
	if path, _ := flags.GetString("add_source"); path != "" {
		return addSource(ctx, db, path, cfg.ReposDir, logger)
	}
	if once, _ := flags.GetBool("sync"); once {
		return syncpkg.Run(ctx, db, cfg.ReposDir)
	}

	sched, err := fsrs.New(fsrs.Options{
		DesiredRetention: cfg.Scheduler.DesiredRetention,
		MaximumInterval:  cfg.Scheduler.MaximumInterval,
		DisableFuzzing:   cfg.Scheduler.DisableFuzzing,
	})
	if err != nil {
		return err
	}

	engine := study.New(db, sched, study.WithLogger(logger))

	server, err := web.NewServer(db, engine, cfg.ReposDir, logger)
	if err != nil {
		return fmt.Errorf("failed to set up web server: %w", err)
	}

	if cfg.SyncInterval > 0 {
		go syncLoop(ctx, db, cfg.ReposDir, cfg.SyncInterval, logger)
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting web server", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// addSource registers a word-list source and runs one sync pass so its
// words are available immediately.
func addSource(ctx context.Context, db *storage.DB, path, reposDir string, logger *slog.Logger) error {
	existing, err := db.FindSourceByPath(ctx, path)
	if err != nil {
		return err
	}
	if existing != nil {
		logger.Info("source already registered", "path", path)
		return nil
	}

	typ := syncpkg.DetectType(path)
	if _, err := db.InsertSource(ctx, path, typ); err != nil {
		return err
	}
	logger.Info("source registered", "path", path, "type", typ)
	return syncpkg.Run(ctx, db, reposDir)
}

// syncLoop periodically reconciles all sources until the context ends.
func syncLoop(ctx context.Context, db *storage.DB, reposDir string, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := syncpkg.Run(ctx, db, reposDir); err != nil {
				logger.Error("periodic sync failed", "error", err)
			}
		}
	}
}
