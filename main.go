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

	"musicbox/internal/auth"
	"musicbox/internal/config"
	"musicbox/internal/coverart"
	"musicbox/internal/db"
	"musicbox/internal/enrich"
	"musicbox/internal/fileref"
	"musicbox/internal/library"
	"musicbox/internal/logger"
	"musicbox/internal/metadata"
	"musicbox/internal/scanner"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := logger.ParseLevel(cfg.LogLevel)
	log := logger.NewLogger(logger.Config{Level: level, Format: cfg.LogFormat})
	slog.SetDefault(log)

	if len(args) > 0 && args[0] == "token" {
		return printToken(cfg, args[1:])
	}

	if level > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	paths, err := config.ResolvePaths(cfg.DataDir)
	if err != nil {
		return err
	}

	sqliteDB, err := db.Bootstrap(paths.DBPath)
	if err != nil {
		return err
	}
	defer sqliteDB.Close()

	resolver := fileref.NewResolver(cfg.MusicDir)
	uploads := coverart.NewStore(paths.UploadsDir)
	scannerDomain := scanner.NewService(
		sqliteDB,
		resolver,
		metadata.Taglib{},
		log,
		scanner.WithExtensions(cfg.ScanExtensions...),
		scanner.WithUploadParser(metadata.TagReader{}),
		scanner.WithCoverStore(uploads),
	)

	var watching watchState
	if cfg.WatchEnabled {
		watcher := scanner.NewWatcher(scannerDomain.Root(), scannerDomain, cfg.WatchQuietPeriod, log)
		if err := watcher.Start(); err != nil {
			log.Warn("scanner watcher disabled", "error", err)
		}
		defer watcher.Stop()
		watching = watcher
	}

	if cfg.SyncSchedule != "" {
		scheduler, err := newSyncScheduler(cfg.SyncSchedule, func(ctx context.Context) error {
			_, err := scannerDomain.Sync(ctx)
			return err
		}, log)
		if err != nil {
			return fmt.Errorf("%s: %w", config.KeySyncSchedule, err)
		}
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
		log.Info("scheduled sync enabled", "schedule", cfg.SyncSchedule)
	}

	var enricher enrich.Enricher
	if cfg.GeniusAccessToken != "" {
		enricher = enrich.NewGenius(cfg.GeniusAccessToken, log)
	}

	gate := auth.NewGate(cfg.AuthSecret, cfg.AuthAllowedUser)
	if !gate.Enabled() {
		log.Warn("authentication is not configured, mutation endpoints will reject every request")
	}

	browseRepo := library.NewBrowseRepository(sqliteDB)
	artistInfo := library.NewArtistInfoRepository(sqliteDB)
	pictures := metadata.PictureChain{metadata.TagReader{}, metadata.Taglib{}}

	router := NewRouter(
		gate,
		log,
		NewScannerService(scannerDomain, log),
		NewLibraryService(browseRepo, scannerDomain, log),
		NewArtistService(library.NewAlbumRepository(sqliteDB), artistInfo, enricher, log),
		NewCoverService(coverart.NewSource(sqliteDB, resolver, pictures), coverart.NewRenderer(paths.CoverCacheDir), log),
		NewMusicService(resolver, log),
		NewUploadService(scannerDomain, uploads, artistInfo, log),
		NewDownloadService(sqliteDB, resolver, log),
		NewBootstrapService(browseRepo, scannerDomain, watching, gate.Enabled(), log),
		NewSettingsService(cfg),
	)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.ListenAddr, "musicDir", cfg.MusicDir, "dataDir", paths.BaseDir)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

// printToken mints a bearer token for the allow-listed user.
func printToken(cfg config.Config, args []string) error {
	flags := flag.NewFlagSet("token", flag.ContinueOnError)
	ttl := flags.Duration("ttl", auth.DefaultTokenTTL, "token lifetime")
	if err := flags.Parse(args); err != nil {
		return err
	}

	token, err := auth.NewGate(cfg.AuthSecret, cfg.AuthAllowedUser).Issue(*ttl)
	if err != nil {
		return fmt.Errorf("issue token (set %s and %s): %w", config.KeyAuthSecret, config.KeyAuthAllowedUser, err)
	}

	fmt.Println(token)
	return nil
}
