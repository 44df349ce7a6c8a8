package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"autogram/internal/config"
	"autogram/internal/credentials"
	"autogram/internal/graph"
	"autogram/internal/hashtags"
	"autogram/internal/logger"
	"autogram/internal/media"
	"autogram/internal/pipeline"
	"autogram/internal/schedule"
	"autogram/internal/staging"
	"autogram/internal/token"
	"autogram/internal/transfer"

	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	shortToken := flag.String("token", "", "Short-lived authorization token (setup command only)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "autogram: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)

	store := credentials.NewFileStore(cfg.CredentialFile)
	graphClient := graph.New(graph.Config{
		BaseURL:            cfg.Graph.BaseURL,
		AppID:              cfg.Graph.AppID,
		AppSecret:          cfg.Graph.AppSecret,
		AccountID:          cfg.Graph.AccountID,
		ProcessingDelayMin: cfg.ProcessingDelayMin(),
		ProcessingDelayMax: cfg.ProcessingDelayMax(),
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flag.Arg(0) == "setup" {
		if err := runSetup(ctx, graphClient, store, *shortToken, log); err != nil {
			log.Error().Err(err).Msg("setup failed")
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg, store, graphClient, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("autogram stopped")
		os.Exit(1)
	}
	log.Info().Msg("autogram stopped")
}

// runSetup performs the one-time exchange of a short-lived authorization
// token for a long-lived credential and persists it.
func runSetup(ctx context.Context, client *graph.Client, store *credentials.FileStore, shortToken string, log zerolog.Logger) error {
	if shortToken == "" {
		fmt.Print("Enter your short-lived token: ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			shortToken = strings.TrimSpace(scanner.Text())
		}
	}
	if shortToken == "" {
		return fmt.Errorf("no token provided (pass -token or enter it at the prompt)")
	}

	cred, err := client.Exchange(ctx, shortToken)
	if err != nil {
		return fmt.Errorf("token exchange failed: %w", err)
	}
	if err := store.Save(cred); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}

	log.Info().
		Str("path", store.Path).
		Time("expires_at", cred.ExpiresAt).
		Msg("long-lived credential saved, autogram is ready to run")
	return nil
}

func run(ctx context.Context, cfg *config.Config, store *credentials.FileStore, graphClient *graph.Client, log zerolog.Logger) error {
	// A missing credential is the one startup condition the daemon cannot
	// work around.
	if _, err := store.Load(); err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return fmt.Errorf("no credential at %s: run `autogram setup` first", store.Path)
		}
		return fmt.Errorf("failed to load credential: %w", err)
	}

	tags, err := hashtags.Load(cfg.HashtagsFile)
	if err != nil {
		return err
	}
	if tags.Len() == 0 {
		log.Warn().Str("path", cfg.HashtagsFile).Msg("no hashtags loaded, captions will have none")
	}

	limits := media.Limits{
		MaxImageBytes: cfg.MaxImageBytes(),
		MaxVideoBytes: cfg.MaxVideoBytes(),
	}
	selector := media.NewSelector(cfg.MediaDir, limits, log)

	sftpTransfer := transfer.NewSFTP(transfer.Config{
		Host:      cfg.Staging.Host,
		Port:      cfg.Staging.Port,
		User:      cfg.Staging.User,
		Password:  cfg.Staging.Password,
		RemoteDir: cfg.Staging.RemoteDir,
	}, log)
	coordinator := staging.NewCoordinator(sftpTransfer, cfg.Staging.PublicBaseURL, log)

	tokenManager := token.NewManager(store, graphClient, cfg.RefreshMargin(), log)

	runner := pipeline.NewRunner(
		selector,
		coordinator,
		tokenManager,
		graphClient,
		tags,
		cfg.HashtagCount,
		limits,
		log,
	)

	scheduler := schedule.NewScheduler(
		schedule.NewStore(cfg.ScheduleFile),
		runner.RunCycle,
		cfg.MinDelay(),
		cfg.MaxDelay(),
		log,
	)

	log.Info().
		Str("media_dir", cfg.MediaDir).
		Str("staging_host", cfg.Staging.Host).
		Dur("min_delay", cfg.MinDelay()).
		Dur("max_delay", cfg.MaxDelay()).
		Msg("starting autogram")

	return scheduler.Run(ctx)
}
