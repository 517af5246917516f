// Package bootstrap provides dependency initialization for the music video API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/avelarde/musicvideo-api/internal/config"
	"github.com/avelarde/musicvideo-api/internal/generation"
	"github.com/avelarde/musicvideo-api/internal/media"
	"github.com/avelarde/musicvideo-api/internal/provider"
	"github.com/avelarde/musicvideo-api/internal/server"
	"github.com/avelarde/musicvideo-api/internal/storage"
	"github.com/avelarde/musicvideo-api/internal/video"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Handlers *server.Handlers
	Close    func() error
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	videos, tracks, projects, closeFn, err := initRepositories(cfg, logger)
	if err != nil {
		return nil, err
	}

	composer := media.NewFFmpegComposer(cfg.FFmpegPath, cfg.FFprobePath)

	opts := generation.Options{
		DefaultWidth:   cfg.DefaultWidth,
		DefaultHeight:  cfg.DefaultHeight,
		FPS:            cfg.VideoFPS,
		MinDurationSec: cfg.MinDurationSec,
		FallbackColor:  cfg.FallbackColor,
		Background:     generation.BackgroundPolicy(cfg.BackgroundPolicy),
		Composition:    generation.CompositionPolicy(cfg.CompositionPolicy),
		UploadOutputs:  cfg.S3Enabled(),
	}
	generator := generation.NewService(videos, tracks, composer, store, logger,
		generation.WithOptions(opts),
	)

	handlerOpts := []server.HandlerOption{server.WithStore(store)}
	if cfg.AIProviderEnabled() {
		client, err := provider.NewClient(cfg.AIProviderURL,
			provider.WithAPIKey(cfg.AIProviderAPIKey),
			provider.WithEndpointPath(cfg.AIProviderEndpointPath),
		)
		if err != nil {
			return nil, fmt.Errorf("create AI provider client: %w", err)
		}
		remote := generation.NewAIService(videos, tracks, client, store, logger)
		handlerOpts = append(handlerOpts, server.WithRemoteGenerator(remote))
		logger.Info("AI provider configured",
			slog.String("url", cfg.AIProviderURL),
		)
	}

	handlers := server.NewHandlers(videos, tracks, projects, generator, logger, handlerOpts...)

	return &Dependencies{
		Handlers: handlers,
		Close:    closeFn,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Store(cfg.MediaRoot, cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewMediaStore(cfg.MediaRoot, cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create media storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("media_root", cfg.MediaRoot),
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}

// initRepositories selects SQLite or in-memory record stores based on
// configuration. The returned close function releases the database
// connection; for memory repositories it is a no-op.
func initRepositories(cfg *config.Config, logger *slog.Logger) (video.Repository, video.TrackRepository, video.ProjectRepository, func() error, error) {
	if !cfg.PersistenceEnabled() {
		logger.Info("in-memory record store configured")
		return video.NewMemoryRepository(),
			video.NewMemoryTrackRepository(),
			video.NewMemoryProjectRepository(),
			func() error { return nil },
			nil
	}

	db, err := video.OpenDB(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	logger.Info("sqlite record store configured",
		slog.String("db_path", cfg.DBPath),
	)
	return video.NewGormRepository(db),
		video.NewGormTrackRepository(db),
		video.NewGormProjectRepository(db),
		func() error { return video.CloseDB(db) },
		nil
}
