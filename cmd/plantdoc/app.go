package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/vbonduro/plantdoc/internal/config"
	"github.com/vbonduro/plantdoc/internal/db"
	"github.com/vbonduro/plantdoc/internal/diagnosis"
	"github.com/vbonduro/plantdoc/internal/logging"
	"github.com/vbonduro/plantdoc/internal/photostore"
	"github.com/vbonduro/plantdoc/internal/photostore/local"
	"github.com/vbonduro/plantdoc/internal/photostore/s3"
	"github.com/vbonduro/plantdoc/internal/service"
	"github.com/vbonduro/plantdoc/internal/store"
	"github.com/vbonduro/plantdoc/internal/vision"
	claudevision "github.com/vbonduro/plantdoc/internal/vision/claude"
	geminivision "github.com/vbonduro/plantdoc/internal/vision/gemini"
	ollamavision "github.com/vbonduro/plantdoc/internal/vision/ollama"
)

// app holds the components shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	service  *service.ConversationService
	database *sql.DB

	closeLog func()
}

// newApp loads configuration and wires the conversation service. Log records
// go to console (may be nil) and LOG_FILE.
func newApp(ctx context.Context, console io.Writer) (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closeLog, err := logging.New(cfg.LogLevel, cfg.LogFile, console)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, closeLog: closeLog}

	roles, err := vision.LoadRoles(cfg.RolesFile)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}

	gateway, err := newGateway(ctx, cfg, roles)
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("vision backend ready", "backend", gateway.Name())

	machine := diagnosis.NewMachine(gateway, diagnosis.ParseConfirmPolicy(cfg.ConfirmPolicy), logger)

	if !cfg.ArchiveEnabled() {
		logger.Info("diagnosis archive disabled")
		a.service = service.NewConversationService(machine, nil, nil, logger)
		return a, nil
	}

	if err := a.openArchive(); err != nil {
		a.Close()
		return nil, err
	}
	photoStg, err := newPhotoStore(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("diagnosis archive enabled", "db_path", cfg.DBPath, "photo_backend", cfg.PhotoBackend)
	a.service = service.NewConversationService(machine, store.NewReportStore(a.database), photoStg, logger)
	return a, nil
}

func (a *app) openArchive() error {
	database, err := db.Open(a.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.database = database
	return nil
}

func (a *app) Close() {
	if a.database != nil {
		if err := a.database.Close(); err != nil {
			a.logger.Error("failed to close database", "error", err)
		}
	}
	a.closeLog()
}

func newGateway(ctx context.Context, cfg *config.Config, roles vision.Roles) (vision.Gateway, error) {
	switch cfg.VisionBackend {
	case "claude":
		return claudevision.NewClaudeGateway(cfg.ClaudeAPIKey, cfg.ClaudeModel, roles), nil
	case "ollama":
		return ollamavision.NewOllamaGateway(cfg.OllamaHost, cfg.OllamaModel, roles), nil
	case "gemini":
		gw, err := geminivision.NewGeminiGateway(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, roles)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return gw, nil
	default:
		return nil, fmt.Errorf("unknown vision backend %q", cfg.VisionBackend)
	}
}

func newPhotoStore(cfg *config.Config) (photostore.PhotoStore, error) {
	switch cfg.PhotoBackend {
	case "s3":
		st, err := s3.NewS3PhotoStore(s3.Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize photo store: %w", err)
		}
		return st, nil
	default:
		st, err := local.NewLocalPhotoStore(cfg.PhotoPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize photo store: %w", err)
		}
		return st, nil
	}
}
