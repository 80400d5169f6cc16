package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/andescap/factoring-console/internal/archive"
	"github.com/andescap/factoring-console/internal/auth"
	"github.com/andescap/factoring-console/internal/config"
	"github.com/andescap/factoring-console/internal/dashboard"
	"github.com/andescap/factoring-console/internal/domain/entity"
	"github.com/andescap/factoring-console/internal/export"
	"github.com/andescap/factoring-console/internal/gestiones"
	"github.com/andescap/factoring-console/internal/insight"
	consolehttp "github.com/andescap/factoring-console/internal/interfaces/http"
	"github.com/andescap/factoring-console/internal/orchestrator"
	"github.com/andescap/factoring-console/internal/submission"
	"github.com/andescap/factoring-console/pkg/database"
	"github.com/andescap/factoring-console/pkg/utils"
)

func main() {
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting factoring console",
		zap.Int("port", cfg.Server.Port),
		zap.String("orchestrator", cfg.Orchestrator.BaseURL))

	db, err := database.Open(database.Config{
		Path:            cfg.Archive.Path,
		MaxOpenConns:    cfg.Archive.MaxOpenConns,
		MaxIdleConns:    cfg.Archive.MaxIdleConns,
		ConnMaxLifetime: cfg.Archive.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to open archive database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(context.Background(), cfg.Archive.MigrationsDir); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	var tokens orchestrator.TokenSource = auth.ContextTokens{}
	if cfg.Orchestrator.ServiceToken != "" {
		tokens = auth.StaticTokens(cfg.Orchestrator.ServiceToken)
	}

	client := orchestrator.NewClient(orchestrator.Config{
		BaseURL:   cfg.Orchestrator.BaseURL,
		SubmitURL: cfg.Orchestrator.SubmitURL,
		Timeout:   cfg.Orchestrator.Timeout,
	}, tokens, logger)

	store := archive.NewStore(db, logger)

	controller := gestiones.NewController(client, logger)
	controller.OnComplete(func(ctx context.Context, op entity.Operation) {
		actor, _ := auth.ActorFrom(ctx)
		if err := store.ArchiveOperation(ctx, &op, actor.Email, time.Now()); err != nil {
			logger.Error("Failed to archive completed operation",
				zap.String("operation_id", op.ID), zap.Error(err))
		}
	})

	dashboardSvc := dashboard.NewService(client, dashboard.Config{
		PlacementGoal: decimal.NewFromFloat(cfg.Dashboard.PlacementGoal),
		USDRate:       decimal.NewFromFloat(cfg.Dashboard.USDRate),
	}, logger)

	submitter := submission.NewService(client, submission.NewFitzVerifier(logger), logger)

	advisor := insight.NewAdvisor(
		cfg.Insight.APIKey,
		cfg.Insight.Model,
		cfg.Insight.Temperature,
		logger,
	)

	reporter := export.NewReporter(logger)

	resolver := auth.NewResolver(cfg.Auth.Roles, auth.Role(cfg.Auth.DefaultRole))

	handlers := consolehttp.NewHandlers(controller, dashboardSvc, submitter, advisor, reporter, store, logger)
	server := consolehttp.NewServer(consolehttp.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, resolver, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	// Let outstanding optimistic mutations finish persisting.
	controller.Close()
	controller.Wait()
	logger.Info("Server exited")
}
