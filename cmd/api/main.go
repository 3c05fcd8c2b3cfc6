package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/namdov3-blip/agribank-crm/internal/audit"
	comprepo "github.com/namdov3-blip/agribank-crm/internal/compensation/adapter/repo"
	compapi "github.com/namdov3-blip/agribank-crm/internal/compensation/api"
	compservice "github.com/namdov3-blip/agribank-crm/internal/compensation/service"
	"github.com/namdov3-blip/agribank-crm/internal/interest"
	ledgerrepo "github.com/namdov3-blip/agribank-crm/internal/ledger/adapter/repo"
	ledgerapi "github.com/namdov3-blip/agribank-crm/internal/ledger/api"
	ledgerservice "github.com/namdov3-blip/agribank-crm/internal/ledger/service"
	"github.com/namdov3-blip/agribank-crm/internal/platform/config"
	"github.com/namdov3-blip/agribank-crm/internal/platform/database"
	"github.com/namdov3-blip/agribank-crm/internal/platform/logger"
	"github.com/namdov3-blip/agribank-crm/internal/platform/server"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the config file")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %s", err)
	}

	// 2. Infrastructure
	appLogger, err := logger.NewLogger(cfg.Server.Mode)
	if err != nil {
		log.Fatalf("Error building logger: %s", err)
	}
	defer func() { _ = appLogger.Sync() }()

	db, err := database.NewPostgresDB(cfg.Database.DSN, cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns, cfg.Server.Mode)
	if err != nil {
		appLogger.Fatal("Database connection failed", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, ledgerrepo.AutoMigrate, comprepo.AutoMigrate, audit.AutoMigrate); err != nil {
			appLogger.Fatal("Schema migration failed", zap.Error(err))
		}
	}

	// 3. Wiring
	recorder := audit.NewRecorder(db)

	// -- Ledger module --
	ledgerSvc := ledgerservice.NewLedgerService(db,
		ledgerrepo.NewAccountRepo(db),
		ledgerrepo.NewTransactionRepo(db),
		recorder,
		appLogger,
	)

	// -- Compensation module --
	txRepo := comprepo.NewTransactionRepo(db)
	households := comprepo.NewHouseholdRepo(db)
	rateSvc := compservice.NewRateService(db, comprepo.NewInterestRepo(db), recorder, appLogger).
		WithDefaultRate(cfg.Interest.DefaultRate)
	disbursementSvc := compservice.NewDisbursementService(db, txRepo, households, rateSvc, ledgerSvc, recorder,
		interest.NewCalculator(cfg.Interest.Location), appLogger)
	projectSvc := compservice.NewProjectService(db, comprepo.NewProjectRepo(db), households, txRepo, ledgerSvc, recorder, appLogger)

	// 4. Server
	srv := server.NewServer(appLogger, cfg.Server.Port, cfg.Server.Mode,
		ledgerapi.NewLedgerHandler(ledgerSvc),
		compapi.NewTransactionHandler(disbursementSvc),
		compapi.NewProjectHandler(projectSvc),
		compapi.NewAdminHandler(rateSvc, projectSvc, recorder, ledgerSvc),
	)

	// 5. Run until signalled, then drain
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case err := <-errCh:
		if err != nil {
			appLogger.Fatal("Server startup failed", zap.Error(err))
		}
	case <-ctx.Done():
		appLogger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Graceful shutdown failed", zap.Error(err))
		}
	}
}
