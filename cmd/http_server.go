package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medshift/staffing-platform/internal"
	"github.com/medshift/staffing-platform/internal/audit"
	auditpg "github.com/medshift/staffing-platform/internal/audit/postgres"
	"github.com/medshift/staffing-platform/internal/authz"
	"github.com/medshift/staffing-platform/internal/facility"
	facilitypg "github.com/medshift/staffing-platform/internal/facility/postgres"
	"github.com/medshift/staffing-platform/internal/identity"
	identitypg "github.com/medshift/staffing-platform/internal/identity/postgres"
	"github.com/medshift/staffing-platform/internal/session"
	sessionpg "github.com/medshift/staffing-platform/internal/session/postgres"
	"github.com/medshift/staffing-platform/internal/transport/middleware"
	"github.com/medshift/staffing-platform/internal/transport/rest"
	"github.com/medshift/staffing-platform/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config          *internal.Config
	DB              *sqlx.DB
	GormDB          *gorm.DB
	Router          *chi.Mux
	Logger          *slog.Logger
	Authorizer      *middleware.Authorizer
	SessionHandler  *session.Handler
	FacilityHandler *facility.Handler
	AuditHandler    *audit.Handler
	Recorder        *audit.Recorder
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		// drains buffered audit entries before the DB goes away
		deps.Recorder.Close()
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) {
	rest.RegisterAllRoutes(
		deps.Router,
		deps.DB,
		deps.Authorizer,
		deps.SessionHandler,
		deps.FacilityHandler,
		deps.AuditHandler,
		deps.Config.Server.AllowedOrigins,
		deps.Logger,
	)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Format, config.Observability.Logging.Level)
	log := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGormDB(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	// repositories
	identityRepo := identitypg.NewRepository(gormDB)
	sessionStore := sessionpg.NewStore(gormDB)
	facilityRepo := facilitypg.NewRepository(gormDB)
	auditRepo := auditpg.NewRepository(gormDB)

	// authorization plumbing
	resolverCache := authz.NewResolverCache(config.Security.PermissionCacheTTL)
	impersonationGate := authz.NewImpersonationGate(resolverCache)

	// services
	identityService := identity.NewService(identityRepo, resolverCache, authz.KnownPermission, config.Security.BCryptCost, log)
	restoreTokens := session.NewJWTRestoreTokenGenerator(config.Security.RestoreTokenSecret, config.Security.RestoreTokenTTL)
	recorder, err := audit.NewRecorder(auditRepo, log, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audit recorder: %w", err)
	}
	sessionService := session.NewService(sessionStore, identityService, impersonationGate, restoreTokens, recorder, config.Security.SessionTTL, log)
	facilityService := facility.NewService(facilityRepo, log)
	auditService := audit.NewService(auditRepo, log)

	// transport
	authorizer := middleware.NewAuthorizer(sessionService, resolverCache, recorder, log)
	sessionHandler := session.NewHandler(sessionService)
	facilityHandler := facility.NewHandler(facilityService, recorder)
	auditHandler := audit.NewHandler(auditService)

	return &Dependencies{
		Config:          config,
		Logger:          log,
		DB:              db,
		GormDB:          gormDB,
		Router:          chi.NewRouter(),
		Authorizer:      authorizer,
		SessionHandler:  sessionHandler,
		FacilityHandler: facilityHandler,
		AuditHandler:    auditHandler,
		Recorder:        recorder,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGormDB wraps the existing pgx connection pool so the ORM and
// the raw handle share one pool.
func initGormDB(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
}
