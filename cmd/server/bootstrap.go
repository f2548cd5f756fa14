package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/agentdesk/internal/api"
	"github.com/charlesng35/agentdesk/internal/app"
	"github.com/charlesng35/agentdesk/internal/app/maintenance"
	iauth "github.com/charlesng35/agentdesk/internal/auth"
	"github.com/charlesng35/agentdesk/internal/database"
	"github.com/charlesng35/agentdesk/internal/monitoring"
	"github.com/charlesng35/agentdesk/internal/monitoring/checks"
	"github.com/charlesng35/agentdesk/internal/security"
	"github.com/charlesng35/agentdesk/internal/services"
	"github.com/charlesng35/agentdesk/internal/store/gormstore"
	"github.com/charlesng35/agentdesk/pkg/crypto"
	"github.com/charlesng35/agentdesk/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB          *gorm.DB
	Store       *gormstore.Store
	Sessions    *iauth.SessionService
	Agents      *services.AgentService
	Invitations *services.InvitationService
	Roles       *services.CustomRoleService
	Cleaner     *maintenance.Cleaner
	Health      *monitoring.HealthManager
	Router      *gin.Engine
}

// bootstrapRuntime initialises the database, services, and the HTTP router.
func bootstrapRuntime(cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	if log == nil {
		log = logger.WithModule("bootstrap")
	}
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			_ = stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Store, err = gormstore.New(stack.DB)
	if err != nil {
		return nil, err
	}

	hasher, err := crypto.NewCredentialHasher(cfg.Auth.HasherConfig()...)
	if err != nil {
		return nil, fmt.Errorf("initialise credential hasher: %w", err)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Sessions, err = iauth.NewSessionService(stack.Store, jwtSvc, cfg.Auth.SessionServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise session service: %w", err)
	}

	stack.Agents, err = services.NewAgentService(stack.Store, hasher, stack.Sessions,
		services.WithLockoutPolicy(cfg.Auth.LockoutConfig()),
		services.WithLockFailClosed(cfg.Auth.Lockout.FailClosed),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise agent service: %w", err)
	}

	stack.Invitations, err = services.NewInvitationService(stack.Store, hasher,
		services.WithInvitationTTL(cfg.Auth.InvitationConfig()),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise invitation service: %w", err)
	}

	stack.Roles, err = services.NewCustomRoleService(stack.Store)
	if err != nil {
		return nil, fmt.Errorf("initialise custom role service: %w", err)
	}

	if cfg.Maintenance.Enabled {
		stack.Cleaner = maintenance.NewCleaner(stack.Sessions, maintenance.WithSessionSchedule(cfg.Maintenance.SessionSchedule))
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Health = monitoring.NewHealthManager()
	stack.Health.RegisterReadiness(checks.Database(pingDatabase(stack.DB), 0))
	if stack.Cleaner != nil {
		stack.Health.RegisterReadiness(checks.Maintenance(stack.Cleaner, 0))
	}

	audit := security.NewAuditService(stack.Store.Agents(), jwtSvc, cfg)
	result := audit.Report(context.Background(), log)
	log.Info("security audit completed",
		zap.Int("pass", result.Summary[string(security.StatusPass)]),
		zap.Int("warn", result.Summary[string(security.StatusWarn)]),
		zap.Int("fail", result.Summary[string(security.StatusFail)]),
	)

	rl := cfg.Server.RateLimit
	stack.Router, err = api.NewRouter(api.Dependencies{
		Store:       stack.Store,
		JWT:         jwtSvc,
		Sessions:    stack.Sessions,
		Agents:      stack.Agents,
		Invitations: stack.Invitations,
		Roles:       stack.Roles,
		Audit:       audit,
		Health:      stack.Health,
		Global:      api.RateLimit{Requests: rl.Requests, Window: rl.Window},
		Login:       api.RateLimit{Requests: rl.LoginRequests, Window: rl.LoginWindow},
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs and releases resources, collecting every failure.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) error {
	if s == nil {
		return nil
	}

	var errs error

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
			errs = multierr.Append(errs, fmt.Errorf("maintenance stop: %w", ctx.Err()))
		}
	}

	if s.DB != nil {
		errs = multierr.Append(errs, closeDatabase(s.DB))
	}

	if errs != nil && log != nil {
		log.Warn("runtime shutdown incomplete", zap.Error(errs))
	}
	return errs
}

func pingDatabase(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return nil, multierr.Append(fmt.Errorf("auto-migrate database: %w", err), closeDatabase(db))
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: database.NormalizeDriver(cfg.Database.Driver),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
		LogSQL: cfg.Database.LogSQL,
		Logger: logger.WithModule("gorm"),
		Pool: database.PoolConfig{
			MaxOpenConns:    cfg.Database.Pool.MaxOpenConns,
			MaxIdleConns:    cfg.Database.Pool.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.Pool.ConnMaxLifetime,
		},
	}

	var auth app.DBAuthConfig
	switch dbCfg.Driver {
	case database.DriverPostgres:
		auth = cfg.Database.Postgres
	case database.DriverMySQL:
		auth = cfg.Database.MySQL
	default:
		// sqlite needs no host settings; unknown drivers fail in Open.
		return dbCfg
	}

	dbCfg.Host = strings.TrimSpace(auth.Host)
	dbCfg.Port = auth.Port
	dbCfg.Name = strings.TrimSpace(auth.Database)
	dbCfg.User = strings.TrimSpace(auth.Username)
	dbCfg.Password = strings.TrimSpace(auth.Password)
	dbCfg.Options = auth.Options
	return dbCfg
}

func closeDatabase(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("obtain sql db: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
