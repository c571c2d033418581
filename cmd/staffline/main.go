package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/staffline-labs/staffline-go/internal/auditexport"
	"github.com/staffline-labs/staffline-go/internal/domain"
	"github.com/staffline-labs/staffline-go/internal/platform/auditlog"
	"github.com/staffline-labs/staffline-go/internal/platform/auth"
	"github.com/staffline-labs/staffline-go/internal/platform/env"
	"github.com/staffline-labs/staffline-go/internal/platform/httpserver"
	"github.com/staffline-labs/staffline-go/internal/platform/logging"
	"github.com/staffline-labs/staffline-go/internal/platform/objectstore"
	"github.com/staffline-labs/staffline-go/internal/platform/policy"
	platformpg "github.com/staffline-labs/staffline-go/internal/platform/postgres"
	"github.com/staffline-labs/staffline-go/internal/repo"
	"github.com/staffline-labs/staffline-go/internal/repo/memory"
	pgrepo "github.com/staffline-labs/staffline-go/internal/repo/postgres"
	"github.com/staffline-labs/staffline-go/internal/service/approvals"
	"github.com/staffline-labs/staffline-go/internal/service/contracts"
	"github.com/staffline-labs/staffline-go/internal/service/txn"
)

const serviceName = "staffline"

const (
	storeMemory   = "memory"
	storePostgres = "postgres"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	logCfg, err := logging.ConfigFromEnv()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("invalid logging config", "error", err)
		os.Exit(2)
	}
	logger, logCloser := logging.New(logCfg, serviceName)
	defer func() { _ = logCloser.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if code := run(ctx, logger); code != 0 {
		stop()
		_ = logCloser.Close()
		os.Exit(code)
	}
}

func run(ctx context.Context, logger *slog.Logger) int {
	srvCfg, err := httpserver.ConfigFromEnv(serviceName)
	if err != nil {
		logger.Error("invalid http config", "error", err)
		return 2
	}
	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		return 2
	}
	pol, err := policy.Load(env.String("STAFFLINE_POLICY_FILE", ""))
	if err != nil {
		logger.Error("invalid workflow policy", "error", err)
		return 2
	}
	exportCfg, err := auditexport.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid audit export config", "error", err)
		return 2
	}

	var readiness []httpserver.ReadinessCheck

	var (
		uow repo.UnitOfWork
		db  *sql.DB
	)
	switch storeKind := strings.ToLower(strings.TrimSpace(env.String("STAFFLINE_STORE", storePostgres))); storeKind {
	case storePostgres:
		dbCfg, err := platformpg.ConfigFromEnv()
		if err != nil {
			logger.Error("invalid database config", "error", err)
			return 2
		}
		db, err = platformpg.Open(ctx, dbCfg)
		if err != nil {
			logger.Error("database unavailable", "error", err)
			return 1
		}
		defer func() { _ = db.Close() }()
		if dbCfg.EnsureSchema {
			if err := pgrepo.EnsureSchema(ctx, db); err != nil {
				logger.Error("schema setup failed", "error", err)
				return 1
			}
		}
		store := pgrepo.NewStore(db)
		if path := env.String("STAFFLINE_STAFF_FILE", ""); path != "" {
			if err := seedStaff(ctx, path, pgrepo.NewStaffStore(db).PutStaff); err != nil {
				logger.Error("staff seed failed", "error", err)
				return 1
			}
		}
		uow = store
		readiness = append(readiness, httpserver.ReadinessCheck{Name: "postgres", Check: store.Ping})
	case storeMemory:
		store := memory.NewStore()
		if path := env.String("STAFFLINE_STAFF_FILE", ""); path != "" {
			err := seedStaff(ctx, path, func(_ context.Context, s domain.Staff) error {
				store.PutStaff(s)
				return nil
			})
			if err != nil {
				logger.Error("staff seed failed", "error", err)
				return 1
			}
		}
		uow = store
		logger.Warn("using in-memory store; state is lost on restart")
	default:
		logger.Error("invalid store", "error", fmt.Sprintf("STAFFLINE_STORE must be one of: memory, postgres (got %q)", storeKind))
		return 2
	}

	resolver, err := newRoleResolver(authCfg, db)
	if err != nil {
		logger.Error("invalid role source", "error", err)
		return 2
	}

	exporter, checks, err := newExporter(ctx, logger, exportCfg)
	if err != nil {
		logger.Error("audit export unavailable", "error", err)
		return 1
	}
	readiness = append(readiness, checks...)

	runner := txn.NewRunner(uow, txn.WithExporter(exporter), txn.WithLogger(logger))

	mux := http.NewServeMux()
	authenticator, err := newAuthenticator(ctx, authCfg, mux)
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		return 2
	}
	handler := newHandler(logger, mux, runner, resolver, pol, authenticator, readiness...)

	if err := httpserver.Run(ctx, logger, srvCfg, handler); err != nil {
		logger.Error("server failed", "error", err)
		return 1
	}
	return 0
}

// newHandler mounts probes and the workflow API on mux and wraps them with
// authentication and request provenance.
func newHandler(logger *slog.Logger, mux *http.ServeMux, runner *txn.Runner, resolver auth.RoleResolver, pol policy.Policy, authenticator auth.Authenticator, readiness ...httpserver.ReadinessCheck) http.Handler {
	approvalSvc := approvals.New(runner, resolver, pol)
	contractSvc := contracts.New(runner, resolver, pol, approvalSvc)

	mux.HandleFunc("GET /healthz", httpserver.Healthz(serviceName))
	mux.HandleFunc("GET /readyz", httpserver.Readyz(serviceName, 750*time.Millisecond, readiness...))
	newStafflineAPI(logger, approvalSvc, contractSvc).register(mux)

	handler := auth.Middleware{
		Logger:        logger,
		Authenticator: authenticator,
		Authorize:     auth.ResolverAuthorizer(resolver),
		Audit:         denyAuditor(runner),
		SkipPrefixes:  []string{"/healthz", "/readyz", "/auth/"},
	}.Wrap(mux)
	return httpserver.Wrap(logger, serviceName, handler)
}

func seedStaff(ctx context.Context, path string, put func(context.Context, domain.Staff) error) error {
	staff, err := loadStaffSeed(path)
	if err != nil {
		return err
	}
	for _, s := range staff {
		if err := put(ctx, s); err != nil {
			return fmt.Errorf("seed staff %s: %w", s.ID, err)
		}
	}
	return nil
}

func newAuthenticator(ctx context.Context, cfg auth.Config, mux *http.ServeMux) (auth.Authenticator, error) {
	switch cfg.Mode {
	case auth.ModeOIDC:
		oidcAuth, err := auth.NewOIDCAuthenticator(ctx, cfg)
		if err != nil {
			return nil, err
		}
		oidcAuth.Register(mux)
		return oidcAuth, nil
	case auth.ModeGateway:
		return auth.NewGatewayAuthenticator(cfg)
	case auth.ModeDev:
		return auth.NewDevAuthenticator(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported AUTH_MODE %q", cfg.Mode)
	}
}

func newRoleResolver(cfg auth.Config, db *sql.DB) (auth.RoleResolver, error) {
	switch cfg.RoleSource {
	case auth.RoleSourceFile:
		return auth.LoadDirectory(cfg.RoleFile)
	case auth.RoleSourcePostgres:
		if db == nil {
			return nil, errors.New("AUTH_ROLE_SOURCE=postgres requires STAFFLINE_STORE=postgres")
		}
		return pgrepo.NewRoleStore(db), nil
	case auth.RoleSourceClaims:
		return auth.ClaimsResolver{}, nil
	default:
		return nil, fmt.Errorf("unsupported AUTH_ROLE_SOURCE %q", cfg.RoleSource)
	}
}

func newExporter(ctx context.Context, logger *slog.Logger, cfg auditexport.Config) (auditexport.Exporter, []httpserver.ReadinessCheck, error) {
	switch cfg.Mode {
	case auditexport.ModeNDJSON:
		return auditexport.NewNDJSONExporter(os.Stdout), nil, nil
	case auditexport.ModeObjectStore:
		storeCfg, err := objectstore.ConfigFromEnv()
		if err != nil {
			return nil, nil, err
		}
		client, err := objectstore.NewMinIOClient(storeCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("minio client: %w", err)
		}
		if err := objectstore.EnsureBucket(ctx, client, storeCfg); err != nil {
			return nil, nil, err
		}
		exporter := auditexport.NewArchiveExporter(client, storeCfg.BucketAudit, storeCfg.Prefix, cfg.Breaker, logger)
		check := httpserver.ReadinessCheck{
			Name: "audit_archive",
			Check: func(ctx context.Context) error {
				return objectstore.CheckBucket(ctx, client, storeCfg)
			},
		}
		return exporter, []httpserver.ReadinessCheck{check}, nil
	default:
		return auditexport.NoopExporter{}, nil, nil
	}
}

// denyAuditor records refused requests in the audit log through the same
// unit of work and exporter as workflow events.
func denyAuditor(runner *txn.Runner) auth.AuditFunc {
	return func(ctx context.Context, event auth.DenyEvent) error {
		auditCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
		defer cancel()
		return runner.Run(auditCtx, func(ctx context.Context, tx *txn.Tx) error {
			return tx.Append(ctx, auditlog.FromDeny(serviceName, event))
		})
	}
}
