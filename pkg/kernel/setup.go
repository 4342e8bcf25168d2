package kernel

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mindburn-Labs/turnkernel/pkg/config"
	"github.com/Mindburn-Labs/turnkernel/pkg/governance"
	"github.com/Mindburn-Labs/turnkernel/pkg/identity"
	"github.com/Mindburn-Labs/turnkernel/pkg/observability"
	"github.com/Mindburn-Labs/turnkernel/pkg/store"
)

// Open builds a kernel from cfg: the configured thread store, governance
// policy, identity verifier, tenant limiter and telemetry. The returned close
// func releases every resource Open acquired.
func Open(ctx context.Context, cfg *config.Config) (*Kernel, func(context.Context) error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("kernel: %w", err)
	}

	var closers []func(context.Context) error
	closeAll := func(ctx context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i](ctx))
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (*Kernel, func(context.Context) error, error) {
		_ = closeAll(ctx)
		return nil, nil, err
	}

	st, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeStore)

	k, err := New(st)
	if err != nil {
		return fail(err)
	}

	gov, err := governance.NewEngine(cfg.Governance)
	if err != nil {
		return fail(fmt.Errorf("kernel: governance policy: %w", err))
	}
	k.WithGovernance(gov).
		WithResumePolicy(cfg.Resume).
		WithLimiter(NewTenantLimiter(cfg.Limits.TurnsPerSecond, cfg.Limits.Burst))

	if cfg.Identity.SigningSecret != "" {
		tm, err := identity.NewTokenManager([]byte(cfg.Identity.SigningSecret), cfg.Identity.Issuer, cfg.Identity.Audience)
		if err != nil {
			return fail(fmt.Errorf("kernel: identity: %w", err))
		}
		k.WithIdentity(tm)
	}

	if cfg.OTel.Enabled {
		oc := observability.DefaultConfig()
		oc.Enabled = true
		oc.OTLPEndpoint = cfg.OTel.Endpoint
		oc.Insecure = cfg.OTel.Insecure
		oc.ServiceName = cfg.OTel.ServiceName
		tel, err := observability.New(ctx, oc)
		if err != nil {
			return fail(fmt.Errorf("kernel: telemetry: %w", err))
		}
		k.WithTelemetry(tel)
		closers = append(closers, tel.Shutdown)
	}

	k.logger.InfoContext(ctx, "kernel ready",
		"store", cfg.Store.Backend,
		"policy_hash", gov.PolicyHash(),
		"text_identity", k.tokens != nil,
		"telemetry", cfg.OTel.Enabled,
	)
	return k, closeAll, nil
}

func openStore(ctx context.Context, sc config.StoreConfig) (store.ThreadStore, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	switch sc.Backend {
	case config.BackendMemory:
		return store.NewMemoryStore(), noop, nil
	case config.BackendSQLite, config.BackendPostgres:
		dialect := store.DialectSQLite
		if sc.Backend == config.BackendPostgres {
			dialect = store.DialectPostgres
		}
		db, err := store.OpenSQL(dialect, sc.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("kernel: open %s: %w", sc.Backend, err)
		}
		s := store.NewSQLStore(db, dialect)
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("kernel: migrate %s: %w", sc.Backend, err)
		}
		return s, func(context.Context) error { return db.Close() }, nil
	case config.BackendRedis:
		s := store.NewRedisStore(sc.RedisAddr, sc.RedisPassword, sc.RedisDB, sc.RedisTTL)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, nil, fmt.Errorf("kernel: redis %s: %w", sc.RedisAddr, err)
		}
		return s, func(context.Context) error { return s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("kernel: unknown store backend %q", sc.Backend)
	}
}
