package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/carteakey/aidar/internal/extract"
	"github.com/carteakey/aidar/internal/pattern"
	"github.com/carteakey/aidar/internal/pipeline"
	"github.com/carteakey/aidar/internal/resilience"
	"github.com/carteakey/aidar/internal/score"
	"github.com/carteakey/aidar/internal/store"
)

// env bundles the wired components most commands need.
type env struct {
	Snapshot *pattern.Snapshot
	Weights  pattern.Weights
	Pipeline *pipeline.Pipeline
	Store    store.Store
}

func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "aidar.db"
		}
		st, err := store.NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close() //nolint:errcheck
			return nil, eris.Wrap(err, "migrate store")
		}
		return st, nil
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close() //nolint:errcheck
			return nil, eris.Wrap(err, "migrate store")
		}
		return st, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv loads the pattern registry and wires the scan pipeline. The
// store is only opened when withStore is set; analyze without --save does
// not need one.
func initEnv(ctx context.Context, withStore bool) (*env, error) {
	snapshot, err := pattern.Load(cfg.Patterns.Dir)
	if err != nil {
		return nil, eris.Wrap(err, "load patterns")
	}
	weights, err := pattern.LoadWeights(cfg.Patterns.Dir)
	if err != nil {
		return nil, eris.Wrap(err, "load weights")
	}

	eval, err := score.NewEvaluator(snapshot)
	if err != nil {
		return nil, err
	}

	var st store.Store
	if withStore {
		st, err = initStore(ctx)
		if err != nil {
			return nil, err
		}
	}

	web := extract.NewHTTPExtractor(extract.HTTPOptions{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		PerHostRate:  cfg.Fetch.PerHostRate,
		PerHostBurst: cfg.Fetch.PerHostBurst,
		Retry: resilience.FromRetryConfig(
			cfg.Fetch.MaxAttempts,
			cfg.Fetch.InitialBackoffMs,
			cfg.Fetch.MaxBackoffMs,
			2.0, 0.2,
		),
	})

	breakerCfg := resilience.FromBreakerConfig(cfg.Scan.BreakerFailureThreshold, cfg.Scan.BreakerResetSecs)
	breakerCfg.ShouldTrip = resilience.IsTransient

	p, err := pipeline.New(pipeline.Deps{
		Evaluator:  eval,
		Weights:    weights,
		Thresholds: score.Thresholds{LikelyHuman: cfg.Scoring.LikelyHumanBelow, LikelyAI: cfg.Scoring.LikelyAIAt},
		Web:        web,
		File:       extract.NewFileExtractor(),
		Store:      st,
		Breakers:   resilience.NewHostBreakers(breakerCfg),
	})
	if err != nil {
		if st != nil {
			st.Close() //nolint:errcheck
		}
		return nil, err
	}

	return &env{Snapshot: snapshot, Weights: weights, Pipeline: p, Store: st}, nil
}
