package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"

	"github.com/codewandler/lrukv-go/adapters/leveldb"
	"github.com/codewandler/lrukv-go/adapters/mongo"
	"github.com/codewandler/lrukv-go/adapters/nats"
	"github.com/codewandler/lrukv-go/adapters/postgres"
	"github.com/codewandler/lrukv-go/adapters/redis"
	"github.com/codewandler/lrukv-go/adapters/s3"
	"github.com/codewandler/lrukv-go/adapters/zstd"
	"github.com/codewandler/lrukv-go/ports/kv"
)

// opener resolves the backend's kv.Opener. Adapter configs are parsed from
// the environment only for the selected backend, since each has its own
// required variables.
func opener(cfg config, lt *loadtestT) (kv.Opener, error) {
	open, err := backendOpener(cfg, lt)
	if err != nil {
		return nil, err
	}
	if cfg.Compress > 0 {
		open = zstd.Opener(open, cfg.Compress)
	}
	return open, nil
}

func backendOpener(cfg config, lt *loadtestT) (kv.Opener, error) {
	if cfg.Container && !containerBackends[cfg.Backend] {
		return nil, fmt.Errorf("backend %q cannot run in a container", cfg.Backend)
	}

	switch cfg.Backend {
	case "mem":
		return kv.MemOpener(), nil

	case "leveldb":
		return leveldb.Opener(), nil

	case "nats":
		if cfg.Container {
			return nats.Opener(nats.ReuseConnection(nats.NewTestContainer(lt))), nil
		}
		cc, err := env.ParseAs[nats.ConnConfig]()
		if err != nil {
			return nil, err
		}
		return nats.Opener(nats.ReuseConnection(nats.Connect(cc))), nil

	case "redis":
		if cfg.Container {
			return redis.Opener(redis.NewTestContainer(lt)), nil
		}
		rc, err := env.ParseAs[redis.Config]()
		if err != nil {
			return nil, err
		}
		return redis.Opener(rc), nil

	case "postgres":
		if cfg.Container {
			return postgres.Opener(postgres.NewTestContainer(lt)), nil
		}
		pc, err := env.ParseAs[postgres.Config]()
		if err != nil {
			return nil, err
		}
		return postgres.Opener(pc), nil

	case "mongo":
		if cfg.Container {
			mc := mongo.NewTestContainer(lt)
			mc.Log = lt.log
			return mongo.Opener(mc), nil
		}
		mc, err := env.ParseAs[mongo.Config]()
		if err != nil {
			return nil, err
		}
		mc.Log = lt.log
		return mongo.Opener(mc), nil

	case "s3":
		sc, err := env.ParseAs[s3.Config]()
		if err != nil {
			return nil, err
		}
		sc.Log = lt.log
		return s3.Opener(sc), nil
	}

	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// === Testing Helper ===

// loadtestT lets the adapters' container helpers run outside of go test.
type loadtestT struct {
	ctx      context.Context
	log      *slog.Logger
	cleanups []func()
}

func (l *loadtestT) Errorf(format string, args ...any) {
	l.log.Error("LOADTEST :: " + fmt.Sprintf(format, args...))
}
func (l *loadtestT) FailNow()                 { panic("loadtest: container setup failed") }
func (l *loadtestT) Context() context.Context { return l.ctx }
func (l *loadtestT) Logf(format string, args ...any) {
	l.log.Info("LOADTEST :: " + fmt.Sprintf(format, args...))
}
func (l *loadtestT) Cleanup(f func()) { l.cleanups = append(l.cleanups, f) }

func (l *loadtestT) doCleanup() {
	for i := len(l.cleanups) - 1; i >= 0; i-- {
		l.cleanups[i]()
	}
}
