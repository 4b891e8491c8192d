package cli

import (
	"context"
	"fmt"
	"time"

	"bigbrain-client/internal/api"
	"bigbrain-client/internal/app"
	"bigbrain-client/internal/config"
	"bigbrain-client/internal/infra/memory"
	"bigbrain-client/internal/infra/postgres"
	infraredis "bigbrain-client/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// deps holds everything a command needs; close releases store connections.
type deps struct {
	client  *api.Client
	kv      app.Store
	players *app.PlayerService
	admin   *app.AdminService
	close   func()
}

func buildDeps(ctx context.Context, c config.Config) (*deps, error) {
	kv, closeStore, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}

	client := api.NewClient(c.API.BaseURL, config.Duration(c.API.Timeout, 10*time.Second))
	machineCfg := app.MachineConfig{
		TickInterval:   config.Duration(c.Machine.Tick, time.Second),
		PollEvery:      c.Machine.PollEvery,
		DriftTolerance: config.Duration(c.Machine.DriftTolerance, 2*time.Second),
	}
	clock := clockwork.NewRealClock()

	return &deps{
		client:  client,
		kv:      kv,
		players: app.NewPlayerService(client, app.NewPlayerStore(kv), clock, machineCfg),
		admin:   app.NewAdminService(client, kv, clock, machineCfg),
		close:   closeStore,
	}, nil
}

func openStore(ctx context.Context, c config.Config) (app.Store, func(), error) {
	switch c.Store.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", c.Redis.Addr, err)
		}
		log.Debug().Str("addr", c.Redis.Addr).Msg("using redis store")
		return infraredis.NewStore(client, c.Redis.Prefix), func() { client.Close() }, nil
	case config.BackendPostgres:
		if err := postgres.Migrate(ctx, c.Postgres.URL); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, c.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		log.Debug().Msg("using postgres store")
		return postgres.NewStore(pool), pool.Close, nil
	default:
		log.Debug().Msg("using in-memory store; state is lost when the process exits")
		return memory.NewStore(), func() {}, nil
	}
}

// withDeps builds deps for the duration of fn.
func withDeps(ctx context.Context, fn func(*deps) error) error {
	d, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.close()
	return fn(d)
}
