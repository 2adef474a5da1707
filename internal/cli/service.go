package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/soldier14/survey-runtime/internal/app"
	"github.com/soldier14/survey-runtime/internal/config"
	"github.com/soldier14/survey-runtime/internal/infra/file"
	"github.com/soldier14/survey-runtime/internal/infra/memory"
	"github.com/soldier14/survey-runtime/internal/infra/postgres"
	redisstore "github.com/soldier14/survey-runtime/internal/infra/redis"
)

// buildService wires the survey repository and the run-store registry from
// config. The file backend is always available; redis and postgres join
// the registry when configured. Returns the service and the default
// backend name.
func buildService(ctx context.Context, cfg config.Config) (*app.SurveyService, string, func(), error) {
	loader := file.NewLoader(cfg.Surveys.Dir)
	ttl := config.TTLDuration(cfg.Surveys.TTL, 10*time.Minute)
	surveys := memory.NewSurveyRepository(loader, ttl)

	cleanup := func() {}
	stores := map[string]app.StoreOpener{
		"file": func(ctx context.Context, ref string) (app.RunStore, error) {
			survey, err := surveys.GetSurvey(ctx, ref)
			if err != nil {
				return nil, err
			}
			return file.NewRunStore(loader.SurveyPath(ref), survey), nil
		},
		"memory": func(_ context.Context, _ string) (app.RunStore, error) {
			return memory.NewRunStore(), nil
		},
	}

	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		stores["redis"] = func(_ context.Context, ref string) (app.RunStore, error) {
			return redisstore.NewRunStore(client, ref), nil
		}
	}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, "", nil, fmt.Errorf("connect postgres: %w", err)
		}
		cleanup = pool.Close
		stores["postgres"] = func(_ context.Context, ref string) (app.RunStore, error) {
			return postgres.NewRunStore(pool, ref), nil
		}
	}

	backend := cfg.Store.Backend
	if backend == "" {
		backend = "file"
	}
	if _, ok := stores[backend]; !ok {
		cleanup()
		return nil, "", nil, fmt.Errorf("store backend %q not configured", backend)
	}

	return app.NewSurveyService(surveys, stores, app.DefaultMessages), backend, cleanup, nil
}
