package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stanleysince1993/MedicAI/internal/config"
	"github.com/stanleysince1993/MedicAI/internal/domain/alert"
	"github.com/stanleysince1993/MedicAI/internal/domain/careplan"
	"github.com/stanleysince1993/MedicAI/internal/domain/dashboard"
	"github.com/stanleysince1993/MedicAI/internal/domain/observation"
	"github.com/stanleysince1993/MedicAI/internal/platform/db"
	"github.com/stanleysince1993/MedicAI/internal/platform/events"
	"github.com/stanleysince1993/MedicAI/internal/platform/lock"
	"github.com/stanleysince1993/MedicAI/migrations"
)

// app holds the wired services shared by every command.
type app struct {
	observations *observation.Service
	careplans    *careplan.Service
	engine       *alert.Engine
	dashboard    *dashboard.Service
	health       db.Checker
	publisher    events.Publisher
	closers      []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type stores struct {
	observations observation.Repository
	revisions    careplan.RevisionRepository
	alerts       alert.Repository
	tx           db.TxRunner
	health       db.Checker
}

func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{}
	st, err := a.openStores(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.health = st.health

	locker, err := a.openLocker(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.publisher, err = openPublisher(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := a.publisher.Close(); err != nil {
			logger.Warn().Err(err).Msg("event publisher close failed")
		}
	})

	a.observations = observation.NewService(st.observations)
	a.careplans = careplan.NewService(st.revisions)
	a.engine = alert.NewEngine(st.observations, st.alerts, a.careplans,
		alert.WithTxRunner(st.tx),
		alert.WithLocker(locker),
		alert.WithPublisher(a.publisher),
		alert.WithLogger(logger),
		alert.WithStalenessWindow(cfg.MissingDataWindow),
	)
	a.dashboard = dashboard.NewService(a.engine, a.observations, a.careplans)
	return a, nil
}

func (a *app) openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		logger.Info().Msg("connected to postgres")
		return &stores{
			observations: observation.NewRepoPG(pool),
			revisions:    careplan.NewRevisionRepoPG(pool),
			alerts:       alert.NewRepoPG(pool),
			tx:           db.NewPGTxRunner(pool),
			health:       db.PGChecker(pool),
		}, nil

	case config.StoreSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, func() { sqlDB.Close() })
		// a local file database carries its own schema
		n, err := db.NewSQLiteMigrator(sqlDB, migrations.SQLite()).Up(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", cfg.SQLitePath).Int("migrations_applied", n).Msg("opened sqlite store")
		return &stores{
			observations: observation.NewRepoSQLite(sqlDB),
			revisions:    careplan.NewRevisionRepoSQLite(sqlDB),
			alerts:       alert.NewRepoSQLite(sqlDB),
			tx:           db.NewSQLTxRunner(sqlDB),
			health:       db.SQLChecker(sqlDB),
		}, nil

	default:
		logger.Warn().Msg("using in-memory store, data is lost on restart")
		return &stores{
			observations: observation.NewMemoryRepo(),
			revisions:    careplan.NewRevisionRepoMemory(),
			alerts:       alert.NewMemoryRepo(),
			tx:           db.NoTx{},
		}, nil
	}
}

func (a *app) openLocker(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (lock.Locker, error) {
	if cfg.RedisURL == "" {
		return lock.NewKeyedMutex(), nil
	}
	client, err := lock.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.closers = append(a.closers, func() { client.Close() })
	logger.Info().Dur("ttl", cfg.LockTTL).Msg("using redis patient locks")
	return lock.NewRedisLocker(client, cfg.LockTTL), nil
}

func openPublisher(cfg *config.Config, logger zerolog.Logger) (events.Publisher, error) {
	switch cfg.EventSink {
	case config.SinkKafka:
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	case config.SinkNATS:
		return events.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject)
	default:
		return events.NewLogPublisher(logger), nil
	}
}
