package app

import (
	"context"
	"fmt"

	"stock-ledger/internal/config"
	"stock-ledger/internal/core"
	"stock-ledger/internal/db"
	"stock-ledger/internal/events"
	"stock-ledger/internal/observability"

	"go.uber.org/zap"
)

// Runtime is a fully wired ApplicationService together with the resources it owns.
type Runtime struct {
	Service ApplicationService
	Metrics *observability.Metrics

	closers []func()
}

// Close releases the resources in reverse order of acquisition.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// Bootstrap connects to Postgres, optionally migrates, resolves the pool location and
// wires the event publisher. A pool that is not provisioned fails startup with
// *core.ConfigurationError.
func Bootstrap(ctx context.Context, cfg config.Config, log *zap.Logger) (*Runtime, error) {
	rt := &Runtime{}

	if cfg.Database.MigrateOnStart {
		if err := db.Migrate(ctx, cfg.Database.URL, "up"); err != nil {
			return nil, err
		}
		log.Info("migrations applied")
	}

	pool, err := db.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	rt.closers = append(rt.closers, pool.Close)

	store := core.NewPostgresStore(pool)
	registry := core.NewLocationRegistry(store, cfg.Ledger.PoolCode)
	ledger, err := core.NewLedgerService(ctx, store, registry, core.LedgerOptions{
		MaxTransferQuantity: cfg.Ledger.MaxTransferQuantity,
		MaxBatchLines:       cfg.Ledger.MaxBatchLines,
		OpTimeout:           cfg.Ledger.OpTimeout,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	log.Info("pool location resolved", zap.String("code", ledger.Pool().Code), zap.Int("id", ledger.Pool().ID))

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		rt.closers = append(rt.closers, func() {
			if err := kp.Close(); err != nil {
				log.Warn("failed to close kafka writer", zap.Error(err))
			}
		})
		publisher = kp
		log.Info("publishing stock events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	rt.Metrics = observability.NewMetrics()
	rt.Service = NewAppService(ledger, registry, rt.Metrics, publisher, log)
	return rt, nil
}
