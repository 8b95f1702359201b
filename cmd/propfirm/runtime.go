package main

import (
	"context"
	"io"

	"github.com/rxtech-lab/argo-signals/internal/config"
	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/ratelimit"
	"github.com/rxtech-lab/argo-signals/internal/storage"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata/provider"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// runtime holds what every data command needs: the configuration, a logger,
// the store and optionally a price provider.
type runtime struct {
	cfg      *config.RunConfig
	log      *logger.Logger
	store    storage.Store
	provider marketdata.PriceSeriesProvider
	closer   io.Closer
}

// openRuntime loads --config and opens the store. The provider is opened only
// when withProvider is set.
func openRuntime(ctx context.Context, cmd *cli.Command, withProvider bool) (*runtime, error) {
	cfg, err := config.LoadRunConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	// stdout carries command output.
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	log, err := logger.NewLoggerWithOptions(cfg.Logging)
	if err != nil {
		return nil, err
	}

	store, err := cfg.OpenStore(ctx, log)
	if err != nil {
		_ = log.Sync()

		return nil, err
	}

	rt := &runtime{
		cfg:      cfg,
		log:      log,
		store:    store,
		provider: nil,
		closer:   nil,
	}

	if !withProvider {
		return rt, nil
	}

	if err := rt.openProvider(ctx); err != nil {
		rt.Close()

		return nil, err
	}

	return rt, nil
}

// openProvider builds the configured price provider behind the shared rate limiter.
func (rt *runtime) openProvider(ctx context.Context) error {
	p, closer, err := provider.New(ctx, rt.cfg.Provider, ratelimit.New(rt.cfg.RateLimit), rt.log)
	if err != nil {
		return err
	}

	rt.provider, rt.closer = p, closer

	return nil
}

func (rt *runtime) rules() ([]types.PropFirmRule, error) {
	return rt.cfg.Rules()
}

// Close releases the provider and the store and flushes the logger.
func (rt *runtime) Close() {
	if rt.closer != nil {
		if err := rt.closer.Close(); err != nil {
			rt.log.Warn("failed to close provider", zap.Error(err))
		}
	}

	if err := rt.store.Close(); err != nil {
		rt.log.Warn("failed to close store", zap.Error(err))
	}

	_ = rt.log.Sync()
}
