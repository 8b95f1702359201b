package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rxtech-lab/argo-signals/internal/config"
	"github.com/rxtech-lab/argo-signals/internal/coordinator"
	"github.com/rxtech-lab/argo-signals/internal/guard"
	"github.com/rxtech-lab/argo-signals/internal/monitor"
	"github.com/rxtech-lab/argo-signals/internal/storage"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/internal/version"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata/writer"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var errTradeRejected = errors.New("proposed trade violates at least one rule set")

func simulateAction(ctx context.Context, cmd *cli.Command) error {
	rt, err := openRuntime(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	rules, err := rt.rules()
	if err != nil {
		return err
	}

	opts := []coordinator.Option{
		coordinator.WithLogger(rt.log),
		coordinator.WithSettlementOptions(rt.cfg.SettlementOptions()...),
	}

	progress := newProgressReporter(cmd.Root().ErrWriter)
	if !cmd.Bool("no-progress") {
		opts = append(opts, coordinator.WithProgress(progress.report))
	}

	coord, err := coordinator.New(rt.store, rt.provider, rules, rt.cfg.CoordinatorConfig(), opts...)
	if err != nil {
		return err
	}

	report, err := coord.Run(ctx, cmd.String("channel"))
	progress.finish()

	if err != nil {
		return err
	}

	return render(cmd.Root().Writer, cmd.String("output"), newRunSummary(report))
}

func evaluateAction(ctx context.Context, cmd *cli.Command) error {
	rt, err := openRuntime(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	rules, err := rt.rules()
	if err != nil {
		return err
	}

	// Open trades are marked at the current price only when configured.
	if rt.cfg.Settlement.MarkOpenTrades {
		if err := rt.openProvider(ctx); err != nil {
			return err
		}
	}

	coord, err := coordinator.New(rt.store, rt.provider, rules, rt.cfg.CoordinatorConfig(), coordinator.WithLogger(rt.log))
	if err != nil {
		return err
	}

	records, err := coord.Evaluate(ctx, cmd.String("channel"))
	if err != nil {
		return err
	}

	return render(cmd.Root().Writer, cmd.String("output"), records)
}

func validateAction(ctx context.Context, cmd *cli.Command) error {
	rt, err := openRuntime(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	rules, err := rt.rules()
	if err != nil {
		return err
	}

	opts := []guard.Option{guard.WithLogger(rt.log)}
	if cmd.Bool("include-open") {
		opts = append(opts, guard.WithOpenExposure())
	}

	channel := cmd.String("channel")
	proposed := types.ProposedTrade{
		Channel:                 channel,
		TradingPair:             cmd.String("pair"),
		EntryPrice:              cmd.Float("entry"),
		StopLoss:                cmd.Float("stop"),
		Quantity:                cmd.Float("quantity"),
		Leverage:                cmd.Float("leverage"),
		AdditionalWorstCaseLoss: cmd.Float("additional-loss"),
		At:                      cmd.Timestamp("at"),
	}

	results, err := guard.New(rt.store, rules, opts...).Check(ctx, channel, proposed)
	if err != nil {
		return err
	}

	if err := render(cmd.Root().Writer, cmd.String("output"), newValidationViews(results)); err != nil {
		return err
	}

	for _, r := range results {
		if !r.Allowed {
			return errTradeRejected
		}
	}

	return nil
}

func monitorAction(ctx context.Context, cmd *cli.Command) error {
	rt, err := openRuntime(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	channel := cmd.String("channel")
	mon := monitor.New(rt.store, rt.provider, rt.cfg.MonitorConfig(channel), rt.log, rt.cfg.SettlementOptions()...)

	rt.log.Info("monitor started",
		zap.String("channel", channel),
		zap.String("provider", string(rt.cfg.Provider.Type)),
	)

	if err := mon.Run(ctx); err != nil {
		return err
	}

	rt.log.Info("monitor stopped", zap.String("channel", channel))

	return nil
}

func importAction(ctx context.Context, cmd *cli.Command) error {
	rt, err := openRuntime(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	file, err := config.LoadSignalFile(cmd.String("file"))
	if err != nil {
		return err
	}

	trades, err := file.Trades()
	if err != nil {
		return err
	}

	imported, skipped := 0, 0

	for _, trade := range trades {
		err := rt.store.InsertTrade(ctx, trade)

		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			rt.log.Warn("trade already imported", zap.String("trade_id", trade.ID))

			skipped++
		case err != nil:
			return fmt.Errorf("failed to import trade %s: %w", trade.ID, err)
		default:
			imported++
		}
	}

	fmt.Fprintf(cmd.Root().Writer, "imported %d trades into %s (%d already present)\n", imported, file.Channel, skipped)

	return nil
}

func downloadAction(ctx context.Context, cmd *cli.Command) error {
	rt, err := openRuntime(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	pair := cmd.String("pair")
	start := cmd.Timestamp("start").UTC()

	end := cmd.Timestamp("end")
	if end.IsZero() {
		end = time.Now()
	}

	end = end.UTC()

	if !end.After(start) {
		return fmt.Errorf("end %s must be after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	points, err := rt.provider.GetPriceHistory(ctx, pair, start, end)
	if err != nil {
		return err
	}

	points = marketdata.Normalize(points, start, end)

	path, err := writer.WriteAll(writer.NewParquetWriter(cmd.String("out")), pair, points)
	if err != nil {
		return err
	}

	rt.log.Info("price history exported", zap.String("pair", pair), zap.Int("points", len(points)), zap.String("path", path))
	fmt.Fprintf(cmd.Root().Writer, "wrote %d points of %s to %s\n", len(points), pair, path)

	return nil
}

func rulesAction(_ context.Context, cmd *cli.Command) error {
	file, err := config.LoadRuleFile(cmd.String("file"))
	if err != nil {
		return err
	}

	return render(cmd.Root().Writer, cmd.String("output"), file)
}

func schemaAction(_ context.Context, cmd *cli.Command) error {
	schema, err := config.RuleSchema()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.Root().Writer, schema)

	return err
}

func providersAction(_ context.Context, cmd *cli.Command) error {
	names := marketdata.GetSupportedProviders()
	infos := make([]marketdata.ProviderInfo, 0, len(names))

	for _, name := range names {
		info, err := marketdata.GetProviderInfo(name)
		if err != nil {
			return err
		}

		infos = append(infos, info)
	}

	return render(cmd.Root().Writer, cmd.String("output"), infos)
}

func versionAction(_ context.Context, cmd *cli.Command) error {
	_, err := fmt.Fprintf(cmd.Root().Writer, "propfirm %s (rule file format %s)\n", version.GetVersion(), version.RulesFormat)

	return err
}
