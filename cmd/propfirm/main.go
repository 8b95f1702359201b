// Command propfirm settles signal trades against historical or live prices and
// scores the results against prop firm rule sets.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rxtech-lab/argo-signals/internal/version"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata"
	"github.com/urfave/cli/v3"
)

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "config",
		Aliases:  []string{"c"},
		Usage:    "Path to the run configuration `FILE`",
		Sources:  cli.EnvVars("PROPFIRM_CONFIG"),
		Required: true,
	}
}

func channelFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "channel",
		Usage:    "Signal channel whose trades are processed",
		Required: true,
	}
}

func outputFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output format: yaml or json",
		Value:   formatYAML,
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "propfirm",
		Usage:   "Simulate signal trades and evaluate them against prop firm rules",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Dotenv `FILE` with API keys. A missing file is ignored.",
				Value: ".env",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if err := godotenv.Load(cmd.String("env-file")); err != nil && !os.IsNotExist(err) {
				return ctx, fmt.Errorf("failed to load %s: %w", cmd.String("env-file"), err)
			}

			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:   "simulate",
				Usage:  "Settle the open trades of a channel against price history, then evaluate them",
				Flags:  []cli.Flag{configFlag(), channelFlag(), outputFlag(), &cli.BoolFlag{Name: "no-progress", Usage: "Hide the progress bar"}},
				Action: simulateAction,
			},
			{
				Name:   "evaluate",
				Usage:  "Evaluate the settled trades of a channel without settling",
				Flags:  []cli.Flag{configFlag(), channelFlag(), outputFlag()},
				Action: evaluateAction,
			},
			{
				Name:  "validate",
				Usage: "Check a proposed trade against every rule set before it is placed",
				Flags: []cli.Flag{
					configFlag(),
					channelFlag(),
					outputFlag(),
					&cli.StringFlag{Name: "pair", Usage: "Trading pair", Required: true},
					&cli.FloatFlag{Name: "entry", Usage: "Entry price", Required: true},
					&cli.FloatFlag{Name: "stop", Usage: "Stop-loss price. Zero means none."},
					&cli.FloatFlag{Name: "quantity", Usage: "Position size", Required: true},
					&cli.FloatFlag{Name: "leverage", Usage: "Leverage multiplier", Value: 1},
					&cli.FloatFlag{Name: "additional-loss", Usage: "Worst-case loss of other exposure already known"},
					&cli.BoolFlag{Name: "include-open", Usage: "Add the worst-case loss of the channel's open trades"},
					&cli.TimestampFlag{
						Name:  "at",
						Usage: "Evaluation time in RFC3339. Defaults to now.",
						Config: cli.TimestampConfig{
							Layouts: []string{time.RFC3339, "2006-01-02"},
						},
					},
				},
				Action: validateAction,
			},
			{
				Name:   "monitor",
				Usage:  "Follow the open trades of a channel with live prices until interrupted",
				Flags:  []cli.Flag{configFlag(), channelFlag()},
				Action: monitorAction,
			},
			{
				Name:  "import",
				Usage: "Store a batch of structured signals as pending trades",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Signal batch `FILE`", Required: true},
				},
				Action: importAction,
			},
			{
				Name:  "download",
				Usage: "Export price history of a pair to a parquet file for offline replay",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "pair", Usage: "Trading pair", Required: true},
					&cli.TimestampFlag{
						Name:     "start",
						Aliases:  []string{"s"},
						Usage:    "Start date in `YYYY-MM-DD` format (or RFC3339)",
						Required: true,
						Config:   cli.TimestampConfig{Layouts: []string{"2006-01-02", time.RFC3339}},
					},
					&cli.TimestampFlag{
						Name:    "end",
						Aliases: []string{"e"},
						Usage:   "End date in `YYYY-MM-DD` format (or RFC3339). Defaults to now.",
						Config:  cli.TimestampConfig{Layouts: []string{"2006-01-02", time.RFC3339}},
					},
					&cli.StringFlag{Name: "out", Usage: "Output parquet `FILE`", Value: "prices.parquet"},
				},
				Action: downloadAction,
			},
			{
				Name:  "rules",
				Usage: "List rule sets",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Rule `FILE`. Defaults to the built-in catalog."},
					outputFlag(),
				},
				Action: rulesAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the rule file",
				Action: schemaAction,
			},
			{
				Name:   "providers",
				Usage:  fmt.Sprintf("List market data providers (e.g. %s, %s)", marketdata.ProviderBinance, marketdata.ProviderParquet),
				Flags:  []cli.Flag{outputFlag()},
				Action: providersAction,
			},
			{
				Name:   "version",
				Usage:  "Print the build version and the supported rule file format",
				Action: versionAction,
			},
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
