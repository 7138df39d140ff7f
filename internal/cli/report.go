package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"pipeval/internal/analysis"
	"pipeval/internal/analytics"
	"pipeval/internal/ledger"
	"pipeval/internal/report"
)

// runReport builds the handler for the report command.
func runReport(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}

		flags := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		flags.SetOutput(stderr)
		configPath := flags.String("config", "", "Path to config file (default: search for .pipeval/config.yml)")
		if err := flags.Parse(args); err != nil {
			if err == flag.ErrHelp {
				printCommandUsage(cmd, stdout)
				return ExitOK
			}
			fmt.Fprintf(stderr, "invalid arguments: %v\n", err)
			printCommandUsage(cmd, stderr)
			return ExitUsage
		}
		if flags.NArg() > 0 {
			fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(flags.Args(), " "))
			printCommandUsage(cmd, stderr)
			return ExitUsage
		}

		cfg, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Config error:\n%v\n", err)
			return ExitError
		}
		led, err := ledger.NewStore(cfg.Store.LedgerPath).Load()
		if err != nil {
			fmt.Fprintf(stderr, "Ledger error: %v\n", err)
			return ExitError
		}

		// Trend series come from the analytics mirror when it is enabled;
		// Build falls back to the ledger when the mirror has no data.
		var trends report.TrendSource
		if cfg.Analytics.Enabled {
			db, err := analytics.Open(cfg.Analytics.DBPath)
			if err != nil {
				fmt.Fprintf(stderr, "Warning: analytics mirror unavailable: %v\n", err)
			} else {
				defer db.Close()
				if err := analytics.EnsureSchema(db); err != nil {
					fmt.Fprintf(stderr, "Warning: analytics mirror unavailable: %v\n", err)
				} else {
					trends = func(pipeline string) ([]analysis.TrendPoint, error) {
						return analytics.TrendSeries(context.Background(), db, pipeline)
					}
				}
			}
		}

		report.Render(stdout, report.Build(cfg, led, trends))
		return ExitOK
	}
}
