package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"pipeval/internal/analytics"
	"pipeval/internal/ledger"
	"pipeval/internal/runner"
	"pipeval/internal/spec"
)

// runRun builds the handler for the run command.
func runRun(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}

		flags := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		flags.SetOutput(stderr)
		configPath := flags.String("config", "", "Path to config file (default: search for .pipeval/config.yml)")
		label := flags.String("label", "", "Label for this iteration")
		pipelines := flags.String("pipelines", "", "Comma-separated subset of pipelines to run")
		limit := flags.Int("limit", 0, "Max questions per pipeline (0 = all)")
		fresh := flags.Bool("fresh", false, "Start a new iteration instead of resuming an open one")
		verbose := flags.Bool("verbose", false, "Log every attempt")
		noColor := flags.Bool("no-color", false, "Disable ANSI colors")
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

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		params := runner.Params{
			Label:         *label,
			Limit:         *limit,
			Fresh:         *fresh,
			SessionID:     uuid.NewString(),
			Verbose:       *verbose,
			VerboseWriter: stdout,
			NoColor:       *noColor,
		}
		if *pipelines != "" {
			for _, name := range strings.Split(*pipelines, ",") {
				if trimmed := strings.TrimSpace(name); trimmed != "" {
					params.Pipelines = append(params.Pipelines, trimmed)
				}
			}
		}

		result, err := runner.Run(ctx, cfg, params)
		if err != nil {
			if errors.Is(err, ledger.ErrLocked) {
				fmt.Fprintln(stderr, "Another pipeval run holds the ledger lock; try again when it finishes.")
				return ExitError
			}
			if errors.Is(err, runner.ErrInterrupted) {
				fmt.Fprintln(stderr, "Run interrupted; progress is checkpointed and the next run resumes it.")
				return ExitError
			}
			fmt.Fprintf(stderr, "Run failed: %v\n", err)
			return ExitError
		}

		printRunSummary(stdout, result)
		if cfg.Analytics.Enabled {
			if err := mirrorLedger(ctx, cfg); err != nil {
				// The JSON ledger is the source of truth; a mirror failure
				// does not invalidate a completed run.
				fmt.Fprintf(stderr, "Warning: analytics mirror failed: %v\n", err)
			}
		}
		return ExitOK
	}
}

func printRunSummary(w io.Writer, result runner.Result) {
	fmt.Fprintf(w, "Iteration %d (%s) finished", result.Iteration.Sequence, result.State.RunID)
	if result.Resumed {
		fmt.Fprint(w, " (resumed)")
	}
	fmt.Fprintln(w)
	for _, name := range sortedSummaryKeys(result.Iteration.Summary) {
		summary := result.Iteration.Summary[name]
		fmt.Fprintf(w, "  %-20s %d/%d correct (%.1f%%), %d errored, p95 %dms\n",
			name, summary.Correct, summary.Tested, summary.Accuracy*100, summary.Errored, summary.LatencyP95MS)
	}
}

func sortedSummaryKeys(summary map[string]ledger.PipelineSummary) []string {
	names := make([]string, 0, len(summary))
	for name := range summary {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// mirrorLedger ingests the current ledger into the DuckDB mirror.
func mirrorLedger(ctx context.Context, cfg spec.Config) error {
	store := ledger.NewStore(cfg.Store.LedgerPath)
	led, err := store.Load()
	if err != nil {
		return err
	}
	db, err := analytics.Open(cfg.Analytics.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := analytics.EnsureSchema(db); err != nil {
		return err
	}
	return analytics.Ingest(ctx, db, led.Iterations())
}
