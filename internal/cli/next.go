package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"pipeval/internal/analysis"
	"pipeval/internal/backlog"
	"pipeval/internal/ledger"
)

// runNext builds the handler for the next command: select the next pending
// improvement, or record the outcome of a previously selected one.
func runNext(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}

		flags := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		flags.SetOutput(stderr)
		configPath := flags.String("config", "", "Path to config file (default: search for .pipeval/config.yml)")
		pipeline := flags.String("pipeline", "", "Restrict selection to one pipeline")
		markApplied := flags.String("mark-applied", "", "Record that an improvement was applied")
		markVerified := flags.String("mark-verified", "", "Record that an applied improvement was verified")
		impact := flags.Float64("impact", 0, "Measured accuracy impact in pp (with -mark-verified)")
		markFailed := flags.String("mark-failed", "", "Record that an applied improvement failed")
		reason := flags.String("reason", "", "Failure reason (with -mark-failed)")
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
		store := backlog.NewStore(cfg.Store.BacklogPath)
		items, err := store.Load()
		if err != nil {
			fmt.Fprintf(stderr, "Backlog error: %v\n", err)
			return ExitError
		}

		if *markApplied != "" || *markVerified != "" || *markFailed != "" {
			return recordTransition(store, items, *markApplied, *markVerified, *impact, *markFailed, *reason, stdout, stderr)
		}

		led, err := ledger.NewStore(cfg.Store.LedgerPath).Load()
		if err != nil {
			fmt.Fprintf(stderr, "Ledger error: %v\n", err)
			return ExitError
		}
		targets := map[string]float64{}
		for _, pipelineCfg := range cfg.Pipelines {
			targets[pipelineCfg.Name] = pipelineCfg.AccuracyTarget
		}

		selected, err := backlog.SelectNext(items, analysis.Gaps(led, targets), *pipeline)
		if err != nil {
			if errors.Is(err, backlog.ErrExhausted) {
				fmt.Fprintln(stdout, "Backlog exhausted: no pending improvements match.")
				return ExitError
			}
			fmt.Fprintf(stderr, "Selection error: %v\n", err)
			return ExitError
		}

		fmt.Fprintf(stdout, "Next: %s [%s] P%d, expected +%.1fpp\n",
			selected.ID, selected.Pipeline, selected.Priority, selected.ExpectedImpactPP)
		fmt.Fprintf(stdout, "  %s\n", selected.Title)
		if selected.Description != "" {
			fmt.Fprintf(stdout, "  %s\n", selected.Description)
		}
		return ExitOK
	}
}

func recordTransition(store *backlog.Store, items []backlog.Improvement, applied, verified string, impact float64, failed, reason string, stdout, stderr io.Writer) int {
	now := time.Now().UTC()
	var id string
	var transition func(item *backlog.Improvement) error
	switch {
	case applied != "":
		id = applied
		transition = func(item *backlog.Improvement) error { return backlog.MarkApplied(item, now) }
	case verified != "":
		id = verified
		transition = func(item *backlog.Improvement) error { return backlog.MarkVerified(item, impact, now) }
	default:
		id = failed
		if strings.TrimSpace(reason) == "" {
			fmt.Fprintln(stderr, "Missing -reason for -mark-failed")
			return ExitUsage
		}
		transition = func(item *backlog.Improvement) error { return backlog.MarkFailed(item, reason, now) }
	}

	item, err := backlog.Find(items, id)
	if err != nil {
		fmt.Fprintf(stderr, "Backlog error: %v\n", err)
		return ExitError
	}
	if err := transition(item); err != nil {
		fmt.Fprintf(stderr, "Backlog error: %v\n", err)
		return ExitError
	}
	if err := store.Save(items); err != nil {
		fmt.Fprintf(stderr, "Backlog error: %v\n", err)
		return ExitError
	}
	fmt.Fprintf(stdout, "%s is now %s\n", item.ID, item.Status)
	return ExitOK
}
