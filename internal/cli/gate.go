package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"pipeval/internal/gate"
	"pipeval/internal/ledger"
)

// runGate builds the handler for the gate command. Exit 0 means the phase's
// criteria hold.
func runGate(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}

		flags := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		flags.SetOutput(stderr)
		configPath := flags.String("config", "", "Path to config file (default: search for .pipeval/config.yml)")
		phase := flags.Int("phase", 0, "Phase number to check")
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
		if *phase <= 0 {
			fmt.Fprintln(stderr, "Missing -phase")
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

		decision, err := gate.Check(cfg, *phase, led)
		if err != nil {
			fmt.Fprintf(stderr, "Gate error: %v\n", err)
			return ExitError
		}

		printDecision(stdout, decision)
		if !decision.Passed {
			return ExitError
		}
		return ExitOK
	}
}

func printDecision(w io.Writer, decision gate.Decision) {
	verdict := "PASSED"
	if !decision.Passed {
		verdict = "FAILED"
	}
	fmt.Fprintf(w, "Phase %d", decision.Phase)
	if decision.Name != "" {
		fmt.Fprintf(w, " (%s)", decision.Name)
	}
	fmt.Fprintf(w, ": %s\n", verdict)
	for _, criterion := range decision.Criteria {
		mark := "ok"
		if !criterion.Passed {
			mark = "FAIL"
		}
		line := fmt.Sprintf("  [%-4s] %s", mark, criterion.Kind)
		if criterion.Pipeline != "" {
			line += " " + criterion.Pipeline
		}
		if criterion.Detail != "" {
			line += ": " + criterion.Detail
		} else {
			line += fmt.Sprintf(": %.4g vs %.4g", criterion.Actual, criterion.Threshold)
		}
		fmt.Fprintln(w, line)
	}
}
