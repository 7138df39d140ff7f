// Package cli wires the pipeval commands. Each command parses its own flags
// and reports through exit codes: ExitOK only when the requested operation
// completed, ExitUsage for argument problems, ExitError otherwise.
package cli

import (
	"fmt"
	"io"
)

const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

type Command struct {
	Name    string
	Summary string
	Usage   []string
	Run     func(args []string, stdout, stderr io.Writer) int
}

func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stdout)
		return ExitUsage
	}
	if isHelpArg(args[0]) {
		printUsage(stdout)
		return ExitOK
	}

	cmd := findCommand(args[0])
	if cmd == nil {
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return ExitUsage
	}

	return cmd.Run(args[1:], stdout, stderr)
}

func findCommand(name string) *Command {
	for _, cmd := range commands {
		if cmd.Name == name {
			return cmd
		}
	}
	return nil
}

func isHelpArg(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	default:
		return false
	}
}

func wantsHelp(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "-h", "--help":
			return true
		}
	}
	return false
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  pipeval <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", cmd.Name, cmd.Summary)
	}
	fmt.Fprintln(w, "\nUse \"pipeval <command> --help\" for more information.")
}

func printCommandUsage(cmd *Command, w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	for _, line := range cmd.Usage {
		fmt.Fprintf(w, "  %s\n", line)
	}
	if cmd.Summary != "" {
		fmt.Fprintf(w, "\n%s\n", cmd.Summary)
	}
}

func command(name, summary string, usage []string, runner func(cmd *Command) func(args []string, stdout, stderr io.Writer) int) *Command {
	cmd := &Command{
		Name:    name,
		Summary: summary,
		Usage:   usage,
	}
	cmd.Run = runner(cmd)
	return cmd
}

var commands = []*Command{
	command("run", "Evaluate pipelines against the question dataset", []string{
		"pipeval run [-config <path>] [-label <text>] [-pipelines a,b] [-limit N] [-fresh] [-verbose] [-no-color]",
	}, runRun),
	command("gate", "Check a phase's exit criteria", []string{
		"pipeval gate -phase N [-config <path>]",
	}, runGate),
	command("next", "Select the next improvement to apply", []string{
		"pipeval next [-pipeline <name>] [-config <path>]",
		"pipeval next -mark-applied <id> [-config <path>]",
		"pipeval next -mark-verified <id> -impact <pp> [-config <path>]",
		"pipeval next -mark-failed <id> -reason <text> [-config <path>]",
	}, runNext),
	command("report", "Summarize the ledger", []string{
		"pipeval report [-config <path>]",
	}, runReport),
	command("validate", "Validate the config file", []string{
		"pipeval validate [-config <path>]",
	}, runValidate),
}
