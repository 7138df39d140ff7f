package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootHelp(t *testing.T) {
	var out, errBuf bytes.Buffer
	code := Run([]string{"--help"}, &out, &errBuf)
	if code != ExitOK {
		t.Fatalf("expected exit %d, got %d", ExitOK, code)
	}
	if errBuf.Len() != 0 {
		t.Fatalf("expected no stderr output, got %q", errBuf.String())
	}
	output := out.String()
	if !strings.Contains(output, "Usage:") {
		t.Fatalf("expected usage header, got %q", output)
	}
	for _, cmd := range commands {
		if !strings.Contains(output, cmd.Name) {
			t.Fatalf("expected command %q in output", cmd.Name)
		}
	}
}

func TestNoArgsShowsUsage(t *testing.T) {
	var out, errBuf bytes.Buffer
	code := Run(nil, &out, &errBuf)
	if code != ExitUsage {
		t.Fatalf("expected exit %d, got %d", ExitUsage, code)
	}
	if !strings.Contains(out.String(), "Usage:") {
		t.Fatalf("expected usage output, got %q", out.String())
	}
}

func TestUnknownCommand(t *testing.T) {
	var out, errBuf bytes.Buffer
	code := Run([]string{"nope"}, &out, &errBuf)
	if code != ExitUsage {
		t.Fatalf("expected exit %d, got %d", ExitUsage, code)
	}
	if !strings.Contains(errBuf.String(), "Unknown command") {
		t.Fatalf("expected unknown command message, got %q", errBuf.String())
	}
}

func TestCommandHelp(t *testing.T) {
	for _, cmd := range commands {
		var out, errBuf bytes.Buffer
		code := Run([]string{cmd.Name, "--help"}, &out, &errBuf)
		if code != ExitOK {
			t.Errorf("%s --help exit = %d, want %d", cmd.Name, code, ExitOK)
		}
		if !strings.Contains(out.String(), "Usage:") {
			t.Errorf("%s --help output = %q", cmd.Name, out.String())
		}
	}
}

func TestGateMissingPhase(t *testing.T) {
	var out, errBuf bytes.Buffer
	code := Run([]string{"gate"}, &out, &errBuf)
	if code != ExitUsage {
		t.Fatalf("expected exit %d, got %d", ExitUsage, code)
	}
	if !strings.Contains(errBuf.String(), "Missing -phase") {
		t.Fatalf("stderr = %q", errBuf.String())
	}
}

func TestUnexpectedArguments(t *testing.T) {
	var out, errBuf bytes.Buffer
	code := Run([]string{"validate", "extra"}, &out, &errBuf)
	if code != ExitUsage {
		t.Fatalf("expected exit %d, got %d", ExitUsage, code)
	}
	if !strings.Contains(errBuf.String(), "unexpected arguments") {
		t.Fatalf("stderr = %q", errBuf.String())
	}
}
