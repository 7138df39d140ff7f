package runner

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

const verbosePrefix = "[pipeval]"

const (
	ansiReset = "\x1b[0m"
	ansiDim   = "\x1b[2m"
	ansiGray  = "\x1b[90m"
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiBlue  = "\x1b[34m"
)

type verboseStyle int

const (
	styleDefault verboseStyle = iota
	stylePipeline
	styleCorrect
	styleError
)

func logVerbose(enabled bool, writer io.Writer, noColor bool, style verboseStyle, format string, args ...any) {
	if !enabled || writer == nil {
		return
	}
	palette := paletteFor(writer, noColor)
	line := fmt.Sprintf(format, args...)
	fmt.Fprintf(writer, "%s %s\n", palette.prefix(verbosePrefix), palette.apply(style, line))
}

type verbosePalette struct {
	enabled bool
}

func paletteFor(writer io.Writer, noColor bool) verbosePalette {
	if noColor {
		return verbosePalette{}
	}
	type fdWriter interface{ Fd() uintptr }
	if file, ok := writer.(fdWriter); ok {
		return verbosePalette{enabled: term.IsTerminal(int(file.Fd()))}
	}
	if writer == os.Stdout || writer == os.Stderr {
		return verbosePalette{enabled: true}
	}
	return verbosePalette{}
}

func (p verbosePalette) prefix(text string) string {
	if !p.enabled {
		return text
	}
	return ansiGray + text + ansiReset
}

func (p verbosePalette) apply(style verboseStyle, text string) string {
	if !p.enabled {
		return text
	}
	switch style {
	case stylePipeline:
		return ansiBlue + text + ansiReset
	case styleCorrect:
		return ansiGreen + text + ansiReset
	case styleError:
		return ansiRed + text + ansiReset
	default:
		return ansiDim + text + ansiReset
	}
}
