package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kalambet/typedprefs/internal/config"
	"github.com/kalambet/typedprefs/internal/demo"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
	colorBold   = "\033[1m"
)

// statusOut receives status lines; stdout is reserved for values.
var statusOut io.Writer = os.Stderr

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func status(color, mark, format string, args ...any) {
	fmt.Fprintln(statusOut, colorize(color, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { status(colorGreen, "✓", format, args...) }

func printError(format string, args ...any) { status(colorRed, "✗", format, args...) }

func printWarning(format string, args ...any) { status(colorYellow, "⚠", format, args...) }

func printStep(format string, args ...any) { status(colorCyan, "→", format, args...) }

// entryLine renders one row of `list`. Values never written are marked as
// defaults, and rules are shown when present.
func entryLine(v demo.EntryView) string {
	line := fmt.Sprintf("  %s %s = %s", colorize(colorBold, v.Key), colorize(colorDim, "("+v.Kind+")"), v.Value)
	if !v.Stored {
		line += colorize(colorDim, " [default]")
	}
	if v.Rule != "" {
		line += colorize(colorDim, " {"+v.Rule+"}")
	}
	return line
}

func configLine(k config.KeyInfo) string {
	return fmt.Sprintf("  %s = %s %s", colorize(colorBold, k.Key), k.Value, colorize(colorDim, "($"+k.EnvVar+")"))
}

func changeLine(key string, old, new any) string {
	return fmt.Sprintf("%s: %v → %s", colorize(colorBold, key), old, colorize(colorGreen, fmt.Sprint(new)))
}
