package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warnColor    = color.New(color.FgYellow)
	labelColor   = color.New(color.FgCyan)
)

func printSuccess(w io.Writer, format string, args ...any) {
	_, _ = successColor.Fprint(w, "✓ ")
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}

func printError(w io.Writer, err error) {
	_, _ = errorColor.Fprint(w, "✗ ")
	_, _ = fmt.Fprintln(w, err)
}

func printWarning(w io.Writer, format string, args ...any) {
	_, _ = warnColor.Fprintf(w, "! "+format+"\n", args...)
}

func printField(w io.Writer, label string, value any) {
	_, _ = labelColor.Fprintf(w, "  %-10s", label)
	_, _ = fmt.Fprintln(w, value)
}
