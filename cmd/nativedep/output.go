package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/tsukumogami/nativedep/internal/errmsg"
	"github.com/tsukumogami/nativedep/internal/provision"
)

// errorContext is filled in by commands that know the install roots.
var errorContext = &errmsg.ErrorContext{}

// configureColor disables color when out is not a terminal or NO_COLOR
// is set.
func configureColor(out *os.File) {
	if os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(out.Fd())) {
		color.NoColor = true
	}
}

func formatError(err error) string {
	return color.RedString("Error: ") + errmsg.Format(err, errorContext)
}

// printInfo prints an informational message unless quiet mode is enabled
func printInfo(a ...interface{}) {
	if !quietFlag {
		fmt.Println(a...)
	}
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// eventLine renders one strategy outcome for the progress output.
func eventLine(e provision.Event) string {
	switch e.Status {
	case provision.Succeeded:
		return fmt.Sprintf("%s %s", color.GreenString("✓"), e.Strategy)
	case provision.Reused:
		return fmt.Sprintf("%s %s (already installed)", color.GreenString("✓"), e.Strategy)
	case provision.Skipped:
		return fmt.Sprintf("%s %s skipped: %v", color.YellowString("-"), e.Strategy, e.Err)
	case provision.Failed:
		return fmt.Sprintf("%s %s failed: %v", color.RedString("✗"), e.Strategy, e.Err)
	}
	return string(e.Strategy)
}

func printReport(w io.Writer, r *provision.Report) {
	fmt.Fprintf(w, "%s Z3 ready via %s", color.GreenString("✓"), r.Result.Strategy)
	if r.Result.Version != "" {
		fmt.Fprintf(w, " (%s)", r.Result.Version)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  header:  %s\n", r.Result.HeaderPath)
	fmt.Fprintf(w, "  library: %s\n", r.Result.LibraryDir)
	fmt.Fprintf(w, "\nLoad it before building:\n  source %s\n", r.EnvFile)
}
