// Package ui provides terminal output helpers and the mirror dashboard.
package ui

import (
	"fmt"
	"io"
	"os"
)

// ASCIILogo is printed by the interactive commands
const ASCIILogo = `
  ╔════════════════════════════════════════════════════╗
  ║  █▀▄▀█ ▄▀█ █▀ ▀█▀ █▀█ █ █ █ ▄▀█ ▀█▀ █▀▀ █ █          ║
  ║  █ ▀ █ █▀█ ▄█  █  █▄█ ▀▄▀▄▀ █▀█  █  █▄▄ █▀█          ║
  ║        follower alerts and cross-instance mirroring  ║
  ╚════════════════════════════════════════════════════╝
`

// Out is where the Print helpers write
var Out io.Writer = os.Stdout

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	fmt.Fprint(Out, Cyan(ASCIILogo))
}

// PrintError prints an error message in red, followed by err when given
func PrintError(msg string, err error) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	fmt.Fprintln(Out, Red("✗ "+msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(Out, Green("✓ "+msg))
}

// PrintInfo prints a label and value pair
func PrintInfo(label string, value string) {
	fmt.Fprintf(Out, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string) {
	fmt.Fprintln(Out, Yellow("! "+msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(Out, Magenta(msg))
}

// PrintList prints a heading and one bullet per item, or a dim "none"
func PrintList(heading string, items []string) {
	fmt.Fprintln(Out, Magenta(heading))
	if len(items) == 0 {
		fmt.Fprintln(Out, Dim("  (none)"))
		return
	}
	for _, item := range items {
		fmt.Fprintf(Out, "  • %s\n", item)
	}
}
