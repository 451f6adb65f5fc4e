package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

func colorize(colorString string) func(string) string {
	return func(text string) string {
		if !colorEnabled() {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

var (
	mu     sync.RWMutex
	out    io.Writer = os.Stdout
	quiet  bool
	colors = true
)

// SetOutput redirects terminal output, returning the previous writer
func SetOutput(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	out = w
	return prev
}

// SetColor turns ANSI colors on or off
func SetColor(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	colors = enabled
}

func colorEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return colors
}

// SetQuietMode suppresses informational output. Errors are always printed.
func SetQuietMode(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

// IsQuietMode reports whether informational output is suppressed
func IsQuietMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return quiet
}

func printLine(always bool, s string) {
	mu.RLock()
	w, q := out, quiet
	mu.RUnlock()
	if q && !always {
		return
	}
	fmt.Fprintln(w, s)
}

func withArg(msg string, args []interface{}) string {
	if len(args) > 0 {
		return msg + ": " + fmt.Sprintf("%v", args[0])
	}
	return msg
}

// Println prints an uncolored line
func Println(msg string) {
	printLine(false, msg)
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	printLine(true, Red(withArg(msg, args)))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	printLine(false, Green(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	printLine(false, fmt.Sprintf("%s: %s", Cyan(label), Yellow(value)))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	printLine(false, Yellow(withArg(msg, args)))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	printLine(false, Magenta(msg))
}
