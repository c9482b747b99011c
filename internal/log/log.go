// Package log provides colored terminal output for the trajectory planner.
// All output uses ANSI escape codes; no external dependencies are required.
package log

import (
	"fmt"
	"os"
)

// ANSI escape codes for terminal colors.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorCyan   = "\033[0;36m"
	colorWhite  = "\033[1;37m"
	colorGray   = "\033[0;90m"
)

// sectionLine is the unicode box-draw separator used by Section.
const sectionLine = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// Verbose enables Debug/Debugf output. Off by default; the CLI flips it
// with the --verbose flag.
var Verbose = false

// OsExit is the function called by Fatal to terminate the process.
// It is a package-level variable so tests can replace it without subprocess overhead.
var OsExit = os.Exit

// Info prints a white [INFO] message to stdout.
func Info(msg string) {
	fmt.Printf("%s[INFO]%s %s\n", colorWhite, colorReset, msg)
}

// Infof is Info with Printf-style formatting.
func Infof(format string, args ...any) {
	Info(fmt.Sprintf(format, args...))
}

// Success prints a green [SUCCESS] message to stdout.
func Success(msg string) {
	fmt.Printf("%s[SUCCESS]%s %s\n", colorGreen, colorReset, msg)
}

// Warning prints a yellow [WARNING] message to stdout.
func Warning(msg string) {
	fmt.Printf("%s[WARNING]%s %s\n", colorYellow, colorReset, msg)
}

// Warningf is Warning with Printf-style formatting.
func Warningf(format string, args ...any) {
	Warning(fmt.Sprintf(format, args...))
}

// Error prints a red [ERROR] message to stdout.
func Error(msg string) {
	fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg)
}

// Errorf is Error with Printf-style formatting.
func Errorf(format string, args ...any) {
	Error(fmt.Sprintf(format, args...))
}

// Debug prints a gray [DEBUG] message to stdout when Verbose is set.
func Debug(msg string) {
	if !Verbose {
		return
	}
	fmt.Printf("%s[DEBUG]%s %s\n", colorGray, colorReset, msg)
}

// Debugf is Debug with Printf-style formatting.
func Debugf(format string, args ...any) {
	if !Verbose {
		return
	}
	Debug(fmt.Sprintf(format, args...))
}

// Fatal prints a red [ERROR] message then exits with status 1.
func Fatal(msg string) {
	Error(msg)
	OsExit(1)
}

// Section prints a cyan unicode box-draw separator with a title.
func Section(title string) {
	fmt.Printf("\n%s%s%s\n", colorCyan, sectionLine, colorReset)
	fmt.Printf("%s%s%s\n", colorCyan, title, colorReset)
	fmt.Printf("%s%s%s\n\n", colorCyan, sectionLine, colorReset)
}
