package cli

import (
	"fmt"
	"os"
)

// ── Unified output helpers ────────────────────────────────────────────────────
// All commands use these functions to ensure consistent icon usage and
// indentation throughout pkgdex's CLI output.
//
// Icon semantics:
//   ✓  success
//   ✗  error / failure          (written to stderr)
//   ⚠  warning
//   -  not found / missing

// printSection prints a top-level section header, e.g. "=== Package Cache ===".
func printSection(title string) {
	fmt.Printf("=== %s ===\n", title)
}

// printBullet prints a grouped-section bullet, e.g. "● Repositories:".
func printBullet(title string) {
	fmt.Printf("\n● %s\n", title)
}

// printOK prints a success line.
func printOK(msg string) {
	fmt.Printf("  ✓  %s\n", msg)
}

// printErr prints an error line to stderr.
func printErr(msg string) {
	fmt.Fprintf(os.Stderr, "  ✗  %s\n", msg)
}

// printWarn prints a warning line.
func printWarn(msg string) {
	fmt.Printf("  ⚠  %s\n", msg)
}

// printMiss prints a not-found / missing line.
func printMiss(msg string) {
	fmt.Printf("  -  %s\n", msg)
}
