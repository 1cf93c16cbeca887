// Package log provides the structured logger shared by the cut engine,
// the fast-start mover, and the mp4seek CLI. It wraps go.uber.org/zap
// rather than ad hoc fmt.Printf diagnostics, so per-track cut reports
// carry queryable fields (track_id, sample, chunk, delta_ms) instead of
// formatted strings.
package log

import "go.uber.org/zap"

// New builds a zap.Logger. verbose selects development mode (console
// encoding, debug level, caller info) over the default production
// JSON encoder.
func New(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Nop returns a logger that discards everything, for library callers
// (SplitIntoBuffer, MoveHeaderAndWrite, ...) that don't configure one.
func Nop() *zap.Logger {
	return zap.NewNop()
}
