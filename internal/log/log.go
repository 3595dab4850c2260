// Package log provides the structured logger used across the
// resolver and media layout engine, replacing the teacher's bare
// log.Printf (helpers/helpers.go) with zap's structured fields at the
// call sites that use it: package-archive writing, index
// preparation/teardown, fetch closure resolution and the build command.
package log

import "go.uber.org/zap"

// L is the package-level logger. It defaults to a production
// configuration; callers that want development-friendly (colourised,
// caller-annotated) output can replace it with SetDevelopment.
var L = mustBuild()

func mustBuild() *zap.SugaredLogger {
	logger, err := zap.NewProduction()
	if err != nil {
		// zap's production config is static and does not fail in
		// practice; fall back to a no-op logger rather than panic
		// from an init path.
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}

// SetDevelopment swaps L for a development-mode logger (human-readable,
// debug-level enabled). Intended for cmd/hwpack-builder's -verbose flag.
func SetDevelopment() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return
	}
	L = logger.Sugar()
}

// Sync flushes any buffered log entries. Callers should defer it from
// main.
func Sync() {
	_ = L.Sync()
}
