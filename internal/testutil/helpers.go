package testutil

import (
	"io"
	"log/slog"
)

// Seed returns a pointer to v, for harness.Config.Seed literals.
func Seed(v int64) *int64 {
	return &v
}

// DiscardLogger returns a logger that drops everything. Used to keep test
// output clean.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
