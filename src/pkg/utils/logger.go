package utils

import (
	"go.uber.org/zap"
)

// NewLogger creates the process-wide logger. Debug mode switches to the
// human-readable development encoder and enables debug-level output.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
