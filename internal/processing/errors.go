package processing

import (
	"context"
	"errors"

	"github.com/ojparkinson/massbalance/internal/config"
	"github.com/ojparkinson/massbalance/internal/drawing"
	"github.com/ojparkinson/massbalance/internal/geometry"
	"github.com/ojparkinson/massbalance/internal/stationing"
)

// Retryable reports whether processing the same file again could succeed.
// Bad geometry, bad parameters and undecodable documents fail the same way
// every time; only I/O style failures are worth another attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var geomErr *geometry.GeometryError
	var cfgErr *stationing.ConfigError
	switch {
	case errors.As(err, &geomErr), errors.As(err, &cfgErr):
		return false
	case errors.Is(err, config.ErrInvalidRequest),
		errors.Is(err, drawing.ErrInvalidDocument),
		errors.Is(err, drawing.ErrCADFile),
		errors.Is(err, drawing.ErrUnsupportedFormat):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
