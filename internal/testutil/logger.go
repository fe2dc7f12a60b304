package testutil

import (
	"github.com/pgm9-art/mcmahon-news/internal/logging"
)

// NullLogger returns a logger that discards most output
func NullLogger() *logging.Logger {
	return logging.New(logging.LevelError)
}
