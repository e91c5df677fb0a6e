// Package logging constructs the process-wide zerolog logger.
package logging

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// New returns a JSON logger writing to stdout at the given level.
// The level can be one of: trace, debug, info, warn, error, fatal.
func New(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level %q: %w", level, err)
	}

	l := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Logger().
		Level(lvl)

	return l, nil
}
