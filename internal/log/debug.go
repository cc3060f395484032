package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// NewDebug returns a logrus logger for diagnostics. When enabled it writes
// to .fleet/debug.log inside dir; otherwise output is discarded, since the
// terminal belongs to the TUI. The returned closer releases the file.
func NewDebug(dir string, enabled bool) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})

	if !enabled {
		logger.SetOutput(io.Discard)
		logger.SetLevel(logrus.WarnLevel)
		return logger, nopCloser{}, nil
	}

	fleetDir := filepath.Join(dir, ".fleet")
	if err := os.MkdirAll(fleetDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create .fleet directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(fleetDir, "debug.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open debug log: %w", err)
	}

	logger.SetOutput(f)
	logger.SetLevel(logrus.DebugLevel)
	return logger, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
