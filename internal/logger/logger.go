package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Log discards everything until Init is called.
var Log = zerolog.Nop()

// Init opens the log file under the user's config directory and points Log
// at it. The returned closer releases the file.
func Init(level string) (io.Closer, error) {
	logPath := filepath.Join(os.TempDir(), "playerwrap.log")
	configDir, err := os.UserConfigDir()
	if err == nil {
		appDir := filepath.Join(configDir, "playerwrap")
		if err := os.MkdirAll(appDir, 0755); err == nil {
			logPath = filepath.Join(appDir, "playerwrap.log")
		}
	}

	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return nil, fmt.Errorf("could not open log file: %w", err)
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	Log = zerolog.New(file).Level(lvl).With().Timestamp().Caller().Logger()
	Log.Info().Str("path", logPath).Stringer("level", lvl).Msg("Logger initialized")
	return file, nil
}
