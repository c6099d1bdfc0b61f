package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"sisko/internal/config"

	"github.com/rs/zerolog"
)

// New builds the root logger for the daemon. Unset fields fall back to
// JSON output on stdout at info level. The returned closer is non-nil only
// for file output.
func New(cfg config.LoggingConfig, app config.AppConfig) (*zerolog.Logger, io.Closer, error) {
	output, closer, err := writerFor(cfg)
	if err != nil {
		return nil, nil, err
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	base := zerolog.New(output).
		Level(levelFor(cfg.Level)).
		With().
		Timestamp().
		Str("app", app.Name).
		Str("env", app.Environment).
		Str("version", app.Version).
		Logger()

	return &base, closer, nil
}

// Component derives a child logger tagged with a component name. Every
// subsystem gets one so queue, syncer and admin lines are filterable.
func Component(base *zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}

func levelFor(raw string) zerolog.Level {
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw))); err == nil {
		return parsed
	}
	return zerolog.InfoLevel
}

func writerFor(cfg config.LoggingConfig) (io.Writer, io.Closer, error) {
	var output io.Writer = os.Stdout
	var closer io.Closer

	switch strings.ToLower(strings.TrimSpace(cfg.Output)) {
	case "stderr":
		output = os.Stderr
	case "file":
		if cfg.FilePath == "" {
			return nil, nil, fmt.Errorf("logging.output=file requires logging.file_path")
		}
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		output = file
		closer = file
	}

	if strings.ToLower(strings.TrimSpace(cfg.Format)) == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}
	return output, closer, nil
}
