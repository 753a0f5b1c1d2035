// Package logging configures the process-wide logrus logger: coloured text on
// stdout and, when a file path is configured, a rotated plain-text copy.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/relabs-tech/dprs_gateway/internal/config"
)

// Configure applies the log section of cfg to the standard logrus logger.
// The returned closer flushes the log file, if any.
func Configure(cfg *config.Config) (io.Closer, error) {
	return configure(log.StandardLogger(), os.Stdout, cfg)
}

func configure(logger *log.Logger, out io.Writer, cfg *config.Config) (io.Closer, error) {
	logger.SetLevel(cfg.GetLogLevel())
	logger.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})
	logger.SetOutput(out)

	if cfg.Log.FilePath == "" {
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Log.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file := &lumberjack.Logger{
		Filename:   cfg.Log.FilePath,
		MaxSize:    20, // megabytes
		MaxBackups: 10,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   true,
	}

	logger.AddHook(lfshook.NewHook(lfshook.WriterMap{
		log.PanicLevel: file,
		log.FatalLevel: file,
		log.ErrorLevel: file,
		log.WarnLevel:  file,
		log.InfoLevel:  file,
		log.DebugLevel: file,
		log.TraceLevel: file,
	}, &log.TextFormatter{DisableColors: true, FullTimestamp: true}))

	return file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
