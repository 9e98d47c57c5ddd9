// Package logging wires slog up for the pulse map service: console or
// file text output, optional Graylog GELF shipping, and per-record
// session context.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
)

// Indirections for tests that capture stdout.
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// Options configures Setup.
type Options struct {
	// File, when non-nil, receives text log output instead of stdout.
	File io.Writer
	// Level is the minimum level name: debug, info, warn, error.
	Level string
	// GraylogAddr, when set, ships every record to a GELF endpoint.
	GraylogAddr string
	// Context, when set, is called per record for live session
	// attributes.
	Context ContextProvider
}

// SlogManager manages slog-based logging with optional Graylog output.
type SlogManager struct {
	logger *slog.Logger

	gelfWriter *gelf.Writer
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the logging system. With a file writer, console
// output is suppressed; a Graylog address adds a GELF handler. A bad
// Graylog address is reported on the remaining handlers, never fatal.
func (m *SlogManager) Setup(opts Options) {
	lvl := parseLevel(opts.Level)

	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler

	if opts.File != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.File, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(osStdout, handlerOpts))
	}

	var gelfErr error
	if opts.GraylogAddr != "" {
		w, err := gelf.NewWriter(opts.GraylogAddr)
		if err != nil {
			gelfErr = err
		} else {
			m.gelfWriter = w
			handlers = append(handlers, slog.NewJSONHandler(w, handlerOpts))
		}
	}

	var handler slog.Handler = NewMultiHandler(handlers...)
	if opts.Context != nil {
		handler = NewContextHandler(handler, opts.Context)
	}

	m.logger = slog.New(handler)
	m.logger.Info("Logging initialized", "level", opts.Level)
	if gelfErr != nil {
		m.logger.Error("Graylog writer unavailable", "address", opts.GraylogAddr, "error", gelfErr)
	}
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Close releases the Graylog writer if one was opened.
func (m *SlogManager) Close() error {
	if m.gelfWriter != nil {
		return m.gelfWriter.Close()
	}
	return nil
}
