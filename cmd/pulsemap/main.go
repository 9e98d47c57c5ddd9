// Command pulsemap runs the live attendance pulse map core: it
// subscribes to the staffing snapshot feed, drives a remote map client
// (or a headless backend), and degrades to the list view when the map
// is unusable.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shiftpulse/pulsemap/internal/api"
	"github.com/shiftpulse/pulsemap/internal/config"
	"github.com/shiftpulse/pulsemap/internal/fallback"
	"github.com/shiftpulse/pulsemap/internal/feed"
	"github.com/shiftpulse/pulsemap/internal/influx"
	"github.com/shiftpulse/pulsemap/internal/logging"
	"github.com/shiftpulse/pulsemap/internal/mapbackend"
	"github.com/shiftpulse/pulsemap/internal/mapbackend/memory"
	"github.com/shiftpulse/pulsemap/internal/mapbackend/remote"
	"github.com/shiftpulse/pulsemap/internal/monitor"
	"github.com/shiftpulse/pulsemap/internal/snapshot"
	"github.com/shiftpulse/pulsemap/internal/supervisor"
	"github.com/shiftpulse/pulsemap/pkg/core"
)

var (
	Version   string = "0.1.0"
	BuildDate string = "unknown"
)

// logSink renders the fallback list into the log only. Used when the
// service runs headless and no client surface exists.
type logSink struct {
	logger *slog.Logger
}

func (s *logSink) PresentList(html string) error {
	s.logger.Info("fallback list rendered", "bytes", len(html))
	return nil
}

func main() {
	configDir := flag.String("config", ".", "directory containing pulsemap.cfg.json")
	headless := flag.Bool("headless", false, "run with the in-process map backend instead of a remote client")
	flag.Parse()

	if err := run(*configDir, *headless); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configDir string, headless bool) error {
	sessionStart := time.Now()

	if err := config.Load(configDir); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	snapshots := snapshot.NewContext()

	// Logging: file plus optional Graylog, with live session context on
	// every record.
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}
	logFile, err := os.Create(logging.LogFilePath(logsDir, "pulsemap", sessionStart))
	if err != nil {
		return fmt.Errorf("creating log file: %w", err)
	}
	defer logFile.Close()

	var sup *supervisor.Supervisor

	logMgr := logging.NewSlogManager()
	graylogAddr := ""
	if config.GetBool("graylog.enabled") {
		graylogAddr = config.GetString("graylog.address")
	}
	logMgr.Setup(logging.Options{
		File:        logFile,
		Level:       config.GetString("logLevel"),
		GraylogAddr: graylogAddr,
		Context: func() []slog.Attr {
			attrs := []slog.Attr{slog.Uint64("generation", snapshots.Generation())}
			if sup != nil {
				attrs = append(attrs, slog.String("session_state", sup.State().String()))
			}
			return attrs
		},
	})
	defer logMgr.Close()
	logger := logMgr.Logger()

	logger.Info("pulsemap starting", "version", Version, "buildDate", BuildDate, "headless", headless)

	onFocus := func(rec core.AttendanceRecord, ev core.Event) {
		logger.Info("focus requested", "personId", rec.PersonID, "eventId", ev.ID)
	}

	// Backend capability and fallback sink.
	var (
		capability mapbackend.Capability
		sink       fallback.Sink
		remoteCap  *remote.Capability
	)
	if headless {
		capability = memory.New()
		sink = &logSink{logger: logger}
	} else {
		remoteCap, err = remote.New(remote.Config{
			URL:    config.GetString("remote.listenAddr"),
			Secret: config.GetString("feed.secret"),
		}, logger)
		if err != nil {
			return fmt.Errorf("creating remote map backend: %w", err)
		}
		if err := remoteCap.Dial(); err != nil {
			logger.Error("map client dial failed, session will degrade", "error", err)
		}
		defer remoteCap.Close()
		capability = remoteCap
		sink = remoteCap
	}

	sup = supervisor.New(supervisor.Dependencies{
		Capability: capability,
		Options: mapbackend.MapOptions{
			StyleURL:    config.GetString("map.styleUrl"),
			AccessToken: config.GetString("map.accessToken"),
			Center:      config.DefaultCenter(),
			Zoom:        float64(config.GetInt("map.defaultZoom")),
		},
		Snapshots: snapshots,
		OnFocus:   onFocus,
		Sink:      sink,
		Logger:    logger,
	})
	sup.Start()
	defer sup.Close()

	// Snapshot feed. Ping the platform first so the log records whether
	// we started against a live backend.
	feedURL := config.GetString("feed.url")
	if base, err := api.BaseFromFeedURL(feedURL); err == nil {
		if err := api.New(base, config.GetString("feed.secret")).Healthcheck(); err != nil {
			logger.Warn("staffing platform offline", "base", base, "error", err)
		} else {
			logger.Info("staffing platform online", "base", base)
		}
	}

	feedClient, err := feed.New(feed.Config{
		URL:    feedURL,
		Secret: config.GetString("feed.secret"),
	}, sup, logger)
	if err != nil {
		return fmt.Errorf("creating feed client: %w", err)
	}
	if err := feedClient.Subscribe(); err != nil {
		return fmt.Errorf("subscribing to feed: %w", err)
	}
	defer feedClient.Close()

	// Telemetry.
	var influxMgr *influx.Manager
	if config.GetBool("influx.enabled") {
		influxMgr = influx.NewManager(logger, logging.LogFilePath(logsDir, "influx_backup", sessionStart)+".gz")
		if err := influxMgr.Connect(); err != nil {
			logger.Warn("influx unavailable", "error", err)
			influxMgr = nil
		} else {
			defer influxMgr.Close()
		}
	}

	mon := monitor.NewService(monitor.Dependencies{
		LogManager: logMgr,
		Snapshots:  snapshots,
		Source:     sup,
		Influx:     influxMgr,
		StatusDir:  logsDir,
	})
	if err := mon.Start(); err != nil {
		return fmt.Errorf("starting monitor: %w", err)
	}
	defer mon.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	return nil
}
