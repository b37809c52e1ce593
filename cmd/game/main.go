package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AruFlux/Tank-combat-arena/internal/config"
	"github.com/AruFlux/Tank-combat-arena/internal/game"
	"github.com/AruFlux/Tank-combat-arena/internal/logging"
	"github.com/AruFlux/Tank-combat-arena/internal/scores"
	"github.com/AruFlux/Tank-combat-arena/internal/telemetry"
	"github.com/AruFlux/Tank-combat-arena/internal/view"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	start := time.Now()
	if err := config.Load("."); err != nil {
		return err
	}
	level := config.GetString("logLevel")
	logsDir := config.GetString("logsDir")

	slogMgr := logging.NewSlogManager()
	if path, err := slogMgr.SetupFile(logsDir, "tank_arena", level, start); err != nil {
		slogMgr.Setup(nil, level)
		slogMgr.Logger().Warn("session log unavailable, logging to stdout", "error", err)
	} else {
		fmt.Printf("logging to %s\n", path)
	}
	defer slogMgr.Close()
	logger := slogMgr.Logger()

	dbLog, closeDBLog := scoresLogger(logsDir, level, start)
	defer closeDBLog()

	opts := []view.Option{
		view.WithLogger(logger),
		view.WithPlayerName(config.GetString("player.name")),
	}

	scoresCfg := config.GetScoresConfig()
	mgr := scores.NewManager(dbLog)
	if err := mgr.Connect(scoresCfg); err != nil {
		logger.Error("score database unavailable, playing offline", "error", err)
	} else {
		defer mgr.Close()
		opts = append(opts, view.WithStore(mgr.Store, scoresCfg.Limit))
	}

	metrics, closeMetrics := metricsProvider(logsDir, start)
	defer closeMetrics()
	rec, err := metrics.Recorder()
	if err != nil {
		logger.Warn("telemetry disabled", "error", err)
	} else {
		opts = append(opts, view.WithTelemetry(rec))
		logger.Info("telemetry", "exporting", metrics.Enabled())
	}

	simOpts := []game.Option{game.WithRules(config.Rules())}
	if seed := config.GetInt64("sim.seed"); seed != 0 {
		simOpts = append(simOpts, game.WithSeed(seed))
	}
	sim := game.NewSim(simOpts...)

	win := config.GetWindowConfig()
	opts = append(opts, view.WithScreenSize(win.Width, win.Height))
	g := view.New(sim, opts...)

	ebiten.SetWindowTitle(win.Title)
	ebiten.SetWindowSize(win.Width, win.Height)
	ebiten.SetTPS(int(config.Rules().TickRate))

	logger.Info("starting", "window", fmt.Sprintf("%dx%d", win.Width, win.Height), "scores_sqlite", mgr.UsingSQLite)
	err = ebiten.RunGame(g)
	logger.Info("shutting down", "uptime", time.Since(start).Round(time.Second).String())
	return err
}

// metricsProvider exports gameplay metrics to a session file when telemetry
// is enabled in config. The returned func flushes and closes it.
func metricsProvider(logsDir string, start time.Time) (*telemetry.Provider, func()) {
	tc := config.GetTelemetryConfig()
	cfg := telemetry.Config{Enabled: tc.Enabled, ServiceName: tc.ServiceName, Interval: tc.Interval}

	var f *os.File
	if cfg.Enabled {
		var err error
		path := logging.LogFilePath(logsDir, "tank_arena_metrics", start)
		f, err = os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Printf("metrics file unavailable: %v", err)
			cfg.Enabled = false
		} else {
			cfg.Writer = f
		}
	}

	p, err := telemetry.NewProvider(cfg)
	if err != nil {
		log.Printf("telemetry provider: %v", err)
		p, _ = telemetry.NewProvider(telemetry.Config{})
	}
	return p, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Shutdown(ctx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
		if f != nil {
			_ = f.Close()
		}
	}
}

// scoresLogger builds the zerolog logger for the score database: colored
// console output plus a plain session file when the logs dir is writable.
func scoresLogger(logsDir, level string, start time.Time) (zerolog.Logger, func()) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	path := logging.LogFilePath(logsDir, "tank_arena_scores", start)
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.New(console).Level(lvl).With().Timestamp().Str("component", "scores").Logger(), func() {}
	}

	mlw := zerolog.MultiLevelWriter(
		console,
		zerolog.ConsoleWriter{Out: f, TimeFormat: time.RFC3339, NoColor: true},
	)
	l := zerolog.New(mlw).Level(lvl).With().Timestamp().Str("component", "scores").Logger()
	return l, func() { _ = f.Close() }
}
