// Command surface opens a window and animates a 64×64 point grid whose positions are computed on the
// GPU every frame. Configuration is read from the TOML file named by SURFACE_CONFIG, if set.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-surface/engine"
	"github.com/Carmen-Shannon/oxy-surface/engine/config"
	"github.com/Carmen-Shannon/oxy-surface/engine/fault"
	"github.com/Carmen-Shannon/oxy-surface/engine/gpu"
	"github.com/Carmen-Shannon/oxy-surface/engine/logger"
	"github.com/Carmen-Shannon/oxy-surface/engine/window"
)

func init() {
	// GLFW and the surface must stay on the main OS thread.
	runtime.LockOSThread()
}

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log := logger.New(logger.Config{Name: "surface"})
		log.Error("invalid configuration", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Environment: cfg.Log.Environment,
		Level:       cfg.Log.Level,
		Name:        "surface",
	})
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		fatal(log, err)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	win, err := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithWidth(cfg.Window.Width),
		window.WithHeight(cfg.Window.Height),
		window.WithMinWidth(cfg.Window.MinWidth),
		window.WithMinHeight(cfg.Window.MinHeight),
	)
	if err != nil {
		return fault.Initialization("create window", err)
	}
	defer func() { _ = win.Close() }()

	eng := engine.NewEngine(gpu.NewWGPUDriver(log), win,
		engine.WithConfig(cfg),
		engine.WithLogger(log),
		engine.WithPoll(win.Poll),
	)
	defer eng.Close()

	if err := eng.Start(); err != nil {
		return err
	}
	win.SetResizeCallback(func(width, height int) {
		if err := eng.Resize(width, height); err != nil {
			log.Warn("resize failed", zap.Int("width", width), zap.Int("height", height), zap.Error(err))
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return eng.Run(ctx)
}

// fatal reports err with its fault classification and terminates the process.
func fatal(log *zap.Logger, err error) {
	fields := []zap.Field{zap.Error(err)}
	var f *fault.Error
	if errors.As(err, &f) {
		fields = append(fields,
			zap.Stringer("kind", f.Kind),
			zap.String("op", f.Op),
		)
		if diag := fault.DiagnosticsOf(err); diag != "" {
			fields = append(fields, zap.String("diagnostics", diag))
		}
	}
	log.Error("surface terminated", fields...)
	_ = log.Sync()
	os.Exit(1)
}
