// Package main is the entry point for the stickerlayd overlay daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmylchreest/stickerlay/internal/audio"
	"github.com/jmylchreest/stickerlay/internal/broadcast"
	"github.com/jmylchreest/stickerlay/internal/config"
	"github.com/jmylchreest/stickerlay/internal/daemon"
	"github.com/jmylchreest/stickerlay/internal/dbus"
	"github.com/jmylchreest/stickerlay/internal/display"
	"github.com/jmylchreest/stickerlay/internal/model"
	"github.com/jmylchreest/stickerlay/internal/stickers"
	"github.com/jmylchreest/stickerlay/internal/store"
)

const (
	appID   = "io.github.jmylchreest.stickerlayd"
	appName = "stickerlayd"
)

var (
	// Build-time variables
	version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to stickerlayd.toml (default ~/.config/stickerlay/stickerlayd.toml)")
	backend := flag.String("backend", "", "Override the overlay backend: auto, wayland or x11")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(appName, "version", version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	path := *configPath
	if path == "" {
		var err error
		path, err = config.DaemonConfigPath()
		if err != nil {
			logger.Error("failed to get config path", "error", err)
			os.Exit(1)
		}
	}
	cfg, err := config.LoadDaemonConfigFile(path)
	if err != nil {
		logger.Error("failed to load config", "path", path, "error", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Overlay.Backend = *backend
		if err := cfg.Validate(); err != nil {
			logger.Error("invalid backend flag", "error", err)
			os.Exit(1)
		}
	}

	selected, err := selectBackend(config.Backend(cfg.Overlay.Backend), os.Getenv)
	if err != nil {
		logger.Error("no overlay backend available", "error", err)
		os.Exit(1)
	}
	logger.Info("starting stickerlayd", "version", version, "backend", selected, "config", path)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt := &runtime{cfg: cfg, configPath: path, logger: logger}

	switch selected {
	case config.BackendWayland:
		err = runWayland(ctx, rt)
	case config.BackendX11:
		err = runX11(ctx, rt)
	}
	if err != nil {
		logger.Error("stickerlayd exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("stickerlayd stopped")
}

// selectBackend resolves "auto" from the session environment.
func selectBackend(b config.Backend, getenv func(string) string) (config.Backend, error) {
	switch b {
	case config.BackendWayland, config.BackendX11:
		return b, nil
	case config.BackendAuto, "":
		if getenv("WAYLAND_DISPLAY") != "" {
			return config.BackendWayland, nil
		}
		if getenv("DISPLAY") != "" {
			return config.BackendX11, nil
		}
		return "", errors.New("neither WAYLAND_DISPLAY nor DISPLAY is set")
	default:
		return "", fmt.Errorf("unknown backend %q", b)
	}
}

// runtime holds the backend-independent daemon components.
type runtime struct {
	cfg        *config.DaemonConfig
	configPath string
	logger     *slog.Logger

	svc            *daemon.Service
	server         *dbus.ControlServer
	layoutWatcher  *store.FileWatcher
	stickerWatcher *stickers.Watcher
	configWatcher  *daemon.ConfigWatcher
	music          *audio.Manager

	// onConfig runs backend-specific reload steps after the service applied
	// a new config.
	onConfig func(daemon.ConfigChange)
}

// build assembles the service for a backend.
func (rt *runtime) build(backend config.Backend, source display.MonitorSource, factory display.WindowFactory, runOnUI func(func())) error {
	lib, err := stickers.NewLibrary(rt.cfg.StickerDir(), rt.logger.With("component", "stickers"))
	if err != nil {
		return fmt.Errorf("open sticker library: %w", err)
	}

	layoutsPath, err := store.LayoutsPath()
	if err != nil {
		return fmt.Errorf("get layouts path: %w", err)
	}
	reference := model.Rect{Width: rt.cfg.Layout.ReferenceWidth, Height: rt.cfg.Layout.ReferenceHeight}
	persistence, err := store.NewFilePersistence(layoutsPath, reference, rt.logger.With("component", "persistence"))
	if err != nil {
		return fmt.Errorf("open layouts: %w", err)
	}

	rt.music = audio.NewManager(rt.cfg, audio.NewPlayer(rt.logger.With("component", "music-player")), rt.logger.With("component", "music"))

	rt.svc, err = daemon.NewService(rt.cfg, daemon.Deps{
		Source:      source,
		Factory:     factory,
		Persistence: persistence,
		State:       store.SharedStateFile{},
		Library:     lib,
		Music:       rt.music,
		RunOnUI:     runOnUI,
		Backend:     string(backend),
		Version:     version,
		Logger:      rt.logger,
	})
	if err != nil {
		return err
	}

	rt.layoutWatcher, err = store.NewFileWatcher(rt.svc.Store(), layoutsPath, rt.logger.With("component", "layout-watcher"))
	if err != nil {
		rt.logger.Warn("failed to create layout file watcher", "error", err)
	}

	if rt.cfg.Stickers.Watch {
		rt.stickerWatcher, err = stickers.NewWatcher(lib, rt.logger.With("component", "sticker-watcher"))
		if err != nil {
			rt.logger.Warn("failed to create sticker watcher", "error", err)
		}
	}

	return nil
}

// start brings the service up, then exports it on the bus and starts the
// watchers. It blocks on the UI thread when one is configured, so it must
// run on its own goroutine in that case.
func (rt *runtime) start(ctx context.Context) error {
	notifier := rt.svc.Notifier()

	if err := rt.svc.Start(ctx); err != nil {
		return err
	}

	if err := rt.music.Start(); err != nil {
		rt.logger.Warn("music unavailable", "error", err)
	}

	rt.server = dbus.NewControlServer(rt.svc, rt.logger.With("component", "dbus"))
	if err := rt.server.Start(); err != nil {
		return fmt.Errorf("start D-Bus server: %w", err)
	}

	sender := dbus.NewNotifier(rt.server.Connection(), rt.logger)
	notifier.SetNotifyHandler(sender.Send)

	rt.svc.OnLayoutChanged(func(u broadcast.Update) {
		if err := rt.server.EmitLayoutChanged(u.Layout, u.ID); err != nil {
			rt.logger.Debug("failed to emit LayoutChanged", "display_id", u.DisplayID, "error", err)
		}
	})
	rt.svc.OnDisplaysChanged(func(count int) {
		if err := rt.server.EmitDisplaysChanged(count); err != nil {
			rt.logger.Debug("failed to emit DisplaysChanged", "error", err)
		}
	})

	if rt.layoutWatcher != nil {
		if err := rt.layoutWatcher.Start(); err != nil {
			rt.logger.Warn("failed to start layout file watcher", "error", err)
		}
	}
	if rt.stickerWatcher != nil {
		if err := rt.stickerWatcher.Start(); err != nil {
			rt.logger.Warn("failed to start sticker watcher", "error", err)
		} else {
			rt.svc.WatchStickers(rt.stickerWatcher)
		}
	}

	var err error
	rt.configWatcher, err = daemon.NewConfigWatcher(rt.configPath, rt.logger.With("component", "config-watcher"))
	if err != nil {
		rt.logger.Warn("failed to create config watcher", "error", err)
	} else {
		rt.configWatcher.SetReloadCallback(func(change daemon.ConfigChange) {
			rt.cfg = change.New
			rt.svc.ApplyConfig(change.New)
			if rt.onConfig != nil {
				rt.onConfig(change)
			}
			notifier.NotifyConfigReloaded()
		})
		rt.configWatcher.SetErrorCallback(notifier.NotifyConfigError)
		if err := rt.configWatcher.Start(ctx, rt.cfg); err != nil {
			rt.logger.Warn("failed to start config watcher", "error", err)
		}
	}

	rt.logger.Info("stickerlayd ready", "dbus_interface", dbus.ServiceInterface)
	return nil
}

// stopWatchers stops everything that feeds the service from outside. The
// sticker watcher must be stopped before the service is closed.
func (rt *runtime) stopWatchers() {
	if rt.configWatcher != nil {
		rt.configWatcher.Stop()
	}
	if rt.layoutWatcher != nil {
		_ = rt.layoutWatcher.Stop()
	}
	if rt.stickerWatcher != nil {
		_ = rt.stickerWatcher.Stop()
	}
	if rt.server != nil {
		_ = rt.server.Stop()
	}
	if rt.music != nil {
		rt.music.Stop()
	}
}

// closeService destroys the overlays and flushes the store.
func (rt *runtime) closeService() {
	if rt.svc == nil {
		return
	}
	if err := rt.svc.Close(); err != nil {
		rt.logger.Warn("error closing service", "error", err)
	}
}
