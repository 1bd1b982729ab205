package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/diamondburned/gotk4-adwaita/pkg/adw"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/jmylchreest/stickerlay/internal/config"
	"github.com/jmylchreest/stickerlay/internal/daemon"
	"github.com/jmylchreest/stickerlay/internal/theme"
	"github.com/jmylchreest/stickerlay/internal/wayland"
)

// runWayland runs the daemon inside a libadwaita application. GTK objects
// are created in the activate handler on the main thread; the service is
// started from a separate goroutine because its startup waits on that
// thread.
func runWayland(ctx context.Context, rt *runtime) error {
	logger := rt.logger
	app := adw.NewApplication(appID, 0)

	var (
		themeLoader *theme.Loader
		activated   bool
		startErr    error
	)
	started := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info("received signal, shutting down")

		// Startup may still be waiting on the main loop. The service
		// gives up on its own once ctx is done.
		<-started
		rt.stopWatchers()

		glib.IdleAdd(func() {
			if themeLoader != nil {
				themeLoader.StopHotReload()
			}
			rt.closeService()
			app.Quit()
		})
	}()

	app.ConnectActivate(func() {
		if activated {
			logger.Warn("application already running")
			return
		}
		activated = true

		themeLoader = theme.NewLoader(logger.With("component", "theme"))
		themeErr := themeLoader.Load(rt.cfg.ThemeCSSPath())
		themeLoader.Apply(nil)

		source, err := wayland.NewMonitorSource(nil, logger.With("component", "monitors"))
		if err != nil {
			startErr = fmt.Errorf("monitor source: %w", err)
			close(started)
			app.Quit()
			return
		}
		factory := wayland.NewFactory(&app.Application, source, logger.With("component", "overlay"))

		if err := rt.build(config.BackendWayland, source, factory, wayland.RunOnUI); err != nil {
			startErr = err
			close(started)
			app.Quit()
			return
		}

		notifier := rt.svc.Notifier()
		if themeErr != nil && !errors.Is(themeErr, os.ErrNotExist) {
			notifier.NotifyThemeError(themeErr)
		}
		themeLoader.StartHotReload(ctx, notifier.NotifyThemeError)
		source.OnChange(rt.svc.RequestReconcile)

		rt.onConfig = func(change daemon.ConfigChange) {
			if !change.Has("theme") {
				return
			}
			path := change.New.ThemeCSSPath()
			glib.IdleAdd(func() {
				themeLoader.Switch(ctx, path, notifier.NotifyThemeError)
			})
		}

		// GTK applications quit once their last window closes.
		keepAliveWindow := gtk.NewWindow()
		keepAliveWindow.SetApplication(&app.Application)
		keepAliveWindow.SetDefaultSize(1, 1)
		keepAliveWindow.SetDecorated(false)
		keepAliveWindow.SetVisible(false)

		go func() {
			defer close(started)
			if err := rt.start(ctx); err != nil {
				glib.IdleAdd(func() {
					startErr = err
					rt.closeService()
					app.Quit()
				})
			}
		}()
	})

	app.ConnectShutdown(func() {
		logger.Info("application shutting down")
	})

	// Flags were already consumed by the flag package.
	status := app.Run(os.Args[:1])

	if startErr != nil {
		return startErr
	}
	if status != 0 {
		return fmt.Errorf("application exited with status %d", status)
	}
	return nil
}
