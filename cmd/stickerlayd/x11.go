package main

import (
	"context"
	"fmt"

	"github.com/jmylchreest/stickerlay/internal/config"
	"github.com/jmylchreest/stickerlay/internal/x11"
)

// runX11 runs the daemon against the X server. Overlay windows are plain
// override-redirect windows, so no toolkit thread is involved.
func runX11(ctx context.Context, rt *runtime) error {
	logger := rt.logger

	conn, err := x11.NewConnection(logger.With("component", "x11"))
	if err != nil {
		return err
	}
	defer conn.Close()

	factory := x11.NewFactory(conn, logger.With("component", "overlay"))
	if err := rt.build(config.BackendX11, conn, factory, nil); err != nil {
		return err
	}
	conn.OnMonitorsChanged(rt.svc.RequestReconcile)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		conn.EventLoop()
	}()

	if err := rt.start(ctx); err != nil {
		conn.Quit()
		<-loopDone
		rt.stopWatchers()
		rt.closeService()
		return fmt.Errorf("start service: %w", err)
	}
	if rt.cfg.Overlay.CaptureProtection {
		rt.svc.Notifier().NotifyCaptureUnsupported(string(config.BackendX11))
	}

	<-ctx.Done()
	logger.Info("received signal, shutting down")

	rt.stopWatchers()
	rt.closeService()
	conn.Quit()
	<-loopDone
	return nil
}
