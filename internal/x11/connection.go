package x11

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/shape"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Connection manages the X11 connection and the extensions overlays need.
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window

	logger *slog.Logger

	mu       sync.Mutex
	onChange func()
}

// NewConnection connects to the X server and initializes RandR and SHAPE.
func NewConnection(logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}

	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("connect to X server: %w", err)
	}
	if err := randr.Init(xu.Conn()); err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("randr init failed: %w", err)
	}
	if err := shape.Init(xu.Conn()); err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("shape init failed: %w", err)
	}

	c := &Connection{
		XUtil:  xu,
		Root:   xu.RootWin(),
		logger: logger,
	}

	err = randr.SelectInputChecked(xu.Conn(), c.Root,
		randr.NotifyMaskScreenChange|randr.NotifyMaskCrtcChange|randr.NotifyMaskOutputChange,
	).Check()
	if err != nil {
		logger.Warn("failed to subscribe to RandR changes, relying on periodic reconcile", "error", err)
	}
	xevent.HookFun(c.handleEvent).Connect(xu)

	return c, nil
}

// OnMonitorsChanged registers fn to run when RandR reports a layout change.
// fn runs on the event loop goroutine and must not block.
func (c *Connection) OnMonitorsChanged(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// EventLoop runs the X event loop until Quit is called.
func (c *Connection) EventLoop() {
	xevent.Main(c.XUtil)
}

// Quit stops the event loop.
func (c *Connection) Quit() {
	xevent.Quit(c.XUtil)
}

// Close cleanly disconnects from the X11 server.
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}

// handleEvent watches for RandR notifications. It never consumes events.
func (c *Connection) handleEvent(_ *xgbutil.XUtil, ev interface{}) bool {
	switch ev.(type) {
	case randr.ScreenChangeNotifyEvent, randr.NotifyEvent:
		c.mu.Lock()
		fn := c.onChange
		c.mu.Unlock()
		if fn != nil {
			c.logger.Debug("randr change notification")
			fn()
		}
	}
	return true
}
