package dbus

import (
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

const (
	// NotificationsInterface is the freedesktop notification interface.
	NotificationsInterface = "org.freedesktop.Notifications"
	// NotificationsPath is the freedesktop notification object path.
	NotificationsPath = dbus.ObjectPath("/org/freedesktop/Notifications")
)

// Notifier sends desktop notifications to whichever notification daemon
// owns org.freedesktop.Notifications.
type Notifier struct {
	conn   *dbus.Conn
	logger *slog.Logger
}

// NewNotifier creates a Notifier. A nil conn connects to the session bus on
// first use.
func NewNotifier(conn *dbus.Conn, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{conn: conn, logger: logger}
}

// Send delivers a notification and returns the id assigned by the server.
func (n *Notifier) Send(notification *Notification) (uint32, error) {
	if n.conn == nil {
		conn, err := dbus.SessionBus()
		if err != nil {
			return 0, fmt.Errorf("failed to connect to session bus: %w", err)
		}
		n.conn = conn
	}

	hints := notification.Hints
	if hints == nil {
		hints = map[string]dbus.Variant{}
	}
	actions := notification.Actions
	if actions == nil {
		actions = []string{}
	}

	obj := n.conn.Object(NotificationsInterface, NotificationsPath)
	call := obj.Call(NotificationsInterface+".Notify", 0,
		notification.AppName,
		notification.ReplacesID,
		notification.AppIcon,
		notification.Summary,
		notification.Body,
		actions,
		hints,
		notification.ExpireTimeout,
	)
	if call.Err != nil {
		return 0, fmt.Errorf("failed to send notification: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("failed to read notification id: %w", err)
	}

	n.logger.Debug("sent desktop notification", "id", id, "summary", notification.Summary)
	return id, nil
}
