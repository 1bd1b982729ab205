package daemon

import (
	"log/slog"
	"sync"
	"time"

	godbus "github.com/godbus/dbus/v5"

	"github.com/jmylchreest/stickerlay/internal/dbus"
	"github.com/jmylchreest/stickerlay/internal/model"
)

// NotificationLevel indicates the urgency/severity of an internal notification.
type NotificationLevel int

const (
	// NotificationLevelInfo is for informational messages (low urgency).
	NotificationLevelInfo NotificationLevel = iota
	// NotificationLevelWarning is for warning messages (normal urgency).
	NotificationLevelWarning
	// NotificationLevelError is for error messages (critical urgency).
	NotificationLevelError
)

var levelIcons = [...]string{
	NotificationLevelInfo:    "dialog-information",
	NotificationLevelWarning: "dialog-warning",
	NotificationLevelError:   "dialog-error",
}

// NotifyHandler delivers a desktop notification and returns the id the
// notification server assigned to it.
type NotifyHandler func(notification *dbus.Notification) (uint32, error)

// sentNotice remembers when a key was last shown and under which server id,
// so a repeat replaces the earlier bubble instead of stacking.
type sentNotice struct {
	at time.Time
	id uint32
}

// InternalNotifier sends desktop notifications about non-fatal stickerlayd
// failures. Identical notifications are rate limited per key.
type InternalNotifier struct {
	mu      sync.Mutex
	logger  *slog.Logger
	handler NotifyHandler
	sent    map[string]sentNotice
	every   time.Duration
	enabled bool
}

// NewInternalNotifier creates a new InternalNotifier.
func NewInternalNotifier(logger *slog.Logger) *InternalNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &InternalNotifier{
		logger:  logger,
		sent:    make(map[string]sentNotice),
		every:   time.Minute,
		enabled: true,
	}
}

// SetNotifyHandler sets the function that delivers notifications.
func (n *InternalNotifier) SetNotifyHandler(handler NotifyHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handler = handler
}

// SetEnabled enables or disables internal notifications.
func (n *InternalNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// SetMinInterval sets the minimum interval between duplicate notifications.
func (n *InternalNotifier) SetMinInterval(interval time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.every = interval
}

// Notify sends a notification unless the same key was shown within the
// minimum interval. The handler runs without the notifier lock held.
func (n *InternalNotifier) Notify(key, summary, body string, level NotificationLevel) {
	n.mu.Lock()
	handler := n.handler
	prev, seen := n.sent[key]
	switch {
	case !n.enabled:
		n.mu.Unlock()
		return
	case handler == nil:
		n.mu.Unlock()
		n.logger.Debug("internal notification skipped: no handler", "summary", summary)
		return
	case seen && time.Since(prev.at) < n.every:
		n.mu.Unlock()
		n.logger.Debug("internal notification rate-limited", "key", key, "summary", summary)
		return
	}
	n.sent[key] = sentNotice{at: time.Now(), id: prev.id}
	n.mu.Unlock()

	if level < NotificationLevelInfo || level > NotificationLevelError {
		level = NotificationLevelWarning
	}
	notification := &dbus.Notification{
		AppName:    "stickerlayd",
		ReplacesID: prev.id,
		AppIcon:    levelIcons[level],
		Summary:    summary,
		Body:       body,
		Hints: map[string]godbus.Variant{
			"urgency":       godbus.MakeVariant(byte(level)),
			"category":      godbus.MakeVariant("device"),
			"transient":     godbus.MakeVariant(true),
			"desktop-entry": godbus.MakeVariant("stickerlayd"),
		},
		ExpireTimeout: 5000,
	}

	n.logger.Debug("sending internal notification", "key", key, "summary", summary, "level", level)
	id, err := handler(notification)
	if err != nil {
		n.logger.Warn("failed to send internal notification", "summary", summary, "error", err)
		return
	}

	n.mu.Lock()
	if cur, ok := n.sent[key]; ok {
		cur.id = id
		n.sent[key] = cur
	}
	n.mu.Unlock()
}

// Forget drops the rate limit state for key, so the next failure of that
// kind is shown immediately.
func (n *InternalNotifier) Forget(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.sent, key)
}

func windowKey(id model.DisplayID) string { return "window-" + string(id) }

// NotifyWindowCreationFailed reports a display left without an overlay.
func (n *InternalNotifier) NotifyWindowCreationFailed(id model.DisplayID, err error) {
	n.Notify(windowKey(id), "Overlay Unavailable",
		"Could not create the sticker overlay on "+string(id)+": "+err.Error(),
		NotificationLevelError)
}

// WindowRecovered clears the failure state for a display whose overlay was
// created after all.
func (n *InternalNotifier) WindowRecovered(id model.DisplayID) {
	n.Forget(windowKey(id))
}

// NotifyEnumerationFailed reports that displays could not be listed.
func (n *InternalNotifier) NotifyEnumerationFailed(err error) {
	n.Notify("enumeration", "Display Detection Failed",
		"stickerlayd could not list displays: "+err.Error(),
		NotificationLevelError)
}

// NotifyCaptureUnsupported reports that overlays will appear in screen
// captures.
func (n *InternalNotifier) NotifyCaptureUnsupported(backend string) {
	n.Notify("capture-unsupported", "Capture Protection Unavailable",
		"The "+backend+" backend cannot hide overlays from screen capture.",
		NotificationLevelInfo)
}

// NotifyPersistenceError reports a failed layout write.
func (n *InternalNotifier) NotifyPersistenceError(err error) {
	n.Notify("persistence", "Layout Not Saved",
		"Failed to save sticker layouts: "+err.Error(),
		NotificationLevelError)
}

// NotifyConfigReloaded confirms an applied config change.
func (n *InternalNotifier) NotifyConfigReloaded() {
	n.Forget("config-error")
	n.Notify("config-reload", "Configuration Reloaded",
		"stickerlayd configuration has been successfully reloaded.",
		NotificationLevelInfo)
}

// NotifyConfigError reports a config file that failed to load or validate.
func (n *InternalNotifier) NotifyConfigError(err error) {
	n.Notify("config-error", "Configuration Error",
		"Failed to reload configuration: "+err.Error(),
		NotificationLevelWarning)
}

// NotifyThemeError reports a stylesheet that failed to load.
func (n *InternalNotifier) NotifyThemeError(err error) {
	n.Notify("theme-error", "Theme Error",
		"Failed to load overlay stylesheet: "+err.Error(),
		NotificationLevelWarning)
}
