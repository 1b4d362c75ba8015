package daemon

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jmylchreest/winsync/internal/dbus"
)

// NotificationLevel indicates the urgency of a notification.
type NotificationLevel int

const (
	// NotificationLevelInfo is for informational messages (low urgency).
	NotificationLevelInfo NotificationLevel = iota
	// NotificationLevelWarning is for warning messages (normal urgency).
	NotificationLevelWarning
	// NotificationLevelError is for error messages (critical urgency).
	NotificationLevelError
)

// NotifyFunc delivers a notification and returns the id the server assigned.
type NotifyFunc func(n *dbus.Notification) (uint32, error)

// CloseFunc withdraws a notification by its server id.
type CloseFunc func(id uint32) error

// Notifier sends desktop notifications about registry membership.
// Each key reuses its previous notification id so the server replaces the
// bubble instead of stacking a new one. Membership notices are never
// rate-limited; other keys repeat at most once per minimum interval.
type Notifier struct {
	mu     sync.Mutex
	logger *slog.Logger

	notifyHandler NotifyFunc
	closeHandler  CloseFunc

	// Rate limiting
	lastNotifyTime map[string]time.Time
	minInterval    time.Duration

	// Server ids of the last notification per key
	replaces map[string]uint32

	now     func() time.Time
	enabled bool
}

// NewNotifier creates a Notifier. It is enabled but sends nothing until a
// handler is set.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		logger:         logger,
		lastNotifyTime: make(map[string]time.Time),
		minInterval:    5 * time.Second,
		replaces:       make(map[string]uint32),
		now:            time.Now,
		enabled:        true,
	}
}

// SetNotifyHandler sets the function that delivers notifications.
func (n *Notifier) SetNotifyHandler(handler NotifyFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifyHandler = handler
}

// SetCloseHandler sets the function that withdraws notifications.
func (n *Notifier) SetCloseHandler(handler CloseFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closeHandler = handler
}

// CloseAll withdraws every notification still on screen, so nothing about
// this surface outlives it. Failures are logged.
func (n *Notifier) CloseAll() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for key, id := range n.replaces {
		delete(n.replaces, key)
		if n.closeHandler == nil || id == 0 {
			continue
		}
		if err := n.closeHandler(id); err != nil {
			n.logger.Debug("failed to close notification", "key", key, "id", id, "error", err)
		}
	}
}

// HasHandler reports whether a delivery function is set.
func (n *Notifier) HasHandler() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.notifyHandler != nil
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// Enabled reports whether notifications are sent.
func (n *Notifier) Enabled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.enabled
}

// SetMinInterval sets the minimum interval between notifications with the
// same key.
func (n *Notifier) SetMinInterval(interval time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minInterval = interval
}

// Notify sends a notification unless it is disabled or rate-limited.
// It reports whether the notification was delivered.
func (n *Notifier) Notify(key, summary, body string, level NotificationLevel) bool {
	return n.send(key, summary, body, level, true)
}

func (n *Notifier) send(key, summary, body string, level NotificationLevel, limit bool) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.enabled {
		return false
	}

	if n.notifyHandler == nil {
		n.logger.Debug("notification skipped: no handler", "summary", summary)
		return false
	}

	now := n.now()
	if lastTime, ok := n.lastNotifyTime[key]; limit && ok && now.Sub(lastTime) < n.minInterval {
		n.logger.Debug("notification rate-limited", "key", key, "summary", summary)
		return false
	}
	n.lastNotifyTime[key] = now

	notification := &dbus.Notification{
		AppName:       "winsync",
		ReplacesID:    n.replaces[key],
		Summary:       summary,
		Body:          body,
		ExpireTimeout: 5000,
	}
	notification.SetHint("urgency", urgencyFor(level))
	notification.SetHint("category", "presence")
	notification.SetHint("transient", true)
	notification.SetHint("desktop-entry", "winsync")

	switch level {
	case NotificationLevelInfo:
		notification.AppIcon = "dialog-information"
	case NotificationLevelWarning:
		notification.AppIcon = "dialog-warning"
	case NotificationLevelError:
		notification.AppIcon = "dialog-error"
	}

	id, err := n.notifyHandler(notification)
	if err != nil {
		n.logger.Warn("failed to send notification", "key", key, "error", err)
		return false
	}
	n.replaces[key] = id
	n.logger.Debug("notification sent", "key", key, "id", id, "summary", summary)
	return true
}

func urgencyFor(level NotificationLevel) byte {
	switch level {
	case NotificationLevelInfo:
		return dbus.UrgencyLow
	case NotificationLevelError:
		return dbus.UrgencyCritical
	default:
		return dbus.UrgencyNormal
	}
}

// NotifyJoined announces windows that joined the registry.
func (n *Notifier) NotifyJoined(ids []string) bool {
	if len(ids) == 0 {
		return false
	}
	summary := "Window joined"
	if len(ids) > 1 {
		summary = "Windows joined"
	}
	return n.send("membership", summary, strings.Join(ids, "\n"), NotificationLevelInfo, false)
}

// NotifyLeft announces windows that left the registry or timed out.
func (n *Notifier) NotifyLeft(ids []string) bool {
	if len(ids) == 0 {
		return false
	}
	summary := "Window left"
	if len(ids) > 1 {
		summary = "Windows left"
	}
	return n.send("membership", summary, strings.Join(ids, "\n"), NotificationLevelInfo, false)
}

// NotifyConfigReloaded sends a notification about config being reloaded.
func (n *Notifier) NotifyConfigReloaded() bool {
	return n.Notify(
		"config-reload",
		"Configuration Reloaded",
		"winsync configuration has been reloaded.",
		NotificationLevelInfo,
	)
}

// NotifyConfigError sends a notification about a config that failed to load.
func (n *Notifier) NotifyConfigError(err error) bool {
	return n.Notify(
		"config-error",
		"Configuration Error",
		"Failed to reload configuration: "+err.Error(),
		NotificationLevelWarning,
	)
}
