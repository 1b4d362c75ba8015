package dbus

import (
	"github.com/godbus/dbus/v5"
)

const (
	// DBusInterface is the notification interface name.
	DBusInterface = "org.freedesktop.Notifications"
	// DBusPath is the notification object path.
	DBusPath = "/org/freedesktop/Notifications"
	// DBusBusName is the bus name of the notification server.
	DBusBusName = "org.freedesktop.Notifications"
)

// Urgency levels from the freedesktop.org notification specification.
const (
	UrgencyLow      byte = 0
	UrgencyNormal   byte = 1
	UrgencyCritical byte = 2
)

// Notification holds the parameters of an org.freedesktop.Notifications.Notify
// call.
type Notification struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string // Alternating key, label pairs
	Hints         map[string]dbus.Variant
	ExpireTimeout int32 // -1 = server default, 0 = never expire
}

// SetHint sets a hint, creating the map if needed.
func (n *Notification) SetHint(name string, value any) {
	if n.Hints == nil {
		n.Hints = make(map[string]dbus.Variant)
	}
	n.Hints[name] = dbus.MakeVariant(value)
}

// Urgency extracts the urgency hint from the notification.
// Returns UrgencyNormal if not specified.
func (n *Notification) Urgency() byte {
	if v, ok := n.Hints["urgency"]; ok {
		if b, ok := v.Value().(byte); ok {
			return b
		}
	}
	return UrgencyNormal
}

// Category extracts the category hint from the notification.
// Returns empty string if not specified.
func (n *Notification) Category() string {
	if v, ok := n.Hints["category"]; ok {
		if s, ok := v.Value().(string); ok {
			return s
		}
	}
	return ""
}

// Transient returns true if the transient hint is set.
// Transient notifications are not kept in the server's history.
func (n *Notification) Transient() bool {
	if v, ok := n.Hints["transient"]; ok {
		if b, ok := v.Value().(bool); ok {
			return b
		}
	}
	return false
}

// args returns the Notify call arguments in signature order (susssasa{sv}i).
func (n *Notification) args() []any {
	actions := n.Actions
	if actions == nil {
		actions = []string{}
	}
	hints := n.Hints
	if hints == nil {
		hints = map[string]dbus.Variant{}
	}
	return []any{n.AppName, n.ReplacesID, n.AppIcon, n.Summary, n.Body, actions, hints, n.ExpireTimeout}
}
