package dbus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

// caller is the part of dbus.BusObject the client uses.
type caller interface {
	Call(method string, flags dbus.Flags, args ...any) *dbus.Call
}

// Client sends notifications to the session's notification server.
type Client struct {
	mu     sync.Mutex
	conn   *dbus.Conn
	obj    caller
	logger *slog.Logger
}

// Connect connects to the session bus.
func Connect(logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	return &Client{
		conn:   conn,
		obj:    conn.Object(DBusBusName, DBusPath),
		logger: logger,
	}, nil
}

// newClient creates a client on an existing object, for tests.
func newClient(obj caller, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{obj: obj, logger: logger}
}

// Notify shows a notification and returns the id the server assigned.
// Pass that id as ReplacesID to update the notification in place.
// D-Bus method: Notify(susssasa{sv}i) -> u
func (c *Client) Notify(n *Notification) (uint32, error) {
	c.mu.Lock()
	obj := c.obj
	c.mu.Unlock()
	if obj == nil {
		return 0, fmt.Errorf("not connected to D-Bus")
	}

	var id uint32
	if err := obj.Call(DBusInterface+".Notify", 0, n.args()...).Store(&id); err != nil {
		return 0, fmt.Errorf("notify failed: %w", err)
	}

	c.logger.Debug("notification sent", "id", id, "replaces_id", n.ReplacesID, "summary", n.Summary)
	return id, nil
}

// CloseNotification asks the server to close a notification.
// D-Bus method: CloseNotification(u)
func (c *Client) CloseNotification(id uint32) error {
	c.mu.Lock()
	obj := c.obj
	c.mu.Unlock()
	if obj == nil {
		return fmt.Errorf("not connected to D-Bus")
	}

	if call := obj.Call(DBusInterface+".CloseNotification", 0, id); call.Err != nil {
		return fmt.Errorf("close notification failed: %w", call.Err)
	}
	return nil
}

// Close closes the bus connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.obj = nil
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
