// Package dbus is a client for the org.freedesktop.Notifications D-Bus
// interface. winsync uses it to announce windows joining and leaving the
// registry on the desktop.
package dbus
