// Package daemon wires a surface together for winsync join.
// It builds the shared store, shape tracker and registry manager, runs the
// registry loop next to any front end, and turns membership changes into
// log lines and optional desktop notifications.
package daemon
