// Package dbus implements the io.github.jmylchreest.Stickerlay1 D-Bus control
// interface. The daemon exports a ControlServer backed by a Controller; the CLI
// and TUI talk to it through Client. Notifier sends desktop notifications
// through org.freedesktop.Notifications.
package dbus
