// Package wayland implements overlay windows and monitor enumeration on
// Wayland compositors through GTK4 and wlr-layer-shell.
//
// Everything that touches GTK runs on the GTK main thread. Window methods
// may be called from any goroutine; they queue their work with
// glib.IdleAdd and return immediately.
package wayland
