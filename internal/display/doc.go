// Package display enumerates monitors and keeps one overlay window per
// display. Platform toolkits plug in through MonitorSource and WindowFactory;
// the manager resolves layouts against display bounds and hands frames to
// the windows.
package display
