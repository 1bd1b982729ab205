// Package x11 implements overlay windows and monitor enumeration for X11
// sessions using xgb and xgbutil. Overlays are override-redirect windows
// shaped to the sticker's alpha mask with an empty input region, so clicks
// reach the windows underneath.
package x11
