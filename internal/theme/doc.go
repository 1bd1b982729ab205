// Package theme loads the overlay stylesheet for stickerlayd. The embedded
// base stylesheet keeps overlay windows transparent; an optional user
// stylesheet is appended after it and hot-reloaded when it changes.
package theme
