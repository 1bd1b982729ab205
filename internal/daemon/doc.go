// Package daemon provides the main orchestration for stickerlayd.
// It coordinates the display registry, layout store, overlay manager,
// broadcaster and sticker library, and runs reconciliation, configuration
// hot-reload and internal notifications.
package daemon
