package dbus

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/stickerlay/internal/model"
)

// EmitLayoutChanged emits the LayoutChanged signal.
// This signal is emitted for every layout the daemon writes or reapplies.
// All layouts written by one operation share the same update id.
func (s *ControlServer) EmitLayoutChanged(l model.Layout, updateID string) error {
	if s.conn == nil {
		return fmt.Errorf("not connected to D-Bus")
	}

	err := s.conn.Emit(ServicePath, ServiceInterface+".LayoutChanged", LayoutInfoFrom(l), updateID)
	if err != nil {
		return fmt.Errorf("failed to emit LayoutChanged signal: %w", err)
	}

	s.logger.Debug("emitted LayoutChanged signal", "display_id", l.DisplayID, "update_id", updateID)
	return nil
}

// EmitDisplaysChanged emits the DisplaysChanged signal after a reconcile
// pass created, removed or moved an overlay.
func (s *ControlServer) EmitDisplaysChanged(count int) error {
	if s.conn == nil {
		return fmt.Errorf("not connected to D-Bus")
	}

	err := s.conn.Emit(ServicePath, ServiceInterface+".DisplaysChanged", int32(count))
	if err != nil {
		return fmt.Errorf("failed to emit DisplaysChanged signal: %w", err)
	}

	s.logger.Debug("emitted DisplaysChanged signal", "count", count)
	return nil
}

// Connection returns the underlying D-Bus connection.
// The daemon reuses it for desktop notifications.
func (s *ControlServer) Connection() *dbus.Conn {
	return s.conn
}
