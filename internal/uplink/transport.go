package uplink

import (
	"github.com/temoto/meshnode/log2"
	"github.com/temoto/meshnode/protocol"
)

// Uplink transport contract:
// - Init fails only with invalid config, ignores network errors
// - SendTelemetry returns true when the message is accepted for delivery,
//   false means retry later; the caller keeps the message queued
// - application may start without network available
type Transporter interface {
	Init(log *log2.Log, c Config, hub protocol.NodeID) error
	SendTelemetry(payload []byte) bool
	Close()
}
