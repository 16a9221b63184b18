// Package logging provides structured logging for dwmctl.
//
// This package wraps the zap logger with convenience functions for the
// logging patterns used throughout the tool. It provides both general
// logging functions and specialized helpers for device traffic.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (payload hex dumps, characteristic IO)
//   - Info: Normal operations (connections, writes, state changes)
//   - Warn: Non-fatal issues (unreachable devices, skipped reads)
//   - Error: Fatal issues (startup failures, critical errors)
//
// The logger is a no-op until initialized, so library callers that never
// configure logging stay silent.
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Device configured",
//	    zap.String("address", "C8:DF:84:12:34:56"),
//	    zap.Int("messages", 5),
//	)
//
// # Specialized Logging
//
// Device operation logging (BLE writes with payload dump at debug level):
//
//	logging.LogDeviceOperation(addr, "write position", payload)
//
// Gateway connection and WebSocket traffic logging:
//
//	logging.LogConnection(remoteAddr, "websocket_subscribed")
//	logging.LogWebSocketMessage(remoteAddr, "sent", msgType, payload)
//
// # Configuration
//
// Initialize logging at startup, either explicitly or from the
// DWMCTL_LOG_LEVEL environment variable:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
