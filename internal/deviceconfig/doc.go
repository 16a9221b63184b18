// Package deviceconfig provides the client for configuring DWM1001 modules
// over their wireless control interface.
//
// The client pairs the message codec in internal/protocol with a
// transport.Transport: each operation encodes its messages, opens a scoped
// session to one device, exchanges characteristic reads and writes, and
// releases the session before returning, whatever the outcome.
//
// # Session Discipline
//
// Every public operation owns exactly one session. Sessions are never pooled
// or reused across operations; the module accepts only one connection at a
// time, so a leaked session would lock the device out until it times out.
// Operations are not retried - callers that want retries wrap the call.
//
// # Usage Example
//
//	t, err := transport.NewBLE()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := deviceconfig.NewClient(t)
//
//	addr := transport.MustParseAddress("EC:1B:82:4A:10:C5")
//	err = client.Send(ctx, addr, &protocol.PersistedPosition{
//	    X: 1.5, Y: 2.0, Z: 0.0, QualityFactor: 100,
//	})
//
// # Batch Semantics
//
// Apply configures a fleet best-effort: each device gets its own session,
// its messages are written in order, and a device that fails is recorded in
// the report while the batch moves on. One unreachable anchor never blocks
// the rest of the network from being configured.
//
// # Verification
//
// ApplyAndVerify writes an update and then reads every message back,
// comparing wire forms. Readback retries with backoff absorb the module's
// commit latency.
//
// # Error Handling
//
// Session failures surface as *ConnectionError with a classified Type.
// GetShortErrorMessage and GetTroubleshootingHint turn one into operator
// guidance. Encoding failures surface as the codec's own *protocol.RangeError
// before any radio work happens.
package deviceconfig
