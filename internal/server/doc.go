// Package server implements the location gateway: a small HTTP/WebSocket
// service that polls positioning tags over BLE and streams their position
// fixes to subscribers.
//
// # Polling
//
// The gateway polls the tags named in a network plan sequentially, one
// connection per tag per round. The BLE radio serves a single connection at
// a time, so sequential polling is the fastest safe schedule. A tag that
// cannot be reached in a round is logged and skipped until the next round.
//
// # Endpoints
//
//   - /ws: WebSocket stream of position updates (JSON, one object per
//     message). New subscribers receive the latest known position of every
//     tag before live updates.
//   - /positions: latest known position of every tag as a JSON array.
//   - /healthz: liveness probe.
//
// # Discovery
//
// With Announce enabled the gateway registers itself on mDNS as
// "_dwmctl._tcp", so dashboards on the same network can find it without
// configuration.
//
// # Usage Example
//
//	plan, err := config.LoadPlan("site.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tags, err := server.TagsFromPlan(plan)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	gw, err := server.New(&server.Config{
//	    Listen:   ":8734",
//	    Interval: time.Second,
//	    Announce: true,
//	}, deviceconfig.NewClient(tr), tags)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start blocks until shutdown signal or error
//	if err := gw.Start(); err != nil {
//	    log.Fatal(err)
//	}
package server
