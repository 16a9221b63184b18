// Package discovery finds DWM1001 modules by listening for their
// advertisements.
//
// A scan is a bounded listening window on a transport.Transport. Sightings
// are filtered by advertised name (modules announce themselves with a "DW"
// prefix), merged per device, and returned strongest signal first.
//
// # Usage Example
//
//	scanner := discovery.NewScanner(t)
//	devices, err := scanner.ScanForDevices(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, device := range devices {
//	    fmt.Println(device)
//	}
//
// # Radio Requirements
//
// Scanning and connecting share the radio. Do not scan while sessions are
// open; the module accepts one connection at a time and the adapter serves
// one role at a time.
package discovery
