// Package transport abstracts the wireless link used to reach DWM1001
// modules.
//
// The capability set is deliberately narrow: discover nearby devices,
// connect to a link-layer address, read and write GATT characteristics on
// the open session, disconnect. Anything exposing those five operations can
// stand in for the real radio, which is how the configuration client is
// tested without hardware.
//
// The production implementation (ble.go) drives a Linux HCI device through
// github.com/go-ble/ble. It is guarded by a build tag so the rest of the
// repository stays portable.
package transport
