//go:build darwin

package netdrv

// Default returns this platform's event driver. A native kqueue backend
// (grounded on original_source's common/network/macos/kqueue_event_driver.h)
// would live in this file; see driver_linux.go for why it doesn't yet.
func Default() Driver { return NewPortable() }
