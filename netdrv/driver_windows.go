//go:build windows

package netdrv

// Default returns this platform's event driver. A native IOCP backend
// would live in this file, mirroring original_source's
// common/network/windows event driver; see driver_linux.go for why it
// doesn't yet.
func Default() Driver { return NewPortable() }
