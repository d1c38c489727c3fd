//go:build linux

package netdrv

// Default returns this platform's event driver. A native epoll backend
// (grounded on original_source's common/network/linux/epoll_event_driver.h)
// would live in this file; epoll/kqueue/IOCP syscalls are out of scope
// here, so linux, like every other platform, gets the portable
// net.PacketConn-based driver.
func Default() Driver { return NewPortable() }
