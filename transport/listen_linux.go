//go:build linux

package transport

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// listenStream creates the listening socket by hand so the backlog is exactly
// Backlog instead of whatever net.Listen derives from somaxconn.
func listenStream(ip net.IPAddr, port int) (net.Listener, error) {
	var (
		family int
		sa     unix.Sockaddr
	)

	if ip4 := ip.IP.To4(); ip4 != nil {
		family = unix.AF_INET
		sa4 := &unix.SockaddrInet4{Port: port}
		copy(sa4.Addr[:], ip4)
		sa = sa4
	} else {
		family = unix.AF_INET6
		sa6 := &unix.SockaddrInet6{Port: port}
		copy(sa6.Addr[:], ip.IP.To16())
		if ip.Zone != "" {
			if ifi, err := net.InterfaceByName(ip.Zone); err == nil {
				sa6.ZoneId = uint32(ifi.Index)
			}
		}
		sa = sa6
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("setsockopt", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("bind", err)
	}
	if err := unix.Listen(fd, Backlog); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("listen", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("setnonblock", err)
	}

	// FileListener duplicates the descriptor, so the file is closed either way.
	file := os.NewFile(uintptr(fd), "kiln-listener")
	defer file.Close()

	return net.FileListener(file)
}
