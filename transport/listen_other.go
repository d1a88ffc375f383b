//go:build !linux

package transport

import (
	"context"
	"net"
	"strconv"
)

func listenStream(ip net.IPAddr, port int) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(context.Background(), "tcp", net.JoinHostPort(ip.String(), strconv.Itoa(port)))
}
