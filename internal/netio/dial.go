//go:build linux

package netio

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// resolveAndSocket resolves addr (host:port) to a TCP sockaddr and creates
// a matching non-blocking socket, returning the fd ready for Bind/Connect.
func resolveAndSocket(addr string) (fd int, sa unix.Sockaddr, err error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return 0, nil, fmt.Errorf("netio: resolve %s: %w", addr, err)
	}

	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		fd, err = unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
		if err != nil {
			return 0, nil, fmt.Errorf("netio: socket: %w", err)
		}
		var addrBytes [4]byte
		copy(addrBytes[:], ip4)
		return fd, &unix.SockaddrInet4{Port: tcpAddr.Port, Addr: addrBytes}, nil
	}

	fd, err = unix.Socket(unix.AF_INET6, unix.SOCK_STREAM, 0)
	if err != nil {
		return 0, nil, fmt.Errorf("netio: socket: %w", err)
	}
	var addrBytes [16]byte
	copy(addrBytes[:], tcpAddr.IP.To16())
	return fd, &unix.SockaddrInet6{Port: tcpAddr.Port, Addr: addrBytes}, nil
}
