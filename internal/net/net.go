package net

import (
	"errors"
	"fmt"
	"net/netip"

	"golang.org/x/sys/unix"
)

/*
BACKLOG is TCP listen() backlog.
In high requests-per-second environments you need a high backlog in order
to avoid slow clients connections issues. Note that the Linux kernel
will silently truncate it to the value of /proc/sys/net/core/somaxconn so
make sure to raise both the value of somaxconn and tcp_max_syn_backlog
in order to get the desired effect.
*/
const BACKLOG int = 511

// Accept accepts a pending connection as a non-blocking socket with
// TCP_NODELAY set, returning its fd and the peer address.
func Accept(fd int) (int, string, error) {
	nfd, sa, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, "", err
	}
	if err = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		unix.Close(nfd)
		return -1, "", err
	}
	return nfd, sockaddrString(sa), nil
}

func Read(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

func Write(fd int, buf []byte) (int, error) {
	return unix.Write(fd, buf)
}

func Close(fd int) error {
	return unix.Close(fd)
}

// WouldBlock reports whether err means the operation should be retried
// once the fd is ready again.
func WouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR)
}

// TcpServer opens a non-blocking IPv4 listening socket on bind:port.
// An empty bind listens on every interface.
func TcpServer(bind string, port int) (int, error) {
	sa := &unix.SockaddrInet4{Port: port}
	if bind != "" {
		addr, err := netip.ParseAddr(bind)
		if err != nil || !addr.Is4() {
			return -1, fmt.Errorf("invalid bind address %q", bind)
		}
		sa.Addr = addr.As4()
	}

	s, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, err
	}
	err = unix.SetsockoptInt(s, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if err != nil {
		unix.Close(s)
		return -1, err
	}
	err = unix.Bind(s, sa)
	if err != nil {
		unix.Close(s)
		return -1, err
	}
	err = unix.Listen(s, BACKLOG)
	if err != nil {
		unix.Close(s)
		return -1, err
	}
	return s, nil
}

// LocalPort returns the port a socket is bound to.
func LocalPort(fd int) (int, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, err
	}
	if sa4, ok := sa.(*unix.SockaddrInet4); ok {
		return sa4.Port, nil
	}
	return 0, fmt.Errorf("unexpected sockaddr %T", sa)
}

func sockaddrString(sa unix.Sockaddr) string {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port)).String()
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(sa.Addr), uint16(sa.Port)).String()
	}
	return "unknown"
}
