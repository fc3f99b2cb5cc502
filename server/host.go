/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package server

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/elements/errors"
	"github.com/nabbar/elements/conn"
)

// Host is a listening descriptor in accept-only mode: its READ readiness
// means "accept one connection", never "recv".
type Host struct {
	Conn *conn.Connection
	IP   string
	Port int

	// OnNewConnection builds the personality-specific Connection for an
	// accepted socket. Returning nil drops the socket (onboarding failure).
	OnNewConnection func(fd int, peer, local string) *conn.Connection
}

// Listen binds and listens on ip:port with SO_REUSEADDR, non-blocking.
func Listen(ip string, port int) (*Host, liberr.Error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, ErrorListenFailed.Error(err)
	}

	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, ErrorListenFailed.Error(err)
	}

	addr := &unix.SockaddrInet4{Port: port}
	parsed := net.ParseIP(ip).To4()
	if parsed == nil {
		_ = unix.Close(fd)
		return nil, ErrorListenFailed.Error(fmt.Errorf("invalid ipv4 address %q", ip))
	}
	copy(addr.Addr[:], parsed)

	if err = unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, ErrorListenFailed.Error(err)
	}
	if err = unix.Listen(fd, unix.SOMAXCONN); err != nil {
		_ = unix.Close(fd)
		return nil, ErrorListenFailed.Error(err)
	}
	if err = unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, ErrorListenFailed.Error(err)
	}

	c := conn.New(fd, conn.RoleHost)
	return &Host{Conn: c, IP: ip, Port: port}, nil
}

// FromFd wraps an already-bound, already-listening, non-blocking descriptor
// inherited from a parent process (worker startup path).
func FromFd(fd int, ip string, port int) *Host {
	return &Host{Conn: conn.New(fd, conn.RoleHost), IP: ip, Port: port}
}

// accept pulls exactly one pending connection off the listener backlog. It
// never loops: one backend READ event is exactly one accept, matching the
// spec's single-connection-per-readiness-notification contract.
func (h *Host) accept() (*conn.Connection, liberr.Error) {
	fd, sa, err := unix.Accept(h.Conn.Fd)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, nil
		}
		return nil, ErrorAcceptFailed.Error(err)
	}

	if err = unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, ErrorAcceptFailed.Error(err)
	}

	peer := sockaddrString(sa)
	local := fmt.Sprintf("%s:%d", h.IP, h.Port)

	if h.OnNewConnection == nil {
		_ = unix.Close(fd)
		return nil, nil
	}

	c := h.OnNewConnection(fd, peer, local)
	if c == nil {
		_ = unix.Close(fd)
	}
	return c, nil
}

func sockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return fmt.Sprintf("%d.%d.%d.%d:%d", a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3], a.Port)
	case *unix.SockaddrInet6:
		return fmt.Sprintf("[%x]:%d", a.Addr, a.Port)
	default:
		return "unknown"
	}
}
