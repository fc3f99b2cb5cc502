//go:build linux

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

package event

import (
	"time"

	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/elements/errors"
)

func init() {
	register(EPoll, newEpollBackend)
}

type epollBackend struct {
	fd int
}

func newEpollBackend() (Backend, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollBackend{fd: fd}, nil
}

func (e *epollBackend) Name() Name {
	return EPoll
}

func toEpollEvents(m Mask) uint32 {
	var ev uint32
	if m.Has(Read) {
		ev |= unix.EPOLLIN
	}
	if m.Has(Write) {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func fromEpollEvents(ev uint32) Mask {
	var m Mask
	if ev&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
		m |= Read
	}
	if ev&unix.EPOLLOUT != 0 {
		m |= Write
	}
	if ev&unix.EPOLLERR != 0 {
		m |= Error
	}
	if ev&unix.EPOLLHUP != 0 {
		m |= Linger
	}
	return m
}

func (e *epollBackend) Register(fd int, mask Mask) liberr.Error {
	ev := &unix.EpollEvent{Events: toEpollEvents(mask), Fd: int32(fd)}
	if err := unix.EpollCtl(e.fd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return ErrorBackendRegister.Error(err)
	}
	return nil
}

func (e *epollBackend) Modify(fd int, mask Mask) liberr.Error {
	ev := &unix.EpollEvent{Events: toEpollEvents(mask), Fd: int32(fd)}
	if err := unix.EpollCtl(e.fd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return ErrorBackendModify.Error(err)
	}
	return nil
}

func (e *epollBackend) Unregister(fd int) liberr.Error {
	// the event argument is ignored by EPOLL_CTL_DEL on recent kernels but
	// older ones require a non-nil pointer.
	if err := unix.EpollCtl(e.fd, unix.EPOLL_CTL_DEL, fd, &unix.EpollEvent{}); err != nil && err != unix.ENOENT && err != unix.EBADF {
		return ErrorBackendUnregister.Error(err)
	}
	return nil
}

func (e *epollBackend) Poll(timeout time.Duration) ([]Ready, liberr.Error) {
	events := make([]unix.EpollEvent, 128)

	n, err := unix.EpollWait(e.fd, events, int(timeout/time.Millisecond))
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, ErrorBackendPoll.Error(err)
	}

	ready := make([]Ready, 0, n)
	for i := 0; i < n; i++ {
		ready = append(ready, Ready{
			Fd:     int(events[i].Fd),
			Events: fromEpollEvents(events[i].Events),
		})
	}
	return ready, nil
}

func (e *epollBackend) Close() error {
	return unix.Close(e.fd)
}
