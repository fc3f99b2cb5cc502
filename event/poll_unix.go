//go:build unix

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
	"sync"
	"time"

	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/elements/errors"
)

// pollBackend is the universal fallback: it works on every unix target but
// costs O(n) per Poll call in the number of registered descriptors, since
// unix.Poll re-scans the whole pollfd slice every time.
type pollBackend struct {
	mu  sync.Mutex
	set map[int]Mask
}

func newPollBackend() (Backend, error) {
	return &pollBackend{set: make(map[int]Mask)}, nil
}

func (p *pollBackend) Name() Name {
	return Poll
}

func (p *pollBackend) Register(fd int, mask Mask) liberr.Error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set[fd] = mask
	return nil
}

func (p *pollBackend) Modify(fd int, mask Mask) liberr.Error {
	return p.Register(fd, mask)
}

func (p *pollBackend) Unregister(fd int) liberr.Error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.set, fd)
	return nil
}

func toPollEvents(m Mask) int16 {
	var ev int16
	if m.Has(Read) {
		ev |= unix.POLLIN
	}
	if m.Has(Write) {
		ev |= unix.POLLOUT
	}
	return ev
}

func fromPollEvents(ev int16) Mask {
	var m Mask
	if ev&unix.POLLIN != 0 {
		m |= Read
	}
	if ev&unix.POLLOUT != 0 {
		m |= Write
	}
	if ev&unix.POLLERR != 0 {
		m |= Error
	}
	if ev&unix.POLLHUP != 0 {
		m |= Linger
	}
	return m
}

func (p *pollBackend) Poll(timeout time.Duration) ([]Ready, liberr.Error) {
	p.mu.Lock()
	fds := make([]unix.PollFd, 0, len(p.set))
	for fd, mask := range p.set {
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: toPollEvents(mask)})
	}
	p.mu.Unlock()

	if len(fds) == 0 {
		time.Sleep(timeout)
		return nil, nil
	}

	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, ErrorBackendPoll.Error(err)
	}

	ready := make([]Ready, 0, n)
	for _, pf := range fds {
		if pf.Revents != 0 {
			ready = append(ready, Ready{Fd: int(pf.Fd), Events: fromPollEvents(pf.Revents)})
		}
	}
	return ready, nil
}

func (p *pollBackend) Close() error {
	return nil
}
