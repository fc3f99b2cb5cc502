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
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/elements/errors"
)

// selectFdSetSize is the conventional FD_SETSIZE. unix.FdSet is a fixed-size
// array sized to it; any descriptor at or above this value cannot be
// represented and Register rejects it rather than silently truncating.
const selectFdSetSize = 1024

// selectBackend is the last-resort fallback: O(FD_SETSIZE) per Poll call and
// capped at selectFdSetSize descriptors. A deployment that needs more than a
// few hundred concurrent connections should not end up here.
type selectBackend struct {
	mu  sync.Mutex
	set map[int]Mask
}

func newSelectBackend() (Backend, error) {
	return &selectBackend{set: make(map[int]Mask)}, nil
}

func (s *selectBackend) Name() Name {
	return Select
}

func (s *selectBackend) Register(fd int, mask Mask) liberr.Error {
	if fd >= selectFdSetSize {
		return ErrorBackendRegister.Error(fmt.Errorf("descriptor %d exceeds select fd_set size %d", fd, selectFdSetSize))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set[fd] = mask
	return nil
}

func (s *selectBackend) Modify(fd int, mask Mask) liberr.Error {
	return s.Register(fd, mask)
}

func (s *selectBackend) Unregister(fd int) liberr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.set, fd)
	return nil
}

func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}

func (s *selectBackend) Poll(timeout time.Duration) ([]Ready, liberr.Error) {
	s.mu.Lock()
	var rset, wset unix.FdSet
	maxFd := -1
	for fd, mask := range s.set {
		if mask.Has(Read) {
			fdSet(&rset, fd)
		}
		if mask.Has(Write) {
			fdSet(&wset, fd)
		}
		if fd > maxFd {
			maxFd = fd
		}
	}
	s.mu.Unlock()

	if maxFd < 0 {
		time.Sleep(timeout)
		return nil, nil
	}

	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	n, err := unix.Select(maxFd+1, &rset, &wset, nil, &tv)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, ErrorBackendPoll.Error(err)
	}

	if n == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ready := make([]Ready, 0, n)
	for fd := range s.set {
		var m Mask
		if fdIsSet(&rset, fd) {
			m |= Read
		}
		if fdIsSet(&wset, fd) {
			m |= Write
		}
		if m != 0 {
			ready = append(ready, Ready{Fd: fd, Events: m})
		}
	}
	return ready, nil
}

func (s *selectBackend) Close() error {
	return nil
}
