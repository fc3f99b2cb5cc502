//go:build darwin || dragonfly || freebsd || netbsd || openbsd

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
	register(KQueue, newKqueueBackend)
}

// kqueueBackend tracks each fd's current interest mask itself: kqueue has
// separate read/write filters rather than one combined event, so Modify has
// to diff against what was last registered to know which filters to add or
// delete.
type kqueueBackend struct {
	fd   int
	want map[int]Mask
}

func newKqueueBackend() (Backend, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	return &kqueueBackend{fd: fd, want: make(map[int]Mask)}, nil
}

func (k *kqueueBackend) Name() Name {
	return KQueue
}

func (k *kqueueBackend) apply(fd int, from, to Mask) liberr.Error {
	var changes []unix.Kevent_t

	if from.Has(Read) != to.Has(Read) {
		flag := uint16(unix.EV_ADD | unix.EV_ENABLE)
		if !to.Has(Read) {
			flag = unix.EV_DELETE
		}
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flag})
	}
	if from.Has(Write) != to.Has(Write) {
		flag := uint16(unix.EV_ADD | unix.EV_ENABLE)
		if !to.Has(Write) {
			flag = unix.EV_DELETE
		}
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flag})
	}

	if len(changes) == 0 {
		return nil
	}

	if _, err := unix.Kevent(k.fd, changes, nil, nil); err != nil {
		return ErrorBackendModify.Error(err)
	}
	return nil
}

func (k *kqueueBackend) Register(fd int, mask Mask) liberr.Error {
	if err := k.apply(fd, 0, mask); err != nil {
		return ErrorBackendRegister.Error(err)
	}
	k.want[fd] = mask
	return nil
}

func (k *kqueueBackend) Modify(fd int, mask Mask) liberr.Error {
	if err := k.apply(fd, k.want[fd], mask); err != nil {
		return err
	}
	k.want[fd] = mask
	return nil
}

func (k *kqueueBackend) Unregister(fd int) liberr.Error {
	if err := k.apply(fd, k.want[fd], 0); err != nil {
		return ErrorBackendUnregister.Error(err)
	}
	delete(k.want, fd)
	return nil
}

func (k *kqueueBackend) Poll(timeout time.Duration) ([]Ready, liberr.Error) {
	events := make([]unix.Kevent_t, 128)
	ts := unix.NsecToTimespec(timeout.Nanoseconds())

	n, err := unix.Kevent(k.fd, nil, events, &ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, ErrorBackendPoll.Error(err)
	}

	// kqueue reports read and write readiness as separate events for the
	// same descriptor; a reactor loop cares about both within one Ready.
	merged := make(map[int]Mask, n)
	for i := 0; i < n; i++ {
		fd := int(events[i].Ident)
		var m Mask
		switch events[i].Filter {
		case unix.EVFILT_READ:
			m = Read
		case unix.EVFILT_WRITE:
			m = Write
		}
		if events[i].Flags&unix.EV_ERROR != 0 {
			m |= Error
		}
		merged[fd] |= m
	}

	ready := make([]Ready, 0, len(merged))
	for fd, m := range merged {
		ready = append(ready, Ready{Fd: fd, Events: m})
	}
	return ready, nil
}

func (k *kqueueBackend) Close() error {
	return unix.Close(k.fd)
}
