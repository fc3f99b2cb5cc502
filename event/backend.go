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
	"time"

	liberr "github.com/nabbar/elements/errors"
)

const (
	ErrorBackendUnavailable liberr.CodeError = iota + liberr.MinPkgReactor
	ErrorBackendRegister
	ErrorBackendModify
	ErrorBackendUnregister
	ErrorBackendPoll
)

func init() {
	liberr.RegisterIdFctMessage(ErrorBackendUnavailable, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorBackendUnavailable:
		return "no readiness backend is available on this platform"
	case ErrorBackendRegister:
		return "cannot register descriptor with readiness backend"
	case ErrorBackendModify:
		return "cannot modify descriptor interest on readiness backend"
	case ErrorBackendUnregister:
		return "cannot unregister descriptor from readiness backend"
	case ErrorBackendPoll:
		return "readiness backend poll failed"
	}
	return ""
}

// DefaultPollTimeout is used whenever a caller does not need a tighter
// reactor loop cadence; it bounds how long Poll may block with no activity.
const DefaultPollTimeout = 500 * time.Millisecond

// Name identifies a concrete Backend implementation, or Auto to let New
// pick the best one available on the running platform.
type Name string

const (
	Auto   Name = "auto"
	EPoll  Name = "epoll"
	KQueue Name = "kqueue"
	Poll   Name = "poll"
	Select Name = "select"
)

// Backend registers descriptors against a subset of {Read, Write, Error,
// Linger} and reports which ones became ready within a poll timeout.
//
// Register, Modify and Unregister are idempotent from the caller's point of
// view: the reactor calls Modify whenever a Connection's interest mask
// changes and does not track whether the descriptor was already known to
// the backend.
type Backend interface {
	Name() Name
	Register(fd int, mask Mask) liberr.Error
	Modify(fd int, mask Mask) liberr.Error
	Unregister(fd int) liberr.Error
	Poll(timeout time.Duration) ([]Ready, liberr.Error)
	Close() error
}

// constructors gains its per-platform entries (through register) from the
// epoll_linux.go / kqueue_*.go build-tagged files; poll and select are always present as the universal
// fallbacks.
var constructors = map[Name]func() (Backend, error){
	Poll:   newPollBackend,
	Select: newSelectBackend,
}

func register(name Name, fn func() (Backend, error)) {
	constructors[name] = fn
}

// priority lists backend names in the startup preference order from the
// spec: epoll, kqueue, poll, select. Not every name has a constructor on
// every platform (e.g. epoll only registers itself on linux).
var priority = []Name{EPoll, KQueue, Poll, Select}

// New selects a Backend. With Auto it walks the priority list and returns
// the first one that constructs successfully; with an explicit Name it
// tries only that one.
func New(name Name) (Backend, liberr.Error) {
	if name != Auto {
		ctor, ok := constructors[name]
		if !ok {
			return nil, ErrorBackendUnavailable.Error(fmt.Errorf("no constructor registered for backend %q", name))
		}
		b, err := ctor()
		if err != nil {
			return nil, ErrorBackendUnavailable.Error(fmt.Errorf("%s: %w", name, err))
		}
		return b, nil
	}

	for _, n := range priority {
		ctor, ok := constructors[n]
		if !ok {
			continue
		}
		if b, err := ctor(); err == nil {
			return b, nil
		}
	}

	return nil, ErrorBackendUnavailable.Error(nil)
}
