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

// Package server implements the reactor event loop, the listener ("host")
// role, and the process supervisor that forks workers and brokers their IPC
// channels, on top of the event and conn packages.
package server

import (
	"fmt"
	"time"

	liberr "github.com/nabbar/elements/errors"
	"github.com/nabbar/elements/conn"
	"github.com/nabbar/elements/event"
	"github.com/nabbar/elements/logger"
)

// Reactor is one process's single-threaded event loop: it owns exactly one
// Backend and one set of registered descriptors. The supervisor runs a
// Reactor for the parent process (servicing only hosts/channels) and each
// forked worker runs its own.
type Reactor struct {
	Backend event.Backend

	LoopInterval    time.Duration
	Timeout         time.Duration
	TimeoutInterval time.Duration

	// LongRunning serializes one regular Connection per worker: on accept,
	// every Host is unregistered until that Connection tears down.
	LongRunning bool

	// LoopHook is the application-level periodic callback (§4.3 step 3).
	LoopHook func()

	// SupervisionHook runs at least once per second; only the parent
	// process supplies one (reaping workers, honoring shutdown).
	SupervisionHook func()

	conns map[int]*conn.Connection
	hosts []*Host

	shuttingDown bool
	graceful     bool

	lastSupervision time.Time
	lastIdle        time.Time
	lastLoop        time.Time
}

// NewReactor builds a Reactor bound to backend with the given cadences.
func NewReactor(backend event.Backend, loopInterval, timeout, timeoutInterval time.Duration) *Reactor {
	now := time.Now()
	return &Reactor{
		Backend:         backend,
		LoopInterval:    loopInterval,
		Timeout:         timeout,
		TimeoutInterval: timeoutInterval,
		conns:           make(map[int]*conn.Connection),
		lastSupervision: now,
		lastIdle:        now,
		lastLoop:        now,
	}
}

// Register adds c to the poll set under its current interest mask.
func (r *Reactor) Register(c *conn.Connection) liberr.Error {
	r.conns[c.Fd] = c
	if c.Interest == 0 {
		return nil
	}
	return r.Backend.Register(c.Fd, c.Interest)
}

// RegisterHost registers a listener and remembers it for long-running
// pause/resume.
func (r *Reactor) RegisterHost(h *Host) liberr.Error {
	h.Conn.Interest = event.Read
	r.hosts = append(r.hosts, h)
	return r.Register(h.Conn)
}

// Unregister removes fd from both the poll set and the backend.
func (r *Reactor) Unregister(fd int) {
	if _, ok := r.conns[fd]; !ok {
		return
	}
	_ = r.Backend.Unregister(fd)
	delete(r.conns, fd)
}

func (r *Reactor) teardown(c *conn.Connection) {
	r.Unregister(c.Fd)
	_ = c.Close()
}

// Shutdown requests loop termination. graceful=true waits for in-flight
// regular Connections to drain; a second Shutdown(false) call (SIGINT
// twice) forces immediate exit.
func (r *Reactor) Shutdown(graceful bool) {
	r.shuttingDown = true
	r.graceful = graceful
}

func (r *Reactor) onlyHostsAndChannelsRemain() bool {
	for _, c := range r.conns {
		if c.Role == conn.RoleRegular {
			return false
		}
	}
	return true
}

func (r *Reactor) shouldExit() bool {
	if !r.shuttingDown {
		return false
	}
	if !r.graceful {
		return true
	}
	return r.onlyHostsAndChannelsRemain()
}

func (r *Reactor) pauseListeners() {
	for _, h := range r.hosts {
		r.Unregister(h.Conn.Fd)
	}
}

func (r *Reactor) resumeListeners() {
	if r.shuttingDown {
		return
	}
	for _, h := range r.hosts {
		h.Conn.Interest = event.Read
		_ = r.Register(h.Conn)
	}
}

// Run executes the loop body from §4.3 until shouldExit, then tears every
// remaining Connection down.
func (r *Reactor) Run() liberr.Error {
	for !r.shouldExit() {
		now := time.Now()

		if now.Sub(r.lastSupervision) >= time.Second {
			if r.SupervisionHook != nil {
				r.SupervisionHook()
			}
			r.lastSupervision = now
		}

		if r.Timeout > 0 && r.TimeoutInterval > 0 && now.Sub(r.lastIdle) >= r.TimeoutInterval {
			r.sweepIdle(now)
			r.lastIdle = now
		}

		if r.LoopInterval > 0 && now.Sub(r.lastLoop) >= r.LoopInterval {
			if r.LoopHook != nil {
				r.LoopHook()
			}
			r.lastLoop = now
		}

		ready, err := r.Backend.Poll(event.DefaultPollTimeout)
		if err != nil {
			logger.ErrorLevel.LogErrorCtxf(logger.ErrorLevel, "backend poll failed", err)
			continue
		}

		for _, rd := range ready {
			r.dispatch(rd)
		}
	}

	r.teardownAll()
	return nil
}

func (r *Reactor) sweepIdle(now time.Time) {
	for fd, c := range r.conns {
		if c.Role != conn.RoleRegular {
			continue
		}
		idleFor := now.Sub(c.LastAccess)
		if idleFor < r.Timeout {
			continue
		}

		verdict := conn.Stop
		if c.OnTimeout != nil {
			verdict = c.OnTimeout(idleFor)
		}

		if verdict == conn.Stop {
			r.teardown(c)
			continue
		}

		c.LastAccess = now
		_ = r.Backend.Modify(fd, c.Interest)
	}
}

func (r *Reactor) hostFor(fd int) *Host {
	for _, h := range r.hosts {
		if h.Conn.Fd == fd {
			return h
		}
	}
	return nil
}

func (r *Reactor) dispatch(rd event.Ready) {
	c, ok := r.conns[rd.Fd]
	if !ok {
		_ = r.Backend.Unregister(rd.Fd)
		return
	}

	if rd.Events.Has(event.Error) {
		if c.OnError != nil {
			c.OnError(fmt.Errorf("backend reported error on fd %d", rd.Fd))
		}
		r.teardown(c)
		return
	}

	before := c.Interest

	if rd.Events.Has(event.Read) {
		if c.Role == conn.RoleHost {
			r.acceptOn(rd.Fd)
		} else if err := c.RecvReady(); err != nil {
			r.teardown(c)
			return
		}
	}

	if rd.Events.Has(event.Write) {
		if err := c.SendReady(); err != nil {
			r.teardown(c)
			return
		}
	}

	c.LastAccess = time.Now()
	after := c.Interest

	if after == 0 {
		r.teardown(c)
		return
	}
	if after != before {
		_ = r.Backend.Modify(rd.Fd, after)
	}
}

func (r *Reactor) acceptOn(fd int) {
	h := r.hostFor(fd)
	if h == nil {
		return
	}

	accepted, err := h.accept()
	if err != nil {
		logger.ErrorLevel.LogErrorCtxf(logger.ErrorLevel, "accept failed", err)
		return
	}
	if accepted == nil {
		return
	}

	if r.LongRunning {
		r.pauseListeners()
		prev := accepted.OnTeardown
		accepted.OnTeardown = func() {
			if prev != nil {
				prev()
			}
			r.resumeListeners()
		}
	}

	accepted.LastAccess = time.Now()
	_ = r.Register(accepted)
}

func (r *Reactor) teardownAll() {
	for _, c := range r.conns {
		_ = r.Backend.Unregister(c.Fd)
		_ = c.Close()
	}
	r.conns = make(map[int]*conn.Connection)
}
