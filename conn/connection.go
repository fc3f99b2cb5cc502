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

// Package conn implements the buffered, continuation-driven I/O state
// machine that every personality (HTTP, FastCGI) parses against. A
// Connection never blocks: RecvReady/SendReady are called by the reactor
// only when the backend already reported the descriptor ready, and every
// higher-level read is expressed as a one-shot demand (delimiter or exact
// length) armed against whatever is already buffered.
package conn

import (
	"bytes"
	"time"

	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/elements/errors"
	"github.com/nabbar/elements/event"
)

// Role classifies what a Connection's descriptor actually is, so the
// reactor and supervisor can special-case hosts and channels without a
// type switch.
type Role uint8

const (
	RoleRegular Role = iota
	RoleHost
	RoleChannel
	RoleBlockingChannel
)

// compactThreshold is the write-cursor offset at which SendReady drops the
// already-sent prefix instead of continuing to track it by offset.
const compactThreshold = 65536

// DefaultReadSize is the recv() budget for an ordinary Connection; callers
// streaming large multipart bodies raise it temporarily (see http package).
const DefaultReadSize = 4096

// Verdict is returned by a MaxBytesHook or by OnTimeout to tell the
// Connection whether it should keep waiting or give up.
type Verdict uint8

const (
	Continue Verdict = iota
	Stop
)

// Callback receives the bytes satisfying a read demand: the delimited
// prefix (delimiter included) for ReadUntil, or exactly length bytes for
// ReadExact.
type Callback func(data []byte)

// MaxBytesHook fires when a demand's byte budget is exhausted before it
// could be satisfied. The pending demand is already cleared when the hook
// runs. Returning Stop clears the Connection's interest so the reactor
// tears it down; on Continue no demand is pending unless the hook armed a
// new one.
type MaxBytesHook func(limit int) Verdict

type demandKind uint8

const (
	demandNone demandKind = iota
	demandDelimiter
	demandLength
	demandStreamDelimiter
)

// StreamCallback receives a chunk of bytes flushed out of the read buffer
// before a streaming demand's delimiter has been found; see
// ReadUntilStream.
type StreamCallback func(chunk []byte)

type demand struct {
	kind     demandKind
	delim    []byte
	length   int
	maxBytes int
	cb       Callback
	onMax    MaxBytesHook

	// streaming-only fields (demandStreamDelimiter)
	threshold int
	onChunk   StreamCallback
}

// Connection is one descriptor's buffered I/O state: exactly what the
// reactor needs to know to multiplex it, plus whatever a parser has armed.
type Connection struct {
	Fd       int
	Role     Role
	Interest event.Mask

	ReadSize int

	readBuf  []byte
	writeBuf []byte
	cursor   int

	pending demand

	LastAccess time.Time

	// Persistence tracks keep-alive / FCGI KEEP_CONN bookkeeping; owned by
	// the personality, read by the reactor only to decide teardown timing.
	PersistAllowed bool
	PersistLimit   int
	PersistCount   int

	// OnTimeout is invoked by the reactor's idle sweep; returning Stop
	// tears the Connection down, Continue re-arms last-access.
	OnTimeout func(idleFor time.Duration) Verdict

	// OnError is invoked when the backend reports an ERROR event.
	OnError func(err error)

	// OnWriteFinished fires once the write buffer fully drains; static
	// file streaming uses it to push the next block.
	OnWriteFinished func()

	// OnTeardown fires once, from Close, after the descriptor is released.
	// The reactor's long-running mode uses it to re-register listeners.
	OnTeardown func()

	closed bool
}

// New wraps an already-connected, non-blocking descriptor.
func New(fd int, role Role) *Connection {
	return &Connection{
		Fd:         fd,
		Role:       role,
		ReadSize:   DefaultReadSize,
		LastAccess: time.Now(),
	}
}

// Idle reports whether the Connection has neither a pending read demand
// nor buffered output: the reactor tears these down immediately.
func (c *Connection) Idle() bool {
	return c.pending.kind == demandNone && len(c.writeBuf) == c.cursor
}

// Buffered returns the bytes currently held in the read buffer, for
// diagnostics and tests; parsers must not mutate the returned slice.
func (c *Connection) Buffered() []byte {
	return c.readBuf
}

// RecvReady reads up to ReadSize bytes via a single non-blocking recv and
// feeds them to whatever demand is armed. A zero-byte read means the peer
// closed; the caller should tear the Connection down on ErrorPeerClosed.
func (c *Connection) RecvReady() liberr.Error {
	size := c.ReadSize
	if size <= 0 {
		size = DefaultReadSize
	}
	buf := make([]byte, size)

	n, err := unix.Read(c.Fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return nil
		}
		return ErrorRecvFailed.Error(err)
	}
	if n == 0 {
		c.Interest = 0
		return ErrorPeerClosed.Error(nil)
	}

	c.readBuf = append(c.readBuf, buf[:n]...)
	c.LastAccess = time.Now()
	c.satisfy()
	return nil
}

// SendReady sends as much of the buffered tail as the kernel will accept,
// advancing the cursor and compacting the buffer once it crosses
// compactThreshold. Once fully drained it clears WRITE interest and calls
// OnWriteFinished.
func (c *Connection) SendReady() liberr.Error {
	for c.cursor < len(c.writeBuf) {
		n, err := unix.Write(c.Fd, c.writeBuf[c.cursor:])
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
				break
			}
			return ErrorSendFailed.Error(err)
		}
		if n <= 0 {
			break
		}
		c.cursor += n
	}

	if c.cursor >= compactThreshold {
		c.writeBuf = append([]byte(nil), c.writeBuf[c.cursor:]...)
		c.cursor = 0
	}

	if c.cursor >= len(c.writeBuf) {
		c.Interest &^= event.Write
		if c.OnWriteFinished != nil {
			c.OnWriteFinished()
		}
	}

	return nil
}

// ReadUntil arms (or immediately satisfies) a demand for delim. maxBytes of
// 0 means unbounded; onMax may be nil only when maxBytes is 0.
func (c *Connection) ReadUntil(delim []byte, cb Callback, maxBytes int, onMax MaxBytesHook) {
	c.pending = demand{kind: demandDelimiter, delim: delim, maxBytes: maxBytes, cb: cb, onMax: onMax}
	c.satisfy()
}

// ReadExact arms (or immediately satisfies) a demand for exactly length
// bytes.
func (c *Connection) ReadExact(length int, cb Callback) {
	c.pending = demand{kind: demandLength, length: length, cb: cb}
	c.satisfy()
}

// ReadUntilStream arms a streaming delimiter demand: instead of holding the
// whole part in memory until delim appears, onChunk is handed successive
// prefixes of at least threshold bytes as they accumulate, so a consumer
// that writes them straight to disk (multipart file uploads) never buffers
// more than one chunk's worth at a time. cb fires once with the final
// fragment preceding delim (never flushed through onChunk, so the caller
// can still trim a trailing delimiter-adjacent sequence such as "\r\n"
// before the boundary) once delim is found; the delimiter itself is
// consumed but not included in either callback.
func (c *Connection) ReadUntilStream(delim []byte, threshold int, onChunk StreamCallback, cb Callback) {
	c.pending = demand{kind: demandStreamDelimiter, delim: delim, threshold: threshold, onChunk: onChunk, cb: cb}
	c.satisfy()
}

// satisfy re-evaluates the pending demand against the current read buffer.
// It is the single place the delimiter/length scan logic lives, called both
// when a demand is first armed (buffered bytes may already satisfy it) and
// after RecvReady appends fresh bytes.
func (c *Connection) satisfy() {
	switch c.pending.kind {
	case demandDelimiter:
		c.satisfyDelimiter()
	case demandLength:
		c.satisfyLength()
	case demandStreamDelimiter:
		c.satisfyStreamDelimiter()
	}
}

// satisfyStreamDelimiter flushes buffered bytes to d.onChunk as they
// accumulate, always retaining a tail of len(delim)-1 bytes (so a delimiter
// split across two recv calls is never missed) plus two extra bytes so the
// sequence immediately preceding the delimiter is still in the buffer, and
// therefore part of the final callback, when the delimiter is finally
// found.
func (c *Connection) satisfyStreamDelimiter() {
	d := c.pending
	p := bytes.Index(c.readBuf, d.delim)

	if p >= 0 {
		final := c.readBuf[:p]
		c.readBuf = c.readBuf[p+len(d.delim):]
		c.pending = demand{}
		c.Interest &^= event.Read
		d.cb(final)
		return
	}

	margin := len(d.delim) - 1 + 2
	if margin < 0 {
		margin = 0
	}
	safe := len(c.readBuf) - margin
	if safe > 0 && safe >= d.threshold {
		chunk := c.readBuf[:safe]
		if d.onChunk != nil {
			d.onChunk(chunk)
		}
		c.readBuf = append([]byte(nil), c.readBuf[safe:]...)
	}

	c.Interest |= event.Read
}

func (c *Connection) satisfyDelimiter() {
	d := c.pending
	p := bytes.Index(c.readBuf, d.delim)

	if p >= 0 {
		if d.maxBytes > 0 && p > d.maxBytes {
			c.fireMaxBytes(d)
			return
		}
		end := p + len(d.delim)
		consumed := c.readBuf[:end]
		c.readBuf = c.readBuf[end:]
		c.pending = demand{}
		c.Interest &^= event.Read
		d.cb(consumed)
		return
	}

	if d.maxBytes > 0 && len(c.readBuf) >= d.maxBytes {
		c.fireMaxBytes(d)
		return
	}

	c.Interest |= event.Read
}

func (c *Connection) satisfyLength() {
	d := c.pending
	if len(c.readBuf) >= d.length {
		consumed := c.readBuf[:d.length]
		c.readBuf = c.readBuf[d.length:]
		c.pending = demand{}
		c.Interest &^= event.Read
		d.cb(consumed)
		return
	}
	c.Interest |= event.Read
}

func (c *Connection) fireMaxBytes(d demand) {
	c.pending = demand{}
	if d.onMax == nil || d.onMax(d.maxBytes) == Stop {
		c.Interest = 0
		return
	}
	// Continue: caller is expected to re-arm a fresh demand from within
	// onMax (e.g. after diverting the overflow elsewhere); if it did not,
	// the Connection simply has no pending demand until it does.
}

// Write appends bytes to the write buffer. Personalities that need chunked
// HTTP framing wrap the payload themselves before calling Write: the
// Connection's buffer is always a plain byte sink.
func (c *Connection) Write(p []byte) {
	c.writeBuf = append(c.writeBuf, p...)
}

// Flush requests WRITE readiness so the reactor drains the buffer.
func (c *Connection) Flush() {
	if len(c.writeBuf) > c.cursor {
		c.Interest |= event.Write
	}
}

// ClearWriteBuffer discards any unsent bytes, e.g. when abandoning a
// response mid-flight.
func (c *Connection) ClearWriteBuffer() {
	c.writeBuf = nil
	c.cursor = 0
	c.Interest &^= event.Write
}

// ClearInterest drops the Connection out of the poll set; once any
// outstanding writes drain the reactor tears it down.
func (c *Connection) ClearInterest() {
	c.Interest = 0
}

// Close releases the descriptor. Safe to call more than once.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := unix.Close(c.Fd)
	if c.OnTeardown != nil {
		c.OnTeardown()
	}
	return err
}
