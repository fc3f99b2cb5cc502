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

// Package ipc wraps the socketpair plumbing used between the supervisor and
// its forked workers: a Pair is created before fork, one end stays with the
// parent, the other travels into the child across the fork boundary.
package ipc

import (
	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/elements/errors"
	"github.com/nabbar/elements/conn"
)

const (
	ErrorSocketpairFailed liberr.CodeError = iota + liberr.MinPkgIPC
	ErrorWriteFailed
)

func init() {
	liberr.RegisterIdFctMessage(ErrorSocketpairFailed, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorSocketpairFailed:
		return "cannot create ipc socketpair"
	case ErrorWriteFailed:
		return "ipc channel write failed"
	}
	return ""
}

// Pair is one socketpair's two endpoints, labelled by which side of a fork
// owns them.
type Pair struct {
	Index       int
	ParentFd    int
	WorkerFd    int
}

// NewPair creates a non-blocking AF_UNIX socketpair for one (worker,
// channel index) slot. Both descriptors are usable on either side of a
// fork; the caller closes whichever end it does not own post-fork.
func NewPair(index int) (*Pair, liberr.Error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, ErrorSocketpairFailed.Error(err)
	}
	if err = unix.SetNonblock(fds[0], true); err != nil {
		return nil, ErrorSocketpairFailed.Error(err)
	}
	if err = unix.SetNonblock(fds[1], true); err != nil {
		return nil, ErrorSocketpairFailed.Error(err)
	}
	return &Pair{Index: index, ParentFd: fds[0], WorkerFd: fds[1]}, nil
}

// Channel is an IPC endpoint wrapped as a Connection: READ/WRITE are
// driven by the reactor like any other descriptor, dispatching to
// OnMessage instead of a protocol parser.
type Channel struct {
	*conn.Connection

	Index     int
	WorkerPid int

	OnMessage func(data []byte)
}

// NewChannel wraps fd as a reactor-registered channel. The reactor calls
// RecvReady as usual; callers typically arm a framing demand (length- or
// delimiter-prefixed) via ReadUntil/ReadExact from OnMessage itself to keep
// receiving subsequent messages.
func NewChannel(fd, index, workerPid int) *Channel {
	return &Channel{
		Connection: conn.New(fd, conn.RoleChannel),
		Index:      index,
		WorkerPid:  workerPid,
	}
}

// Write enqueues data on the channel's write buffer and requests a flush.
func (c *Channel) Write(data []byte) {
	c.Connection.Write(data)
	c.Connection.Flush()
}

// BlockingChannel is the same IPC endpoint kept in blocking mode and
// withheld from the reactor entirely, per the specified "blocking IPC
// channel" contract: the core guarantees only that the descriptor will not
// be multiplexed, and leaves message framing to the application.
type BlockingChannel struct {
	Fd        int
	Index     int
	WorkerPid int
}

// NewBlockingChannel clears O_NONBLOCK on fd and returns a channel the
// reactor never sees.
func NewBlockingChannel(fd, index, workerPid int) (*BlockingChannel, liberr.Error) {
	if err := unix.SetNonblock(fd, false); err != nil {
		return nil, ErrorSocketpairFailed.Error(err)
	}
	return &BlockingChannel{Fd: fd, Index: index, WorkerPid: workerPid}, nil
}

// Write performs a synchronous write; the application defines any framing.
func (c *BlockingChannel) Write(data []byte) liberr.Error {
	off := 0
	for off < len(data) {
		n, err := unix.Write(c.Fd, data[off:])
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return ErrorWriteFailed.Error(err)
		}
		off += n
	}
	return nil
}

// Read performs a synchronous read into buf.
func (c *BlockingChannel) Read(buf []byte) (int, error) {
	return unix.Read(c.Fd, buf)
}

// Close releases the descriptor.
func (c *BlockingChannel) Close() error {
	return unix.Close(c.Fd)
}
