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

// Package event abstracts readiness notification (epoll, kqueue, poll,
// select) behind one small vocabulary of events, so the reactor and
// connection layers never touch a syscall directly.
package event

// Mask is a bitset over the abstract event vocabulary. Every concrete
// Backend translates Mask to and from its own native representation.
type Mask uint8

const (
	// Read means the descriptor has data to recv, or a listener has a
	// connection to accept.
	Read Mask = 1 << iota
	// Write means the descriptor can accept more send() bytes.
	Write
	// Error means the descriptor is in an unrecoverable state; the
	// reactor tears down the owning Connection.
	Error
	// Linger means the peer half-closed but bytes may remain readable.
	// Only epoll and poll backends surface it; kqueue and select ignore it.
	Linger
)

func (m Mask) Has(bit Mask) bool {
	return m&bit != 0
}

func (m Mask) String() string {
	s := ""
	if m.Has(Read) {
		s += "R"
	}
	if m.Has(Write) {
		s += "W"
	}
	if m.Has(Error) {
		s += "E"
	}
	if m.Has(Linger) {
		s += "L"
	}
	if s == "" {
		return "-"
	}
	return s
}

// Ready is one (descriptor, events) pair returned by Poll.
type Ready struct {
	Fd     int
	Events Mask
}
