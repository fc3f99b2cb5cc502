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

package fcgi_test

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/elements/fcgi"
)

// buildRecord renders one raw FastCGI record by hand, independent of the
// package's own encoder, so the test exercises the wire format rather than
// the implementation's self-consistency.
func buildRecord(typ uint8, requestID uint16, body []byte) []byte {
	h := make([]byte, 8)
	h[0] = 1
	h[1] = typ
	binary.BigEndian.PutUint16(h[2:4], requestID)
	binary.BigEndian.PutUint16(h[4:6], uint16(len(body)))
	return append(h, body...)
}

func buildNameValue(name, value string) []byte {
	out := []byte{byte(len(name)), byte(len(value))}
	out = append(out, name...)
	out = append(out, value...)
	return out
}

var _ = Describe("Session", func() {
	It("answers FCGI_GET_VALUES with FCGI_MAX_CONNS/FCGI_MAX_REQS/FCGI_MPXS_CONNS", func() {
		c, peer := socketpairConn()
		defer unix.Close(peer)

		s := fcgi.NewSession(c, true, 0)
		s.WorkerCount = 4

		query := buildNameValue("FCGI_MAX_CONNS", "")
		_, err := unix.Write(peer, buildRecord(9, 0, query))
		Expect(err).NotTo(HaveOccurred())

		pump(c, peer, func() bool { return true })
		reply := drainPeer(peer)
		Expect(reply).NotTo(BeEmpty())
		Expect(reply[1]).To(Equal(uint8(10))) // FCGI_GET_VALUES_RESULT
	})

	It("reports FCGI_MPXS_CONNS=1 when persistence is allowed", func() {
		c, peer := socketpairConn()
		defer unix.Close(peer)

		s := fcgi.NewSession(c, true, 0)
		s.WorkerCount = 1

		query := buildNameValue("FCGI_MPXS_CONNS", "")
		_, err := unix.Write(peer, buildRecord(9, 0, query))
		Expect(err).NotTo(HaveOccurred())

		pump(c, peer, func() bool { return true })
		reply := drainPeer(peer)
		Expect(reply).NotTo(BeEmpty())
		Expect(reply[1]).To(Equal(uint8(10)))
		Expect(string(reply[8:])).To(ContainSubstring("1"))
	})

	It("answers OVERLOADED once handled requests exceed max_requests", func() {
		c, peer := socketpairConn()
		defer unix.Close(peer)

		s := fcgi.NewSession(c, true, 1)
		s.Dispatch = func(req *fcgi.Request) uint32 { return 0 }

		begin := make([]byte, 8)
		begin[1] = 1 // FCGI_RESPONDER
		begin[2] = 1 // FCGI_KEEP_CONN

		runOne := func(id uint16) {
			var frame []byte
			frame = append(frame, buildRecord(1, id, begin)...)
			frame = append(frame, buildRecord(4, id, nil)...)
			frame = append(frame, buildRecord(5, id, nil)...)
			_, err := unix.Write(peer, frame)
			Expect(err).NotTo(HaveOccurred())
			pump(c, peer, func() bool { return true })
			_ = drainPeer(peer)
		}

		runOne(1) // handled 0 -> 1, below max_requests at entry: served, keep_conn kept
		runOne(2) // handled 1 -> 2, still == max_requests at entry: served once more

		_, err := unix.Write(peer, buildRecord(1, 3, begin)) // handled (2) > max_requests (1)
		Expect(err).NotTo(HaveOccurred())
		pump(c, peer, func() bool { return true })
		reply := drainPeer(peer)

		Expect(reply).NotTo(BeEmpty())
		Expect(reply[1]).To(Equal(uint8(3)))  // END_REQUEST
		Expect(reply[12]).To(Equal(uint8(2))) // OVERLOADED
	})

	It("runs a full BEGIN_REQUEST/PARAMS/STDIN cycle and writes STDOUT then END_REQUEST", func() {
		c, peer := socketpairConn()
		defer unix.Close(peer)

		var gotMethod string
		s := fcgi.NewSession(c, false, 0)
		s.Dispatch = func(req *fcgi.Request) uint32 {
			gotMethod, _ = req.Param("REQUEST_METHOD")
			_, _ = req.Stdout.Write([]byte("hello"))
			return 0
		}

		begin := make([]byte, 8)
		begin[1] = 1 // FCGI_RESPONDER
		begin[2] = 1 // FCGI_KEEP_CONN

		var frame []byte
		frame = append(frame, buildRecord(1, 7, begin)...) // BEGIN_REQUEST
		frame = append(frame, buildRecord(4, 7, buildNameValue("REQUEST_METHOD", "GET"))...)
		frame = append(frame, buildRecord(4, 7, nil)...) // empty PARAMS terminator
		frame = append(frame, buildRecord(5, 7, []byte("body=1"))...)
		frame = append(frame, buildRecord(5, 7, nil)...) // empty STDIN terminator

		_, err := unix.Write(peer, frame)
		Expect(err).NotTo(HaveOccurred())

		pump(c, peer, func() bool { return gotMethod != "" })
		Expect(gotMethod).To(Equal("GET"))

		reply := drainPeer(peer)
		Expect(reply).NotTo(BeEmpty())

		// first record should be STDOUT carrying "hello"
		Expect(reply[1]).To(Equal(uint8(6)))
		stdoutLen := binary.BigEndian.Uint16(reply[4:6])
		Expect(string(reply[8 : 8+stdoutLen])).To(Equal("hello"))
	})

	It("rejects a second BEGIN_REQUEST while one is already active with CANT_MPX_CONN", func() {
		c, peer := socketpairConn()
		defer unix.Close(peer)

		s := fcgi.NewSession(c, true, 0)
		s.Dispatch = func(req *fcgi.Request) uint32 { return 0 }

		begin := make([]byte, 8)
		begin[1] = 1

		_, err := unix.Write(peer, buildRecord(1, 1, begin))
		Expect(err).NotTo(HaveOccurred())
		pump(c, peer, func() bool { return true })

		_, err = unix.Write(peer, buildRecord(1, 2, begin))
		Expect(err).NotTo(HaveOccurred())
		pump(c, peer, func() bool { return true })

		reply := drainPeer(peer)
		Expect(reply).NotTo(BeEmpty())
		Expect(reply[1]).To(Equal(uint8(3)))  // END_REQUEST
		Expect(reply[12]).To(Equal(uint8(1))) // CANT_MPX_CONN, body byte 4 (offset 8+4)
	})
})
