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

package http_test

import (
	"golang.org/x/sys/unix"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	nhttp "github.com/nabbar/elements/http"
)

var _ = Describe("Response composition", func() {
	It("frames a Write'd body as chunked transfer encoding", func() {
		c, peer := socketpairConn()
		defer unix.Close(peer)

		var done bool
		r := nhttp.NewRequest(c, testHTTPConfig(GinkgoT()), 0)
		r.Dispatch = func(req *nhttp.Request) {
			req.WriteStatus(200)
			req.Write([]byte("abc"))
			req.Write([]byte("de"))
			req.Finish()
			done = true
		}

		_, err := unix.Write(peer, []byte("GET / HTTP/1.1\r\nConnection: close\r\n\r\n"))
		Expect(err).NotTo(HaveOccurred())

		pump(c, func() bool { return done })
		reply := string(drainPeer(peer))

		Expect(reply).To(ContainSubstring("Transfer-Encoding: chunked"))
		Expect(reply).To(ContainSubstring("3\r\nabc\r\n"))
		Expect(reply).To(ContainSubstring("2\r\nde\r\n"))
		Expect(reply).To(HaveSuffix("0\r\n\r\n"))
	})

	It("stages SetHeader/SetCookie and emits them exactly once", func() {
		c, peer := socketpairConn()
		defer unix.Close(peer)

		var done bool
		r := nhttp.NewRequest(c, testHTTPConfig(GinkgoT()), 0)
		r.Dispatch = func(req *nhttp.Request) {
			req.SetHeader("X-Request-Id", req.ID)
			req.SetCookie("session", "abc123", 0)
			req.WriteStatus(200)
			req.Finish()
			done = true
		}

		_, err := unix.Write(peer, []byte("GET / HTTP/1.1\r\nConnection: close\r\n\r\n"))
		Expect(err).NotTo(HaveOccurred())

		pump(c, func() bool { return done })
		reply := string(drainPeer(peer))

		Expect(reply).To(ContainSubstring("X-Request-Id: "))
		Expect(reply).To(ContainSubstring("Set-Cookie: session=abc123; Path=/"))
	})

	It("reuses a persistent connection for a second request", func() {
		c, peer := socketpairConn()
		defer unix.Close(peer)

		var hits int
		dispatch := func(req *nhttp.Request) {
			hits++
			req.WriteStatus(200)
			req.Finish()
		}

		r := nhttp.NewRequest(c, testHTTPConfig(GinkgoT()), 0)
		r.Dispatch = dispatch

		_, err := unix.Write(peer, []byte("GET /one HTTP/1.1\r\n\r\n"))
		Expect(err).NotTo(HaveOccurred())
		pump(c, func() bool { return hits == 1 })
		_ = drainPeer(peer)

		_, err = unix.Write(peer, []byte("GET /two HTTP/1.1\r\nConnection: close\r\n\r\n"))
		Expect(err).NotTo(HaveOccurred())
		pump(c, func() bool { return hits == 2 })

		reply := string(drainPeer(peer))
		Expect(reply).To(ContainSubstring("200 OK"))
	})

	It("tears the connection down and forces Connection: close on a malformed request", func() {
		c, peer := socketpairConn()
		defer unix.Close(peer)

		_ = nhttp.NewRequest(c, testHTTPConfig(GinkgoT()), 0)

		_, err := unix.Write(peer, []byte("\r\n\r\n"))
		Expect(err).NotTo(HaveOccurred())

		var reply []byte
		pump(c, func() bool {
			reply = append(reply, drainPeer(peer)...)
			return len(reply) > 0
		})
		Expect(string(reply)).To(ContainSubstring("Connection: close"))
		Expect(c.Interest).To(BeZero())
	})
})
