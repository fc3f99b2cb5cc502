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
	"strconv"

	"golang.org/x/sys/unix"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	nhttp "github.com/nabbar/elements/http"
)

var _ = Describe("Request", func() {
	It("parses the request line and query string, then dispatches", func() {
		c, peer := socketpairConn()
		defer unix.Close(peer)

		var gotMethod, gotPath, gotParam string
		r := nhttp.NewRequest(c, testHTTPConfig(GinkgoT()), 0)
		r.Dispatch = func(req *nhttp.Request) {
			gotMethod = req.Method()
			gotPath = req.Path()
			gotParam, _ = req.Param("q")
			req.WriteStatus(200)
			req.Write([]byte("ok"))
			req.Finish()
		}

		_, err := unix.Write(peer, []byte("GET /search?q=gophers HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))
		Expect(err).NotTo(HaveOccurred())

		pump(c, func() bool { return gotMethod != "" })
		Expect(gotMethod).To(Equal("GET"))
		Expect(gotPath).To(Equal("/search"))
		Expect(gotParam).To(Equal("gophers"))

		reply := drainPeer(peer)
		Expect(string(reply)).To(ContainSubstring("200 OK"))
		Expect(string(reply)).To(ContainSubstring("Connection: close"))
	})

	It("rejects an unsupported method with 405", func() {
		c, peer := socketpairConn()
		defer unix.Close(peer)

		_ = nhttp.NewRequest(c, testHTTPConfig(GinkgoT()), 0)

		_, err := unix.Write(peer, []byte("BREW /coffee HTTP/1.1\r\n\r\n"))
		Expect(err).NotTo(HaveOccurred())

		var reply []byte
		pump(c, func() bool {
			reply = append(reply, drainPeer(peer)...)
			return len(reply) > 0
		})
		Expect(string(reply)).To(ContainSubstring("405"))
	})

	It("decides HTTP/1.0 persistence only when Connection: keep-alive is present", func() {
		c, peer := socketpairConn()
		defer unix.Close(peer)

		var persist bool
		r := nhttp.NewRequest(c, testHTTPConfig(GinkgoT()), 0)
		r.Dispatch = func(req *nhttp.Request) {
			persist = req.Persist
			req.WriteStatus(200)
			req.Finish()
		}

		_, err := unix.Write(peer, []byte("GET / HTTP/1.0\r\nConnection: keep-alive\r\n\r\n"))
		Expect(err).NotTo(HaveOccurred())

		pump(c, func() bool { return persist })
		Expect(persist).To(BeTrue())
	})

	It("parses an application/x-www-form-urlencoded body", func() {
		c, peer := socketpairConn()
		defer unix.Close(peer)

		var gotName string
		r := nhttp.NewRequest(c, testHTTPConfig(GinkgoT()), 0)
		r.Dispatch = func(req *nhttp.Request) {
			gotName, _ = req.Param("name")
			req.WriteStatus(204)
			req.Finish()
		}

		body := "name=ferris&lang=go"
		reqText := "POST /submit HTTP/1.1\r\n" +
			"Content-Type: application/x-www-form-urlencoded\r\n" +
			"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body
		_, err := unix.Write(peer, []byte(reqText))
		Expect(err).NotTo(HaveOccurred())

		pump(c, func() bool { return gotName != "" })
		Expect(gotName).To(Equal("ferris"))
	})
})
