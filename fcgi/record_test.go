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

package fcgi

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("record header codec", func() {
	It("round-trips version, type, request id, content length", func() {
		raw := encodeHeader(typeStdout, 42, 1234)
		Expect(raw).To(HaveLen(headerLen))

		h, err := decodeHeader(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.typ).To(Equal(uint8(typeStdout)))
		Expect(h.requestID).To(Equal(uint16(42)))
		Expect(h.contentLength).To(Equal(uint16(1234)))
		Expect(h.paddingLength).To(Equal(uint8(0)))
	})

	It("rejects a header whose version is not 1", func() {
		raw := encodeHeader(typeStdout, 1, 0)
		raw[0] = 9
		_, err := decodeHeader(raw)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a header of the wrong length", func() {
		_, err := decodeHeader([]byte{1, 2, 3})
		Expect(err).To(HaveOccurred())
	})

	It("encodes an END_REQUEST body", func() {
		body := encodeEndRequest(7, StatusRequestComplete)
		Expect(body).To(HaveLen(8))
		Expect(body[4]).To(Equal(uint8(StatusRequestComplete)))
	})

	It("decodes a BEGIN_REQUEST body", func() {
		body := make([]byte, 8)
		body[0], body[1] = 0, RoleResponder
		body[2] = keepConnFlag

		role, flags, err := decodeBeginRequest(body)
		Expect(err).NotTo(HaveOccurred())
		Expect(role).To(Equal(uint16(RoleResponder)))
		Expect(flags & keepConnFlag).To(Equal(uint8(keepConnFlag)))
	})
})
