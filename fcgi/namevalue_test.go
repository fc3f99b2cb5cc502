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
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("name-value pair codec", func() {
	It("round-trips short names and values with one-byte lengths", func() {
		raw := encodeNameValue([]byte("REQUEST_METHOD"), []byte("GET"))
		pairs, err := decodeNameValuePairs(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(pairs).To(HaveLen(1))
		Expect(pairs[0].Name).To(Equal("REQUEST_METHOD"))
		Expect(pairs[0].Value).To(Equal("GET"))
	})

	It("switches to four-byte lengths past 127 bytes", func() {
		long := strings.Repeat("x", 200)
		raw := encodeNameValue([]byte("BODY"), []byte(long))
		Expect(raw[0]).To(Equal(byte(4))) // name length 4, one byte
		Expect(raw[1] & 0x80).To(Equal(byte(0x80)))

		pairs, err := decodeNameValuePairs(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(pairs[0].Value).To(Equal(long))
	})

	It("decodes a sequence of several pairs concatenated together", func() {
		var buf bytes.Buffer
		buf.Write(encodeNameValue([]byte("SCRIPT_NAME"), []byte("/app")))
		buf.Write(encodeNameValue([]byte("QUERY_STRING"), []byte("a=1&b=2")))

		pairs, err := decodeNameValuePairs(buf.Bytes())
		Expect(err).NotTo(HaveOccurred())
		Expect(pairs).To(HaveLen(2))
		Expect(pairs[1].Name).To(Equal("QUERY_STRING"))
	})

	It("rejects truncated input", func() {
		_, err := decodeNameValuePairs([]byte{10, 5, 'a'})
		Expect(err).To(HaveOccurred())
	})
})
