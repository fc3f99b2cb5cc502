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
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	nhttp "github.com/nabbar/elements/http"
)

func buildMultipart(boundary string, fieldName, fieldValue, fileField, filename, fileContent string) string {
	var b strings.Builder
	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Disposition: form-data; name=\"" + fieldName + "\"\r\n\r\n")
	b.WriteString(fieldValue + "\r\n")
	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Disposition: form-data; name=\"" + fileField + "\"; filename=\"" + filename + "\"\r\n")
	b.WriteString("Content-Type: text/plain\r\n\r\n")
	b.WriteString(fileContent + "\r\n")
	b.WriteString("--" + boundary + "--")
	return b.String()
}

var _ = Describe("multipart/form-data", func() {
	It("streams an uploaded file to disk and captures a field value", func() {
		c, peer := socketpairConn()
		defer unix.Close(peer)

		const boundary = "xyzBoundary"
		body := buildMultipart(boundary, "title", "hello world", "upload", "note.txt", "the quick brown fox")

		var gotTitle string
		var files []*nhttp.UploadFile
		r := nhttp.NewRequest(c, testHTTPConfig(GinkgoT()), 0)
		r.Dispatch = func(req *nhttp.Request) {
			gotTitle, _ = req.Param("title")
			files = req.Files["upload"]
			req.WriteStatus(200)
			req.Finish()
		}

		reqText := "POST /upload HTTP/1.1\r\n" +
			"Content-Type: multipart/form-data; boundary=" + boundary + "\r\n" +
			"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body
		_, err := unix.Write(peer, []byte(reqText))
		Expect(err).NotTo(HaveOccurred())

		pump(c, func() bool { return len(files) > 0 })
		Expect(gotTitle).To(Equal("hello world"))
		Expect(files).To(HaveLen(1))

		f := files[0]
		Expect(f.Filename).To(Equal("note.txt"))
		Expect(f.Size).To(Equal(int64(len("the quick brown fox"))))
		Expect(f.Error).To(Equal(nhttp.UploadOK))

		contents, err := os.ReadFile(f.TempName)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(contents)).To(Equal("the quick brown fox"))
	})

	It("marks an oversized file part with UploadMaxSize and stops writing past the cap", func() {
		c, peer := socketpairConn()
		defer unix.Close(peer)

		const boundary = "capBoundary"
		fileContent := strings.Repeat("A", 100)
		body := buildMultipart(boundary, "ignored", "v", "upload", "big.bin", fileContent)

		cfg := testHTTPConfig(GinkgoT())
		cfg.MaxUploadSize = 10

		var files []*nhttp.UploadFile
		r := nhttp.NewRequest(c, cfg, 0)
		r.Dispatch = func(req *nhttp.Request) {
			files = req.Files["upload"]
			req.WriteStatus(200)
			req.Finish()
		}

		reqText := "POST /upload HTTP/1.1\r\n" +
			"Content-Type: multipart/form-data; boundary=" + boundary + "\r\n" +
			"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body
		_, err := unix.Write(peer, []byte(reqText))
		Expect(err).NotTo(HaveOccurred())

		pump(c, func() bool { return len(files) > 0 })
		Expect(files).To(HaveLen(1))
		Expect(files[0].Error).To(Equal(nhttp.UploadMaxSize))
	})
})
