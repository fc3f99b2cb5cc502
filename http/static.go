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

package http

import (
	"io"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

// fileReadBlock is the chunk size static file streaming reads and writes at
// a time, keeping one file's transfer from holding an unbounded amount of
// its content in the Connection's write buffer at once.
const fileReadBlock = 128 * 1024

// ServeFile streams path's contents as the response body, one block at a
// time, driven by the Connection's OnWriteFinished hook so a slow client
// never causes the whole file to sit buffered in memory. The caller must
// not call Write itself afterward; ServeFile owns the rest of the response.
func (r *Request) ServeFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		r.writeError(404)
		return
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		r.writeError(500)
		return
	}

	if mt, err := mimetype.DetectFile(path); err == nil {
		r.SetHeader("Content-Type", mt.String())
	}

	r.statusCode = 200
	r.composeHeaders(int(info.Size()))

	buf := make([]byte, fileReadBlock)
	var sendNext func()
	sendNext = func() {
		n, err := f.Read(buf)
		if n > 0 {
			r.Conn.Write(buf[:n])
		}
		if err == io.EOF || err != nil {
			_ = f.Close()
			r.Conn.OnWriteFinished = nil
			r.armNext()
			return
		}
		r.Conn.OnWriteFinished = sendNext
		r.Conn.Flush()
	}

	r.Conn.OnWriteFinished = sendNext
	r.Conn.Flush()
}
