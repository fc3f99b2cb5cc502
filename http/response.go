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
	"fmt"
	"strconv"
	"strings"
)

// ServerName is the value sent in every response's Server header.
const ServerName = "Elements"

// SetHeader stages a header to be sent with the response headers, which go
// out on the first Write (or at Finish, when no body was written; WriteStatus
// alone sends nothing); once headers are already on the wire it is a no-op, matching the
// "headers are composed exactly once" rule.
func (r *Request) SetHeader(name, value string) {
	if r.headersWritten {
		return
	}
	r.outHeaders[name] = value
}

// SetCookie stages a Set-Cookie line. maxAge of 0 omits Expires entirely
// (a session cookie); negative immediately expires it. The GMT formatting
// follows Cfg.GMTOffset, matching the original implementation's explicit
// timezone-offset arithmetic instead of assuming the host clock is UTC.
func (r *Request) SetCookie(name, value string, maxAgeSeconds int) {
	if r.headersWritten {
		return
	}
	line := name + "=" + value + "; Path=/"
	if maxAgeSeconds != 0 {
		line += "; Expires=" + formatCookieExpiry(maxAgeSeconds, r.Cfg.GMTOffset)
	}
	r.outCookies = append(r.outCookies, line)
}

// WriteStatus records the response status an eventual Write or Finish will
// use to compose the status line; headers are not sent yet, since a
// handler calling WriteStatus almost always still has a body to write and
// the status line needs to know up front whether that body exists (plain
// Content-Length vs chunked) only once the first byte actually arrives.
func (r *Request) WriteStatus(code int) {
	r.statusCode = code
}

// Write sends body bytes, composing default 200 headers in chunked mode
// first if this is the first write (the response's total length is not
// known up front from a series of Write calls). Once headers declare
// chunked framing, every call wraps its payload in a hex-length chunk;
// callers finish a chunked response via Finish.
func (r *Request) Write(body []byte) {
	if !r.headersWritten {
		if r.statusCode == 0 {
			r.statusCode = 200
		}
		r.composeHeaders(-1)
	}
	if r.chunked {
		r.Conn.Write([]byte(fmt.Sprintf("%x\r\n", len(body))))
		r.Conn.Write(body)
		r.Conn.Write([]byte("\r\n"))
	} else {
		r.Conn.Write(body)
	}
	r.Conn.Flush()
}

// Finish closes out a chunked response's final zero-length chunk and rearms
// (or tears down) the Connection for the next request, applying the
// keep-alive/persistence-limit bookkeeping. A handler that only ever called
// WriteStatus (no body) gets its headers composed here, with
// Content-Length: 0.
func (r *Request) Finish() {
	if !r.headersWritten {
		if r.statusCode == 0 {
			r.statusCode = 200
		}
		r.composeHeaders(0)
	} else if r.chunked {
		r.Conn.Write([]byte("0\r\n\r\n"))
	}
	r.Conn.Flush()
	r.armNext()
}

// contentLength, when >= 0, composes a Content-Length header and a plain
// (non-chunked) body; -1 means the length is unknown up front and the
// response switches to chunked transfer encoding.
func (r *Request) composeHeaders(contentLength int) {
	r.headersWritten = true
	r.chunked = contentLength < 0

	proto := r.protocol
	if proto == "" {
		proto = "HTTP/1.1"
	}

	var b strings.Builder
	b.WriteString(proto)
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(r.statusCode))
	b.WriteByte(' ')
	b.WriteString(reason(r.statusCode))
	b.WriteString("\r\n")

	b.WriteString("Server: " + ServerName + "\r\n")
	if contentLength >= 0 {
		b.WriteString("Content-Length: " + strconv.Itoa(contentLength) + "\r\n")
	} else {
		b.WriteString("Transfer-Encoding: chunked\r\n")
	}

	r.persistCount++
	persistNow := r.Persist && (r.PersistLimit == 0 || r.persistCount < r.PersistLimit)
	if persistNow {
		b.WriteString("Connection: keep-alive\r\n")
	} else {
		b.WriteString("Connection: close\r\n")
	}
	r.Persist = persistNow

	for name, value := range r.outHeaders {
		b.WriteString(name + ": " + value + "\r\n")
	}
	for _, line := range r.outCookies {
		b.WriteString("Set-Cookie: " + line + "\r\n")
	}
	b.WriteString("\r\n")

	r.Conn.Write([]byte(b.String()))
}

// armNext either rearms the Connection for another request (persistent
// connections) or clears its interest so the reactor tears it down once the
// response drains.
func (r *Request) armNext() {
	r.Conn.ReadSize = r.savedReadSize
	if !r.Persist {
		r.Conn.OnWriteFinished = func() {
			r.Conn.ClearInterest()
		}
		return
	}

	persistLimit := r.PersistLimit
	persistCount := r.persistCount
	cfg := r.Cfg
	c := r.Conn
	dispatch := r.Dispatch

	c.OnWriteFinished = func() {
		next := NewRequest(c, cfg, persistLimit)
		next.persistCount = persistCount
		next.Dispatch = dispatch
		c.OnWriteFinished = nil
	}
}

// writeError renders a minimal error page and tears the connection down
// after sending it; malformed input is never worth keeping a connection
// alive for.
func (r *Request) writeError(code int) {
	r.statusCode = code
	r.Persist = false
	body := []byte(fmt.Sprintf("<html><body><h1>%d %s</h1></body></html>", code, reason(code)))
	r.composeHeaders(len(body))
	r.Conn.Write(body)
	r.Conn.OnWriteFinished = func() {
		r.Conn.ClearInterest()
	}
	r.Conn.Flush()
}
