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
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nabbar/elements/conn"
	"github.com/nabbar/elements/settings"
)

// UploadError classifies why a multipart file part did not finish cleanly.
type UploadError uint8

const (
	UploadOK UploadError = iota
	UploadMaxSize
)

// UploadFile records one multipart file part; TempName is the path under
// Config.UploadDir, deleted on Connection teardown unless already removed.
type UploadFile struct {
	Filename    string
	TempName    string
	ContentType string
	Size        int64
	Error       UploadError
}

// tempWriter is the subset of *os.File a multipart part needs; factored out
// so tests can substitute an in-memory stand-in without touching disk.
type tempWriter interface {
	Write(p []byte) (int, error)
	Close() error
}

// Request is the per-Connection HTTP parser/response state: everything
// §4.6 describes as "personality-specific parser state" on top of the
// generic Connection. It owns the Connection's read demand from the request
// line through to the final response byte, driven purely by continuation
// callbacks: nothing here blocks, every step re-arms the next demand (or
// writes a response) and returns.
type Request struct {
	Conn *conn.Connection
	Cfg  *settings.HTTP

	ID string // correlates log lines for one request; not wire-visible.

	method   string
	rawURI   string
	path     string
	protocol string

	headers map[string]string
	cookies map[string]string
	params  map[string][]string

	outHeaders map[string]string
	outCookies []string

	Persist      bool
	PersistLimit int
	persistCount int

	chunked        bool
	headersWritten bool
	statusCode     int

	boundary string
	Files    map[string][]*UploadFile

	mpFieldName string
	mpFile      *UploadFile
	mpTempFile  tempWriter
	mpWritten   int64
	mpMaxed     bool

	savedReadSize int

	// Dispatch is supplied by the server wiring; it receives the fully
	// parsed Request and is responsible for routing and invoking an
	// action.
	Dispatch func(r *Request)
}

// NewRequest resets c for its first (or next, on persistence) request and
// arms the initial request-line demand.
func NewRequest(c *conn.Connection, cfg *settings.HTTP, persistLimit int) *Request {
	r := &Request{
		Conn:          c,
		Cfg:           cfg,
		ID:            uuid.NewString(),
		headers:       make(map[string]string),
		cookies:       make(map[string]string),
		params:        make(map[string][]string),
		outHeaders:    make(map[string]string),
		Files:         make(map[string][]*UploadFile),
		PersistLimit:  persistLimit,
		savedReadSize: c.ReadSize,
	}
	r.armRequestLine()
	return r
}

func (r *Request) armRequestLine() {
	max := r.Cfg.MaxRequestLength
	r.Conn.ReadUntil([]byte("\r\n"), r.onRequestLine, max, r.onRequestLineOverflow)
}

func (r *Request) onRequestLineOverflow(limit int) conn.Verdict {
	r.writeError(414)
	return conn.Stop
}

func (r *Request) onRequestLine(line []byte) {
	l := strings.TrimRight(string(line), "\r\n")
	fields := strings.Fields(l)

	switch len(fields) {
	case 2:
		r.method, r.rawURI, r.protocol = fields[0], fields[1], "HTTP/1.0"
	case 3:
		r.method, r.rawURI, r.protocol = fields[0], fields[1], fields[2]
	default:
		r.writeError(400)
		return
	}

	r.method = strings.ToUpper(r.method)
	switch r.method {
	case "CONNECT", "DELETE", "GET", "HEAD", "OPTIONS", "POST", "PUT", "TRACE":
	default:
		r.writeError(405)
		return
	}

	switch r.protocol {
	case "HTTP/1.0", "HTTP/1.1":
	default:
		r.writeError(505)
		return
	}

	if i := strings.IndexByte(r.rawURI, '?'); i >= 0 {
		r.path = r.rawURI[:i]
		if q, err := url.ParseQuery(r.rawURI[i+1:]); err == nil {
			r.mergeParams(q)
		}
	} else {
		r.path = r.rawURI
	}

	r.armHeaders()
}

func (r *Request) armHeaders() {
	r.Conn.ReadUntil([]byte("\r\n\r\n"), r.onHeaders, r.Cfg.MaxHeadersLength, r.onHeadersOverflow)
}

func (r *Request) onHeadersOverflow(limit int) conn.Verdict {
	r.writeError(413)
	return conn.Stop
}

func (r *Request) onHeaders(block []byte) {
	text := strings.TrimRight(string(block), "\r\n")
	if text != "" {
		for _, line := range strings.Split(text, "\r\n") {
			i := strings.Index(line, ":")
			if i < 0 {
				continue
			}
			name := strings.TrimSpace(line[:i])
			value := strings.TrimSpace(line[i+1:])
			r.headers[headerKey(name)] = value

			if strings.EqualFold(name, "Cookie") {
				r.parseCookies(value)
			}
		}
	}

	r.decidePersistence()
	r.dispatchOnContentType()
}

// headerKey turns a wire header name into the HTTP_UPPER_UNDERSCORE form
// Header/Param lookups use, mirroring CGI's environment variable naming.
func headerKey(name string) string {
	return "HTTP_" + strings.ReplaceAll(strings.ToUpper(name), "-", "_")
}

func (r *Request) parseCookies(value string) {
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		i := strings.IndexByte(part, '=')
		if i < 0 {
			r.cookies[part] = ""
			continue
		}
		r.cookies[part[:i]] = part[i+1:]
	}
}

func (r *Request) decidePersistence() {
	hdr, _ := r.Header("Connection")
	hdr = strings.ToLower(strings.TrimSpace(hdr))

	switch r.protocol {
	case "HTTP/1.1":
		r.Persist = hdr != "close"
	case "HTTP/1.0":
		r.Persist = hdr == "keep-alive"
	}
}

// mergeParams folds parsed query/body values into r.params, preserving the
// "repeat the key for a list" convention: a name seen once stays a
// single-element list and Param() collapses it to a scalar.
func (r *Request) mergeParams(values url.Values) {
	for k, v := range values {
		r.params[k] = append(r.params[k], v...)
	}
}

func (r *Request) dispatchOnContentType() {
	ct, _ := r.Header("Content-Type")
	ct = strings.TrimSpace(ct)
	lower := strings.ToLower(ct)

	switch {
	case ct == "" || strings.HasPrefix(lower, "text/plain"):
		r.dispatch()

	case strings.HasPrefix(lower, "application/x-www-form-urlencoded"):
		cl, ok := r.Header("Content-Length")
		if !ok {
			r.writeError(411)
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(cl))
		if err != nil || n < 0 {
			r.writeError(400)
			return
		}
		r.Conn.ReadExact(n, r.onURLEncodedBody)

	case strings.HasPrefix(lower, "multipart/form-data"):
		r.armMultipart(ct)

	default:
		r.dispatch()
	}
}

func (r *Request) onURLEncodedBody(body []byte) {
	if q, err := url.ParseQuery(string(body)); err == nil {
		r.mergeParams(q)
	}
	r.dispatch()
}

func (r *Request) dispatch() {
	if r.Dispatch != nil {
		r.Dispatch(r)
	}
}

// --- action.Connection ---------------------------------------------------

func (r *Request) Method() string { return r.method }

func (r *Request) Path() string { return r.path }

func (r *Request) Param(name string) (string, bool) {
	v, ok := r.params[name]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

func (r *Request) Params() map[string][]string { return r.params }

func (r *Request) SetParam(name, value string) {
	r.params[name] = append(r.params[name], value)
}

func (r *Request) Header(name string) (string, bool) {
	v, ok := r.headers[headerKey(name)]
	return v, ok
}

func (r *Request) Cookie(name string) (string, bool) {
	v, ok := r.cookies[name]
	return v, ok
}
