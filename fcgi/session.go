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
	"strconv"

	"github.com/nabbar/elements/conn"
)

// Request is one FastCGI request's fully decoded view, handed to Session's
// Dispatch hook once both FCGI_PARAMS and FCGI_STDIN have been completely
// received.
type Request struct {
	ID     uint16
	Role   uint16
	Params map[string]string
	Stdin  []byte

	Stdout *StreamWriter
	Stderr *StreamWriter
}

// Param looks up one CGI parameter (e.g. REQUEST_METHOD, SCRIPT_NAME,
// QUERY_STRING) the way the http package's Request.Header does, so the
// same action.Connection adapter shape fits both personalities.
func (r *Request) Param(name string) (string, bool) {
	v, ok := r.Params[name]
	return v, ok
}

// Session is one Connection's FastCGI protocol state: at most one request
// in flight at a time, matching the protocol's CANT_MPX_CONN response for
// any BEGIN_REQUEST received while another is active.
type Session struct {
	Conn *conn.Connection

	// WorkerCount answers FCGI_MAX_CONNS/FCGI_MAX_REQS queries; the
	// supervisor plugs in its configured concurrency here.
	WorkerCount int

	// Dispatch is invoked once a request's PARAMS and STDIN are both
	// complete; its return value becomes the END_REQUEST application
	// status (an exit-code analogue, 0 for success).
	Dispatch func(req *Request) uint32

	activeID     uint16
	role         uint16
	keepConn     bool
	handled      int
	maxRequests  int
	allowPersist bool

	params     []byte
	hasParams  bool
	stdin      []byte
	hasStdin   bool

	stdout *StreamWriter
	stderr *StreamWriter
}

// NewSession arms the first record-header read on c. allowPersistence and
// maxRequests mirror the original implementation's allow_persistence(): the
// supervisor decides whether a single worker connection may serve more
// than one FastCGI request before closing.
func NewSession(c *conn.Connection, allowPersistence bool, maxRequests int) *Session {
	s := &Session{
		Conn:         c,
		allowPersist: allowPersistence,
		maxRequests:  maxRequests,
	}
	s.stdout = newStreamWriter(c, typeStdout)
	s.stderr = newStreamWriter(c, typeStderr)
	s.armHeader()
	return s
}

func (s *Session) armHeader() {
	s.Conn.ReadExact(headerLen, s.onHeader)
}

func (s *Session) onHeader(data []byte) {
	h, err := decodeHeader(data)
	if err != nil {
		s.Conn.ClearInterest()
		return
	}
	s.Conn.ReadExact(int(h.contentLength)+int(h.paddingLength), func(body []byte) {
		s.onBody(h, body[:h.contentLength])
	})
}

func (s *Session) onBody(h header, body []byte) {
	if h.requestID == nullRequestID {
		s.handleManagement(h, body)
		s.armHeader()
		return
	}

	switch h.typ {
	case typeBeginRequest:
		s.handleBeginRequest(h, body)
	case typeAbortRequest:
		// Requests are handled synchronously and serially; nothing to
		// abort mid-flight.
		s.armHeader()
	case typeParams:
		s.handleParams(h, body)
	case typeStdin:
		s.handleStdin(h, body)
	case typeData:
		// FILTER role's second input stream; by the time it would arrive
		// the request has usually already dispatched, so it is accepted
		// and discarded.
		s.armHeader()
	default:
		s.armHeader()
	}
}

func (s *Session) handleManagement(h header, body []byte) {
	switch h.typ {
	case typeGetValues:
		s.handleGetValues(body)
	default:
		writeRecord(s.Conn, typeUnknownType, nullRequestID, encodeUnknownType(h.typ))
		s.Conn.Flush()
	}
}

func (s *Session) handleGetValues(body []byte) {
	queries, err := decodeNameValuePairs(body)
	if err != nil {
		return
	}

	var out []byte
	for _, q := range queries {
		var value string
		switch q.Name {
		case varMaxConns, varMaxReqs:
			value = strconv.Itoa(s.WorkerCount)
		case varMpxsConns:
			if s.allowPersist {
				value = "1"
			} else {
				value = "0"
			}
		default:
			continue
		}
		out = append(out, encodeNameValue([]byte(q.Name), []byte(value))...)
	}

	writeRecord(s.Conn, typeGetValuesRes, nullRequestID, out)
	s.Conn.Flush()
}

func (s *Session) handleBeginRequest(h header, body []byte) {
	if s.activeID != 0 {
		writeRecord(s.Conn, typeEndRequest, h.requestID, encodeEndRequest(0, StatusCantMultiplex))
		s.Conn.Flush()
		s.armHeader()
		return
	}

	role, flags, err := decodeBeginRequest(body)
	if err != nil {
		s.Conn.ClearInterest()
		return
	}

	if s.maxRequests > 0 && s.handled > s.maxRequests {
		s.keepConn = false
		writeRecord(s.Conn, typeEndRequest, h.requestID, encodeEndRequest(0, StatusOverloaded))
		s.Conn.Flush()
		s.armHeader()
		return
	}
	s.keepConn = flags&keepConnFlag != 0

	if role != RoleResponder {
		writeRecord(s.Conn, typeEndRequest, h.requestID, encodeEndRequest(0, StatusUnknownRole))
		s.Conn.Flush()
		s.armHeader()
		return
	}

	s.activeID = h.requestID
	s.role = role
	s.hasParams = false
	s.hasStdin = false
	s.params = s.params[:0]
	s.stdin = s.stdin[:0]
	s.stdout.reset(h.requestID)
	s.stderr.reset(h.requestID)
	s.handled++

	s.armHeader()
}

func (s *Session) handleParams(h header, body []byte) {
	if h.requestID != s.activeID {
		s.armHeader()
		return
	}
	if h.contentLength == 0 {
		s.hasParams = true
	} else {
		s.params = append(s.params, body...)
	}
	s.maybeDispatch()
}

func (s *Session) handleStdin(h header, body []byte) {
	if h.requestID != s.activeID {
		s.armHeader()
		return
	}
	if h.contentLength == 0 {
		s.hasStdin = true
	} else {
		s.stdin = append(s.stdin, body...)
	}
	s.maybeDispatch()
}

func (s *Session) maybeDispatch() {
	if !s.hasParams || !s.hasStdin {
		s.armHeader()
		return
	}

	pairs, err := decodeNameValuePairs(s.params)
	if err != nil {
		s.Conn.ClearInterest()
		return
	}
	params := make(map[string]string, len(pairs))
	for _, p := range pairs {
		params[p.Name] = p.Value
	}

	req := &Request{
		ID:     s.activeID,
		Role:   s.role,
		Params: params,
		Stdin:  append([]byte(nil), s.stdin...),
		Stdout: s.stdout,
		Stderr: s.stderr,
	}

	s.hasParams = false
	s.hasStdin = false
	s.params = s.params[:0]
	s.stdin = s.stdin[:0]

	var status uint32
	if s.Dispatch != nil {
		status = s.Dispatch(req)
	}

	requestID := s.activeID
	writeRecord(s.Conn, typeEndRequest, requestID, encodeEndRequest(status, StatusRequestComplete))
	s.activeID = 0

	if s.allowPersist && s.keepConn {
		s.Conn.Flush()
		s.armHeader()
	} else {
		s.Conn.OnWriteFinished = func() {
			s.Conn.ClearInterest()
		}
		s.Conn.Flush()
	}
}
