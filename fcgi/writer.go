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
	"github.com/nabbar/elements/conn"
)

// maxRecordBody is the largest content_length a single record's 16-bit
// field can carry; StreamWriter splits anything longer across records.
const maxRecordBody = 65535

// StreamWriter streams STDOUT or STDERR data for the request currently
// bound to a Session, framing it into one or more records of at most
// maxRecordBody bytes each. Once Close has been called, further Write calls
// are a silent no-op rather than an error, matching a file-like object's
// usual tolerance for writes after close in request-handling frameworks;
// reset, run for the next accepted BEGIN_REQUEST, reopens the writer.
type StreamWriter struct {
	conn      *conn.Connection
	typ       uint8
	requestID uint16
	closed    bool
	hasData   bool
}

func newStreamWriter(c *conn.Connection, typ uint8) *StreamWriter {
	return &StreamWriter{conn: c, typ: typ}
}

// reset rearms the writer for a new request, clearing the closed flag.
func (w *StreamWriter) reset(requestID uint16) {
	w.requestID = requestID
	w.closed = false
	w.hasData = false
}

// Write frames data into maxRecordBody-sized STDOUT/STDERR records. It
// never blocks: the records are appended to the Connection's write buffer,
// which the reactor drains on the descriptor's own schedule.
func (w *StreamWriter) Write(data []byte) (int, error) {
	if w.closed {
		return len(data), nil
	}
	total := len(data)
	for len(data) > 0 {
		n := len(data)
		if n > maxRecordBody {
			n = maxRecordBody
		}
		writeRecord(w.conn, w.typ, w.requestID, data[:n])
		w.hasData = true
		data = data[n:]
	}
	return total, nil
}

// Close marks this stream finished; it does not emit an empty terminating
// record; the protocol does not require one outside of STDOUT's implicit
// termination by END_REQUEST.
func (w *StreamWriter) Close() error {
	w.closed = true
	return nil
}

// Closed reports whether Close has already been called.
func (w *StreamWriter) Closed() bool {
	return w.closed
}
