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

import "encoding/binary"

// headerLen is the fixed size of every FastCGI record header (section 3.3
// of the protocol spec): version, type, request ID, content length,
// padding length, one reserved byte.
const headerLen = 8

const version1 = 1

// Record types (protocol section 3).
const (
	typeBeginRequest = 1
	typeAbortRequest = 2
	typeEndRequest   = 3
	typeParams       = 4
	typeStdin        = 5
	typeStdout       = 6
	typeStderr       = 7
	typeData         = 8
	typeGetValues    = 9
	typeGetValuesRes = 10
	typeUnknownType  = 11
)

// Roles (BEGIN_REQUEST body, protocol section 3.4).
const (
	RoleResponder = 1
	RoleAuthorizer = 2
	RoleFilter     = 3
)

// Protocol-level END_REQUEST statuses (section 3.5).
const (
	StatusRequestComplete = 0
	StatusCantMultiplex   = 1
	StatusOverloaded      = 2
	StatusUnknownRole     = 3
)

// keepConnFlag is the one BEGIN_REQUEST flag bit this implementation reads.
const keepConnFlag = 1

// nullRequestID marks a management record, not tied to any application
// request (section 3.3).
const nullRequestID = 0

// Management variable names queried by FCGI_GET_VALUES (section 4.2).
const (
	varMaxConns  = "FCGI_MAX_CONNS"
	varMaxReqs   = "FCGI_MAX_REQS"
	varMpxsConns = "FCGI_MPXS_CONNS"
)

// header is the decoded form of a record's fixed 8-byte prefix.
type header struct {
	typ           uint8
	requestID     uint16
	contentLength uint16
	paddingLength uint8
}

func decodeHeader(data []byte) (header, error) {
	if len(data) != headerLen {
		return header{}, ErrorMalformedRecord.Error(nil)
	}
	if data[0] != version1 {
		return header{}, ErrorInvalidVersion.Error(nil)
	}
	return header{
		typ:           data[1],
		requestID:     binary.BigEndian.Uint16(data[2:4]),
		contentLength: binary.BigEndian.Uint16(data[4:6]),
		paddingLength: data[6],
	}, nil
}

// encodeHeader renders an 8-byte record header for a body of the given
// length, with no padding: this implementation never pads its own writes
// (the protocol permits padding_length 0 unconditionally), only decodes it
// on records it receives.
func encodeHeader(typ uint8, requestID uint16, contentLength int) []byte {
	b := make([]byte, headerLen)
	b[0] = version1
	b[1] = typ
	binary.BigEndian.PutUint16(b[2:4], requestID)
	binary.BigEndian.PutUint16(b[4:6], uint16(contentLength))
	b[6] = 0
	b[7] = 0
	return b
}

// writeRecord appends a complete record (header plus body) to w.
func writeRecord(w interface{ Write([]byte) }, typ uint8, requestID uint16, body []byte) {
	w.Write(encodeHeader(typ, requestID, len(body)))
	if len(body) > 0 {
		w.Write(body)
	}
}

// decodeBeginRequest parses a BEGIN_REQUEST body: a 2-byte role, a 1-byte
// flags field, and 5 reserved bytes (protocol section 3.4).
func decodeBeginRequest(body []byte) (role uint16, flags uint8, err error) {
	if len(body) < 8 {
		return 0, 0, ErrorMalformedRecord.Error(nil)
	}
	return binary.BigEndian.Uint16(body[0:2]), body[2], nil
}

// encodeEndRequest renders an END_REQUEST body: a 4-byte application exit
// status and a 1-byte protocol status, plus 3 reserved bytes.
func encodeEndRequest(appStatus uint32, protocolStatus uint8) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b[0:4], appStatus)
	b[4] = protocolStatus
	return b
}

// encodeUnknownType renders an UNKNOWN_TYPE body: the unrecognized type
// byte plus 7 reserved bytes.
func encodeUnknownType(unknownType uint8) []byte {
	b := make([]byte, 8)
	b[0] = unknownType
	return b
}
