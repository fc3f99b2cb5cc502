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

// Package fcgi implements the FastCGI personality: record framing, the
// name-value pair codec, management records (GET_VALUES/UNKNOWN_TYPE), the
// BEGIN_REQUEST/PARAMS/STDIN/END_REQUEST request lifecycle and the
// STDOUT/STDERR stream writers, all driven by the same continuation-style
// Connection primitives the HTTP personality uses.
package fcgi

import (
	liberr "github.com/nabbar/elements/errors"
)

const (
	ErrorInvalidVersion liberr.CodeError = iota + liberr.MinPkgFastCGI
	ErrorMalformedRecord
	ErrorUnexpectedRecordType
)

func init() {
	liberr.RegisterIdFctMessage(ErrorInvalidVersion, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorInvalidVersion:
		return "unsupported FastCGI protocol version"
	case ErrorMalformedRecord:
		return "malformed FastCGI record"
	case ErrorUnexpectedRecordType:
		return "unexpected FastCGI record type for this request state"
	}
	return ""
}
