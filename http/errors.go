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

// Package http implements the HTTP/1.x personality: request-line and header
// parsing, cookies, urlencoded and multipart bodies (the latter streamed to
// disk), chunked responses, keep-alive, static file streaming, and the
// routing dispatch onto the action package.
package http

import (
	liberr "github.com/nabbar/elements/errors"
)

const (
	ErrorMalformedRequestLine liberr.CodeError = iota + liberr.MinPkgHttp
	ErrorUnsupportedMethod
	ErrorUnsupportedProtocol
	ErrorMissingContentLength
	ErrorLimitExceeded
	ErrorUploadTempFile
)

func init() {
	liberr.RegisterIdFctMessage(ErrorMalformedRequestLine, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorMalformedRequestLine:
		return "malformed HTTP request line"
	case ErrorUnsupportedMethod:
		return "unsupported HTTP method"
	case ErrorUnsupportedProtocol:
		return "unsupported HTTP protocol version"
	case ErrorMissingContentLength:
		return "missing Content-Length for urlencoded body"
	case ErrorLimitExceeded:
		return "a configured byte limit was exceeded"
	case ErrorUploadTempFile:
		return "cannot create multipart upload temp file"
	}
	return ""
}

// statusText mirrors the minimal set of reason phrases this personality
// emits; a full IANA table is unnecessary since only the status code is
// wire-significant.
var statusText = map[int]string{
	200: "OK",
	204: "No Content",
	301: "Moved Permanently",
	302: "Found",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	411: "Length Required",
	413: "Request Entity Too Large",
	414: "Request-URI Too Long",
	500: "Internal Server Error",
	505: "HTTP Version Not Supported",
}

func reason(code int) string {
	if s, ok := statusText[code]; ok {
		return s
	}
	return "Unknown"
}
