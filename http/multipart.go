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
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/nabbar/elements/conn"
)

// multipartFieldMaxBytes bounds an in-memory (non-file) field's value; a
// file part has no such bound, it streams straight to disk instead.
const multipartFieldMaxBytes = 1 << 20

// largeRequestThreshold decides the recv chunk size bump described in
// §4.6.2: once the whole request is at least 1 MiB, reads favor fewer,
// larger syscalls.
const largeRequestThreshold = 1 << 20

const smallUploadReadSize = 64 * 1024
const largeUploadReadSize = 128 * 1024

// armMultipart extracts the boundary token from the Content-Type header and
// arms the demand for the first "--boundary" marker. Every part after the
// first is preceded by "\r\n--boundary" instead, folded into partDelim so
// the streaming/field scanners never special-case the first part again.
func (r *Request) armMultipart(contentType string) {
	boundary := boundaryParam(contentType)
	if boundary == "" {
		r.writeError(400)
		return
	}
	r.boundary = boundary

	if cl, ok := r.Header("Content-Length"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(cl)); err == nil && n >= largeRequestThreshold {
			r.Conn.ReadSize = largeUploadReadSize
		} else {
			r.Conn.ReadSize = smallUploadReadSize
		}
	}

	lead := "--" + boundary
	r.Conn.ReadExact(len(lead), func(data []byte) {
		if string(data) != lead {
			r.writeError(400)
			return
		}
		r.Conn.ReadExact(2, r.onPostBoundary)
	})
}

func boundaryParam(contentType string) string {
	for _, part := range strings.Split(contentType, ";") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(strings.ToLower(part), "boundary=") {
			continue
		}
		v := part[len("boundary="):]
		return strings.Trim(v, `"`)
	}
	return ""
}

// onPostBoundary consumes the two bytes right after a boundary marker: a
// CRLF precedes another part's headers, "--" ends the multipart body.
func (r *Request) onPostBoundary(data []byte) {
	switch string(data) {
	case "\r\n":
		r.armMultipartHeaders()
	case "--":
		r.Conn.ReadSize = r.savedReadSize
		r.dispatch()
	default:
		r.writeError(400)
	}
}

func (r *Request) armMultipartHeaders() {
	r.Conn.ReadUntil([]byte("\r\n\r\n"), r.onMultipartHeaders, r.Cfg.MaxHeadersLength, r.onHeadersOverflow)
}

func (r *Request) onMultipartHeaders(block []byte) {
	text := strings.TrimRight(string(block), "\r\n")

	var disposition, contentType string
	for _, line := range strings.Split(text, "\r\n") {
		i := strings.Index(line, ":")
		if i < 0 {
			continue
		}
		name := strings.TrimSpace(line[:i])
		value := strings.TrimSpace(line[i+1:])
		switch strings.ToLower(name) {
		case "content-disposition":
			disposition = value
		case "content-type":
			contentType = value
		}
	}

	fieldName, filename := parseDisposition(disposition)
	r.mpFieldName = fieldName

	partDelim := []byte("\r\n--" + r.boundary)

	if filename == "" {
		r.Conn.ReadUntil(partDelim, r.onMultipartFieldValue, multipartFieldMaxBytes, func(limit int) conn.Verdict {
			r.writeError(413)
			return conn.Stop
		})
		return
	}

	f, err := r.createUploadTemp()
	if err != nil {
		r.writeError(500)
		return
	}

	r.mpFile = &UploadFile{
		Filename:    filename,
		TempName:    f.name,
		ContentType: contentType,
	}
	r.mpTempFile = f.file
	tempName := f.name
	prevTeardown := r.Conn.OnTeardown
	r.Conn.OnTeardown = func() {
		if prevTeardown != nil {
			prevTeardown()
		}
		_ = os.Remove(tempName)
	}
	r.mpWritten = 0
	r.mpMaxed = false

	r.Conn.ReadUntilStream(partDelim, r.Cfg.UploadBufferSize, r.onMultipartFileChunk, r.onMultipartFileComplete)
}

// parseDisposition pulls name and (optional) filename out of a
// Content-Disposition: form-data; name="x"; filename="y" value.
func parseDisposition(value string) (name, filename string) {
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "name="):
			name = strings.Trim(part[len("name="):], `"`)
		case strings.HasPrefix(part, "filename="):
			filename = strings.Trim(part[len("filename="):], `"`)
		}
	}
	return
}

type uploadTemp struct {
	name string
	file *os.File
}

// createUploadTemp picks a collision-resistant temp filename under
// Cfg.UploadDir; uuid is already wired for request IDs, so reusing it here
// avoids a second random-name scheme for the same concern.
func (r *Request) createUploadTemp() (*uploadTemp, error) {
	name := filepath.Join(r.Cfg.UploadDir, uuid.NewString()+".upload")
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return nil, err
	}
	return &uploadTemp{name: name, file: f}, nil
}

func (r *Request) onMultipartFileChunk(chunk []byte) {
	if r.mpMaxed {
		return
	}
	if r.Cfg.MaxUploadSize > 0 && r.mpWritten+int64(len(chunk)) > r.Cfg.MaxUploadSize {
		r.mpMaxed = true
		r.mpFile.Error = UploadMaxSize
		return
	}
	if n, err := r.mpTempFile.Write(chunk); err != nil {
		r.mpMaxed = true
		r.mpFile.Error = UploadMaxSize
		return
	} else {
		r.mpWritten += int64(n)
	}
}

func (r *Request) onMultipartFileComplete(final []byte) {
	if !r.mpMaxed {
		if r.Cfg.MaxUploadSize > 0 && r.mpWritten+int64(len(final)) > r.Cfg.MaxUploadSize {
			r.mpMaxed = true
			r.mpFile.Error = UploadMaxSize
		} else if _, err := r.mpTempFile.Write(final); err != nil {
			r.mpMaxed = true
			r.mpFile.Error = UploadMaxSize
		} else {
			r.mpWritten += int64(len(final))
		}
	}

	_ = r.mpTempFile.Close()
	r.mpFile.Size = r.mpWritten

	if r.mpFile.ContentType == "" {
		if mt, err := mimetype.DetectFile(r.mpFile.TempName); err == nil {
			r.mpFile.ContentType = mt.String()
		}
	}

	r.Files[r.mpFieldName] = append(r.Files[r.mpFieldName], r.mpFile)
	r.mpFile = nil
	r.mpTempFile = nil

	r.Conn.ReadExact(2, r.onPostBoundary)
}

func (r *Request) onMultipartFieldValue(data []byte) {
	value := strings.TrimSuffix(string(data), "\r\n--"+r.boundary)
	r.params[r.mpFieldName] = append(r.params[r.mpFieldName], value)
	r.Conn.ReadExact(2, r.onPostBoundary)
}
