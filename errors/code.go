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

// Package errors provides numeric, HTTP-status-like error codes with parent
// chains, grounded on the same CodeError/MinPkg convention used across the
// rest of this module's packages.
package errors

import (
	"sort"
	"strconv"
)

// CodeError is a numeric error classification, analogous to an HTTP status code.
type CodeError uint16

const (
	UnknownError   CodeError = 0
	UnknownMessage           = "unknown error"
)

// Message generates the human-readable string for a CodeError.
type Message func(code CodeError) string

var idMsgFct = make(map[CodeError]Message)

// RegisterIdFctMessage associates a message function with every code at or
// above minCode, until the next registered block takes over. Packages call
// this from init() with their own MinPkgXxx constant.
func RegisterIdFctMessage(minCode CodeError, fct Message) {
	idMsgFct[minCode] = fct
}

// ExistInMapMessage reports whether code resolves to a non-empty message,
// used by packages to detect accidental code collisions at init time.
func ExistInMapMessage(code CodeError) bool {
	if f, ok := idMsgFct[findBlock(code)]; ok {
		return f(code) != ""
	}
	return false
}

func findBlock(code CodeError) CodeError {
	var keys []int
	for k := range idMsgFct {
		keys = append(keys, int(k))
	}
	sort.Ints(keys)

	var res CodeError
	for _, k := range keys {
		if CodeError(k) <= code {
			res = CodeError(k)
		}
	}
	return res
}

func (c CodeError) Uint16() uint16 {
	return uint16(c)
}

func (c CodeError) String() string {
	return strconv.Itoa(int(c))
}

// Message returns the registered text for c, or UnknownMessage if none matches.
func (c CodeError) Message() string {
	if c == UnknownError {
		return UnknownMessage
	}

	if f, ok := idMsgFct[findBlock(c)]; ok {
		if m := f(c); m != "" {
			return m
		}
	}

	return UnknownMessage
}

// Error builds a new Error carrying this code, optionally wrapping parents;
// nil entries in parent are dropped rather than stored. Use IfError instead
// when the call should itself return nil for an all-nil parent list.
func (c CodeError) Error(parent ...error) Error {
	return newError(c, parent...)
}

// ErrorParent is an alias of Error kept for readability at call sites that
// are wrapping an upstream failure rather than originating one.
func (c CodeError) ErrorParent(parent ...error) Error {
	return newError(c, parent...)
}

// IfError returns an Error with this code only if at least one of errs is
// non-nil; otherwise it returns nil so callers can `return code.IfError(err)`.
func (c CodeError) IfError(errs ...error) Error {
	for _, e := range errs {
		if e != nil {
			return newError(c, errs...)
		}
	}
	return nil
}
