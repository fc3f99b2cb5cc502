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

package errors

import "errors"

// Error extends the standard error with a numeric code and a parent chain.
type Error interface {
	error

	IsCode(code CodeError) bool
	HasCode(code CodeError) bool
	GetCode() CodeError

	HasParent() bool
	GetParent() []error
	AddParent(parent ...error)
	AddParentError(parent error)

	Unwrap() []error
}

type cError struct {
	code   CodeError
	msg    string
	parent []error
}

func newError(code CodeError, parent ...error) Error {
	e := &cError{
		code: code,
		msg:  code.Message(),
	}
	e.AddParent(parent...)
	return e
}

// New builds an Error from a raw code and message, bypassing the registry.
// Used when a caller already has a numeric status (e.g. a FastCGI protocol
// status) rather than a package-registered CodeError.
func New(code uint16, msg string, parent ...error) Error {
	e := &cError{code: CodeError(code), msg: msg}
	e.AddParent(parent...)
	return e
}

func (e *cError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return e.code.Message()
}

func (e *cError) IsCode(code CodeError) bool {
	return e.code == code
}

func (e *cError) HasCode(code CodeError) bool {
	if e.code == code {
		return true
	}
	for _, p := range e.parent {
		if Has(p, code) {
			return true
		}
	}
	return false
}

func (e *cError) GetCode() CodeError {
	return e.code
}

func (e *cError) HasParent() bool {
	return len(e.parent) > 0
}

func (e *cError) GetParent() []error {
	return e.parent
}

func (e *cError) AddParent(parent ...error) {
	for _, p := range parent {
		if p != nil {
			e.parent = append(e.parent, p)
		}
	}
}

func (e *cError) AddParentError(parent error) {
	e.AddParent(parent)
}

func (e *cError) Unwrap() []error {
	return e.parent
}

// Is reports whether e is (or wraps) an Error.
func Is(e error) bool {
	var err Error
	return errors.As(e, &err)
}

// Get extracts the Error interface from e, or nil if e is not one.
func Get(e error) Error {
	var err Error
	if errors.As(e, &err) {
		return err
	}
	return nil
}

// Has reports whether e, or any error in its parent chain, carries code.
func Has(e error, code CodeError) bool {
	if err := Get(e); err != nil {
		return err.HasCode(code)
	}
	return false
}
