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

// Package action defines the routing contract between the HTTP personality
// and application-level handlers: one method per verb, an optional
// authorization gate, and the two routing strategies the spec names
// (prefix/pattern table, nested regex tree).
package action

import (
	"strings"
)

// Connection is the minimal surface an Action needs from an in-flight HTTP
// request; the http package's Request satisfies it, kept separate so this
// package never imports http (which in turn imports this package to route).
type Connection interface {
	Method() string
	Path() string
	Param(name string) (string, bool)
	Params() map[string][]string
	SetParam(name, value string)
	Header(name string) (string, bool)
	Cookie(name string) (string, bool)
	WriteStatus(code int)
	Write(body []byte)
}

// Action exposes one handler per HTTP verb the spec recognizes.
type Action interface {
	Connect(c Connection)
	Delete(c Connection)
	Get(c Connection)
	Head(c Connection)
	Options(c Connection)
	Post(c Connection)
	Put(c Connection)
	Trace(c Connection)
}

// Secure is an Action gated by authorization: both hooks must return true
// before the verb handler runs.
type Secure interface {
	Action
	CheckAuth(c Connection) bool
	CheckCredentials(c Connection) bool
}

// ResponseAction renders a fixed HTTP status code's body; used by the
// response-code registry (RaiseResponse), independent of routed verbs.
type ResponseAction interface {
	Render(c Connection)
}

// Dispatch enforces the Secure gate (if present) and calls the verb method
// matching c.Method(). Unknown verbs never reach Dispatch: the HTTP
// personality already rejects them with 405 while parsing the request
// line.
func Dispatch(a Action, c Connection) {
	if sa, ok := a.(Secure); ok {
		if !sa.CheckAuth(c) {
			c.WriteStatus(401)
			return
		}
		if !sa.CheckCredentials(c) {
			c.WriteStatus(403)
			return
		}
	}

	switch strings.ToLower(c.Method()) {
	case "connect":
		a.Connect(c)
	case "delete":
		a.Delete(c)
	case "get":
		a.Get(c)
	case "head":
		a.Head(c)
	case "options":
		a.Options(c)
	case "post":
		a.Post(c)
	case "put":
		a.Put(c)
	case "trace":
		a.Trace(c)
	}
}

// Base is embedded by handlers that only implement a subset of verbs; every
// unimplemented verb renders 405.
type Base struct{}

func (Base) Connect(c Connection) { c.WriteStatus(405) }
func (Base) Delete(c Connection)  { c.WriteStatus(405) }
func (Base) Get(c Connection)     { c.WriteStatus(405) }
func (Base) Head(c Connection)    { c.WriteStatus(405) }
func (Base) Options(c Connection) { c.WriteStatus(405) }
func (Base) Post(c Connection)    { c.WriteStatus(405) }
func (Base) Put(c Connection)     { c.WriteStatus(405) }
func (Base) Trace(c Connection)   { c.WriteStatus(405) }
