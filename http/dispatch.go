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
	"github.com/nabbar/elements/action"
)

// Router is satisfied by both action.PrefixRouter and action.TreeRouter;
// the http package only needs the lookup, not either router's construction
// API.
type Router interface {
	Match(path string, c action.Connection) (action.Action, bool)
}

// NewDispatcher builds a Request.Dispatch function that resolves a route
// through router and hands off to action.Dispatch, falling back to
// notFound's registered 404 when router reports no match and to its 404
// entry again when a prefix matched but the pattern rejected the
// remainder (router.Match's documented ambiguous-but-true case).
func NewDispatcher(router Router, notFound *action.ResponseRegistry) func(r *Request) {
	return func(r *Request) {
		a, _ := router.Match(r.Path(), r)
		if a == nil {
			notFound.RaiseResponse(404, r)
			r.Finish()
			return
		}
		action.Dispatch(a, r)
		r.Finish()
	}
}
