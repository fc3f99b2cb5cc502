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

package action

import (
	"regexp"
	"strings"
)

// Route is one entry of a PrefixRouter: a URI prefix, an optional compiled
// pattern matched against the remainder, and the Action it dispatches to.
type Route struct {
	Prefix  string
	Pattern *regexp.Regexp
	Action  Action
}

// PrefixRouter uses the first route, in registration order, whose prefix
// matches the URI (not the longest one), then (if the route
// carries a pattern) matches the remaining URI against it; named capture
// groups merge into the connection's parameter map.
type PrefixRouter struct {
	routes []Route
}

// NewPrefixRouter returns an empty router; Add routes in most-specific-first
// order, since the first matching prefix wins.
func NewPrefixRouter() *PrefixRouter {
	return &PrefixRouter{}
}

func (r *PrefixRouter) Add(prefix string, pattern *regexp.Regexp, a Action) {
	r.routes = append(r.routes, Route{Prefix: prefix, Pattern: pattern, Action: a})
}

// Match returns the Action for path, or (nil, false) for no route, or
// (nil, true) when a prefix matched but its pattern rejected the
// remainder (a spec-mandated 404, distinct from "no route at all").
func (r *PrefixRouter) Match(path string, c Connection) (Action, bool) {
	for _, route := range r.routes {
		if !strings.HasPrefix(path, route.Prefix) {
			continue
		}
		remainder := path[len(route.Prefix):]

		if route.Pattern == nil {
			return route.Action, true
		}

		m := route.Pattern.FindStringSubmatch(remainder)
		if m == nil {
			return nil, true
		}

		for i, name := range route.Pattern.SubexpNames() {
			if i == 0 || name == "" {
				continue
			}
			c.SetParam(name, m[i])
		}
		return route.Action, true
	}
	return nil, false
}

// TreeNode is one level of a nested regex tree: its Pattern consumes a
// prefix of the remaining URI, descending into Children for the rest, or
// terminating at a Leaf.
type TreeNode struct {
	Pattern  *regexp.Regexp
	Children []*TreeNode
	Leaf     Action
}

// TreeRouter matches by repeatedly consuming the URI through nested
// patterns until a leaf is reached.
type TreeRouter struct {
	Root *TreeNode
}

func NewTreeRouter(root *TreeNode) *TreeRouter {
	return &TreeRouter{Root: root}
}

// Match descends from Root, consuming the matched prefix at each node,
// merging named groups into the connection's parameter map as it goes.
func (r *TreeRouter) Match(path string, c Connection) (Action, bool) {
	return matchNode(r.Root, path, c)
}

func matchNode(node *TreeNode, remainder string, c Connection) (Action, bool) {
	if node == nil {
		return nil, false
	}

	loc := node.Pattern.FindStringSubmatchIndex(remainder)
	if loc == nil || loc[0] != 0 {
		return nil, false
	}

	m := node.Pattern.FindStringSubmatch(remainder)
	for i, name := range node.Pattern.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		c.SetParam(name, m[i])
	}

	rest := remainder[loc[1]:]

	if node.Leaf != nil && rest == "" {
		return node.Leaf, true
	}

	for _, child := range node.Children {
		if a, ok := matchNode(child, rest, c); ok {
			return a, true
		}
	}

	if node.Leaf != nil {
		return node.Leaf, true
	}
	return nil, false
}

// ResponseRegistry maps terminal HTTP status codes to the action that
// renders their body. Every code RaiseResponse is called with must be
// registered; a miss is a programmer error, not a runtime one.
type ResponseRegistry struct {
	actions map[int]ResponseAction
}

func NewResponseRegistry() *ResponseRegistry {
	return &ResponseRegistry{actions: make(map[int]ResponseAction)}
}

func (r *ResponseRegistry) Register(code int, a ResponseAction) {
	r.actions[code] = a
}

// RaiseResponse renders the body registered for code, or panics: a missing
// entry means the registry was built incompletely, not that the request
// did anything wrong.
func (r *ResponseRegistry) RaiseResponse(code int, c Connection) {
	a, ok := r.actions[code]
	if !ok {
		panic("action: no response registered for status code")
	}
	c.WriteStatus(code)
	a.Render(c)
}
