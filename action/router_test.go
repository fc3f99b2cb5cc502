package action_test

import (
	"regexp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/elements/action"
)

type fakeConn struct {
	method string
	path   string
	params map[string]string
	status int
	body   []byte
}

func newFakeConn(method, path string) *fakeConn {
	return &fakeConn{method: method, path: path, params: make(map[string]string)}
}

func (f *fakeConn) Method() string { return f.method }
func (f *fakeConn) Path() string   { return f.path }
func (f *fakeConn) Param(name string) (string, bool) {
	v, ok := f.params[name]
	return v, ok
}
func (f *fakeConn) Params() map[string][]string { return nil }
func (f *fakeConn) SetParam(name, value string) { f.params[name] = value }
func (f *fakeConn) Header(name string) (string, bool) { return "", false }
func (f *fakeConn) Cookie(name string) (string, bool) { return "", false }
func (f *fakeConn) WriteStatus(code int)              { f.status = code }
func (f *fakeConn) Write(body []byte)                 { f.body = append(f.body, body...) }

type pingAction struct {
	action.Base
}

func (pingAction) Get(c action.Connection) {
	c.WriteStatus(200)
	c.Write([]byte("pong"))
}

type secureAction struct {
	action.Base
	authOK, credOK bool
}

func (a secureAction) CheckAuth(c action.Connection) bool        { return a.authOK }
func (a secureAction) CheckCredentials(c action.Connection) bool { return a.credOK }
func (secureAction) Get(c action.Connection)                     { c.WriteStatus(200) }

var _ = Describe("Dispatch", func() {
	It("calls the method matching the verb", func() {
		c := newFakeConn("GET", "/ping")
		action.Dispatch(pingAction{}, c)
		Expect(c.status).To(Equal(200))
		Expect(string(c.body)).To(Equal("pong"))
	})

	It("defaults unimplemented verbs to 405 via Base", func() {
		c := newFakeConn("POST", "/ping")
		action.Dispatch(pingAction{}, c)
		Expect(c.status).To(Equal(405))
	})

	It("stops at 401 when CheckAuth fails", func() {
		c := newFakeConn("GET", "/secure")
		action.Dispatch(secureAction{authOK: false, credOK: true}, c)
		Expect(c.status).To(Equal(401))
	})

	It("stops at 403 when CheckCredentials fails", func() {
		c := newFakeConn("GET", "/secure")
		action.Dispatch(secureAction{authOK: true, credOK: false}, c)
		Expect(c.status).To(Equal(403))
	})
})

var _ = Describe("PrefixRouter", func() {
	It("matches a plain prefix with no pattern", func() {
		r := action.NewPrefixRouter()
		target := pingAction{}
		r.Add("/ping", nil, target)

		c := newFakeConn("GET", "/ping")
		a, ok := r.Match("/ping", c)
		Expect(ok).To(BeTrue())
		Expect(a).To(Equal(action.Action(target)))
	})

	It("extracts named groups from the pattern remainder", func() {
		r := action.NewPrefixRouter()
		target := pingAction{}
		r.Add("/users", regexp.MustCompile(`^/(?P<id>\d+)$`), target)

		c := newFakeConn("GET", "/users/42")
		a, ok := r.Match("/users/42", c)
		Expect(ok).To(BeTrue())
		Expect(a).NotTo(BeNil())

		id, found := c.Param("id")
		Expect(found).To(BeTrue())
		Expect(id).To(Equal("42"))
	})

	It("reports a matched-prefix-rejected-pattern as found but actionless", func() {
		r := action.NewPrefixRouter()
		r.Add("/users", regexp.MustCompile(`^/\d+$`), pingAction{})

		c := newFakeConn("GET", "/users/abc")
		a, ok := r.Match("/users/abc", c)
		Expect(ok).To(BeTrue())
		Expect(a).To(BeNil())
	})

	It("reports no match at all for an unregistered prefix", func() {
		r := action.NewPrefixRouter()
		c := newFakeConn("GET", "/nope")
		_, ok := r.Match("/nope", c)
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("ResponseRegistry", func() {
	It("renders the action registered for a status code", func() {
		reg := action.NewResponseRegistry()
		reg.Register(404, renderFunc(func(c action.Connection) {
			c.Write([]byte("not found"))
		}))

		c := newFakeConn("GET", "/missing")
		reg.RaiseResponse(404, c)

		Expect(c.status).To(Equal(404))
		Expect(string(c.body)).To(Equal("not found"))
	})

	It("panics for an unregistered code", func() {
		reg := action.NewResponseRegistry()
		c := newFakeConn("GET", "/missing")
		Expect(func() { reg.RaiseResponse(500, c) }).To(Panic())
	})
})

type renderFunc func(c action.Connection)

func (f renderFunc) Render(c action.Connection) { f(c) }
