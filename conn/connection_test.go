package conn_test

import (
	"golang.org/x/sys/unix"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/elements/conn"
	"github.com/nabbar/elements/event"
)

// pair returns a connected, non-blocking fd pair: fds[0] wrapped as the
// Connection under test, fds[1] as the peer a test writes/reads through
// directly.
func pair() (*conn.Connection, int) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	Expect(err).NotTo(HaveOccurred())

	Expect(unix.SetNonblock(fds[0], true)).To(Succeed())
	Expect(unix.SetNonblock(fds[1], true)).To(Succeed())

	return conn.New(fds[0], conn.RoleRegular), fds[1]
}

var _ = Describe("Connection", func() {
	var c *conn.Connection
	var peer int

	BeforeEach(func() {
		c, peer = pair()
	})

	AfterEach(func() {
		_ = c.Close()
		_ = unix.Close(peer)
	})

	It("delivers an exact-length read once enough bytes arrive", func() {
		var got []byte
		c.ReadExact(5, func(data []byte) { got = append([]byte(nil), data...) })
		Expect(c.Interest.Has(event.Read)).To(BeTrue())

		_, err := unix.Write(peer, []byte("hel"))
		Expect(err).NotTo(HaveOccurred())
		Expect(c.RecvReady()).To(BeNil())
		Expect(got).To(BeNil())

		_, err = unix.Write(peer, []byte("lo!"))
		Expect(err).NotTo(HaveOccurred())
		Expect(c.RecvReady()).To(BeNil())
		Expect(string(got)).To(Equal("hello"))
		Expect(c.Buffered()).To(Equal([]byte("!")))
	})

	It("delivers a delimited read including the delimiter, leaving the remainder", func() {
		var got []byte
		c.ReadUntil([]byte("\r\n"), func(data []byte) { got = append([]byte(nil), data...) }, 0, nil)

		_, err := unix.Write(peer, []byte("GET / HTTP/1.1\r\nHost: x\r\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(c.RecvReady()).To(BeNil())

		Expect(string(got)).To(Equal("GET / HTTP/1.1\r\n"))
		Expect(string(c.Buffered())).To(Equal("Host: x\r\n"))
	})

	It("invokes the max-bytes hook and stops on overflow", func() {
		stopped := false
		c.ReadUntil([]byte("\n"), func(data []byte) {}, 4, func(limit int) conn.Verdict {
			stopped = true
			return conn.Stop
		})

		_, err := unix.Write(peer, []byte("toolong\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(c.RecvReady()).To(BeNil())

		Expect(stopped).To(BeTrue())
		Expect(c.Interest).To(Equal(event.Mask(0)))
	})

	It("reports peer close as a zero-byte read", func() {
		Expect(unix.Close(peer)).To(Succeed())
		err := c.RecvReady()
		Expect(err).NotTo(BeNil())
		Expect(err.IsCode(conn.ErrorPeerClosed)).To(BeTrue())
	})

	It("flushes the write buffer and reports idle once drained", func() {
		c.Write([]byte("pong"))
		c.Flush()
		Expect(c.Interest.Has(event.Write)).To(BeTrue())

		Expect(c.SendReady()).To(BeNil())
		Expect(c.Idle()).To(BeTrue())

		buf := make([]byte, 16)
		n, err := unix.Read(peer, buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(buf[:n])).To(Equal("pong"))
	})
})
