package server_test

import (
	"time"

	"golang.org/x/sys/unix"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/elements/conn"
	"github.com/nabbar/elements/event"
	"github.com/nabbar/elements/server"
)

func socketpairConn() (*conn.Connection, int) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	Expect(err).NotTo(HaveOccurred())
	Expect(unix.SetNonblock(fds[0], true)).To(Succeed())
	Expect(unix.SetNonblock(fds[1], true)).To(Succeed())
	return conn.New(fds[0], conn.RoleRegular), fds[1]
}

var _ = Describe("Reactor", func() {
	var backend event.Backend
	var reactor *server.Reactor

	BeforeEach(func() {
		be, berr := event.New(event.Poll)
		Expect(berr).To(BeNil())
		backend = be
		reactor = server.NewReactor(backend, 0, 0, 0)
	})

	AfterEach(func() {
		_ = backend.Close()
	})

	It("delivers a read demand once a registered descriptor becomes readable", func() {
		c, peer := socketpairConn()
		defer unix.Close(peer)

		var got []byte
		c.ReadExact(4, func(data []byte) { got = append([]byte(nil), data...) })
		Expect(reactor.Register(c)).To(BeNil())

		_, err := unix.Write(peer, []byte("ping"))
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() []byte {
			ready, perr := backend.Poll(50 * time.Millisecond)
			Expect(perr).To(BeNil())
			for _, rd := range ready {
				if rd.Fd == c.Fd && rd.Events.Has(event.Read) {
					Expect(c.RecvReady()).To(BeNil())
				}
			}
			return got
		}, time.Second, 10*time.Millisecond).Should(Equal([]byte("ping")))
	})

	It("reports a registered connection idle once its interest mask is cleared", func() {
		c, peer := socketpairConn()
		defer unix.Close(peer)

		Expect(reactor.Register(c)).To(BeNil())
		c.ClearInterest()
		Expect(c.Idle()).To(BeTrue())
	})
})
