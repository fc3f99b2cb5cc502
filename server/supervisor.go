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

package server

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/elements/errors"
	"github.com/nabbar/elements/ipc"
	"github.com/nabbar/elements/logger"
	"github.com/nabbar/elements/settings"
)

// Go offers no safe raw fork() of a running, multi-goroutine process; the
// supervisor instead re-execs the same binary per worker, inheriting the
// listening sockets and one IPC socketpair endpoint per channel as extra
// file descriptors, exactly as a process manager doing socket activation
// would. EnvIsWorker and friends are how the re-exec'd child recognizes its
// role and recovers those descriptors; see cmd/elementsd.
const (
	EnvIsWorker     = "ELEMENTS_WORKER"
	EnvHostCount    = "ELEMENTS_WORKER_HOSTS"
	EnvChannelCount = "ELEMENTS_WORKER_CHANNELS"
	workerFdBase    = 3
)

type workerProc struct {
	cmd      *exec.Cmd
	channels []*ipc.Channel
}

// Supervisor owns the parent process's Reactor, the worker fleet, and the
// signal policy from §7. It never touches sockets directly once hosts are
// bound; it only forwards them to children.
type Supervisor struct {
	Cfg     *settings.Config
	Reactor *Reactor
	Hosts   []*Host

	workers map[int]*workerProc
}

// NewSupervisor builds a Supervisor around an already-constructed Reactor
// and the Hosts it has bound. If the selected backend is kqueue, worker
// spawning is disabled (kqueue state does not survive the fork/exec
// boundary on the platforms that have it).
func NewSupervisor(cfg *settings.Config, reactor *Reactor, hosts []*Host) *Supervisor {
	if reactor.Backend.Name() == "kqueue" {
		cfg.WorkerCount = 0
	}

	s := &Supervisor{Cfg: cfg, Reactor: reactor, Hosts: hosts, workers: make(map[int]*workerProc)}
	reactor.SupervisionHook = s.supervisionSweep
	return s
}

// WatchSignals installs the SIGINT/SIGTERM/SIGHUP handling from §7. SIGCHLD
// is deliberately left to the supervision sweep's non-blocking wait rather
// than handled here.
func (s *Supervisor) WatchSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		for sig := range ch {
			switch sig {
			case syscall.SIGINT:
				graceful := !s.Reactor.shuttingDown
				s.Reactor.Shutdown(graceful)
				logger.InfoLevel.Logf("received SIGINT, shutting down (graceful=%v)", graceful)
			case syscall.SIGTERM, syscall.SIGHUP:
				s.forwardToWorkers(sig)
			}
		}
	}()
}

func (s *Supervisor) forwardToWorkers(sig os.Signal) {
	for pid := range s.workers {
		_ = syscall.Kill(pid, sig.(syscall.Signal))
	}
}

// SpawnInitialWorkers starts cfg.WorkerCount workers. Call once at startup,
// after Hosts are bound and before Reactor.Run.
func (s *Supervisor) SpawnInitialWorkers() liberr.Error {
	for i := 0; i < s.Cfg.WorkerCount; i++ {
		if err := s.spawnWorker(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Supervisor) spawnWorker() liberr.Error {
	pairs := make([]*ipc.Pair, s.Cfg.ChannelCount)
	for i := range pairs {
		p, err := ipc.NewPair(i)
		if err != nil {
			return err
		}
		pairs[i] = p
	}

	extraFiles := make([]*os.File, 0, len(s.Hosts)+len(pairs))
	for _, h := range s.Hosts {
		extraFiles = append(extraFiles, os.NewFile(uintptr(h.Conn.Fd), "elements-listener"))
	}
	for _, p := range pairs {
		extraFiles = append(extraFiles, os.NewFile(uintptr(p.WorkerFd), "elements-channel"))
	}

	cmd := exec.Command(os.Args[0], os.Args[1:]...)
	cmd.ExtraFiles = extraFiles
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=1", EnvIsWorker),
		fmt.Sprintf("%s=%d", EnvHostCount, len(s.Hosts)),
		fmt.Sprintf("%s=%d", EnvChannelCount, len(pairs)),
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return ErrorSpawnFailed.Error(err)
	}

	// The child inherited duplicates of the worker-side endpoints; the
	// parent's own copy would otherwise keep that half of the pipe alive
	// after the child exits.
	for _, p := range pairs {
		_ = unix.Close(p.WorkerFd)
	}

	channels := make([]*ipc.Channel, len(pairs))
	for i, p := range pairs {
		ch := ipc.NewChannel(p.ParentFd, p.Index, cmd.Process.Pid)
		channels[i] = ch
		_ = s.Reactor.Register(ch.Connection)
	}

	s.workers[cmd.Process.Pid] = &workerProc{cmd: cmd, channels: channels}
	logger.InfoLevel.Logf("spawned worker pid=%d", cmd.Process.Pid)
	return nil
}

// WriteChannel locates the channel by (pid, index) and writes to it,
// matching the spec's write_channel contract.
func (s *Supervisor) WriteChannel(data []byte, channelIndex, workerPid int) bool {
	wp, ok := s.workers[workerPid]
	if !ok {
		return false
	}
	for _, ch := range wp.channels {
		if ch.Index == channelIndex {
			ch.Write(data)
			return true
		}
	}
	return false
}

// supervisionSweep is the Reactor's once-a-second hook (§4.3 step 1): stop
// listening when shutting down, then reap exited workers and respawn them
// unless the supervisor itself is shutting down.
func (s *Supervisor) supervisionSweep() {
	if s.Reactor.shuttingDown {
		for _, h := range s.Hosts {
			s.Reactor.Unregister(h.Conn.Fd)
		}
	}

	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		if err != nil || pid <= 0 {
			break
		}

		wp, ok := s.workers[pid]
		if !ok {
			continue
		}
		for _, ch := range wp.channels {
			s.Reactor.Unregister(ch.Connection.Fd)
			_ = ch.Close()
		}
		delete(s.workers, pid)
		logger.WarnLevel.Logf("worker pid=%d exited, status=%v", pid, status)

		if !s.Reactor.shuttingDown {
			if err := s.spawnWorker(); err != nil {
				logger.ErrorLevel.LogErrorCtxf(logger.ErrorLevel, "failed to respawn worker", err)
			}
		}
	}
}

// Shutdown sends SIGINT to every live worker and waits for each to exit,
// matching the reactor-termination contract in §4.3.
func (s *Supervisor) Shutdown() {
	for pid := range s.workers {
		_ = syscall.Kill(pid, syscall.SIGINT)
	}
	for pid, wp := range s.workers {
		_, _ = wp.cmd.Process.Wait()
		delete(s.workers, pid)
	}
}
