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
	"os"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/nabbar/elements/ipc"
	"github.com/nabbar/elements/settings"
)

// IsWorker reports whether this process was re-exec'd by a Supervisor
// (EnvIsWorker is set), as opposed to being the original parent process.
func IsWorker() bool {
	return os.Getenv(EnvIsWorker) == "1"
}

// InheritedHosts reconstructs the Host set a worker process receives as
// inherited file descriptors, starting at fd 3, one per cfg.Hosts entry in
// the same order the parent bound them.
func InheritedHosts(cfg *settings.Config) []*Host {
	count, _ := strconv.Atoi(os.Getenv(EnvHostCount))
	hosts := make([]*Host, 0, count)

	for i := 0; i < count && i < len(cfg.Hosts); i++ {
		fd := workerFdBase + i
		_ = unix.SetNonblock(fd, true)
		hosts = append(hosts, FromFd(fd, cfg.Hosts[i].IP, cfg.Hosts[i].Port))
	}
	return hosts
}

// InheritedChannels reconstructs the worker-side IPC channel set, the
// descriptors immediately following the inherited hosts.
func InheritedChannels() []*ipc.Channel {
	hostCount, _ := strconv.Atoi(os.Getenv(EnvHostCount))
	channelCount, _ := strconv.Atoi(os.Getenv(EnvChannelCount))

	channels := make([]*ipc.Channel, 0, channelCount)
	for i := 0; i < channelCount; i++ {
		fd := workerFdBase + hostCount + i
		_ = unix.SetNonblock(fd, true)
		channels = append(channels, ipc.NewChannel(fd, i, os.Getppid()))
	}
	return channels
}
