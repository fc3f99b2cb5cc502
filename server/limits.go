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
	"github.com/nabbar/elements/event"
	"github.com/nabbar/elements/ioutils/fileDescriptor"
	"github.com/nabbar/elements/logger"
)

// selectWantFds is the descriptor headroom RaiseFdLimit asks for when the
// select backend was chosen. select itself is still bounded by FD_SETSIZE
// (1024 on Linux), but every other part of the process - accepted
// connections, upload temp files, IPC channels - shares the same rlimit, so
// raising it still helps a select deployment avoid EMFILE away from the
// poll set itself.
const selectWantFds = 4096

// RaiseFdLimit asks the kernel for more open-file headroom when backend is
// the select fallback (see §9's "select-based backend file descriptor
// limits" note). epoll/kqueue/poll scale past FD_SETSIZE on their own and
// do not need this; it is a no-op for them.
func RaiseFdLimit(backend event.Name) {
	if backend != event.Select {
		return
	}

	cur, max, err := fileDescriptor.SystemFileDescriptor(selectWantFds)
	if err != nil {
		logger.WarnLevel.Logf("could not raise file descriptor limit for select backend: %s", err.Error())
		return
	}
	logger.InfoLevel.Logf("file descriptor limit for select backend: current=%d max=%d", cur, max)
}
