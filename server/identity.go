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
	"os/exec"
	"os/user"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/elements/errors"
	"github.com/nabbar/elements/settings"
)

// EnvDaemonized marks a process that has already been re-exec'd into a
// detached session, so Daemonize does not loop forever.
const EnvDaemonized = "ELEMENTS_DAEMONIZED"

// Daemonize detaches the process into its own session, the Go-idiomatic
// equivalent of the double-fork: Go cannot fork() a running multi-goroutine
// process safely, so it re-execs itself with Setsid set on the child's
// SysProcAttr and exits the original. Call before ApplyIdentity and before
// any descriptors worth keeping (stdio) are opened.
func Daemonize() liberr.Error {
	if os.Getenv(EnvDaemonized) == "1" {
		return nil
	}

	cmd := exec.Command(os.Args[0], os.Args[1:]...)
	cmd.Env = append(os.Environ(), EnvDaemonized+"=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return ErrorDaemonize.Error(err)
	}

	os.Exit(0)
	return nil
}

// ApplyIdentity performs chroot, umask, setgid, setuid in that order, each
// fatal on failure, matching the reactor initialization sequence. Call
// after binding every Host (chroot would otherwise hide the paths needed
// to resolve a unix-domain bind, and privilege drop must happen last so
// the process can still bind low ports beforehand).
func ApplyIdentity(id settings.Identity) liberr.Error {
	if id.Chroot != "" {
		if err := unix.Chroot(id.Chroot); err != nil {
			return ErrorChroot.Error(err)
		}
		if err := unix.Chdir("/"); err != nil {
			return ErrorChroot.Error(err)
		}
	}

	unix.Umask(id.Umask)

	if id.Group != "" {
		gid, err := resolveGid(id.Group)
		if err != nil {
			return ErrorPrivilegeDrop.Error(err)
		}
		if err = unix.Setgid(gid); err != nil {
			return ErrorPrivilegeDrop.Error(err)
		}
	}

	if id.User != "" {
		uid, err := resolveUid(id.User)
		if err != nil {
			return ErrorPrivilegeDrop.Error(err)
		}
		if err = unix.Setuid(uid); err != nil {
			return ErrorPrivilegeDrop.Error(err)
		}
	}

	return nil
}

func resolveUid(name string) (int, error) {
	if uid, err := strconv.Atoi(name); err == nil {
		return uid, nil
	}
	u, err := user.Lookup(name)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(u.Uid)
}

func resolveGid(name string) (int, error) {
	if gid, err := strconv.Atoi(name); err == nil {
		return gid, nil
	}
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(g.Gid)
}
