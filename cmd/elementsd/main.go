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

// Command elementsd boots the reactor/supervisor around one of the two
// personalities. It is the thin glue the rest of the module is a library
// for: flag/config plumbing via cobra and viper, then a handoff into
// settings, server, and either http or fcgi.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nabbar/elements/action"
	"github.com/nabbar/elements/conn"
	liberr "github.com/nabbar/elements/errors"
	"github.com/nabbar/elements/event"
	"github.com/nabbar/elements/fcgi"
	elemhttp "github.com/nabbar/elements/http"
	"github.com/nabbar/elements/logger"
	"github.com/nabbar/elements/server"
	"github.com/nabbar/elements/settings"
)

var cfgFile string

func main() {
	logger.SetLevel(logger.InfoLevel)

	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "elementsd",
		Short: "elementsd serves HTTP/1.x or FastCGI over a forking reactor",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML/JSON/TOML config file")

	root.AddCommand(newServeHTTPCommand())
	root.AddCommand(newServeFastCGICommand())
	return root
}

// loadConfig applies the single global-settings replacement the spec calls
// for (§9 "Global settings object"): one explicit Config built here, passed
// down to every collaborator, logged once, never touched again.
func loadConfig() (*settings.Config, liberr.Error) {
	cfg := settings.Default()

	if cfgFile != "" {
		v := viper.New()
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, settings.ErrorConfigLoad.Error(err)
		}
		if err := settings.Load(v, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	if err := settings.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// onAccept builds the personality-specific Connection for one accepted
// socket, matching server.Host.OnNewConnection's signature.
type onAccept func(fd int, peer, local string) *conn.Connection

// bootstrap runs the common startup sequence from §4.3: daemonize, bind or
// recover hosts, apply identity, pick a backend, wire the Reactor, and (in
// the parent only) the Supervisor and its worker fleet.
func bootstrap(cfg *settings.Config, accept onAccept) (*server.Reactor, *server.Supervisor, liberr.Error) {
	if cfg.Daemonize {
		if err := server.Daemonize(); err != nil {
			return nil, nil, err
		}
	}

	isWorker := server.IsWorker()

	var hosts []*server.Host
	if isWorker {
		hosts = server.InheritedHosts(cfg)
	} else {
		for _, h := range cfg.Hosts {
			host, err := server.Listen(h.IP, h.Port)
			if err != nil {
				return nil, nil, err
			}
			hosts = append(hosts, host)
		}
	}

	if err := server.ApplyIdentity(cfg.Identity); err != nil {
		return nil, nil, err
	}

	backend, err := event.New(cfg.EventManager)
	if err != nil {
		return nil, nil, err
	}
	server.RaiseFdLimit(backend.Name())

	reactor := server.NewReactor(backend, cfg.LoopInterval, cfg.Timeout, cfg.TimeoutInterval)
	reactor.LongRunning = cfg.LongRunning

	for _, h := range hosts {
		h.OnNewConnection = func(fd int, peer, local string) *conn.Connection {
			return accept(fd, peer, local)
		}
		if err := reactor.RegisterHost(h); err != nil {
			return nil, nil, err
		}
	}

	var supervisor *server.Supervisor
	if !isWorker {
		supervisor = server.NewSupervisor(cfg, reactor, hosts)
		supervisor.WatchSignals()
		if err := supervisor.SpawnInitialWorkers(); err != nil {
			return nil, nil, err
		}
	}

	logger.InfoLevel.Logf("elementsd starting: worker=%v hosts=%d backend=%s", isWorker, len(hosts), backend.Name())
	return reactor, supervisor, nil
}

// demoRouter is the minimal action tree exercised by the built-in "ping"
// endpoint from the end-to-end scenarios; a real deployment supplies its
// own router and response registry instead of this one.
func demoRouter() (*action.PrefixRouter, *action.ResponseRegistry) {
	router := action.NewPrefixRouter()
	router.Add("/ping", nil, pingAction{})

	notFound := action.NewResponseRegistry()
	notFound.Register(404, notFoundAction{})
	for _, code := range []int{400, 401, 403, 405, 411, 413, 414, 500, 505} {
		notFound.Register(code, genericStatusAction{code})
	}
	return router, notFound
}

func newServeHTTPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve-http",
		Short: "serve the HTTP/1.x personality",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cerr := loadConfig()
			if cerr != nil {
				return cerr
			}

			router, notFound := demoRouter()
			dispatch := elemhttp.NewDispatcher(router, notFound)

			accept := func(fd int, peer, local string) *conn.Connection {
				c := conn.New(fd, conn.RoleRegular)
				req := elemhttp.NewRequest(c, &cfg.HTTP, 0)
				req.Dispatch = dispatch
				return c
			}

			reactor, supervisor, berr := bootstrap(cfg, accept)
			if berr != nil {
				return berr
			}

			rerr := reactor.Run()
			if supervisor != nil {
				supervisor.Shutdown()
			}
			if rerr != nil {
				return rerr
			}
			return nil
		},
	}
}

func newServeFastCGICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve-fastcgi",
		Short: "serve the FastCGI responder personality",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cerr := loadConfig()
			if cerr != nil {
				return cerr
			}

			accept := func(fd int, peer, local string) *conn.Connection {
				c := conn.New(fd, conn.RoleRegular)
				session := fcgi.NewSession(c, true, 0)
				session.WorkerCount = cfg.WorkerCount
				session.Dispatch = pingFastCGI
				return c
			}

			reactor, supervisor, berr := bootstrap(cfg, accept)
			if berr != nil {
				return berr
			}

			rerr := reactor.Run()
			if supervisor != nil {
				supervisor.Shutdown()
			}
			if rerr != nil {
				return rerr
			}
			return nil
		},
	}
}

// pingFastCGI is the FastCGI analogue of pingAction, answering every
// request with a minimal CGI-style response over STDOUT.
func pingFastCGI(req *fcgi.Request) uint32 {
	body := "Status: 200 OK\r\nContent-Type: text/plain\r\n\r\npong"
	_, _ = req.Stdout.Write([]byte(body))
	return 0
}

type pingAction struct{ action.Base }

func (pingAction) Get(c action.Connection) {
	c.WriteStatus(200)
	c.Write([]byte("pong"))
}

type notFoundAction struct{}

func (notFoundAction) Render(c action.Connection) {
	c.Write([]byte("<html><body><h1>404 Not Found</h1></body></html>"))
}

type genericStatusAction struct{ code int }

func (a genericStatusAction) Render(c action.Connection) {
	c.Write([]byte(fmt.Sprintf("<html><body><h1>%d</h1></body></html>", a.code)))
}
