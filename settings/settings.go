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

// Package settings holds the single configuration struct every component
// reads at construction time: no ambient global, no hot-reload, loaded once
// through viper and validated through go-playground/validator before the
// supervisor ever binds a socket.
package settings

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	liberr "github.com/nabbar/elements/errors"
	"github.com/nabbar/elements/event"
)

const (
	ErrorConfigInvalid liberr.CodeError = iota + liberr.MinPkgConfig
	ErrorConfigLoad
)

func init() {
	liberr.RegisterIdFctMessage(ErrorConfigInvalid, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorConfigInvalid:
		return "configuration failed validation"
	case ErrorConfigLoad:
		return "cannot load configuration"
	}
	return ""
}

// Host is one (ip, port) pair the supervisor binds and listens on.
type Host struct {
	IP   string `mapstructure:"ip" validate:"required,ip"`
	Port int    `mapstructure:"port" validate:"required,min=1,max=65535"`
}

// Identity carries the post-bind privilege drop and filesystem jail.
type Identity struct {
	User   string `mapstructure:"user"`
	Group  string `mapstructure:"group"`
	Umask  int    `mapstructure:"umask" validate:"min=0,max=511"`
	Chroot string `mapstructure:"chroot"`
}

// HTTP groups every option specific to the HTTP personality.
type HTTP struct {
	MaxRequestLength int    `mapstructure:"max_request_length" validate:"min=0"`
	MaxHeadersLength int    `mapstructure:"max_headers_length" validate:"min=0"`
	MaxUploadSize    int64  `mapstructure:"max_upload_size" validate:"min=0"`
	UploadDir        string `mapstructure:"upload_dir" validate:"required"`
	UploadBufferSize int    `mapstructure:"upload_buffer_size" validate:"min=1"`
	GMTOffset        int    `mapstructure:"gmt_offset"`
	SessionAutostart bool   `mapstructure:"session_autostart"`
	SessionCookie    string `mapstructure:"session_cookie"`
	SessionClass     string `mapstructure:"session_class"`
}

// Config is the root, explicit configuration struct passed once at server
// construction, replacing an ambient settings import.
type Config struct {
	Hosts []Host `mapstructure:"hosts" validate:"required,min=1,dive"`

	Daemonize bool `mapstructure:"daemonize"`
	Identity  Identity `mapstructure:"identity"`

	LongRunning bool `mapstructure:"long_running"`

	LoopInterval    time.Duration `mapstructure:"loop_interval"`
	Timeout         time.Duration `mapstructure:"timeout"`
	TimeoutInterval time.Duration `mapstructure:"timeout_interval" validate:"min=0"`

	WorkerCount  int `mapstructure:"worker_count" validate:"min=0"`
	ChannelCount int `mapstructure:"channel_count" validate:"min=0"`

	EventManager event.Name `mapstructure:"event_manager"`

	HTTP HTTP `mapstructure:"http"`
}

// Default returns a Config matching the spec's conservative defaults: no
// daemonizing, a single process, epoll/kqueue/poll/select auto-selection,
// and a 500ms poll cadence inherited from the event package.
func Default() *Config {
	return &Config{
		Hosts:           []Host{{IP: "0.0.0.0", Port: 8080}},
		TimeoutInterval: 5 * time.Second,
		WorkerCount:     0,
		ChannelCount:    0,
		EventManager:    event.Auto,
		HTTP: HTTP{
			MaxRequestLength: 8192,
			MaxHeadersLength: 16384,
			MaxUploadSize:    0,
			UploadDir:        "/tmp",
			UploadBufferSize: 64 * 1024,
			SessionCookie:    "SESSID",
		},
	}
}

// Load populates cfg from v (already pointed at a file/env/flags source)
// and validates it. The kqueue-forces-worker_count-to-zero rule from the
// event package's startup priority is enforced by the supervisor, not here,
// since it depends on which backend was actually selected at runtime.
func Load(v *viper.Viper, cfg *Config) liberr.Error {
	if err := v.Unmarshal(cfg); err != nil {
		return ErrorConfigLoad.Error(err)
	}
	return Validate(cfg)
}

// Validate runs struct tag validation plus the cross-field checks the tags
// cannot express.
func Validate(cfg *Config) liberr.Error {
	if err := validator.New().Struct(cfg); err != nil {
		return ErrorConfigInvalid.Error(err)
	}

	switch cfg.EventManager {
	case event.Auto, event.EPoll, event.KQueue, event.Poll, event.Select:
	default:
		return ErrorConfigInvalid.Error(nil)
	}

	if cfg.HTTP.MaxUploadSize < 0 {
		return ErrorConfigInvalid.Error(nil)
	}

	return nil
}
