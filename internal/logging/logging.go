/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package logging centralizes the process-wide logger. The teacher's own
// MySQL wire listener (scm/mysql.go) logs through go-mysqlstack's xlog
// rather than the standard library logger, so the rest of the server does
// the same for consistency.
package logging

import (
	"fmt"

	"github.com/jtolds/gls"
	"github.com/launix-de/go-mysqlstack/xlog"
)

var std = xlog.NewStdLog(xlog.Level(xlog.INFO))

// Set replaces the process-wide logger, e.g. to raise verbosity from a
// parsed config file or a -v flag.
func Set(l *xlog.Log) { std = l }

func Get() *xlog.Log { return std }

// reqCtx tags the goroutine executing a dispatched command with a request
// ID so log lines emitted deep inside a handler (store, replication,
// migrate) can be correlated without threading an extra parameter through
// every call. gls.ContextManager is the idiomatic stand-in here: Go has no
// goroutine-local storage of its own, and the dispatcher's worker-pool
// goroutines are exactly the "one goroutine, one logical request" shape
// this package is built for.
var reqCtx = gls.NewContextManager()

const reqIDKey = "reqid"

// WithRequestID runs fn with id attached to the current goroutine's log
// context (internal/dispatch wraps each THREAD-dispatched handler call in
// this).
func WithRequestID(id string, fn func()) {
	reqCtx.SetValues(gls.Values{reqIDKey: id}, fn)
}

func requestID() string {
	if v, ok := reqCtx.GetValue(reqIDKey); ok {
		return v.(string)
	}
	return ""
}

func tag(format string) string {
	if id := requestID(); id != "" {
		return fmt.Sprintf("[%s] %s", id, format)
	}
	return format
}

func Infof(format string, args ...interface{})  { std.Info(tag(format), args...) }
func Warnf(format string, args ...interface{})  { std.Warning(tag(format), args...) }
func Errorf(format string, args ...interface{}) { std.Error(tag(format), args...) }
func Fatalf(format string, args ...interface{}) { std.Fatal(tag(format), args...) }
