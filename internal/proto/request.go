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

// Package proto implements the two wire dialects the server understands:
// the native length-prefixed line protocol (native.go) and the inline RESP
// dialect (resp.go, resptable.go). Both produce the same Request shape so
// the dispatcher never needs to know which protocol a connection speaks.
package proto

import "golang.org/x/text/cases"
import "golang.org/x/text/language"

// Request is an ordered sequence of byte slices. Element 0 is the command
// name, in whatever case the client sent it; Command lowercases it (see
// Lower).
type Request [][]byte

// Command returns the lowercased command name, or "" for an empty request.
func (r Request) Command() string {
	if len(r) == 0 {
		return ""
	}
	return Lower(string(r[0]))
}

var lowerCaser = cases.Lower(language.Und)

// Lower lowercases a command name the way the command table expects:
// case-insensitive on input, compared case-sensitively against the
// already-lowercased registry key (spec.md §4.8).
func Lower(s string) string {
	return lowerCaser.String(s)
}

// Status tokens (spec.md §3).
const (
	StatusOK           = "ok"
	StatusNotFound     = "not_found"
	StatusError        = "error"
	StatusFail         = "fail"
	StatusClientError  = "client_error"
	StatusNoAuth       = "noauth"
)

// Response is the ordered sequence of strings a handler produces. Payload[i]
// is command-specific; Status classifies the outcome.
type Response struct {
	Status  string
	Payload []string
}

// Strings returns the full status+payload sequence, the shape the native
// framer encodes record-by-record.
func (r Response) Strings() []string {
	out := make([]string, 0, 1+len(r.Payload))
	out = append(out, r.Status)
	out = append(out, r.Payload...)
	return out
}

func OK(payload ...string) Response      { return Response{Status: StatusOK, Payload: payload} }
func NotFound() Response                 { return Response{Status: StatusNotFound} }
func ClientError(msg string) Response    { return Response{Status: StatusClientError, Payload: []string{msg}} }
func Error(msg string) Response          { return Response{Status: StatusError, Payload: []string{msg}} }
func Fail(msg string) Response           { return Response{Status: StatusFail, Payload: []string{msg}} }
func NoAuth(msg string) Response         { return Response{Status: StatusNoAuth, Payload: []string{msg}} }
