/*
Copyright (C) 2026  Carl-Philip Hänsch
Copyright (C) 2013  Pieter Kelchtermans (originally licensed unter WTFPL 2.0)

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

package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/launix-de/packdb/internal/buffer"
	"github.com/launix-de/packdb/internal/proto"
)

const newprompt = "\033[32mpackdb>\033[0m "
const resultprompt = "\033[31m=\033[0m "

func main() {
	addr := flag.String("addr", "127.0.0.1:8888", "server address")
	flag.Parse()

	nc, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Println("connect:", err)
		return
	}
	defer nc.Close()

	l, err := readline.NewEx(&readline.Config{
		Prompt:            newprompt,
		HistoryFile:       ".packdb-cli-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	reader := bufio.NewReader(nc)
	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := sendRequest(nc, line); err != nil {
			fmt.Println("send:", err)
			continue
		}
		resp, err := readResponse(reader)
		if err != nil {
			fmt.Println("recv:", err)
			continue
		}
		printResponse(resp)
	}
}

func sendRequest(w io.Writer, line string) error {
	fields := strings.Fields(line)
	out := buffer.New()
	defer out.Release()
	for _, f := range fields {
		out.AppendRecord([]byte(f))
	}
	out.AppendString("\n")
	_, err := w.Write(out.Unread())
	return err
}

// readResponse reads one native-protocol message directly off the wire
// reader, record by record, mirroring parseNativeOnce's framing without
// pulling in the server-side buffer/epoll machinery this client has no use
// for.
func readResponse(r *bufio.Reader) (proto.Response, error) {
	var payload []string
	for {
		lenLine, err := r.ReadString('\n')
		if err != nil {
			return proto.Response{}, err
		}
		lenLine = strings.TrimRight(lenLine, "\r\n")
		if lenLine == "" {
			break
		}
		n, err := strconv.Atoi(lenLine)
		if err != nil {
			return proto.Response{}, fmt.Errorf("packdb-cli: bad length line %q", lenLine)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return proto.Response{}, err
		}
		if _, err := r.Discard(1); err != nil { // trailing \n
			return proto.Response{}, err
		}
		payload = append(payload, string(buf))
	}
	if len(payload) == 0 {
		return proto.Response{}, nil
	}
	return proto.Response{Status: payload[0], Payload: payload[1:]}, nil
}

func printResponse(resp proto.Response) {
	fmt.Printf("%s%s\n", resultprompt, resp.Status)
	for _, v := range resp.Payload {
		fmt.Println(v)
	}
}
