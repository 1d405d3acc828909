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

package proto

import (
	"strconv"
	"strings"
)

// ReplyType selects how a command's ok-status response is RESP-encoded
// (spec.md §4.3).
type ReplyType int

const (
	ReplyBulk ReplyType = iota
	ReplyMultiBulk
	ReplyInt
	ReplyStatus
)

// Strategy selects how a RESP request is rewritten into the native command
// vocabulary. Most commands are Passthrough: only element 0 (the command
// name) changes.
type Strategy int

const (
	StrategyPassthrough Strategy = iota
	StrategyMGet
	StrategyHMGet
	StrategyHKeysVals
	StrategySetex
	StrategyZRange
	StrategyZRevRange
	StrategyZRangeByScore
	StrategyZRevRangeByScore
	StrategyZAdd
	StrategyZIncrby
	StrategyRemRangeByRank
	StrategyRemRangeByScore
)

// CommandDesc describes one RESP-to-native translation table entry,
// grounded on original_source/src/net/link_redis.cpp's cmds_raw table.
type CommandDesc struct {
	RedisCmd  string
	NativeCmd string
	Reply     ReplyType
	Strategy  Strategy
}

// commandTable is the full pass-through + rewriting table. The supplemented
// entries beyond spec.md's worked examples (§3, 4, per SPEC_FULL.md §10)
// come straight from the original's cmds_raw array so the RESP dialect
// isn't narrower than the native command set it fronts.
var commandTable = buildCommandTable([]CommandDesc{
	{"auth", "auth", ReplyStatus, StrategyPassthrough},
	{"ping", "ping", ReplyStatus, StrategyPassthrough},
	{"dbsize", "dbsize", ReplyInt, StrategyPassthrough},

	{"get", "get", ReplyBulk, StrategyPassthrough},
	{"getset", "getset", ReplyBulk, StrategyPassthrough},
	{"set", "set", ReplyStatus, StrategyPassthrough},
	{"setnx", "setnx", ReplyInt, StrategyPassthrough},
	{"exists", "exists", ReplyInt, StrategyPassthrough},
	{"incr", "incr", ReplyInt, StrategyPassthrough},
	{"decr", "decr", ReplyInt, StrategyPassthrough},
	{"ttl", "ttl", ReplyInt, StrategyPassthrough},
	{"expire", "expire", ReplyInt, StrategyPassthrough},
	{"getbit", "getbit", ReplyInt, StrategyPassthrough},
	{"setbit", "setbit", ReplyInt, StrategyPassthrough},
	{"strlen", "strlen", ReplyInt, StrategyPassthrough},
	{"bitcount", "bitcount", ReplyInt, StrategyPassthrough},
	{"substr", "getrange", ReplyBulk, StrategyPassthrough},
	{"getrange", "getrange", ReplyBulk, StrategyPassthrough},
	{"keys", "keys", ReplyMultiBulk, StrategyPassthrough},

	{"hset", "hset", ReplyInt, StrategyPassthrough},
	{"hget", "hget", ReplyBulk, StrategyPassthrough},
	{"hexists", "hexists", ReplyInt, StrategyPassthrough},

	{"del", "multi_del", ReplyInt, StrategyPassthrough},
	{"mset", "multi_set", ReplyStatus, StrategyPassthrough},
	{"incrby", "incr", ReplyInt, StrategyPassthrough},
	{"decrby", "decr", ReplyInt, StrategyPassthrough},

	{"hmset", "multi_hset", ReplyStatus, StrategyPassthrough},
	{"hdel", "multi_hdel", ReplyInt, StrategyPassthrough},
	{"hmdel", "multi_hdel", ReplyInt, StrategyPassthrough},
	{"hlen", "hsize", ReplyInt, StrategyPassthrough},
	{"hincrby", "hincr", ReplyInt, StrategyPassthrough},

	{"zcard", "zsize", ReplyInt, StrategyPassthrough},
	{"zscore", "zget", ReplyBulk, StrategyPassthrough},
	{"zrem", "multi_zdel", ReplyInt, StrategyPassthrough},
	{"zrank", "zrank", ReplyInt, StrategyPassthrough},
	{"zrevrank", "zrrank", ReplyInt, StrategyPassthrough},
	{"zcount", "zcount", ReplyInt, StrategyPassthrough},
	{"zremrangebyrank", "zremrangebyrank", ReplyInt, StrategyRemRangeByRank},
	{"zremrangebyscore", "zremrangebyscore", ReplyInt, StrategyRemRangeByScore},

	{"mget", "multi_get", ReplyMultiBulk, StrategyMGet},
	{"hmget", "multi_hget", ReplyMultiBulk, StrategyHMGet},

	{"hgetall", "hgetall", ReplyMultiBulk, StrategyPassthrough},
	{"hkeys", "hkeys", ReplyMultiBulk, StrategyHKeysVals},
	{"hvals", "hvals", ReplyMultiBulk, StrategyHKeysVals},
	{"setex", "setx", ReplyStatus, StrategySetex},
	// zrange/zrevrange translate to a "redis_"-prefixed native command: redis
	// indexes ranges by rank with (possibly negative) start/stop, which is a
	// different convention than the native zrange/zrrange's offset+limit, so
	// the original keeps them as distinct native commands rather than
	// reusing the plain name (original_source/src/net/link_redis.cpp).
	{"zrange", "redis_zrange", ReplyMultiBulk, StrategyZRange},
	{"zrevrange", "redis_zrrange", ReplyMultiBulk, StrategyZRevRange},
	{"zadd", "multi_zset", ReplyInt, StrategyZAdd},
	{"zincrby", "zincr", ReplyBulk, StrategyZIncrby},
	{"zrangebyscore", "zscan", ReplyMultiBulk, StrategyZRangeByScore},
	{"zrevrangebyscore", "zrscan", ReplyMultiBulk, StrategyZRevRangeByScore},

	{"lpush", "qpush_front", ReplyInt, StrategyPassthrough},
	{"rpush", "qpush_back", ReplyInt, StrategyPassthrough},
	{"lpop", "qpop_front", ReplyBulk, StrategyPassthrough},
	{"rpop", "qpop_back", ReplyBulk, StrategyPassthrough},
	{"llen", "qsize", ReplyInt, StrategyPassthrough},
	{"lsize", "qsize", ReplyInt, StrategyPassthrough},
	{"lindex", "qget", ReplyBulk, StrategyPassthrough},
	{"lset", "qset", ReplyStatus, StrategyPassthrough},
	{"lrange", "qslice", ReplyMultiBulk, StrategyPassthrough},
})

func buildCommandTable(descs []CommandDesc) map[string]CommandDesc {
	m := make(map[string]CommandDesc, len(descs))
	for _, d := range descs {
		m[d.RedisCmd] = d
	}
	return m
}

// lookupCommand finds the translation entry for a lowercased RESP command
// name.
func lookupCommand(name string) (CommandDesc, bool) {
	d, ok := commandTable[name]
	return d, ok
}

// translate rewrites a RESP request into native form per desc.Strategy. It
// returns the native Request and, for strategies whose argument count is
// wrong for the transform, false (meaning "pass the unrecognized shape
// through to the arity check in the command table").
func translate(desc CommandDesc, req Request) (Request, bool) {
	switch desc.Strategy {
	case StrategyHKeysVals:
		if len(req) != 2 {
			return req, false
		}
		return Request{
			[]byte(desc.NativeCmd), req[1], []byte(""), []byte(""), []byte("2000000000"),
		}, true

	case StrategySetex:
		if len(req) != 4 {
			return req, false
		}
		// redis: SETEX key seconds value -> native: setx key value seconds
		return Request{[]byte(desc.NativeCmd), req[1], req[3], req[2]}, true

	case StrategyZAdd:
		if len(req) < 2 || len(req)%2 != 0 {
			return req, false
		}
		out := Request{[]byte(desc.NativeCmd), req[1]}
		for i := 2; i+1 < len(req); i += 2 {
			score, _ := strconv.ParseFloat(string(req[i]), 64)
			out = append(out, req[i+1], []byte(strconv.FormatInt(int64(score), 10)))
		}
		return out, true

	case StrategyZIncrby:
		if len(req) != 4 {
			return req, false
		}
		// redis: ZINCRBY key increment member -> native: zincr key member increment
		return Request{[]byte(desc.NativeCmd), req[1], req[3], req[2]}, true

	case StrategyRemRangeByRank, StrategyRemRangeByScore:
		if len(req) < 4 {
			return req, false
		}
		return Request{[]byte(desc.NativeCmd), req[1], req[2], req[3]}, true

	case StrategyZRange, StrategyZRevRange:
		if len(req) < 2 {
			return req, false
		}
		out := Request{[]byte(desc.NativeCmd), req[1]}
		if len(req) >= 4 {
			out = append(out, req[2], req[3])
		}
		if len(req) >= 5 {
			out = append(out, []byte(strings.ToLower(string(req[4]))))
		}
		return out, true

	case StrategyZRangeByScore, StrategyZRevRangeByScore:
		return translateZRangeByScore(desc, req)

	default: // StrategyPassthrough, StrategyMGet, StrategyHMGet
		out := make(Request, len(req))
		copy(out, req)
		out[0] = []byte(desc.NativeCmd)
		return out, true
	}
}

// translateZRangeByScore implements the exclusive-bound and LIMIT handling
// described in spec.md §4.3 and §9's Open Questions: integer-score
// assumption, exclusive bounds on non-integer scores are undefined.
func translateZRangeByScore(desc CommandDesc, req Request) (Request, bool) {
	if len(req) < 4 {
		return req, false
	}
	name := req[1]
	smin := string(req[2])
	smax := string(req[3])

	var withscores, offset, count string
	afterLimit := false
	for i := 4; i < len(req); i++ {
		s := string(req[i])
		if afterLimit {
			if offset == "" {
				offset = s
			} else {
				count = s
				afterLimit = false
			}
		}
		low := strings.ToLower(s)
		if low == "withscores" {
			withscores = low
		} else if low == "limit" {
			afterLimit = true
		}
	}
	if smin == "" || smax == "" {
		return req, false
	}

	adjust := func(bound string, exclusiveDelta int) string {
		if bound == "-inf" || bound == "+inf" {
			return ""
		}
		if strings.HasPrefix(bound, "(") {
			n, err := strconv.Atoi(bound[1:])
			if err != nil {
				return bound[1:] // undefined for non-integer scores; pass through raw
			}
			return strconv.Itoa(n + exclusiveDelta)
		}
		return bound
	}

	var minDelta, maxDelta int
	if desc.Strategy == StrategyZRangeByScore {
		minDelta, maxDelta = 1, -1
	} else {
		minDelta, maxDelta = -1, 1
	}

	out := Request{
		[]byte(desc.NativeCmd), name, []byte(""),
		[]byte(adjust(smin, minDelta)),
		[]byte(adjust(smax, maxDelta)),
	}
	if offset == "" {
		offset = "0"
	}
	if count == "" {
		count = "2000000000"
	}
	out = append(out, []byte(offset), []byte(count), []byte(withscores))
	return out, true
}
