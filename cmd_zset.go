package main

import (
	"strings"

	"github.com/xgzlucario/ember/internal/resp"
	"github.com/xgzlucario/ember/internal/zset"
)

var WITH_SCORES = "WITHSCORES"

type zaddFlags struct {
	nx, xx, ch, incr bool
}

func zaddCommand(c *Client, args []resp.RESP) {
	key := args[0].ToString()
	var flags zaddFlags
	i := 1
parse:
	for ; i < len(args); i++ {
		switch strings.ToUpper(args[i].ToStringUnsafe()) {
		case NX:
			flags.nx = true
		case XX:
			flags.xx = true
		case "CH":
			flags.ch = true
		case "INCR":
			flags.incr = true
		default:
			break parse
		}
	}
	elems := args[i:]
	if len(elems) == 0 || len(elems)%2 != 0 {
		c.writer.WriteError(errSyntax)
		return
	}
	if flags.nx && flags.xx {
		c.writer.WriteError(errZAddNXXX)
		return
	}
	if flags.incr && len(elems) > 2 {
		c.writer.WriteError(errZAddIncrPair)
		return
	}
	scores := make([]float64, len(elems)/2)
	for j := range scores {
		score, err := elems[2*j].ToFloat()
		if err != nil {
			c.writer.WriteError(err)
			return
		}
		scores[j] = score
	}

	zs, err := fetchZSet(c.db, key, !flags.xx)
	if err != nil {
		c.writer.WriteError(err)
		return
	}

	var added, changed int
	for j, score := range scores {
		member := elems[2*j+1].ToString()
		old, exists := zs.Get(member)
		if flags.nx && exists || flags.xx && !exists {
			if flags.incr {
				c.writer.WriteNull()
				return
			}
			continue
		}
		if flags.incr {
			score, err = zs.Incr(member, score)
			if err != nil {
				c.writer.WriteError(err)
				return
			}
			if !exists {
				added++
			} else if score != old {
				changed++
			}
			c.server.dirty += int64(added + changed)
			c.writer.WriteFloat(score)
			return
		}
		if zs.Set(member, score) {
			added++
		} else if old != score {
			changed++
		}
	}
	c.server.dirty += int64(added + changed)
	if flags.ch {
		c.writer.WriteInteger(added + changed)
	} else {
		c.writer.WriteInteger(added)
	}
}

func zremCommand(c *Client, args []resp.RESP) {
	key := args[0].ToString()
	zs, err := fetchZSet(c.db, key)
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	var n int
	for _, arg := range args[1:] {
		if zs.Remove(arg.ToStringUnsafe()) {
			n++
		}
	}
	if n > 0 {
		c.db.deleteIfEmpty(key, zs.Len())
		c.server.dirty += int64(n)
	}
	c.writer.WriteInteger(n)
}

func zincrbyCommand(c *Client, args []resp.RESP) {
	delta, err := args[1].ToFloat()
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	zs, err := fetchZSet(c.db, args[0].ToString(), true)
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	score, err := zs.Incr(args[2].ToString(), delta)
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	c.server.dirty++
	c.writer.WriteFloat(score)
}

func zscoreCommand(c *Client, args []resp.RESP) {
	zs, err := fetchZSet(c.db, args[0].ToStringUnsafe())
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	score, ok := zs.Get(args[1].ToStringUnsafe())
	if !ok {
		c.writer.WriteNull()
		return
	}
	c.writer.WriteFloat(score)
}

func zcardCommand(c *Client, args []resp.RESP) {
	zs, err := fetchZSet(c.db, args[0].ToStringUnsafe())
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	c.writer.WriteInteger(zs.Len())
}

func zcountCommand(c *Client, args []resp.RESP) {
	r, err := zset.ParseRange(args[1].ToStringUnsafe(), args[2].ToStringUnsafe())
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	zs, err := fetchZSet(c.db, args[0].ToStringUnsafe())
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	c.writer.WriteInteger(zs.Count(r))
}

func zrankGeneric(c *Client, args []resp.RESP, reverse bool) {
	zs, err := fetchZSet(c.db, args[0].ToStringUnsafe())
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	var rank int
	if reverse {
		rank = zs.RevRank(args[1].ToStringUnsafe())
	} else {
		rank = zs.Rank(args[1].ToStringUnsafe())
	}
	if rank < 0 {
		c.writer.WriteNull()
		return
	}
	c.writer.WriteInteger(rank)
}

func zrankCommand(c *Client, args []resp.RESP) {
	zrankGeneric(c, args, false)
}

func zrevrankCommand(c *Client, args []resp.RESP) {
	zrankGeneric(c, args, true)
}

type scoredMember struct {
	member string
	score  float64
}

func writeScoredMembers(c *Client, res []scoredMember, withScores bool) {
	if withScores {
		c.writer.WriteArrayHead(len(res) * 2)
	} else {
		c.writer.WriteArrayHead(len(res))
	}
	for _, e := range res {
		c.writer.WriteBulkString(e.member)
		if withScores {
			c.writer.WriteFloat(e.score)
		}
	}
}

func zrangeGeneric(c *Client, args []resp.RESP, reverse bool) {
	start, stop, err := parseRangeArgs(args[1:])
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	var withScores bool
	for _, arg := range args[3:] {
		if !equalFold(arg.ToStringUnsafe(), WITH_SCORES) {
			c.writer.WriteError(errSyntax)
			return
		}
		withScores = true
	}
	zs, err := fetchZSet(c.db, args[0].ToStringUnsafe())
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	var res []scoredMember
	zs.Range(start, stop, reverse, func(member string, score float64) {
		res = append(res, scoredMember{member, score})
	})
	writeScoredMembers(c, res, withScores)
}

func zrangeCommand(c *Client, args []resp.RESP) {
	zrangeGeneric(c, args, false)
}

func zrevrangeCommand(c *Client, args []resp.RESP) {
	zrangeGeneric(c, args, true)
}

// zrangebyscoreGeneric serves ZRANGEBYSCORE key min max and
// ZREVRANGEBYSCORE key max min.
func zrangebyscoreGeneric(c *Client, args []resp.RESP, reverse bool) {
	minArg, maxArg := args[1], args[2]
	if reverse {
		minArg, maxArg = maxArg, minArg
	}
	r, err := zset.ParseRange(minArg.ToStringUnsafe(), maxArg.ToStringUnsafe())
	if err != nil {
		c.writer.WriteError(err)
		return
	}

	var withScores bool
	offset, count := 0, -1
	extra := args[3:]
	for len(extra) > 0 {
		switch {
		case equalFold(extra[0].ToStringUnsafe(), WITH_SCORES):
			withScores = true
			extra = extra[1:]
		case equalFold(extra[0].ToStringUnsafe(), "LIMIT") && len(extra) >= 3:
			if offset, err = extra[1].ToInt(); err != nil {
				c.writer.WriteError(err)
				return
			}
			if count, err = extra[2].ToInt(); err != nil {
				c.writer.WriteError(err)
				return
			}
			extra = extra[3:]
		default:
			c.writer.WriteError(errSyntax)
			return
		}
	}

	zs, err := fetchZSet(c.db, args[0].ToStringUnsafe())
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	var res []scoredMember
	if offset >= 0 {
		zs.RangeByScore(r, offset, count, reverse, func(member string, score float64) {
			res = append(res, scoredMember{member, score})
		})
	}
	writeScoredMembers(c, res, withScores)
}

func zrangebyscoreCommand(c *Client, args []resp.RESP) {
	zrangebyscoreGeneric(c, args, false)
}

func zrevrangebyscoreCommand(c *Client, args []resp.RESP) {
	zrangebyscoreGeneric(c, args, true)
}

func zremrangebyscoreCommand(c *Client, args []resp.RESP) {
	key := args[0].ToString()
	r, err := zset.ParseRange(args[1].ToStringUnsafe(), args[2].ToStringUnsafe())
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	zs, err := fetchZSet(c.db, key)
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	n := zs.RemoveRangeByScore(r)
	if n > 0 {
		c.db.deleteIfEmpty(key, zs.Len())
		c.server.dirty += int64(n)
	}
	c.writer.WriteInteger(n)
}

func zremrangebyrankCommand(c *Client, args []resp.RESP) {
	key := args[0].ToString()
	start, stop, err := parseRangeArgs(args[1:])
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	zs, err := fetchZSet(c.db, key)
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	n := zs.RemoveRangeByRank(start, stop)
	if n > 0 {
		c.db.deleteIfEmpty(key, zs.Len())
		c.server.dirty += int64(n)
	}
	c.writer.WriteInteger(n)
}

func zpopGeneric(c *Client, args []resp.RESP, reverse bool) {
	if len(args) > 2 {
		c.writer.WriteError(errSyntax)
		return
	}
	key := args[0].ToString()
	count := 1
	if len(args) == 2 {
		n, err := args[1].ToInt()
		if err != nil {
			c.writer.WriteError(err)
			return
		}
		if n < 0 {
			c.writer.WriteError(errNotPositive)
			return
		}
		count = n
	}
	zs, err := fetchZSet(c.db, key)
	if err != nil {
		c.writer.WriteError(err)
		return
	}

	pop := zs.PopMin
	if reverse {
		pop = zs.PopMax
	}
	count = min(count, zs.Len())
	c.writer.WriteArrayHead(count * 2)
	for range count {
		member, score, _ := pop()
		c.writer.WriteBulkString(member)
		c.writer.WriteFloat(score)
	}
	if count > 0 {
		c.db.deleteIfEmpty(key, zs.Len())
		c.server.dirty += int64(count)
	}
}

func zpopminCommand(c *Client, args []resp.RESP) {
	zpopGeneric(c, args, false)
}

func zpopmaxCommand(c *Client, args []resp.RESP) {
	zpopGeneric(c, args, true)
}
