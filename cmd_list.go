package main

import (
	"math"
	"strconv"
	"strings"

	"github.com/xgzlucario/ember/internal/resp"
)

func pushGeneric(c *Client, args []resp.RESP, where listEnd, onlyExisting bool) {
	key := args[0].ToString()
	ls, err := fetchList(c.db, key, !onlyExisting)
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	if onlyExisting && ls.Len() == 0 {
		c.writer.WriteInteger(0)
		return
	}
	for _, arg := range args[1:] {
		if where == listHead {
			ls.LPush(arg.Clone())
		} else {
			ls.RPush(arg.Clone())
		}
	}
	c.server.dirty += int64(len(args) - 1)
	c.server.signalListAsReady(c.db, key)
	c.writer.WriteInteger(ls.Len())
}

func lpushCommand(c *Client, args []resp.RESP) {
	pushGeneric(c, args, listHead, false)
}

func rpushCommand(c *Client, args []resp.RESP) {
	pushGeneric(c, args, listTail, false)
}

func lpushxCommand(c *Client, args []resp.RESP) {
	pushGeneric(c, args, listHead, true)
}

func rpushxCommand(c *Client, args []resp.RESP) {
	pushGeneric(c, args, listTail, true)
}

func llenCommand(c *Client, args []resp.RESP) {
	ls, err := fetchList(c.db, args[0].ToStringUnsafe())
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	c.writer.WriteInteger(ls.Len())
}

func parseRangeArgs(args []resp.RESP) (start, stop int, err error) {
	if start, err = args[0].ToInt(); err != nil {
		return
	}
	stop, err = args[1].ToInt()
	return
}

func lrangeCommand(c *Client, args []resp.RESP) {
	start, stop, err := parseRangeArgs(args[1:])
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	ls, err := fetchList(c.db, args[0].ToStringUnsafe())
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	c.writer.WriteArrayHead(ls.RangeCount(start, stop))
	ls.Range(start, stop, func(data []byte) {
		c.writer.WriteBulk(data)
	})
}

func ltrimCommand(c *Client, args []resp.RESP) {
	key := args[0].ToString()
	start, stop, err := parseRangeArgs(args[1:])
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	ls, err := fetchList(c.db, key)
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	if ls.Len() > 0 {
		ls.Trim(start, stop)
		c.db.deleteIfEmpty(key, ls.Len())
		c.server.dirty++
	}
	c.writer.WriteSString("OK")
}

func lindexCommand(c *Client, args []resp.RESP) {
	index, err := args[1].ToInt()
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	ls, err := fetchList(c.db, args[0].ToStringUnsafe())
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	data, ok := ls.Index(index)
	if !ok {
		c.writer.WriteNull()
		return
	}
	c.writer.WriteBulk(data)
}

func lsetCommand(c *Client, args []resp.RESP) {
	index, err := args[1].ToInt()
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	ls, err := fetchList(c.db, args[0].ToStringUnsafe())
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	if ls.Len() == 0 {
		c.writer.WriteError(errNoSuchKey)
		return
	}
	if !ls.Set(index, args[2].Clone()) {
		c.writer.WriteError(errIndexOutOfRange)
		return
	}
	c.server.dirty++
	c.writer.WriteSString("OK")
}

func lremCommand(c *Client, args []resp.RESP) {
	key := args[0].ToString()
	count, err := args[1].ToInt()
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	ls, err := fetchList(c.db, key)
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	n := ls.Remove(args[2], count)
	if n > 0 {
		c.db.deleteIfEmpty(key, ls.Len())
		c.server.dirty += int64(n)
	}
	c.writer.WriteInteger(n)
}

func linsertCommand(c *Client, args []resp.RESP) {
	var before bool
	switch strings.ToUpper(args[1].ToStringUnsafe()) {
	case "BEFORE":
		before = true
	case "AFTER":
	default:
		c.writer.WriteError(errSyntax)
		return
	}
	ls, err := fetchList(c.db, args[0].ToStringUnsafe())
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	if ls.Len() == 0 {
		c.writer.WriteInteger(0)
		return
	}
	n := ls.Insert(args[2], args[3].Clone(), before)
	if n > 0 {
		c.server.dirty++
	}
	c.writer.WriteInteger(n)
}

func popGeneric(c *Client, args []resp.RESP, where listEnd) {
	if len(args) > 2 {
		c.writer.WriteError(errSyntax)
		return
	}
	key := args[0].ToString()
	withCount := len(args) == 2
	count := 1
	if withCount {
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

	ls, err := fetchList(c.db, key)
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	if ls.Len() == 0 {
		if withCount {
			c.writer.WriteNullArray()
		} else {
			c.writer.WriteNull()
		}
		return
	}

	pop := ls.LPop
	if where == listTail {
		pop = ls.RPop
	}
	count = min(count, ls.Len())
	if withCount {
		c.writer.WriteArrayHead(count)
	}
	for range count {
		data, _ := pop()
		c.writer.WriteBulk(data)
	}
	c.db.deleteIfEmpty(key, ls.Len())
	c.server.dirty += int64(count)
}

func lpopCommand(c *Client, args []resp.RESP) {
	popGeneric(c, args, listHead)
}

func rpopCommand(c *Client, args []resp.RESP) {
	popGeneric(c, args, listTail)
}

// rpoplpush moves the tail of src to the head of dst. It returns false
// when nothing was moved, the reply is already written then.
func rpoplpush(c *Client, src, dst string) bool {
	srcList, err := fetchList(c.db, src)
	if err != nil {
		c.writer.WriteError(err)
		return false
	}
	if srcList.Len() == 0 {
		c.writer.WriteNull()
		return false
	}
	dstList, err := fetchList(c.db, dst, true)
	if err != nil {
		c.writer.WriteError(err)
		return false
	}
	data, _ := srcList.RPop()
	dstList.LPush(data)
	c.db.deleteIfEmpty(src, srcList.Len())
	c.server.dirty++
	c.server.signalListAsReady(c.db, dst)
	c.writer.WriteBulk(data)
	return true
}

func rpoplpushCommand(c *Client, args []resp.RESP) {
	rpoplpush(c, args[0].ToString(), args[1].ToString())
}

// parseTimeout converts a timeout in seconds to an absolute unix ms
// deadline. Zero means no deadline.
func parseTimeout(arg resp.RESP, now int64) (int64, error) {
	f, err := strconv.ParseFloat(arg.ToStringUnsafe(), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errTimeoutNotFloat
	}
	if f < 0 {
		return 0, errTimeoutNegative
	}
	if f == 0 {
		return 0, nil
	}
	ms := f * 1000
	if ms > float64(math.MaxInt64-now) {
		return 0, errTimeoutNotFloat
	}
	return now + max(int64(ms), 1), nil
}

// bpopGeneric serves the first non-empty list among keys right away, or
// blocks the client on all of them.
func bpopGeneric(c *Client, args []resp.RESP, where listEnd) {
	keys := args[:len(args)-1]
	timeout, err := parseTimeout(args[len(args)-1], c.server.nowMs())
	if err != nil {
		c.writer.WriteError(err)
		return
	}

	for _, arg := range keys {
		key := arg.ToString()
		ls, err := fetchList(c.db, key)
		if err != nil {
			c.writer.WriteError(err)
			return
		}
		if ls.Len() == 0 {
			continue
		}
		var data []byte
		if where == listHead {
			data, _ = ls.LPop()
			c.propagateAs([]byte("LPOP"), []byte(key))
		} else {
			data, _ = ls.RPop()
			c.propagateAs([]byte("RPOP"), []byte(key))
		}
		c.db.deleteIfEmpty(key, ls.Len())
		c.server.dirty++
		c.writer.WriteArrayHead(2)
		c.writer.WriteBulkString(key)
		c.writer.WriteBulk(data)
		return
	}

	bs := &blockState{db: c.db, timeout: timeout, where: where}
	for _, arg := range keys {
		bs.keys = append(bs.keys, arg.ToString())
	}
	c.server.blockForKeys(c, bs)
}

func blpopCommand(c *Client, args []resp.RESP) {
	bpopGeneric(c, args, listHead)
}

func brpopCommand(c *Client, args []resp.RESP) {
	bpopGeneric(c, args, listTail)
}

func brpoplpushCommand(c *Client, args []resp.RESP) {
	src, dst := args[0].ToString(), args[1].ToString()
	timeout, err := parseTimeout(args[2], c.server.nowMs())
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	srcList, err := fetchList(c.db, src)
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	if srcList.Len() > 0 {
		if rpoplpush(c, src, dst) {
			c.propagateAs([]byte("RPOPLPUSH"), []byte(src), []byte(dst))
		}
		return
	}
	c.server.blockForKeys(c, &blockState{
		db:        c.db,
		keys:      []string{src},
		timeout:   timeout,
		where:     listTail,
		target:    dst,
		hasTarget: true,
	})
}
