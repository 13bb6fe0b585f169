package main

import (
	"math"
	"strconv"

	"github.com/xgzlucario/ember/internal/list"
	"github.com/xgzlucario/ember/internal/resp"
)

func delCommand(c *Client, args []resp.RESP) {
	var n int
	for _, arg := range args {
		if c.db.Delete(arg.ToStringUnsafe()) {
			n++
		}
	}
	c.server.dirty += int64(n)
	c.writer.WriteInteger(n)
}

func existsCommand(c *Client, args []resp.RESP) {
	var n int
	for _, arg := range args {
		if c.db.Exists(arg.ToStringUnsafe()) {
			n++
		}
	}
	c.writer.WriteInteger(n)
}

func typeCommand(c *Client, args []resp.RESP) {
	object, ok := c.db.Get(args[0].ToStringUnsafe())
	if !ok {
		c.writer.WriteSString(TypeUnknown.String())
		return
	}
	c.writer.WriteSString(getObjectType(object).String())
}

func keysCommand(c *Client, args []resp.RESP) {
	keys := c.db.Keys(args[0].ToString())
	c.writer.WriteArrayHead(len(keys))
	for _, key := range keys {
		c.writer.WriteBulkString(key)
	}
}

func randomkeyCommand(c *Client, _ []resp.RESP) {
	key, ok := c.db.RandomKey()
	if !ok {
		c.writer.WriteNull()
		return
	}
	c.writer.WriteBulkString(key)
}

// moveKey transfers key with its expire from src to dst, replacing
// whatever dst held under that name.
func (s *Server) moveKey(src *DB, key string, dst *DB, dstKey string) {
	value, _ := src.Get(key)
	expireAt := src.GetExpire(key)
	src.delete(key)
	dst.Set(dstKey, value)
	if expireAt >= 0 {
		dst.expire.Put(dstKey, expireAt)
	}
	if _, ok := value.(*list.QuickList); ok {
		s.signalListAsReady(dst, dstKey)
	}
	s.dirty++
}

func renameGeneric(c *Client, args []resp.RESP, nx bool) bool {
	src, dst := args[0].ToString(), args[1].ToString()
	if !c.db.Exists(src) {
		c.writer.WriteError(errNoSuchKey)
		return false
	}
	if src == dst {
		c.writer.WriteError(errSameObject)
		return false
	}
	if nx && c.db.Exists(dst) {
		c.writer.WriteInteger(0)
		return false
	}
	c.server.moveKey(c.db, src, c.db, dst)
	return true
}

func renameCommand(c *Client, args []resp.RESP) {
	if renameGeneric(c, args, false) {
		c.writer.WriteSString("OK")
	}
}

func renamenxCommand(c *Client, args []resp.RESP) {
	if renameGeneric(c, args, true) {
		c.writer.WriteInteger(1)
	}
}

func moveCommand(c *Client, args []resp.RESP) {
	key := args[0].ToString()
	id, err := args[1].ToInt()
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	if id < 0 || id >= len(c.server.dbs) {
		c.writer.WriteError(errDBOutOfRange)
		return
	}
	dst := c.server.dbs[id]
	if dst == c.db {
		c.writer.WriteError(errSameObject)
		return
	}
	if !c.db.Exists(key) || dst.Exists(key) {
		c.writer.WriteInteger(0)
		return
	}
	c.server.moveKey(c.db, key, dst, key)
	c.writer.WriteInteger(1)
}

// expireGeneric sets the deadline of a key. The deadline is propagated as an
// absolute PEXPIREAT so that replaying the AOF later gives the same result.
func expireGeneric(c *Client, args []resp.RESP, unit int64, absolute bool) {
	key := args[0].ToString()
	n, err := args[1].ToInt64()
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	if n > math.MaxInt64/unit || n < math.MinInt64/unit {
		c.writer.WriteError(errInvalidExpire)
		return
	}
	at := n * unit
	now := c.server.nowMs()
	if !absolute {
		if at > 0 && now > math.MaxInt64-at {
			c.writer.WriteError(errInvalidExpire)
			return
		}
		at += now
	}
	if !c.db.Exists(key) {
		c.writer.WriteInteger(0)
		return
	}
	c.db.SetExpire(key, at)
	c.server.dirty++
	if at <= now {
		c.propagateAs([]byte("DEL"), []byte(key))
	} else {
		c.propagateAs([]byte("PEXPIREAT"), []byte(key), strconv.AppendInt(nil, at, 10))
	}
	c.writer.WriteInteger(1)
}

func expireCommand(c *Client, args []resp.RESP) {
	expireGeneric(c, args, 1000, false)
}

func pexpireCommand(c *Client, args []resp.RESP) {
	expireGeneric(c, args, 1, false)
}

func expireatCommand(c *Client, args []resp.RESP) {
	expireGeneric(c, args, 1000, true)
}

func pexpireatCommand(c *Client, args []resp.RESP) {
	expireGeneric(c, args, 1, true)
}

func ttlCommand(c *Client, args []resp.RESP) {
	ms := c.db.TTL(args[0].ToStringUnsafe())
	if ms < 0 {
		c.writer.WriteInteger64(ms)
		return
	}
	c.writer.WriteInteger64((ms + 500) / 1000)
}

func pttlCommand(c *Client, args []resp.RESP) {
	c.writer.WriteInteger64(c.db.TTL(args[0].ToStringUnsafe()))
}

func persistCommand(c *Client, args []resp.RESP) {
	if !c.db.Persist(args[0].ToStringUnsafe()) {
		c.writer.WriteInteger(0)
		return
	}
	c.server.dirty++
	c.writer.WriteInteger(1)
}

func dbsizeCommand(c *Client, _ []resp.RESP) {
	c.writer.WriteInteger(c.db.Len())
}

func flushdbCommand(c *Client, _ []resp.RESP) {
	c.db.Flush()
	c.server.dirty++
	c.writer.WriteSString("OK")
}

func flushallCommand(c *Client, _ []resp.RESP) {
	for _, db := range c.server.dbs {
		db.Flush()
	}
	c.server.dirty++
	c.writer.WriteSString("OK")
}

func selectCommand(c *Client, args []resp.RESP) {
	id, err := args[0].ToInt()
	if err != nil {
		c.writer.WriteError(errInvalidDBIndex)
		return
	}
	if id < 0 || id >= len(c.server.dbs) {
		c.writer.WriteError(errDBOutOfRange)
		return
	}
	c.db = c.server.dbs[id]
	c.writer.WriteSString("OK")
}
