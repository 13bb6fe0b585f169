package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xgzlucario/ember/internal/resp"
)

const maxStringSize = 512 * resp.MB

var (
	KEEP_TTL = "KEEPTTL"
	EX       = "EX"
	PX       = "PX"
	EXAT     = "EXAT"
	PXAT     = "PXAT"
	NX       = "NX"
	XX       = "XX"
	GET      = "GET"
)

func getCommand(c *Client, args []resp.RESP) {
	value, ok, err := fetchString(c.db, args[0].ToStringUnsafe())
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	if !ok {
		c.writer.WriteNull()
		return
	}
	c.writer.WriteBulk(value)
}

type setOptions struct {
	nx, xx, keepTTL, get bool
	// expireAt is an absolute unix ms deadline, 0 when not given.
	expireAt int64
}

func parseSetOptions(c *Client, extra []resp.RESP) (opt setOptions, err error) {
	for len(extra) > 0 {
		flag := strings.ToUpper(extra[0].ToStringUnsafe())
		switch flag {
		case NX:
			opt.nx = true
		case XX:
			opt.xx = true
		case KEEP_TTL:
			opt.keepTTL = true
		case GET:
			opt.get = true
		case EX, PX, EXAT, PXAT:
			if len(extra) < 2 || opt.expireAt != 0 {
				return opt, errSyntax
			}
			n, err := extra[1].ToInt64()
			if err != nil {
				return opt, err
			}
			if n <= 0 || n > math.MaxInt64/1000-c.server.nowMs() {
				return opt, fmt.Errorf("%w in 'set' command", errInvalidExpire)
			}
			switch flag {
			case EX:
				opt.expireAt = c.server.nowMs() + n*1000
			case PX:
				opt.expireAt = c.server.nowMs() + n
			case EXAT:
				opt.expireAt = n * 1000
			case PXAT:
				opt.expireAt = n
			}
			extra = extra[1:]
		default:
			return opt, errSyntax
		}
		extra = extra[1:]
	}
	if opt.nx && opt.xx || opt.keepTTL && opt.expireAt != 0 {
		return opt, errSyntax
	}
	return opt, nil
}

// setGeneric stores value under key and rewrites the command with an
// absolute deadline.
func setGeneric(c *Client, key string, value []byte, expireAt int64, keepTTL bool) {
	if keepTTL {
		c.db.Update(key, value)
	} else {
		c.db.Set(key, value)
	}
	c.server.dirty++

	rewrite := [][]byte{[]byte("SET"), []byte(key), value}
	switch {
	case expireAt != 0:
		c.db.SetExpire(key, expireAt)
		rewrite = append(rewrite, []byte(PXAT), strconv.AppendInt(nil, expireAt, 10))
	case keepTTL:
		rewrite = append(rewrite, []byte(KEEP_TTL))
	}
	c.propagateAs(rewrite...)
}

func setCommand(c *Client, args []resp.RESP) {
	key := args[0].ToString()
	opt, err := parseSetOptions(c, args[2:])
	if err != nil {
		c.writer.WriteError(err)
		return
	}

	var old []byte
	var found bool
	if opt.get {
		old, found, err = fetchString(c.db, key)
		if err != nil {
			c.writer.WriteError(err)
			return
		}
	}
	reply := func() {
		switch {
		case !opt.get:
			c.writer.WriteSString("OK")
		case found:
			c.writer.WriteBulk(old)
		default:
			c.writer.WriteNull()
		}
	}

	exists := c.db.Exists(key)
	if opt.nx && exists || opt.xx && !exists {
		if opt.get {
			reply()
		} else {
			c.writer.WriteNull()
		}
		return
	}
	setGeneric(c, key, args[1].Clone(), opt.expireAt, opt.keepTTL)
	reply()
}

func setnxCommand(c *Client, args []resp.RESP) {
	key := args[0].ToString()
	if c.db.Exists(key) {
		c.writer.WriteInteger(0)
		return
	}
	c.db.Set(key, args[1].Clone())
	c.server.dirty++
	c.writer.WriteInteger(1)
}

func setexGeneric(c *Client, args []resp.RESP, unit int64, name string) {
	key := args[0].ToString()
	n, err := args[1].ToInt64()
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	if n <= 0 || n > math.MaxInt64/unit {
		c.writer.WriteError(fmt.Errorf("%w in '%s' command", errInvalidExpire, name))
		return
	}
	setGeneric(c, key, args[2].Clone(), c.server.nowMs()+n*unit, false)
	c.writer.WriteSString("OK")
}

func setexCommand(c *Client, args []resp.RESP) {
	setexGeneric(c, args, 1000, "setex")
}

func psetexCommand(c *Client, args []resp.RESP) {
	setexGeneric(c, args, 1, "psetex")
}

func getsetCommand(c *Client, args []resp.RESP) {
	key := args[0].ToString()
	old, found, err := fetchString(c.db, key)
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	c.db.Set(key, args[1].Clone())
	c.server.dirty++
	if found {
		c.writer.WriteBulk(old)
	} else {
		c.writer.WriteNull()
	}
}

func mgetCommand(c *Client, args []resp.RESP) {
	c.writer.WriteArrayHead(len(args))
	for _, arg := range args {
		object, ok := c.db.Get(arg.ToStringUnsafe())
		if b, isString := object.([]byte); ok && isString {
			c.writer.WriteBulk(b)
		} else {
			c.writer.WriteNull()
		}
	}
}

func msetGeneric(c *Client, args []resp.RESP, nx bool, name string) bool {
	if len(args)%2 != 0 {
		c.writer.WriteError(fmt.Errorf("%w for '%s' command", errWrongArguments, name))
		return false
	}
	if nx {
		for i := 0; i < len(args); i += 2 {
			if c.db.Exists(args[i].ToStringUnsafe()) {
				c.writer.WriteInteger(0)
				return false
			}
		}
	}
	for i := 0; i < len(args); i += 2 {
		c.db.Set(args[i].ToString(), args[i+1].Clone())
	}
	c.server.dirty += int64(len(args) / 2)
	return true
}

func msetCommand(c *Client, args []resp.RESP) {
	if msetGeneric(c, args, false, "mset") {
		c.writer.WriteSString("OK")
	}
}

func msetnxCommand(c *Client, args []resp.RESP) {
	if msetGeneric(c, args, true, "msetnx") {
		c.writer.WriteInteger(1)
	}
}

func incrDecr(c *Client, key string, delta int64) {
	value, found, err := fetchString(c.db, key)
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	var n int64
	if found {
		n, err = resp.RESP(value).ToInt64()
		if err != nil {
			c.writer.WriteError(err)
			return
		}
	}
	if delta > 0 && n > math.MaxInt64-delta || delta < 0 && n < math.MinInt64-delta {
		c.writer.WriteError(errOverflow)
		return
	}
	n += delta
	c.db.Update(key, strconv.AppendInt(nil, n, 10))
	c.server.dirty++
	c.writer.WriteInteger64(n)
}

func incrCommand(c *Client, args []resp.RESP) {
	incrDecr(c, args[0].ToString(), 1)
}

func decrCommand(c *Client, args []resp.RESP) {
	incrDecr(c, args[0].ToString(), -1)
}

func incrbyCommand(c *Client, args []resp.RESP) {
	delta, err := args[1].ToInt64()
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	incrDecr(c, args[0].ToString(), delta)
}

func decrbyCommand(c *Client, args []resp.RESP) {
	delta, err := args[1].ToInt64()
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	if delta == math.MinInt64 {
		c.writer.WriteError(errOverflow)
		return
	}
	incrDecr(c, args[0].ToString(), -delta)
}

// incrbyfloatCommand is propagated as a SET of the result, float formatting
// may differ between replays otherwise.
func incrbyfloatCommand(c *Client, args []resp.RESP) {
	key := args[0].ToString()
	delta, err := args[1].ToFloat()
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	value, found, err := fetchString(c.db, key)
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	var f float64
	if found {
		f, err = resp.RESP(value).ToFloat()
		if err != nil {
			c.writer.WriteError(err)
			return
		}
	}
	f += delta
	if math.IsNaN(f) || math.IsInf(f, 0) {
		c.writer.WriteError(errNaNOrInf)
		return
	}
	result := strconv.AppendFloat(nil, f, 'f', -1, 64)
	c.db.Update(key, result)
	c.server.dirty++
	c.propagateAs([]byte("SET"), []byte(key), result, []byte(KEEP_TTL))
	c.writer.WriteBulk(result)
}

func appendCommand(c *Client, args []resp.RESP) {
	key := args[0].ToString()
	value, _, err := fetchString(c.db, key)
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	if len(value)+len(args[1]) > maxStringSize {
		c.writer.WriteError(errStringTooLong)
		return
	}
	value = append(value, args[1]...)
	c.db.Update(key, value)
	c.server.dirty++
	c.writer.WriteInteger(len(value))
}

func strlenCommand(c *Client, args []resp.RESP) {
	value, _, err := fetchString(c.db, args[0].ToStringUnsafe())
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	c.writer.WriteInteger(len(value))
}

func getrangeCommand(c *Client, args []resp.RESP) {
	start, err := args[1].ToInt()
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	end, err := args[2].ToInt()
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	value, _, err := fetchString(c.db, args[0].ToStringUnsafe())
	if err != nil {
		c.writer.WriteError(err)
		return
	}

	n := len(value)
	if start < 0 {
		start = max(n+start, 0)
	}
	if end < 0 {
		end = max(n+end, 0)
	}
	end = min(end, n-1)
	if n == 0 || start > end {
		c.writer.WriteBulkString("")
		return
	}
	c.writer.WriteBulk(value[start : end+1])
}

func setrangeCommand(c *Client, args []resp.RESP) {
	key := args[0].ToString()
	offset, err := args[1].ToInt()
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	if offset < 0 {
		c.writer.WriteError(errOffsetRange)
		return
	}
	data := args[2]
	value, found, err := fetchString(c.db, key)
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	if len(data) == 0 {
		c.writer.WriteInteger(len(value))
		return
	}
	if offset > maxStringSize-len(data) {
		c.writer.WriteError(errStringTooLong)
		return
	}
	if need := offset + len(data); need > len(value) {
		value = append(value, make([]byte, need-len(value))...)
	}
	copy(value[offset:], data)
	if found {
		c.db.Update(key, value)
	} else {
		c.db.Set(key, value)
	}
	c.server.dirty++
	c.writer.WriteInteger(len(value))
}
