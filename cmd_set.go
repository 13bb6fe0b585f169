package main

import (
	"math"

	"github.com/xgzlucario/ember/internal/resp"
	"github.com/xgzlucario/ember/internal/set"
)

func saddCommand(c *Client, args []resp.RESP) {
	st, err := fetchSet(c.db, args[0].ToString(), true)
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	var n int
	for _, arg := range args[1:] {
		if st.Add(arg.ToString()) {
			n++
		}
	}
	c.server.dirty += int64(n)
	c.writer.WriteInteger(n)
}

func sremCommand(c *Client, args []resp.RESP) {
	key := args[0].ToString()
	st, err := fetchSet(c.db, key)
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	var n int
	for _, arg := range args[1:] {
		if st.Remove(arg.ToStringUnsafe()) {
			n++
		}
	}
	if n > 0 {
		c.db.deleteIfEmpty(key, st.Len())
		c.server.dirty += int64(n)
	}
	c.writer.WriteInteger(n)
}

// spopCommand is propagated as SREM of the popped members so that the
// AOF replays the same random choice.
func spopCommand(c *Client, args []resp.RESP) {
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

	st, err := fetchSet(c.db, key)
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	if !withCount && st.Len() == 0 {
		c.writer.WriteNull()
		return
	}

	count = min(count, st.Len())
	rewrite := [][]byte{[]byte("SREM"), []byte(key)}
	if withCount {
		c.writer.WriteArrayHead(count)
	}
	for range count {
		member, _ := st.Pop()
		c.writer.WriteBulkString(member)
		rewrite = append(rewrite, []byte(member))
	}
	if count > 0 {
		c.db.deleteIfEmpty(key, st.Len())
		c.server.dirty += int64(count)
		c.propagateAs(rewrite...)
	}
}

func smoveCommand(c *Client, args []resp.RESP) {
	src, dst := args[0].ToString(), args[1].ToString()
	member := args[2].ToString()
	srcSet, err := fetchSet(c.db, src)
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	if _, err = fetchSet(c.db, dst); err != nil {
		c.writer.WriteError(err)
		return
	}
	if !srcSet.Exist(member) {
		c.writer.WriteInteger(0)
		return
	}
	if src == dst {
		c.writer.WriteInteger(1)
		return
	}
	srcSet.Remove(member)
	c.db.deleteIfEmpty(src, srcSet.Len())
	dstSet, _ := fetchSet(c.db, dst, true)
	dstSet.Add(member)
	c.server.dirty++
	c.writer.WriteInteger(1)
}

func scardCommand(c *Client, args []resp.RESP) {
	st, err := fetchSet(c.db, args[0].ToStringUnsafe())
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	c.writer.WriteInteger(st.Len())
}

func sismemberCommand(c *Client, args []resp.RESP) {
	st, err := fetchSet(c.db, args[0].ToStringUnsafe())
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	if st.Exist(args[1].ToStringUnsafe()) {
		c.writer.WriteInteger(1)
	} else {
		c.writer.WriteInteger(0)
	}
}

func writeSet(c *Client, st *set.Set) {
	c.writer.WriteArrayHead(st.Len())
	st.Scan(func(member string) {
		c.writer.WriteBulkString(member)
	})
}

func smembersCommand(c *Client, args []resp.RESP) {
	st, err := fetchSet(c.db, args[0].ToStringUnsafe())
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	writeSet(c, st)
}

type setOp func(first *set.Set, others ...*set.Set) *set.Set

// setAlgebra combines the sets stored at keys. Missing keys count as empty
// sets. The result is a fresh set.
func setAlgebra(db *DB, keys []resp.RESP, op setOp) (*set.Set, error) {
	sets := make([]*set.Set, len(keys))
	for i, key := range keys {
		st, err := fetchSet(db, key.ToStringUnsafe())
		if err != nil {
			return nil, err
		}
		sets[i] = st
	}
	return op(sets[0], sets[1:]...), nil
}

func setAlgebraCommand(c *Client, keys []resp.RESP, op setOp) {
	res, err := setAlgebra(c.db, keys, op)
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	writeSet(c, res)
}

func setAlgebraStoreCommand(c *Client, args []resp.RESP, op setOp) {
	dst := args[0].ToString()
	res, err := setAlgebra(c.db, args[1:], op)
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	if res.Len() == 0 {
		c.db.Delete(dst)
	} else {
		c.db.Set(dst, res)
	}
	c.server.dirty++
	c.writer.WriteInteger(res.Len())
}

func sinterCommand(c *Client, args []resp.RESP) {
	setAlgebraCommand(c, args, (*set.Set).Inter)
}

func sinterstoreCommand(c *Client, args []resp.RESP) {
	setAlgebraStoreCommand(c, args, (*set.Set).Inter)
}

func sunionCommand(c *Client, args []resp.RESP) {
	setAlgebraCommand(c, args, (*set.Set).Union)
}

func sunionstoreCommand(c *Client, args []resp.RESP) {
	setAlgebraStoreCommand(c, args, (*set.Set).Union)
}

func sdiffCommand(c *Client, args []resp.RESP) {
	setAlgebraCommand(c, args, (*set.Set).Diff)
}

func sdiffstoreCommand(c *Client, args []resp.RESP) {
	setAlgebraStoreCommand(c, args, (*set.Set).Diff)
}

func srandmemberCommand(c *Client, args []resp.RESP) {
	if len(args) > 2 {
		c.writer.WriteError(errSyntax)
		return
	}
	st, err := fetchSet(c.db, args[0].ToStringUnsafe())
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	if len(args) == 1 {
		members := st.RandomMembers(1)
		if len(members) == 0 {
			c.writer.WriteNull()
			return
		}
		c.writer.WriteBulkString(members[0])
		return
	}
	count, err := args[1].ToInt()
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	if count < -math.MaxInt64/2 || count > math.MaxInt64/2 {
		c.writer.WriteError(errValueRange)
		return
	}
	if count < 0 {
		// repeated draws are written as they are made
		if st.Len() == 0 {
			c.writer.WriteArrayHead(0)
			return
		}
		c.writer.WriteArrayHead(-count)
		st.RandomRepeat(-count, func(member string) {
			c.writer.WriteBulkString(member)
		})
		return
	}
	members := st.RandomMembers(count)
	c.writer.WriteArrayHead(len(members))
	for _, member := range members {
		c.writer.WriteBulkString(member)
	}
}
