package main

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRdb(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	withDir := func(config *Config) {
		config.Dir = dir
	}

	t.Run("missing-file", func(t *testing.T) {
		s := newTestServer(t, withDir)
		assert.Nil(s.Load())
		assert.Equal(0, s.dbs[0].Len())
	})

	t.Run("save-load", func(t *testing.T) {
		s := newTestServer(t, withDir)
		c := newFakeClient(s)
		do(c, "SET", "str", "hello")
		do(c, "SET", "ttl", "v", "EX", "1000")
		do(c, "SET", "short", "v", "PX", "50")
		do(c, "RPUSH", "list", "a", "b", "c")
		do(c, "SADD", "set", "x", "y")
		do(c, "ZADD", "zset", "1.5", "a", "-2", "b", "3", "c")
		do(c, "SELECT", "3")
		do(c, "SET", "db3", "v")

		before := do(c, "LASTSAVE").(int64)
		assert.Equal("OK", do(c, "SAVE"))
		assert.GreaterOrEqual(do(c, "LASTSAVE").(int64), before)
		assert.Equal(s.dirty, s.lastSaveDirty)

		_, err := os.Stat(s.config.rdbPath())
		assert.Nil(err)
		entries, _ := os.ReadDir(dir)
		assert.Len(entries, 1)

		time.Sleep(100 * time.Millisecond)

		r := newTestServer(t, withDir)
		assert.Nil(r.Load())
		rc := newFakeClient(r)
		assert.Equal("hello", do(rc, "GET", "str"))
		assert.Equal(s.dbs[0].GetExpire("ttl"), r.dbs[0].GetExpire("ttl"))
		assert.Equal(int64(0), do(rc, "EXISTS", "short"))
		assert.Equal(arr("a", "b", "c"), do(rc, "LRANGE", "list", "0", "-1"))
		assert.Equal([]string{"x", "y"}, sorted(do(rc, "SMEMBERS", "set")))
		assert.Equal(arr("b", "-2", "a", "1.5", "c", "3"), do(rc, "ZRANGE", "zset", "0", "-1", "WITHSCORES"))
		assert.Equal(int64(TTL_FOREVER), do(rc, "TTL", "str"))

		do(rc, "SELECT", "3")
		assert.Equal("v", do(rc, "GET", "db3"))

		// "short" expired before loading and is not counted
		n, err := newTestServer(t, withDir).loadSnapshot(s.config.rdbPath())
		assert.Nil(err)
		assert.Equal(6, n)
	})

	t.Run("overwrite", func(t *testing.T) {
		sdir := t.TempDir()
		s := newTestServer(t, func(config *Config) {
			config.Dir = sdir
		})
		assert.Nil(s.save())
		do(newFakeClient(s), "SET", "k", "v")
		assert.Nil(s.save())

		r := newTestServer(t, func(config *Config) {
			config.Dir = sdir
		})
		assert.Nil(r.Load())
		assert.True(r.dbs[0].Exists("k"))
	})

	t.Run("bad-file", func(t *testing.T) {
		bdir := t.TempDir()
		s := newTestServer(t, func(config *Config) {
			config.Dir = bdir
		})
		assert.Nil(os.WriteFile(s.config.rdbPath(), []byte("not a snapshot"), 0644))
		assert.NotNil(s.Load())
	})
}
