package main

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xgzlucario/ember/internal/list"
	"github.com/xgzlucario/ember/internal/set"
)

func newTestDB() (*DB, *int64) {
	now := int64(1_700_000_000_000)
	return newDB(0, func() int64 { return now }), &now
}

func TestDB(t *testing.T) {
	assert := assert.New(t)

	t.Run("set-get", func(t *testing.T) {
		db, _ := newTestDB()
		db.Set("k", []byte("v"))
		v, ok := db.Get("k")
		assert.True(ok)
		assert.Equal([]byte("v"), v)
		assert.True(db.Exists("k"))
		assert.Equal(1, db.Len())

		assert.True(db.Delete("k"))
		assert.False(db.Delete("k"))
		_, ok = db.Get("k")
		assert.False(ok)
	})

	t.Run("lazy-expire", func(t *testing.T) {
		db, now := newTestDB()
		db.Set("k", []byte("v"))
		assert.True(db.SetExpire("k", *now+1000))
		assert.Equal(int64(1000), db.TTL("k"))

		*now += 1000
		assert.True(db.Exists("k"))
		assert.Equal(int64(0), db.TTL("k"))

		*now++
		_, ok := db.Get("k")
		assert.False(ok)
		assert.Equal(0, db.Len())
		assert.Equal(0, db.expire.Len())
		assert.Equal(int64(1), db.expired)
		assert.Equal(int64(KEY_NOT_EXIST), db.TTL("k"))
	})

	t.Run("set-clears-expire", func(t *testing.T) {
		db, now := newTestDB()
		db.Set("k", []byte("v"))
		db.SetExpire("k", *now+1000)
		db.Update("k", []byte("v2"))
		assert.Equal(int64(1000), db.TTL("k"))
		db.Set("k", []byte("v3"))
		assert.Equal(int64(TTL_FOREVER), db.TTL("k"))
	})

	t.Run("expire-in-past", func(t *testing.T) {
		db, now := newTestDB()
		db.Set("k", []byte("v"))
		assert.True(db.SetExpire("k", *now))
		assert.False(db.Exists("k"))
		assert.False(db.SetExpire("none", *now+1000))
		assert.Equal(0, db.expire.Len())
	})

	t.Run("persist", func(t *testing.T) {
		db, now := newTestDB()
		db.Set("k", []byte("v"))
		assert.False(db.Persist("k"))
		db.SetExpire("k", *now+1000)
		assert.True(db.Persist("k"))
		assert.Equal(int64(TTL_FOREVER), db.GetExpire("k"))
		assert.False(db.Persist("none"))
	})

	t.Run("keys", func(t *testing.T) {
		db, now := newTestDB()
		for i := range 10 {
			db.Set("key:"+strconv.Itoa(i), []byte("v"))
		}
		db.Set("other", []byte("v"))
		db.SetExpire("key:0", *now+1)
		assert.Len(db.Keys("*"), 11)
		assert.Len(db.Keys("key:*"), 10)
		assert.Len(db.Keys("key:?"), 10)
		assert.Equal([]string{"other"}, db.Keys("o?her"))

		*now += 2
		assert.Len(db.Keys("key:*"), 9)
	})

	t.Run("random-key", func(t *testing.T) {
		db, now := newTestDB()
		_, ok := db.RandomKey()
		assert.False(ok)

		db.Set("dead", []byte("v"))
		db.SetExpire("dead", *now+1)
		db.Set("live", []byte("v"))
		*now += 2
		for range 10 {
			key, ok := db.RandomKey()
			assert.True(ok)
			assert.Equal("live", key)
		}
	})

	t.Run("scan-restore", func(t *testing.T) {
		db, now := newTestDB()
		assert.True(db.Restore("forever", []byte("v"), TTL_FOREVER))
		assert.True(db.Restore("ttl", []byte("v"), *now+1000))
		assert.False(db.Restore("dead", []byte("v"), *now-1))
		assert.Equal(2, db.Len())

		res := make(map[string]int64)
		db.Scan(func(key string, _ any, expireAt int64) bool {
			res[key] = expireAt
			return true
		})
		assert.Equal(map[string]int64{
			"forever": TTL_FOREVER,
			"ttl":     *now + 1000,
		}, res)

		var n int
		db.Scan(func(string, any, int64) bool {
			n++
			return false
		})
		assert.Equal(1, n)
	})

	t.Run("active-expire", func(t *testing.T) {
		db, now := newTestDB()
		for i := range 1000 {
			key := strconv.Itoa(i)
			db.Set(key, []byte("v"))
			if i%2 == 0 {
				db.SetExpire(key, *now+10)
			}
		}
		*now += 20
		evicted := db.activeExpireCycle(20, time.Now().Add(time.Second))
		assert.Equal(500, evicted)
		assert.Equal(500, db.Len())
		assert.Equal(0, db.expire.Len())
		assert.Equal(int64(500), db.expired)
	})

	t.Run("fetch", func(t *testing.T) {
		db, _ := newTestDB()
		ls, err := fetchList(db, "ls")
		assert.Nil(err)
		assert.Equal(0, ls.Len())
		assert.False(db.Exists("ls"))

		ls, err = fetchList(db, "ls", true)
		assert.Nil(err)
		ls.RPush([]byte("a"))
		object, _ := db.Get("ls")
		assert.IsType(&list.QuickList{}, object)

		_, err = fetchSet(db, "ls")
		assert.ErrorIs(err, errWrongType)
		_, err = fetchZSet(db, "ls")
		assert.ErrorIs(err, errWrongType)
		_, _, err = fetchString(db, "ls")
		assert.ErrorIs(err, errWrongType)

		st, _ := fetchSet(db, "st", true)
		st.Add("m")
		assert.Equal(TypeSet, getObjectType(&set.Set{}))
		db.deleteIfEmpty("st", st.Len())
		assert.True(db.Exists("st"))
		db.deleteIfEmpty("st", 0)
		assert.False(db.Exists("st"))
	})

	t.Run("flush", func(t *testing.T) {
		db, now := newTestDB()
		db.Set("a", []byte("v"))
		db.Set("b", []byte("v"))
		db.SetExpire("b", *now+100)
		db.Flush()
		assert.Equal(0, db.Len())
		assert.Equal(0, db.expire.Len())
	})
}
