package main

import (
	"time"

	"github.com/chen3feng/stl4go"
	"github.com/cockroachdb/swiss"
	"github.com/tidwall/match"
	"github.com/xgzlucario/ember/internal/list"
	"github.com/xgzlucario/ember/internal/set"
	"github.com/xgzlucario/ember/internal/zset"
)

// DB is one numbered keyspace. The expire map only holds keys present in
// dict, with absolute unix milliseconds deadlines.
type DB struct {
	id     int
	dict   *swiss.Map[string, any]
	expire *swiss.Map[string, int64]

	// blockingKeys holds the clients waiting on each key, oldest first.
	blockingKeys map[string]*stl4go.DList[*Client]

	now     func() int64
	expired int64
}

func newDB(id int, now func() int64) *DB {
	return &DB{
		id:           id,
		dict:         swiss.New[string, any](64),
		expire:       swiss.New[string, int64](64),
		blockingKeys: make(map[string]*stl4go.DList[*Client]),
		now:          now,
	}
}

// expireIfNeeded removes key if its deadline has passed.
func (db *DB) expireIfNeeded(key string) bool {
	ts, ok := db.expire.Get(key)
	if !ok || db.now() <= ts {
		return false
	}
	db.delete(key)
	db.expired++
	return true
}

// Get returns the live value of key.
func (db *DB) Get(key string) (any, bool) {
	if db.expireIfNeeded(key) {
		return nil, false
	}
	return db.dict.Get(key)
}

// Set stores value and clears any expire of key.
func (db *DB) Set(key string, value any) {
	db.dict.Put(key, value)
	db.expire.Delete(key)
}

// Update stores value keeping the expire of key.
func (db *DB) Update(key string, value any) {
	db.dict.Put(key, value)
}

func (db *DB) delete(key string) {
	db.dict.Delete(key)
	db.expire.Delete(key)
}

func (db *DB) Delete(key string) bool {
	if _, ok := db.Get(key); !ok {
		return false
	}
	db.delete(key)
	return true
}

func (db *DB) Exists(key string) bool {
	_, ok := db.Get(key)
	return ok
}

// SetExpire sets an absolute deadline in unix ms on an existing key. A
// deadline that already passed deletes the key.
func (db *DB) SetExpire(key string, at int64) bool {
	if !db.Exists(key) {
		return false
	}
	if at <= db.now() {
		db.delete(key)
		return true
	}
	db.expire.Put(key, at)
	return true
}

// Persist removes the expire of key.
func (db *DB) Persist(key string) bool {
	if !db.Exists(key) {
		return false
	}
	if _, ok := db.expire.Get(key); !ok {
		return false
	}
	db.expire.Delete(key)
	return true
}

// GetExpire returns the deadline of key, TTL_FOREVER or KEY_NOT_EXIST.
func (db *DB) GetExpire(key string) int64 {
	if !db.Exists(key) {
		return KEY_NOT_EXIST
	}
	ts, ok := db.expire.Get(key)
	if !ok {
		return TTL_FOREVER
	}
	return ts
}

// TTL returns the remaining milliseconds of key, TTL_FOREVER or KEY_NOT_EXIST.
func (db *DB) TTL(key string) int64 {
	ts := db.GetExpire(key)
	if ts < 0 {
		return ts
	}
	return max(ts-db.now(), 0)
}

// Len counts keys including expired ones not evicted yet.
func (db *DB) Len() int {
	return db.dict.Len()
}

func (db *DB) Flush() {
	db.dict.Clear()
	db.expire.Clear()
}

// RandomKey returns a live key. Map iteration starts at a random position.
func (db *DB) RandomKey() (string, bool) {
	for range 100 {
		var key string
		var found bool
		db.dict.All(func(k string, _ any) bool {
			key, found = k, true
			return false
		})
		if !found {
			return "", false
		}
		if !db.expireIfNeeded(key) {
			return key, true
		}
	}
	return "", false
}

// Keys returns the live keys matching a glob pattern.
func (db *DB) Keys(pattern string) []string {
	now := db.now()
	keys := make([]string, 0)
	db.dict.All(func(key string, _ any) bool {
		if ts, ok := db.expire.Get(key); ok && now > ts {
			return true
		}
		if pattern == "*" || match.Match(key, pattern) {
			keys = append(keys, key)
		}
		return true
	})
	return keys
}

// Scan calls fn for every live entry until fn returns false. expireAt is
// TTL_FOREVER for keys without deadline.
func (db *DB) Scan(fn func(key string, value any, expireAt int64) bool) {
	now := db.now()
	db.dict.All(func(key string, value any) bool {
		expireAt := int64(TTL_FOREVER)
		if ts, ok := db.expire.Get(key); ok {
			if now > ts {
				return true
			}
			expireAt = ts
		}
		return fn(key, value, expireAt)
	})
}

// Restore inserts an entry and reports whether it was kept. Entries whose
// expireAt already passed are skipped.
func (db *DB) Restore(key string, value any, expireAt int64) bool {
	if expireAt >= 0 && expireAt <= db.now() {
		return false
	}
	db.dict.Put(key, value)
	if expireAt >= 0 {
		db.expire.Put(key, expireAt)
	} else {
		db.expire.Delete(key)
	}
	return true
}

// activeExpireCycle samples keys with a deadline and evicts the expired ones.
// It keeps going while more than a quarter of a sample was stale, until the
// deadline passes. Lazy expiration stays the correctness guarantee.
func (db *DB) activeExpireCycle(samples int, deadline time.Time) (evicted int) {
	keys := make([]string, 0, samples)
	for db.expire.Len() > 0 {
		var sampled int
		now := db.now()
		keys = keys[:0]
		db.expire.All(func(key string, ts int64) bool {
			if now > ts {
				keys = append(keys, key)
			}
			sampled++
			return sampled < samples
		})
		for _, key := range keys {
			db.delete(key)
		}
		evicted += len(keys)
		if len(keys)*4 <= sampled || time.Now().After(deadline) {
			break
		}
	}
	db.expired += int64(evicted)
	return
}

// fetch returns the value of key as T. If key does not exist a new empty
// value is returned, and stored as well when setnx is true.
func fetch[T any](db *DB, key string, newf func() T, setnx ...bool) (v T, err error) {
	object, ok := db.Get(key)
	if ok {
		v, ok = object.(T)
		if !ok {
			return v, errWrongType
		}
		return v, nil
	}
	v = newf()
	if len(setnx) > 0 && setnx[0] {
		db.dict.Put(key, v)
	}
	return v, nil
}

func fetchList(db *DB, key string, setnx ...bool) (*list.QuickList, error) {
	return fetch(db, key, list.New, setnx...)
}

func fetchSet(db *DB, key string, setnx ...bool) (*set.Set, error) {
	return fetch(db, key, set.New, setnx...)
}

func fetchZSet(db *DB, key string, setnx ...bool) (*zset.ZSet, error) {
	return fetch(db, key, zset.New, setnx...)
}

// fetchString returns the string value of key.
func fetchString(db *DB, key string) ([]byte, bool, error) {
	object, ok := db.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := object.([]byte)
	if !ok {
		return nil, false, errWrongType
	}
	return b, true, nil
}

// deleteIfEmpty removes key once its container has no elements left.
func (db *DB) deleteIfEmpty(key string, n int) {
	if n == 0 {
		db.delete(key)
	}
}
