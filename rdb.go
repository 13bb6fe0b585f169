package main

import (
	"bufio"
	"bytes"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/hdt3213/rdb/core"
	"github.com/hdt3213/rdb/encoder"
	"github.com/hdt3213/rdb/model"
	"github.com/tidwall/mmap"
	"github.com/xgzlucario/ember/internal/list"
	"github.com/xgzlucario/ember/internal/set"
	"github.com/xgzlucario/ember/internal/zset"
)

// save writes a point-in-time snapshot of every database in the RDB format.
// The file is written aside and renamed so a crash never leaves a partial dump.
func (s *Server) save() (err error) {
	start := time.Now()
	tmp, err := os.CreateTemp(s.config.Dir, "temp-*.rdb")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriterSize(tmp, 64*1024)
	if err = s.writeSnapshot(w); err != nil {
		return err
	}
	if err = w.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), s.config.rdbPath()); err != nil {
		return err
	}

	s.lastSave = time.Now().Unix()
	s.lastSaveDirty = s.dirty
	s.log.Info().Str("path", s.config.rdbPath()).Dur("cost", time.Since(start)).Msg("db saved on disk")
	return nil
}

func (s *Server) writeSnapshot(w *bufio.Writer) error {
	enc := encoder.NewEncoder(w).EnableCompress()
	if err := enc.WriteHeader(); err != nil {
		return err
	}
	auxMap := map[string]string{
		"redis-ver":    "6.0.0",
		"redis-bits":   "64",
		"aof-preamble": "0",
		"ctime":        strconv.FormatInt(time.Now().Unix(), 10),
	}
	for k, v := range auxMap {
		if err := enc.WriteAux(k, v); err != nil {
			return err
		}
	}

	for _, db := range s.dbs {
		var keyCount, ttlCount uint64
		db.Scan(func(_ string, _ any, expireAt int64) bool {
			keyCount++
			if expireAt >= 0 {
				ttlCount++
			}
			return true
		})
		if keyCount == 0 {
			continue
		}
		if err := enc.WriteDBHeader(uint(db.id), keyCount, ttlCount); err != nil {
			return err
		}

		var err error
		db.Scan(func(key string, value any, expireAt int64) bool {
			var opts []interface{}
			if expireAt >= 0 {
				opts = append(opts, encoder.WithTTL(uint64(expireAt)))
			}
			switch v := value.(type) {
			case []byte:
				err = enc.WriteStringObject(key, v, opts...)
			case *list.QuickList:
				vals := make([][]byte, 0, v.Len())
				v.Range(0, -1, func(data []byte) {
					vals = append(vals, data)
				})
				err = enc.WriteListObject(key, vals, opts...)
			case *set.Set:
				vals := make([][]byte, 0, v.Len())
				v.Scan(func(member string) {
					vals = append(vals, []byte(member))
				})
				err = enc.WriteSetObject(key, vals, opts...)
			case *zset.ZSet:
				entries := make([]*model.ZSetEntry, 0, v.Len())
				v.Scan(func(member string, score float64) bool {
					entries = append(entries, &model.ZSetEntry{Member: member, Score: score})
					return true
				})
				err = enc.WriteZSetObject(key, entries, opts...)
			}
			return err == nil
		})
		if err != nil {
			return err
		}
	}
	return enc.WriteEnd()
}

// loadSnapshot restores the databases from an RDB file. Keys already expired
// are skipped. A missing file loads nothing.
func (s *Server) loadSnapshot(path string) (n int, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	if info.Size() == 0 {
		return 0, nil
	}

	// Read file data by mmap.
	data, err := mmap.Open(path, false)
	if err != nil {
		return 0, err
	}
	defer mmap.Close(data)

	dec := core.NewDecoder(bytes.NewReader(data))
	err = dec.Parse(func(o model.RedisObject) bool {
		idx := o.GetDBIndex()
		if idx < 0 || idx >= len(s.dbs) {
			s.log.Warn().Int("db", idx).Str("key", o.GetKey()).Msg("snapshot key in unknown db skipped")
			return true
		}

		var value any
		switch obj := o.(type) {
		case *model.StringObject:
			value = obj.Value
		case *model.ListObject:
			ls := list.New()
			for _, v := range obj.Values {
				ls.RPush(v)
			}
			value = ls
		case *model.SetObject:
			st := set.New()
			for _, m := range obj.Members {
				st.Add(string(m))
			}
			value = st
		case *model.ZSetObject:
			zs := zset.New()
			for _, e := range obj.Entries {
				zs.Set(e.Member, e.Score)
			}
			value = zs
		default:
			s.log.Warn().Str("type", o.GetType()).Str("key", o.GetKey()).Msg("snapshot value type not supported")
			return true
		}

		expireAt := int64(TTL_FOREVER)
		if t := o.GetExpiration(); t != nil {
			expireAt = t.UnixMilli()
		}
		if s.dbs[idx].Restore(o.GetKey(), value, expireAt) {
			n++
		}
		return true
	})
	return n, err
}
