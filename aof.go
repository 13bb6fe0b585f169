package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tidwall/mmap"
	"github.com/tidwall/redcon"
	"github.com/xgzlucario/ember/internal/list"
	"github.com/xgzlucario/ember/internal/resp"
	"github.com/xgzlucario/ember/internal/set"
	"github.com/xgzlucario/ember/internal/zset"
)

// Aof manages an append-only file system for storing data.
type Aof struct {
	file      *os.File
	buf       *resp.Writer
	fsync     string
	lastFsync time.Time
	// db is the database selected by the last SELECT written.
	db int
}

func NewAof(path string, fsync string) (*Aof, error) {
	fd, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	return &Aof{
		file:      fd,
		buf:       resp.NewWriter(resp.KB),
		fsync:     fsync,
		lastFsync: time.Now(),
		db:        -1,
	}, nil
}

func (aof *Aof) Close() error {
	return aof.file.Close()
}

// Write buffers one command executed against database db.
func (aof *Aof) Write(db int, args ...[]byte) {
	if db != aof.db {
		aof.buf.WriteCommand([]byte("SELECT"), strconv.AppendInt(nil, int64(db), 10))
		aof.db = db
	}
	aof.buf.WriteCommand(args...)
}

// Flush writes the buffer to the file. The file is synced when force is set
// or when the fsync policy asks for it.
func (aof *Aof) Flush(force bool) error {
	if aof.buf.Len() > 0 {
		if _, err := aof.file.Write(aof.buf.Bytes()); err != nil {
			return err
		}
		aof.buf.Reset()
	}
	switch {
	case force, aof.fsync == FsyncAlways:
	case aof.fsync == FsyncEverySec && time.Since(aof.lastFsync) >= time.Second:
	default:
		return nil
	}
	aof.lastFsync = time.Now()
	return aof.file.Sync()
}

// Read calls fn for every command stored in the file. A command cut short
// at the end of the file is dropped and the file truncated before it.
func (aof *Aof) Read(fn func(args []resp.RESP)) (n int, err error) {
	info, err := aof.file.Stat()
	if err != nil {
		return 0, err
	}
	if info.Size() == 0 {
		return 0, nil
	}

	// Read file data by mmap.
	data, err := mmap.MapFile(aof.file, false)
	if err != nil {
		return 0, err
	}
	defer mmap.Close(data)

	// Iterate over the records in the file, applying the function to each.
	reader := resp.NewReader(resp.Options{
		MaxBulkLen:      len(data),
		MaxMultiBulkLen: len(data),
		MaxInlineSize:   len(data),
	})
	reader.Feed(data)
	for {
		args, err := reader.ReadNextCommand()
		if err != nil {
			return n, fmt.Errorf("bad aof format at command %d: %w", n, err)
		}
		if args == nil {
			break
		}
		if len(args) == 0 {
			continue
		}
		fn(args)
		n++
	}

	if rest := reader.Buffered(); rest > 0 {
		return n, aof.file.Truncate(int64(len(data) - rest))
	}
	return n, nil
}

// aofRewriteBatch is the most elements written by one command of a
// rewritten AOF.
const aofRewriteBatch = 64

// rewriteAppendOnlyFile writes the smallest command sequence that rebuilds
// the current dataset aside, then renames it over the AOF. When the AOF is
// enabled it is reopened on the new file, commands buffered for the old one
// are already part of the dataset and are dropped.
func (s *Server) rewriteAppendOnlyFile() (err error) {
	start := time.Now()
	tmp, err := os.CreateTemp(s.config.Dir, "temp-rewriteaof-*.aof")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := resp.NewWriter(64 * resp.KB)
	flush := func(force bool) error {
		if w.Len() == 0 || !force && w.Len() < 64*resp.KB {
			return nil
		}
		_, err := tmp.Write(w.Bytes())
		w.Reset()
		return err
	}
	var keys int
	for _, db := range s.dbs {
		if db.Len() == 0 {
			continue
		}
		w.WriteCommand([]byte("SELECT"), strconv.AppendInt(nil, int64(db.id), 10))
		db.Scan(func(key string, value any, expireAt int64) bool {
			rewriteObject(w, []byte(key), value)
			if expireAt >= 0 {
				w.WriteCommand([]byte("PEXPIREAT"), []byte(key), strconv.AppendInt(nil, expireAt, 10))
			}
			keys++
			err = flush(false)
			return err == nil
		})
		if err != nil {
			return err
		}
	}
	if err = flush(true); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}

	path := s.config.aofPath()
	if s.aof != nil {
		if err = s.aof.Flush(false); err != nil {
			return err
		}
		s.aof.Close()
	}
	renameErr := os.Rename(tmp.Name(), path)
	if s.aof != nil {
		// reopened on whichever file is now at path
		if s.aof, err = NewAof(path, s.config.AppendFsync); err != nil {
			return err
		}
	}
	if renameErr != nil {
		return renameErr
	}
	s.log.Info().Str("path", path).Int("keys", keys).Dur("cost", time.Since(start)).Msg("aof rewritten")
	return nil
}

// rewriteObject writes the commands that recreate value at key.
func rewriteObject(w *resp.Writer, key []byte, value any) {
	batch := make([][]byte, 0, 2+2*aofRewriteBatch)
	emit := func(name string) {
		if len(batch) > 2 {
			batch[0] = []byte(name)
			w.WriteCommand(batch...)
		}
		batch = append(batch[:0], nil, key)
	}
	batch = append(batch, nil, key)

	switch v := value.(type) {
	case []byte:
		w.WriteCommand([]byte("SET"), key, v)
	case *list.QuickList:
		v.Range(0, -1, func(data []byte) {
			if batch = append(batch, data); len(batch) == 2+aofRewriteBatch {
				emit("RPUSH")
			}
		})
		emit("RPUSH")
	case *set.Set:
		v.Scan(func(member string) {
			if batch = append(batch, []byte(member)); len(batch) == 2+aofRewriteBatch {
				emit("SADD")
			}
		})
		emit("SADD")
	case *zset.ZSet:
		v.Scan(func(member string, score float64) bool {
			batch = append(batch, strconv.AppendFloat(nil, score, 'g', -1, 64), []byte(member))
			if len(batch) == 2+2*aofRewriteBatch {
				emit("ZADD")
			}
			return true
		})
		emit("ZADD")
	}
}

// loadAppendOnlyFile replays the AOF through a fake client. Commands are not
// propagated again while loading.
func (s *Server) loadAppendOnlyFile() (int, error) {
	s.loading = true
	defer func() { s.loading = false }()

	c := newFakeClient(s)
	return s.aof.Read(func(args []resp.RESP) {
		s.call(c, args)
		if reply := c.writer.Bytes(); len(reply) > 0 && reply[0] == resp.ERROR {
			if _, r := redcon.ReadNextRESP(reply); r.Type == redcon.Error {
				s.log.Warn().Str("command", args[0].ToString()).Bytes("reply", r.Data).Msg("aof command failed")
			}
		}
		c.writer.Reset()
	})
}
