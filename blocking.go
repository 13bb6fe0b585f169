package main

import (
	"github.com/chen3feng/stl4go"
	"github.com/xgzlucario/ember/internal/list"
)

// readyKey is a list key that received elements while clients were
// blocked on it.
type readyKey struct {
	db  int
	key string
}

// blockForKeys suspends c until one of bs.keys gets an element or the
// timeout passes. c stops processing its input meanwhile.
func (s *Server) blockForKeys(c *Client, bs *blockState) {
	c.bstate = bs
	for _, key := range bs.keys {
		q, ok := bs.db.blockingKeys[key]
		if !ok {
			q = stl4go.NewDList[*Client]()
			bs.db.blockingKeys[key] = q
		}
		q.PushBack(c)
	}
}

// unblockClient removes every registration of c. Its buffered input is
// processed later by handleClientsBlockedOnKeys.
func (s *Server) unblockClient(c *Client) {
	bs := c.bstate
	if bs == nil {
		return
	}
	for _, key := range bs.keys {
		q, ok := bs.db.blockingKeys[key]
		if !ok {
			continue
		}
		rest := stl4go.NewDList[*Client]()
		q.ForEach(func(w *Client) {
			if w != c {
				rest.PushBack(w)
			}
		})
		if rest.Len() == 0 {
			delete(bs.db.blockingKeys, key)
		} else {
			bs.db.blockingKeys[key] = rest
		}
	}
	c.bstate = nil
	if !c.closed {
		s.unblocked = append(s.unblocked, c)
	}
}

// signalListAsReady marks key as worth serving if clients wait on it.
func (s *Server) signalListAsReady(db *DB, key string) {
	if _, ok := db.blockingKeys[key]; !ok {
		return
	}
	rk := readyKey{db: db.id, key: key}
	if _, ok := s.readySeen[rk]; ok {
		return
	}
	s.readySeen[rk] = struct{}{}
	s.ready = append(s.ready, rk)
}

// handleClientsBlockedOnKeys serves the ready keys, then resumes the input
// of unblocked clients. Serving may make more keys ready, so it loops until
// nothing is left.
func (s *Server) handleClientsBlockedOnKeys() {
	if s.servingBlocked {
		return
	}
	s.servingBlocked = true
	defer func() { s.servingBlocked = false }()

	for len(s.ready) > 0 || len(s.unblocked) > 0 {
		for len(s.ready) > 0 {
			ready := s.ready
			s.ready = nil
			clear(s.readySeen)
			for _, rk := range ready {
				s.serveClientsBlockedOnKey(s.dbs[rk.db], rk.key)
			}
		}

		unblocked := s.unblocked
		s.unblocked = nil
		for _, c := range unblocked {
			if c.closed || c.bstate != nil {
				continue
			}
			s.processInputBuffer(c)
			s.flushClient(c)
		}
	}
}

// serveClientsBlockedOnKey hands one element to each waiter of key, oldest
// first, while the list has elements.
func (s *Server) serveClientsBlockedOnKey(db *DB, key string) {
	for {
		q, ok := db.blockingKeys[key]
		if !ok || q.Len() == 0 {
			return
		}
		value, ok := db.Get(key)
		if !ok {
			return
		}
		ls, ok := value.(*list.QuickList)
		if !ok || ls.Len() == 0 {
			return
		}

		c, _ := q.PopFront()
		bs := c.bstate
		if bs == nil {
			continue
		}

		var data []byte
		if bs.where == listHead {
			data, _ = ls.LPop()
		} else {
			data, _ = ls.RPop()
		}

		if bs.hasTarget {
			dst, err := fetchList(db, bs.target, true)
			if err != nil {
				ls.RPush(data)
				c.writer.WriteError(err)
				s.unblockClient(c)
				continue
			}
			dst.LPush(data)
			c.writer.WriteBulk(data)
			s.propagate(db, []byte("RPOPLPUSH"), []byte(key), []byte(bs.target))
			s.signalListAsReady(db, bs.target)
		} else {
			c.writer.WriteArrayHead(2)
			c.writer.WriteBulkString(key)
			c.writer.WriteBulk(data)
			if bs.where == listHead {
				s.propagate(db, []byte("LPOP"), []byte(key))
			} else {
				s.propagate(db, []byte("RPOP"), []byte(key))
			}
		}
		s.dirty++
		db.deleteIfEmpty(key, ls.Len())
		s.unblockClient(c)
	}
}

// handleBlockedClientsTimeout replies a nil array to waiters whose deadline
// has passed.
func (s *Server) handleBlockedClientsTimeout(now int64) {
	for _, c := range s.clients {
		bs := c.bstate
		if bs == nil || bs.timeout == 0 || bs.timeout > now {
			continue
		}
		c.writer.WriteNullArray()
		s.unblockClient(c)
	}
}
