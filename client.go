package main

import (
	"github.com/xgzlucario/ember/internal/resp"
)

const (
	DEFAULT_IO_BUF = 16 * resp.KB
)

// listEnd selects the side of a list a pop or push works on.
type listEnd int

const (
	listHead listEnd = iota
	listTail
)

// blockState describes a pending blocking pop.
type blockState struct {
	db   *DB
	keys []string
	// timeout is the absolute unix ms deadline, 0 waits forever.
	timeout int64
	where   listEnd
	// target is the destination list of BRPOPLPUSH.
	target    string
	hasTarget bool
}

type Client struct {
	id     int64
	fd     int
	addr   string
	name   string
	db     *DB
	server *Server

	reader *resp.Reader
	writer *resp.Writer
	// sent is the number of bytes of writer already written to fd.
	sent int

	closeAfterReply bool
	closed          bool
	bstate          *blockState

	// rewrite replaces the executed command in the AOF when set.
	rewrite [][]byte
}

func newClient(s *Server, fd int, addr string) *Client {
	s.nextClientID++
	return &Client{
		id:     s.nextClientID,
		fd:     fd,
		addr:   addr,
		db:     s.dbs[0],
		server: s,
		reader: resp.NewReader(s.config.respOptions()),
		writer: resp.NewWriter(DEFAULT_IO_BUF),
	}
}

// newFakeClient returns a client without connection, used to replay the AOF.
func newFakeClient(s *Server) *Client {
	s.nextClientID++
	return &Client{
		id:     s.nextClientID,
		fd:     -1,
		db:     s.dbs[0],
		server: s,
		reader: resp.NewReader(s.config.respOptions()),
		writer: resp.NewWriter(resp.KB),
	}
}

// fake clients have no connection, replies stay in writer.
func (c *Client) fake() bool {
	return c.fd < 0
}

// propagateAs makes the current command appear as args in the AOF.
func (c *Client) propagateAs(args ...[]byte) {
	c.rewrite = args
}

func (c *Client) pending() int {
	return c.writer.Len() - c.sent
}
