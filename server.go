package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pborman/uuid"
	"github.com/rs/zerolog"
	"github.com/xgzlucario/ember/internal/net"
)

const VERSION = "1.0.0"

type serverStats struct {
	connections int64
	rejected    int64
	commands    int64
}

// Server owns every keyspace and every connection. All of its state is
// touched only from the event loop goroutine, except Stop.
type Server struct {
	config *Config
	log    zerolog.Logger
	clock  func() time.Time

	fd           int
	port         int
	loop         *AeLoop
	clients      map[int]*Client
	nextClientID int64
	readBuf      []byte

	dbs     []*DB
	aof     *Aof
	loading bool

	// stopping is set once SHUTDOWN persisted the dataset.
	stopping bool

	// blocking pops, see blocking.go
	ready          []readyKey
	readySeen      map[readyKey]struct{}
	unblocked      []*Client
	servingBlocked bool

	runID         string
	startTime     time.Time
	dirty         int64
	lastSave      int64
	lastSaveDirty int64
	stats         serverStats
}

// NewServer creates a server with empty keyspaces. Nothing is loaded and no
// socket is opened until Load and Listen are called.
func NewServer(config *Config, log zerolog.Logger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		config:    config,
		log:       log,
		clock:     time.Now,
		fd:        -1,
		clients:   make(map[int]*Client),
		readBuf:   make([]byte, DEFAULT_IO_BUF),
		readySeen: make(map[readyKey]struct{}),
		runID:     strings.ReplaceAll(uuid.New(), "-", ""),
		startTime: time.Now(),
	}
	s.lastSave = s.startTime.Unix()
	s.dbs = make([]*DB, config.Databases)
	for i := range s.dbs {
		s.dbs[i] = newDB(i, s.nowMs)
	}
	if config.AppendOnly {
		aof, err := NewAof(config.aofPath(), config.AppendFsync)
		if err != nil {
			return nil, fmt.Errorf("open appendonly file: %w", err)
		}
		s.aof = aof
	}
	return s, nil
}

func (s *Server) nowMs() int64 {
	return s.clock().UnixMilli()
}

// Load restores the keyspace from the AOF when appendonly is enabled, or
// from the snapshot file otherwise.
func (s *Server) Load() error {
	start := time.Now()
	if s.aof != nil {
		n, err := s.loadAppendOnlyFile()
		if err != nil {
			return err
		}
		s.log.Info().Int("commands", n).Dur("cost", time.Since(start)).Msg("aof loaded")
		return nil
	}
	n, err := s.loadSnapshot(s.config.rdbPath())
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Info().Int("keys", n).Dur("cost", time.Since(start)).Msg("snapshot loaded")
	}
	return nil
}

// Listen opens the listening socket and registers the server events.
func (s *Server) Listen() (err error) {
	s.loop, err = AeLoopCreate(s.log)
	if err != nil {
		return err
	}
	s.fd, err = net.TcpServer(s.config.Bind, s.config.Port)
	if err != nil {
		s.loop.Close()
		return err
	}
	s.port, err = net.LocalPort(s.fd)
	if err != nil {
		return err
	}
	if err = s.loop.AddFileEvent(s.fd, AE_READABLE, s.acceptHandler, nil); err != nil {
		return err
	}
	s.loop.AddTimeEvent(AE_NORMAL, int64(1000/s.config.Hz), s.serverCron, nil)
	return nil
}

// Port returns the port the server listens on.
func (s *Server) Port() int {
	return s.port
}

// Serve runs the event loop until Stop is called, then shuts down.
func (s *Server) Serve() {
	s.log.Info().
		Str("version", VERSION).
		Str("bind", s.config.Bind).
		Int("port", s.port).
		Int("databases", len(s.dbs)).
		Str("maxbulk", humanize.IBytes(uint64(s.config.ProtoMaxBulkLen))).
		Msg("ready to accept connections")
	s.loop.AeMain()
	s.shutdown()
}

// Stop asks the event loop to exit. Safe to call from any goroutine.
func (s *Server) Stop() {
	if s.loop != nil {
		s.loop.Stop()
	}
}

// prepareShutdown persists the dataset before the loop exits: the AOF is
// flushed and synced, and a snapshot is written when save is set.
func (s *Server) prepareShutdown(save bool) error {
	if s.aof != nil {
		if err := s.aof.Flush(true); err != nil {
			return err
		}
	}
	if save {
		if err := s.save(); err != nil {
			return err
		}
	}
	s.stopping = true
	return nil
}

func (s *Server) shutdown() {
	if !s.stopping {
		if err := s.prepareShutdown(s.config.SaveOnShutdown); err != nil {
			s.log.Error().Err(err).Msg("persist on shutdown failed")
		}
	}
	if s.aof != nil {
		s.aof.Close()
	}
	for _, c := range s.clients {
		s.freeClient(c, "shutdown")
	}
	s.loop.RemoveFileEvent(s.fd, AE_READABLE)
	net.Close(s.fd)
	s.loop.Close()
	s.log.Info().Msg("server stopped")
}

// acceptHandler is the main file event of aeloop.
func (s *Server) acceptHandler(loop *AeLoop, fd int, _ interface{}) {
	for {
		cfd, addr, err := net.Accept(fd)
		if err != nil {
			if !net.WouldBlock(err) {
				s.log.Error().Err(err).Msg("accept error")
			}
			return
		}
		if len(s.clients) >= s.config.MaxClients {
			net.Write(cfd, []byte("-"+errMaxClients.Error()+"\r\n"))
			net.Close(cfd)
			s.stats.rejected++
			s.log.Warn().Str("addr", addr).Msg("max number of clients reached")
			continue
		}
		c := newClient(s, cfd, addr)
		if err = loop.AddFileEvent(cfd, AE_READABLE, s.readQueryFromClient, c); err != nil {
			net.Close(cfd)
			continue
		}
		s.clients[cfd] = c
		s.stats.connections++
		s.log.Debug().Int("fd", cfd).Str("addr", addr).Msg("conn_open")
	}
}

func (s *Server) readQueryFromClient(_ *AeLoop, fd int, extra interface{}) {
	c := extra.(*Client)
	n, err := net.Read(fd, s.readBuf)
	if err != nil {
		if net.WouldBlock(err) {
			return
		}
		s.freeClient(c, err.Error())
		return
	}
	if n == 0 {
		s.freeClient(c, "closed by peer")
		return
	}
	if s.feedClient(c, s.readBuf[:n]) {
		s.processInputBuffer(c)
	}
	s.flushClient(c)
}

// feedClient buffers input for c. Input is not parsed while c is blocked,
// so a blocked client holding more than one maximal command is closed.
func (s *Server) feedClient(c *Client, b []byte) bool {
	c.reader.Feed(b)
	if c.bstate == nil || c.reader.Buffered() <= s.config.maxQueryBuffer() {
		return true
	}
	s.log.Warn().Int("fd", c.fd).Str("addr", c.addr).Int("buffered", c.reader.Buffered()).Msg("query_buffer_limit")
	s.unblockClient(c)
	c.reader.Reset()
	c.writer.WriteError(errQueryBufLimit)
	c.closeAfterReply = true
	return false
}

// processInputBuffer executes every complete command buffered for c, in
// order, until the input runs out or c stops accepting commands.
func (s *Server) processInputBuffer(c *Client) {
	for !c.closed && !c.closeAfterReply && c.bstate == nil {
		args, err := c.reader.ReadNextCommand()
		if err != nil {
			s.log.Warn().Err(err).Int("fd", c.fd).Str("addr", c.addr).Msg("protocol_error")
			c.writer.WriteError(err)
			c.closeAfterReply = true
			c.reader.Reset()
			return
		}
		if args == nil {
			return
		}
		if len(args) == 0 {
			continue
		}
		s.call(c, args)
	}
}

// flushClient writes as much pending output as the socket accepts. The
// rest is sent when the fd becomes writable.
func (s *Server) flushClient(c *Client) {
	if c.fake() || c.closed {
		return
	}
	for c.pending() > 0 {
		n, err := net.Write(c.fd, c.writer.Bytes()[c.sent:])
		if err != nil {
			if net.WouldBlock(err) {
				s.loop.AddFileEvent(c.fd, AE_WRITABLE, s.sendReplyToClient, c)
				return
			}
			s.freeClient(c, err.Error())
			return
		}
		c.sent += n
	}
	c.writer.Reset()
	c.sent = 0
	s.loop.RemoveFileEvent(c.fd, AE_WRITABLE)
	if c.closeAfterReply {
		s.freeClient(c, "close after reply")
	}
}

func (s *Server) sendReplyToClient(_ *AeLoop, _ int, extra interface{}) {
	s.flushClient(extra.(*Client))
}

func (s *Server) freeClient(c *Client, reason string) {
	if c.closed {
		return
	}
	c.closed = true
	if c.bstate != nil {
		s.unblockClient(c)
	}
	if c.fake() {
		return
	}
	delete(s.clients, c.fd)
	s.loop.RemoveFileEvent(c.fd, AE_READABLE)
	s.loop.RemoveFileEvent(c.fd, AE_WRITABLE)
	net.Close(c.fd)
	s.log.Debug().Int("fd", c.fd).Str("addr", c.addr).Str("reason", reason).Msg("conn_close")
}

// serverCron runs hz times per second.
func (s *Server) serverCron(_ *AeLoop, _ int, _ interface{}) {
	s.handleBlockedClientsTimeout(s.nowMs())

	budget := time.Second / time.Duration(s.config.Hz) / 4
	deadline := time.Now().Add(budget)
	for _, db := range s.dbs {
		if n := db.activeExpireCycle(s.config.ActiveExpireSamples, deadline); n > 0 {
			s.log.Trace().Int("db", db.id).Int("evicted", n).Msg("active_expire")
		}
	}

	if s.aof != nil {
		if err := s.aof.Flush(false); err != nil {
			s.log.Error().Err(err).Msg("flush aof buffer error")
		}
	}
	s.handleClientsBlockedOnKeys()
}
