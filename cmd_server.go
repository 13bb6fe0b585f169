package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/xgzlucario/ember/internal/resp"
)

func pingCommand(c *Client, args []resp.RESP) {
	switch len(args) {
	case 0:
		c.writer.WriteSString("PONG")
	case 1:
		c.writer.WriteBulk(args[0])
	default:
		c.writer.WriteError(fmt.Errorf("%w for 'ping' command", errWrongArguments))
	}
}

func echoCommand(c *Client, args []resp.RESP) {
	c.writer.WriteBulk(args[0])
}

func quitCommand(c *Client, _ []resp.RESP) {
	c.writer.WriteSString("OK")
	c.closeAfterReply = true
}

func saveCommand(c *Client, _ []resp.RESP) {
	if err := c.server.save(); err != nil {
		c.server.log.Error().Err(err).Msg("save error")
		c.writer.WriteError(fmt.Errorf("ERR %w", err))
		return
	}
	c.writer.WriteSString("OK")
}

func bgsaveCommand(c *Client, _ []resp.RESP) {
	if err := c.server.save(); err != nil {
		c.server.log.Error().Err(err).Msg("bgsave error")
		c.writer.WriteError(fmt.Errorf("ERR %w", err))
		return
	}
	c.writer.WriteSString("Background saving started")
}

func bgrewriteaofCommand(c *Client, _ []resp.RESP) {
	if err := c.server.rewriteAppendOnlyFile(); err != nil {
		c.server.log.Error().Err(err).Msg("rewrite aof error")
		c.writer.WriteError(fmt.Errorf("ERR %w", err))
		return
	}
	c.writer.WriteSString("Background append only file rewriting started")
}

// SHUTDOWN [NOSAVE|SAVE] flushes the AOF, saves unless asked not to, and
// stops the server without replying. A failed save keeps the server running.
func shutdownCommand(c *Client, args []resp.RESP) {
	save := c.server.aof == nil
	if len(args) > 1 {
		c.writer.WriteError(errSyntax)
		return
	}
	if len(args) == 1 {
		switch strings.ToUpper(args[0].ToStringUnsafe()) {
		case "SAVE":
			save = true
		case "NOSAVE":
			save = false
		default:
			c.writer.WriteError(errSyntax)
			return
		}
	}
	c.server.log.Warn().Str("addr", c.addr).Bool("save", save).Msg("user requested shutdown")
	if err := c.server.prepareShutdown(save); err != nil {
		c.server.log.Error().Err(err).Msg("shutdown aborted")
		c.writer.WriteError(errShutdownSave)
		return
	}
	c.closeAfterReply = true
	c.server.Stop()
}

func lastsaveCommand(c *Client, _ []resp.RESP) {
	c.writer.WriteInteger64(c.server.lastSave)
}

func commandCommand(c *Client, args []resp.RESP) {
	if len(args) > 0 && equalFold(args[0].ToStringUnsafe(), "COUNT") {
		c.writer.WriteInteger(len(cmdMap))
		return
	}
	c.writer.WriteArrayHead(0)
}

func clientCommand(c *Client, args []resp.RESP) {
	sub := strings.ToUpper(args[0].ToStringUnsafe())
	switch {
	case sub == "SETNAME" && len(args) == 2:
		name := args[1].ToString()
		if strings.ContainsAny(name, " \r\n") {
			c.writer.WriteError(errClientName)
			return
		}
		c.name = name
		c.writer.WriteSString("OK")

	case sub == "GETNAME" && len(args) == 1:
		if c.name == "" {
			c.writer.WriteNull()
			return
		}
		c.writer.WriteBulkString(c.name)

	case sub == "ID" && len(args) == 1:
		c.writer.WriteInteger64(c.id)

	case sub == "SETINFO" && len(args) == 3:
		c.writer.WriteSString("OK")

	case sub == "LIST" && len(args) == 1:
		var sb strings.Builder
		for _, cl := range c.server.clients {
			fmt.Fprintf(&sb, "id=%d addr=%s fd=%d name=%s db=%d\n", cl.id, cl.addr, cl.fd, cl.name, cl.db.id)
		}
		c.writer.WriteBulkString(sb.String())

	default:
		c.writer.WriteError(fmt.Errorf("%w '%s'", errUnknownSubcmd, args[0].ToString()))
	}
}

func infoCommand(c *Client, args []resp.RESP) {
	section := "all"
	if len(args) > 0 {
		section = strings.ToLower(args[0].ToString())
	}
	c.writer.WriteBulkString(c.server.info(section))
}

// info renders the INFO sections, "all" and "default" select every one.
func (s *Server) info(section string) string {
	var sb strings.Builder
	all := section == "all" || section == "default" || section == "everything"
	write := func(name string, fn func()) {
		if all || section == name {
			if sb.Len() > 0 {
				sb.WriteString("\r\n")
			}
			fmt.Fprintf(&sb, "# %s\r\n", strings.ToUpper(name[:1])+name[1:])
			fn()
		}
	}
	field := func(k string, v any) {
		fmt.Fprintf(&sb, "%s:%v\r\n", k, v)
	}

	write("server", func() {
		field("ember_version", VERSION)
		field("redis_version", "7.0.0")
		field("os", runtime.GOOS+" "+runtime.GOARCH)
		field("go_version", runtime.Version())
		field("process_id", os.Getpid())
		field("run_id", s.runID)
		field("tcp_port", s.port)
		field("uptime_in_seconds", int64(time.Since(s.startTime).Seconds()))
		field("hz", s.config.Hz)
	})
	write("clients", func() {
		var blocked int
		for _, cl := range s.clients {
			if cl.bstate != nil {
				blocked++
			}
		}
		field("connected_clients", len(s.clients))
		field("maxclients", s.config.MaxClients)
		field("blocked_clients", blocked)
	})
	write("memory", func() {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		field("used_memory", mem.HeapAlloc)
		field("used_memory_human", humanize.IBytes(mem.HeapAlloc))
		field("used_memory_sys", mem.Sys)
		field("used_memory_sys_human", humanize.IBytes(mem.Sys))
	})
	write("persistence", func() {
		field("loading", boolInt(s.loading))
		field("rdb_changes_since_last_save", s.dirty-s.lastSaveDirty)
		field("rdb_last_save_time", s.lastSave)
		field("aof_enabled", boolInt(s.aof != nil))
	})
	write("stats", func() {
		var expired int64
		for _, db := range s.dbs {
			expired += db.expired
		}
		field("total_connections_received", s.stats.connections)
		field("total_commands_processed", s.stats.commands)
		field("rejected_connections", s.stats.rejected)
		field("expired_keys", expired)
	})
	write("keyspace", func() {
		for _, db := range s.dbs {
			if db.Len() == 0 {
				continue
			}
			fmt.Fprintf(&sb, "db%d:keys=%d,expires=%d\r\n", db.id, db.Len(), db.expire.Len())
		}
	})
	return sb.String()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
