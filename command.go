package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/xgzlucario/ember/internal/resp"
)

type cmdFlag uint8

const (
	// cmdWrite commands are propagated to the AOF when they change the dataset.
	cmdWrite cmdFlag = 1 << iota
	cmdReadonly
)

type Command struct {
	// name is lowercase letters command name.
	name string

	// handler receives the arguments after the command name.
	handler func(c *Client, args []resp.RESP)

	// arity counts the command name. N means exactly N arguments,
	// -N means at least N.
	arity int

	flags cmdFlag
}

// cmdTable is the list of all available commands.
var cmdTable = []*Command{
	// keys
	{"del", delCommand, -2, cmdWrite},
	{"exists", existsCommand, -2, cmdReadonly},
	{"type", typeCommand, 2, cmdReadonly},
	{"keys", keysCommand, 2, cmdReadonly},
	{"randomkey", randomkeyCommand, 1, cmdReadonly},
	{"rename", renameCommand, 3, cmdWrite},
	{"renamenx", renamenxCommand, 3, cmdWrite},
	{"move", moveCommand, 3, cmdWrite},
	{"expire", expireCommand, 3, cmdWrite},
	{"pexpire", pexpireCommand, 3, cmdWrite},
	{"expireat", expireatCommand, 3, cmdWrite},
	{"pexpireat", pexpireatCommand, 3, cmdWrite},
	{"ttl", ttlCommand, 2, cmdReadonly},
	{"pttl", pttlCommand, 2, cmdReadonly},
	{"persist", persistCommand, 2, cmdWrite},
	{"dbsize", dbsizeCommand, 1, cmdReadonly},
	{"flushdb", flushdbCommand, 1, cmdWrite},
	{"flushall", flushallCommand, 1, cmdWrite},
	{"select", selectCommand, 2, 0},

	// strings
	{"get", getCommand, 2, cmdReadonly},
	{"set", setCommand, -3, cmdWrite},
	{"setnx", setnxCommand, 3, cmdWrite},
	{"setex", setexCommand, 4, cmdWrite},
	{"psetex", psetexCommand, 4, cmdWrite},
	{"getset", getsetCommand, 3, cmdWrite},
	{"mget", mgetCommand, -2, cmdReadonly},
	{"mset", msetCommand, -3, cmdWrite},
	{"msetnx", msetnxCommand, -3, cmdWrite},
	{"incr", incrCommand, 2, cmdWrite},
	{"decr", decrCommand, 2, cmdWrite},
	{"incrby", incrbyCommand, 3, cmdWrite},
	{"decrby", decrbyCommand, 3, cmdWrite},
	{"incrbyfloat", incrbyfloatCommand, 3, cmdWrite},
	{"append", appendCommand, 3, cmdWrite},
	{"strlen", strlenCommand, 2, cmdReadonly},
	{"getrange", getrangeCommand, 4, cmdReadonly},
	{"setrange", setrangeCommand, 4, cmdWrite},

	// lists
	{"lpush", lpushCommand, -3, cmdWrite},
	{"rpush", rpushCommand, -3, cmdWrite},
	{"lpushx", lpushxCommand, -3, cmdWrite},
	{"rpushx", rpushxCommand, -3, cmdWrite},
	{"llen", llenCommand, 2, cmdReadonly},
	{"lrange", lrangeCommand, 4, cmdReadonly},
	{"ltrim", ltrimCommand, 4, cmdWrite},
	{"lindex", lindexCommand, 3, cmdReadonly},
	{"lset", lsetCommand, 4, cmdWrite},
	{"lrem", lremCommand, 4, cmdWrite},
	{"linsert", linsertCommand, 5, cmdWrite},
	{"lpop", lpopCommand, -2, cmdWrite},
	{"rpop", rpopCommand, -2, cmdWrite},
	{"rpoplpush", rpoplpushCommand, 3, cmdWrite},
	{"blpop", blpopCommand, -3, cmdWrite},
	{"brpop", brpopCommand, -3, cmdWrite},
	{"brpoplpush", brpoplpushCommand, 4, cmdWrite},

	// sets
	{"sadd", saddCommand, -3, cmdWrite},
	{"srem", sremCommand, -3, cmdWrite},
	{"spop", spopCommand, -2, cmdWrite},
	{"smove", smoveCommand, 4, cmdWrite},
	{"scard", scardCommand, 2, cmdReadonly},
	{"sismember", sismemberCommand, 3, cmdReadonly},
	{"smembers", smembersCommand, 2, cmdReadonly},
	{"sinter", sinterCommand, -2, cmdReadonly},
	{"sinterstore", sinterstoreCommand, -3, cmdWrite},
	{"sunion", sunionCommand, -2, cmdReadonly},
	{"sunionstore", sunionstoreCommand, -3, cmdWrite},
	{"sdiff", sdiffCommand, -2, cmdReadonly},
	{"sdiffstore", sdiffstoreCommand, -3, cmdWrite},
	{"srandmember", srandmemberCommand, -2, cmdReadonly},

	// sorted sets
	{"zadd", zaddCommand, -4, cmdWrite},
	{"zrem", zremCommand, -3, cmdWrite},
	{"zincrby", zincrbyCommand, 4, cmdWrite},
	{"zscore", zscoreCommand, 3, cmdReadonly},
	{"zcard", zcardCommand, 2, cmdReadonly},
	{"zcount", zcountCommand, 4, cmdReadonly},
	{"zrank", zrankCommand, 3, cmdReadonly},
	{"zrevrank", zrevrankCommand, 3, cmdReadonly},
	{"zrange", zrangeCommand, -4, cmdReadonly},
	{"zrevrange", zrevrangeCommand, -4, cmdReadonly},
	{"zrangebyscore", zrangebyscoreCommand, -4, cmdReadonly},
	{"zrevrangebyscore", zrevrangebyscoreCommand, -4, cmdReadonly},
	{"zremrangebyscore", zremrangebyscoreCommand, 4, cmdWrite},
	{"zremrangebyrank", zremrangebyrankCommand, 4, cmdWrite},
	{"zpopmin", zpopminCommand, -2, cmdWrite},
	{"zpopmax", zpopmaxCommand, -2, cmdWrite},

	{"sort", sortCommand, -2, cmdWrite},

	// server
	{"ping", pingCommand, -1, 0},
	{"echo", echoCommand, 2, 0},
	{"quit", quitCommand, 1, 0},
	{"info", infoCommand, -1, 0},
	{"save", saveCommand, 1, 0},
	{"bgsave", bgsaveCommand, 1, 0},
	{"bgrewriteaof", bgrewriteaofCommand, 1, 0},
	{"shutdown", shutdownCommand, -1, 0},
	{"lastsave", lastsaveCommand, 1, 0},
	{"client", clientCommand, -2, 0},
	{"command", commandCommand, -1, 0},
}

// cmdMap indexes cmdTable by name. It is filled in init because handlers
// such as COMMAND read it, and cmdTable refers to the handlers.
var cmdMap map[string]*Command

func init() {
	cmdMap = make(map[string]*Command, len(cmdTable))
	for _, cmd := range cmdTable {
		cmdMap[cmd.name] = cmd
	}
}

func lookupCommand(name string) (*Command, error) {
	if cmd, ok := cmdMap[strings.ToLower(name)]; ok {
		return cmd, nil
	}
	return nil, fmt.Errorf("%w '%s'", errUnknownCommand, name)
}

func (cmd *Command) checkArity(n int) bool {
	if cmd.arity >= 0 {
		return n == cmd.arity
	}
	return n >= -cmd.arity
}

// call looks up and executes one command for c. Write commands that changed
// the dataset are propagated, and keys that became ready for blocked clients
// are served afterwards.
func (s *Server) call(c *Client, args []resp.RESP) {
	cmd, err := lookupCommand(args[0].ToStringUnsafe())
	if err != nil {
		c.writer.WriteError(err)
		return
	}
	if !cmd.checkArity(len(args)) {
		c.writer.WriteError(fmt.Errorf("%w for '%s' command", errWrongArguments, cmd.name))
		return
	}

	db := c.db
	dirty := s.dirty
	c.rewrite = nil
	start := time.Now()
	cmd.handler(c, args[1:])
	s.stats.commands++
	if e := s.log.Debug(); e.Enabled() {
		e.Str("name", cmd.name).Int("argc", len(args)).Dur("cost", time.Since(start)).Msg("command")
	}

	if cmd.flags&cmdWrite != 0 && s.dirty != dirty {
		if c.rewrite != nil {
			s.propagate(db, c.rewrite...)
		} else {
			argv := make([][]byte, len(args))
			for i, arg := range args {
				argv[i] = arg
			}
			s.propagate(db, argv...)
		}
	}
	c.rewrite = nil
	s.handleClientsBlockedOnKeys()
}

// propagate appends a command executed against db to the AOF.
func (s *Server) propagate(db *DB, args ...[]byte) {
	if s.aof == nil || s.loading {
		return
	}
	s.aof.Write(db.id, args...)
	if s.config.AppendFsync == FsyncAlways {
		if err := s.aof.Flush(false); err != nil {
			s.log.Error().Err(err).Msg("flush aof buffer error")
		}
	}
}

func equalFold(a, b string) bool {
	return len(a) == len(b) && strings.EqualFold(a, b)
}
