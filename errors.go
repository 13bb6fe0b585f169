package main

import (
	"errors"
	"fmt"

	"github.com/xgzlucario/ember/internal/resp"
	"github.com/xgzlucario/ember/internal/zset"
)

var (
	errWrongType       = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")
	errParseInteger    = resp.ErrParseInteger
	errParseFloat      = resp.ErrParseFloat
	errWrongArguments  = errors.New("ERR wrong number of arguments")
	errUnknownCommand  = errors.New("ERR unknown command")
	errUnknownSubcmd   = errors.New("ERR unknown subcommand")
	errClientName      = errors.New("ERR Client names cannot contain spaces, newlines or special characters.")
	errSyntax          = errors.New("ERR syntax error")
	errNoSuchKey       = errors.New("ERR no such key")
	errSameObject      = errors.New("ERR source and destination objects are the same")
	errIndexOutOfRange = errors.New("ERR index out of range")
	errInvalidDBIndex  = errors.New("ERR invalid DB index")
	errDBOutOfRange    = errors.New("ERR DB index is out of range")
	errInvalidExpire   = errors.New("ERR invalid expire time")
	errOverflow        = errors.New("ERR increment or decrement would overflow")
	errNaNOrInf        = errors.New("ERR increment would produce NaN or Infinity")
	errOffsetRange     = errors.New("ERR offset is out of range")
	errStringTooLong   = errors.New("ERR string exceeds maximum allowed size (512MB)")
	errValueRange      = errors.New("ERR value is out of range")
	errNotPositive     = errors.New("ERR value is out of range, must be positive")
	errTimeoutNegative = errors.New("ERR timeout is negative")
	errTimeoutNotFloat = errors.New("ERR timeout is not a float or out of range")
	errQueryBufLimit   = fmt.Errorf("%w: client query buffer limit reached", resp.ErrProtocol)
	errMaxClients      = errors.New("ERR max number of clients reached")
	errMinOrMax        = zset.ErrMinOrMax
	errScoreNaN        = zset.ErrNaN
	errZAddNXXX        = errors.New("ERR XX and NX options at the same time are not compatible")
	errSortScore       = errors.New("ERR One or more scores can't be converted into double")
	errShutdownSave    = errors.New("ERR Errors trying to SHUTDOWN. Check logs.")
	errZAddIncrPair    = errors.New("ERR INCR option supports a single increment-element pair")
)
