package resp

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unsafe"

	"github.com/tidwall/redcon"
)

const (
	STRING  = '+'
	ERROR   = '-'
	INTEGER = ':'
	BULK    = '$'
	ARRAY   = '*'

	KB = 1024
	MB = 1024 * KB
)

var (
	CRLF = []byte("\r\n")

	// ErrProtocol is fatal for the connection that produced it.
	ErrProtocol = errors.New("ERR Protocol error")

	ErrParseInteger = errors.New("ERR value is not an integer or out of range")
	ErrParseFloat   = errors.New("ERR value is not a valid float")
)

// Options limits what a Reader is willing to buffer for a single command.
type Options struct {
	// MaxBulkLen is the largest accepted `$<len>` argument.
	MaxBulkLen int

	// MaxMultiBulkLen is the largest accepted `*<count>` argument count.
	MaxMultiBulkLen int

	// MaxInlineSize is the longest accepted line without a line break.
	// It bounds both inline commands and multi-bulk headers.
	MaxInlineSize int
}

var DefaultOptions = Options{
	MaxBulkLen:      512 * MB,
	MaxMultiBulkLen: 1024 * 1024,
	MaxInlineSize:   64 * KB,
}

// RESP is a single binary-safe command argument.
type RESP []byte

func (r RESP) ToString() string {
	return string(r)
}

// ToStringUnsafe returns a string sharing memory with r.
// It must not be retained after the reader advances.
func (r RESP) ToStringUnsafe() string {
	return b2s(r)
}

func (r RESP) ToBytes() []byte {
	return r
}

func (r RESP) ToInt() (int, error) {
	n, err := r.ToInt64()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ToInt64 parses r as a base 10 integer. A leading '+' is rejected.
func (r RESP) ToInt64() (int64, error) {
	if len(r) > 0 && r[0] == '+' {
		return 0, ErrParseInteger
	}
	n, err := strconv.ParseInt(b2s(r), 10, 64)
	if err != nil {
		return 0, ErrParseInteger
	}
	return n, nil
}

// ToFloat parses r as a float, rejecting NaN.
func (r RESP) ToFloat() (float64, error) {
	f, err := strconv.ParseFloat(b2s(r), 64)
	if err != nil || math.IsNaN(f) {
		return 0, ErrParseFloat
	}
	return f, nil
}

// Clone returns a copy of r that is safe to store.
func (r RESP) Clone() []byte {
	return bytes.Clone(r)
}

// Reader is an incremental command parser. Bytes are pushed with Feed and
// complete commands are pulled with ReadNextCommand, so a command may arrive
// split across any number of network reads. Framing is checked against
// Options before a command is handed to redcon for parsing.
type Reader struct {
	opts Options
	buf  []byte
	pos  int
	raw  [][]byte
	args []RESP
}

func NewReader(opts Options) *Reader {
	return &Reader{
		opts: opts,
		raw:  make([][]byte, 0, 8),
		args: make([]RESP, 0, 8),
	}
}

// Feed appends b to the pending input. Arguments returned by earlier
// ReadNextCommand calls are invalidated.
func (r *Reader) Feed(b []byte) {
	if r.pos > 0 {
		n := copy(r.buf, r.buf[r.pos:])
		r.buf = r.buf[:n]
		r.pos = 0
	}
	r.buf = append(r.buf, b...)
}

// Buffered returns the number of bytes not consumed yet.
func (r *Reader) Buffered() int {
	return len(r.buf) - r.pos
}

// Reset drops all pending input.
func (r *Reader) Reset() {
	r.buf = r.buf[:0]
	r.pos = 0
}

// ReadNextCommand returns the next complete command. It returns (nil, nil)
// when more input is needed, and an empty non-nil slice for an empty
// multi-bulk (`*0`) which the caller should skip. Returned arguments alias
// the internal buffer and stay valid until the next Feed.
func (r *Reader) ReadNextCommand() ([]RESP, error) {
	b := r.buf[r.pos:]
	if len(b) == 0 {
		return nil, nil
	}
	var n int
	var err error
	if b[0] == ARRAY {
		n, err = r.frameMultiBulk(b)
	} else {
		n, err = r.frameInline(b)
	}
	if err != nil || n == 0 {
		return nil, err
	}
	frame := b[:n]
	r.pos += n

	// redcon reads a leading '$' as a Tile38 frame, split those lines here.
	if frame[0] == BULK {
		return r.splitInline(frame), nil
	}
	complete, raw, _, _, err := redcon.ReadNextCommand(frame, r.raw[:0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProtocol, strings.TrimPrefix(err.Error(), "Protocol error: "))
	}
	if !complete {
		return nil, fmt.Errorf("%w: incomplete frame", ErrProtocol)
	}
	r.raw = raw
	args := r.args[:0]
	for _, arg := range raw {
		args = append(args, RESP(arg[:len(arg):len(arg)]))
	}
	r.args = args
	return args, nil
}

// frameInline returns the length of the first line of b including its line
// break, or 0 when the line is not complete yet.
func (r *Reader) frameInline(b []byte) (int, error) {
	i := bytes.IndexByte(b, '\n')
	if i < 0 {
		if len(b) > r.opts.MaxInlineSize {
			return 0, fmt.Errorf("%w: too big inline request", ErrProtocol)
		}
		return 0, nil
	}
	return i + 1, nil
}

func (r *Reader) splitInline(line []byte) []RESP {
	line = bytes.TrimRight(line, "\r\n")
	args := r.args[:0]
	for _, f := range bytes.Fields(line) {
		args = append(args, RESP(f))
	}
	r.args = args
	return args
}

// frameMultiBulk validates the headers of a multi-bulk command and returns
// its total length, or 0 when more input is needed.
func (r *Reader) frameMultiBulk(b []byte) (int, error) {
	line, ok := r.readLine(b[1:])
	if !ok {
		if len(b) > r.opts.MaxInlineSize {
			return 0, fmt.Errorf("%w: too big mbulk count string", ErrProtocol)
		}
		return 0, nil
	}
	count, err := parseInt(line)
	if err != nil || count < 0 || count > r.opts.MaxMultiBulkLen {
		return 0, fmt.Errorf("%w: invalid multibulk length", ErrProtocol)
	}
	pos := 1 + len(line) + 2

	for range count {
		if pos >= len(b) {
			return 0, nil
		}
		if b[pos] != BULK {
			return 0, fmt.Errorf("%w: expected '$', got '%c'", ErrProtocol, b[pos])
		}
		line, ok := r.readLine(b[pos+1:])
		if !ok {
			if len(b)-pos > r.opts.MaxInlineSize {
				return 0, fmt.Errorf("%w: too big bulk count string", ErrProtocol)
			}
			return 0, nil
		}
		size, err := parseInt(line)
		if err != nil || size < 0 || size > r.opts.MaxBulkLen {
			return 0, fmt.Errorf("%w: invalid bulk length", ErrProtocol)
		}
		pos += 1 + len(line) + 2

		if len(b) < pos+size+2 {
			return 0, nil
		}
		if b[pos+size] != '\r' || b[pos+size+1] != '\n' {
			return 0, fmt.Errorf("%w: bulk not terminated by CRLF", ErrProtocol)
		}
		pos += size + 2
	}
	return pos, nil
}

// readLine returns the bytes before the first CRLF of b.
func (r *Reader) readLine(b []byte) ([]byte, bool) {
	before, _, ok := bytes.Cut(b, CRLF)
	return before, ok
}

// parseInt parses a non-empty decimal header value.
func parseInt(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, ErrParseInteger
	}
	neg := false
	if b[0] == '-' {
		neg = true
		b = b[1:]
		if len(b) == 0 {
			return 0, ErrParseInteger
		}
	}
	var n int
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, ErrParseInteger
		}
		n = n*10 + int(c-'0')
		if n > math.MaxInt32 {
			return 0, ErrParseInteger
		}
	}
	if neg {
		n = -n
	}
	return n, nil
}

func b2s(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}
