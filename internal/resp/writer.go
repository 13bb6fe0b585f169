package resp

import (
	"math"
	"strconv"

	"github.com/tidwall/redcon"
)

// Writer accumulates encoded replies.
type Writer struct {
	b []byte
}

func NewWriter(size int) *Writer {
	return &Writer{b: make([]byte, 0, size)}
}

func (w *Writer) WriteArrayHead(n int) {
	w.b = redcon.AppendArray(w.b, n)
}

// WriteNullArray writes the nil multi-bulk reply.
func (w *Writer) WriteNullArray() {
	w.b = append(w.b, "*-1\r\n"...)
}

func (w *Writer) WriteBulk(b []byte) {
	w.b = redcon.AppendBulk(w.b, b)
}

func (w *Writer) WriteBulkString(s string) {
	w.b = redcon.AppendBulkString(w.b, s)
}

// WriteSString writes a status reply.
func (w *Writer) WriteSString(s string) {
	w.b = redcon.AppendString(w.b, s)
}

func (w *Writer) WriteError(err error) {
	w.b = redcon.AppendError(w.b, err.Error())
}

func (w *Writer) WriteInteger(n int) {
	w.b = redcon.AppendInt(w.b, int64(n))
}

func (w *Writer) WriteInteger64(n int64) {
	w.b = redcon.AppendInt(w.b, n)
}

// WriteFloat writes f as a bulk string.
func (w *Writer) WriteFloat(f float64) {
	w.b = redcon.AppendBulkString(w.b, FormatFloat(f))
}

// WriteNull writes the nil bulk reply.
func (w *Writer) WriteNull() {
	w.b = redcon.AppendNull(w.b)
}

// WriteCommand encodes args as a multi-bulk request.
func (w *Writer) WriteCommand(args ...[]byte) {
	w.WriteArrayHead(len(args))
	for _, arg := range args {
		w.WriteBulk(arg)
	}
}

func (w *Writer) Bytes() []byte {
	return w.b
}

func (w *Writer) Len() int {
	return len(w.b)
}

func (w *Writer) Reset() {
	w.b = w.b[:0]
}

// FormatFloat formats f the way scores are shown to clients.
func FormatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	if math.Abs(f) < 1e17 && f == math.Trunc(f) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
