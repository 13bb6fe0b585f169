package zset

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/swiss"
)

var (
	ErrNaN      = errors.New("ERR resulting score is not a number (NaN)")
	ErrMinOrMax = errors.New("ERR min or max is not a float")
)

// RangeSpec is a score interval. MinEx and MaxEx make the bound exclusive.
type RangeSpec struct {
	Min, Max     float64
	MinEx, MaxEx bool
}

func (r *RangeSpec) gteMin(v float64) bool {
	if r.MinEx {
		return v > r.Min
	}
	return v >= r.Min
}

func (r *RangeSpec) lteMax(v float64) bool {
	if r.MaxEx {
		return v < r.Max
	}
	return v <= r.Max
}

func (r *RangeSpec) empty() bool {
	return r.Min > r.Max || (r.Min == r.Max && (r.MinEx || r.MaxEx))
}

// ParseRange parses ZRANGEBYSCORE style bounds such as "(1", "-inf" or "+inf".
func ParseRange(min, max string) (r RangeSpec, err error) {
	if r.Min, r.MinEx, err = parseBound(min); err != nil {
		return
	}
	r.Max, r.MaxEx, err = parseBound(max)
	return
}

func parseBound(s string) (float64, bool, error) {
	ex := strings.HasPrefix(s, "(")
	if ex {
		s = s[1:]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false, ErrMinOrMax
	}
	return f, ex, nil
}

// ZSet is a sorted set. Members are indexed by a hash map for score lookups
// and by a skiplist ordered by (score, member) for rank and range queries.
// The two structures are always updated together.
type ZSet struct {
	m   *swiss.Map[string, float64]
	zsl *skiplist
}

func New() *ZSet {
	return &ZSet{
		m:   swiss.New[string, float64](8),
		zsl: newSkiplist(),
	}
}

func (z *ZSet) Len() int {
	return z.m.Len()
}

func (z *ZSet) Get(member string) (float64, bool) {
	return z.m.Get(member)
}

// Set inserts member or updates its score. It returns true if member was added.
func (z *ZSet) Set(member string, score float64) bool {
	old, ok := z.m.Get(member)
	if ok {
		if old == score {
			return false
		}
		z.zsl.delete(old, member)
	}
	z.m.Put(member, score)
	z.zsl.insert(score, member)
	return !ok
}

// Incr adds delta to the score of member, creating it with score 0 first.
func (z *ZSet) Incr(member string, delta float64) (float64, error) {
	score, _ := z.m.Get(member)
	score += delta
	if math.IsNaN(score) {
		return 0, ErrNaN
	}
	z.Set(member, score)
	return score, nil
}

func (z *ZSet) Remove(member string) bool {
	score, ok := z.m.Get(member)
	if !ok {
		return false
	}
	z.m.Delete(member)
	z.zsl.delete(score, member)
	return true
}

// Rank returns the 0-based position of member in ascending order, or -1.
func (z *ZSet) Rank(member string) int {
	score, ok := z.m.Get(member)
	if !ok {
		return -1
	}
	return z.zsl.getRank(score, member) - 1
}

// RevRank returns the 0-based position of member in descending order, or -1.
func (z *ZSet) RevRank(member string) int {
	score, ok := z.m.Get(member)
	if !ok {
		return -1
	}
	return z.zsl.length - z.zsl.getRank(score, member)
}

// normRange converts a start/stop pair that may count from the tail into
// a clamped 0-based inclusive range. ok is false if the range is empty.
func (z *ZSet) normRange(start, stop int) (int, int, bool) {
	n := z.zsl.length
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	start = max(start, 0)
	if start > stop || start >= n {
		return 0, 0, false
	}
	return start, min(stop, n-1), true
}

// Range calls fn for members with rank in [start, stop]. Negative indexes count
// from the tail. If reverse, ranks are taken in descending order.
func (z *ZSet) Range(start, stop int, reverse bool, fn func(member string, score float64)) {
	start, stop, ok := z.normRange(start, stop)
	if !ok {
		return
	}
	var x *node
	if reverse {
		x = z.zsl.tail
		if start > 0 {
			x = z.zsl.getByRank(z.zsl.length - start)
		}
	} else {
		x = z.zsl.head.level[0].forward
		if start > 0 {
			x = z.zsl.getByRank(start + 1)
		}
	}
	for n := stop - start + 1; n > 0 && x != nil; n-- {
		fn(x.member, x.score)
		if reverse {
			x = x.backward
		} else {
			x = x.level[0].forward
		}
	}
}

// RangeByScore calls fn for members whose score is within r, skipping the
// first offset matches and stopping after count of them. A negative count
// means no limit.
func (z *ZSet) RangeByScore(r RangeSpec, offset, count int, reverse bool, fn func(member string, score float64)) {
	var x *node
	if reverse {
		x = z.zsl.lastInRange(&r)
	} else {
		x = z.zsl.firstInRange(&r)
	}
	next := func(x *node) *node {
		if reverse {
			return x.backward
		}
		return x.level[0].forward
	}
	for ; x != nil && offset > 0; offset-- {
		x = next(x)
	}
	for x != nil && count != 0 {
		if reverse && !r.gteMin(x.score) || !reverse && !r.lteMax(x.score) {
			return
		}
		fn(x.member, x.score)
		x = next(x)
		count--
	}
}

// Count returns the number of members whose score is within r.
func (z *ZSet) Count(r RangeSpec) int {
	first := z.zsl.firstInRange(&r)
	if first == nil {
		return 0
	}
	last := z.zsl.lastInRange(&r)
	return z.zsl.getRank(last.score, last.member) - z.zsl.getRank(first.score, first.member) + 1
}

func (z *ZSet) RemoveRangeByScore(r RangeSpec) int {
	return z.zsl.deleteRangeByScore(&r, func(x *node) {
		z.m.Delete(x.member)
	})
}

// RemoveRangeByRank removes members with rank in [start, stop], with the same
// index rules as Range.
func (z *ZSet) RemoveRangeByRank(start, stop int) int {
	start, stop, ok := z.normRange(start, stop)
	if !ok {
		return 0
	}
	return z.zsl.deleteRangeByRank(start+1, stop+1, func(x *node) {
		z.m.Delete(x.member)
	})
}

// PopMin removes and returns the member with the lowest score.
func (z *ZSet) PopMin() (string, float64, bool) {
	return z.pop(z.zsl.head.level[0].forward)
}

// PopMax removes and returns the member with the highest score.
func (z *ZSet) PopMax() (string, float64, bool) {
	return z.pop(z.zsl.tail)
}

func (z *ZSet) pop(x *node) (string, float64, bool) {
	if x == nil {
		return "", 0, false
	}
	member, score := x.member, x.score
	z.Remove(member)
	return member, score, true
}

// Scan calls fn for every member in ascending order until fn returns false.
func (z *ZSet) Scan(fn func(member string, score float64) bool) {
	for x := z.zsl.head.level[0].forward; x != nil; x = x.level[0].forward {
		if !fn(x.member, x.score) {
			return
		}
	}
}
