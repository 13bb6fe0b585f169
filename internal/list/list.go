package list

import (
	"bytes"
	"slices"

	"github.com/zyedidia/generic/list"
)

//	 +--------------------------- QuickList ----------------------------+
//	 |	     +--------+     +--------+             +--------+            |
//	Front --- | block0 | <-> | block1 | <-> ... <-> | blockN | --- Back
//	         +--------+     +--------+             +--------+
//
// QuickList is an unrolled doubly linked list. Each block holds up to
// maxEntries values so that pushes, pops and scans touch few list nodes.
type QuickList struct {
	ll   *list.List[block]
	size int
}

type block = [][]byte

var maxEntries = 128

// SetMaxEntries changes the block capacity of lists created afterwards.
func SetMaxEntries(n int) {
	maxEntries = n
}

// New create a quicklist instance.
func New() *QuickList {
	return &QuickList{ll: list.New[block]()}
}

func newBlock() block {
	return make(block, 0, maxEntries)
}

func full(n *list.Node[block]) bool {
	return n == nil || len(n.Value) >= maxEntries
}

// Len returns the number of values.
func (ls *QuickList) Len() int {
	return ls.size
}

// LPush inserts v at the head. The list takes ownership of v.
func (ls *QuickList) LPush(v []byte) {
	if full(ls.ll.Front) {
		ls.ll.PushFront(newBlock())
	}
	n := ls.ll.Front
	n.Value = slices.Insert(n.Value, 0, v)
	ls.size++
}

// RPush inserts v at the tail. The list takes ownership of v.
func (ls *QuickList) RPush(v []byte) {
	if full(ls.ll.Back) {
		ls.ll.PushBack(newBlock())
	}
	n := ls.ll.Back
	n.Value = append(n.Value, v)
	ls.size++
}

// LPop
func (ls *QuickList) LPop() ([]byte, bool) {
	n := ls.ll.Front
	if n == nil {
		return nil, false
	}
	v := n.Value[0]
	ls.removeAt(n, 0)
	return v, true
}

// RPop
func (ls *QuickList) RPop() ([]byte, bool) {
	n := ls.ll.Back
	if n == nil {
		return nil, false
	}
	i := len(n.Value) - 1
	v := n.Value[i]
	ls.removeAt(n, i)
	return v, true
}

// removeAt deletes entry i of n and releases n once it is empty.
func (ls *QuickList) removeAt(n *list.Node[block], i int) {
	n.Value = slices.Delete(n.Value, i, i+1)
	ls.size--
	if len(n.Value) == 0 {
		ls.ll.Remove(n)
	}
}

// insertAt inserts v before entry i of n, splitting n when it is full.
func (ls *QuickList) insertAt(n *list.Node[block], i int, v []byte) {
	if full(n) {
		half := len(n.Value) / 2
		right := newBlock()
		right = append(right, n.Value[half:]...)
		clear(n.Value[half:])
		n.Value = n.Value[:half]
		ls.insertAfter(n, right)
		if i > half {
			n = n.Next
			i -= half
		}
	}
	n.Value = slices.Insert(n.Value, i, v)
	ls.size++
}

func (ls *QuickList) insertAfter(n *list.Node[block], b block) {
	nn := &list.Node[block]{Value: b, Prev: n, Next: n.Next}
	if n.Next != nil {
		n.Next.Prev = nn
	} else {
		ls.ll.Back = nn
	}
	n.Next = nn
}

// locate returns the block and offset of the value at index i, 0 <= i < size.
func (ls *QuickList) locate(i int) (*list.Node[block], int) {
	if i < ls.size/2 {
		for n := ls.ll.Front; n != nil; n = n.Next {
			if i < len(n.Value) {
				return n, i
			}
			i -= len(n.Value)
		}
		return nil, 0
	}
	j := ls.size - 1 - i
	for n := ls.ll.Back; n != nil; n = n.Prev {
		if j < len(n.Value) {
			return n, len(n.Value) - 1 - j
		}
		j -= len(n.Value)
	}
	return nil, 0
}

// normIndex converts a possibly negative index, ok is false if out of range.
func (ls *QuickList) normIndex(i int) (int, bool) {
	if i < 0 {
		i += ls.size
	}
	return i, i >= 0 && i < ls.size
}

// Index returns the value at index i. Negative indexes count from the tail.
func (ls *QuickList) Index(i int) ([]byte, bool) {
	i, ok := ls.normIndex(i)
	if !ok {
		return nil, false
	}
	n, j := ls.locate(i)
	return n.Value[j], true
}

// Set replaces the value at index i. It returns false if i is out of range.
func (ls *QuickList) Set(i int, v []byte) bool {
	i, ok := ls.normIndex(i)
	if !ok {
		return false
	}
	n, j := ls.locate(i)
	n.Value[j] = v
	return true
}

// normRange converts LRANGE style start/stop into a clamped inclusive range.
func (ls *QuickList) normRange(start, stop int) (int, int, bool) {
	if start < 0 {
		start += ls.size
	}
	if stop < 0 {
		stop += ls.size
	}
	start = max(start, 0)
	stop = min(stop, ls.size-1)
	if start > stop || start >= ls.size {
		return 0, 0, false
	}
	return start, stop, true
}

// Range calls fn for each value in [start, stop]. Negative indexes count
// from the tail and out of range indexes are clamped.
func (ls *QuickList) Range(start, stop int, fn func(data []byte)) {
	start, stop, ok := ls.normRange(start, stop)
	if !ok {
		return
	}
	count := stop - start + 1
	n, i := ls.locate(start)
	for ; n != nil && count > 0; n, i = n.Next, 0 {
		for ; i < len(n.Value) && count > 0; i++ {
			fn(n.Value[i])
			count--
		}
	}
}

// RangeCount returns the number of values Range(start, stop) visits.
func (ls *QuickList) RangeCount(start, stop int) int {
	start, stop, ok := ls.normRange(start, stop)
	if !ok {
		return 0
	}
	return stop - start + 1
}

// Trim keeps only the values in [start, stop], with the same index rules as Range.
func (ls *QuickList) Trim(start, stop int) {
	start, stop, ok := ls.normRange(start, stop)
	if !ok {
		ls.ll = list.New[block]()
		ls.size = 0
		return
	}
	rtrim := ls.size - 1 - stop
	for range start {
		ls.LPop()
	}
	for range rtrim {
		ls.RPop()
	}
}

// Remove deletes values equal to v. count > 0 removes at most count values
// moving from head to tail, count < 0 removes at most -count values moving
// from tail to head, and count == 0 removes all of them.
func (ls *QuickList) Remove(v []byte, count int) (removed int) {
	limit := count
	if limit < 0 {
		limit = -limit
	}
	done := func() bool { return limit > 0 && removed == limit }

	if count >= 0 {
		for n := ls.ll.Front; n != nil && !done(); {
			next := n.Next
			for i := 0; i < len(n.Value) && !done(); {
				if bytes.Equal(n.Value[i], v) {
					removed++
					ls.removeAt(n, i)
					continue
				}
				i++
			}
			n = next
		}
		return
	}

	for n := ls.ll.Back; n != nil && !done(); {
		prev := n.Prev
		for i := len(n.Value) - 1; i >= 0 && !done(); i-- {
			if bytes.Equal(n.Value[i], v) {
				removed++
				ls.removeAt(n, i)
			}
		}
		n = prev
	}
	return
}

// Insert puts v before or after the first value equal to pivot. It returns
// the new length, or -1 if pivot was not found.
func (ls *QuickList) Insert(pivot, v []byte, before bool) int {
	for n := ls.ll.Front; n != nil; n = n.Next {
		for i, e := range n.Value {
			if !bytes.Equal(e, pivot) {
				continue
			}
			if !before {
				i++
			}
			ls.insertAt(n, i, v)
			return ls.size
		}
	}
	return -1
}
