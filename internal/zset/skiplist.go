package zset

import (
	"math/rand/v2"
)

const (
	maxLevel = 32
	pFactor  = 0.25
)

type level struct {
	forward *node
	// span is the number of level-0 hops to reach forward.
	span int
}

type node struct {
	member   string
	score    float64
	backward *node
	level    []level
}

// skiplist keeps nodes ordered by (score, member) with per-link spans,
// so that rank lookups walk O(log N) links.
type skiplist struct {
	head   *node
	tail   *node
	length int
	level  int
}

func newSkiplist() *skiplist {
	return &skiplist{
		head:  &node{level: make([]level, maxLevel)},
		level: 1,
	}
}

func randomLevel() int {
	lv := 1
	for lv < maxLevel && rand.Float64() < pFactor {
		lv++
	}
	return lv
}

// less reports whether x sorts before (score, member).
func (x *node) less(score float64, member string) bool {
	return x.score < score || (x.score == score && x.member < member)
}

func (zsl *skiplist) insert(score float64, member string) *node {
	var update [maxLevel]*node
	var rank [maxLevel]int

	x := zsl.head
	for i := zsl.level - 1; i >= 0; i-- {
		if i < zsl.level-1 {
			rank[i] = rank[i+1]
		}
		for x.level[i].forward != nil && x.level[i].forward.less(score, member) {
			rank[i] += x.level[i].span
			x = x.level[i].forward
		}
		update[i] = x
	}

	lv := randomLevel()
	if lv > zsl.level {
		for i := zsl.level; i < lv; i++ {
			rank[i] = 0
			update[i] = zsl.head
			update[i].level[i].span = zsl.length
		}
		zsl.level = lv
	}

	x = &node{member: member, score: score, level: make([]level, lv)}
	for i := 0; i < lv; i++ {
		x.level[i].forward = update[i].level[i].forward
		update[i].level[i].forward = x
		x.level[i].span = update[i].level[i].span - (rank[0] - rank[i])
		update[i].level[i].span = rank[0] - rank[i] + 1
	}
	for i := lv; i < zsl.level; i++ {
		update[i].level[i].span++
	}

	if update[0] != zsl.head {
		x.backward = update[0]
	}
	if x.level[0].forward != nil {
		x.level[0].forward.backward = x
	} else {
		zsl.tail = x
	}
	zsl.length++
	return x
}

func (zsl *skiplist) deleteNode(x *node, update *[maxLevel]*node) {
	for i := 0; i < zsl.level; i++ {
		if update[i].level[i].forward == x {
			update[i].level[i].span += x.level[i].span - 1
			update[i].level[i].forward = x.level[i].forward
		} else {
			update[i].level[i].span--
		}
	}
	if x.level[0].forward != nil {
		x.level[0].forward.backward = x.backward
	} else {
		zsl.tail = x.backward
	}
	for zsl.level > 1 && zsl.head.level[zsl.level-1].forward == nil {
		zsl.level--
	}
	zsl.length--
}

func (zsl *skiplist) delete(score float64, member string) bool {
	var update [maxLevel]*node
	x := zsl.head
	for i := zsl.level - 1; i >= 0; i-- {
		for x.level[i].forward != nil && x.level[i].forward.less(score, member) {
			x = x.level[i].forward
		}
		update[i] = x
	}
	x = x.level[0].forward
	if x != nil && x.score == score && x.member == member {
		zsl.deleteNode(x, &update)
		return true
	}
	return false
}

// getRank returns the 1-based rank of (score, member), or 0 if absent.
func (zsl *skiplist) getRank(score float64, member string) int {
	var rank int
	x := zsl.head
	for i := zsl.level - 1; i >= 0; i-- {
		for x.level[i].forward != nil &&
			(x.level[i].forward.less(score, member) ||
				(x.level[i].forward.score == score && x.level[i].forward.member == member)) {
			rank += x.level[i].span
			x = x.level[i].forward
		}
		if x != zsl.head && x.score == score && x.member == member {
			return rank
		}
	}
	return 0
}

// getByRank returns the node at 1-based rank.
func (zsl *skiplist) getByRank(rank int) *node {
	var traversed int
	x := zsl.head
	for i := zsl.level - 1; i >= 0; i-- {
		for x.level[i].forward != nil && traversed+x.level[i].span <= rank {
			traversed += x.level[i].span
			x = x.level[i].forward
		}
		if traversed == rank {
			return x
		}
	}
	return nil
}

func (zsl *skiplist) isInRange(r *RangeSpec) bool {
	if r.empty() {
		return false
	}
	x := zsl.tail
	if x == nil || !r.gteMin(x.score) {
		return false
	}
	x = zsl.head.level[0].forward
	if x == nil || !r.lteMax(x.score) {
		return false
	}
	return true
}

// firstInRange returns the first node whose score is within r.
func (zsl *skiplist) firstInRange(r *RangeSpec) *node {
	if !zsl.isInRange(r) {
		return nil
	}
	x := zsl.head
	for i := zsl.level - 1; i >= 0; i-- {
		for x.level[i].forward != nil && !r.gteMin(x.level[i].forward.score) {
			x = x.level[i].forward
		}
	}
	x = x.level[0].forward
	if x == nil || !r.lteMax(x.score) {
		return nil
	}
	return x
}

// lastInRange returns the last node whose score is within r.
func (zsl *skiplist) lastInRange(r *RangeSpec) *node {
	if !zsl.isInRange(r) {
		return nil
	}
	x := zsl.head
	for i := zsl.level - 1; i >= 0; i-- {
		for x.level[i].forward != nil && r.lteMax(x.level[i].forward.score) {
			x = x.level[i].forward
		}
	}
	if x == zsl.head || !r.gteMin(x.score) {
		return nil
	}
	return x
}

// deleteRangeByScore removes every node within r, calling fn per removed node.
func (zsl *skiplist) deleteRangeByScore(r *RangeSpec, fn func(x *node)) int {
	var update [maxLevel]*node
	var removed int
	x := zsl.head
	for i := zsl.level - 1; i >= 0; i-- {
		for x.level[i].forward != nil && !r.gteMin(x.level[i].forward.score) {
			x = x.level[i].forward
		}
		update[i] = x
	}
	x = x.level[0].forward
	for x != nil && r.lteMax(x.score) {
		next := x.level[0].forward
		zsl.deleteNode(x, &update)
		fn(x)
		removed++
		x = next
	}
	return removed
}

// deleteRangeByRank removes nodes with 1-based rank in [start, end].
func (zsl *skiplist) deleteRangeByRank(start, end int, fn func(x *node)) int {
	var update [maxLevel]*node
	var traversed, removed int
	x := zsl.head
	for i := zsl.level - 1; i >= 0; i-- {
		for x.level[i].forward != nil && traversed+x.level[i].span < start {
			traversed += x.level[i].span
			x = x.level[i].forward
		}
		update[i] = x
	}
	traversed++
	x = x.level[0].forward
	for x != nil && traversed <= end {
		next := x.level[0].forward
		zsl.deleteNode(x, &update)
		fn(x)
		removed++
		traversed++
		x = next
	}
	return removed
}
