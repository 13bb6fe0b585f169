package main

import (
	"bytes"
	"cmp"
	"slices"
	"strings"

	"github.com/xgzlucario/ember/internal/list"
	"github.com/xgzlucario/ember/internal/resp"
	"github.com/xgzlucario/ember/internal/set"
	"github.com/xgzlucario/ember/internal/zset"
)

type sortOptions struct {
	by       string
	dontsort bool
	gets     []string
	offset   int
	count    int
	desc     bool
	alpha    bool
	store    string
	storing  bool
}

type sortItem struct {
	elem   []byte
	score  float64
	weight []byte
}

func parseSortOptions(args []resp.RESP) (*sortOptions, error) {
	opts := &sortOptions{count: -1}
	for i := 0; i < len(args); i++ {
		left := len(args) - i - 1
		switch strings.ToUpper(args[i].ToStringUnsafe()) {
		case "ASC":
			opts.desc = false
		case "DESC":
			opts.desc = true
		case "ALPHA":
			opts.alpha = true
		case "LIMIT":
			if left < 2 {
				return nil, errSyntax
			}
			var err error
			if opts.offset, err = args[i+1].ToInt(); err != nil {
				return nil, err
			}
			if opts.count, err = args[i+2].ToInt(); err != nil {
				return nil, err
			}
			i += 2
		case "STORE":
			if left < 1 {
				return nil, errSyntax
			}
			opts.store = args[i+1].ToString()
			opts.storing = true
			i++
		case "BY":
			if left < 1 {
				return nil, errSyntax
			}
			opts.by = args[i+1].ToString()
			// a pattern without '*' names a single key for every element
			opts.dontsort = !strings.Contains(opts.by, "*")
			i++
		case "GET":
			if left < 1 {
				return nil, errSyntax
			}
			opts.gets = append(opts.gets, args[i+1].ToString())
			i++
		default:
			return nil, errSyntax
		}
	}
	return opts, nil
}

// lookupKeyByPattern replaces the first '*' of pattern with subst and returns
// the string stored at the resulting key.
func lookupKeyByPattern(db *DB, pattern string, subst []byte) ([]byte, bool) {
	i := strings.IndexByte(pattern, '*')
	if i < 0 {
		return nil, false
	}
	key := pattern[:i] + string(subst) + pattern[i+1:]
	object, ok := db.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := object.([]byte)
	return b, ok
}

// SORT key [BY pattern] [LIMIT offset count] [GET pattern ...] [ASC|DESC] [ALPHA] [STORE dst]
func sortCommand(c *Client, args []resp.RESP) {
	opts, err := parseSortOptions(args[1:])
	if err != nil {
		c.writer.WriteError(err)
		return
	}

	var elems [][]byte
	if object, ok := c.db.Get(args[0].ToStringUnsafe()); ok {
		switch v := object.(type) {
		case *list.QuickList:
			elems = make([][]byte, 0, v.Len())
			v.Range(0, -1, func(data []byte) {
				elems = append(elems, data)
			})
		case *set.Set:
			elems = make([][]byte, 0, v.Len())
			v.Scan(func(member string) {
				elems = append(elems, []byte(member))
			})
			// a stored result must not depend on the set iteration order
			if opts.dontsort && opts.storing {
				opts.dontsort = false
				opts.alpha = true
				opts.by = ""
			}
		case *zset.ZSet:
			elems = make([][]byte, 0, v.Len())
			v.Range(0, -1, opts.dontsort && opts.desc, func(member string, _ float64) {
				elems = append(elems, []byte(member))
			})
		default:
			c.writer.WriteError(errWrongType)
			return
		}
	}

	items := make([]sortItem, len(elems))
	for i, elem := range elems {
		items[i].elem = elem
		if opts.dontsort {
			continue
		}
		weight := elem
		if opts.by != "" {
			weight, _ = lookupKeyByPattern(c.db, opts.by, elem)
		}
		if opts.alpha {
			items[i].weight = weight
			continue
		}
		if weight != nil {
			score, err := resp.RESP(weight).ToFloat()
			if err != nil {
				c.writer.WriteError(errSortScore)
				return
			}
			items[i].score = score
		}
	}

	if !opts.dontsort {
		slices.SortStableFunc(items, func(a, b sortItem) int {
			var r int
			if opts.alpha {
				r = bytes.Compare(a.weight, b.weight)
			} else {
				r = cmp.Compare(a.score, b.score)
			}
			if r == 0 {
				r = bytes.Compare(a.elem, b.elem)
			}
			if opts.desc {
				return -r
			}
			return r
		})
	}

	start := min(max(opts.offset, 0), len(items))
	end := len(items)
	if opts.count >= 0 && opts.count < end-start {
		end = start + opts.count
	}
	items = items[start:end]

	res := make([][]byte, 0, len(items)*max(len(opts.gets), 1))
	for _, item := range items {
		if len(opts.gets) == 0 {
			res = append(res, item.elem)
			continue
		}
		for _, get := range opts.gets {
			if get == "#" {
				res = append(res, item.elem)
				continue
			}
			value, _ := lookupKeyByPattern(c.db, get, item.elem)
			res = append(res, value)
		}
	}

	if opts.storing {
		if len(res) == 0 {
			c.db.Delete(opts.store)
		} else {
			ls := list.New()
			for _, value := range res {
				ls.RPush(append([]byte{}, value...))
			}
			c.db.Set(opts.store, ls)
			c.server.signalListAsReady(c.db, opts.store)
		}
		c.server.dirty++
		c.writer.WriteInteger(len(res))
		return
	}

	c.writer.WriteArrayHead(len(res))
	for _, value := range res {
		if value == nil {
			c.writer.WriteNull()
		} else {
			c.writer.WriteBulk(value)
		}
	}
}
