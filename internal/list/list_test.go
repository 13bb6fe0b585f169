package list

import (
	"fmt"
	"slices"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func genKey(i int) []byte {
	return []byte(fmt.Sprintf("%08x", i))
}

func genList(start, stop int) *QuickList {
	ls := New()
	for i := start; i < stop; i++ {
		ls.RPush(genKey(i))
	}
	return ls
}

func list2slice(ls *QuickList) (res []string) {
	ls.Range(0, -1, func(data []byte) {
		res = append(res, string(data))
	})
	return
}

func strList(vals ...string) *QuickList {
	ls := New()
	for _, v := range vals {
		ls.RPush([]byte(v))
	}
	return ls
}

func TestList(t *testing.T) {
	const N = 10000
	assert := assert.New(t)

	t.Run("lpush", func(t *testing.T) {
		ls := New()
		ls2 := make([]string, 0, N)
		for i := 0; i < N; i++ {
			key := genKey(i)
			ls.LPush(key)
			ls2 = slices.Insert(ls2, 0, string(key))
		}
		assert.Equal(len(ls2), ls.Len())
		assert.Equal(ls2, list2slice(ls))
	})

	t.Run("rpush", func(t *testing.T) {
		ls := New()
		ls2 := make([]string, 0, N)
		for i := 0; i < N; i++ {
			key := genKey(i)
			ls.RPush(key)
			ls2 = append(ls2, string(key))
		}
		assert.Equal(len(ls2), ls.Len())
		assert.Equal(ls2, list2slice(ls))
	})

	t.Run("lpop", func(t *testing.T) {
		ls := genList(0, N)
		for i := 0; i < N; i++ {
			assert.Equal(N-i, ls.Len())
			key, ok := ls.LPop()
			assert.Equal(genKey(i), key)
			assert.True(ok)
		}
		// pop empty list
		key, ok := ls.LPop()
		assert.Nil(key)
		assert.False(ok)
	})

	t.Run("rpop", func(t *testing.T) {
		ls := genList(0, N)
		for i := 0; i < N; i++ {
			assert.Equal(N-i, ls.Len())
			key, ok := ls.RPop()
			assert.Equal(genKey(N-i-1), key)
			assert.True(ok)
		}
		// pop empty list
		key, ok := ls.RPop()
		assert.Nil(key)
		assert.False(ok)
	})

	t.Run("index", func(t *testing.T) {
		ls := genList(0, N)
		for _, i := range []int{0, 1, 127, 128, 5000, N - 1} {
			v, ok := ls.Index(i)
			assert.True(ok)
			assert.Equal(genKey(i), v)

			v, ok = ls.Index(i - N)
			assert.True(ok)
			assert.Equal(genKey(i), v)
		}
		_, ok := ls.Index(N)
		assert.False(ok)
		_, ok = ls.Index(-N - 1)
		assert.False(ok)
	})

	t.Run("set", func(t *testing.T) {
		ls := genList(0, N)
		assert.True(ls.Set(300, []byte("x")))
		assert.True(ls.Set(-1, []byte("y")))
		assert.False(ls.Set(N, []byte("z")))

		v, _ := ls.Index(300)
		assert.Equal("x", string(v))
		v, _ = ls.Index(N - 1)
		assert.Equal("y", string(v))
		assert.Equal(N, ls.Len())
	})

	t.Run("range", func(t *testing.T) {
		ls := New()
		// [0, 1, 2, 3, 4]
		for i := range 5 {
			ls.RPush([]byte(strconv.Itoa(i)))
		}

		rangeFn := func(start, stop int) (res []string) {
			ls.Range(start, stop, func(data []byte) {
				res = append(res, string(data))
			})
			assert.Equal(len(res), ls.RangeCount(start, stop))
			return
		}

		assert.Equal([]string{"0", "1", "2", "3", "4"}, rangeFn(0, -1))
		assert.Equal([]string{"0", "1", "2", "3", "4"}, rangeFn(-100, 100))
		assert.Equal([]string{"1", "2", "3"}, rangeFn(1, 3))
		assert.Equal([]string{"2", "3", "4"}, rangeFn(-3, -1))
		assert.Equal([]string{"3"}, rangeFn(3, 3))
		assert.Equal([]string{"2"}, rangeFn(-3, 2))

		// empty
		var nilStrings []string
		assert.Equal(nilStrings, rangeFn(99, 100))
		assert.Equal(nilStrings, rangeFn(-100, -99))
		assert.Equal(nilStrings, rangeFn(-1, -3))
		assert.Equal(nilStrings, rangeFn(3, 2))
	})

	t.Run("range2", func(t *testing.T) {
		ls := genList(0, N)
		i := 0
		ls.Range(0, N, func(data []byte) {
			assert.Equal(genKey(i), data)
			i++
		})
		assert.Equal(N, i)

		for _, start := range []int{100, 1000, 5000} {
			i = 0
			ls.Range(start, start+100, func(data []byte) {
				assert.Equal(genKey(start+i), data)
				i++
			})
			assert.Equal(101, i)
		}
	})

	t.Run("trim", func(t *testing.T) {
		ls := genList(0, N)
		ls.Trim(100, -101)
		assert.Equal(N-200, ls.Len())
		v, _ := ls.Index(0)
		assert.Equal(genKey(100), v)
		v, _ = ls.Index(-1)
		assert.Equal(genKey(N-101), v)

		ls.Trim(5, 1)
		assert.Equal(0, ls.Len())
		assert.Nil(list2slice(ls))

		ls = strList("a", "b", "c")
		ls.Trim(-100, 100)
		assert.Equal([]string{"a", "b", "c"}, list2slice(ls))
	})

	t.Run("remove", func(t *testing.T) {
		ls := strList("a", "b", "a", "c", "a", "b")
		assert.Equal(2, ls.Remove([]byte("a"), 2))
		assert.Equal([]string{"b", "c", "a", "b"}, list2slice(ls))

		ls = strList("a", "b", "a", "c", "a", "b")
		assert.Equal(2, ls.Remove([]byte("a"), -2))
		assert.Equal([]string{"a", "b", "c", "b"}, list2slice(ls))

		ls = strList("a", "b", "a", "c", "a", "b")
		assert.Equal(3, ls.Remove([]byte("a"), 0))
		assert.Equal([]string{"b", "c", "b"}, list2slice(ls))
		assert.Equal(0, ls.Remove([]byte("x"), 0))
		assert.Equal(3, ls.Len())

		// across blocks
		ls = New()
		for i := range N {
			ls.RPush([]byte(strconv.Itoa(i % 3)))
		}
		assert.Equal(N/3, ls.Remove([]byte("1"), 0))
		assert.Equal(N-N/3, ls.Len())
		assert.NotContains(list2slice(ls), "1")
	})

	t.Run("insert", func(t *testing.T) {
		ls := strList("a", "c")
		assert.Equal(3, ls.Insert([]byte("c"), []byte("b"), true))
		assert.Equal(4, ls.Insert([]byte("c"), []byte("d"), false))
		assert.Equal(-1, ls.Insert([]byte("x"), []byte("y"), true))
		assert.Equal([]string{"a", "b", "c", "d"}, list2slice(ls))

		// split full blocks
		ls = genList(0, N)
		want := list2slice(ls)
		for i := 0; i < 1000; i++ {
			pivot := genKey(i * 7)
			ls.Insert(pivot, []byte("new"), i%2 == 0)
			idx := slices.Index(want, string(pivot))
			if i%2 != 0 {
				idx++
			}
			want = slices.Insert(want, idx, "new")
		}
		assert.Equal(len(want), ls.Len())
		assert.Equal(want, list2slice(ls))
	})
}
