package list

import (
	"testing"
)

func BenchmarkList(b *testing.B) {
	const N = 10000

	for _, push := range []struct {
		name string
		fn   func(*QuickList, []byte)
	}{
		{"lpush", (*QuickList).LPush},
		{"rpush", (*QuickList).RPush},
	} {
		b.Run(push.name, func(b *testing.B) {
			ls := New()
			for i := 0; i < b.N; i++ {
				push.fn(ls, genKey(i))
			}
		})
	}

	b.Run("lpop-rpop", func(b *testing.B) {
		ls := genList(0, b.N)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if i%2 == 0 {
				ls.LPop()
			} else {
				ls.RPop()
			}
		}
	})

	// index and set walk to the middle block, the slowest position
	b.Run("index-middle", func(b *testing.B) {
		ls := genList(0, N)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			ls.Index(N/2 + i%64)
		}
	})
	b.Run("set-middle", func(b *testing.B) {
		ls := genList(0, N)
		value := genKey(-1)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			ls.Set(N/2-i%64, value)
		}
	})

	b.Run("range-count", func(b *testing.B) {
		ls := genList(0, N)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			ls.RangeCount(100, -100)
		}
	})

	b.Run("trim", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			b.StopTimer()
			ls := genList(0, N)
			b.StartTimer()
			ls.Trim(N/4, -N/4)
		}
	})

	b.Run("insert", func(b *testing.B) {
		ls := genList(0, N)
		pivot := genKey(N / 2)
		value := genKey(-1)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			ls.Insert(pivot, value, i%2 == 0)
		}
	})

	b.Run("remove", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			b.StopTimer()
			ls := New()
			for j := 0; j < N; j++ {
				ls.RPush(genKey(j % 16))
			}
			b.StartTimer()
			ls.Remove(genKey(i%16), 0)
		}
	})
}
