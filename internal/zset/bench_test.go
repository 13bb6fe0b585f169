package zset

import (
	"fmt"
	"math"
	"testing"
)

const N = 512

func genKey(i int) string {
	return fmt.Sprintf("%08x", i)
}

func genZSet(n int) *ZSet {
	zs := New()
	for i := 0; i < n; i++ {
		zs.Set(genKey(i), float64(i%N))
	}
	return zs
}

func BenchmarkZSet(b *testing.B) {
	b.Run("get", func(b *testing.B) {
		zs := genZSet(N)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			zs.Get(genKey(i % N))
		}
	})
	b.Run("set", func(b *testing.B) {
		zs := New()
		for i := 0; i < b.N; i++ {
			zs.Set(genKey(i%N), float64(i))
		}
	})
	b.Run("rank", func(b *testing.B) {
		zs := genZSet(N)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			zs.Rank(genKey(i % N))
		}
	})
	b.Run("range", func(b *testing.B) {
		zs := genZSet(N)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			zs.Range(0, 9, false, func(string, float64) {})
		}
	})
	b.Run("rangeByScore", func(b *testing.B) {
		zs := genZSet(N)
		r := RangeSpec{Min: 100, Max: math.Inf(1)}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			zs.RangeByScore(r, 0, 10, false, func(string, float64) {})
		}
	})
}
