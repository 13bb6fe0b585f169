package pkg

import (
	"fmt"
	"io"
	"slices"
	"time"
)

// Quantile collects durations and reports their percentiles.
type Quantile struct {
	f      []float64
	sorted bool
}

func NewQuantile(size int) *Quantile {
	return &Quantile{f: make([]float64, 0, size)}
}

func (q *Quantile) Add(d time.Duration) {
	q.f = append(q.f, float64(d))
	q.sorted = false
}

func (q *Quantile) Len() int {
	return len(q.f)
}

// Quantile returns the p-th quantile, p in [0, 1].
func (q *Quantile) Quantile(p float64) time.Duration {
	if len(q.f) == 0 {
		return 0
	}
	if !q.sorted {
		slices.Sort(q.f)
		q.sorted = true
	}
	i := min(int(float64(len(q.f))*p), len(q.f)-1)
	return time.Duration(q.f[i])
}

func (q *Quantile) Print(w io.Writer) {
	fmt.Fprintf(w, "50th: %v\n", q.Quantile(0.5))
	fmt.Fprintf(w, "90th: %v\n", q.Quantile(0.9))
	fmt.Fprintf(w, "99th: %v\n", q.Quantile(0.99))
	fmt.Fprintf(w, "999th: %v\n", q.Quantile(0.999))
	fmt.Fprintf(w, "max: %v\n", q.Quantile(1))
}
