package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/xgzlucario/ember/internal/list"
	"github.com/xgzlucario/ember/internal/pkg"
	"github.com/xgzlucario/ember/internal/set"
	"github.com/xgzlucario/ember/internal/zset"
)

var previousPause time.Duration

func gcPause() time.Duration {
	runtime.GC()
	var stats debug.GCStats
	debug.ReadGCStats(&stats)
	pause := stats.PauseTotal - previousPause
	previousPause = stats.PauseTotal
	return pause
}

func genKV(id int) (string, []byte) {
	k := fmt.Sprintf("key-%010d", id)
	return k, []byte(k)
}

func genK(id int) string {
	return fmt.Sprintf("key-%010d", id)
}

// Builds 10000 containers of n elements each and reports memory, gc and
// per container build latency.
func main() {
	c := ""
	n := 0
	flag.StringVar(&c, "obj", "zset", "stdmap, list, set or zset")
	flag.IntVar(&n, "n", 512, "elements per container")
	flag.Parse()
	fmt.Println(c, n)

	const count = 10000
	start := time.Now()
	m := map[int]any{}
	q := pkg.NewQuantile(count)

	for i := 0; i < count; i++ {
		begin := time.Now()
		switch c {
		case "stdmap":
			hm := map[string][]byte{}
			for j := 0; j < n; j++ {
				k, v := genKV(j)
				hm[k] = v
			}
			m[i] = hm
		case "list":
			ls := list.New()
			for j := 0; j < n; j++ {
				_, v := genKV(j)
				ls.RPush(v)
			}
			m[i] = ls
		case "set":
			st := set.New()
			for j := 0; j < n; j++ {
				st.Add(genK(j))
			}
			m[i] = st
		case "zset":
			zs := zset.New()
			for j := 0; j < n; j++ {
				zs.Set(genK(j), float64(j))
			}
			m[i] = zs
		default:
			panic("unknown flags")
		}
		q.Add(time.Since(begin))
	}

	cost := time.Since(start)
	var mem runtime.MemStats
	var stat debug.GCStats

	runtime.ReadMemStats(&mem)
	debug.ReadGCStats(&stat)

	fmt.Println("heap inuse:", humanize.IBytes(mem.HeapInuse))
	fmt.Println("heap object:", humanize.Comma(int64(mem.HeapObjects)))
	fmt.Println("gc:", stat.NumGC)
	fmt.Println("pause:", gcPause())
	fmt.Println("cost:", cost)
	q.Print(os.Stdout)
}
