package benchmarks

import (
	"context"
	"testing"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/scheduler"
)

// runVirtual initializes obs on a fresh virtual scheduler and drains it.
func runVirtual(b *testing.B, obs rxgraph.Observable[int]) {
	b.Helper()
	s := scheduler.NewVirtualScheduler()
	sub := obs.Subscribe(discard[int]())
	if _, err := rxgraph.Initialize(rxgraph.NewContext(context.Background(), s), sub); err != nil {
		b.Fatal(err)
	}
	s.Start()
}

func values(n int) []int {
	vs := make([]int, n)
	for i := range vs {
		vs[i] = i
	}
	return vs
}

// BenchmarkDeliver_Chain_10 pushes 1000 values through 10 operators.
func BenchmarkDeliver_Chain_10(b *testing.B) {
	obs := buildChain(rxgraph.FromSlice(values(1000)), 10)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		runVirtual(b, obs)
	}
}

// BenchmarkDeliver_Buffer pushes 1000 values through Buffer(10) and Sum.
func BenchmarkDeliver_Buffer(b *testing.B) {
	obs := rxgraph.Map(rxgraph.Buffer(rxgraph.FromSlice(values(1000)), 10), func(vs []int) int { return len(vs) })
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		runVirtual(b, rxgraph.Sum(obs))
	}
}

// BenchmarkDeliver_Merge_10 merges ten 100-value sources.
func BenchmarkDeliver_Merge_10(b *testing.B) {
	sources := make([]rxgraph.Observable[int], 10)
	for i := range sources {
		sources[i] = rxgraph.FromSlice(values(100))
	}
	obs := rxgraph.Merge(sources...)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		runVirtual(b, obs)
	}
}

// BenchmarkDeliver_FanIn_50 runs ten ticks of a 50-source CombineLatest.
func BenchmarkDeliver_FanIn_50(b *testing.B) {
	obs := buildFanIn(50)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		runVirtual(b, obs)
	}
}

// BenchmarkLogicalScheduler_Subject measures cross-goroutine delivery
// through a Subject on a physical pool.
func BenchmarkLogicalScheduler_Subject(b *testing.B) {
	pool := scheduler.NewPhysicalScheduler(4)
	defer pool.Close()
	l := pool.NewLogical()
	defer l.Dispose()

	subj := rxgraph.NewSubject[int]()
	done := make(chan struct{})
	n := b.N
	seen := 0
	root := subj.Subscribe(rxgraph.ObserverFuncs[int]{
		Next: func(int) {
			seen++
			if seen == n {
				close(done)
			}
		},
	})
	g := rxgraph.NewGraph(l)
	if err := g.Start(context.Background(), root); err != nil {
		b.Fatal(err)
	}
	defer g.Dispose()

	b.ResetTimer()
	for i := 0; i < n; i++ {
		subj.OnNext(i)
	}
	<-done
}
