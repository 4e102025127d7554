package prom

import (
	"strconv"
	"sync"
	"testing"

	"github.com/IvanBrykalov/internslice/intern"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAdapter_WiredIntoTable(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg, "intern", "test", prometheus.Labels{"table": "metadata"})
	tab := intern.New(intern.Options{
		Seed:            intern.Seed(5),
		Shards:          1,
		InitialCapacity: 1,
		Metrics:         m,
	})

	a := tab.InternString("a")
	a2 := tab.InternString("a")
	b := tab.InternString("b")
	c := tab.InternString("c") // forces a grow

	if got := testutil.ToFloat64(m.hits); got != 1 {
		t.Fatalf("hits want 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.misses); got != 3 {
		t.Fatalf("misses want 3, got %v", got)
	}
	if got := testutil.ToFloat64(m.grows); got != 1 {
		t.Fatalf("grows want 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.entries); got != 3 {
		t.Fatalf("entries want 3, got %v", got)
	}

	a.Release()
	a2.Release()
	b.Release()
	if got := testutil.ToFloat64(m.releases); got != 2 {
		t.Fatalf("releases want 2, got %v", got)
	}
	if got := testutil.ToFloat64(m.entries); got != 1 {
		t.Fatalf("entries want 1, got %v", got)
	}

	if err := tab.Shutdown(); err == nil {
		t.Fatal("c was never released; Shutdown must report it")
	}
	if got := testutil.ToFloat64(m.leaked); got != 1 {
		t.Fatalf("leaked want 1, got %v", got)
	}
	c.Release()

	n, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatal(err)
	}
	if n != 7 {
		t.Fatalf("want 7 registered series, got %d", n)
	}
}

// Shards report concurrently; the entries gauge must still land on the
// table's live count.
func TestAdapter_EntriesGaugeUnderConcurrency(t *testing.T) {
	t.Parallel()

	m := New(prometheus.NewRegistry(), "intern", "conc", nil)
	tab := intern.New(intern.Options{Seed: intern.Seed(9), Shards: 8, Metrics: m})

	const workers, perWorker = 8, 200
	held := make([][]intern.Slice, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				s := tab.InternString(strconv.Itoa(w) + ":" + strconv.Itoa(i))
				if i%2 == 0 {
					s.Release()
					continue
				}
				held[w] = append(held[w], s)
			}
		}()
	}
	wg.Wait()

	if got, want := testutil.ToFloat64(m.entries), float64(tab.Len()); got != want {
		t.Fatalf("entries gauge %v, table holds %v", got, want)
	}
	if tab.Len() != workers*perWorker/2 {
		t.Fatalf("Len want %d, got %d", workers*perWorker/2, tab.Len())
	}
	for _, hs := range held {
		for _, s := range hs {
			s.Release()
		}
	}
	if got := testutil.ToFloat64(m.entries); got != 0 {
		t.Fatalf("entries gauge want 0, got %v", got)
	}
	if err := tab.Shutdown(); err != nil {
		t.Fatal(err)
	}
}
