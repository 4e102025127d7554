// Command bench runs a synthetic intern/release workload against a Table and
// exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/internslice/intern"
	"github.com/IvanBrykalov/internslice/internal/config"
	logruslog "github.com/IvanBrykalov/internslice/log/logrus"
	zaplog "github.com/IvanBrykalov/internslice/log/zap"
	pmet "github.com/IvanBrykalov/internslice/metrics/prom"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config
	cmd := &cobra.Command{
		Use:           "bench",
		Short:         "Drive an intern table with a Zipf-distributed intern/release workload.",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.ApplyFile(cfg, cmd); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cmd)
		},
	}
	cfg = config.BindFlags(cmd)
	return cmd
}

// newLogger builds the configured backend. The returned func flushes it.
func newLogger(backend, level string, w io.Writer) (intern.Logger, func(), error) {
	if backend == config.LoggerLogrus {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		l := logrus.New()
		l.SetOutput(w)
		l.SetLevel(lvl)
		l.SetFormatter(&logrus.JSONFormatter{})
		return logruslog.LogrusLogger{E: logrus.NewEntry(l)}, func() {}, nil
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zl, err := zc.Build()
	if err != nil {
		return nil, nil, err
	}
	return zaplog.ZapLogger{L: zl}, func() { _ = zl.Sync() }, nil
}

func run(ctx context.Context, cfg *config.Config, cmd *cobra.Command) error {
	log, flush, err := newLogger(cfg.Logger, cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer flush()

	// ---- pprof server (on DefaultServeMux) ----
	if cfg.PprofAddr != "" {
		go func() {
			log.Info("pprof.serving", intern.Fields{"addr": cfg.PprofAddr})
			log.Warn("pprof.stopped", intern.Fields{"error": http.ListenAndServe(cfg.PprofAddr, nil)})
		}()
	}

	opt := cfg.Options()
	opt.Logger = log

	// ---- Prometheus metrics (on DefaultServeMux) ----
	if cfg.MetricsAddr != "" {
		opt.Metrics = pmet.New(nil, "intern", "bench", nil)
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Info("metrics.serving", intern.Fields{"addr": cfg.MetricsAddr})
			log.Warn("metrics.stopped", intern.Fields{"error": http.ListenAndServe(cfg.MetricsAddr, nil)})
		}()
	}

	tab := intern.New(opt)
	initial := tab.Stats()

	// Pre-render the keyspace so the workload measures the table, not strconv.
	keys := make([][]byte, cfg.Keys)
	for i := range keys {
		keys[i] = []byte("k:" + strconv.Itoa(i))
	}

	var interned, released atomic.Uint64
	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Workers; w++ {
		g.Go(func() error {
			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			r := rand.New(rand.NewSource(cfg.RandSeed + int64(w)*9973))
			zipf := rand.NewZipf(r, cfg.ZipfS, 1, uint64(cfg.Keys-1))
			held := make([]intern.Slice, 0, cfg.Hold)

			release := func(i int) {
				held[i].Release()
				held[i] = held[len(held)-1]
				held = held[:len(held)-1]
				released.Add(1)
			}
			defer func() {
				for len(held) > 0 {
					release(len(held) - 1)
				}
			}()

			for ctx.Err() == nil {
				if len(held) > 0 && (len(held) == cfg.Hold || r.Intn(100) < cfg.ReleasePct) {
					release(r.Intn(len(held)))
					continue
				}
				held = append(held, tab.Intern(keys[zipf.Uint64()]))
				interned.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	elapsed := time.Since(start)

	// ---- Report ----
	var hits, misses int64
	maxCap, grown := 0, 0
	for i, st := range tab.Stats() {
		hits += st.Hits
		misses += st.Misses
		if st.Capacity > maxCap {
			maxCap = st.Capacity
		}
		if st.Capacity > initial[i].Capacity {
			grown++
		}
	}
	in, rel := interned.Load(), released.Load()
	hitRate := 0.0
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses) * 100
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "hash=%s shards=%d workers=%d keys=%d dur=%v seed=%#x\n",
		cfg.Hash, len(tab.Stats()), cfg.Workers, cfg.Keys, elapsed, tab.Seed())
	fmt.Fprintf(out, "interned=%d (%.0f ops/s)  released=%d\n",
		in, float64(in+rel)/elapsed.Seconds(), rel)
	fmt.Fprintf(out, "hits=%d  misses=%d  hit-rate=%.2f%%  grown-shards=%d  max-capacity=%d\n",
		hits, misses, hitRate, grown, maxCap)

	// Every handle was released above; a leak here is a bug in the table.
	if err := tab.Shutdown(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	fmt.Fprintf(out, "Len()=%d after shutdown\n", tab.Len())
	return nil
}
