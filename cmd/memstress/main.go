// Command memstress boots the memory core and drives a concurrent workload against it.
//
// Every worker acts as one cpu. It alternates between allocating a page, scribbling on it
// and freeing it, and acquiring a block, updating it, committing it and releasing it.
// Pages which do not come back filled with the alloc junk are reported as failures.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/HayatoShiba/xvmem/common"
	"github.com/HayatoShiba/xvmem/kernel"
	"github.com/HayatoShiba/xvmem/memory"
	"github.com/HayatoShiba/xvmem/param"
)

var (
	configPath  = flag.String("config", "", "path of the yaml boot configuration (reference configuration if empty)")
	workers     = flag.Int("workers", 4, "number of concurrent workers")
	ops         = flag.Int("ops", 1000, "operations per worker")
	opsRate     = flag.Float64("rate", 0, "operations per second across all workers (unlimited if 0)")
	blocks      = flag.Int("blocks", 64, "number of distinct blocks the workers touch")
	metricsAddr = flag.String("metrics-addr", "", "address to serve prometheus metrics on (disabled if empty)")
)

type stats struct {
	pages      atomic.Int64
	noPage     atomic.Int64
	blocks     atomic.Int64
	badPattern atomic.Int64
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "memstress: %+v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := param.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = param.Load(*configPath); err != nil {
			return errors.Wrap(err, "param.Load failed")
		}
	}
	if *workers <= 0 || *blocks <= 0 {
		return errors.Errorf("workers and blocks must be positive: %d, %d", *workers, *blocks)
	}
	// every worker holds at most one buffer at a time
	if *workers > cfg.Buffers {
		return errors.Errorf("workers %d exceed buffers %d", *workers, cfg.Buffers)
	}
	k, err := kernel.Boot(cfg)
	if err != nil {
		return errors.Wrap(err, "kernel.Boot failed")
	}
	lg := k.Logger()

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(k.Registry(), promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				lg.Error("metrics server stopped", zap.Error(err))
			}
		}()
		lg.Info("serving metrics", zap.String("addr", *metricsAddr))
	}

	limit := rate.Inf
	if *opsRate > 0 {
		limit = rate.Limit(*opsRate)
	}
	limiter := rate.NewLimiter(limit, *workers)

	var st stats
	start := time.Now()
	g, ctx := errgroup.WithContext(context.Background())
	for w := 0; w < *workers; w++ {
		w := w
		cpu := common.CPUID(w % cfg.CPUs)
		g.Go(func() error {
			return work(ctx, k, limiter, cpu, w, &st)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := k.Sync(); err != nil {
		return errors.Wrap(err, "kernel.Sync failed")
	}

	elapsed := time.Since(start)
	fmt.Printf("workers=%d ops=%d elapsed=%s\n", *workers, *workers**ops, elapsed)
	fmt.Printf("pages allocated=%d no free page=%d bad pattern=%d\n", st.pages.Load(), st.noPage.Load(), st.badPattern.Load())
	fmt.Printf("blocks updated=%d\n", st.blocks.Load())
	for cpu := 0; cpu < cfg.CPUs; cpu++ {
		fmt.Printf("cpu %d free pages=%d\n", cpu, k.Memory().NumFree(common.CPUID(cpu)))
	}
	if n := st.badPattern.Load(); n > 0 {
		return errors.Errorf("%d pages were not filled on alloc", n)
	}
	return nil
}

// work runs the operations of worker id on cpu. the worker holds buffers as process id+1
func work(ctx context.Context, k *kernel.Kernel, limiter *rate.Limiter, cpu common.CPUID, id int, st *stats) error {
	pid := common.PID(id + 1)
	mem := k.Memory()
	cache := k.Cache()
	for i := 0; i < *ops; i++ {
		if err := limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "limiter.Wait failed")
		}
		if i%2 == 0 {
			addr, err := mem.Alloc(cpu)
			if errors.Is(err, memory.ErrNoFreePage) {
				st.noPage.Add(1)
				continue
			}
			if err != nil {
				return errors.Wrap(err, "Alloc failed")
			}
			page := mem.Page(addr)
			for _, c := range page {
				if c != memory.AllocJunk {
					st.badPattern.Add(1)
					break
				}
			}
			for j := range page {
				page[j] = byte(id)
			}
			mem.Free(cpu, addr)
			st.pages.Add(1)
			continue
		}

		blockno := common.BlockNo((id*31 + i) % *blocks)
		b := cache.Acquire(pid, 1, blockno)
		// the first byte counts the updates of the block
		b.Data()[0]++
		cache.Commit(pid, b)
		cache.Release(pid, b)
		st.blocks.Add(1)
	}
	return nil
}
