package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/slabkit/internal/spin"
	"github.com/joshuapare/slabkit/slab"
)

var (
	benchChunk   int
	benchAlign   int
	benchWorkers int
	benchOps     int
	benchBacking string
)

func init() {
	cmd := newBenchCmd()
	cmd.Flags().IntVar(&benchChunk, "chunk", 64, "Chunk size in bytes")
	cmd.Flags().IntVar(&benchAlign, "align", 0, "Chunk alignment (0 = pointer width)")
	cmd.Flags().IntVar(&benchWorkers, "workers", 4, "Concurrent workers")
	cmd.Flags().IntVar(&benchOps, "ops", 10000, "Allocations per worker")
	cmd.Flags().StringVar(&benchBacking, "backing", "default", "Block backing: heap, mmap or default")
	rootCmd.AddCommand(cmd)
}

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Allocate and free from one locked pool on many goroutines",
		Long: `The bench command starts W workers that each allocate M chunks from a
single pool guarded by a spin lock, checks that no chunk was handed out
twice, frees everything, releases the empty blocks and reports throughput.

Example:
  slabctl bench --chunk 64 --workers 8 --ops 100000
  slabctl bench --chunk 256 --backing heap --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench()
		},
	}
	return cmd
}

// BenchResult is the JSON form of bench output.
type BenchResult struct {
	Workers   int           `json:"workers"`
	Ops       int           `json:"ops_per_worker"`
	Peak      slab.Counter  `json:"peak"`
	Final     slab.Counter  `json:"final"`
	Released  int           `json:"released"`
	Stats     slab.Stats    `json:"stats"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	OpsPerSec float64       `json:"ops_per_sec"`
}

func runBench() error {
	if benchWorkers <= 0 || benchOps <= 0 {
		return fmt.Errorf("workers and ops must be positive (got %d, %d)", benchWorkers, benchOps)
	}
	backing, err := backingFor(benchBacking)
	if err != nil {
		return err
	}
	pool, err := slab.New(slab.Config{ChunkSize: benchChunk, Align: benchAlign, Backing: backing})
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}
	defer pool.Close()

	var lock spin.Lock
	refs := make([][]slab.Ref, benchWorkers)
	errs := make([]error, benchWorkers)

	printVerbose("Allocating %s chunks on %d workers\n", formatNumber(benchWorkers*benchOps), benchWorkers)
	start := time.Now()

	var wg sync.WaitGroup
	for w := range benchWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := make([]slab.Ref, 0, benchOps)
			for range benchOps {
				lock.Lock()
				ref, mem, allocErr := pool.Alloc()
				lock.Unlock()
				if allocErr != nil {
					errs[w] = allocErr
					break
				}
				mem[0] = byte(w)
				out = append(out, ref)
			}
			refs[w] = out
		}()
	}
	wg.Wait()

	peak := pool.Count()
	seen := make(map[slab.Ref]struct{}, peak.Chunks)
	for w, out := range refs {
		if errs[w] != nil {
			return fmt.Errorf("worker %d: %w", w, errs[w])
		}
		for _, ref := range out {
			if _, dup := seen[ref]; dup {
				return fmt.Errorf("chunk %s handed out twice", ref)
			}
			seen[ref] = struct{}{}
		}
	}

	for w := range benchWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, ref := range refs[w] {
				lock.Lock()
				freeErr := pool.Free(ref)
				lock.Unlock()
				if freeErr != nil {
					errs[w] = freeErr
					return
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	for w, e := range errs {
		if e != nil {
			return fmt.Errorf("worker %d: %w", w, e)
		}
	}
	released := pool.Release()
	if err := pool.CheckInvariants(); err != nil {
		return err
	}

	total := 2 * benchWorkers * benchOps
	res := BenchResult{
		Workers:   benchWorkers,
		Ops:       benchOps,
		Peak:      peak,
		Final:     pool.Count(),
		Released:  released,
		Stats:     pool.Stats(),
		Elapsed:   elapsed,
		OpsPerSec: float64(total) / elapsed.Seconds(),
	}
	if jsonOut {
		return printJSON(res)
	}

	printHeader(fmt.Sprintf("Bench: %s", pool.Name()))
	printField("Workers", formatNumber(benchWorkers))
	printField("Operations", formatNumber(total))
	printField("Elapsed", elapsed.Round(time.Microsecond).String())
	printField("Throughput", numbers.Sprintf("%.0f ops/s", res.OpsPerSec))
	printField("Peak blocks", formatNumber(peak.Blocks))
	printField("Released", formatNumber(released))
	printField("Slow path", formatNumber(res.Stats.AllocSlowPath))
	printCounter(res.Final)
	return nil
}
