package synth

import (
	"context"
	"fmt"
	"sync"

	"github.com/snpike/duet-astro/internal/flux"
	"github.com/snpike/duet-astro/internal/gti"
)

// exposureJob is a unit of work for the worker pool.
type exposureJob struct {
	index int
	slice gti.Interval
}

// exposureResult is the output of integrating one exposure.
type exposureResult struct {
	index  int
	sample Sample
	err    error
}

// integrateAll averages the model over every exposure on a fixed pool of
// goroutines. Results are placed by index, so the returned rows follow the
// order of slices. The first failure cancels the remaining jobs and is
// returned.
func (s *Synthesizer) integrateAll(ctx context.Context, ip *flux.Interpolant, slices []gti.Interval) ([]Sample, error) {
	if len(slices) == 0 {
		return []Sample{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("integrating exposures: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := min(s.config.Workers, len(slices))
	jobs := make(chan exposureJob, workers*2)
	results := make(chan exposureResult, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					return
				}
				result := s.integrate(ip, job)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, sl := range slices {
			select {
			case jobs <- exposureJob{index: i, slice: sl}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	rows := make([]Sample, len(slices))
	var (
		firstErr error
		done     int
	)
	for result := range results {
		if result.err != nil {
			if firstErr == nil {
				firstErr = result.err
				cancel()
			}
			continue
		}
		rows[result.index] = result.sample
		done++
	}

	if firstErr != nil {
		return nil, firstErr
	}
	if done != len(slices) {
		return nil, fmt.Errorf("integrated %d of %d exposures: %w", done, len(slices), context.Cause(ctx))
	}
	return rows, nil
}

// integrate samples the model on an even grid over one exposure and
// averages it.
func (s *Synthesizer) integrate(ip *flux.Interpolant, job exposureJob) exposureResult {
	sl := job.slice
	times := flux.Linspace(sl.Start, sl.End, s.config.SamplesPerExposure)
	values := ip.Sample(times)

	f, err := flux.AverageFluxRule(s.config.Rule, times, values)
	if err != nil {
		return exposureResult{index: job.index, err: fmt.Errorf("exposure %d %s: %w", job.index, sl, err)}
	}
	return exposureResult{
		index: job.index,
		sample: Sample{
			Time:     (sl.Start + sl.End) / 2,
			Flux:     f,
			Duration: sl.Duration(),
			NBin:     1,
		},
	}
}
