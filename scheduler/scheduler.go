// Package scheduler runs many simulations concurrently as benchmark and
// compare jobs, tracks their live progress, and aggregates results.
// Grounded on alphaMonteCarloVanillaTrain's agent-worker -> channerics.Merge
// fan-in -> single estimator shape, generalized from "workers emit
// episodes, one estimator updates state" to "workers emit completed
// simulation results, one aggregator folds them into a summary." Worker
// goroutine lifecycle is grounded on client[T].Sync's errgroup.WithContext
// pattern.
package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"

	"reconsim/atomic_float"
	"reconsim/engine"
	"reconsim/policy"
)

// Status is a job's lifecycle state.
type Status string

const (
	Pending   Status = "pending"
	Running   Status = "running"
	Completed Status = "completed"
	Failed    Status = "failed"
)

// RunSummary is one completed simulation's headline numbers, kept per-run
// in a job's result so a caller can inspect the distribution, not just the
// aggregate.
type RunSummary struct {
	Seed    int64   `json:"seed"`
	Policy  string  `json:"policy"`
	Success bool    `json:"success"`
	Steps   int     `json:"steps"`
	Coverage float64 `json:"coverage"`
	Error   string  `json:"error,omitempty"`
}

// Aggregate is the folded statistics over one batch of runs (spec §4.5/4.6):
// success rate over all runs, and the full set of per-run metrics averaged
// over successful runs only, plus the worst-case frontier and partition
// counts observed across the whole batch.
type Aggregate struct {
	NumRuns              int     `json:"num_runs"`
	SuccessRate          float64 `json:"success_rate"`
	AvgSteps             float64 `json:"avg_steps"`
	AvgCoverage          float64 `json:"avg_coverage"`
	AvgEfficiency        float64 `json:"avg_efficiency"`
	AvgExplorationRate   float64 `json:"avg_exploration_rate"`
	AvgTurns             float64 `json:"avg_turns"`
	AvgCollisions        float64 `json:"avg_collisions"`
	AvgDistance          float64 `json:"avg_distance"`
	AvgIdleSteps         float64 `json:"avg_idle_steps"`
	AvgBacktracks        float64 `json:"avg_backtracks"`
	AvgFrontierSize      float64 `json:"avg_frontier_size"`
	AvgConnectivityRatio float64 `json:"avg_connectivity_ratio"`
	BestCoverage         float64 `json:"best_coverage"`
	MaxFrontierSize      int     `json:"max_frontier_size"`
	MaxNetworkPartitions int     `json:"max_network_partitions"`
	Runs                 []RunSummary `json:"runs"`
}

// BenchmarkRequest runs NumRuns simulations of one policy, seeded
// base_seed, base_seed+1, ... for reproducibility.
type BenchmarkRequest struct {
	Template engine.Config
	NumRuns  int
	BaseSeed int64
}

// CompareRequest runs NumRuns simulations of each named policy, reusing the
// identical seed sequence across policies so comparisons are fair (spec
// §4.6: "compare jobs must reuse identical seeds across policies").
type CompareRequest struct {
	Template    engine.Config
	PolicyNames []string
	NumRuns     int
	BaseSeed    int64
}

// CompareResult maps policy name to its aggregate.
type CompareResult map[string]*Aggregate

// Job tracks one scheduled benchmark or compare run. Progress and Status
// are updated concurrently from worker goroutines and read by HTTP
// handlers, so both go through atomic operations rather than a mutex on
// the hot path; Result/Err are written once at completion under mu.
type Job struct {
	ID        string
	Total     int32
	progress  int32 // atomic count of completed runs
	status    atomic.Value // Status
	bestSoFar *atomic_float.AtomicFloat64

	mu     sync.Mutex
	result interface{}
	err    error

	startedAt time.Time
}

func newJob(id string, total int) *Job {
	j := &Job{ID: id, Total: int32(total), bestSoFar: atomic_float.NewAtomicFloat64(0), startedAt: time.Now()}
	j.status.Store(Pending)
	return j
}

// Progress returns (completed, total).
func (j *Job) Progress() (int, int) {
	return int(atomic.LoadInt32(&j.progress)), int(j.Total)
}

// StatusValue returns the job's current lifecycle state.
func (j *Job) StatusValue() Status {
	return j.status.Load().(Status)
}

// BestCoverageSoFar returns the highest per-run coverage observed so far,
// useful for a live progress display before the job finishes.
func (j *Job) BestCoverageSoFar() float64 {
	return j.bestSoFar.AtomicRead()
}

// Result returns the job's final result and error, if it has completed.
func (j *Job) Result() (interface{}, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.err
}

func (j *Job) finish(result interface{}, err error) {
	j.mu.Lock()
	j.result = result
	j.err = err
	j.mu.Unlock()
	if err != nil {
		j.status.Store(Failed)
	} else {
		j.status.Store(Completed)
	}
}

func (j *Job) tick(coverage float64) {
	atomic.AddInt32(&j.progress, 1)
	j.bestSoFar.AtomicMax(coverage)
}

// Registry holds all jobs ever submitted, keyed by ID.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	next int64
}

// NewRegistry returns an empty job Registry.
func NewRegistry() *Registry {
	return &Registry{jobs: map[string]*Job{}}
}

// Get returns the job registered under id.
func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	return j, ok
}

func (r *Registry) newID(prefix string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	return fmt.Sprintf("%s-%d", prefix, r.next)
}

func (r *Registry) put(j *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = j
}

// workerCount caps concurrent simulation runs at the smaller of numRuns and
// the host's CPU count, matching the nworkers-bounded agent pool pattern.
func workerCount(numRuns int) int {
	n := runtime.NumCPU()
	if numRuns < n {
		n = numRuns
	}
	if n < 1 {
		n = 1
	}
	return n
}

type runOutcome struct {
	seed    int64
	policy  string
	result  *engine.Result
	err     error
}

// runBatch partitions cfgs across workerCount(len(cfgs)) goroutines, fans
// their results into one channel via channerics.Merge, and collects them
// as they arrive, updating job's live progress after each one. The raw
// outcomes are returned; callers fold them with aggregate.
func runBatch(ctx context.Context, reg *policy.Registry, job *Job, cfgs []engine.Config, seeds []int64, policies []string) []runOutcome {
	n := workerCount(len(cfgs))
	group, gctx := errgroup.WithContext(ctx)

	chanWorkers := make([]<-chan *runOutcome, 0, n)
	chunks := partitionIndices(len(cfgs), n)
	for _, idxs := range chunks {
		idxs := idxs
		ch := make(chan *runOutcome)
		chanWorkers = append(chanWorkers, ch)
		group.Go(func() error {
			defer close(ch)
			for _, i := range idxs {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				res, err := engine.Run(cfgs[i], reg)
				out := &runOutcome{seed: seeds[i], policy: policies[i], result: res, err: err}
				select {
				case ch <- out:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	merged := channerics.Merge(gctx.Done(), chanWorkers...)
	outcomes := make([]runOutcome, 0, len(cfgs))
	for o := range merged {
		coverage := 0.0
		if o.result != nil {
			coverage = o.result.Metrics.Coverage
		}
		job.tick(coverage)
		outcomes = append(outcomes, *o)
	}
	_ = group.Wait()
	return outcomes
}

// partitionIndices splits [0,total) into n roughly-equal, contiguous
// chunks, preserving index order within each chunk so seed assignment
// stays deterministic regardless of goroutine scheduling.
func partitionIndices(total, n int) [][]int {
	if n < 1 {
		n = 1
	}
	chunks := make([][]int, 0, n)
	base := total / n
	rem := total % n
	idx := 0
	for i := 0; i < n && idx < total; i++ {
		size := base
		if i < rem {
			size++
		}
		chunk := make([]int, 0, size)
		for k := 0; k < size && idx < total; k++ {
			chunk = append(chunk, idx)
			idx++
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

func summarize(o runOutcome) RunSummary {
	s := RunSummary{Seed: o.seed, Policy: o.policy}
	if o.err != nil {
		s.Error = o.err.Error()
		return s
	}
	s.Success = o.result.Metrics.Success
	s.Steps = o.result.Metrics.Steps
	s.Coverage = o.result.Metrics.Coverage
	return s
}

// meanInts returns the arithmetic mean of series, or 0 for an empty series.
func meanInts(series []int) float64 {
	if len(series) == 0 {
		return 0
	}
	sum := 0
	for _, v := range series {
		sum += v
	}
	return float64(sum) / float64(len(series))
}

func aggregate(outcomes []runOutcome) *Aggregate {
	agg := &Aggregate{NumRuns: len(outcomes)}
	successes := 0
	var stepsSum, coverageSum, efficiencySum, explorationSum float64
	var turnsSum, collisionsSum, distanceSum, idleSum, backtrackSum float64
	var frontierSum, connectivitySum float64
	for _, o := range outcomes {
		agg.Runs = append(agg.Runs, summarize(o))
		if o.err != nil || o.result == nil {
			continue
		}
		m := o.result.Metrics
		if m.Coverage > agg.BestCoverage {
			agg.BestCoverage = m.Coverage
		}
		if m.MaxFrontierSize > agg.MaxFrontierSize {
			agg.MaxFrontierSize = m.MaxFrontierSize
		}
		if m.MaxNetworkPartitions > agg.MaxNetworkPartitions {
			agg.MaxNetworkPartitions = m.MaxNetworkPartitions
		}
		if m.Success {
			successes++
			stepsSum += float64(m.Steps)
			coverageSum += m.Coverage
			efficiencySum += m.Efficiency
			explorationSum += m.ExplorationRate
			turnsSum += float64(m.TotalTurns)
			collisionsSum += float64(m.TotalCollisions)
			distanceSum += m.TotalDistance
			idleSum += float64(m.IdleSteps)
			backtrackSum += float64(m.Backtracks)
			frontierSum += meanInts(m.FrontierSizeSeries)
			connectivitySum += m.ConnectivityRatio
		}
	}
	if len(outcomes) > 0 {
		agg.SuccessRate = float64(successes) / float64(len(outcomes))
	}
	if successes > 0 {
		n := float64(successes)
		agg.AvgSteps = stepsSum / n
		agg.AvgCoverage = coverageSum / n
		agg.AvgEfficiency = efficiencySum / n
		agg.AvgExplorationRate = explorationSum / n
		agg.AvgTurns = turnsSum / n
		agg.AvgCollisions = collisionsSum / n
		agg.AvgDistance = distanceSum / n
		agg.AvgIdleSteps = idleSum / n
		agg.AvgBacktracks = backtrackSum / n
		agg.AvgFrontierSize = frontierSum / n
		agg.AvgConnectivityRatio = connectivitySum / n
	}
	return agg
}

// SubmitBenchmark registers and starts a benchmark job, returning
// immediately with the job's ID; progress and the final Aggregate are
// retrieved later via Registry.Get.
func (r *Registry) SubmitBenchmark(ctx context.Context, reg *policy.Registry, req BenchmarkRequest) *Job {
	job := newJob(r.newID("bench"), req.NumRuns)
	r.put(job)

	go func() {
		job.status.Store(Running)
		cfgs := make([]engine.Config, req.NumRuns)
		seeds := make([]int64, req.NumRuns)
		policies := make([]string, req.NumRuns)
		for i := 0; i < req.NumRuns; i++ {
			cfg := req.Template
			cfg.Seed = req.BaseSeed + int64(i)
			cfgs[i] = cfg
			seeds[i] = cfg.Seed
			policies[i] = cfg.PolicyName
		}
		outcomes := runBatch(ctx, reg, job, cfgs, seeds, policies)
		job.finish(aggregate(outcomes), nil)
	}()

	return job
}

// SubmitCompare registers and starts a compare job running every named
// policy over the same BaseSeed..BaseSeed+NumRuns-1 sequence.
func (r *Registry) SubmitCompare(ctx context.Context, reg *policy.Registry, req CompareRequest) *Job {
	total := req.NumRuns * len(req.PolicyNames)
	job := newJob(r.newID("compare"), total)
	r.put(job)

	go func() {
		job.status.Store(Running)
		cfgs := make([]engine.Config, 0, total)
		seeds := make([]int64, 0, total)
		policies := make([]string, 0, total)
		for _, name := range req.PolicyNames {
			for i := 0; i < req.NumRuns; i++ {
				cfg := req.Template
				cfg.PolicyName = name
				cfg.Seed = req.BaseSeed + int64(i)
				cfgs = append(cfgs, cfg)
				seeds = append(seeds, cfg.Seed)
				policies = append(policies, name)
			}
		}
		outcomes := runBatch(ctx, reg, job, cfgs, seeds, policies)

		byPolicy := map[string][]runOutcome{}
		for _, o := range outcomes {
			byPolicy[o.policy] = append(byPolicy[o.policy], o)
		}
		result := CompareResult{}
		for _, name := range req.PolicyNames {
			result[name] = aggregate(byPolicy[name])
		}
		job.finish(result, nil)
	}()

	return job
}
