// Package workers evaluates batches of parameter points in parallel against
// one shared statevector engine.
package workers

import (
	"sync"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/circuit"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/pauli"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/statevector"
)

// DefaultWorkers is used when a pool is created with a non-positive size.
const DefaultWorkers = 10

// Evaluator computes the energy of a bound circuit. It must be safe for
// concurrent use; statevector.Engine is.
type Evaluator interface {
	Evaluate(c *circuit.Concrete, o *pauli.Observable) (*statevector.EvaluationResult, error)
}

// ProgressFunc is called after each completed point with the number done so far.
type ProgressFunc func(done, total int)

// Result is the outcome of one point of a batch.
type Result struct {
	Params       []float64 `json:"params"`
	Value        float64   `json:"value"`
	Blocks       int       `json:"blocks"`
	PlanCacheHit bool      `json:"plan_cache_hit"`
	Error        string    `json:"error,omitempty"`
}

// WorkerPool manages a pool of worker goroutines for parallel evaluation
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = DefaultWorkers
	}
	return &WorkerPool{
		numWorkers: numWorkers,
	}
}

// NumWorkers is the pool size.
func (wp *WorkerPool) NumWorkers() int {
	return wp.numWorkers
}

// EvaluateBatch binds c to every point (in Parameters() order) and evaluates
// it against o. Results keep the order of points. A point that fails to bind
// or evaluate carries its error in Result.Error; the rest of the batch still
// runs. progress may be nil and is called from one goroutine at a time.
func (wp *WorkerPool) EvaluateBatch(
	ev Evaluator,
	c *circuit.Circuit,
	o *pauli.Observable,
	points [][]float64,
	progress ProgressFunc,
) []Result {
	numPoints := len(points)
	if numPoints == 0 {
		return []Result{}
	}

	jobs := make(chan jobItem, numPoints)
	results := make(chan resultItem, numPoints)

	var wg sync.WaitGroup
	numActualWorkers := wp.numWorkers
	if numPoints < numActualWorkers {
		numActualWorkers = numPoints // Don't spawn more workers than points
	}

	for i := 0; i < numActualWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(jobs, results, ev, c, o)
		}()
	}

	for idx, point := range points {
		jobs <- jobItem{index: idx, params: point}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]Result, numPoints)
	done := 0
	for r := range results {
		out[r.index] = r.result
		done++
		if progress != nil {
			progress(done, numPoints)
		}
	}

	return out
}

type jobItem struct {
	index  int
	params []float64
}

type resultItem struct {
	index  int
	result Result
}

func worker(
	jobs <-chan jobItem,
	results chan<- resultItem,
	ev Evaluator,
	c *circuit.Circuit,
	o *pauli.Observable,
) {
	for job := range jobs {
		r := Result{Params: append([]float64(nil), job.params...)}

		bound, err := c.BindVector(job.params)
		if err == nil {
			var res *statevector.EvaluationResult
			res, err = ev.Evaluate(bound, o)
			if err == nil {
				r.Value = res.ExpectationValue
				r.Blocks = res.Blocks
				r.PlanCacheHit = res.PlanCacheHit
			}
		}
		if err != nil {
			r.Error = err.Error()
		}

		results <- resultItem{index: job.index, result: r}
	}
}
