package variant

import (
	"runtime"
	"sync"

	"github.com/inodb/bamcall/internal/allele"
	"github.com/inodb/bamcall/internal/pileup"
)

// WorkItem holds a pileup column ready for calling.
type WorkItem struct {
	Seq    int
	Column *pileup.Column
	Ref    allele.Reference // read-only, shared between workers
}

// WorkResult holds the records called for a single column.
type WorkResult struct {
	Seq     int
	Column  *pileup.Column
	Records []Record
	Err     error
}

// ParallelCall calls work items using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use OrderedCollect to consume results in sequence-number order.
// If workers is 0, runtime.NumCPU() is used.
func ParallelCall(items <-chan WorkItem, workers int, opts Options) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for item := range items {
				recs, err := CallColumn(item.Column, item.Ref, opts)
				results <- WorkResult{
					Seq:     item.Seq,
					Column:  item.Column,
					Records: recs,
					Err:     err,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
