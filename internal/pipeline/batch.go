package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/felo/mail-render/internal/sanitize"
)

// BatchResult is the outcome for one message of a batch. Err is set when
// Result is the degraded snippet-only rendering.
type BatchResult struct {
	ID string
	Result
	Err error
}

// ProgressFunc is called once per finished message, from a single goroutine
type ProgressFunc func(done, total int, id string)

// ProcessBatch renders msgs with a bounded worker pool. Results are in
// input order and a failing message never affects its siblings.
func (p *Processor) ProcessBatch(ctx context.Context, msgs []Message, opts sanitize.Options) []BatchResult {
	return p.ProcessBatchWithProgress(ctx, msgs, opts, nil)
}

// ProcessBatchWithProgress is ProcessBatch with progress reporting
func (p *Processor) ProcessBatchWithProgress(ctx context.Context, msgs []Message, opts sanitize.Options, progress ProgressFunc) []BatchResult {
	results := make([]BatchResult, len(msgs))
	if len(msgs) == 0 {
		return results
	}

	workers := min(p.concurrency, len(msgs))
	jobChan := make(chan int, len(msgs))
	doneChan := make(chan int, len(msgs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go p.batchWorker(ctx, &wg, msgs, opts, results, jobChan, doneChan)
	}

	for i := range msgs {
		jobChan <- i
	}
	close(jobChan)

	go func() {
		wg.Wait()
		close(doneChan)
	}()

	done, failed := 0, 0
	for i := range doneChan {
		done++
		if results[i].Err != nil {
			failed++
		}
		if progress != nil {
			progress(done, len(msgs), results[i].ID)
		}
	}

	p.log.Debug().
		Int("messages", len(msgs)).
		Int("failed", failed).
		Int("workers", workers).
		Msg("batch complete")
	return results
}

// batchWorker owns results[i] for every index it receives
func (p *Processor) batchWorker(ctx context.Context, wg *sync.WaitGroup, msgs []Message, opts sanitize.Options,
	results []BatchResult, jobChan <-chan int, doneChan chan<- int) {
	defer wg.Done()

	for i := range jobChan {
		msg := msgs[i]
		res, err := p.processIsolated(ctx, msg, opts)
		if err != nil {
			p.log.Warn().Err(err).Str("message_id", msg.ID).Msg("message degraded to snippet")
			res = degraded(msg)
		}
		results[i] = BatchResult{ID: msg.ID, Result: res, Err: err}
		doneChan <- i
	}
}

func (p *Processor) processIsolated(ctx context.Context, msg Message, opts sanitize.Options) (res Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("processing panicked: %v", rec)
		}
	}()
	return p.Process(ctx, msg, opts)
}
