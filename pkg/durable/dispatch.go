package durable

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxConcurrency bounds fan-out when the caller passes a
// non-positive limit. Matches the chunk sizes the provider adapters use
// for batch endpoints.
const DefaultMaxConcurrency = 32

// BatchRequest is one item of a fan-out: a caller-chosen request ID and
// the operation payload.
type BatchRequest[P any] struct {
	RequestID string
	Payload   P
}

// BatchSuccess pairs a request ID with its output.
type BatchSuccess[Out any] struct {
	RequestID string
	Output    Out
}

// BatchFailure pairs a request ID with the error that failed it.
type BatchFailure struct {
	RequestID string
	Err       error
}

// BatchOutcome aggregates per-request results of a fan-out. Every input
// request ID appears in exactly one of Successes and Failures.
type BatchOutcome[Out any] struct {
	Successes []BatchSuccess[Out]
	Failures  []BatchFailure
}

// Dispatch issues requests through opFn with at most limit calls in
// flight. Requests are processed chunk by chunk: each chunk of size
// limit runs fully in parallel and the next chunk starts only once the
// whole chunk has finished. One request's failure never cancels its
// siblings or later chunks; it is routed into Failures and the batch
// carries on. Result order within Successes/Failures is not guaranteed
// to match input order.
//
// opFn is expected to pass through a durable call itself, so each
// request is individually recorded; fan-out is only used for stateless
// operations.
func Dispatch[P, Out any](ctx context.Context, requests []BatchRequest[P], limit int, opFn func(ctx context.Context, req BatchRequest[P]) (Out, error)) BatchOutcome[Out] {
	if limit <= 0 {
		limit = DefaultMaxConcurrency
	}

	outcome := BatchOutcome[Out]{}
	if len(requests) == 0 {
		return outcome
	}

	type itemResult struct {
		requestID string
		output    Out
		err       error
	}

	for begin := 0; begin < len(requests); begin += limit {
		end := begin + limit
		if end > len(requests) {
			end = len(requests)
		}
		chunk := requests[begin:end]

		results := make([]itemResult, len(chunk))
		var wg sync.WaitGroup
		for i, req := range chunk {
			wg.Add(1)
			go func(idx int, r BatchRequest[P]) {
				defer wg.Done()
				out, err := opFn(ctx, r)
				results[idx] = itemResult{requestID: r.RequestID, output: out, err: err}
			}(i, req)
		}
		wg.Wait()

		for _, res := range results {
			if res.err != nil {
				outcome.Failures = append(outcome.Failures, BatchFailure{
					RequestID: res.requestID,
					Err:       res.err,
				})
			} else {
				outcome.Successes = append(outcome.Successes, BatchSuccess[Out]{
					RequestID: res.requestID,
					Output:    res.output,
				})
			}
		}
	}

	return outcome
}

// DispatchOn is Dispatch with observer notifications from the worker the
// batch runs on behalf of.
func DispatchOn[P, Out any](ctx context.Context, w *Worker, requests []BatchRequest[P], limit int, opFn func(ctx context.Context, req BatchRequest[P]) (Out, error)) BatchOutcome[Out] {
	if limit <= 0 {
		limit = DefaultMaxConcurrency
	}
	start := time.Now()
	w.observer.OnBatchStart(ctx, &BatchStartEvent{
		WorkerID:  w.id,
		Requests:  len(requests),
		ChunkSize: limit,
		StartTime: start,
	})
	outcome := Dispatch(ctx, requests, limit, opFn)
	w.observer.OnBatchEnd(ctx, &BatchEndEvent{
		WorkerID:  w.id,
		Requests:  len(requests),
		Successes: len(outcome.Successes),
		Failures:  len(outcome.Failures),
		Duration:  time.Since(start),
	})
	return outcome
}
