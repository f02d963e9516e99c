package vanga

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Future is the handle returned by TaskRunner.Submit: Wait blocks until the
// submitted task has finished and returns its error exactly once.
type Future interface {
	Wait() error
}

// TaskRunner is an externally supplied work pool. Its only contract is
// submit(task) -> future, so the tree learner can fan candidate-feature
// scoring and sibling-subtree growth out across threads without depending
// on any particular pool implementation. Every Submit call is independent:
// unlike a single shared wait-group scope, nested or concurrent Submit/Wait
// pairs on the same TaskRunner never interfere with each other, which
// matters here because growNode recurses into itself from within tasks it
// already submitted.
type TaskRunner interface {
	// Submit schedules fn to run, possibly concurrently with other
	// submitted tasks, and returns a Future for its completion. fn should
	// respect ctx cancellation on long-running work.
	Submit(fn func(ctx context.Context) error) Future
}

// errgroupFuture adapts a single-task errgroup.Group to the Future
// interface: one Group per Submit call, so concurrent Submit calls from
// different goroutines never share mutable wait-group state.
type errgroupFuture struct {
	group *errgroup.Group
}

func (f *errgroupFuture) Wait() error {
	return f.group.Wait()
}

// errgroupRunner is the default TaskRunner. It bounds concurrency with a
// buffered channel semaphore shared across every task it schedules, while
// each Submit gets its own single-task errgroup.Group purely to carry the
// task's context and recovered error back through Wait.
type errgroupRunner struct {
	ctx context.Context
	sem chan struct{}
}

// NewTaskRunner returns a TaskRunner whose tasks share ctx and are capped at
// maxConcurrency simultaneous goroutines (0 or negative means unbounded).
func NewTaskRunner(ctx context.Context, maxConcurrency int) TaskRunner {
	var sem chan struct{}
	if maxConcurrency > 0 {
		sem = make(chan struct{}, maxConcurrency)
	}
	return &errgroupRunner{ctx: ctx, sem: sem}
}

func (r *errgroupRunner) Submit(fn func(ctx context.Context) error) Future {
	group, groupCtx := errgroup.WithContext(r.ctx)
	if r.sem == nil {
		group.Go(func() error { return fn(groupCtx) })
		return &errgroupFuture{group: group}
	}
	select {
	case r.sem <- struct{}{}:
		group.Go(func() error {
			defer func() { <-r.sem }()
			return fn(groupCtx)
		})
	default:
		// Every slot is taken, possibly by tasks waiting on this very
		// submission: run fn in the caller's goroutine instead of blocking.
		err := fn(groupCtx)
		group.Go(func() error { return err })
	}
	return &errgroupFuture{group: group}
}
