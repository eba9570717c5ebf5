// Package task runs cancellable units of work on background goroutines
// with an optional concurrency limit. Each unit completes exactly once.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/adamwoolhether/httpkit/errs"
)

// ErrGroupShutdown is returned by work started after [Group.Shutdown].
var ErrGroupShutdown = errors.New("task group shut down")

// WorkFunc is the signature for background work.
type WorkFunc func(ctx context.Context) error

// Group manages concurrently running work.
type Group struct {
	wg       sync.WaitGroup
	mu       sync.Mutex
	sem      chan struct{}
	shutdown atomic.Bool
	errs     []error
}

// NewGroup creates a Group with the given concurrency limit.
// If maxConcurrent <= 0, concurrency is unlimited.
func NewGroup(maxConcurrent int) *Group {
	g := &Group{}
	if maxConcurrent > 0 {
		g.sem = make(chan struct{}, maxConcurrent)
	}
	return g
}

// Wait blocks until all work in the group completes and returns the
// errors recorded since the previous Wait, joined.
func (g *Group) Wait() error {
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()

	err := errors.Join(g.errs...)
	g.errs = nil

	return err
}

// Shutdown prevents new work from executing in this group. Work already
// running is not interrupted.
func (g *Group) Shutdown() {
	g.shutdown.Store(true)
}

// Start launches fn in a new goroutine and returns its Handle. onDone,
// if non-nil, is called exactly once with the final error after the
// Handle's Done channel is closed.
func (g *Group) Start(ctx context.Context, fn WorkFunc, onDone func(error)) *Handle {
	ctx, cancel := context.WithCancelCause(ctx)
	h := &Handle{
		id:     uuid.NewString(),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			cancel(nil)
			close(h.done)
			if h.err != nil {
				g.recordErr(h.err)
			}
			if onDone != nil {
				onDone(h.err)
			}
		}()

		if g.sem != nil {
			select {
			case g.sem <- struct{}{}:
				defer func() {
					<-g.sem
				}()
			case <-ctx.Done():
				h.err = cancelled(ctx, ctx.Err())
				return
			}
		}

		if g.shutdown.Load() {
			h.err = ErrGroupShutdown
			return
		}

		if err := fn(ctx); err != nil {
			h.err = cancelled(ctx, err)
		}
	}()

	return h
}

// cancelled marks err with errs.ErrCancelled when the work was stopped
// through Handle.Cancel.
func cancelled(ctx context.Context, err error) error {
	if ctx.Err() == nil || !errors.Is(context.Cause(ctx), errs.ErrCancelled) || errors.Is(err, errs.ErrCancelled) {
		return err
	}

	return fmt.Errorf("%w: %w", errs.ErrCancelled, err)
}

func (g *Group) recordErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs = append(g.errs, err)
}

// Handle represents in-flight or completed work.
type Handle struct {
	id     string
	done   chan struct{}
	err    error
	cancel context.CancelCauseFunc
}

// ID returns a unique identifier for the work.
func (h *Handle) ID() string { return h.id }

// Done returns a channel that is closed when the work completes.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err blocks until the work completes and returns its error.
func (h *Handle) Err() error {
	<-h.done
	return h.err
}

// Cancel stops the work's context. It is a no-op once the work completed.
func (h *Handle) Cancel() {
	h.cancel(errs.ErrCancelled)
}
