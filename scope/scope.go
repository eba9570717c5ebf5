// Package scope ties the lifetime of resources, such as in-flight tasks,
// to an owner. Closing the scope disposes everything still registered.
package scope

import (
	"errors"
	"io"
	"sync"
)

// Scope holds disposers and runs them once, in reverse order of
// registration, when closed. The zero value is ready to use.
type Scope struct {
	mu     sync.Mutex
	next   uint64
	fns    map[uint64]func()
	order  []uint64
	errs   []error
	closed bool
}

// New returns an open Scope.
func New() *Scope {
	return &Scope{}
}

// Add registers fn and returns a func removing it again. Adding to a
// closed scope runs fn immediately.
func (s *Scope) Add(fn func()) (release func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fn()
		return func() {}
	}

	if s.fns == nil {
		s.fns = make(map[uint64]func())
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.fns, id)
	}
}

// AddCloser registers c.Close. Its error is returned by [Scope.Close];
// a closer added after Close is closed at once and its error dropped.
func (s *Scope) AddCloser(c io.Closer) (release func()) {
	return s.Add(func() {
		if err := c.Close(); err != nil {
			s.mu.Lock()
			s.errs = append(s.errs, err)
			s.mu.Unlock()
		}
	})
}

// Len reports the number of registered disposers.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}

// Close runs the registered disposers in reverse order and returns the
// errors of closers registered with AddCloser. Only the first call has
// an effect.
func (s *Scope) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true

	var pending []func()
	for i := len(s.order) - 1; i >= 0; i-- {
		if fn, ok := s.fns[s.order[i]]; ok {
			pending = append(pending, fn)
		}
	}
	s.fns = nil
	s.order = nil
	s.mu.Unlock()

	for _, fn := range pending {
		fn()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err := errors.Join(s.errs...)
	s.errs = nil

	return err
}
