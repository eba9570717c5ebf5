package client

import (
	"errors"

	"github.com/adamwoolhether/httpkit/client/download"
	"github.com/adamwoolhether/httpkit/client/task"
	"github.com/adamwoolhether/httpkit/errs"
)

// Task is an in-flight or completed request started by a [Client].
type Task struct {
	op  string
	url string
	h   *task.Handle

	// Written by the task goroutine before its handle is done.
	resp   Response
	resume download.ResumeToken
}

// ID returns a unique identifier for the task.
func (t *Task) ID() string { return t.h.ID() }

// Done returns a channel that is closed when the task completes.
func (t *Task) Done() <-chan struct{} { return t.h.Done() }

// Wait blocks until the task completes. Failures below the application
// layer, cancellation included, are returned as [*errs.TransportError].
func (t *Task) Wait() (Response, error) {
	return t.result(t.h.Err())
}

// Cancel stops the task. A task that already completed is unaffected.
func (t *Task) Cancel() { t.h.Cancel() }

// ResumeToken returns the token of an interrupted download. ok is false
// while the task runs and when nothing can be resumed.
func (t *Task) ResumeToken() (tok download.ResumeToken, ok bool) {
	select {
	case <-t.h.Done():
	default:
		return nil, false
	}

	return t.resume, t.resume != nil
}

func (t *Task) result(err error) (Response, error) {
	if err == nil {
		return t.resp, nil
	}

	var te *errs.TransportError
	if errors.As(err, &te) {
		return Response{}, err
	}

	return Response{}, &errs.TransportError{Op: t.op, URL: t.url, Err: err}
}
