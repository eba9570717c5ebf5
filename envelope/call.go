package envelope

import (
	"context"

	"github.com/adamwoolhether/httpkit/client"
	"github.com/adamwoolhether/httpkit/request"
)

// Call fetches d with c, waits for the response and decodes its
// envelope. Transport failures are returned as [*errs.TransportError],
// envelope failures as [*errs.DecodeError]; the Response is returned
// whenever one arrived.
func Call(ctx context.Context, c *client.Client, d request.Descriptor, optFns ...Option) (client.Response, Payload, error) {
	opts, err := applyOptions(optFns)
	if err != nil {
		return client.Response{}, Payload{}, err
	}

	t, err := c.Fetch(ctx, d, opts.taskOpts...)
	if err != nil {
		return client.Response{}, Payload{}, err
	}

	resp, err := t.Wait()
	if err != nil {
		return client.Response{}, Payload{}, err
	}

	p, err := Decode(resp, optFns...)
	if err != nil {
		return resp, Payload{}, err
	}

	return resp, p, nil
}

// CallData is [Call] followed by [Deserialize] with s.
func CallData[T any](ctx context.Context, c *client.Client, d request.Descriptor, s Strategy[T], optFns ...Option) (T, error) {
	_, p, err := Call(ctx, c, d, optFns...)
	if err != nil {
		var zero T
		return zero, err
	}

	return Deserialize(p, s)
}
