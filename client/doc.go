// Package client runs HTTP requests described by [request.Descriptor]
// values as cancellable background tasks on top of [net/http].
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options:
//
//	c, err := client.Build(
//		client.WithTimeout(10 * time.Second),
//		client.WithUserAgent("myapp/1.0"),
//		client.WithMaxConcurrent(4),
//	)
//
// # Making Requests
//
// Every operation returns a [Task] right away. The status code of a
// response is never interpreted:
//
//	d, err := request.New(request.MethodGet, "https://api.example.com/v1/items")
//	t, err := c.Fetch(ctx, d)
//	resp, err := t.Wait()
//
// A modifier runs last, immediately before the request leaves:
//
//	t, err := c.Fetch(ctx, d, client.WithModifier(func(r *http.Request) error {
//		r.Header.Set("X-Signature", sign(r))
//		return nil
//	}))
//
// # Uploads
//
// [Client.Upload] streams a [request.Multipart] body and reports progress:
//
//	t, err := c.Upload(ctx, d, client.WithProgress(func(p client.Progress) {
//		fmt.Printf("%.0f%%\n", p.Fraction()*100)
//	}))
//
// # Downloads
//
// [Client.Download] writes the body to a file and returns its path as
// the Response body. An interrupted download can be continued:
//
//	t, err := c.Download(ctx, d,
//		client.WithDestination(func(name string) string { return filepath.Join(dir, name) }),
//		client.WithChecksum(sha256.New(), expectedHex),
//	)
//	if _, err := t.Wait(); err != nil {
//		if tok, ok := t.ResumeToken(); ok {
//			t, err = c.ResumeDownload(ctx, tok)
//		}
//	}
//
// For lower-level control see the
// [github.com/adamwoolhether/httpkit/client/download] package.
package client
