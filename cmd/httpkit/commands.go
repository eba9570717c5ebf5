package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/adamwoolhether/httpkit/client"
	"github.com/adamwoolhether/httpkit/envelope"
	"github.com/adamwoolhether/httpkit/internal/stub"
	"github.com/adamwoolhether/httpkit/request"
)

// pairs collects repeated key<sep>value flags.
type pairs struct {
	sep  string
	vals [][2]string
}

func (p *pairs) String() string { return fmt.Sprint(p.vals) }

func (p *pairs) Set(v string) error {
	k, val, ok := strings.Cut(v, p.sep)
	if !ok || k == "" {
		return fmt.Errorf("expected key%svalue, got %q", p.sep, v)
	}
	p.vals = append(p.vals, [2]string{strings.TrimSpace(k), strings.TrimSpace(val)})
	return nil
}

func parse(fs *flag.FlagSet, args []string, nArgs int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != nArgs {
		return nil, fmt.Errorf("%s: expected %d argument(s), got %d: %w", fs.Name(), nArgs, fs.NArg(), errUsage)
	}

	return fs.Args(), nil
}

// =============================================================================

func serve(ctx context.Context, cfg config, log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	dir := fs.String("files", "", "directory whose regular files are served under /files/{name}")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	opts := []stub.Option{stub.WithLogger(log)}
	if len(cfg.CORSOrigins) > 0 {
		opts = append(opts, stub.WithMiddleware(stub.CORS(cfg.CORSOrigins)))
	}
	if *dir != "" {
		entries, err := os.ReadDir(*dir)
		if err != nil {
			return fmt.Errorf("reading files dir: %w", err)
		}
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			b, err := os.ReadFile(filepath.Join(*dir, e.Name()))
			if err != nil {
				return fmt.Errorf("reading %s: %w", e.Name(), err)
			}
			opts = append(opts, stub.WithFile(e.Name(), b))
		}
	}

	l, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	return stub.Run(ctx, l, stub.New(opts...), log, cfg.ShutdownTimeout)
}

func fetch(ctx context.Context, cfg config, log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	method := fs.String("X", "GET", "request method")
	params := fs.String("json", "", "JSON object sent as the request body")
	decode := fs.Bool("envelope", false, "decode the response envelope")
	headers := &pairs{sep: ":"}
	fs.Var(headers, "H", "request header key:value, repeatable")

	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}

	reqOpts := make([]request.Option, 0, len(headers.vals)+1)
	for _, h := range headers.vals {
		reqOpts = append(reqOpts, request.WithHeader(h[0], h[1]))
	}
	if *params != "" {
		var obj map[string]any
		if err := json.Unmarshal([]byte(*params), &obj); err != nil {
			return fmt.Errorf("parsing -json: %w", err)
		}
		reqOpts = append(reqOpts, request.WithBody(request.JSON{Params: obj}))
	}

	d, err := request.New(request.Method(strings.ToUpper(*method)), rest[0], reqOpts...)
	if err != nil {
		return err
	}

	c, err := client.Build(cfg.clientOptions(log)...)
	if err != nil {
		return err
	}

	if *decode {
		resp, p, err := envelope.Call(ctx, c, d)
		if err != nil {
			return err
		}
		out := map[string]any{"status": resp.StatusCode, "errorCode": p.ErrorCode, "message": p.Message, "data": p.Data}
		return printJSON(out)
	}

	t, err := c.Fetch(ctx, d)
	if err != nil {
		return err
	}
	resp, err := t.Wait()
	if err != nil {
		return err
	}

	fmt.Println(resp.StatusCode)
	fmt.Println(client.RenderBody(resp.Body))

	return nil
}

func upload(ctx context.Context, cfg config, log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fields := &pairs{sep: "="}
	files := &pairs{sep: "="}
	fs.Var(fields, "F", "text field key=value, repeatable")
	fs.Var(files, "f", "file field=path, repeatable")

	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}

	body := request.Multipart{Fields: make(map[string]string, len(fields.vals))}
	for _, f := range fields.vals {
		body.Fields[f[0]] = f[1]
	}
	for _, f := range files.vals {
		body.Files = append(body.Files, request.OnDisk{Path: f[1], FieldName: f[0], FileName: filepath.Base(f[1])})
	}

	d, err := request.New(request.MethodPost, rest[0], request.WithBody(body))
	if err != nil {
		return err
	}

	c, err := client.Build(cfg.clientOptions(log)...)
	if err != nil {
		return err
	}

	t, err := c.Upload(ctx, d, client.WithProgress(logProgress(log, "upload")))
	if err != nil {
		return err
	}
	resp, err := t.Wait()
	if err != nil {
		return err
	}

	fmt.Println(resp.StatusCode)
	fmt.Println(client.RenderBody(resp.Body))

	return nil
}

func download(ctx context.Context, cfg config, log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	out := fs.String("o", "", "destination path; defaults to the suggested name in the working directory")
	checksum := fs.String("sha256", "", "expected hex SHA-256 of the file")
	tokenFile := fs.String("token", "httpkit.resume", "file receiving the resume token if the transfer is interrupted")

	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}

	d, err := request.New(request.MethodGet, rest[0])
	if err != nil {
		return err
	}

	c, err := client.Build(cfg.clientOptions(log)...)
	if err != nil {
		return err
	}

	t, err := c.Download(ctx, d, downloadOptions(log, *out, *checksum)...)
	if err != nil {
		return err
	}

	return finishDownload(t, log, *tokenFile)
}

func resume(ctx context.Context, cfg config, log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("resume", flag.ContinueOnError)
	out := fs.String("o", "", "destination path; defaults to the suggested name in the working directory")
	checksum := fs.String("sha256", "", "expected hex SHA-256 of the whole file")

	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}

	tok, err := os.ReadFile(rest[0])
	if err != nil {
		return fmt.Errorf("reading resume token: %w", err)
	}

	c, err := client.Build(cfg.clientOptions(log)...)
	if err != nil {
		return err
	}

	t, err := c.ResumeDownload(ctx, client.ResumeToken(tok), downloadOptions(log, *out, *checksum)...)
	if err != nil {
		return err
	}

	return finishDownload(t, log, rest[0])
}

func downloadOptions(log *slog.Logger, out, checksum string) []client.TaskOption {
	opts := []client.TaskOption{
		client.WithProgress(logProgress(log, "download")),
		client.WithDestination(func(suggested string) string {
			if out != "" {
				return out
			}
			return suggested
		}),
	}
	if checksum != "" {
		opts = append(opts, client.WithChecksum(sha256.New(), checksum))
	}

	return opts
}

// finishDownload waits for t and stores its resume token in tokenFile
// when the transfer can be continued.
func finishDownload(t *client.Task, log *slog.Logger, tokenFile string) error {
	resp, err := t.Wait()
	if err != nil {
		if tok, ok := t.ResumeToken(); ok {
			if werr := os.WriteFile(tokenFile, tok, 0o600); werr != nil {
				return errors.Join(err, fmt.Errorf("saving resume token: %w", werr))
			}
			log.Info("download interrupted", "resume", "httpkit resume "+tokenFile)
		}
		return err
	}

	os.Remove(tokenFile)
	fmt.Println(string(resp.Body))

	return nil
}

func logProgress(log *slog.Logger, op string) client.ProgressFunc {
	return func(p client.Progress) {
		log.Info(op, "completed", p.Completed, "total", p.Total, "fraction", fmt.Sprintf("%.2f", p.Fraction()))
	}
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))

	return nil
}
