package download

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultPrefix is prepended to the partial file name by the default
// destination.
const DefaultPrefix = "httpkit_"

// Policy maps a suggested file name to the final path of a download.
type Policy func(suggestedName string) string

// defaultDestination places the file beside the partial file.
func defaultDestination(partial string) string {
	return filepath.Join(filepath.Dir(partial), DefaultPrefix+filepath.Base(partial))
}

// SuggestedName picks a file name for resp: the Content-Disposition
// filename, else the last URL path segment, else fallback. The result
// never contains a path separator.
func SuggestedName(resp *http.Response, rawURL, fallback string) string {
	if resp != nil {
		if cd := resp.Header.Get("Content-Disposition"); cd != "" {
			if _, params, err := mime.ParseMediaType(cd); err == nil {
				if name := clean(params["filename"]); name != "" {
					return name
				}
			}
		}
	}

	if u, err := url.Parse(rawURL); err == nil {
		if name := clean(path.Base(u.Path)); name != "" {
			return name
		}
	}

	return clean(fallback)
}

func clean(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	switch name {
	case ".", "..", "/", "":
		return ""
	}

	return name
}

// place moves the partial file to dest, creating intermediate directories
// and replacing an existing file.
func place(partial, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing existing file: %w", err)
	}

	if err := os.Rename(partial, dest); err == nil {
		return nil
	}

	// Rename fails across filesystems; fall back to copying.
	if err := copyFile(partial, dest); err != nil {
		return fmt.Errorf("moving download: %w", err)
	}

	return os.Remove(partial)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
