// Package download streams HTTP response bodies to disk with resume
// support, optional checksum validation and progress reporting.
//
// # Partial files
//
// [Handle] writes the body to a partial file, then moves it to the path
// chosen by a destination [Policy]. Intermediate directories are created
// and an existing file at the destination is replaced:
//
//	path, token, err := download.Handle(ctx, session, resp, logger,
//		download.WithDestination(func(name string) string {
//			return filepath.Join(dir, name)
//		}),
//	)
//
// # Resuming
//
// When the transfer is interrupted after some bytes were written, Handle
// keeps the partial file and returns a [ResumeToken]. [ParseResumeToken]
// turns it back into a [Session] whose Range request continues where the
// previous attempt stopped.
//
// Most callers should use the higher-level
// [github.com/adamwoolhether/httpkit/client] package, which invokes
// Handle internally and re-exports the download options.
package download
