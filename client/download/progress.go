package download

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// reportInterval bounds how often a ProgressFunc is called mid-transfer.
const reportInterval = 100 * time.Millisecond

// progressWriter is an io.Writer reporting transferred bytes to fn and
// logging at most once per second.
type progressWriter struct {
	w           io.Writer
	fn          ProgressFunc
	logger      *slog.Logger
	transferred int64
	total       int64
	startTime   time.Time
	lastReport  time.Time
	lastLog     time.Time
	reported    int64
}

func newProgressWriter(w io.Writer, fn ProgressFunc, logger *slog.Logger, offset, total int64) *progressWriter {
	now := time.Now()
	return &progressWriter{
		w:           w,
		fn:          fn,
		logger:      logger,
		transferred: offset,
		total:       total,
		startTime:   now,
		lastLog:     now,
		reported:    -1,
	}
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	pw.transferred += int64(n)

	if time.Since(pw.lastReport) >= reportInterval || pw.transferred == pw.total {
		pw.report()
	}

	if time.Since(pw.lastLog) >= time.Second {
		pw.lastLog = time.Now()
		pw.log("downloading")
	}

	return n, err
}

// finish delivers the final count if it was not reported yet.
func (pw *progressWriter) finish() {
	if pw.reported != pw.transferred {
		pw.report()
	}
	pw.log("download complete")
}

func (pw *progressWriter) report() {
	pw.lastReport = time.Now()
	pw.reported = pw.transferred
	if pw.fn != nil {
		pw.fn(Progress{Completed: pw.transferred, Total: pw.total})
	}
}

func (pw *progressWriter) log(msg string) {
	if pw.logger == nil {
		return
	}

	elapsed := time.Since(pw.startTime)
	attrs := []any{
		"elapsed", elapsed.Round(time.Millisecond),
		"transferred", pw.transferred,
		"total", pw.total,
		"mbps", fmt.Sprintf("%.2f", float64(pw.transferred)/elapsed.Seconds()/(1024*1024)),
	}
	if pw.total > 0 {
		attrs = append(attrs, "progress", fmt.Sprintf("%.1f%%", float64(pw.transferred)/float64(pw.total)*100))
	}
	pw.logger.Debug(msg, attrs...)
}
