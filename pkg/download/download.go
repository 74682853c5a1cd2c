package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/romcellar/romcellar/pkg/progress"
)

// chunkSize bounds per-read memory and keeps cancellation latency low; the
// signal is checked once per chunk.
const chunkSize = 256 * 1024

// Result describes a finished download.
type Result struct {
	Path         string
	BytesWritten int64
	SizeKnown    bool
}

// StatusError reports a non-success HTTP status. The body is discarded, a
// failed request never produces a destination file.
type StatusError struct {
	Code   int
	Status string
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %q for %s", e.Status, e.URL)
}

// Fetch issues a GET and verifies a successful status before anything reads
// the body. The response streams; the caller owns closing the body.
func Fetch(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status, URL: url}
	}

	return resp, nil
}

// To streams url into the file at dest, reading the body in fixed-size
// chunks and writing each through as it arrives. dest is truncated first, a
// partial file from an earlier attempt is never resumed. Byte progress is
// scaled into the download band when the server declares a length; with no
// length it stays indeterminate until the transfer completes, then jumps to
// the band's ceiling. The context is checked before each chunk; on
// cancellation the partial file is left in place for the caller to judge.
func To(ctx context.Context, client *http.Client, url, dest string, tracker *progress.Tracker) (*Result, error) {
	resp, err := Fetch(ctx, client, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", dest, err)
	}
	defer out.Close()

	total := resp.ContentLength
	sizeKnown := total > 0
	name := filepath.Base(dest)

	logrus.WithField("url", url).Debugf("downloading to %s (%d bytes)", dest, total)

	buf := make([]byte, chunkSize)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return nil, fmt.Errorf("write %s: %w", dest, werr)
			}

			written += int64(n)
			if sizeKnown {
				tracker.SetRatio(0, progress.DownloadCeiling, written, total,
					fmt.Sprintf("downloading %s", name))
			} else {
				tracker.Status(fmt.Sprintf("downloading %s (%s)", name, progress.FormatBytes(written)))
			}
		}

		if rerr == io.EOF {
			break
		} else if rerr != nil {
			return nil, fmt.Errorf("read response: %w", rerr)
		}
	}

	tracker.Set(progress.DownloadCeiling, fmt.Sprintf("downloaded %s", name))

	logrus.Tracef("downloaded %d bytes to %s", written, dest)

	return &Result{Path: dest, BytesWritten: written, SizeKnown: sizeKnown}, nil
}
