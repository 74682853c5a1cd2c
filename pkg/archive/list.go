package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/krolaw/zipstream"
)

// Entry is one file listed from a container archive.
type Entry struct {
	Name string
	Size int64
}

// ListEntries enumerates the file entries of a zip container from a plain
// forward stream, so a remote container can be listed straight off a response
// body without staging it on disk. Directory entries are skipped.
func ListEntries(ctx context.Context, in io.Reader) ([]Entry, error) {
	zr := zipstream.NewReader(in)

	var entries []Entry
	for {
		if err := checkCancel(ctx); err != nil {
			return nil, err
		}

		header, err := zr.Next()
		if err == io.EOF {
			return entries, nil
		} else if err != nil {
			return nil, fmt.Errorf("read zip stream: %w", err)
		}

		if header.Mode().IsDir() {
			continue
		}

		entries = append(entries, Entry{
			Name: header.Name,
			Size: int64(header.UncompressedSize64),
		})
	}
}
