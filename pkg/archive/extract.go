package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"github.com/nwaples/rardecode"
	"github.com/sirupsen/logrus"
	"github.com/xi2/xz"

	"github.com/romcellar/romcellar/pkg/progress"
	"github.com/romcellar/romcellar/pkg/safepath"
)

// processorFunc wraps a raw stream in its decompressor.
type processorFunc func(io.Reader) (io.Reader, error)

// Extract unpacks the archive at path into dir. Only file entries are
// extracted, directories are implicit in the paths of the entries they
// contain. Entry paths pass the traversal guard before anything is written
// and existing files at the same path are overwritten. Progress is reported
// per completed entry, scaled into the extraction band; an empty archive
// reports the band's ceiling immediately. The context is checked before each
// entry.
func Extract(ctx context.Context, path, dir string, tracker *progress.Tracker) (*ExtractionResult, error) {
	t, err := filetype.MatchFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect file type: %w", err)
	}

	logrus.Debugf("extracting %s into %s", filepath.Base(path), dir)

	switch t {
	case matchers.TypeZip:
		return extractZip(ctx, path, dir, tracker)
	case matchers.TypeRar:
		return extractRar(ctx, path, dir, tracker)
	case matchers.TypeTar:
		return extractTar(ctx, path, dir, tracker)
	case matchers.TypeGz:
		return extractCompressed(ctx, path, dir, tracker, processGz)
	case matchers.TypeBz2:
		return extractCompressed(ctx, path, dir, tracker, processBz2)
	case matchers.TypeXz:
		return extractCompressed(ctx, path, dir, tracker, processXz)
	}

	return nil, fmt.Errorf("%w: %s", ErrNotArchive, filepath.Base(path))
}

func extractZip(ctx context.Context, path, dir string, tracker *progress.Tracker) (*ExtractionResult, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open zip archive: %w", err)
	}
	defer zr.Close()

	total := 0
	for _, zf := range zr.File {
		if !zf.FileInfo().IsDir() {
			total++
		}
	}
	if total == 0 {
		tracker.Set(progress.Done, "nothing to extract")
		return &ExtractionResult{Dir: dir}, nil
	}

	done := 0
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}

		if err := checkCancel(ctx); err != nil {
			return nil, err
		}

		rc, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("open zip entry %s: %w", zf.Name, err)
		}

		err = writeEntry(dir, zf.Name, rc, zf.Mode())
		rc.Close()
		if err != nil {
			return nil, err
		}

		done++
		reportEntry(tracker, zf.Name, done, total)
	}

	return &ExtractionResult{Entries: done, Dir: dir}, nil
}

func extractRar(ctx context.Context, path, dir string, tracker *progress.Tracker) (*ExtractionResult, error) {
	total, err := countRar(path)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		tracker.Set(progress.Done, "nothing to extract")
		return &ExtractionResult{Dir: dir}, nil
	}

	rc, err := rardecode.OpenReader(path, "")
	if err != nil {
		return nil, fmt.Errorf("open rar archive: %w", err)
	}
	defer rc.Close()

	done := 0
	for {
		if err := checkCancel(ctx); err != nil {
			return nil, err
		}

		header, err := rc.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("read rar entry: %w", err)
		}

		if header.IsDir {
			continue
		}

		if err := writeEntry(dir, header.Name, rc, header.Mode()); err != nil {
			return nil, err
		}

		done++
		reportEntry(tracker, header.Name, done, total)
	}

	return &ExtractionResult{Entries: done, Dir: dir}, nil
}

func countRar(path string) (int, error) {
	rc, err := rardecode.OpenReader(path, "")
	if err != nil {
		return 0, fmt.Errorf("open rar archive: %w", err)
	}
	defer rc.Close()

	count := 0
	for {
		header, err := rc.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return 0, fmt.Errorf("read rar archive: %w", err)
		}
		if !header.IsDir {
			count++
		}
	}

	return count, nil
}

func extractTar(ctx context.Context, path, dir string, tracker *progress.Tracker) (*ExtractionResult, error) {
	total, err := countTar(path, processDirect)
	if err != nil {
		return nil, err
	}

	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer in.Close()

	return untarInto(ctx, in, dir, total, tracker)
}

// extractCompressed handles the gz, bz2 and xz containers. The decompressed
// stream is sniffed once: a tar inside is walked as an archive, anything else
// is a single compressed file that extracts to the archive's name minus its
// compression suffix.
func extractCompressed(ctx context.Context, path, dir string, tracker *progress.Tracker, processor processorFunc) (*ExtractionResult, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer in.Close()

	decompressed, err := processor(in)
	if err != nil {
		return nil, fmt.Errorf("read compressed stream: %w", err)
	}

	var buf bytes.Buffer
	tee := io.TeeReader(decompressed, &buf)

	inner, err := filetype.MatchReader(tee)
	if err != nil {
		return nil, fmt.Errorf("detect compressed content: %w", err)
	}

	// Re-assemble the stream from the sniffed bytes plus the remainder.
	content := io.MultiReader(&buf, decompressed)

	if inner == matchers.TypeTar {
		total, err := countTar(path, processor)
		if err != nil {
			return nil, err
		}
		return untarInto(ctx, content, dir, total, tracker)
	}

	if err := checkCancel(ctx); err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if name == "" {
		name = filepath.Base(path)
	}

	// an extensionless archive inside dir resolves to its own path; keep
	// the member distinct so the source is not truncated mid-read
	if filepath.Join(dir, name) == filepath.Clean(path) {
		name += ".out"
	}

	if err := writeEntry(dir, name, content, 0644); err != nil {
		return nil, err
	}

	reportEntry(tracker, name, 1, 1)

	return &ExtractionResult{Entries: 1, Dir: dir}, nil
}

func untarInto(ctx context.Context, in io.Reader, dir string, total int, tracker *progress.Tracker) (*ExtractionResult, error) {
	if total == 0 {
		tracker.Set(progress.Done, "nothing to extract")
		return &ExtractionResult{Dir: dir}, nil
	}

	tr := tar.NewReader(in)

	done := 0
	for {
		if err := checkCancel(ctx); err != nil {
			return nil, err
		}

		header, err := tr.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("read tar entry: %w", err)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}

		if err := writeEntry(dir, header.Name, tr, header.FileInfo().Mode()); err != nil {
			return nil, err
		}

		done++
		reportEntry(tracker, header.Name, done, total)
	}

	return &ExtractionResult{Entries: done, Dir: dir}, nil
}

// countTar walks the archive once to learn how many file entries it holds so
// per-entry progress can be a ratio.
func countTar(path string, processor processorFunc) (int, error) {
	in, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer in.Close()

	decompressed, err := processor(in)
	if err != nil {
		return 0, fmt.Errorf("read compressed stream: %w", err)
	}

	tr := tar.NewReader(decompressed)

	count := 0
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return 0, fmt.Errorf("read tar archive: %w", err)
		}
		if header.Typeflag == tar.TypeReg {
			count++
		}
	}

	return count, nil
}

// writeEntry writes one archive entry beneath dir, guarding the target path
// and creating parent directories as needed.
func writeEntry(dir, name string, src io.Reader, mode os.FileMode) error {
	target, err := safepath.Join(dir, name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, entryMode(mode))
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}

	// close after each entry; deferring would hold every handle open until
	// the whole walk completes.
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	logrus.Tracef("extracted %s", target)

	return nil
}

func entryMode(mode os.FileMode) os.FileMode {
	perm := mode.Perm()
	if perm == 0 {
		return 0644
	}
	return perm
}

func reportEntry(tracker *progress.Tracker, name string, done, total int) {
	tracker.SetRatio(progress.DownloadCeiling, progress.Done, int64(done), int64(total),
		fmt.Sprintf("extracting %s (%d/%d)", filepath.Base(name), done, total))
}

func processDirect(in io.Reader) (io.Reader, error) {
	return in, nil
}

func processGz(in io.Reader) (io.Reader, error) {
	gr, err := gzip.NewReader(in)
	if err != nil {
		return nil, err
	}

	return gr, nil
}

func processXz(in io.Reader) (io.Reader, error) {
	xr, err := xz.NewReader(in, 0)
	if err != nil {
		return nil, err
	}

	return xr, nil
}

func processBz2(in io.Reader) (io.Reader, error) {
	return bzip2.NewReader(in), nil
}

func checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
