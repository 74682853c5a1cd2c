package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/romcellar/romcellar/pkg/progress"
)

// SweepNested walks the top level of dir looking for archives left behind by
// an extraction, unpacks each in place and then discards the spent container.
// Files produced by one pass are swept by the next, so an archive inside an
// archive resolves regardless of how deep the nesting goes. A candidate that
// fails to extract is logged and left on disk and the sweep moves on;
// cancellation stops the sweep immediately. Subdirectories are not descended
// into.
func SweepNested(ctx context.Context, dir string, tracker *progress.Tracker) error {
	seen := map[string]bool{}

	for {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("list %s: %w", dir, err)
		}

		changed := false
		for _, entry := range entries {
			if entry.IsDir() || seen[entry.Name()] {
				continue
			}

			if err := checkCancel(ctx); err != nil {
				return err
			}

			// each candidate gets exactly one attempt, failed or not
			seen[entry.Name()] = true

			path := filepath.Join(dir, entry.Name())

			ok, err := IsArchive(path)
			if err != nil {
				logrus.WithError(err).Warnf("skipping unreadable file: %s", entry.Name())
				continue
			}
			if !ok {
				continue
			}

			logrus.Debugf("nested archive: %s", entry.Name())

			if _, err := Extract(ctx, path, dir, tracker); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				logrus.WithError(err).Warnf("unable to extract nested archive: %s", entry.Name())
				continue
			}

			// the container is spent once its contents sit alongside it;
			// losing this remove is harmless
			if err := os.Remove(path); err != nil {
				logrus.WithError(err).Debugf("unable to remove nested archive: %s", entry.Name())
			}

			changed = true
		}

		if !changed {
			return nil
		}
	}
}
