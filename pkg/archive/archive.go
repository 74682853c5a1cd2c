package archive

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"github.com/sirupsen/logrus"
)

// ErrNotArchive means the file does not carry a supported container
// signature.
var ErrNotArchive = errors.New("not a supported archive")

// diskImageExtensions name raw sector dump formats. A disk image can
// coincidentally carry a container signature at certain offsets, and
// extracting one in place would destroy it, so these are excluded from
// classification before any bytes are read.
var diskImageExtensions = []string{
	".iso",
	".img",
	".mdf",
	".nrg",
	".cdi",
	".gdi",
	".chd",
}

// ExtractionResult describes a completed extraction.
type ExtractionResult struct {
	Entries int
	Dir     string
}

// IsDiskImage reports whether the file name carries a raw disk image
// extension.
func IsDiskImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(diskImageExtensions, ext)
}

// IsArchive reports whether the file at path is a supported archive
// container. Detection goes by content signature rather than extension, so
// mislabeled or extensionless archives are still found. Disk images are never
// archives regardless of their bytes.
func IsArchive(path string) (bool, error) {
	if IsDiskImage(path) {
		logrus.Tracef("disk image, skipping signature check: %s", filepath.Base(path))
		return false, nil
	}

	t, err := filetype.MatchFile(path)
	if err != nil {
		return false, fmt.Errorf("detect file type: %w", err)
	}

	logrus.Tracef("detected %q for %s", t.Extension, filepath.Base(path))

	switch t {
	case matchers.TypeZip, matchers.TypeTar, matchers.TypeGz, matchers.TypeBz2, matchers.TypeXz, matchers.TypeRar:
		return true, nil
	}

	return false, nil
}
