package installer

import (
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

// ignoreFileExtensions are detected types that never count as a game's
// primary file. Keyed by mimetype extension, not file name.
var ignoreFileExtensions = []string{
	".txt",
	".json",
	".html",
	".xml",
}

// primaryFile picks the file a front end should point at inside an
// extracted install directory. The request's extension allow-list wins, in
// its declared order; with no match the largest file whose detected type is
// not auxiliary is used. Empty means no single file stood out.
func (i *Installer) primaryFile(dir string, extensions []string) string {
	var files []string
	sizes := map[string]int64{}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		files = append(files, path)
		sizes[path] = info.Size()

		return nil
	})
	if err != nil {
		logrus.WithError(err).Warn("unable to walk install dir")
		return ""
	}

	logrus.Tracef("files to consider: %d", len(files))

	for _, ext := range extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}

		for _, file := range files {
			if strings.EqualFold(filepath.Ext(file), ext) {
				logrus.Tracef("primary file by extension: %s", file)
				return file
			}
		}
	}

	var best string
	for _, file := range files {
		m, err := mimetype.DetectFile(file)
		if err != nil {
			logrus.WithError(err).Warn("unable to determine mimetype")
			continue
		}

		if slices.Contains(ignoreFileExtensions, m.Extension()) {
			logrus.Tracef("ignoring file: %s", filepath.Base(file))
			continue
		}

		if best == "" || sizes[file] > sizes[best] {
			best = file
		}
	}

	return best
}
