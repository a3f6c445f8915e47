// Package artifact computes where the model artifact lives on disk and
// answers whether a usable copy is already present. Locate is a pure function
// of configuration; probing is the only I/O here.
package artifact

import (
	"os"
	"path/filepath"

	"gemmad/internal/common/fsutil"
)

// Location is the canonical on-disk placement of the model artifact.
// Path is always Dir joined with FileName; the value is computed once at
// startup and never changes for the process lifetime.
type Location struct {
	Dir      string
	FileName string
	Path     string
}

// Locate computes the canonical artifact location. Pure: no I/O, no failure
// mode. Callers expand '~' in dataDir before calling (see fsutil.ExpandHome).
func Locate(dataDir, fileName string) Location {
	return Location{
		Dir:      dataDir,
		FileName: fileName,
		Path:     filepath.Join(dataDir, fileName),
	}
}

// Probe reports whether a regular file exists at the canonical path.
// It does not validate content or size; pair with NonEmpty before trusting
// the artifact for activation.
func Probe(loc Location) bool {
	return fsutil.RegularFileExists(loc.Path)
}

// NonEmpty reports whether the artifact exists and has at least one byte.
// A zero-byte file from a crashed download is not a valid artifact.
func NonEmpty(loc Location) bool {
	return fsutil.NonEmptyFile(loc.Path)
}

// Size returns the published artifact's byte length, 0 when absent.
func Size(loc Location) int64 {
	fi, err := os.Stat(loc.Path)
	if err != nil || !fi.Mode().IsRegular() {
		return 0
	}
	return fi.Size()
}

// StagingPath returns the temporary path a download is staged at before the
// atomic rename into Path.
func StagingPath(loc Location) string {
	return loc.Path + ".partial"
}

// CleanStale removes a leftover staging file from an interrupted download.
// Missing files are not an error.
func CleanStale(loc Location) error {
	err := os.Remove(StagingPath(loc))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
