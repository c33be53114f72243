// Package fileutil holds small filesystem helpers shared by the file-backed
// snapshot and the workbook destination.
package fileutil

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// WriteAtomic writes data to a temp file in the target directory, syncs
// it and renames it over path, then syncs the directory.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "fileutil: mkdir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "fileutil: create temp")
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()        //nolint:errcheck
			os.Remove(tmpName) //nolint:errcheck
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return eris.Wrap(err, "fileutil: write temp")
	}
	if err := tmp.Sync(); err != nil {
		return eris.Wrap(err, "fileutil: sync temp")
	}
	if err := tmp.Chmod(perm); err != nil {
		return eris.Wrap(err, "fileutil: chmod temp")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "fileutil: close temp")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "fileutil: rename to %s", path)
	}
	committed = true

	// Persist the rename itself. Not every platform supports syncing a
	// directory, so failures here are ignored.
	if d, err := os.Open(dir); err == nil {
		d.Sync()  //nolint:errcheck
		d.Close() //nolint:errcheck
	}
	return nil
}
