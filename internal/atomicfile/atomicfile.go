// Package atomicfile writes files so that readers only
// ever observe the old or the new contents.
package atomicfile

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/unixpickle/essentials"
)

// Perm is the mode of written files, before the umask.
// Artifacts are meant to be read by other programs.
const Perm os.FileMode = 0644

// WriteFile writes data to a temporary file next to path
// and renames it over path once it has been synced.
//
// If anything fails, the previous contents of path are
// left untouched.
func WriteFile(path string, data []byte) error {
	return Write(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Write is like WriteFile, but streams the contents
// through fn.
func Write(path string, fn func(w io.Writer) error) (err error) {
	defer essentials.AddCtxTo("write "+path, &err)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	pending, err := renameio.NewPendingFile(path, renameio.WithTempDir(dir),
		renameio.WithPermissions(Perm))
	if err != nil {
		return err
	}
	defer pending.Cleanup()
	if err := fn(pending); err != nil {
		return err
	}
	return pending.CloseAtomicallyReplace()
}
