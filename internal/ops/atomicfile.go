package ops

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hpungsan/painvault/internal/errors"
)

// writeFileAtomic streams fill's output into a sibling temp file, syncs it
// and renames it over path. A failed fill leaves any previous file at path
// untouched. The temp file is opened without following symlinks.
func writeFileAtomic(path string, fill func(w io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("create export directory: %w", err))
	}

	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return errors.NewInternal(fmt.Errorf("temp name: %w", err))
	}
	tmp := path + "." + hex.EncodeToString(suffix) + ".tmp"

	f, err := openFileNoFollow(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	defer func() {
		if f != nil {
			f.Close()
		}
		if err != nil {
			os.Remove(tmp)
		}
	}()

	buf := bufio.NewWriter(f)
	if err := fill(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return errors.NewInternal(err)
	}
	if err := f.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	// Windows cannot rename an open file.
	closeErr := f.Close()
	f = nil
	if closeErr != nil {
		return errors.NewInternal(closeErr)
	}

	if isSymlink(path) {
		return errors.NewInvalidRequest("export path is a symlink")
	}
	if err := os.Rename(tmp, path); err != nil {
		// Windows refuses to replace an existing file; keep it rather than
		// delete-then-rename.
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return errors.NewInternal(fmt.Errorf("finalize export: %w", err))
	}
	return nil
}
