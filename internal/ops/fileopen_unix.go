//go:build !windows

package ops

import (
	stderrors "errors"
	"os"

	"golang.org/x/sys/unix"

	"github.com/hpungsan/painvault/internal/errors"
)

// openFileNoFollow opens an export file without following a symlink placed
// at path. ResolveExportPath has already vetted the parent directory.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	fd, err := unix.Open(path, flag|unix.O_NOFOLLOW|unix.O_CLOEXEC, uint32(perm))
	switch {
	case stderrors.Is(err, unix.ELOOP):
		return nil, errors.NewInvalidRequest("export path is a symlink")
	case err != nil:
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return os.NewFile(uintptr(fd), path), nil
}
