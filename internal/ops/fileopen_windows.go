//go:build windows

package ops

import "os"

// Windows has no O_NOFOLLOW; ResolveExportPath rejects symlinked targets
// before this is reached.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}
