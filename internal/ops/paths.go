package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hpungsan/painvault/internal/config"
	"github.com/hpungsan/painvault/internal/db"
	"github.com/hpungsan/painvault/internal/errors"
)

const exportExt = ".jsonl"

// BaseDir returns ~/.painvault.
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("resolve home directory: %w", err))
	}
	return filepath.Join(home, ".painvault"), nil
}

// DefaultExportsDir returns ~/.painvault/exports.
func DefaultExportsDir() (string, error) {
	base, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, db.ExportsDir), nil
}

// ResolveExportPath turns a requested export destination into an absolute
// path. The file must end in .jsonl, sit directly inside the exports
// directory or one of cfg.AllowedPaths, and be neither a symlink nor inside
// a symlinked directory. There are no intermediate directories to swap
// after the check; the file itself is opened with O_NOFOLLOW.
func ResolveExportPath(path string, cfg *config.Config) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.NewInvalidRequest("path is required")
	}
	if hasDotDot(path) {
		return "", errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}
	if filepath.Ext(path) != exportExt {
		return "", errors.NewInvalidRequest("path must have .jsonl extension")
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	dirs, err := exportDirs(cfg)
	if err != nil {
		return "", err
	}
	parent := filepath.Dir(abs)
	if !slices.Contains(dirs, parent) {
		return "", errors.NewInvalidRequest(fmt.Sprintf(
			"file must be directly in an export directory (no subdirectories); allowed: %v", dirs))
	}

	if isSymlink(parent) {
		return "", errors.NewInvalidRequest("parent directory must not be a symlink")
	}
	if isSymlink(abs) {
		return "", errors.NewInvalidRequest("path must not be a symlink")
	}
	return abs, nil
}

// exportDirs lists the directories exports may be written to. Relative
// allowed_paths entries are ignored; symlinked entries resolve to their target.
func exportDirs(cfg *config.Config) ([]string, error) {
	def, err := DefaultExportsDir()
	if err != nil {
		return nil, err
	}
	candidates := []string{def}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				candidates = append(candidates, p)
			}
		}
	}

	dirs := make([]string, 0, len(candidates))
	for _, d := range candidates {
		d = filepath.Clean(d)
		if isSymlink(d) {
			resolved, err := filepath.EvalSymlinks(d)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve allowed path %s: %v", d, err))
			}
			d = resolved
		}
		dirs = append(dirs, d)
	}
	return dirs, nil
}

func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// hasDotDot reports a ".." component under either separator, since
// clients may send forward slashes on Windows.
func hasDotDot(path string) bool {
	return slices.Contains(strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	}), "..")
}
