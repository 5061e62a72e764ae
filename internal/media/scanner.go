package media

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"media-pipeline/internal/filesystem"
)

// Scanner collects the source files of a run from files and directory
// trees.
type Scanner struct {
	skipDirs map[string]bool
	retry    filesystem.RetryConfig
}

// NewScanner creates a Scanner that never descends into skipDirs, typically
// the output and work directories.
func NewScanner(retry filesystem.RetryConfig, skipDirs ...string) *Scanner {
	skip := make(map[string]bool, len(skipDirs))
	for _, d := range skipDirs {
		if d == "" {
			continue
		}
		if abs, err := filepath.Abs(d); err == nil {
			skip[abs] = true
		}
	}
	return &Scanner{skipDirs: skip, retry: retry}
}

// Scan returns the regular files named by roots, walking directories
// recursively. Hidden files and directories are skipped. The result is
// sorted and free of duplicates.
func (s *Scanner) Scan(ctx context.Context, roots []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, root := range roots {
		info, err := filesystem.StatWithRetry(root, s.retry)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", root, err)
		}
		if !info.IsDir() {
			if info.Mode().IsRegular() {
				add(root)
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				log.Warn("skipping %s: %v", path, err)
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if path != root && isHidden(entry.Name()) {
				if entry.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if entry.IsDir() {
				if abs, err := filepath.Abs(path); err == nil && s.skipDirs[abs] {
					return filepath.SkipDir
				}
				return nil
			}
			if entry.Type().IsRegular() {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
