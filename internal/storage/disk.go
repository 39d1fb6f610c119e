package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Usage is the on-disk footprint of the data files. Paths holds the bytes attributed to each
// requested path; a path nested inside another requested path is counted only under the outer one.
type Usage struct {
	Total int64            `json:"total_bytes"`
	Paths map[string]int64 `json:"paths"`
}

// DiskUsage sums regular file sizes under each path. Empty and missing paths contribute 0.
func DiskUsage(paths ...string) (Usage, error) {
	u := Usage{Paths: make(map[string]int64, len(paths))}
	roots := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		roots = append(roots, filepath.Clean(p))
	}

	for _, root := range roots {
		if _, seen := u.Paths[root]; seen {
			continue
		}
		if covered(root, roots) {
			u.Paths[root] = 0
			continue
		}
		n, err := treeSize(root)
		if err != nil {
			return Usage{}, err
		}
		u.Paths[root] = n
		u.Total += n
	}
	return u, nil
}

// covered reports whether p lies strictly inside another root.
func covered(p string, roots []string) bool {
	for _, r := range roots {
		if r != p && strings.HasPrefix(p, r+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func treeSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	return total, err
}
