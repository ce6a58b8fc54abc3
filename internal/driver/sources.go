package driver

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/wyaneva/partecl-codegen/internal/core"
)

// excludedDirs are skipped when a directory is expanded.
var excludedDirs = map[string]bool{
	"build": true, "dist": true, "cmake-build": true,
	".git": true, ".svn": true, ".hg": true,
	".cache": true, ".idea": true, ".vscode": true,
	"vendor": true, "third_party": true,
}

// ExpandSources replaces every directory in paths with the C sources below
// it, in lexical order. Files are kept as given. Duplicates are dropped.
func ExpandSources(paths []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		clean := filepath.Clean(p)
		if !seen[clean] {
			seen[clean] = true
			out = append(out, clean)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			add(p)
			continue
		}

		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && excludedDirs[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if core.IsCSource(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
		sort.Strings(found)
		for _, f := range found {
			add(f)
		}
	}
	return out, nil
}
