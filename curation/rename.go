package curation

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/carbocation/pfx"
)

// RewriteExtensions are the text files whose contents have IDs replaced.
var RewriteExtensions = []string{".tsv", ".json"}

// newReplacer maps every old ID to its new ID in a single pass, preferring
// longer IDs so that sub-1 does not match inside sub-10.
func newReplacer(idMap map[string]string) *strings.Replacer {
	keys := make([]string, 0, len(idMap))
	for k := range idMap {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, idMap[k])
	}

	return strings.NewReplacer(pairs...)
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// RenameSubjects replaces old subject IDs with new ones in the names of all
// files and directories under root, deepest first, and then inside every
// .tsv and .json file. Hidden files and directories are skipped. It returns
// the number of renamed paths and rewritten files.
func RenameSubjects(root string, idMap map[string]string) (renamed, rewritten int, err error) {
	if len(idMap) == 0 {
		return 0, 0, nil
	}
	replacer := newReplacer(idMap)

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if replacer.Replace(d.Name()) != d.Name() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return 0, 0, pfx.Err(err)
	}

	// Deepest first so parents are renamed after their contents.
	sort.SliceStable(paths, func(i, j int) bool {
		return strings.Count(paths[i], string(filepath.Separator)) > strings.Count(paths[j], string(filepath.Separator))
	})

	for _, path := range paths {
		dir, name := filepath.Split(path)
		target := filepath.Join(dir, replacer.Replace(name))
		if _, err := os.Lstat(target); err == nil {
			return renamed, 0, fmt.Errorf("cannot rename %s: %s already exists", path, target)
		}
		if err := os.Rename(path, target); err != nil {
			return renamed, 0, pfx.Err(err)
		}
		renamed++
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !hasRewriteExtension(path) {
			return nil
		}

		changed, err := rewriteFile(path, replacer)
		if err != nil {
			return err
		}
		if changed {
			rewritten++
		}
		return nil
	})
	if err != nil {
		return renamed, rewritten, pfx.Err(err)
	}

	return renamed, rewritten, nil
}

func hasRewriteExtension(path string) bool {
	ext := filepath.Ext(path)
	for _, v := range RewriteExtensions {
		if ext == v {
			return true
		}
	}
	return false
}

func rewriteFile(path string, replacer *strings.Replacer) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	updated := replacer.Replace(string(data))
	if updated == string(data) {
		return false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}

	return true, os.WriteFile(path, []byte(updated), info.Mode().Perm())
}
