package suitefile

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lance13c/stateshot/internal/logging"
	"github.com/lance13c/stateshot/internal/suite"
)

// Load parses every file matching patterns under root, in sorted path
// order, and compiles them onto reg. Parse errors are recorded on the
// registry like any other problem. It returns the matched files.
func Load(reg *suite.Registry, root string, patterns []string) ([]string, error) {
	files, err := Glob(root, patterns)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		rel, err := filepath.Rel(root, file)
		if err != nil {
			rel = file
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read suite file %s: %w", rel, err)
		}
		f, err := Parse(data)
		if err != nil {
			reg.Problem("%s: %v", rel, err)
			continue
		}
		logging.Debug("Loaded %d suites from %s", len(f.Suites), rel)
		Compile(reg, rel, f)
	}
	return files, nil
}

// Glob expands slash-separated patterns relative to root. A "**" segment
// matches any number of directories.
func Glob(root string, patterns []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, pattern := range patterns {
		pattern = path.Clean(filepath.ToSlash(pattern))
		if _, err := path.Match(strings.ReplaceAll(pattern, "**", "*"), ""); err != nil {
			return nil, fmt.Errorf("invalid suite pattern %q: %w", pattern, err)
		}
		base := staticPrefix(pattern)
		start := filepath.Join(root, filepath.FromSlash(base))
		err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) && p == start {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			if matchSegments(strings.Split(pattern, "/"), strings.Split(filepath.ToSlash(rel), "/")) && !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to expand %q: %w", pattern, err)
		}
	}
	sort.Strings(out)
	return out, nil
}

// staticPrefix returns the leading directories of pattern without
// wildcards
func staticPrefix(pattern string) string {
	segs := strings.Split(pattern, "/")
	var prefix []string
	for _, s := range segs[:len(segs)-1] {
		if strings.ContainsAny(s, "*?[") {
			break
		}
		prefix = append(prefix, s)
	}
	if len(prefix) == 0 {
		return "."
	}
	return strings.Join(prefix, "/")
}

func matchSegments(pattern, name []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			for i := 0; i <= len(name); i++ {
				if matchSegments(pattern[1:], name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		if ok, _ := path.Match(pattern[0], name[0]); !ok {
			return false
		}
		pattern, name = pattern[1:], name[1:]
	}
	return len(name) == 0
}

// Match reports whether rel, a slash-separated path relative to the
// project root, matches any of patterns
func Match(patterns []string, rel string) bool {
	name := strings.Split(path.Clean(filepath.ToSlash(rel)), "/")
	for _, p := range patterns {
		if matchSegments(strings.Split(path.Clean(filepath.ToSlash(p)), "/"), name) {
			return true
		}
	}
	return false
}

// Dirs returns the directories under root that can hold files matching
// patterns, for watching
func Dirs(root string, patterns []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range patterns {
		dir := filepath.Join(root, filepath.FromSlash(staticPrefix(path.Clean(filepath.ToSlash(p)))))
		if !seen[dir] {
			seen[dir] = true
			out = append(out, dir)
		}
	}
	sort.Strings(out)
	return out
}
