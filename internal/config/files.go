package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// InputExt is the extension of elaborated register-map documents.
const InputExt = ".json"

// ResolveInputs expands the command line arguments into a sorted,
// de-duplicated list of elaborated input documents. Arguments may be
// files, directories (searched non-recursively) or glob patterns,
// including ** for recursive matching.
func ResolveInputs(args []string) ([]string, error) {
	fileSet := make(map[string]bool)

	for _, arg := range args {
		if info, err := os.Stat(arg); err == nil {
			if !info.IsDir() {
				fileSet[filepath.Clean(arg)] = true
				continue
			}
			arg = filepath.Join(arg, "*"+InputExt)
		}

		matches, err := expandGlob(arg)
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no input matches %q", arg)
		}

		for _, match := range matches {
			if strings.ToLower(filepath.Ext(match)) == InputExt {
				fileSet[filepath.Clean(match)] = true
			}
		}
	}

	result := make([]string, 0, len(fileSet))
	for f := range fileSet {
		result = append(result, f)
	}
	sort.Strings(result)

	return result, nil
}

// OutputPath joins a generated file name onto the configured output directory
func (c *Config) OutputPath(name string) string {
	if c.Output.Dir == "" {
		return name
	}
	return filepath.Join(c.Output.Dir, name)
}

// expandGlob expands a glob pattern, handling ** for recursive matching
func expandGlob(pattern string) ([]string, error) {
	if strings.Contains(pattern, "**") {
		return expandDoubleStarGlob(pattern)
	}

	return filepath.Glob(pattern)
}

// expandDoubleStarGlob handles ** patterns by walking the directory tree
func expandDoubleStarGlob(pattern string) ([]string, error) {
	var results []string

	parts := strings.SplitN(pattern, "**", 2)
	if len(parts) != 2 {
		return filepath.Glob(pattern)
	}

	baseDir := filepath.Clean(parts[0])
	if baseDir == "" {
		baseDir = "."
	}
	suffix := strings.TrimPrefix(parts[1], string(filepath.Separator))

	err := filepath.Walk(baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if info.IsDir() {
			return nil
		}
		if suffix == "" {
			results = append(results, path)
			return nil
		}

		relPath, err := filepath.Rel(baseDir, path)
		if err != nil {
			return nil
		}
		if matchSuffix(relPath, suffix) {
			results = append(results, path)
		}
		return nil
	})

	return results, err
}

// matchSuffix checks if a path matches a suffix pattern (after **)
func matchSuffix(path, pattern string) bool {
	if !strings.Contains(pattern, string(filepath.Separator)) {
		matched, _ := filepath.Match(pattern, filepath.Base(path))
		return matched
	}

	if matched, _ := filepath.Match(pattern, path); matched {
		return true
	}

	if len(path) > len(pattern) {
		matched, _ := filepath.Match(pattern, path[len(path)-len(pattern):])
		return matched
	}

	return false
}
