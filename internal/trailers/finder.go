package trailers

import (
	"context"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
)

// FindMovies walks root and returns every file whose base name matches one
// of patterns. Hidden entries and anything under skipDir are ignored.
func FindMovies(ctx context.Context, root string, patterns []string, skipDir string) ([]string, error) {
	skipDir = filepath.Clean(skipDir)
	var movies []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if path != root && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if skipDir != "." && filepath.Clean(path) == skipDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !matchesAny(name, patterns) {
			return nil
		}
		movies = append(movies, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(movies)
	return movies, nil
}

func matchesAny(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(strings.ToLower(pattern), lower); ok {
			return true
		}
	}
	return false
}
