// Package library discovers media files to convert.
package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"ac3mux/internal/services"
	"ac3mux/internal/swap"
)

// Scan walks root and returns every regular file whose extension matches one
// of exts (case-insensitive), sorted by path. Hidden entries and files left
// behind by earlier swaps (`_old`, `_converted`, journal markers) are skipped.
// root may also name a single file.
func Scan(ctx context.Context, root string, exts []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrConfiguration, "library", "scan", fmt.Sprintf("%s does not exist", root), err)
		}
		return nil, services.Wrap(services.ErrConfiguration, "library", "scan", "", err)
	}

	allowed := normalizeExtensions(exts)
	if !info.IsDir() {
		if !matches(filepath.Base(root), allowed) {
			return nil, services.Wrap(services.ErrValidation, "library", "scan", fmt.Sprintf("%s is not a supported media file", root), nil)
		}
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		name := d.Name()
		if path != root && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if swap.IsArtifact(name) || !matches(name, allowed) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrCancelled, "library", "scan", "", err)
		}
		return nil, services.Wrap(services.ErrExternalTool, "library", "scan", root, err)
	}
	slices.Sort(files)
	return files, nil
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

func matches(name string, exts []string) bool {
	return slices.Contains(exts, strings.ToLower(filepath.Ext(name)))
}
