// Package fileutil provides file system utility functions.
package fileutil

import (
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
)

// FindFileCaseInsensitiveFS searches dir of fsys for filename. The search
// is case-insensitive, which lets manifests written on one platform find
// their actions on another.
//
// Example:
//
//	p, err := FindFileCaseInsensitiveFS(fsys, "actions", "Turbo.PAD")
//	// Will find "actions/turbo.pad", "actions/TURBO.PAD", etc.
func FindFileCaseInsensitiveFS(fsys fs.FS, dir, filename string) (string, error) {
	searchName := strings.ToLower(filename)

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if strings.ToLower(entry.Name()) == searchName {
			return path.Join(dir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("file not found: %s (searched in %s): %w", filename, dir, fs.ErrNotExist)
}

// Resolve returns the actual path of name in fsys. An exact match wins;
// otherwise every element of the path is matched case-insensitively.
// Backslashes are accepted as separators.
func Resolve(fsys fs.FS, name string) (string, error) {
	clean := path.Clean(strings.TrimLeft(strings.ReplaceAll(name, "\\", "/"), "/"))
	if _, err := fs.Stat(fsys, clean); err == nil {
		return clean, nil
	}
	if !fs.ValidPath(clean) {
		return "", fmt.Errorf("invalid path %q: %w", name, fs.ErrInvalid)
	}

	dir := "."
	for _, elem := range strings.Split(clean, "/") {
		found, err := FindFileCaseInsensitiveFS(fsys, dir, elem)
		if err != nil {
			return "", err
		}
		dir = found
	}
	return dir, nil
}

// ReadFile reads name from fsys after resolving it with Resolve.
func ReadFile(fsys fs.FS, name string) ([]byte, error) {
	p, err := Resolve(fsys, name)
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(fsys, p)
}

// FilesWithExt walks root and returns every regular file whose extension
// matches one of exts, ignoring case, in lexical order.
func FilesWithExt(fsys fs.FS, root string, exts ...string) ([]string, error) {
	var files []string
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(path.Ext(p))
		if slices.ContainsFunc(exts, func(e string) bool { return strings.ToLower(e) == ext }) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}
