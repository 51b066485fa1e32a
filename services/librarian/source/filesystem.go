// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package source reads repository files for the verifiers.
//
// FileSystem confines every read to a root directory and caches contents
// in memory. A cached entry is reused only while the file's size and
// modification time are unchanged.
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

var (
	// ErrPathTraversal is returned for paths that escape the root.
	ErrPathTraversal = errors.New("path escapes repository root")

	// ErrNotFound is returned when the file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrNotRegular is returned for directories and special files.
	ErrNotRegular = errors.New("not a regular file")
)

// DefaultCacheTTL is how long file contents stay cached.
const DefaultCacheTTL = 5 * time.Minute

type entry struct {
	content []byte
	size    int64
	modTime time.Time
}

// FileSystem is a rooted, caching file reader.
//
// Thread Safety: Safe for concurrent use.
type FileSystem struct {
	root  string
	cache *gocache.Cache
}

// NewFileSystem creates a reader rooted at root.
//
// Inputs:
//   - root: Repository root. Relative paths are resolved against it.
//   - ttl: Cache lifetime. Zero uses DefaultCacheTTL; negative disables caching.
//
// Outputs:
//   - *FileSystem: The reader.
//   - error: Non-nil if root cannot be made absolute.
func NewFileSystem(root string, ttl time.Duration) (*FileSystem, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %q: %w", root, err)
	}
	fsys := &FileSystem{root: abs}
	if ttl >= 0 {
		if ttl == 0 {
			ttl = DefaultCacheTTL
		}
		fsys.cache = gocache.New(ttl, 2*ttl)
	}
	return fsys, nil
}

// Root returns the absolute root directory.
func (f *FileSystem) Root() string {
	return f.root
}

// Resolve maps path to an absolute path inside the root.
func (f *FileSystem) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty path", ErrNotFound)
	}
	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(f.root, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(f.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, path)
	}
	return p, nil
}

// ReadFile returns the contents of path.
//
// Inputs:
//   - ctx: Checked before touching the disk.
//   - path: Relative to the root, or absolute inside it.
//
// Outputs:
//   - []byte: File contents. Callers must not modify the slice.
//   - error: ErrPathTraversal, ErrNotFound, ErrNotRegular, an I/O error,
//     or the context error.
func (f *FileSystem) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := f.Resolve(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegular, path)
	}

	if f.cache != nil {
		if v, ok := f.cache.Get(abs); ok {
			e := v.(entry)
			if e.size == info.Size() && e.modTime.Equal(info.ModTime()) {
				return e.content, nil
			}
		}
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if f.cache != nil {
		f.cache.Set(abs, entry{content: content, size: info.Size(), modTime: info.ModTime()}, gocache.DefaultExpiration)
	}
	return content, nil
}

// Invalidate drops path from the cache.
func (f *FileSystem) Invalidate(path string) {
	if f.cache == nil {
		return
	}
	if abs, err := f.Resolve(path); err == nil {
		f.cache.Delete(abs)
	}
}

// CachedFiles returns the number of cached entries.
func (f *FileSystem) CachedFiles() int {
	if f.cache == nil {
		return 0
	}
	return f.cache.ItemCount()
}
