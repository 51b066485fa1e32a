// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileSystem_ReadFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pkg/a.go", "package pkg\n")

	fsys, err := NewFileSystem(dir, 0)
	require.NoError(t, err)

	got, err := fsys.ReadFile(context.Background(), "pkg/a.go")
	require.NoError(t, err)
	assert.Equal(t, "package pkg\n", string(got))
	assert.Equal(t, 1, fsys.CachedFiles())

	abs, err := fsys.ReadFile(context.Background(), filepath.Join(dir, "pkg/a.go"))
	require.NoError(t, err)
	assert.Equal(t, got, abs)
}

func TestFileSystem_DetectsChanges(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "one\n")

	fsys, err := NewFileSystem(dir, time.Minute)
	require.NoError(t, err)

	_, err = fsys.ReadFile(context.Background(), "a.txt")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\n"), 0o644))
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	got, err := fsys.ReadFile(context.Background(), "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(got))
}

func TestFileSystem_Errors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	fsys, err := NewFileSystem(dir, -1)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = fsys.ReadFile(ctx, "../etc/passwd")
	assert.True(t, errors.Is(err, ErrPathTraversal))

	_, err = fsys.ReadFile(ctx, "missing.go")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = fsys.ReadFile(ctx, "sub")
	assert.True(t, errors.Is(err, ErrNotRegular))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = fsys.ReadFile(canceled, "missing.go")
	assert.True(t, errors.Is(err, context.Canceled))
}
