// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/librarian/services/librarian"
	"github.com/AleutianAI/librarian/services/librarian/config"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "librarian dev (none)\n", out.String())
}

func TestNewRouter(t *testing.T) {
	cfg := config.Default()
	cfg.Source.Root = t.TempDir()
	cfg.Audit.Enabled = false
	cfg.Server.MaxBodyBytes = 64

	svc, err := librarian.Build(cfg, nil)
	require.NoError(t, err)
	defer svc.Close()

	router := newRouter(cfg, svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/librarian/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	body := `{"answer":"` + strings.Repeat("a", 200) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/librarian/verify/answer-citations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code, "oversized bodies are rejected")
}

func TestServe_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("citation:\n  grounding_threshold: 7\n"), 0o644))

	configPath = path
	defer func() { configPath = "" }()
	err := runServe(serveCmd, nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
