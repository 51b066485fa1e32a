// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, content string, seen *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		resp := openai.ChatCompletionResponse{
			ID:    "chatcmpl-1",
			Model: "test-model",
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			}},
			Usage: openai.Usage{TotalTokens: 12},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	_, err := NewOpenAI(Config{Model: "gpt-4o-mini"})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestNewOpenAI_KeySources(t *testing.T) {
	p, err := NewOpenAI(Config{BaseURL: "http://localhost:11434/v1"})
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Model, p.Model())
	assert.Equal(t, "openai", p.Name())

	keyFile := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(keyFile, []byte("sk-test\n"), 0o600))
	key, err := resolveKey(Config{APIKeyFile: keyFile})
	require.NoError(t, err)
	assert.Equal(t, "sk-test", key)

	_, err = NewOpenAI(Config{APIKeyFile: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}

func TestAnswer(t *testing.T) {
	var req openai.ChatCompletionRequest
	srv := chatServer(t, "  ParseConfig takes 3 parameters.\n", &req)

	p, err := NewOpenAI(Config{BaseURL: srv.URL, APIKey: "k", Model: "test-model", MaxTokens: 64})
	require.NoError(t, err)

	got, err := p.Answer(context.Background(), "How many parameters does ParseConfig take?")
	require.NoError(t, err)
	assert.Equal(t, "ParseConfig takes 3 parameters.", got)

	assert.Equal(t, "test-model", req.Model)
	assert.Equal(t, 64, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, defaultSystemPrompt, req.Messages[0].Content)
	assert.Equal(t, "How many parameters does ParseConfig take?", req.Messages[1].Content)
}

func TestAnswer_Empty(t *testing.T) {
	srv := chatServer(t, "   ", nil)
	p, err := NewOpenAI(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.Answer(context.Background(), "q")
	assert.ErrorIs(t, err, ErrEmptyAnswer)
}

func TestAnswer_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer srv.Close()

	p, err := NewOpenAI(Config{BaseURL: srv.URL, RequestsPerSecond: 0})
	require.NoError(t, err)

	_, err = p.Answer(context.Background(), "q")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrEmptyAnswer))
}

func TestAnswer_LimiterHonorsContext(t *testing.T) {
	srv := chatServer(t, "ok", nil)
	p, err := NewOpenAI(Config{BaseURL: srv.URL, RequestsPerSecond: 0.001, Burst: 1})
	require.NoError(t, err)

	_, err = p.Answer(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Answer(ctx, "second")
	assert.Error(t, err)
}
