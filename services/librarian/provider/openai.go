// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package provider answers questions with an OpenAI-compatible chat model.
//
// The OpenAI type satisfies consistency.AnswerProvider. Any server that
// speaks the chat completions API works, including Ollama's /v1 endpoint.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

var (
	// ErrNoAPIKey is returned when neither a key nor a key file is set and
	// no custom base URL is configured.
	ErrNoAPIKey = errors.New("provider: no API key configured")

	// ErrEmptyAnswer is returned when the model produced no content.
	ErrEmptyAnswer = errors.New("provider: model returned an empty answer")
)

const defaultSystemPrompt = "You answer questions about a codebase. Answer in one or two plain sentences. " +
	"State counts as digits and name files, types and functions exactly."

// Config configures the OpenAI provider.
type Config struct {
	// BaseURL overrides the API endpoint. When set an API key is optional.
	BaseURL string `yaml:"base_url"`

	// APIKey is the bearer token.
	APIKey string `yaml:"api_key"`

	// APIKeyFile is read when APIKey is empty, e.g. a mounted secret.
	APIKeyFile string `yaml:"api_key_file"`

	// Model is the chat model name.
	Model string `yaml:"model"`

	// SystemPrompt replaces the default system message.
	SystemPrompt string `yaml:"system_prompt"`

	// MaxTokens caps the completion length. Zero leaves it to the server.
	MaxTokens int `yaml:"max_tokens" validate:"gte=0"`

	// Temperature is the sampling temperature.
	Temperature float32 `yaml:"temperature" validate:"gte=0,lte=2"`

	// RequestsPerSecond limits outgoing calls. Zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`

	// Burst is the limiter burst size.
	Burst int `yaml:"burst" validate:"gte=0"`
}

// DefaultConfig returns the default provider configuration.
func DefaultConfig() Config {
	return Config{
		Model:             openai.GPT4oMini,
		Temperature:       0,
		MaxTokens:         256,
		RequestsPerSecond: 2,
		Burst:             4,
	}
}

// OpenAI answers queries through the chat completions API.
//
// Thread Safety: Safe for concurrent use.
type OpenAI struct {
	client  *openai.Client
	limiter *rate.Limiter
	config  Config
	logger  *slog.Logger
}

// Option configures the provider.
type Option func(*OpenAI)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *OpenAI) {
		p.logger = l
	}
}

// NewOpenAI creates a provider.
//
// Outputs:
//
//	*OpenAI - The provider.
//	error - ErrNoAPIKey when no credential is available for the public API,
//	        or the key file read error.
func NewOpenAI(cfg Config, opts ...Option) (*OpenAI, error) {
	key, err := resolveKey(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}

	clientConfig := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	p := &OpenAI{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
		logger: slog.Default(),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := max(cfg.Burst, 1)
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger.Info("answer provider initialized",
		slog.String("model", cfg.Model),
		slog.Bool("custom_base_url", cfg.BaseURL != ""))
	return p, nil
}

func resolveKey(cfg Config) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}
	if cfg.APIKeyFile != "" {
		b, err := os.ReadFile(cfg.APIKeyFile)
		if err != nil {
			return "", fmt.Errorf("provider: reading api key file: %w", err)
		}
		if key := strings.TrimSpace(string(b)); key != "" {
			return key, nil
		}
	}
	if cfg.BaseURL != "" {
		// Local OpenAI-compatible servers ignore the token.
		return "unused", nil
	}
	return "", ErrNoAPIKey
}

// Name returns the provider name.
func (p *OpenAI) Name() string {
	return "openai"
}

// Model returns the configured model.
func (p *OpenAI) Model() string {
	return p.config.Model
}

// Answer asks the model one question and returns the trimmed reply.
//
// Inputs:
//
//	ctx - Cancellation flows to the limiter wait and the HTTP call.
//	query - The question.
//
// Outputs:
//
//	string - The answer.
//	error - The wrapped API error, ErrEmptyAnswer, or the context error.
func (p *OpenAI) Answer(ctx context.Context, query string) (string, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("provider: rate limiter: %w", err)
		}
	}

	req := openai.ChatCompletionRequest{
		Model: p.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.config.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
		Temperature: p.config.Temperature,
	}
	if p.config.MaxTokens > 0 {
		req.MaxTokens = p.config.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("provider: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyAnswer
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	p.logger.Debug("answer received",
		slog.String("model", p.config.Model),
		slog.String("finish_reason", string(resp.Choices[0].FinishReason)),
		slog.Int("total_tokens", resp.Usage.TotalTokens))
	return answer, nil
}
