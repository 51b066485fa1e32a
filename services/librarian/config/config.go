// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the librarian service configuration.
//
// Values come from three layers, later layers winning: the embedded
// defaults.yaml, an optional YAML file, and LIBRARIAN_* environment
// variables. The result is validated with struct tags before use.
//
// Thread Safety:
//
//	Load is safe for concurrent use. A loaded Config is read-only.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/librarian/services/librarian/audit"
	"github.com/AleutianAI/librarian/services/librarian/grounding/astverify"
	"github.com/AleutianAI/librarian/services/librarian/grounding/citation"
	"github.com/AleutianAI/librarian/services/librarian/grounding/consistency"
	"github.com/AleutianAI/librarian/services/librarian/grounding/cove"
	"github.com/AleutianAI/librarian/services/librarian/provider"
)

// MaxYAMLFileSize is the largest configuration file accepted.
const MaxYAMLFileSize = 1024 * 1024

// ErrInvalidConfig wraps every parse and validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

//go:embed defaults.yaml
var defaultYAML []byte

var validate = validator.New()

// Config is the root configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Source      SourceConfig      `yaml:"source"`
	ASTVerifier ASTVerifierConfig `yaml:"ast_verifier"`
	Citation    CitationConfig    `yaml:"citation"`
	CoVe        CoVeConfig        `yaml:"cove"`
	Consistency ConsistencyConfig `yaml:"consistency"`
	Provider    ProviderConfig    `yaml:"provider"`
	Audit       AuditConfig       `yaml:"audit"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" validate:"gt=0"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir    string `yaml:"dir"`
	Format string `yaml:"format" validate:"oneof=auto text json"`
}

// TelemetryConfig configures tracing and metrics export.
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" validate:"required"`
	TraceExporter  string  `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	OTLPEndpoint   string  `yaml:"otlp_endpoint" validate:"required_if=TraceExporter otlp"`
	SampleRate     float64 `yaml:"sample_rate" validate:"gte=0,lte=1"`
	MetricExporter string  `yaml:"metric_exporter" validate:"oneof=none stdout prometheus"`
}

// SourceConfig configures the repository the verifiers read.
type SourceConfig struct {
	Root          string        `yaml:"root" validate:"required"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	ParseCacheTTL time.Duration `yaml:"parse_cache_ttl" validate:"gte=0"`
	MaxFileSize   int           `yaml:"max_file_size" validate:"gt=0"`
}

// ASTVerifierConfig mirrors astverify.Config.
type ASTVerifierConfig struct {
	LineTolerance       int     `yaml:"line_tolerance" validate:"gte=0"`
	EnableFuzzyMatching bool    `yaml:"enable_fuzzy_matching"`
	VerifiedThreshold   float64 `yaml:"verified_threshold" validate:"gte=0,lte=1"`
}

// CitationConfig mirrors citation.Config.
type CitationConfig struct {
	GroundingThreshold float64 `yaml:"grounding_threshold" validate:"gte=0,lte=1"`
	PreferredMethod    string  `yaml:"preferred_method" validate:"oneof=exact_match entailment semantic_similarity"`
	EnableFallback     bool    `yaml:"enable_fallback"`
	ExactMatchWeight   float64 `yaml:"exact_match_weight" validate:"gte=0,lte=1"`
}

// CoVeConfig mirrors cove.Config.
type CoVeConfig struct {
	MaxVerificationQuestions   int     `yaml:"max_verification_questions" validate:"gte=1"`
	MinConfidenceThreshold     float64 `yaml:"min_confidence_threshold" validate:"gte=0,lte=1"`
	AddHedgingForLowConfidence bool    `yaml:"add_hedging_for_low_confidence"`
	HedgingThreshold           float64 `yaml:"hedging_threshold" validate:"gte=0,lte=1"`
}

// ConsistencyConfig mirrors consistency.Config.
type ConsistencyConfig struct {
	MaxConcurrency int `yaml:"max_concurrency" validate:"gte=1"`
}

// ProviderConfig enables the answer provider used by consistency runs.
type ProviderConfig struct {
	Enabled         bool `yaml:"enabled"`
	provider.Config `yaml:",inline"`
}

// AuditConfig enables the verdict log.
type AuditConfig struct {
	Enabled        bool `yaml:"enabled"`
	audit.DBConfig `yaml:",inline"`
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := decode(defaultYAML, nil)
	if err != nil {
		// The embedded document is part of the binary.
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load reads the configuration.
//
// Inputs:
//
//	path - YAML file decoded over the defaults. Empty uses defaults only.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - Wraps ErrInvalidConfig for parse and validation failures, or
//	        the file read error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := readLimited(path)
		if err != nil {
			return nil, err
		}
		if cfg, err = decode(data, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg, os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readLimited(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxYAMLFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidConfig, path, MaxYAMLFileSize)
	}
	return data, nil
}

// decode decodes data over base, or over a zero Config when base is nil.
// Unknown keys are rejected.
func decode(data []byte, base *Config) (*Config, error) {
	cfg := base
	if cfg == nil {
		cfg = &Config{}
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ASTVerifierConfig returns the verifier configuration.
func (c *Config) ASTVerifierConfig() *astverify.Config {
	return &astverify.Config{
		LineTolerance:       c.ASTVerifier.LineTolerance,
		EnableFuzzyMatching: c.ASTVerifier.EnableFuzzyMatching,
		VerifiedThreshold:   c.ASTVerifier.VerifiedThreshold,
	}
}

// CitationConfig returns the pipeline configuration.
func (c *Config) CitationConfig() *citation.Config {
	return &citation.Config{
		GroundingThreshold: c.Citation.GroundingThreshold,
		PreferredMethod:    citation.Method(c.Citation.PreferredMethod),
		EnableFallback:     c.Citation.EnableFallback,
		ExactMatchWeight:   c.Citation.ExactMatchWeight,
	}
}

// CoVeConfig returns the engine configuration.
func (c *Config) CoVeConfig() *cove.Config {
	return &cove.Config{
		MaxVerificationQuestions:   c.CoVe.MaxVerificationQuestions,
		MinConfidenceThreshold:     c.CoVe.MinConfidenceThreshold,
		AddHedgingForLowConfidence: c.CoVe.AddHedgingForLowConfidence,
		HedgingThreshold:           c.CoVe.HedgingThreshold,
	}
}

// ConsistencyConfig returns the checker configuration.
func (c *Config) ConsistencyConfig() *consistency.Config {
	return &consistency.Config{MaxConcurrency: c.Consistency.MaxConcurrency}
}
