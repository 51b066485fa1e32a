// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LIBRARIAN_"

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// envOverrides lists the supported variables. Malformed numbers and
// booleans are ignored and fail nothing; validation still runs after.
var envOverrides = map[string]func(c *Config, v string){
	"ADDR":              func(c *Config, v string) { c.Server.Addr = v },
	"LOG_LEVEL":         func(c *Config, v string) { c.Logging.Level = strings.ToLower(v) },
	"LOG_DIR":           func(c *Config, v string) { c.Logging.Dir = v },
	"LOG_FORMAT":        func(c *Config, v string) { c.Logging.Format = strings.ToLower(v) },
	"TRACE_EXPORTER":    func(c *Config, v string) { c.Telemetry.TraceExporter = strings.ToLower(v) },
	"OTLP_ENDPOINT":     func(c *Config, v string) { c.Telemetry.OTLPEndpoint = v },
	"SOURCE_ROOT":       func(c *Config, v string) { c.Source.Root = v },
	"AUDIT_PATH":        func(c *Config, v string) { c.Audit.Path = v },
	"AUDIT_ENABLED":     func(c *Config, v string) { setBool(&c.Audit.Enabled, v) },
	"AUDIT_REDACT":      func(c *Config, v string) { setBool(&c.Audit.Redact, v) },
	"PROVIDER_ENABLED":  func(c *Config, v string) { setBool(&c.Provider.Enabled, v) },
	"PROVIDER_BASE_URL": func(c *Config, v string) { c.Provider.BaseURL = v },
	"PROVIDER_MODEL":    func(c *Config, v string) { c.Provider.Model = v },
	"PROVIDER_API_KEY":  func(c *Config, v string) { c.Provider.APIKey = v },
	"PROVIDER_RPS":      func(c *Config, v string) { setFloat(&c.Provider.RequestsPerSecond, v) },
	"CITATION_METHOD":   func(c *Config, v string) { c.Citation.PreferredMethod = strings.ToLower(v) },
	"LINE_TOLERANCE":    func(c *Config, v string) { setInt(&c.ASTVerifier.LineTolerance, v) },
}

// applyEnv applies LIBRARIAN_* overrides. OPENAI_API_KEY is honored when
// no provider key is configured.
func applyEnv(c *Config, lookup lookupFunc) {
	for name, set := range envOverrides {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			set(c, v)
		}
	}
	if c.Provider.APIKey == "" {
		if v, ok := lookup("OPENAI_API_KEY"); ok {
			c.Provider.APIKey = v
		}
	}
}

func setBool(dst *bool, v string) {
	if b, err := strconv.ParseBool(v); err == nil {
		*dst = b
	}
}

func setInt(dst *int, v string) {
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func setFloat(dst *float64, v string) {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = f
	}
}
