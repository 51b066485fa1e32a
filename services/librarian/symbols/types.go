// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package symbols supplies the structural facts the AST claim verifier
// needs: which functions, methods and classes a file declares, and on
// which line.
//
// Two sources are provided. Parser uses tree-sitter grammars for Go,
// Python, JavaScript, TypeScript and TSX. ScanDeclarations is a
// line-oriented regex scanner used for every other language and as a
// fallback when parsing fails.
package symbols

import (
	"errors"
	"strings"
)

// Kind is the declaration kind of a symbol.
type Kind string

const (
	KindFunction  Kind = "function"
	KindMethod    Kind = "method"
	KindClass     Kind = "class"
	KindInterface Kind = "interface"
	KindType      Kind = "type"
)

// IsCallable reports whether the kind satisfies a function claim.
func (k Kind) IsCallable() bool {
	return k == KindFunction || k == KindMethod
}

// IsClassLike reports whether the kind satisfies a class claim.
func (k Kind) IsClassLike() bool {
	return k == KindClass || k == KindInterface || k == KindType
}

// Symbol is one declaration found in a file.
type Symbol struct {
	// Name is the declared identifier.
	Name string `json:"name"`

	// Kind is the declaration kind.
	Kind Kind `json:"kind"`

	// Line is the 1-indexed line of the declaration.
	Line int `json:"line"`

	// EndLine is the 1-indexed last line, or Line when unknown.
	EndLine int `json:"end_line"`

	// Parent is the enclosing class or receiver type, if any.
	Parent string `json:"parent,omitempty"`
}

var (
	// ErrUnsupportedLanguage is returned when no grammar handles the file.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrFileTooLarge is returned when content exceeds the parser limit.
	ErrFileTooLarge = errors.New("file too large")
)

// Find returns the first symbol named name whose kind satisfies accept.
// Method names may be qualified as "Type.Method".
func Find(syms []Symbol, name string, accept func(Kind) bool) (Symbol, bool) {
	parent := ""
	if i := strings.LastIndex(name, "."); i > 0 {
		parent, name = name[:i], name[i+1:]
	}
	for _, s := range syms {
		if s.Name != name || !accept(s.Kind) {
			continue
		}
		if parent != "" && s.Parent != parent {
			continue
		}
		return s, true
	}
	return Symbol{}, false
}
