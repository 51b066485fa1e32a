// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package symbols

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// DefaultMaxFileSize is the largest file the parser accepts (10MB).
const DefaultMaxFileSize = 10 * 1024 * 1024

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithMaxFileSize sets the maximum file size in bytes.
func WithMaxFileSize(n int) ParserOption {
	return func(p *Parser) {
		p.maxFileSize = n
	}
}

// WithCacheTTL sets how long parsed symbol tables are kept.
func WithCacheTTL(ttl time.Duration) ParserOption {
	return func(p *Parser) {
		p.cache = gocache.New(ttl, 2*ttl)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ParserOption {
	return func(p *Parser) {
		p.logger = l
	}
}

// Parser extracts symbol tables with tree-sitter.
//
// Results are cached by path and content hash, so an edited file is
// always re-parsed.
//
// Thread Safety: Safe for concurrent use. A new tree-sitter parser is
// created per call.
type Parser struct {
	maxFileSize int
	cache       *gocache.Cache
	logger      *slog.Logger
}

// NewParser creates a tree-sitter symbol parser.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		maxFileSize: DefaultMaxFileSize,
		cache:       gocache.New(10*time.Minute, 20*time.Minute),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// languageFor maps a file extension to a grammar.
func languageFor(path string) (string, *sitter.Language, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go", golang.GetLanguage(), true
	case ".py", ".pyi":
		return "python", python.GetLanguage(), true
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript", javascript.GetLanguage(), true
	case ".ts", ".mts", ".cts":
		return "typescript", typescript.GetLanguage(), true
	case ".tsx":
		return "tsx", tsx.GetLanguage(), true
	}
	return "", nil, false
}

// Supports reports whether path has a tree-sitter grammar.
func Supports(path string) bool {
	_, _, ok := languageFor(path)
	return ok
}

// Symbols parses content and returns its declarations in source order.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - path: File path, used to select the grammar and as cache key.
//   - content: File contents.
//
// Outputs:
//   - []Symbol: Declarations found.
//   - error: ErrUnsupportedLanguage, ErrFileTooLarge, a parse failure, or
//     the context error.
func (p *Parser) Symbols(ctx context.Context, path string, content []byte) ([]Symbol, error) {
	lang, grammar, ok := languageFor(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, filepath.Ext(path))
	}
	if len(content) > p.maxFileSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}

	hash := sha256.Sum256(content)
	key := path + "@" + hex.EncodeToString(hash[:])
	if cached, found := p.cache.Get(key); found {
		return cached.([]Symbol), nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("tree-sitter returned nil root node for %s", path)
	}
	if root.HasError() {
		p.logger.Debug("source contains syntax errors",
			slog.String("file", path),
			slog.String("language", lang))
	}

	w := &walker{content: content, lang: lang}
	w.walk(root, "")

	p.cache.Set(key, w.out, gocache.DefaultExpiration)
	return w.out, nil
}

// walker collects declarations from a syntax tree.
type walker struct {
	content []byte
	lang    string
	out     []Symbol
}

func (w *walker) emit(node, nameNode *sitter.Node, kind Kind, parent string) {
	if nameNode == nil {
		return
	}
	w.out = append(w.out, Symbol{
		Name:    nameNode.Content(w.content),
		Kind:    kind,
		Line:    int(node.StartPoint().Row + 1),
		EndLine: int(node.EndPoint().Row + 1),
		Parent:  parent,
	})
}

// walk visits node and its children. class is the enclosing class name.
func (w *walker) walk(node *sitter.Node, class string) {
	if node == nil {
		return
	}
	childClass := class

	switch node.Type() {
	case "function_declaration", "generator_function_declaration":
		w.emit(node, node.ChildByFieldName("name"), KindFunction, "")
	case "function_definition":
		if class != "" {
			w.emit(node, node.ChildByFieldName("name"), KindMethod, class)
		} else {
			w.emit(node, node.ChildByFieldName("name"), KindFunction, "")
		}
	case "method_declaration":
		w.emit(node, node.ChildByFieldName("name"), KindMethod, w.receiverType(node))
	case "method_definition":
		w.emit(node, node.ChildByFieldName("name"), KindMethod, class)
	case "class_declaration", "class_definition", "abstract_class_declaration":
		name := node.ChildByFieldName("name")
		w.emit(node, name, KindClass, "")
		if name != nil {
			childClass = name.Content(w.content)
		}
	case "interface_declaration":
		w.emit(node, node.ChildByFieldName("name"), KindInterface, "")
	case "type_alias_declaration", "enum_declaration":
		w.emit(node, node.ChildByFieldName("name"), KindType, "")
	case "type_spec":
		w.emit(node, node.ChildByFieldName("name"), w.goTypeKind(node), "")
	case "variable_declarator":
		if value := node.ChildByFieldName("value"); value != nil {
			switch value.Type() {
			case "arrow_function", "function", "function_expression":
				kind := KindFunction
				if class != "" {
					kind = KindMethod
				}
				w.emit(node, node.ChildByFieldName("name"), kind, class)
			}
		}
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		w.walk(node.NamedChild(i), childClass)
	}
}

// goTypeKind classifies a Go type_spec by its underlying type.
func (w *walker) goTypeKind(spec *sitter.Node) Kind {
	t := spec.ChildByFieldName("type")
	if t == nil {
		return KindType
	}
	switch t.Type() {
	case "struct_type":
		return KindClass
	case "interface_type":
		return KindInterface
	}
	return KindType
}

// receiverType returns the receiver type name of a Go method.
func (w *walker) receiverType(method *sitter.Node) string {
	recv := method.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	text := recv.Content(w.content)
	text = strings.Trim(text, "()")
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	typ := fields[len(fields)-1]
	typ = strings.TrimLeft(typ, "*")
	if i := strings.Index(typ, "["); i > 0 {
		typ = typ[:i]
	}
	return typ
}
