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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goSource = `package demo

type Store struct {
	items map[string]int
}

type Reader interface {
	Read() error
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Get(key string) int {
	return s.items[key]
}
`

const pySource = `class Parser(Base):
    def parse(self, text):
        return text

def helper():
    pass
`

func TestParser_Go(t *testing.T) {
	p := NewParser()
	syms, err := p.Symbols(context.Background(), "store.go", []byte(goSource))
	require.NoError(t, err)

	store, ok := Find(syms, "Store", Kind.IsClassLike)
	require.True(t, ok)
	assert.Equal(t, KindClass, store.Kind)
	assert.Equal(t, 3, store.Line)

	reader, ok := Find(syms, "Reader", Kind.IsClassLike)
	require.True(t, ok)
	assert.Equal(t, KindInterface, reader.Kind)
	assert.Equal(t, 7, reader.Line)

	fn, ok := Find(syms, "NewStore", Kind.IsCallable)
	require.True(t, ok)
	assert.Equal(t, KindFunction, fn.Kind)
	assert.Equal(t, 11, fn.Line)

	get, ok := Find(syms, "Store.Get", Kind.IsCallable)
	require.True(t, ok)
	assert.Equal(t, KindMethod, get.Kind)
	assert.Equal(t, "Store", get.Parent)
	assert.Equal(t, 15, get.Line)

	_, ok = Find(syms, "Store", Kind.IsCallable)
	assert.False(t, ok, "a struct must not satisfy a function lookup")
}

func TestParser_Python(t *testing.T) {
	p := NewParser()
	syms, err := p.Symbols(context.Background(), "parser.py", []byte(pySource))
	require.NoError(t, err)

	cls, ok := Find(syms, "Parser", Kind.IsClassLike)
	require.True(t, ok)
	assert.Equal(t, 1, cls.Line)

	m, ok := Find(syms, "parse", Kind.IsCallable)
	require.True(t, ok)
	assert.Equal(t, KindMethod, m.Kind)
	assert.Equal(t, "Parser", m.Parent)
	assert.Equal(t, 2, m.Line)

	fn, ok := Find(syms, "helper", Kind.IsCallable)
	require.True(t, ok)
	assert.Equal(t, KindFunction, fn.Kind)
	assert.Equal(t, 5, fn.Line)
}

func TestParser_CachesByContent(t *testing.T) {
	p := NewParser()
	ctx := context.Background()

	first, err := p.Symbols(ctx, "store.go", []byte(goSource))
	require.NoError(t, err)
	second, err := p.Symbols(ctx, "store.go", []byte(goSource))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	changed, err := p.Symbols(ctx, "store.go", []byte("package demo\n\nfunc Only() {}\n"))
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, "Only", changed[0].Name)
}

func TestParser_Errors(t *testing.T) {
	p := NewParser(WithMaxFileSize(10))

	_, err := p.Symbols(context.Background(), "README.md", []byte("# hi"))
	assert.True(t, errors.Is(err, ErrUnsupportedLanguage))

	_, err = p.Symbols(context.Background(), "big.go", []byte(goSource))
	assert.True(t, errors.Is(err, ErrFileTooLarge))

	assert.True(t, Supports("a.tsx"))
	assert.False(t, Supports("a.rb"))
}

func TestScanDeclarations(t *testing.T) {
	src := []byte(`pub struct Config {
}

pub fn load(path: &str) -> Config {
}

export class Widget extends Base {
}

export const render = (w) => w
`)
	syms := ScanDeclarations(src)

	cfg, ok := Find(syms, "Config", Kind.IsClassLike)
	require.True(t, ok)
	assert.Equal(t, 1, cfg.Line)

	load, ok := Find(syms, "load", Kind.IsCallable)
	require.True(t, ok)
	assert.Equal(t, 4, load.Line)

	widget, ok := Find(syms, "Widget", Kind.IsClassLike)
	require.True(t, ok)
	assert.Equal(t, 7, widget.Line)

	render, ok := Find(syms, "render", Kind.IsCallable)
	require.True(t, ok)
	assert.Equal(t, 10, render.Line)
}

func TestScanDeclarations_GoMatchesParser(t *testing.T) {
	syms := ScanDeclarations([]byte(goSource))

	get, ok := Find(syms, "Store.Get", Kind.IsCallable)
	require.True(t, ok)
	assert.Equal(t, 15, get.Line)

	store, ok := Find(syms, "Store", Kind.IsClassLike)
	require.True(t, ok)
	assert.Equal(t, 3, store.Line)
}
