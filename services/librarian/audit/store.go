// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package audit keeps a durable log of verification verdicts.
//
// Every verdict the service returns is appended with its full result so a
// human can later see what was checked, against what, and why the verdict
// came out the way it did. Records live in an embedded BadgerDB and expire
// after the configured retention. With Redact set, secrets matching the
// embedded redact_patterns.yaml rules are scrubbed from Summary and Detail
// before the write.
//
// Key layout:
//
//	rec:<inverted unix nanos>:<id>  record body, newest first in key order
//	id:<id>                         record key, for lookup by ID
package audit

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"log/slog"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/librarian/services/librarian/grounding/confidence"
)

var (
	// ErrNotFound is returned by Get for an unknown record ID.
	ErrNotFound = errors.New("audit: record not found")

	// ErrCorrupted is returned when a stored record fails its checksum.
	ErrCorrupted = errors.New("audit: record corrupted")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("audit: store closed")
)

const (
	recPrefix = "rec:"
	idPrefix  = "id:"

	// DefaultListLimit is the page size when a query sets none.
	DefaultListLimit = 50

	// MaxListLimit caps the page size.
	MaxListLimit = 500
)

// Record is one audited verdict.
type Record struct {
	ID         string            `json:"id"`
	RequestID  string            `json:"request_id,omitempty"`
	Component  string            `json:"component"`
	Operation  string            `json:"operation"`
	Verified   bool              `json:"verified"`
	Score      float64           `json:"score"`
	Confidence *confidence.Value `json:"confidence,omitempty"`
	Summary    string            `json:"summary,omitempty"`
	Detail     json.RawMessage   `json:"detail,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Query filters List.
type Query struct {
	// Component keeps only records of one component. Empty keeps all.
	Component string `form:"component"`

	// Verified keeps only records with this verdict. Nil keeps all.
	Verified *bool `form:"verified"`

	// Limit is the maximum number of records. Zero means DefaultListLimit.
	Limit int `form:"limit" binding:"omitempty,gte=0,lte=500"`
}

// Store is the audit log.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db        *db
	retention time.Duration
	logger    *slog.Logger
	redactor  *Redactor
	now       func() time.Time
}

// Open opens the audit log.
//
// Inputs:
//
//	cfg - Storage configuration. Path is required unless InMemory is set.
//	logger - Logger for store events. Nil uses slog.Default().
//
// Outputs:
//
//	*Store - The store. Call Close when done.
//	error - Non-nil if the database cannot be opened.
func Open(cfg DBConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var redactor *Redactor
	if cfg.Redact {
		r, err := NewRedactor()
		if err != nil {
			return nil, err
		}
		redactor = r
	}
	d, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("audit log opened",
		slog.String("path", cfg.Path),
		slog.Bool("in_memory", cfg.InMemory),
		slog.Duration("retention", cfg.Retention))
	return &Store{db: d, retention: cfg.Retention, logger: logger, redactor: redactor, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.close()
}

func recordKey(createdAt time.Time, id string) []byte {
	inverted := math.MaxInt64 - createdAt.UnixNano()
	return []byte(fmt.Sprintf("%s%019d:%s", recPrefix, inverted, id))
}

// encode prefixes the JSON body with its CRC32.
func encode(r Record) ([]byte, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("audit: encode record: %w", err)
	}
	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out[:4], crc32.ChecksumIEEE(body))
	copy(out[4:], body)
	return out, nil
}

func decode(data []byte) (Record, error) {
	var r Record
	if len(data) < 5 {
		return r, fmt.Errorf("%w: entry too short", ErrCorrupted)
	}
	body := data[4:]
	if binary.BigEndian.Uint32(data[:4]) != crc32.ChecksumIEEE(body) {
		return r, fmt.Errorf("%w: checksum mismatch", ErrCorrupted)
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return r, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return r, nil
}

// Append stores a record. ID and CreatedAt are assigned when empty.
//
// Outputs:
//
//	Record - The stored record with ID and CreatedAt set.
//	error - Non-nil on encode or write failure, or a done context.
func (s *Store) Append(ctx context.Context, r Record) (Record, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	if s.redactor != nil {
		var fired []string
		if r, fired = s.redactor.RedactRecord(r); len(fired) > 0 {
			s.logger.Warn("audit record redacted",
				slog.String("id", r.ID),
				slog.Any("rules", fired))
		}
	}
	value, err := encode(r)
	if err != nil {
		return Record{}, err
	}
	key := recordKey(r.CreatedAt, r.ID)

	err = s.db.withTxn(ctx, func(txn *badger.Txn) error {
		rec := badger.NewEntry(key, value)
		idx := badger.NewEntry([]byte(idPrefix+r.ID), key)
		if s.retention > 0 {
			rec = rec.WithTTL(s.retention)
			idx = idx.WithTTL(s.retention)
		}
		if err := txn.SetEntry(rec); err != nil {
			return err
		}
		return txn.SetEntry(idx)
	})
	if err != nil {
		if errors.Is(err, badger.ErrDBClosed) {
			return Record{}, ErrClosed
		}
		return Record{}, fmt.Errorf("audit: append: %w", err)
	}
	s.logger.Debug("audit record appended",
		slog.String("id", r.ID),
		slog.String("component", r.Component),
		slog.Bool("verified", r.Verified))
	return r, nil
}

// Get returns the record with the given ID.
//
// Outputs:
//
//	Record - The record.
//	error - ErrNotFound, ErrCorrupted, or a read failure.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := s.db.withReadTxn(ctx, func(txn *badger.Txn) error {
		idx, err := txn.Get([]byte(idPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		key, err := idx.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rec, err = decode(val)
			return err
		})
	})
	return rec, err
}

// List returns records newest first.
//
// Corrupted records are logged and skipped so one bad entry does not
// hide the rest of the log.
func (s *Store) List(ctx context.Context, q Query) ([]Record, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	out := make([]Record, 0, min(limit, 64))
	prefix := []byte(recPrefix)
	err := s.db.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var rec Record
			err := item.Value(func(val []byte) error {
				var derr error
				rec, derr = decode(val)
				return derr
			})
			if err != nil {
				s.logger.Warn("skipping unreadable audit record",
					slog.String("key", string(item.Key())),
					slog.String("error", err.Error()))
				continue
			}
			if q.Component != "" && rec.Component != q.Component {
				continue
			}
			if q.Verified != nil && rec.Verified != *q.Verified {
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	return out, nil
}
