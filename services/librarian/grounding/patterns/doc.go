// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package patterns holds the declarative extraction rules shared by the
// Librarian verifiers.
//
// Everything here is static data plus pure functions over it:
//   - Claim rules: regex templates mapped to a claim kind, an expected
//     answer shape and a question template. Evaluated first-match-wins.
//   - Relationship rules: named extractors producing typed
//     Relationship{Kind, Subject, Object} values from prose and code.
//   - Lookup tables: number words, synonym groups, stopwords, hedges.
//   - Text helpers: tokenization, key terms, overlap, sentence splitting.
//
// Rule order inside each table is significant. Callers rely on the
// documented precedence, so new rules must be inserted deliberately.
//
// Thread Safety:
//
//	All exported functions are safe for concurrent use. The tables are
//	never mutated after package initialization.
package patterns
