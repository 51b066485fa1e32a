// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package librarian

import "errors"

// Sentinel errors for the librarian service.
var (
	// ErrProviderUnavailable indicates a consistency run was requested but
	// no answer provider is configured.
	ErrProviderUnavailable = errors.New("answer provider not configured")

	// ErrAuditUnavailable indicates the audit log is disabled.
	ErrAuditUnavailable = errors.New("audit log not enabled")

	// ErrUnknownSymbolKind indicates a symbol claim that is neither a
	// function nor a class.
	ErrUnknownSymbolKind = errors.New("symbol kind must be function or class")
)
