// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

// Package errutil provides helpers for logging and asserting oops errors.
package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level. For oops errors the code, domain, hint
// and context are logged as separate attributes; attrs are appended as given.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		logger.Error(msg, append([]any{"error", err}, attrs...)...)
		return
	}

	fields := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil && code != "" {
		fields = append(fields, "code", code)
	}
	if domain := oopsErr.Domain(); domain != "" {
		fields = append(fields, "domain", domain)
	}
	if hint := oopsErr.Hint(); hint != "" {
		fields = append(fields, "hint", hint)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		fields = append(fields, "context", ctx)
	}
	logger.Error(msg, append(fields, attrs...)...)
}
