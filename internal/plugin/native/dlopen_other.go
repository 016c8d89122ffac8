// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

//go:build !darwin && !linux

package native

import (
	"runtime"

	"github.com/samber/oops"
)

// Open reports that shared libraries cannot be opened on this platform.
func Open(path string) (Library, error) {
	return nil, oops.With("path", path).
		With("goos", runtime.GOOS).
		Errorf("native plugins are not supported on %s", runtime.GOOS)
}
