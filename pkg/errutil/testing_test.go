// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/terraplug/terraplug/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("NOT_FOUND").Errorf("engine missing")
	errutil.AssertErrorCode(t, err, "NOT_FOUND")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("plugin", "a").Errorf("test error")
	errutil.AssertErrorContext(t, err, "plugin", "a")
}

func TestAssertErrorContains(t *testing.T) {
	err := oops.Code("PLUGIN_SHUTDOWN").Errorf("plugin a required by: b, c")
	errutil.AssertErrorContains(t, err, "PLUGIN_SHUTDOWN", "required by", "b, c")
}
