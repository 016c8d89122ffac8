// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package plugin

import (
	"fmt"

	"github.com/samber/oops"

	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

// rewrap attaches the builder's code to err. oops reports the innermost
// code of a chain, so an err that already carries a different code is
// replaced by a new error holding its message instead of being wrapped.
func rewrap(errb oops.OopsErrorBuilder, err error, format string, args ...any) error {
	switch code := pluginpkg.Code(err); {
	case code == "":
		return errb.Wrapf(err, format, args...)
	case code == pluginpkg.Code(errb.New("")):
		return err
	default:
		return errb.With("cause_code", code).Errorf("%s: %s", fmt.Sprintf(format, args...), err.Error())
	}
}
