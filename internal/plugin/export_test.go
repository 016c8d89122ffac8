// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package plugin

import "time"

// SetClock replaces the clock used to stamp load times.
func SetClock(m *Manager, now func() time.Time) {
	m.now = now
}
