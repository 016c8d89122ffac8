// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package lua

import lua "github.com/yuin/gopher-lua"

// Eval runs code in the plugin's state and returns its first result as a string.
func Eval(p *Plugin, code string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	top := p.state.GetTop()
	if err := p.state.DoString(code); err != nil {
		return "", err
	}
	defer p.state.SetTop(top)
	return lua.LVAsString(p.state.Get(top + 1)), nil
}
