// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

//go:build darwin || linux

package native

import (
	"github.com/ebitengine/purego"
	"github.com/samber/oops"
)

type dynamicLibrary struct {
	handle uintptr
	path   string
}

// Open maps the shared library at path with dlopen.
func Open(path string) (Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, oops.With("path", path).Wrapf(err, "dlopen %s", path)
	}
	return &dynamicLibrary{handle: handle, path: path}, nil
}

func (l *dynamicLibrary) Func(symbol string, fptr any) error {
	sym, err := purego.Dlsym(l.handle, symbol)
	if err != nil {
		return oops.With("path", l.path).With("symbol", symbol).Wrapf(err, "dlsym %s", symbol)
	}
	purego.RegisterFunc(fptr, sym)
	return nil
}

func (l *dynamicLibrary) Close() error {
	if err := purego.Dlclose(l.handle); err != nil {
		return oops.With("path", l.path).Wrapf(err, "dlclose %s", l.path)
	}
	return nil
}
