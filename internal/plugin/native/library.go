// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package native

import (
	"sync"

	"github.com/samber/oops"

	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

// Library is an opened shared library.
type Library interface {
	// Func binds the exported function symbol to fptr, a pointer to a
	// variable of func type.
	Func(symbol string, fptr any) error

	// Close unmaps the library.
	Close() error
}

// Opener opens the shared library at path.
type Opener func(path string) (Library, error)

// sharedLibrary is a reference-counted Library shared by every plugin
// instance loaded from the same path.
type sharedLibrary struct {
	Library
	path string
	refs int
}

// libraryCache hands out shared libraries by path.
type libraryCache struct {
	open Opener

	mu   sync.Mutex
	libs map[string]*sharedLibrary
}

func newLibraryCache(open Opener) *libraryCache {
	return &libraryCache{
		open: open,
		libs: make(map[string]*sharedLibrary),
	}
}

// acquire returns the library at path, opening it on first use.
func (c *libraryCache) acquire(path string) (*sharedLibrary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if lib, ok := c.libs[path]; ok {
		lib.refs++
		return lib, nil
	}

	l, err := c.open(path)
	if err != nil {
		return nil, err
	}
	lib := &sharedLibrary{Library: l, path: path, refs: 1}
	c.libs[path] = lib
	return lib, nil
}

// release drops one reference and closes the library with the last one.
func (c *libraryCache) release(lib *sharedLibrary) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if lib.refs <= 0 {
		return oops.Code(pluginpkg.CodeEngineUnload).
			With("path", lib.path).
			Errorf("library %s released too many times", lib.path)
	}
	lib.refs--
	if lib.refs > 0 {
		return nil
	}
	delete(c.libs, lib.path)
	if err := lib.Close(); err != nil {
		return oops.Code(pluginpkg.CodeEngineUnload).
			With("path", lib.path).
			Wrapf(err, "close library %s", lib.path)
	}
	return nil
}

// refs reports the reference count of the library at path.
func (c *libraryCache) refs(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if lib, ok := c.libs[path]; ok {
		return lib.refs
	}
	return 0
}
