// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

// Package native loads plugins from C/C++ shared libraries without cgo.
//
// A library exports te_cpp_plugin_get_instance, which receives the plugin
// descriptor as a JSON string and returns an opaque instance pointer, plus
// te_cpp_plugin_startup and te_cpp_plugin_shutdown (returning 0 on
// success) and te_cpp_plugin_destroy, which frees the instance.
package native

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/blake2b"

	plugins "github.com/terraplug/terraplug/internal/plugin"
	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

// ID is the engine id plugin descriptors use.
const ID = "C++"

// ResourceChecksum optionally pins the BLAKE2b-256 digest (hex) of the library.
const ResourceChecksum = "shared_library_blake2b"

// Engine loads native plugins.
type Engine struct {
	goos        string
	searchPaths []string
	libs        *libraryCache
	logger      *slog.Logger
}

var _ plugins.Engine = (*Engine)(nil)

// Option configures the Engine.
type Option func(*Engine)

// WithSearchPaths adds directories searched after the descriptor directory.
func WithSearchPaths(paths ...string) Option {
	return func(e *Engine) {
		e.searchPaths = append(e.searchPaths, paths...)
	}
}

// WithOpener replaces the dlopen based library opener.
func WithOpener(open Opener) Option {
	return func(e *Engine) {
		e.libs = newLibraryCache(open)
	}
}

// WithPlatform overrides the operating system used to name libraries.
func WithPlatform(goos string) Option {
	return func(e *Engine) {
		e.goos = goos
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates a native engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		goos:   runtime.GOOS,
		libs:   newLibraryCache(Open),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ID returns "C++".
func (e *Engine) ID() string { return ID }

// Name returns a display name.
func (e *Engine) Name() string { return "C++ shared library" }

// LibraryFileName returns the platform file name of library name. Names
// that already carry a library extension are returned unchanged.
func LibraryFileName(goos, name string) string {
	if strings.Contains(name, ".so.") {
		return name
	}
	for _, ext := range []string{".so", ".dylib", ".dll"} {
		if strings.HasSuffix(name, ext) {
			return name
		}
	}
	switch goos {
	case "windows":
		return name + ".dll"
	case "darwin", "ios":
		return "lib" + name + ".dylib"
	default:
		return "lib" + name + ".so"
	}
}

// Load opens the plugin's library and creates its instance.
func (e *Engine) Load(ctx context.Context, info pluginpkg.Info) (pluginpkg.Plugin, error) {
	if err := plugins.CheckEngine(ID, info, pluginpkg.CodeEngineLoad); err != nil {
		return nil, err
	}

	errb := oops.Code(pluginpkg.CodeEngineLoad).In("native").With("plugin", info.Name)

	name, ok := info.Resource(pluginpkg.ResourceSharedLibraryName)
	if !ok || strings.TrimSpace(name) == "" {
		return nil, errb.
			Hint("add a shared_library_name entry to the descriptor resources").
			Errorf("plugin %s: resource %s is required", info.Name, pluginpkg.ResourceSharedLibraryName)
	}
	if err := ctx.Err(); err != nil {
		return nil, errb.Wrapf(err, "plugin %s", info.Name)
	}

	lib, err := e.open(info, LibraryFileName(e.goos, name))
	if err != nil {
		return nil, err
	}

	fns, err := bind(lib)
	if err != nil {
		e.releaseQuietly(lib)
		return nil, errb.With("path", lib.path).Wrapf(err, "plugin %s: library %s", info.Name, lib.path)
	}

	infoJSON, err := json.Marshal(info)
	if err != nil {
		e.releaseQuietly(lib)
		return nil, errb.Wrapf(err, "plugin %s: encode descriptor", info.Name)
	}
	instance := fns.getInstance(string(infoJSON))
	if instance == 0 {
		e.releaseQuietly(lib)
		return nil, errb.With("path", lib.path).Errorf("plugin %s: %s returned no instance", info.Name, SymbolGetInstance)
	}

	e.logger.Debug("native plugin instantiated", "plugin", info.Name, "path", lib.path)
	return &Plugin{
		Base:     pluginpkg.NewBase(info),
		libs:     e.libs,
		lib:      lib,
		fns:      fns,
		instance: instance,
	}, nil
}

// Unload destroys the instance and releases its library reference. A
// started instance is shut down first.
func (e *Engine) Unload(_ context.Context, p pluginpkg.Plugin) error {
	if p == nil {
		return oops.Code(pluginpkg.CodeInvalidArgument).Errorf("plugin cannot be nil")
	}
	info := p.Info()
	if err := plugins.CheckEngine(ID, info, pluginpkg.CodeEngineUnload); err != nil {
		return err
	}
	proxy, ok := p.(*Plugin)
	if !ok {
		return oops.Code(pluginpkg.CodeEngineUnload).
			With("plugin", info.Name).
			Errorf("plugin %s was not loaded by the %s engine", info.Name, ID)
	}
	return proxy.release()
}

// open tries each candidate path in order and returns the first library
// that opens.
func (e *Engine) open(info pluginpkg.Info, file string) (*sharedLibrary, error) {
	errb := oops.Code(pluginpkg.CodeEngineLoad).In("native").With("plugin", info.Name)

	want, pinned := info.Resource(ResourceChecksum)
	var tried []string
	var errs []error
	for _, path := range e.candidates(info, file) {
		if pinned {
			if !strings.ContainsRune(path, filepath.Separator) && !strings.ContainsRune(path, '/') {
				continue
			}
			match, err := verifyChecksum(path, want)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, errb.With("path", path).Wrapf(err, "plugin %s", info.Name)
			}
			if !match {
				return nil, errb.
					With("path", path).
					Errorf("plugin %s: library %s does not match %s", info.Name, path, ResourceChecksum)
			}
		}

		tried = append(tried, path)
		lib, err := e.libs.acquire(path)
		if err == nil {
			return lib, nil
		}
		errs = append(errs, err)
	}

	errb = errb.With("library", file).With("tried", tried)
	if len(errs) == 0 {
		return nil, errb.Errorf("plugin %s: library %s not found", info.Name, file)
	}
	return nil, errb.Wrapf(errors.Join(errs...), "plugin %s: cannot load library %s", info.Name, file)
}

// candidates lists the paths tried for file: the descriptor directory,
// the search paths, the bare name, then ./file and ./lib/file.
func (e *Engine) candidates(info pluginpkg.Info, file string) []string {
	if filepath.IsAbs(file) {
		return []string{file}
	}

	var out []string
	if info.Dir != "" {
		out = append(out, filepath.Join(info.Dir, file))
	}
	for _, dir := range e.searchPaths {
		out = append(out, filepath.Join(dir, file))
	}
	out = append(out,
		file,
		"."+string(filepath.Separator)+file,
		"."+string(filepath.Separator)+filepath.Join("lib", file),
	)

	seen := make(map[string]struct{}, len(out))
	unique := out[:0]
	for _, p := range out {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		unique = append(unique, p)
	}
	return unique
}

func (e *Engine) releaseQuietly(lib *sharedLibrary) {
	if err := e.libs.release(lib); err != nil {
		e.logger.Warn("failed to release library", "path", lib.path, "error", err)
	}
}

// verifyChecksum reports whether the BLAKE2b-256 digest of path equals want.
func verifyChecksum(path, want string) (bool, error) {
	expected, err := hex.DecodeString(strings.TrimSpace(want))
	if err != nil {
		return false, oops.Wrapf(err, "invalid %s", ResourceChecksum)
	}
	data, err := os.ReadFile(path) //nolint:gosec // library paths come from plugin descriptors
	if err != nil {
		return false, err
	}
	sum := blake2b.Sum256(data)
	return subtle.ConstantTimeCompare(sum[:], expected) == 1, nil
}
