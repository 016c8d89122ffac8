// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

// Package finder discovers plugin descriptors on disk.
package finder

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"

	plugins "github.com/terraplug/terraplug/internal/plugin"
	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

// DefaultPatterns match descriptor files when none are configured.
var DefaultPatterns = []string{"*.teplg.json", "*.teplg.yaml", "plugin.json", "plugin.yaml"}

type pattern struct {
	full bool
	g    glob.Glob
}

// Directory finds descriptors below a root directory. Patterns without a
// slash match file names; patterns with one match the slash-separated path
// relative to the root.
type Directory struct {
	root        string
	patterns    []pattern
	serializers *plugins.SerializerRegistry
	logger      *slog.Logger
	parallelism int
}

// Option configures a Directory.
type Option func(*Directory)

// WithLogger sets the logger used for skipped descriptors.
func WithLogger(l *slog.Logger) Option {
	return func(d *Directory) {
		d.logger = l
	}
}

// WithParallelism bounds the number of descriptors parsed at once.
func WithParallelism(n int) Option {
	return func(d *Directory) {
		if n > 0 {
			d.parallelism = n
		}
	}
}

// NewDirectory creates a finder over root. Descriptors are parsed by the
// serializer associated with their extension.
func NewDirectory(root string, patterns []string, serializers *plugins.SerializerRegistry, opts ...Option) (*Directory, error) {
	if serializers == nil {
		return nil, oops.Code(pluginpkg.CodeInvalidArgument).Errorf("serializers cannot be nil")
	}
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	d := &Directory{
		root:        root,
		serializers: serializers,
		logger:      slog.Default(),
		parallelism: runtime.GOMAXPROCS(0),
	}
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, oops.Code(pluginpkg.CodeInvalidArgument).
				With("pattern", p).
				Wrapf(err, "invalid descriptor pattern")
		}
		d.patterns = append(d.patterns, pattern{full: strings.Contains(p, "/"), g: g})
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Find returns the descriptors below the root in path order. Files that
// fail to parse and names seen earlier are logged and skipped. A missing
// root yields no descriptors.
func (d *Directory) Find(ctx context.Context) ([]pluginpkg.Info, error) {
	paths, err := d.match()
	if err != nil {
		return nil, err
	}

	results := make([]*pluginpkg.Info, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.parallelism)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			info, err := d.serializers.Parse(path)
			if err != nil {
				d.logger.Warn("skipping invalid plugin descriptor",
					"path", path,
					"error", err)
				return nil
			}
			results[i] = &info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, oops.With("root", d.root).Wrapf(err, "discover plugins")
	}

	seen := make(map[string]string, len(results))
	infos := make([]pluginpkg.Info, 0, len(results))
	for i, info := range results {
		if info == nil {
			continue
		}
		if first, dup := seen[info.Name]; dup {
			d.logger.Warn("skipping duplicate plugin descriptor",
				"plugin", info.Name,
				"path", paths[i],
				"first", first)
			continue
		}
		seen[info.Name] = paths[i]
		infos = append(infos, *info)
	}
	return infos, nil
}

// Register adds the finder to r under name.
func (d *Directory) Register(r *plugins.FinderRegistry, name string) error {
	return r.Insert(name, d.Find)
}

func (d *Directory) match() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == d.root && errors.Is(err, os.ErrNotExist) {
				return fs.SkipAll
			}
			d.logger.Warn("skipping unreadable path", "path", path, "error", err)
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		if d.matches(filepath.ToSlash(rel)) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, oops.Code(pluginpkg.CodeNotFound).With("root", d.root).Wrapf(err, "walk plugin directory")
	}
	return paths, nil
}

func (d *Directory) matches(rel string) bool {
	base := rel[strings.LastIndex(rel, "/")+1:]
	for _, p := range d.patterns {
		if p.full && p.g.Match(rel) || !p.full && p.g.Match(base) {
			return true
		}
	}
	return false
}
