package build

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Placeholders that artifact patterns may contain.
const (
	PlatformPlaceholder      = "${PLATFORM}"
	ConfigurationPlaceholder = "${CONFIGURATION}"
)

// Expand substitutes c into pattern's placeholders and converts either kind of path separator to
// the host's.
func Expand(pattern string, c Configuration) string {
	pattern = strings.ReplaceAll(pattern, PlatformPlaceholder, c.Platform)
	pattern = strings.ReplaceAll(pattern, ConfigurationPlaceholder, c.Name)
	return filepath.FromSlash(strings.ReplaceAll(pattern, `\`, "/"))
}

// Packager copies the headers and libraries exported by modules into the shared artifacts tree,
// laid out as <Dir>/<platform>/<configuration>/{include,lib}.
type Packager struct {
	Dir string
	// Concurrency bounds the number of files copied at once.  Values below 1 mean 1.
	Concurrency int
}

// IncludeDir is where headers for c are collected.
func (p *Packager) IncludeDir(c Configuration) string {
	return filepath.Join(p.Dir, c.Platform, c.Name, "include")
}

// LibDir is where libraries for c are collected.
func (p *Packager) LibDir(c Configuration) string {
	return filepath.Join(p.Dir, c.Platform, c.Name, "lib")
}

// CopyHeaders copies the files matching patterns (relative to moduleDir) into [Packager.IncludeDir].
func (p *Packager) CopyHeaders(ctx context.Context, moduleDir string, patterns []string, c Configuration) error {
	_, err := p.copy(ctx, moduleDir, patterns, c, p.IncludeDir(c))
	return err
}

// CopyLibraries copies the files matching patterns (relative to moduleDir) into [Packager.LibDir]
// and returns the copied files' names.
func (p *Packager) CopyLibraries(ctx context.Context, moduleDir string, patterns []string, c Configuration) ([]string, error) {
	return p.copy(ctx, moduleDir, patterns, c, p.LibDir(c))
}

func (p *Packager) copy(ctx context.Context, moduleDir string, patterns []string, c Configuration, dest string) ([]string, error) {
	var srcs []string
	for _, pat := range patterns {
		matches, err := filepath.Glob(filepath.Join(moduleDir, Expand(pat, c)))
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pat, err)
		}
		n := 0
		for _, m := range matches {
			if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
				srcs = append(srcs, m)
				n++
			}
		}
		if n == 0 {
			return nil, fmt.Errorf("pattern %q matches no files in %s", pat, moduleDir)
		}
	}
	var names []string
	byName := map[string]string{}
	for _, src := range srcs {
		name := filepath.Base(src)
		if prev, ok := byName[name]; ok {
			if prev != src {
				return nil, fmt.Errorf("%s and %s would both be copied to %s", prev, src, dest)
			}
			continue
		}
		byName[name] = src
		names = append(names, name)
	}
	if err := os.MkdirAll(dest, 0o777); err != nil {
		return nil, err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.Concurrency, 1))
	for _, name := range names {
		src, dst := byName[name], filepath.Join(dest, name)
		g.Go(func() error { return copyFile(ctx, src, dst) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return names, nil
}

func copyFile(ctx context.Context, src, dst string) (retErr error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	slog.DebugContext(ctx, "copying artifact", "from", src, "to", dst)
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); retErr == nil {
			retErr = err
		}
	}()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return nil
}
