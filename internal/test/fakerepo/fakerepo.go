// Package fakerepo provides an in-memory stand-in for git remotes, working trees, and manifest
// files, implementing both [asterism.VCS] and [asterism.Store] to facilitate testing.
package fakerepo

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/asterism-build/asterism"
)

// RemoteURL is the remote URL template that maps project references onto [Repos] projects.
const RemoteURL = "fake://%s"

// HeadRevision is the name of the revision a fresh clone has checked out.
const HeadRevision = "HEAD"

// An Option controls the manifest of a fake revision.
type Option func(*asterism.Manifest)

// Require returns an [Option] that adds a dependency on project constrained by the range
// expression rng.
func Require(project, rng string) Option {
	return func(m *asterism.Manifest) {
		m.Dependencies = append(m.Dependencies, asterism.ManifestDependency{Project: project, Version: rng})
	}
}

// SolutionPath returns an [Option] that sets the manifest's solution path.
func SolutionPath(path string) Option {
	return func(m *asterism.Manifest) { m.SolutionPath = path }
}

// Artifacts returns an [Option] that sets the manifest's exported header and library patterns.
func Artifacts(headers, libraries []string) Option {
	return func(m *asterism.Manifest) {
		m.Artifacts = &asterism.Artifacts{IncludeHeaders: headers, LinkLibraries: libraries}
	}
}

type revision struct {
	name     string
	commit   string
	manifest *asterism.Manifest
}

type project struct {
	ref  string
	tags []revision
	head revision
}

func (p *project) byCommit(commit string) (revision, bool) {
	if p.head.commit == commit {
		return p.head, true
	}
	for _, r := range p.tags {
		if r.commit == commit {
			return r, true
		}
	}
	return revision{}, false
}

type tree struct {
	project  *project // nil for a root tree
	commit   string
	manifest *asterism.Manifest // root trees only
}

// Repos is a universe of fake projects and working trees.  The zero value is not usable; construct
// with [New].  Repos is not safe for concurrent use.
type Repos struct {
	projects  map[string]*project
	trees     map[string]*tree
	lockfiles map[string]*asterism.Lockfile

	// Clones, Fetches, and Checkouts count VCS operations per working-tree directory.
	Clones    map[string]int
	Fetches   map[string]int
	Checkouts map[string]int
}

var (
	_ asterism.VCS   = (*Repos)(nil)
	_ asterism.Store = (*Repos)(nil)
)

// New returns an empty universe.
func New() *Repos {
	return &Repos{
		projects:  map[string]*project{},
		trees:     map[string]*tree{},
		lockfiles: map[string]*asterism.Lockfile{},
		Clones:    map[string]int{},
		Fetches:   map[string]int{},
		Checkouts: map[string]int{},
	}
}

// Commit returns the fake commit hash of the named revision of ref.
func Commit(ref, name string) string {
	sum := sha1.Sum([]byte(ref + "@" + name))
	return hex.EncodeToString(sum[:])
}

func newManifest(ref string, opts []Option) *asterism.Manifest {
	m := &asterism.Manifest{Name: ref}
	if _, name, ok := strings.Cut(ref, "/"); ok {
		m.Name = name
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (r *Repos) project(ref string) *project {
	p, ok := r.projects[ref]
	if !ok {
		p = &project{ref: ref}
		p.head = revision{HeadRevision, Commit(ref, HeadRevision), newManifest(ref, nil)}
		r.projects[ref] = p
	}
	return p
}

// Tag adds a tagged revision named tag to project ref.  The tag name is used verbatim, so it may
// carry a "v" prefix or not be a version at all.
func (r *Repos) Tag(ref, tag string, opts ...Option) *Repos {
	p := r.project(ref)
	p.tags = append(p.tags, revision{tag, Commit(ref, tag), newManifest(ref, opts)})
	return r
}

// Alias adds a tag named alias pointing at the same commit as the existing tag named tag.
func (r *Repos) Alias(ref, tag, alias string) *Repos {
	p := r.project(ref)
	for _, t := range p.tags {
		if t.name == tag {
			p.tags = append(p.tags, revision{alias, t.commit, t.manifest})
			return r
		}
	}
	panic(fmt.Errorf("%s has no tag %q", ref, tag))
}

// Head sets the manifest of project ref's default branch.
func (r *Repos) Head(ref string, opts ...Option) *Repos {
	p := r.project(ref)
	p.head.manifest = newManifest(ref, opts)
	return r
}

// Root creates (or replaces) a root working tree at dir with the given manifest.
func (r *Repos) Root(dir string, opts ...Option) *Repos {
	r.trees[filepath.Clean(dir)] = &tree{manifest: newManifest(filepath.Base(dir), opts)}
	return r
}

// CheckedOut returns the commit dir currently has checked out.
func (r *Repos) CheckedOut(dir string) string {
	if t, ok := r.trees[filepath.Clean(dir)]; ok {
		return t.commit
	}
	return ""
}

// Exists implements [asterism.VCS].
func (r *Repos) Exists(dir string) bool {
	_, ok := r.trees[filepath.Clean(dir)]
	return ok
}

// Clone implements [asterism.VCS].
func (r *Repos) Clone(ctx context.Context, remoteURL, dir string) error {
	var ref string
	if _, err := fmt.Sscanf(remoteURL, RemoteURL, &ref); err != nil {
		return fmt.Errorf("unsupported remote %q: %w", remoteURL, err)
	}
	p, ok := r.projects[ref]
	if !ok {
		return fmt.Errorf("repository %q not found", remoteURL)
	}
	dir = filepath.Clean(dir)
	slog.DebugContext(ctx, "fake clone", "project", ref, "dir", dir)
	r.trees[dir] = &tree{project: p, commit: p.head.commit}
	r.Clones[dir]++
	return nil
}

func (r *Repos) checkout(dir string) (*tree, error) {
	dir = filepath.Clean(dir)
	t, ok := r.trees[dir]
	if !ok {
		return nil, fmt.Errorf("%s: not a working tree", dir)
	}
	if t.project == nil {
		return nil, fmt.Errorf("%s: root tree has no remote", dir)
	}
	return t, nil
}

// Fetch implements [asterism.VCS].
func (r *Repos) Fetch(ctx context.Context, dir string) error {
	if _, err := r.checkout(dir); err != nil {
		return err
	}
	r.Fetches[filepath.Clean(dir)]++
	return nil
}

// ListTags implements [asterism.VCS].
func (r *Repos) ListTags(ctx context.Context, dir string) ([]asterism.Tag, error) {
	t, err := r.checkout(dir)
	if err != nil {
		return nil, err
	}
	var tags []asterism.Tag
	for _, rev := range t.project.tags {
		tags = append(tags, asterism.Tag{Name: rev.name, Commit: rev.commit})
	}
	return tags, nil
}

// CurrentCommit implements [asterism.VCS].
func (r *Repos) CurrentCommit(ctx context.Context, dir string) (string, error) {
	t, err := r.checkout(dir)
	if err != nil {
		return "", err
	}
	return t.commit, nil
}

// Checkout implements [asterism.VCS].
func (r *Repos) Checkout(ctx context.Context, dir, ref string) error {
	t, err := r.checkout(dir)
	if err != nil {
		return err
	}
	commit := ref
	if i := slices.IndexFunc(t.project.tags, func(rev revision) bool { return rev.name == ref }); i >= 0 {
		commit = t.project.tags[i].commit
	}
	if _, ok := t.project.byCommit(commit); !ok {
		return fmt.Errorf("%s: unknown revision %q", dir, ref)
	}
	t.commit = commit
	r.Checkouts[filepath.Clean(dir)]++
	return nil
}

// LoadManifest implements [asterism.Store].  path must name the manifest of a known working tree.
func (r *Repos) LoadManifest(path string) (*asterism.Manifest, error) {
	t, ok := r.trees[filepath.Dir(path)]
	if !ok || filepath.Base(path) != asterism.ManifestFileName {
		return nil, &asterism.ManifestError{Path: path, Err: fs.ErrNotExist}
	}
	if t.project == nil {
		return t.manifest, nil
	}
	rev, ok := t.project.byCommit(t.commit)
	if !ok {
		return nil, &asterism.ManifestError{Path: path, Err: fs.ErrNotExist}
	}
	return rev.manifest, nil
}

// LoadLockfile implements [asterism.Store].
func (r *Repos) LoadLockfile(path string) (*asterism.Lockfile, error) {
	lf, ok := r.lockfiles[filepath.Clean(path)]
	if !ok {
		return nil, &asterism.ManifestError{Path: path, Lockfile: true, Err: fs.ErrNotExist}
	}
	return cloneLockfile(lf), nil
}

// SaveLockfile implements [asterism.Store].
func (r *Repos) SaveLockfile(path string, lf *asterism.Lockfile) error {
	r.lockfiles[filepath.Clean(path)] = cloneLockfile(lf)
	return nil
}

// Lockfile returns the lockfile last saved at path, if any.
func (r *Repos) Lockfile(path string) (*asterism.Lockfile, bool) {
	lf, ok := r.lockfiles[filepath.Clean(path)]
	if !ok {
		return nil, false
	}
	return cloneLockfile(lf), true
}

func cloneLockfile(lf *asterism.Lockfile) *asterism.Lockfile {
	return &asterism.Lockfile{
		DocumentVersion: lf.DocumentVersion,
		Dependencies:    slices.Clone(lf.Dependencies),
	}
}
