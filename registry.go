package asterism

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/Masterminds/semver/v3"
	"github.com/asterism-build/asterism/internal/logging"
)

// RegistryOptions configures a [Registry].
type RegistryOptions struct {
	// RootDir is the user's working directory.  It holds the root manifest and lockfile.
	RootDir string
	// CheckoutDir holds one working tree per non-root module, named after the module.
	CheckoutDir string
	// RemoteURL is a format string with one %s verb for the project reference.  Empty means
	// [DefaultRemoteURL].
	RemoteURL string
	// LockMode makes the root module's requirements come from its lockfile instead of its
	// manifest.
	LockMode bool
}

// Registry owns every [Module] of a single invocation and mediates their version-control and
// manifest access.  It is not safe for concurrent use.
type Registry struct {
	vcs   VCS
	store Store
	opts  RegistryOptions

	root    *Module
	modules map[string]*Module
	order   []*Module
}

// NewRegistry returns a registry whose root module lives at opts.RootDir.
func NewRegistry(vcs VCS, store Store, opts RegistryOptions) *Registry {
	rootDir := filepath.Clean(opts.RootDir)
	root := &Module{
		name:    filepath.Base(rootDir),
		dir:     rootDir,
		root:    true,
		fetched: true,
	}
	r := &Registry{
		vcs:     vcs,
		store:   store,
		opts:    opts,
		root:    root,
		modules: map[string]*Module{root.name: root},
		order:   []*Module{root},
	}
	return r
}

// Root returns the root module.
func (r *Registry) Root() *Module { return r.root }

// LockMode reports whether the registry replays the root lockfile.
func (r *Registry) LockMode() bool { return r.opts.LockMode }

// Lookup returns the module with the given name, if one has been created.
func (r *Registry) Lookup(name string) (*Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

// Modules yields every module in creation order, starting with the root.
func (r *Registry) Modules() iter.Seq[*Module] {
	return slices.Values(r.order)
}

// GetOrCreate returns the module for project, creating it (and cloning its working tree if the
// tree does not exist yet) on first use.  A freshly cloned module counts as fetched.
func (r *Registry) GetOrCreate(ctx context.Context, project string) (*Module, error) {
	name, err := ModuleName(project)
	if err != nil {
		return nil, err
	}
	if m, ok := r.modules[name]; ok {
		if m.root || m.project != project {
			return nil, fmt.Errorf("module name %q of project %q collides with %q", name, project,
				cmp.Or(m.project, m.dir))
		}
		return m, nil
	}
	m := &Module{
		name:    name,
		project: project,
		dir:     filepath.Join(r.opts.CheckoutDir, name),
	}
	if !r.vcs.Exists(m.dir) {
		url := RemoteURL(r.opts.RemoteURL, project)
		slog.InfoContext(ctx, "cloning", "module", name, "url", url)
		if err := r.vcs.Clone(ctx, url, m.dir); err != nil {
			return nil, &VCSError{Module: name, Op: "clone", Err: err}
		}
		m.fetched = true
	}
	r.modules[name] = m
	r.order = append(r.order, m)
	return m, nil
}

// EnsureFetched refreshes m's refs from its remote, at most once per registry.
func (r *Registry) EnsureFetched(ctx context.Context, m *Module) error {
	if m.fetched {
		return nil
	}
	slog.InfoContext(ctx, "fetching", "module", m.name)
	if err := r.vcs.Fetch(ctx, m.dir); err != nil {
		return &VCSError{Module: m.name, Op: "fetch", Err: err}
	}
	m.fetched = true
	m.tags = nil
	m.versions = nil
	return nil
}

// Versions returns the semantic versions m has tags for, in ascending order.  Tags whose names do
// not parse as semantic versions are ignored.  When two tags name the same version (e.g., "1.0.0"
// and "v1.0.0", or "1.0.0+a" and "1.0.0+b"), the lexically smaller tag name wins.
func (r *Registry) Versions(ctx context.Context, m *Module) ([]*semver.Version, error) {
	if err := r.loadTags(ctx, m); err != nil {
		return nil, err
	}
	return m.versions, nil
}

func (r *Registry) loadTags(ctx context.Context, m *Module) error {
	if m.tags != nil {
		return nil
	}
	if err := r.EnsureFetched(ctx, m); err != nil {
		return err
	}
	tags, err := r.vcs.ListTags(ctx, m.dir)
	if err != nil {
		return &VCSError{Module: m.name, Op: "list tags", Err: err}
	}
	slices.SortFunc(tags, func(a, b Tag) int { return cmp.Compare(a.Name, b.Name) })
	m.tags = map[string]Tag{}
	m.versions = nil
	for _, t := range tags {
		v, err := semver.NewVersion(t.Name)
		if err != nil {
			slog.Log(ctx, logging.LevelTrace, "ignoring non-version tag", "module", m.name, "tag", t.Name)
			continue
		}
		key := versionKey(v)
		if _, ok := m.tags[key]; ok {
			continue
		}
		m.tags[key] = t
		m.versions = append(m.versions, v)
	}
	slices.SortFunc(m.versions, func(a, b *semver.Version) int { return a.Compare(b) })
	return nil
}

// versionKey identifies v by precedence.  Build metadata is dropped, so "1.0.0+a" and "1.0.0+b"
// name the same version.
func versionKey(v *semver.Version) string {
	k := fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
	if pre := v.Prerelease(); pre != "" {
		k += "-" + pre
	}
	return k
}

// Commit returns the commit spec names in m.  The root module has no commit of its own.
func (r *Registry) Commit(ctx context.Context, m *Module, spec VersionSpecifier) (string, error) {
	commit, _, err := r.resolveRef(ctx, m, spec)
	return commit, err
}

// resolveRef maps spec to the commit it names and the ref to hand to [VCS.Checkout].
func (r *Registry) resolveRef(ctx context.Context, m *Module, spec VersionSpecifier) (commit, ref string, _ error) {
	switch spec := spec.(type) {
	case Default:
		return "", "", fmt.Errorf("%s: default version has no commit", m.name)
	case Tagged:
		if err := r.loadTags(ctx, m); err != nil {
			return "", "", err
		}
		t, ok := m.tags[versionKey(spec.Version)]
		if !ok {
			return "", "", &VCSError{Module: m.name, Op: "resolve tag",
				Err: fmt.Errorf("no tag for version %v", spec)}
		}
		return t.Commit, t.Name, nil
	case Pinned:
		return spec.Commit, spec.Commit, nil
	default:
		panic(fmt.Errorf("unknown version specifier type %T", spec))
	}
}

// EnsureCheckedOut makes m's working tree match spec and reports whether anything changed.  A
// change invalidates m's cached manifest.  The root module is never checked out.
func (r *Registry) EnsureCheckedOut(ctx context.Context, m *Module, spec VersionSpecifier) (bool, error) {
	if m.root {
		return false, nil
	}
	if err := r.EnsureFetched(ctx, m); err != nil {
		return false, err
	}
	commit, ref, err := r.resolveRef(ctx, m, spec)
	if err != nil {
		return false, err
	}
	cur, err := r.vcs.CurrentCommit(ctx, m.dir)
	if err != nil {
		return false, &VCSError{Module: m.name, Op: "read current commit", Err: err}
	}
	if cur == commit {
		return false, nil
	}
	slog.InfoContext(ctx, "checking out", "module", m.name, "version", spec, "commit", commit)
	if err := r.vcs.Checkout(ctx, m.dir, ref); err != nil {
		return false, &VCSError{Module: m.name, Op: "checkout " + ref, Err: err}
	}
	m.manifest = nil
	return true, nil
}

// Manifest returns m's manifest as its working tree currently stands.
func (r *Registry) Manifest(m *Module) (*Manifest, error) {
	if m.manifest != nil {
		return m.manifest, nil
	}
	path := m.ManifestPath()
	mf, err := r.store.LoadManifest(path)
	if err != nil {
		return nil, asManifestError(err, path, false)
	}
	m.manifest = mf
	return mf, nil
}

// Lockfile returns the root module's lockfile.
func (r *Registry) Lockfile() (*Lockfile, error) {
	if r.root.lockfile != nil {
		return r.root.lockfile, nil
	}
	path := r.root.LockfilePath()
	lf, err := r.store.LoadLockfile(path)
	if err != nil {
		return nil, asManifestError(err, path, true)
	}
	r.root.lockfile = lf
	return lf, nil
}

// SaveLockfile writes lf as the root module's lockfile.
func (r *Registry) SaveLockfile(lf *Lockfile) error {
	path := r.root.LockfilePath()
	if err := r.store.SaveLockfile(path, lf); err != nil {
		return asManifestError(err, path, true)
	}
	r.root.lockfile = lf
	return nil
}

// GetRequirements returns the requirements of m at spec.  For the root module they come from the
// manifest in fresh mode and from the lockfile in lock mode.  A non-root module is checked out at
// spec first.
func (r *Registry) GetRequirements(ctx context.Context, m *Module, spec VersionSpecifier) ([]Requirement, error) {
	if m.root && r.opts.LockMode {
		return r.lockedRequirements(ctx)
	}
	if !m.root {
		if _, err := r.EnsureCheckedOut(ctx, m, spec); err != nil {
			return nil, err
		}
	}
	mf, err := r.Manifest(m)
	if err != nil {
		return nil, err
	}
	reqs := make([]Requirement, 0, len(mf.Dependencies))
	for _, d := range mf.Dependencies {
		c, err := ParseRange(d.Version)
		if err != nil {
			return nil, &ManifestError{Path: m.ManifestPath(), Err: err}
		}
		child, err := r.GetOrCreate(ctx, d.Project)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, Requirement{Module: child, Constraint: c})
	}
	return reqs, nil
}

func (r *Registry) lockedRequirements(ctx context.Context) ([]Requirement, error) {
	lf, err := r.Lockfile()
	if err != nil {
		return nil, err
	}
	reqs := make([]Requirement, 0, len(lf.Dependencies))
	for _, d := range lf.Dependencies {
		if d.Revision == "" {
			return nil, &ManifestError{Path: r.root.LockfilePath(), Lockfile: true,
				Err: fmt.Errorf("%s: missing revision", d.Project)}
		}
		child, err := r.GetOrCreate(ctx, d.Project)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, Requirement{Module: child, Constraint: ExactConstraint{d.Revision}})
	}
	return reqs, nil
}

func asManifestError(err error, path string, lockfile bool) error {
	if me := (*ManifestError)(nil); errors.As(err, &me) {
		return err
	}
	return &ManifestError{Path: path, Lockfile: lockfile, Err: err}
}
