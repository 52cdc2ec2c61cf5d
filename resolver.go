package asterism

import (
	"context"
	"errors"
	"log/slog"

	"github.com/asterism-build/asterism/internal/itertools"
	"github.com/asterism-build/asterism/internal/logging"
	mapset "github.com/deckarep/golang-set/v2"
)

// DefaultMaxAttempts bounds the number of resolution attempts [Resolver.Resolve] makes before
// giving up with a [*NotConvergedError].
const DefaultMaxAttempts uint = 1000

// Edge records that Parent requires Child.
type Edge struct {
	Parent string
	Child  string
}

// Resolution is the result of [Resolver.Resolve]: a version for every reachable module and the
// requirement edges among them.
type Resolution struct {
	// Root is the root module.  It is always resolved to [Default].
	Root *Module
	// Modules lists every reachable module in first-visit order, starting with the root.
	Modules []*Module
	// Versions maps each module name in Modules to its resolved specifier.
	Versions map[string]VersionSpecifier
	// Edges lists every requirement edge in visit order.
	Edges []Edge
}

// Version returns the resolved specifier for the named module.
func (res *Resolution) Version(name string) (VersionSpecifier, bool) {
	v, ok := res.Versions[name]
	return v, ok
}

// Resolver computes a consistent version for every module reachable from a registry's root.
type Resolver struct {
	Registry    *Registry
	MaxAttempts uint
}

// NewResolver returns a resolver over reg with [DefaultMaxAttempts].
func NewResolver(reg *Registry) *Resolver {
	return &Resolver{Registry: reg, MaxAttempts: DefaultMaxAttempts}
}

// Resolve runs fresh resolution or lock replay, depending on the registry's mode.
//
// Fresh resolution walks the requirement graph depth-first from the root, intersecting every
// constraint seen for a module during the walk and picking the highest tagged version that
// satisfies the running intersection.  Whenever a pick disagrees with the pick persisted by an
// earlier encounter, or a checkout changes a working tree (so a manifest may have changed), the
// walk is finished and then started over from the root.  Persisted picks survive across walks and
// are kept while they satisfy the running constraint.  A walk that needs no restart is checked
// once more: every module is re-picked against the full intersection of its constraints, and any
// pick that rises also forces a restart.  The loop ends at a fixed point or after MaxAttempts
// walks.  The returned [Resolution] describes only the final walk, so modules that became
// unreachable along the way are excluded.
//
// Lock replay takes the root's requirements from its lockfile and pins every reachable module to
// its recorded revision.  Manifests of non-root modules are read only to discover the graph's
// shape.  A reachable module missing from the lockfile is a [*LockfileEntryError].
func (r *Resolver) Resolve(ctx context.Context) (*Resolution, error) {
	if r.Registry.LockMode() {
		return r.resolveLocked(ctx)
	}
	return r.resolveFresh(ctx)
}

// attempt is the state shared by every branch of one fresh-resolution walk.
type attempt struct {
	constraints map[string]VersionConstraint
	visited     mapset.Set[string]
}

// walk is what a traversal discovers below one module: the modules first visited there (in visit
// order) and the requirement edges seen there.
type walk struct {
	modules []*Module
	edges   []Edge
	restart bool
}

func (w *walk) merge(o walk) {
	w.modules = append(w.modules, o.modules...)
	w.edges = append(w.edges, o.edges...)
	w.restart = w.restart || o.restart
}

func (r *Resolver) resolveFresh(ctx context.Context) (*Resolution, error) {
	root := r.Registry.Root()
	resolved := map[string]VersionSpecifier{}
	for n := range itertools.Range(1, r.MaxAttempts+1) {
		a := &attempt{
			constraints: map[string]VersionConstraint{},
			visited:     mapset.NewThreadUnsafeSet(root.Name()),
		}
		w, err := r.visitFresh(ctx, a, resolved, root, Default{})
		if err != nil {
			return nil, err
		}
		if !w.restart {
			raised, err := r.raise(ctx, a, resolved, w.modules)
			if err != nil {
				return nil, err
			}
			w.restart = raised
		}
		if !w.restart {
			slog.DebugContext(ctx, "resolve: converged", "attempts", n)
			versions := map[string]VersionSpecifier{root.Name(): Default{}}
			for _, m := range w.modules {
				versions[m.Name()] = resolved[m.Name()]
			}
			return &Resolution{
				Root:     root,
				Modules:  append([]*Module{root}, w.modules...),
				Versions: versions,
				Edges:    w.edges,
			}, nil
		}
		slog.DebugContext(ctx, "resolve: restart", "attempt", n)
	}
	return nil, &NotConvergedError{Attempts: r.MaxAttempts}
}

func (r *Resolver) visitFresh(ctx context.Context, a *attempt, resolved map[string]VersionSpecifier, parent *Module, spec VersionSpecifier) (walk, error) {
	var w walk
	reqs, err := r.Registry.GetRequirements(ctx, parent, spec)
	if err != nil {
		return walk{}, err
	}
	for _, req := range reqs {
		child := req.Module
		name := child.Name()
		w.edges = append(w.edges, Edge{Parent: parent.Name(), Child: name})
		c := req.Constraint
		if prev, ok := a.constraints[name]; ok {
			if c, err = Intersect(prev, c); err != nil {
				if ce := (*ConflictError)(nil); errors.As(err, &ce) {
					ce.Module, ce.Parent = name, parent.Name()
				}
				return walk{}, err
			}
		}
		a.constraints[name] = c

		sel, err := r.pick(ctx, child, c, resolved[name])
		if err != nil {
			return walk{}, err
		}
		if sel == nil {
			return walk{}, &UnsatisfiableError{Parent: parent.Name(), Child: name, Constraint: c}
		}
		if prev, ok := resolved[name]; ok && !SpecifierEqual(prev, sel) {
			slog.DebugContext(ctx, "resolve: narrowed", "module", name, "old", prev, "new", sel,
				"constraint", c)
			resolved[name] = sel
			w.restart = true
			continue
		}
		resolved[name] = sel
		if !a.visited.Add(name) {
			continue
		}
		w.modules = append(w.modules, child)
		changed, err := r.Registry.EnsureCheckedOut(ctx, child, sel)
		if err != nil {
			return walk{}, err
		}
		if changed {
			w.restart = true
			continue
		}
		sub, err := r.visitFresh(ctx, a, resolved, child, sel)
		if err != nil {
			return walk{}, err
		}
		w.merge(sub)
	}
	return w, nil
}

// raise re-picks every module of a walk that finished without a restart, this time against the
// intersection of all constraints the walk saw for it.  A pick kept from an earlier walk may have
// been made under a constraint that no longer applies, leaving it below the highest version the
// final constraints allow.  raise reports whether any pick changed.
func (r *Resolver) raise(ctx context.Context, a *attempt, resolved map[string]VersionSpecifier, modules []*Module) (bool, error) {
	raised := false
	for _, m := range modules {
		name := m.Name()
		sel, err := r.pick(ctx, m, a.constraints[name], nil)
		if err != nil {
			return false, err
		}
		if sel == nil || SpecifierEqual(sel, resolved[name]) {
			continue
		}
		slog.DebugContext(ctx, "resolve: raised", "module", name, "old", resolved[name], "new", sel,
			"constraint", a.constraints[name])
		resolved[name] = sel
		raised = true
	}
	return raised, nil
}

// pick chooses a version of m satisfying c.  A previously persisted pick is kept while it still
// satisfies c.  A nil result means nothing satisfies c.
func (r *Resolver) pick(ctx context.Context, m *Module, c VersionConstraint, prev VersionSpecifier) (VersionSpecifier, error) {
	if prev != nil && IsSatisfied(c, prev) {
		return prev, nil
	}
	if _, ok := c.(ExactConstraint); ok {
		sel, _ := MaxSatisfying(c, nil)
		return sel, nil
	}
	versions, err := r.Registry.Versions(ctx, m)
	if err != nil {
		return nil, err
	}
	sel, ok := MaxSatisfying(c, versions)
	if !ok {
		slog.Log(ctx, logging.LevelVerbose, "resolve: no satisfying version", "module", m.Name(),
			"constraint", c, "available", len(versions))
		return nil, nil
	}
	return sel, nil
}

func (r *Resolver) resolveLocked(ctx context.Context) (*Resolution, error) {
	root := r.Registry.Root()
	lf, err := r.Registry.Lockfile()
	if err != nil {
		return nil, err
	}
	revisions := make(map[string]string, len(lf.Dependencies))
	for _, d := range lf.Dependencies {
		name, err := ModuleName(d.Project)
		if err != nil {
			return nil, &ManifestError{Path: root.LockfilePath(), Lockfile: true, Err: err}
		}
		revisions[name] = d.Revision
	}
	w, err := r.visitLocked(ctx, revisions, mapset.NewThreadUnsafeSet(root.Name()), root, Default{})
	if err != nil {
		return nil, err
	}
	versions := map[string]VersionSpecifier{root.Name(): Default{}}
	for _, m := range w.modules {
		versions[m.Name()] = Pinned{Commit: revisions[m.Name()]}
	}
	return &Resolution{
		Root:     root,
		Modules:  append([]*Module{root}, w.modules...),
		Versions: versions,
		Edges:    w.edges,
	}, nil
}

func (r *Resolver) visitLocked(ctx context.Context, revisions map[string]string, visited mapset.Set[string], parent *Module, spec VersionSpecifier) (walk, error) {
	var w walk
	reqs, err := r.Registry.GetRequirements(ctx, parent, spec)
	if err != nil {
		return walk{}, err
	}
	for _, req := range reqs {
		child := req.Module
		name := child.Name()
		w.edges = append(w.edges, Edge{Parent: parent.Name(), Child: name})
		rev, ok := revisions[name]
		if !ok {
			return walk{}, &LockfileEntryError{Parent: parent.Name(), Child: name}
		}
		if !visited.Add(name) {
			continue
		}
		w.modules = append(w.modules, child)
		sub, err := r.visitLocked(ctx, revisions, visited, child, Pinned{Commit: rev})
		if err != nil {
			return walk{}, err
		}
		w.merge(sub)
	}
	return w, nil
}
