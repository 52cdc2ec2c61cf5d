// Package asterism resolves, fetches, and orders the source-level dependencies of a native build
// project.
//
// A project (the root module) lists its dependencies in a manifest named [ManifestFileName].  Each
// dependency names another git project by its "organization/project" reference and constrains the
// acceptable tagged versions with a semantic-version range expression.  Dependencies are cloned
// into their own working trees, each with a manifest of its own, so the requirement graph is only
// discovered by checking modules out.
//
// # Quick Start
//
// Construct a [Registry] over a [VCS] and a [Store] (see the internal git and manifest packages for
// the production implementations):
//
//	reg := asterism.NewRegistry(vcs, store, asterism.RegistryOptions{
//		RootDir:     wd,
//		CheckoutDir: filepath.Join(wd, ".asterism", "checkout"),
//	})
//
// Resolve a version for every reachable module:
//
//	res, err := asterism.NewResolver(reg).Resolve(ctx)
//	if err != nil {
//		return err
//	}
//
// Order the modules so that each comes after everything it requires:
//
//	steps, err := asterism.BuildOrder(ctx, res)
//	if err != nil {
//		return err
//	}
//
// Or do all of that, build, and write the lockfile in one call with [Run].
//
// # Modes
//
// In fresh mode the root's requirements come from its manifest and the resolver picks the highest
// tagged version satisfying every constraint it sees.  In lock mode ([RegistryOptions.LockMode])
// the root's requirements come from [LockfileName] and every module is pinned to the revision
// recorded there.
package asterism

import (
	"context"
	"log/slog"
)

// BuildFunc builds the modules of a resolution in order.  steps excludes the root.
type BuildFunc func(ctx context.Context, root *Module, steps []BuildStep) error

// Run resolves reg's modules, orders them, and passes the order to build (if non-nil).  In fresh
// mode the lockfile is written once everything else has succeeded; in lock mode it is left alone.
func Run(ctx context.Context, reg *Registry, build BuildFunc) (*Resolution, []BuildStep, error) {
	res, err := NewResolver(reg).Resolve(ctx)
	if err != nil {
		return nil, nil, err
	}
	steps, err := BuildOrder(ctx, res)
	if err != nil {
		return nil, nil, err
	}
	if build != nil {
		if err := build(ctx, reg.Root(), steps); err != nil {
			return nil, nil, err
		}
	}
	if reg.LockMode() {
		return res, steps, nil
	}
	lf, err := NewLockfile(ctx, reg, steps)
	if err != nil {
		return nil, nil, err
	}
	if err := reg.SaveLockfile(lf); err != nil {
		return nil, nil, err
	}
	slog.InfoContext(ctx, "wrote lockfile", "path", reg.Root().LockfilePath(), "modules", len(steps))
	return res, steps, nil
}
