package asterism

import "context"

// NewLockfile records the commit of every step, in build order.
func NewLockfile(ctx context.Context, reg *Registry, steps []BuildStep) (*Lockfile, error) {
	lf := &Lockfile{DocumentVersion: LockDocumentVersion}
	for _, s := range steps {
		commit, err := reg.Commit(ctx, s.Module, s.Version)
		if err != nil {
			return nil, err
		}
		lf.Dependencies = append(lf.Dependencies, LockedDependency{
			Project:  s.Module.Project(),
			Revision: commit,
		})
	}
	return lf, nil
}
