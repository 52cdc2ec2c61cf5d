// Package build turns a build order into built solutions: it runs MSBuild for every module and
// configuration, collects each module's exported headers and libraries into a shared artifacts
// tree, and writes the property sheets through which solutions find them.
package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/asterism-build/asterism"
	"github.com/asterism-build/asterism/internal/config"
	"github.com/asterism-build/asterism/internal/logging"
)

// Manifests supplies module manifests.  [*asterism.Registry] implements it.
type Manifests interface {
	Manifest(m *asterism.Module) (*asterism.Manifest, error)
}

// Runner builds modules in build order.  Its Build method is an [asterism.BuildFunc].
type Runner struct {
	Manifests Manifests
	Backend   Backend
	Packager  *Packager
	Filter    Filter
}

// ErrNoConfigurations is returned when the filter rejects every configuration of the root solution.
var ErrNoConfigurations = errors.New("no solution configuration matches the platform and configuration filters")

func (r *Runner) solution(m *asterism.Module) (*asterism.Manifest, *Solution, error) {
	mf, err := r.Manifests.Manifest(m)
	if err != nil {
		return nil, nil, &Error{Module: m.Name(), Step: StepLoadSolution, Err: err}
	}
	if mf.SolutionPath == "" {
		return nil, nil, &Error{Module: m.Name(), Step: StepLoadSolution,
			Err: fmt.Errorf("%s has no sln_path", m.ManifestPath())}
	}
	sln, err := LoadSolution(filepath.Join(m.Dir(), filepath.FromSlash(mf.SolutionPath)))
	if err != nil {
		return nil, nil, &Error{Module: m.Name(), Step: StepLoadSolution, Err: err}
	}
	return mf, sln, nil
}

// Build builds every module of steps, in order, for each configuration of the root solution that
// passes the filter, and then writes the root's property sheet.  It stops at the first failure.
func (r *Runner) Build(ctx context.Context, root *asterism.Module, steps []asterism.BuildStep) error {
	_, rootSln, err := r.solution(root)
	if err != nil {
		return err
	}
	configs := r.Filter.Apply(rootSln.Configurations)
	if len(configs) == 0 {
		return &Error{Module: root.Name(), Step: StepBuild, Err: ErrNoConfigurations}
	}
	libs := map[Configuration][]string{}
	for _, step := range steps {
		m := step.Module
		mf, sln, err := r.solution(m)
		if err != nil {
			return err
		}
		if err := r.writePropertySheet(ctx, m, sln, nil); err != nil {
			return err
		}
		for _, c := range configs {
			slog.Log(ctx, logging.LevelNotice, "building module", "module", m.Name(),
				"version", step.Version, "configuration", c)
			if err := r.Backend.Build(ctx, sln, c); err != nil {
				return &Error{Module: m.Name(), Configuration: c, Step: StepBuild, Err: err}
			}
			if mf.Artifacts == nil {
				continue
			}
			if err := r.Packager.CopyHeaders(ctx, m.Dir(), mf.Artifacts.IncludeHeaders, c); err != nil {
				return &Error{Module: m.Name(), Configuration: c, Step: StepCopyHeaders, Err: err}
			}
			names, err := r.Packager.CopyLibraries(ctx, m.Dir(), mf.Artifacts.LinkLibraries, c)
			if err != nil {
				return &Error{Module: m.Name(), Configuration: c, Step: StepCopyLibraries, Err: err}
			}
			for _, n := range names {
				if !slices.Contains(libs[c], n) {
					libs[c] = append(libs[c], n)
				}
			}
		}
	}
	return r.writePropertySheet(ctx, root, rootSln, libs)
}

// writePropertySheet writes m's property sheet.  libs is nil for a dependency; for the root it
// holds the libraries to link per configuration.
func (r *Runner) writePropertySheet(ctx context.Context, m *asterism.Module, sln *Solution, libs map[Configuration][]string) error {
	fail := func(err error) error {
		return &Error{Module: m.Name(), Step: StepPropertySheet, Err: err}
	}
	rel, err := filepath.Rel(filepath.Dir(sln.Path), r.Packager.Dir)
	if err != nil {
		return fail(err)
	}
	sheet := NewPropertySheet(sln.Configurations)
	sheet.AddUserMacro(ArtifactsDirMacro, "$(SolutionDir)"+WindowsDir(rel))
	macro := "$(" + ArtifactsDirMacro + ")"
	for _, c := range sln.Configurations {
		sheet.AddIncludeDirectory(c, macro+WindowsDir(c.Platform, c.Name, "include"))
		if libs != nil {
			sheet.AddLibraryDirectory(c, macro+WindowsDir(c.Platform, c.Name, "lib"))
			sheet.AddDependencies(c, libs[c]...)
		}
	}
	path := config.PropertySheetPath(m.Dir())
	if err := sheet.Save(path); err != nil {
		return fail(err)
	}
	slog.DebugContext(ctx, "wrote property sheet", "module", m.Name(), "path", path)
	return nil
}
