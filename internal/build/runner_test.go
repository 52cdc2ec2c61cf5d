package build_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/asterism-build/asterism"
	"github.com/asterism-build/asterism/internal/build"
	"github.com/asterism-build/asterism/internal/config"
	"github.com/asterism-build/asterism/internal/test/fakerepo"
	"github.com/google/go-cmp/cmp"
)

const twoConfigSln = `VisualStudioVersion = 17.0.31903.59
Global
	GlobalSection(SolutionConfigurationPlatforms) = preSolution
		Debug|x64 = Debug|x64
		Release|x64 = Release|x64
	EndGlobalSection
EndGlobal
`

type fakeBackend struct {
	calls  []string
	failOn string
}

func (b *fakeBackend) Build(ctx context.Context, sln *build.Solution, c build.Configuration) error {
	call := filepath.Base(sln.Path) + " " + c.String()
	b.calls = append(b.calls, call)
	if call == b.failOn {
		return errors.New("exit status 1")
	}
	return nil
}

type workspace struct {
	root, checkout, artifacts string
	repos                     *fakerepo.Repos
}

// newWorkspace lays out a root "app" requiring org/engine, which requires org/math.  The fake
// repositories provide the manifests; the solutions and artifacts are real files.
func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	w := &workspace{root: filepath.Join(t.TempDir(), "app")}
	w.checkout = filepath.Join(w.root, ".asterism", "checkout")
	w.artifacts = filepath.Join(w.root, ".asterism", "artifacts")
	lib := func(name string) fakerepo.Option {
		return fakerepo.Artifacts([]string{"include/*.h"},
			[]string{"build/${PLATFORM}/${CONFIGURATION}/" + name + ".lib"})
	}
	w.repos = fakerepo.New().
		Root(w.root, fakerepo.SolutionPath("app.sln"), fakerepo.Require("org/engine", "^1.0.0")).
		Tag("org/engine", "1.0.0", fakerepo.SolutionPath("engine.sln"), lib("engine"),
			fakerepo.Require("org/math", "^1.0.0")).
		Tag("org/math", "1.2.0", fakerepo.SolutionPath("msvc/math.sln"), lib("math"))
	writeFiles(t, w.root,
		".asterism/checkout/engine/include/engine.h",
		".asterism/checkout/engine/build/x64/Debug/engine.lib",
		".asterism/checkout/engine/build/x64/Release/engine.lib",
		".asterism/checkout/math/include/math.h",
		".asterism/checkout/math/build/x64/Debug/math.lib",
		".asterism/checkout/math/build/x64/Release/math.lib")
	for _, sln := range []string{"app.sln", ".asterism/checkout/engine/engine.sln", ".asterism/checkout/math/msvc/math.sln"} {
		p := filepath.Join(w.root, filepath.FromSlash(sln))
		if err := os.MkdirAll(filepath.Dir(p), 0o777); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(twoConfigSln), 0o666); err != nil {
			t.Fatal(err)
		}
	}
	return w
}

func (w *workspace) run(t *testing.T, backend build.Backend, filter build.Filter) error {
	t.Helper()
	reg := asterism.NewRegistry(w.repos, w.repos, asterism.RegistryOptions{
		RootDir:     w.root,
		CheckoutDir: w.checkout,
		RemoteURL:   fakerepo.RemoteURL,
	})
	r := &build.Runner{
		Manifests: reg,
		Backend:   backend,
		Packager:  &build.Packager{Dir: w.artifacts, Concurrency: 2},
		Filter:    filter,
	}
	_, _, err := asterism.Run(t.Context(), reg, r.Build)
	return err
}

func TestRunner(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	backend := &fakeBackend{}
	if err := w.run(t, backend, build.NewFilter(nil, []string{"Debug"})); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if diff := cmp.Diff([]string{"math.sln Debug|x64", "engine.sln Debug|x64"}, backend.calls); diff != "" {
		t.Errorf("unexpected builds (-want +got):\n%s", diff)
	}
	debugDir := filepath.Join(w.artifacts, "x64", "Debug")
	if diff := cmp.Diff([]string{"engine.h", "math.h"}, listDir(t, filepath.Join(debugDir, "include"))); diff != "" {
		t.Errorf("unexpected headers (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"engine.lib", "math.lib"}, listDir(t, filepath.Join(debugDir, "lib"))); diff != "" {
		t.Errorf("unexpected libraries (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(w.artifacts, "x64", "Release")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("filtered-out configuration was packaged: %v", err)
	}

	rootSheet, err := os.ReadFile(config.PropertySheetPath(w.root))
	if err != nil {
		t.Fatalf("root property sheet: %v", err)
	}
	for _, want := range []string{
		`<AsterismArtifactsDir>$(SolutionDir).asterism\artifacts\</AsterismArtifactsDir>`,
		"<AdditionalDependencies>math.lib;engine.lib;%(AdditionalDependencies)</AdditionalDependencies>",
		`<AdditionalLibraryDirectories>$(AsterismArtifactsDir)x64\Release\lib\;`,
	} {
		if !strings.Contains(string(rootSheet), want) {
			t.Errorf("root property sheet missing %q:\n%s", want, rootSheet)
		}
	}
	mathSheet, err := os.ReadFile(config.PropertySheetPath(filepath.Join(w.checkout, "math")))
	if err != nil {
		t.Fatalf("math property sheet: %v", err)
	}
	for _, want := range []string{
		`$(SolutionDir)..\..\..\artifacts\`,
		`$(AsterismArtifactsDir)x64\Debug\include\`,
	} {
		if !strings.Contains(string(mathSheet), want) {
			t.Errorf("math property sheet missing %q:\n%s", want, mathSheet)
		}
	}
	if strings.Contains(string(mathSheet), "AdditionalDependencies") {
		t.Errorf("dependency property sheet links libraries:\n%s", mathSheet)
	}
	if _, ok := w.repos.Lockfile(filepath.Join(w.root, asterism.LockfileName)); !ok {
		t.Errorf("lockfile was not written")
	}
}

func TestRunnerFailures(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		desc     string
		failOn   string
		setup    func(w *workspace)
		filter   build.Filter
		wantMod  string
		wantStep string
		want     []string
	}{
		{
			desc:     "build",
			failOn:   "math.sln Debug|x64",
			wantMod:  "math",
			wantStep: build.StepBuild,
			want:     []string{"math.sln Debug|x64"},
		},
		{
			desc: "missing library",
			setup: func(w *workspace) {
				os.Remove(filepath.Join(w.checkout, "engine", "build", "x64", "Release", "engine.lib"))
			},
			wantMod:  "engine",
			wantStep: build.StepCopyLibraries,
			want:     []string{"math.sln Debug|x64", "math.sln Release|x64", "engine.sln Debug|x64", "engine.sln Release|x64"},
		},
		{
			desc: "missing solution",
			setup: func(w *workspace) {
				os.Remove(filepath.Join(w.checkout, "engine", "engine.sln"))
			},
			wantMod:  "engine",
			wantStep: build.StepLoadSolution,
			want:     []string{"math.sln Debug|x64", "math.sln Release|x64"},
		},
		{
			desc:     "no configurations",
			filter:   build.NewFilter([]string{"ARM64"}, nil),
			wantMod:  "app",
			wantStep: build.StepBuild,
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			w := newWorkspace(t)
			if tc.setup != nil {
				tc.setup(w)
			}
			backend := &fakeBackend{failOn: tc.failOn}
			err := w.run(t, backend, tc.filter)
			var be *build.Error
			if !errors.As(err, &be) {
				t.Fatalf("Run() returned %v, want *build.Error", err)
			}
			if be.Module != tc.wantMod || be.Step != tc.wantStep {
				t.Errorf("got error for %s/%s, want %s/%s: %v", be.Module, be.Step, tc.wantMod, tc.wantStep, err)
			}
			if diff := cmp.Diff(tc.want, backend.calls); diff != "" {
				t.Errorf("unexpected builds (-want +got):\n%s", diff)
			}
			if _, err := os.Stat(config.PropertySheetPath(w.root)); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("root property sheet written despite failure: %v", err)
			}
			if _, ok := w.repos.Lockfile(filepath.Join(w.root, asterism.LockfileName)); ok {
				t.Errorf("lockfile written despite failure")
			}
		})
	}
}
