package git_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/asterism-build/asterism"
	"github.com/asterism-build/asterism/internal/command"
	"github.com/asterism-build/asterism/internal/git"
	"github.com/google/go-cmp/cmp"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}
}

func run(t *testing.T, dir string, args ...string) string {
	t.Helper()
	args = append([]string{"git", "-C", dir,
		"-c", "user.name=Test", "-c", "user.email=test@example.com", "-c", "commit.gpgsign=false",
		"-c", "tag.gpgsign=false"}, args...)
	out, err := command.Output(t.Context(), "", args...)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

// commit writes a manifest into dir and commits it, returning the new commit hash.
func commit(t *testing.T, dir, content string) string {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, asterism.ManifestFileName), []byte(content), 0o666); err != nil {
		t.Fatal(err)
	}
	run(t, dir, "add", "-A")
	run(t, dir, "commit", "--quiet", "-m", content)
	return run(t, dir, "rev-parse", "HEAD")
}

func TestGit(t *testing.T) {
	requireGit(t)
	ctx := t.Context()
	origin := filepath.Join(t.TempDir(), "origin")
	if err := os.Mkdir(origin, 0o777); err != nil {
		t.Fatal(err)
	}
	run(t, origin, "init", "--quiet")
	c1 := commit(t, origin, "name: lib\nversion: 1.0.0\n")
	run(t, origin, "tag", "v1.0.0")
	c2 := commit(t, origin, "name: lib\nversion: 1.1.0\n")
	run(t, origin, "tag", "-a", "-m", "release 1.1.0", "v1.1.0")
	c3 := commit(t, origin, "name: lib\nversion: 2.0.0-dev\n")

	g := git.New("")
	dir := filepath.Join(t.TempDir(), "checkout", "lib")
	if g.Exists(dir) {
		t.Fatalf("Exists(%q) = true before clone", dir)
	}
	if err := g.Clone(ctx, origin, dir); err != nil {
		t.Fatal(err)
	}
	if !g.Exists(dir) {
		t.Fatalf("Exists(%q) = false after clone", dir)
	}

	got, err := g.CurrentCommit(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if got != c3 {
		t.Errorf("CurrentCommit() after clone = %q, want %q", got, c3)
	}

	tags, err := g.ListTags(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []asterism.Tag{{Name: "v1.0.0", Commit: c1}, {Name: "v1.1.0", Commit: c2}}
	if diff := cmp.Diff(want, tags); diff != "" {
		t.Errorf("ListTags() (-want +got):\n%s", diff)
	}

	if err := g.Checkout(ctx, dir, "v1.1.0"); err != nil {
		t.Fatal(err)
	}
	if got, err := g.CurrentCommit(ctx, dir); err != nil {
		t.Fatal(err)
	} else if got != c2 {
		t.Errorf("CurrentCommit() after checkout = %q, want %q", got, c2)
	}
	data, err := os.ReadFile(filepath.Join(dir, asterism.ManifestFileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "version: 1.1.0") {
		t.Errorf("working tree not updated by checkout:\n%s", data)
	}

	if err := g.Checkout(ctx, dir, c1); err != nil {
		t.Fatal(err)
	}
	if got, err := g.CurrentCommit(ctx, dir); err != nil {
		t.Fatal(err)
	} else if got != c1 {
		t.Errorf("CurrentCommit() after commit checkout = %q, want %q", got, c1)
	}

	// New tags on the remote appear after a fetch.
	run(t, origin, "tag", "v2.0.0", c3)
	if err := g.Fetch(ctx, dir); err != nil {
		t.Fatal(err)
	}
	tags, err = g.ListTags(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(tags, asterism.Tag{Name: "v2.0.0", Commit: c3}) {
		t.Errorf("ListTags() after fetch = %v, want v2.0.0 at %s", tags, c3)
	}

	if err := g.Checkout(ctx, dir, "no-such-ref"); err == nil {
		t.Errorf("Checkout(no-such-ref) succeeded, want error")
	}
}

func TestGitNotARepository(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	g := git.New("")
	if g.Exists(dir) {
		t.Errorf("Exists(%q) = true, want false", dir)
	}
	if _, err := g.CurrentCommit(t.Context(), dir); err == nil {
		t.Errorf("CurrentCommit() succeeded outside a repository")
	}
}
