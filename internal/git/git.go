// Package git implements [asterism.VCS] by running the git command-line tool.
package git

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/asterism-build/asterism"
	"github.com/asterism-build/asterism/internal/command"
	"github.com/asterism-build/asterism/internal/logging"
)

// Git runs the git executable at Exe (looked up in PATH if it has no directory component).
type Git struct {
	Exe string
}

var _ asterism.VCS = (*Git)(nil)

// New returns a [Git] that runs exe, or "git" if exe is empty.
func New(exe string) *Git {
	if exe == "" {
		exe = "git"
	}
	return &Git{Exe: exe}
}

func (g *Git) args(dir string, args ...string) []string {
	return append([]string{g.Exe, "-C", dir}, args...)
}

// Exists reports whether dir holds a git working tree.
func (g *Git) Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// Clone clones remoteURL into dir, creating dir's parent if necessary.
func (g *Git) Clone(ctx context.Context, remoteURL, dir string) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0o777); err != nil {
		return err
	}
	_, err := command.Output(ctx, "", g.Exe, "clone", "--quiet", remoteURL, dir)
	return err
}

// Fetch fetches dir's remote refs and tags.  Tags that moved on the remote are updated.
func (g *Git) Fetch(ctx context.Context, dir string) error {
	_, err := command.Output(ctx, "", g.args(dir, "fetch", "--quiet", "--tags", "--force", "origin")...)
	return err
}

// ListTags lists dir's tags.  Annotated tags are peeled to the commit they point to.
func (g *Git) ListTags(ctx context.Context, dir string) (_ []asterism.Tag, retErr error) {
	lines, done := command.Lines(ctx, "", g.args(dir, "for-each-ref",
		"--format=%(refname:strip=2)%09%(objectname)%09%(*objectname)", "refs/tags")...)
	defer func() {
		if err := done(); retErr == nil {
			retErr = err
		}
	}()
	var tags []asterism.Tag
	for line := range lines {
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return nil, fmt.Errorf("unexpected for-each-ref output %q", line)
		}
		commit := fields[1]
		if fields[2] != "" {
			commit = fields[2]
		}
		slog.Log(ctx, logging.LevelTrace, "git tag", "dir", dir, "tag", fields[0], "commit", commit)
		tags = append(tags, asterism.Tag{Name: fields[0], Commit: commit})
	}
	return tags, nil
}

// CurrentCommit returns the commit dir's HEAD points to.
func (g *Git) CurrentCommit(ctx context.Context, dir string) (string, error) {
	return command.Output(ctx, "", g.args(dir, "rev-parse", "--verify", "HEAD^{commit}")...)
}

// Checkout detaches dir's HEAD at ref.
func (g *Git) Checkout(ctx context.Context, dir, ref string) error {
	_, err := command.Output(ctx, "", g.args(dir, "checkout", "--quiet", "--detach", ref)...)
	return err
}
