package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/asterism-build/asterism/internal/command"
)

// Backend builds one configuration of a solution.
type Backend interface {
	Build(ctx context.Context, sln *Solution, c Configuration) error
}

var editions = []string{"Enterprise", "Professional", "Community"}

// vsYears maps VisualStudioVersion major versions to Visual Studio release years.
var vsYears = map[int]int{
	12: 2012,
	14: 2015,
	15: 2017,
	16: 2019,
	17: 2022,
}

// MSBuildCandidates returns the well-known MSBuild locations for the Visual Studio release with the
// given VisualStudioVersion major version, most preferred first.
func MSBuildCandidates(vsVersion int) ([]string, error) {
	year, ok := vsYears[vsVersion]
	if !ok {
		return nil, fmt.Errorf("unsupported VisualStudioVersion %d", vsVersion)
	}
	switch year {
	case 2012, 2015:
		return []string{fmt.Sprintf(`C:\Program Files (x86)\MSBuild\%d.0\Bin\MSBuild.exe`, vsVersion)}, nil
	}
	var out []string
	for _, ed := range editions {
		var p string
		switch year {
		case 2017:
			p = fmt.Sprintf(`C:\Program Files (x86)\Microsoft Visual Studio\2017\%s\MSBuild\15.0\Bin\MSBuild.exe`, ed)
		case 2019:
			p = fmt.Sprintf(`C:\Program Files (x86)\Microsoft Visual Studio\2019\%s\MSBuild\Current\Bin\MSBuild.exe`, ed)
		default:
			p = fmt.Sprintf(`C:\Program Files\Microsoft Visual Studio\%d\%s\MSBuild\Current\Bin\MSBuild.exe`, year, ed)
		}
		out = append(out, p)
	}
	return out, nil
}

// MSBuild is the [Backend] that runs MSBuild.exe.
type MSBuild struct {
	// Path is the MSBuild executable.  If empty, it is located from the solution's
	// VisualStudioVersion.
	Path string
}

var _ Backend = (*MSBuild)(nil)

func (b *MSBuild) locate(sln *Solution) (string, error) {
	if b.Path != "" {
		return b.Path, nil
	}
	cands, err := MSBuildCandidates(sln.VisualStudioVersion)
	if err != nil {
		return "", fmt.Errorf("%s: %w", sln.Path, err)
	}
	for _, p := range cands {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("MSBuild for Visual Studio %d not found (set ASTERISM_MSBUILD)",
		vsYears[sln.VisualStudioVersion])
}

// Build runs MSBuild on sln for configuration c with the output connected to stdout and stderr.
func (b *MSBuild) Build(ctx context.Context, sln *Solution, c Configuration) error {
	exe, err := b.locate(sln)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "building", "solution", sln.Path, "configuration", c)
	cmd := command.New(ctx, filepath.Dir(sln.Path), exe, sln.Path,
		fmt.Sprintf("/property:Platform=%s;Configuration=%s", c.Platform, c.Name))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("MSBuild failed: %w", err)
	}
	return nil
}
