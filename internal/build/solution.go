package build

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Configuration is one cell of a solution's build matrix.
type Configuration struct {
	Platform string
	Name     string
}

// String formats c the way solution files and MSBuild conditions do: "Name|Platform".
func (c Configuration) String() string { return c.Name + "|" + c.Platform }

// Solution is the part of a Visual Studio solution file asterism cares about.
type Solution struct {
	Path string
	// VisualStudioVersion is the major version from the "VisualStudioVersion" line, or 0 if the
	// file has none.
	VisualStudioVersion int
	// Configurations lists the SolutionConfigurationPlatforms entries in file order.
	Configurations []Configuration
}

var vsVersionRe = regexp.MustCompile(`^VisualStudioVersion\s*=\s*(\d+)\.\d+\.\d+\.\d+`)

const (
	configSectionStart = "GlobalSection(SolutionConfigurationPlatforms)"
	sectionEnd         = "EndGlobalSection"
)

// LoadSolution reads the solution file at path.
func LoadSolution(path string) (*Solution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sln, err := ParseSolution(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sln.Path = path
	return sln, nil
}

// ParseSolution reads a solution file's version and configurations from r.
func ParseSolution(r io.Reader) (*Solution, error) {
	sln := &Solution{}
	seen := map[Configuration]bool{}
	inSection := false
	sc := bufio.NewScanner(r)
	for lineno := 1; sc.Scan(); lineno++ {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		switch {
		case inSection && line == sectionEnd:
			inSection = false
		case inSection:
			lhs, _, ok := strings.Cut(line, "=")
			if !ok {
				return nil, fmt.Errorf("line %d: malformed configuration entry %q", lineno, line)
			}
			name, platform, ok := strings.Cut(strings.TrimSpace(lhs), "|")
			if !ok || name == "" || platform == "" {
				return nil, fmt.Errorf("line %d: malformed configuration %q", lineno, lhs)
			}
			c := Configuration{Platform: platform, Name: name}
			if !seen[c] {
				seen[c] = true
				sln.Configurations = append(sln.Configurations, c)
			}
		case strings.HasPrefix(line, configSectionStart):
			inSection = true
		default:
			if m := vsVersionRe.FindStringSubmatch(line); m != nil {
				v, err := strconv.Atoi(m[1])
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineno, err)
				}
				sln.VisualStudioVersion = v
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if inSection {
		return nil, fmt.Errorf("unterminated %s section", configSectionStart)
	}
	return sln, nil
}
