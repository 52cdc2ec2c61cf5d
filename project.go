package asterism

import (
	"fmt"
	"strings"

	"golang.org/x/mod/module"
)

// DefaultRemoteURL is the format string used to turn a project reference into a clone URL when no
// other template is configured.
const DefaultRemoteURL = "https://github.com/%s.git"

// ModuleName derives a module's name from a hosting-path project reference of the form
// "organization/project".  The name is the project segment.
func ModuleName(project string) (string, error) {
	if err := module.CheckImportPath(project); err != nil {
		return "", fmt.Errorf("invalid project reference %q: %w", project, err)
	}
	org, name, ok := strings.Cut(project, "/")
	if !ok || org == "" || name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("invalid project reference %q: want organization/project", project)
	}
	return name, nil
}

// RemoteURL expands a remote URL template for project.  The template must contain exactly one %s
// verb; an empty template means [DefaultRemoteURL].
func RemoteURL(template, project string) string {
	if template == "" {
		template = DefaultRemoteURL
	}
	return fmt.Sprintf(template, project)
}
