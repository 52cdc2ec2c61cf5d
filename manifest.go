package asterism

import "context"

const (
	// ManifestFileName is the manifest's file name within a module's tree.
	ManifestFileName = ".asterismfile.yml"
	// LockfileName is the root lockfile's file name within the working directory.
	LockfileName = "asterismfile.lock"
	// LockDocumentVersion is the lockfile format version written by [NewLockfile].
	LockDocumentVersion = "0.1.0"
)

// Manifest is a module's declarative description of its identity, dependencies, and build inputs.
type Manifest struct {
	Name         string
	Version      string
	Dependencies []ManifestDependency
	SolutionPath string
	Artifacts    *Artifacts
}

// ManifestDependency is one entry of [Manifest.Dependencies]: a project reference and the range
// expression constraining its version.
type ManifestDependency struct {
	Project string
	Version string
}

// Artifacts lists the file patterns a module exports.  Patterns may contain the ${PLATFORM} and
// ${CONFIGURATION} placeholders.
type Artifacts struct {
	IncludeHeaders []string
	LinkLibraries  []string
}

// Lockfile records the exact revision of every non-root module of a successful resolution.
type Lockfile struct {
	DocumentVersion string
	Dependencies    []LockedDependency
}

// LockedDependency is one entry of [Lockfile.Dependencies].
type LockedDependency struct {
	Project  string
	Revision string
}

// Store reads manifests and lockfiles from, and writes lockfiles to, the file system (or a
// stand-in).  Implementations should return a [*ManifestError] on failure; callers wrap any other
// error in one.
type Store interface {
	LoadManifest(path string) (*Manifest, error)
	LoadLockfile(path string) (*Lockfile, error)
	SaveLockfile(path string, lf *Lockfile) error
}

// Tag is a repository tag and the commit it (after peeling) points to.
type Tag struct {
	Name   string
	Commit string
}

// VCS is the version-control capability the [Registry] needs.  Each directory argument is the
// root of a module's working tree.
type VCS interface {
	// Exists reports whether dir already holds a working tree.
	Exists(dir string) bool
	// Clone creates a working tree at dir from remoteURL.
	Clone(ctx context.Context, remoteURL, dir string) error
	// Fetch updates dir's refs and tags from its remote.
	Fetch(ctx context.Context, dir string) error
	// ListTags returns every tag in dir.
	ListTags(ctx context.Context, dir string) ([]Tag, error)
	// CurrentCommit returns the commit dir's working tree has checked out.
	CurrentCommit(ctx context.Context, dir string) (string, error)
	// Checkout switches dir's working tree to ref (a tag name or commit).
	Checkout(ctx context.Context, dir, ref string) error
}
