package asterism

import (
	"path/filepath"

	"github.com/Masterminds/semver/v3"
)

// Module is a named unit of source code with its own working tree and manifest.  Modules are owned
// by a [Registry]; there is exactly one *Module per name within a registry, so modules may be
// compared by pointer.
type Module struct {
	name    string
	project string
	dir     string
	root    bool

	fetched  bool
	manifest *Manifest
	lockfile *Lockfile
	tags     map[string]Tag // canonical version string -> tag; nil until listed
	versions []*semver.Version
}

// Name is the module's name: the project segment of its reference, or the working directory's base
// name for the root module.
func (m *Module) Name() string { return m.name }

// Project is the module's "organization/project" reference.  It is empty for the root module.
func (m *Module) Project() string { return m.project }

// Dir is the module's working tree.
func (m *Module) Dir() string { return m.dir }

// IsRoot reports whether m is the module in the user's working directory.
func (m *Module) IsRoot() bool { return m.root }

// ManifestPath is the location of m's manifest.
func (m *Module) ManifestPath() string { return filepath.Join(m.dir, ManifestFileName) }

// LockfilePath is the location of m's lockfile.  Only the root module's lockfile is ever read or
// written.
func (m *Module) LockfilePath() string { return filepath.Join(m.dir, LockfileName) }

func (m *Module) String() string { return m.name }
