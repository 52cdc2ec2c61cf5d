package manifest_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/asterism-build/asterism"
	"github.com/asterism-build/asterism/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `name: app
version: 0.4.0
dependencies:
  - project: org/engine
    version: ^2.0.0
  - project: org/math
sln_path: app.sln
artifacts:
  include_headers:
    - include/*.h
  link_libraries:
    - build/${PLATFORM}/${CONFIGURATION}/app.lib
`

func TestParseManifest(t *testing.T) {
	m, err := manifest.ParseManifest([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, &asterism.Manifest{
		Name:    "app",
		Version: "0.4.0",
		Dependencies: []asterism.ManifestDependency{
			{Project: "org/engine", Version: "^2.0.0"},
			{Project: "org/math"},
		},
		SolutionPath: "app.sln",
		Artifacts: &asterism.Artifacts{
			IncludeHeaders: []string{"include/*.h"},
			LinkLibraries:  []string{"build/${PLATFORM}/${CONFIGURATION}/app.lib"},
		},
	}, m)
}

func TestParseManifestMinimal(t *testing.T) {
	m, err := manifest.ParseManifest([]byte("name: leaf\n"))
	require.NoError(t, err)
	assert.Equal(t, "leaf", m.Name)
	assert.Empty(t, m.Dependencies)
	assert.Nil(t, m.Artifacts)
}

func TestParseManifestInvalid(t *testing.T) {
	for _, data := range []string{
		"dependencies: {project: x}\n",
		"dependencies:\n  - version: ^1\n",
		"name: [unterminated\n",
	} {
		_, err := manifest.ParseManifest([]byte(data))
		assert.Error(t, err, "input %q", data)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, asterism.ManifestFileName)
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o666))

	m, err := manifest.Store{}.LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "app", m.Name)

	_, err = manifest.Store{}.LoadManifest(filepath.Join(dir, "missing.yml"))
	var me *asterism.ManifestError
	require.ErrorAs(t, err, &me)
	assert.False(t, me.Lockfile)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	_, err = manifest.Store{}.LoadManifest(dir)
	require.ErrorAs(t, err, &me)
}

func TestLockfileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), asterism.LockfileName)
	lf := &asterism.Lockfile{
		DocumentVersion: asterism.LockDocumentVersion,
		Dependencies: []asterism.LockedDependency{
			{Project: "org/math", Revision: "a94a8fe5ccb19ba61c4c0873d391e987982fbbd3"},
			{Project: "org/engine", Revision: "da39a3ee5e6b4b0d3255bfef95601890afd80709"},
		},
	}
	require.NoError(t, manifest.Store{}.SaveLockfile(path, lf))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `document_version: 0.1.0
dependencies:
  - project: org/math
    revision: a94a8fe5ccb19ba61c4c0873d391e987982fbbd3
  - project: org/engine
    revision: da39a3ee5e6b4b0d3255bfef95601890afd80709
`, string(data))

	got, err := manifest.Store{}.LoadLockfile(path)
	require.NoError(t, err)
	assert.Equal(t, lf, got)
}

func TestLockfileEmpty(t *testing.T) {
	data, err := manifest.FormatLockfile(&asterism.Lockfile{DocumentVersion: asterism.LockDocumentVersion})
	require.NoError(t, err)
	assert.Equal(t, "document_version: 0.1.0\ndependencies: []\n", string(data))
}

func TestLoadLockfileErrors(t *testing.T) {
	dir := t.TempDir()
	for _, tc := range []struct {
		desc string
		data string
	}{
		{"missing", ""},
		{"wrong document version", "document_version: 9.9.9\ndependencies: []\n"},
		{"missing revision", "document_version: 0.1.0\ndependencies:\n  - project: org/a\n"},
		{"malformed", "document_version: [\n"},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			path := filepath.Join(dir, tc.desc+".lock")
			if tc.data != "" {
				require.NoError(t, os.WriteFile(path, []byte(tc.data), 0o666))
			}
			_, err := manifest.Store{}.LoadLockfile(path)
			var me *asterism.ManifestError
			require.ErrorAs(t, err, &me)
			assert.True(t, me.Lockfile)
			assert.Equal(t, path, me.Path)
		})
	}
}
