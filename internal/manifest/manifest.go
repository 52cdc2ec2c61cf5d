// Package manifest reads and writes manifests and lockfiles as YAML documents.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/asterism-build/asterism"
	"gopkg.in/yaml.v3"
)

type dependencyDoc struct {
	Project string `yaml:"project"`
	Version string `yaml:"version,omitempty"`
}

type artifactsDoc struct {
	IncludeHeaders []string `yaml:"include_headers,omitempty"`
	LinkLibraries  []string `yaml:"link_libraries,omitempty"`
}

type manifestDoc struct {
	Name         string          `yaml:"name"`
	Version      string          `yaml:"version,omitempty"`
	Dependencies []dependencyDoc `yaml:"dependencies,omitempty"`
	SolutionPath string          `yaml:"sln_path,omitempty"`
	Artifacts    *artifactsDoc   `yaml:"artifacts,omitempty"`
}

type lockedDoc struct {
	Project  string `yaml:"project"`
	Revision string `yaml:"revision"`
}

type lockfileDoc struct {
	DocumentVersion string      `yaml:"document_version"`
	Dependencies    []lockedDoc `yaml:"dependencies"`
}

// Store implements [asterism.Store] on the local file system.
type Store struct{}

var _ asterism.Store = Store{}

// ParseManifest decodes a manifest document.
func ParseManifest(data []byte) (*asterism.Manifest, error) {
	var doc manifestDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	m := &asterism.Manifest{
		Name:         doc.Name,
		Version:      doc.Version,
		SolutionPath: doc.SolutionPath,
	}
	for i, d := range doc.Dependencies {
		if strings.TrimSpace(d.Project) == "" {
			return nil, fmt.Errorf("dependency %d: project is empty", i)
		}
		m.Dependencies = append(m.Dependencies, asterism.ManifestDependency{Project: d.Project, Version: d.Version})
	}
	if doc.Artifacts != nil {
		m.Artifacts = &asterism.Artifacts{
			IncludeHeaders: doc.Artifacts.IncludeHeaders,
			LinkLibraries:  doc.Artifacts.LinkLibraries,
		}
	}
	return m, nil
}

// ParseLockfile decodes a lockfile document.
func ParseLockfile(data []byte) (*asterism.Lockfile, error) {
	var doc lockfileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode lockfile: %w", err)
	}
	if doc.DocumentVersion != asterism.LockDocumentVersion {
		return nil, fmt.Errorf("unsupported document_version %q (want %q)", doc.DocumentVersion,
			asterism.LockDocumentVersion)
	}
	lf := &asterism.Lockfile{DocumentVersion: doc.DocumentVersion}
	for i, d := range doc.Dependencies {
		if d.Project == "" || d.Revision == "" {
			return nil, fmt.Errorf("dependency %d: project and revision are required", i)
		}
		lf.Dependencies = append(lf.Dependencies, asterism.LockedDependency{Project: d.Project, Revision: d.Revision})
	}
	return lf, nil
}

// FormatLockfile encodes lf as a lockfile document.
func FormatLockfile(lf *asterism.Lockfile) ([]byte, error) {
	doc := lockfileDoc{DocumentVersion: lf.DocumentVersion, Dependencies: []lockedDoc{}}
	for _, d := range lf.Dependencies {
		doc.Dependencies = append(doc.Dependencies, lockedDoc{Project: d.Project, Revision: d.Revision})
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func read(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errors.New("is a directory")
	}
	return os.ReadFile(path)
}

// LoadManifest implements [asterism.Store].
func (Store) LoadManifest(path string) (*asterism.Manifest, error) {
	data, err := read(path)
	if err != nil {
		return nil, &asterism.ManifestError{Path: path, Err: err}
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, &asterism.ManifestError{Path: path, Err: err}
	}
	return m, nil
}

// LoadLockfile implements [asterism.Store].
func (Store) LoadLockfile(path string) (*asterism.Lockfile, error) {
	data, err := read(path)
	if err != nil {
		return nil, &asterism.ManifestError{Path: path, Lockfile: true, Err: err}
	}
	lf, err := ParseLockfile(data)
	if err != nil {
		return nil, &asterism.ManifestError{Path: path, Lockfile: true, Err: err}
	}
	return lf, nil
}

// SaveLockfile implements [asterism.Store].  The file is replaced atomically.
func (Store) SaveLockfile(path string, lf *asterism.Lockfile) (retErr error) {
	data, err := FormatLockfile(lf)
	if err != nil {
		return &asterism.ManifestError{Path: path, Lockfile: true, Err: err}
	}
	defer func() {
		if retErr != nil {
			retErr = &asterism.ManifestError{Path: path, Lockfile: true, Err: retErr}
		}
	}()
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			os.Remove(f.Name())
		}
	}()
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Chmod(f.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}
