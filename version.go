package asterism

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// A VersionSpecifier is a concrete, checkout-able version identity of a [Module].  The set of
// implementations is closed: [Default], [Tagged], and [Pinned].  Compare specifiers with
// [SpecifierEqual], not ==, because [Tagged] holds a pointer.
type VersionSpecifier interface {
	fmt.Stringer
	isVersionSpecifier()
}

// Default means "use the manifest or lockfile as currently materialized".  Only the root module is
// ever assigned [Default]; it never participates in checkout decisions.
type Default struct{}

// Tagged is an immutable version identified by a repository tag whose name parses as a semantic
// version.
type Tagged struct {
	Version *semver.Version
}

// Pinned is an exact version-control revision.
type Pinned struct {
	Commit string
}

var (
	_ VersionSpecifier = Default{}
	_ VersionSpecifier = Tagged{}
	_ VersionSpecifier = Pinned{}
)

func (Default) isVersionSpecifier() {}
func (Tagged) isVersionSpecifier()  {}
func (Pinned) isVersionSpecifier()  {}

func (Default) String() string { return "default" }

func (t Tagged) String() string {
	if t.Version == nil {
		return "<nil>"
	}
	return t.Version.String()
}

func (p Pinned) String() string { return p.Commit }

// ParseTagged parses a semantic version string (a leading "v" is accepted) into a [Tagged]
// specifier.
func ParseTagged(raw string) (Tagged, error) {
	v, err := semver.NewVersion(raw)
	if err != nil {
		return Tagged{}, fmt.Errorf("parse version %q: %w", raw, err)
	}
	return Tagged{v}, nil
}

// MustParseTagged is like [ParseTagged] but panics on error.
func MustParseTagged(raw string) Tagged {
	t, err := ParseTagged(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// SpecifierEqual reports whether a and b are the same variant with equal payloads.
func SpecifierEqual(a, b VersionSpecifier) bool {
	switch a := a.(type) {
	case nil:
		return b == nil
	case Default:
		_, ok := b.(Default)
		return ok
	case Tagged:
		bt, ok := b.(Tagged)
		if !ok {
			return false
		}
		if a.Version == nil || bt.Version == nil {
			return a.Version == bt.Version
		}
		return a.Version.Equal(bt.Version)
	case Pinned:
		bp, ok := b.(Pinned)
		return ok && a.Commit == bp.Commit
	default:
		panic(fmt.Errorf("unknown version specifier type %T", a))
	}
}
