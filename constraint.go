package asterism

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// A VersionConstraint is a predicate over [VersionSpecifier] values.  The set of implementations is
// closed: [RangeConstraint] and [ExactConstraint].
type VersionConstraint interface {
	fmt.Stringer
	isVersionConstraint()
}

// RangeConstraint is a conjunction of one or more semantic-version range expressions.  A version
// satisfies the constraint only if it satisfies every expression.
//
// The expressions are kept sorted and deduplicated so that intersection is commutative and
// associative up to [RangeConstraint.String].
type RangeConstraint struct {
	exprs  []string
	parsed map[string]*semver.Constraints
}

// ExactConstraint is satisfied only by a [Pinned] specifier with the same commit.
type ExactConstraint struct {
	Commit string
}

var (
	_ VersionConstraint = RangeConstraint{}
	_ VersionConstraint = ExactConstraint{}
)

func (RangeConstraint) isVersionConstraint() {}
func (ExactConstraint) isVersionConstraint() {}

// ParseRange parses a range expression such as "^1.2.0", ">=2.0.0, <3", or "~1.4 || ^2".  An empty
// expression matches any released version.
func ParseRange(expr string) (RangeConstraint, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = "*"
	}
	c, err := semver.NewConstraint(expr)
	if err != nil {
		return RangeConstraint{}, fmt.Errorf("parse version range %q: %w", expr, err)
	}
	return RangeConstraint{
		exprs:  []string{expr},
		parsed: map[string]*semver.Constraints{expr: c},
	}, nil
}

// MustParseRange is like [ParseRange] but panics on error.
func MustParseRange(expr string) RangeConstraint {
	r, err := ParseRange(expr)
	if err != nil {
		panic(err)
	}
	return r
}

func (r RangeConstraint) String() string {
	if len(r.exprs) == 1 {
		return r.exprs[0]
	}
	parts := make([]string, 0, len(r.exprs))
	for _, e := range r.exprs {
		if strings.Contains(e, "||") {
			e = "(" + e + ")"
		}
		parts = append(parts, e)
	}
	return strings.Join(parts, " && ")
}

// Check reports whether v satisfies every expression in r.
func (r RangeConstraint) Check(v *semver.Version) bool {
	for _, e := range r.exprs {
		if !r.parsed[e].Check(v) {
			return false
		}
	}
	return true
}

func (r RangeConstraint) intersect(o RangeConstraint) RangeConstraint {
	exprs := slices.Concat(r.exprs, o.exprs)
	slices.Sort(exprs)
	exprs = slices.Compact(exprs)
	parsed := make(map[string]*semver.Constraints, len(exprs))
	for _, e := range exprs {
		if c, ok := r.parsed[e]; ok {
			parsed[e] = c
		} else {
			parsed[e] = o.parsed[e]
		}
	}
	return RangeConstraint{exprs: exprs, parsed: parsed}
}

func (e ExactConstraint) String() string { return "=" + e.Commit }

// Intersect returns the conjunction of a and b.  Two [RangeConstraint] values always intersect
// (possibly to a constraint nothing satisfies).  Any combination involving an [ExactConstraint]
// returns a [*ConflictError]; its Module and Parent fields are left for the caller to fill in.
func Intersect(a, b VersionConstraint) (VersionConstraint, error) {
	conflict := &ConflictError{Existing: a, Incoming: b}
	switch a := a.(type) {
	case RangeConstraint:
		switch b := b.(type) {
		case RangeConstraint:
			return a.intersect(b), nil
		case ExactConstraint:
			return nil, conflict
		}
	case ExactConstraint:
		switch b.(type) {
		case RangeConstraint, ExactConstraint:
			return nil, conflict
		}
	}
	panic(fmt.Errorf("unsupported constraint types %T and %T", a, b))
}

// MaxSatisfying returns the best specifier for c given the versions a module has tagged.  For a
// [RangeConstraint] that is the highest satisfying version; for an [ExactConstraint] it is the
// constraint's commit, regardless of available.  The boolean result is false if nothing satisfies.
func MaxSatisfying(c VersionConstraint, available []*semver.Version) (VersionSpecifier, bool) {
	switch c := c.(type) {
	case RangeConstraint:
		var best *semver.Version
		for _, v := range available {
			if !c.Check(v) {
				continue
			}
			if best == nil || v.GreaterThan(best) {
				best = v
			}
		}
		if best == nil {
			return nil, false
		}
		return Tagged{best}, true
	case ExactConstraint:
		return Pinned{c.Commit}, true
	default:
		panic(fmt.Errorf("unknown version constraint type %T", c))
	}
}

// IsSatisfied reports whether s satisfies c.  A [Pinned] specifier satisfies only an
// [ExactConstraint] with the same commit, and a [Tagged] specifier satisfies only a
// [RangeConstraint].  [Default] satisfies nothing.
func IsSatisfied(c VersionConstraint, s VersionSpecifier) bool {
	switch c := c.(type) {
	case RangeConstraint:
		t, ok := s.(Tagged)
		return ok && t.Version != nil && c.Check(t.Version)
	case ExactConstraint:
		p, ok := s.(Pinned)
		return ok && p.Commit == c.Commit
	default:
		panic(fmt.Errorf("unknown version constraint type %T", c))
	}
}
