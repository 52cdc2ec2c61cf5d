package build

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Filter selects the configurations to build by platform and configuration name.  An empty set
// matches everything.
type Filter struct {
	platforms      mapset.Set[string]
	configurations mapset.Set[string]
}

// NewFilter returns a filter accepting the given platforms and configuration names.
func NewFilter(platforms, configurations []string) Filter {
	return Filter{
		platforms:      mapset.NewThreadUnsafeSet(platforms...),
		configurations: mapset.NewThreadUnsafeSet(configurations...),
	}
}

// Match reports whether c passes the filter.
func (f Filter) Match(c Configuration) bool {
	return matches(f.platforms, c.Platform) && matches(f.configurations, c.Name)
}

func matches(s mapset.Set[string], v string) bool {
	return s == nil || s.IsEmpty() || s.Contains(v)
}

// Apply returns the configurations in cs that pass the filter, in order.
func (f Filter) Apply(cs []Configuration) []Configuration {
	var out []Configuration
	for _, c := range cs {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out
}
