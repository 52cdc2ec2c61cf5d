package itertools_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/asterism-build/asterism/internal/itertools"
	"github.com/google/go-cmp/cmp"
)

func TestRange(t *testing.T) {
	t.Parallel()
	if diff := cmp.Diff([]uint{1, 2, 3}, slices.Collect(itertools.Range[uint](1, 4))); diff != "" {
		t.Errorf("Range(1, 4) (-want +got):\n%s", diff)
	}
	if got := slices.Collect(itertools.Range[uint](4, 4)); len(got) != 0 {
		t.Errorf("Range(4, 4) = %v, want empty", got)
	}
	var got []uint
	for i := range itertools.Range[uint](0, 100) {
		if i == 2 {
			break
		}
		got = append(got, i)
	}
	if diff := cmp.Diff([]uint{0, 1}, got); diff != "" {
		t.Errorf("early break (-want +got):\n%s", diff)
	}
}

func TestMapFilter(t *testing.T) {
	t.Parallel()
	in := slices.Values([]string{"app", "engine", "math"})
	got := slices.Collect(itertools.Map(
		itertools.Filter(in, func(s string) bool { return s != "app" }),
		strings.ToUpper))
	if diff := cmp.Diff([]string{"ENGINE", "MATH"}, got); diff != "" {
		t.Errorf("Map(Filter()) (-want +got):\n%s", diff)
	}
}
