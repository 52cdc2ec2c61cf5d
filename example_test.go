package asterism_test

import (
	"context"
	"fmt"

	"github.com/asterism-build/asterism"
	"github.com/asterism-build/asterism/internal/test/fakerepo"
	mapset "github.com/deckarep/golang-set/v2"
)

func Example() {
	// Create some fake projects so that this example does not require git or network access.
	repos := fakerepo.New().
		Root("/src/app",
			fakerepo.Require("example/engine", "^2.0.0"),
			fakerepo.Require("example/math", "~1.4")).
		Tag("example/engine", "v2.0.0", fakerepo.Require("example/math", "^1.0.0")).
		Tag("example/engine", "v2.1.0", fakerepo.Require("example/math", "^1.2.0")).
		Tag("example/math", "v1.3.0").
		Tag("example/math", "v1.4.2").
		Tag("example/math", "v1.5.0")

	// Construct a [asterism.Registry] rooted at the project's working directory.
	reg := asterism.NewRegistry(repos, repos, asterism.RegistryOptions{
		RootDir:     "/src/app",
		CheckoutDir: "/src/app/.asterism/checkout",
		RemoteURL:   fakerepo.RemoteURL,
	})

	// Resolve a version for every reachable module.
	ctx := context.Background()
	res, err := asterism.NewResolver(reg).Resolve(ctx)
	if err != nil {
		panic(err)
	}
	for _, m := range res.Modules {
		fmt.Printf("resolved %v to %v\n", m, res.Versions[m.Name()])
	}

	// Use [asterism.BuildOrder] to order the modules for building.
	steps, err := asterism.BuildOrder(ctx, res)
	if err != nil {
		panic(err)
	}
	for _, s := range steps {
		fmt.Printf("build %v\n", s)
	}

	// Or walk the requirement edges breadth-first from the root:
	seen := mapset.NewThreadUnsafeSet(res.Root.Name())
	q := []string{res.Root.Name()}
	for len(q) > 0 {
		n := q[0]
		q = q[1:]
		fmt.Printf("visited %v\n", n)
		for _, e := range res.Edges {
			if e.Parent == n && seen.Add(e.Child) {
				q = append(q, e.Child)
			}
		}
	}

	// Output:
	// resolved app to default
	// resolved engine to 2.1.0
	// resolved math to 1.4.2
	// build math@1.4.2
	// build engine@2.1.0
	// visited app
	// visited engine
	// visited math
}
