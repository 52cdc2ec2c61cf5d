package main

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/amterp/color"
	"github.com/asterism-build/asterism"
	"github.com/asterism-build/asterism/internal/build"
	"github.com/asterism-build/asterism/internal/command"
	"github.com/asterism-build/asterism/internal/config"
	"github.com/asterism-build/asterism/internal/git"
	"github.com/asterism-build/asterism/internal/itertools"
	"github.com/asterism-build/asterism/internal/logging"
	"github.com/asterism-build/asterism/internal/manifest"
	mapset "github.com/deckarep/golang-set/v2"
)

//go:embed asterism.1.in
var man []byte

var (
	cyanf    = color.New(color.FgCyan).SprintfFunc()
	greenf   = color.New(color.FgGreen).SprintfFunc()
	hiblackf = color.New(color.FgHiBlack).SprintfFunc()
)

type outputFn = func(ctx context.Context, res *asterism.Resolution) error

// A verb is one of the subcommands.
type verb struct {
	name  string
	usage string
	// lock selects lock replay instead of fresh resolution.
	lock bool
	// build runs the build backend on the resolved modules.
	build bool
}

var verbs = map[string]*verb{
	"init": {
		name:  "init",
		usage: "Resolve the manifest's dependencies, build them, and write the lockfile.",
		build: true,
	},
	"update": {
		name:  "update",
		usage: "Re-resolve the manifest's dependencies to their newest matching versions, build them, and rewrite the lockfile.",
		build: true,
	},
	"resolve": {
		name:  "resolve",
		usage: "Check out and build the revisions recorded in the lockfile.",
		lock:  true,
		build: true,
	},
	"graph": {
		name:  "graph",
		usage: "Resolve without building and print the dependency graph.",
	},
}

type cliConfig struct {
	verb           *verb
	lock           bool
	platforms      []string
	configurations []string
	output         *outputFn
}

func ver() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "(devel)" {
		return ""
	}
	return bi.Main.Version
}

func showMan(ctx context.Context) error {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return fmt.Errorf("failed to fetch Go build information")
	}
	date := ""
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.time":
			when, err := time.Parse(time.RFC3339, s.Value)
			if err != nil {
				return fmt.Errorf("failed to parse vcs.time %q: %w", s.Value, err)
			}
			date = when.Format(time.DateOnly)
		}
	}
	man := bytes.ReplaceAll(man, []byte("%DATE%"), []byte(date))
	man = bytes.ReplaceAll(man, []byte("%VERSION%"), []byte(ver()))
	cmd := command.New(ctx, ".", "man", "-l", "-")
	cmd.Stdin = bytes.NewBuffer(man)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("man failed: %w", err)
	}
	return nil
}

var allOutputFuncs = [...]outputFn{
	outputTree,
	outputRaw,
	outputDot,
}

var allOutput = map[string]*outputFn{
	"tree": &allOutputFuncs[0],
	"raw":  &allOutputFuncs[1],
	"dot":  &allOutputFuncs[2],
}

// requires returns the sorted names of the modules that name requires.
func requires(g *asterism.Graph[string], name string) []string {
	return slices.Sorted(g.DependsOn(name))
}

func label(res *asterism.Resolution, name string) string {
	v, _ := res.Version(name)
	if _, ok := v.(asterism.Default); ok {
		return name
	}
	return fmt.Sprintf("%s@%v", name, v)
}

func outputTree(ctx context.Context, res *asterism.Resolution) error {
	g := asterism.DependencyGraph(res)
	seenMsg := hiblackf(" (repeat)")
	seen := mapset.NewThreadUnsafeSet[string]()
	var visit func(name string, indent int)
	visit = func(name string, indent int) {
		wasSeen := !seen.Add(name)
		fmt.Print(strings.Repeat("  ", indent))
		v, _ := res.Version(name)
		switch {
		case indent == 0:
			fmt.Print(name)
		case wasSeen:
			fmt.Printf("%s%s", hiblackf("%s %v", name, v), seenMsg)
		default:
			fmt.Printf("%s %s", name, cyanf("%v", v))
		}
		fmt.Print("\n")
		if !wasSeen {
			for _, d := range requires(g, name) {
				visit(d, indent+1)
			}
		}
	}
	visit(res.Root.Name(), 0)
	return nil
}

func outputRaw(ctx context.Context, res *asterism.Resolution) error {
	names := itertools.Map(slices.Values(res.Modules), (*asterism.Module).Name)
	deps := itertools.Filter(names, func(name string) bool { return name != res.Root.Name() })
	for _, name := range slices.Sorted(deps) {
		fmt.Printf("%s\n", label(res, name))
	}
	return nil
}

func outputDot(ctx context.Context, res *asterism.Resolution) error {
	g := asterism.DependencyGraph(res)
	fmt.Print("digraph {\n")
	fmt.Print("  outputorder= \"edgesfirst\";\n")
	fmt.Print("  node [style=filled,fillcolor=\"white\",shape=box];\n")
	for _, m := range res.Modules {
		attrs := []string{}
		if m == res.Root {
			attrs = append(attrs, "fillcolor=\"black\"", "fontcolor=\"white\"")
		} else if m.Project() != "" {
			attrs = append(attrs, fmt.Sprintf("tooltip=%q", m.Project()))
		}
		fmt.Printf("  %q [%s];\n", label(res, m.Name()), strings.Join(attrs, ","))
	}
	for _, m := range res.Modules {
		for _, d := range requires(g, m.Name()) {
			fmt.Printf("  %q -> %q;\n", label(res, m.Name()), label(res, d))
		}
	}
	fmt.Print("}\n")
	return nil
}

func run(ctx context.Context, env *config.Config, cfg *cliConfig) error {
	reg := asterism.NewRegistry(git.New(env.Git), manifest.Store{}, env.RegistryOptions(cfg.lock))
	if !cfg.verb.build {
		res, err := asterism.NewResolver(reg).Resolve(ctx)
		if err != nil {
			return err
		}
		if _, err := asterism.BuildOrder(ctx, res); err != nil {
			return err
		}
		return (*cfg.output)(ctx, res)
	}
	runner := &build.Runner{
		Manifests: reg,
		Backend:   &build.MSBuild{Path: env.MSBuild},
		Packager:  &build.Packager{Dir: env.ArtifactsDir(), Concurrency: env.CopyConcurrency},
		Filter:    build.NewFilter(cfg.platforms, cfg.configurations),
	}
	_, steps, err := asterism.Run(ctx, reg, runner.Build)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%s %d %s\n", greenf("built"), len(steps), plural(len(steps), "module"))
	return nil
}

func plural(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}

var slogLevel = logging.Install(os.Stderr, logging.LevelInfo)

func choiceFlag[T any](fs *flag.FlagSet, p *T, name string, choices map[string]T, dflt string, usage string) {
	cstr := strings.Join(slices.Sorted(maps.Keys(choices)), ", ")
	var ok bool
	if *p, ok = choices[dflt]; !ok {
		panic(fmt.Errorf("invalid default for %v option: %v", dflt, name))
	}
	usage += fmt.Sprintf(" (one of: %v; default: %v)", cstr, dflt)
	fs.Func(name, usage, func(arg string) error {
		if arg == "" {
			arg = dflt
		}
		v, ok := choices[arg]
		if !ok {
			return fmt.Errorf("expected one of: %v", cstr)
		}
		*p = v
		return nil
	})
}

// listFlag registers a flag that accumulates comma-separated values into *p.
func listFlag(fs *flag.FlagSet, p *[]string, name, usage string) {
	fs.Func(name, usage, func(arg string) error {
		for v := range strings.SplitSeq(arg, ",") {
			if v = strings.TrimSpace(v); v != "" {
				*p = append(*p, v)
			}
		}
		return nil
	})
}

func helpFunc(fs *flag.FlagSet) func(string) error {
	return func(string) error {
		// Pet peeve: Help output should be written to standard output, not standard error, when the
		// user explicitly requests the help.  This makes it easier for them to pipe the help output to
		// a pager.
		fs.SetOutput(os.Stdout)
		fs.Usage()
		os.Exit(0)
		return nil
	}
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [options] <verb> [verb options]\n\nVerbs:\n", os.Args[0])
	for _, name := range slices.Sorted(maps.Keys(verbs)) {
		fmt.Fprintf(out, "  %s\n    \t%s\n", name, verbs[name].usage)
	}
	fmt.Fprintf(out, "\nOptions:\n")
	flag.PrintDefaults()
}

func parseFlags(ctx context.Context) *cliConfig {
	cfg := &cliConfig{}

	bumpLogLevel := func(lower bool) {
		slog.Debug("log level pre-change", "level", slogLevel.Level())
		slogLevel.Set(logging.BumpLevel(slogLevel.Level(), lower))
		slog.Debug("log level post-change", "level", slogLevel.Level())
	}
	setLogLevel := func(arg string) error {
		lvl, err := logging.StringToLevel(arg)
		if err != nil {
			return err
		}
		slogLevel.Set(lvl)
		return nil
	}
	flag.BoolFunc("v", "Increase log verbosity.", func(arg string) error {
		switch arg {
		case "", "true":
			bumpLogLevel(true)
		default:
			return setLogLevel(arg)
		}
		return nil
	})
	flag.BoolFunc("q", "Decrease log verbosity.", func(arg string) error {
		switch arg {
		case "", "true":
			bumpLogLevel(false)
		default:
			return setLogLevel(arg)
		}
		return nil
	})

	colorChoices := map[string]bool{
		"auto":   color.NoColor,
		"never":  true,
		"always": false,
	}
	choiceFlag(flag.CommandLine, &color.NoColor, "color", colorChoices, "auto",
		"Output colors according to `mode`.")
	flag.BoolFunc("man", "Show the usage manual and exit.", func(_ string) error {
		if err := showMan(ctx); err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
		return nil
	})
	helpUsage := "Print usage information and exit."
	flag.BoolFunc("h", helpUsage, helpFunc(flag.CommandLine))
	flag.BoolFunc("help", helpUsage, helpFunc(flag.CommandLine))
	flag.BoolFunc("version", "Print the version and exit.", func(string) error {
		v := ver()
		if v == "" {
			log.Fatal("the Go build information is unavalable; try passing the \"-buildvcs=true\" build option to go")
		}
		fmt.Printf("%s\n", v)
		os.Exit(0)
		return nil
	})
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	v, ok := verbs[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(flag.CommandLine.Output(), "unknown verb %q\n", flag.Arg(0))
		flag.Usage()
		os.Exit(2)
	}
	cfg.verb = v
	cfg.lock = v.lock

	fs := flag.NewFlagSet(v.name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s %s [options]\n\n%s\n\nOptions:\n", os.Args[0], v.name, v.usage)
		fs.PrintDefaults()
	}
	fs.BoolFunc("h", helpUsage, helpFunc(fs))
	fs.BoolFunc("help", helpUsage, helpFunc(fs))
	if v.build {
		listFlag(fs, &cfg.platforms, "p", "Build only the comma-separated `platforms` (default: all).")
		listFlag(fs, &cfg.configurations, "c", "Build only the comma-separated `configurations` (default: all).")
	} else {
		choiceFlag(fs, &cfg.output, "format", allOutput, "tree", "Print the graph according to `mode`.")
		fs.BoolVar(&cfg.lock, "lock", false, "Replay the lockfile instead of resolving the manifest.")
	}
	fs.Parse(flag.Args()[1:])
	if fs.NArg() != 0 {
		fmt.Fprintf(fs.Output(), "unexpected arguments: %q\n", fs.Args())
		fs.Usage()
		os.Exit(2)
	}
	return cfg
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	env, err := config.Load(wd)
	if err != nil {
		slog.ErrorContext(ctx, "invalid configuration", "error", err)
		os.Exit(2)
	}
	if env.LogLevel != nil {
		slogLevel.Set(*env.LogLevel)
	}
	cfg := parseFlags(ctx)
	if err := run(ctx, env, cfg); err != nil {
		var be *build.Error
		if errors.As(err, &be) {
			slog.ErrorContext(ctx, "build failed", "module", be.Module, "step", be.Step, "error", be.Err)
		} else {
			slog.ErrorContext(ctx, "failed", "error", err)
		}
		os.Exit(1)
	}
}
