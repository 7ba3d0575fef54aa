// Package main provides the CLI entrypoint for projection-generator.
//
// projection-generator compiles declarative projection shapes into Go code:
//   - Parses Go packages (AST + go/types) to build the source type graph
//   - Loads shape definitions from YAML
//   - Resolves each shape into a content-hashed Structure
//   - Generates forward (source→target) and reverse (target→source) functions
package main

import (
	"flag"
	"fmt"
	"os"

	"projection-generator/internal/gen"
	"projection-generator/internal/resolve"
	"projection-generator/internal/schema"
	"projection-generator/internal/shapefile"
	"projection-generator/internal/structure"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error

	switch os.Args[1] {
	case "gen":
		err = runGen(os.Args[2:])

	case "inspect":
		err = runInspect(os.Args[2:])

	case "-help", "--help", "help":
		usage()
		return

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("projection-generator - compiles projection shapes into Go transform code")
	fmt.Println("Commands:")
	fmt.Println("  gen     -shapes <file.yaml> -pkgs <patterns> -out <dir> [-pkg <name>] [-prebuilt]")
	fmt.Println("  inspect -shapes <file.yaml> -pkgs <patterns> [-name <shape>]")
}

// compileAll loads the type graph and compiles every shape in the file.
func compileAll(shapesPath, pkgs string) (*resolve.Pipeline, []*structure.Structure, error) {
	sf, err := shapefile.LoadFile(shapesPath)
	if err != nil {
		return nil, nil, err
	}

	graph, err := schema.NewLoader().LoadPackages(pkgs)
	if err != nil {
		return nil, nil, fmt.Errorf("loading packages: %w", err)
	}

	pipeline := resolve.New(graph)

	var structures []*structure.Structure

	for i := range sf.Shapes {
		def := &sf.Shapes[i]

		source := graph.Lookup(def.Source)
		if source == nil {
			return nil, nil, fmt.Errorf("shape %s: source type %s not found", def.Name, def.Source)
		}

		sh, err := shapefile.Build(def)
		if err != nil {
			return nil, nil, err
		}

		site := resolve.Site{File: shapesPath, Line: i + 1}

		s, err := pipeline.Compile(site, source, sh)
		if err != nil {
			return nil, nil, fmt.Errorf("shape %s: %w", def.Name, err)
		}

		structures = append(structures, s)
	}

	return pipeline, structures, nil
}

func runGen(args []string) error {
	fs := flag.NewFlagSet("gen", flag.ExitOnError)
	shapes := fs.String("shapes", "shapes.yaml", "path to the YAML shape file")
	pkgs := fs.String("pkgs", "./...", "package patterns to load source types from")
	out := fs.String("out", "./generated", "output directory")
	pkg := fs.String("pkg", "projections", "generated package name")
	prebuilt := fs.Bool("prebuilt", false, "emit pre-built registered transforms where possible")

	if err := fs.Parse(args); err != nil {
		return err
	}

	pipeline, structures, err := compileAll(*shapes, *pkgs)
	if err != nil {
		return err
	}

	cfg := gen.DefaultConfig()
	cfg.PackageName = *pkg
	cfg.OutputDir = *out

	g := gen.NewGenerator(cfg, pipeline.Graph)

	strategy := gen.StrategyInline
	if *prebuilt {
		strategy = gen.StrategyPrebuilt
	}

	var files []*gen.File

	for _, s := range structures {
		f, err := g.Generate(s, strategy)
		if err != nil {
			return err
		}

		files = append(files, f)
	}

	if err := gen.WriteFiles(files, *out); err != nil {
		return err
	}

	for _, d := range pipeline.Diags.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", d.String())
	}

	fmt.Printf("wrote %d file(s) to %s\n", len(files), *out)

	return pipeline.Diags.Error()
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	shapes := fs.String("shapes", "shapes.yaml", "path to the YAML shape file")
	pkgs := fs.String("pkgs", "./...", "package patterns to load source types from")
	name := fs.String("name", "", "inspect only the named shape")

	if err := fs.Parse(args); err != nil {
		return err
	}

	_, structures, err := compileAll(*shapes, *pkgs)
	if err != nil {
		return err
	}

	for _, s := range structures {
		if *name != "" && s.TargetName != *name {
			continue
		}

		data, err := s.MarshalJSON()
		if err != nil {
			return err
		}

		fmt.Printf("%s %s\n%s\n", s.Hash(), s.TargetName, data)
	}

	return nil
}
