// Command idfcheck loads a schema catalog and one or more snapshot archives
// and prints the validity report of each archive.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"idfcore/internal/archive"
	"idfcore/internal/schema"
	"idfcore/internal/workspace"
	"idfcore/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	code := cli(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

type result struct {
	path    string
	records int
	report  domain.ValidityReport
	err     error
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("idfcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	schemaPath := fs.String("schema", "", "path to schema catalog JSON (required)")
	levelName := fs.String("level", "final", "strictness level: none|draft|final")
	parallel := fs.Int("parallel", 4, "number of archives checked concurrently")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *schemaPath == "" || fs.NArg() == 0 {
		_, _ = fmt.Fprintln(stderr, "usage: idfcheck -schema catalog.json [-level final] [-parallel 4] archive...")
		return 2
	}
	level, err := domain.ParseStrictness(*levelName)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "idfcheck: %v\n", err)
		return 2
	}
	if *parallel < 1 {
		_, _ = fmt.Fprintln(stderr, "idfcheck: -parallel must be at least 1")
		return 2
	}
	catalog, err := schema.LoadFile(*schemaPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "idfcheck: %v\n", err)
		return 1
	}

	results := make([]result, fs.NArg())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*parallel)
	for i, path := range fs.Args() {
		g.Go(func() error {
			results[i] = check(gctx, catalog, path, level)
			return nil
		})
	}
	_ = g.Wait()

	code := 0
	for _, r := range results {
		switch {
		case r.err != nil:
			code = 1
			if _, err := fmt.Fprintf(stdout, "%s: %v\n", r.path, r.err); err != nil {
				return 1
			}
		case !r.report.Valid():
			code = 1
			fallthrough
		default:
			if _, err := fmt.Fprintf(stdout, "%s: %d record(s), %s\n", r.path, r.records, r.report); err != nil {
				return 1
			}
		}
	}
	return code
}

func check(ctx context.Context, catalog *schema.Catalog, path string, level domain.Strictness) result {
	res := result{path: path}
	if err := ctx.Err(); err != nil {
		res.err = err
		return res
	}
	// #nosec G304 -- archive paths are supplied by the operator
	f, err := os.Open(path)
	if err != nil {
		res.err = err
		return res
	}
	defer func() { _ = f.Close() }()
	snap, _, err := archive.Decode(f)
	if err != nil {
		res.err = err
		return res
	}
	store, err := workspace.Import(catalog, snap)
	if err != nil {
		res.err = fmt.Errorf("import: %w", err)
		return res
	}
	res.records = store.NumRecords()
	res.report = store.ValidityReport(level)
	return res
}
