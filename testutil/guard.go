// Package testutil provides layering guards used by package tests to keep the
// object graph free of storage and transport concerns.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
)

// ImportRule reports whether an import path is forbidden.
type ImportRule func(importPath string) bool

// InternalImport matches any path below an internal/ directory.
func InternalImport(path string) bool {
	return strings.Contains(path, "/internal/") || strings.HasSuffix(path, "/internal")
}

// InfraImport matches the storage, blob and metrics adapters.
func InfraImport(path string) bool {
	return strings.Contains(path, "/internal/infra/") || strings.HasSuffix(path, "/internal/archive")
}

// ThirdParty matches any non-standard-library path that does not start with
// one of the allowed prefixes. Paths of the local module (no dot in the first
// element) are never matched; combine with InternalImport for those.
func ThirdParty(allowed ...string) ImportRule {
	return func(path string) bool {
		first, _, _ := strings.Cut(path, "/")
		if !strings.Contains(first, ".") {
			return false
		}
		return !slices.ContainsFunc(allowed, func(prefix string) bool {
			return path == prefix || strings.HasPrefix(path, prefix+"/")
		})
	}
}

// Violation is one forbidden import found in a source file.
type Violation struct {
	File   string
	Import string
}

func (v Violation) String() string { return v.Import + " (in " + v.File + ")" }

// FindImportViolations parses every non-test .go file directly in dir and
// returns the imports matched by any rule, in file order.
func FindImportViolations(dir string, rules ...ImportRule) ([]Violation, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var out []Violation
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range f.Imports {
			path, err := strconv.Unquote(imp.Path.Value)
			if err != nil {
				return nil, err
			}
			if slices.ContainsFunc(rules, func(r ImportRule) bool { return r(path) }) {
				out = append(out, Violation{File: name, Import: path})
			}
		}
	}
	return out, nil
}

// AssertNoImports fails t when a file in dir imports a path matched by rules.
func AssertNoImports(t testing.TB, dir, reason string, rules ...ImportRule) {
	t.Helper()
	viols, err := FindImportViolations(dir, rules...)
	if err != nil {
		t.Fatalf("scan imports in %s: %v", dir, err)
	}
	if len(viols) == 0 {
		return
	}
	lines := make([]string, len(viols))
	for i, v := range viols {
		lines[i] = v.String()
	}
	t.Fatalf("forbidden imports (%s):\n%s", reason, strings.Join(lines, "\n"))
}
