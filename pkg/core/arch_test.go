package core_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func coreImports(t *testing.T) map[string][]string {
	t.Helper()

	fset := token.NewFileSet()
	entries, err := os.ReadDir(".")
	require.NoError(t, err)

	imports := make(map[string][]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".go") {
			continue
		}
		if strings.HasSuffix(entry.Name(), "_test.go") {
			continue
		}

		f, err := parser.ParseFile(fset, filepath.Join(".", entry.Name()), nil, parser.ImportsOnly)
		require.NoError(t, err)

		for _, imp := range f.Imports {
			imports[entry.Name()] = append(imports[entry.Name()], strings.Trim(imp.Path.Value, `"`))
		}
	}
	return imports
}

// TestCoreImportsOnlyStdlib verifies pkg/core only imports the standard library.
func TestCoreImportsOnlyStdlib(t *testing.T) {
	for file, paths := range coreImports(t) {
		for _, importPath := range paths {
			// stdlib paths have no dot in their first element
			if first, _, _ := strings.Cut(importPath, "/"); strings.Contains(first, ".") {
				t.Errorf("%s imports forbidden package: %s", file, importPath)
			}
		}
	}
}

// TestCoreDoesNotImportInternal verifies pkg/core doesn't import any internal packages.
func TestCoreDoesNotImportInternal(t *testing.T) {
	for file, paths := range coreImports(t) {
		for _, importPath := range paths {
			if strings.Contains(importPath, "/internal/") {
				t.Errorf("%s imports internal package: %s (core must not import internal packages)", file, importPath)
			}
		}
	}
}
