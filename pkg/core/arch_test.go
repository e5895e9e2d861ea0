package core_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const modulePath = "github.com/leapstack-labs/datarade/"

// The public packages form the adapter contract. They may import the
// standard library and the listed module packages, nothing else.
func TestPublicPackageImports(t *testing.T) {
	tests := []struct {
		dir     string
		allowed []string
	}{
		{dir: ".", allowed: nil},
		{dir: "../adapter", allowed: []string{modulePath + "pkg/core"}},
	}

	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			for file, imports := range packageImports(t, tt.dir) {
				for _, imp := range imports {
					first, _, _ := strings.Cut(imp, "/")
					if !strings.Contains(first, ".") {
						continue
					}
					allowed := false
					for _, a := range tt.allowed {
						allowed = allowed || imp == a
					}
					if !allowed {
						t.Errorf("%s imports %s", file, imp)
					}
				}
			}
		})
	}
}

func packageImports(t *testing.T, dir string) map[string][]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}

	fset := token.NewFileSet()
	out := make(map[string][]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		for _, imp := range f.Imports {
			out[name] = append(out[name], strings.Trim(imp.Path.Value, `"`))
		}
	}
	return out
}
