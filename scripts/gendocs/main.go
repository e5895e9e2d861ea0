// Package main generates the markdown CLI reference from the cobra command tree.
//
// Usage:
//
//	go run ./scripts/gendocs -outdir=docs/cli
package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"path/filepath"
)

func main() {
	outDir := flag.String("outdir", "", "output directory (default: <module root>/docs/cli)")
	flag.Parse()
	log.SetFlags(0)

	dir := *outDir
	if dir == "" {
		root, err := moduleRoot()
		if err != nil {
			log.Fatalf("gendocs: %v", err)
		}
		dir = filepath.Join(root, "docs", "cli")
	}
	if err := generateCLIDocs(dir); err != nil {
		log.Fatalf("gendocs: %v", err)
	}
}

// moduleRoot returns the closest ancestor of the working directory holding a go.mod.
func moduleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for ; ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		if filepath.Dir(dir) == dir {
			return "", errors.New("no go.mod above the working directory")
		}
	}
}
