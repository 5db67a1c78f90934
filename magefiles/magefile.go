//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main contains Mage build targets for grounding-engine developer tooling.
package main

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// projectDirs lists the working directories the pipeline expects.
var projectDirs = []string{
	"papers/raw",
	"papers/tei",
	"knowledge/index",
	"knowledge/export",
}

// Init creates the papers and knowledge directories.
func Init() error {
	for _, dir := range projectDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	fmt.Println("Created", strings.Join(projectDirs, ", "))
	return nil
}

const (
	binDir  = "bin"
	binName = "grounding-engine"
	cmdPkg  = "./cmd/grounding-engine"

	// buildTags enables the FTS5 extension of mattn/go-sqlite3.
	buildTags = "sqlite_fts5"
)

func binPath() string {
	return filepath.Join(binDir, binName)
}

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := binPath()
	if err := sh.RunV("go", "build", "-tags", buildTags, "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs all package tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-tags", buildTags, "-race", "-count=1", "./...")
}

// Lint runs go vet over the module.
func Lint() error {
	return sh.RunV("go", "vet", "-tags", buildTags, "./...")
}

// Clean removes build output.
func Clean() error {
	fmt.Println("Removing", binDir)
	return sh.Rm(binDir)
}

// Run builds the CLI and runs the whole pipeline on every converted
// document in papers/tei.
func Run() error {
	mg.Deps(Build, Init)
	docs, err := filepath.Glob(filepath.Join("papers", "tei", "*.tei.xml"))
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("No documents in papers/tei. Run mage convert first.")
		return nil
	}
	return sh.RunV(binPath(), append([]string{"run"}, docs...)...)
}

// Convert builds the CLI and converts every PDF in papers/raw with GROBID.
func Convert() error {
	mg.Deps(Build, Init)
	return sh.RunV(binPath(), "convert", "--batch")
}

// Export builds the CLI and writes all items to knowledge/export/items.yaml.
func Export() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "items", "export")
}

// Stats prints non-blank Go lines per package, split into production and
// test code.
func Stats() error {
	counts := map[string]*lineCount{}
	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != "." && (strings.HasPrefix(d.Name(), "_") || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		n, err := nonBlankLines(path)
		if err != nil {
			return err
		}
		pkg := filepath.Dir(path)
		c := counts[pkg]
		if c == nil {
			c = &lineCount{}
			counts[pkg] = c
		}
		if strings.HasSuffix(path, "_test.go") {
			c.test += n
		} else {
			c.prod += n
		}
		return nil
	})
	if err != nil {
		return err
	}

	pkgs := make([]string, 0, len(counts))
	for pkg := range counts {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)

	var total lineCount
	for _, pkg := range pkgs {
		c := counts[pkg]
		fmt.Printf("%-28s %6d %6d\n", pkg, c.prod, c.test)
		total.prod += c.prod
		total.test += c.test
	}
	fmt.Printf("%-28s %6d %6d\n", "total (prod, test)", total.prod, total.test)
	return nil
}

type lineCount struct {
	prod, test int
}

func nonBlankLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			n++
		}
	}
	return n, sc.Err()
}
