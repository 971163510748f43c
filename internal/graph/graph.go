// Package graph resolves the transitive import closure of Sass and CSS
// stylesheets.
package graph

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Resolver computes the set of files reachable from an input stylesheet.
type Resolver interface {
	// Resolve returns the absolute paths of input and every file it imports,
	// directly or transitively. loadPaths are searched, in order, after the
	// importing file's own directory. extensions lists the recognized file
	// extensions without a leading dot.
	Resolve(input string, loadPaths, extensions []string) ([]string, error)
}

// Error reports a file in the import graph that could not be read.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("resolving %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Sass resolves @import, @use and @forward rules the way the Sass compilers
// locate files: exact path, then name.ext and the _name.ext partial for each
// extension, then the directory index. Imports that match no file are skipped;
// they are usually built-in modules or plain CSS resolved by the browser.
type Sass struct {
	// OnUnresolved, if set, is called for every import that matched no file.
	OnUnresolved func(from, target string)
}

// Resolve implements Resolver.
func (s *Sass) Resolve(input string, loadPaths, extensions []string) ([]string, error) {
	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, &Error{Path: input, Err: err}
	}

	// Keys are normalized; files are read through the name found on disk.
	start := norm.NFC.String(abs)
	seen := map[string]bool{start: true}
	files := []string{start}
	queue := []string{abs}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		src, err := os.ReadFile(current)
		if err != nil {
			return nil, &Error{Path: current, Err: err}
		}

		indented := filepath.Ext(current) == ".sass"
		for _, target := range Imports(string(src), indented) {
			dep, ok := lookup(target, filepath.Dir(current), loadPaths, extensions)
			if !ok {
				if s.OnUnresolved != nil {
					s.OnUnresolved(current, target)
				}
				continue
			}
			key := norm.NFC.String(dep)
			if seen[key] {
				continue
			}
			seen[key] = true
			files = append(files, key)
			queue = append(queue, dep)
		}
	}

	return files, nil
}

// lookup finds the file an import target refers to, trying the importing
// directory first and then each load path.
func lookup(target, dir string, loadPaths, extensions []string) (string, bool) {
	bases := make([]string, 0, len(loadPaths)+1)
	bases = append(bases, dir)
	bases = append(bases, loadPaths...)

	for _, base := range bases {
		p := filepath.FromSlash(target)
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		for _, candidate := range candidates(p, extensions) {
			if isFile(candidate) {
				return filepath.Clean(candidate), true
			}
		}
		if filepath.IsAbs(target) {
			break
		}
	}
	return "", false
}

// candidates lists the file names an import of p may refer to, in the order
// they are tried.
func candidates(p string, extensions []string) []string {
	dir, name := filepath.Split(p)
	var out []string

	if ext := strings.TrimPrefix(filepath.Ext(name), "."); ext != "" && slices.Contains(extensions, ext) {
		out = append(out, p)
		if !strings.HasPrefix(name, "_") {
			out = append(out, filepath.Join(dir, "_"+name))
		}
		return out
	}

	for _, ext := range extensions {
		out = append(out, p+"."+ext)
		if !strings.HasPrefix(name, "_") {
			out = append(out, filepath.Join(dir, "_"+name+"."+ext))
		}
	}
	for _, ext := range extensions {
		out = append(out,
			filepath.Join(p, "index."+ext),
			filepath.Join(p, "_index."+ext),
		)
	}
	return out
}

// Canonical returns the absolute, cleaned, NFC-normalized form of path, the
// key used for every file in a closure.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return norm.NFC.String(abs), nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
