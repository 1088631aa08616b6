// Package policy limits which program files a launch request may read.
package policy

import (
	"errors"
	"path/filepath"
	"strings"
)

var ErrForbiddenPath = errors.New("path is outside allowed roots")

// Roots is the set of directories programs may be loaded from. An empty set
// places no restriction on launch paths.
type Roots struct {
	dirs []string
}

func New(dirs []string) (*Roots, error) {
	r := &Roots{dirs: make([]string, 0, len(dirs))}
	for _, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, err
		}
		r.dirs = append(r.dirs, abs)
	}
	return r, nil
}

func (r *Roots) Dirs() []string {
	return append([]string(nil), r.dirs...)
}

func (r *Roots) Restricted() bool {
	return len(r.dirs) > 0
}

// Resolve turns a program path from a launch request into a clean absolute
// path, relative paths being taken from cwd.
func (r *Roots) Resolve(cwd, program string) (string, error) {
	if !filepath.IsAbs(program) {
		program = filepath.Join(cwd, program)
	}
	abs := filepath.Clean(program)
	if !r.Contains(abs) {
		return "", ErrForbiddenPath
	}
	return abs, nil
}

// Contains reports whether path is one of the roots or lies beneath one.
func (r *Roots) Contains(path string) bool {
	if !r.Restricted() {
		return true
	}
	path = filepath.Clean(path)
	for _, dir := range r.dirs {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return true
		}
	}
	return false
}
