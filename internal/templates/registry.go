package templates

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Registry is an ordered, read-only set of templates. Templates are sorted
// by priority (highest first) and then by declaration order.
type Registry struct {
	templates []*Template
}

// Load reads template definitions from files or directories. Directory
// entries ending in .yaml or .yml are read in lexical order. Declaration
// order follows the order of paths and then the order within each path.
func Load(paths ...string) (*Registry, error) {
	var (
		defs []Definition
		errs problems
	)
	for _, p := range paths {
		files, err := expand(p)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			data, err := os.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("read template %s: %w", file, err)
			}
			parsed, err := ParseDefinitions(data, file)
			if err != nil {
				if tve, ok := err.(*TemplateValidationError); ok {
					errs = append(errs, tve.Problems...)
					continue
				}
				return nil, err
			}
			defs = append(defs, parsed...)
		}
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	return NewRegistry(defs...)
}

func expand(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("template path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read template dir %s: %w", path, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	return files, nil
}

// NewRegistry validates and compiles definitions in declaration order.
func NewRegistry(defs ...Definition) (*Registry, error) {
	var errs problems
	compiled := make([]*Template, 0, len(defs))
	for i, def := range defs {
		if t := compile(def, i, &errs); t != nil {
			compiled = append(compiled, t)
		}
	}

	type key struct {
		issuer   string
		priority int
	}
	seen := make(map[key]*Template, len(compiled))
	for _, t := range compiled {
		k := key{t.Issuer, t.Priority}
		if prev, dup := seen[k]; dup {
			errs.add(t.Source, t.Issuer, "", "duplicate issuer at priority %d (also declared in %s)", t.Priority, prev.Source)
			continue
		}
		seen[k] = t
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		if compiled[i].Priority != compiled[j].Priority {
			return compiled[i].Priority > compiled[j].Priority
		}
		return compiled[i].order < compiled[j].order
	})
	return &Registry{templates: compiled}, nil
}

// Templates returns the templates in match order. The slice is a copy; the
// templates themselves must be treated as read-only.
func (r *Registry) Templates() []*Template {
	if r == nil {
		return nil
	}
	out := make([]*Template, len(r.templates))
	copy(out, r.templates)
	return out
}

// Len returns the number of templates.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.templates)
}

// Lookup returns the templates of an issuer in match order.
func (r *Registry) Lookup(issuer string) []*Template {
	var out []*Template
	for _, t := range r.Templates() {
		if t.Issuer == issuer {
			out = append(out, t)
		}
	}
	return out
}

