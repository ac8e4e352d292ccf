package kernel

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// resolveInclude tries the include search order: (a) relative to
// the including file, (b) DB_PATH search paths, (c) user repository root,
// (d) global repository root, (e) absolute. First hit wins.
func (k *Kernel) resolveInclude(includingFile, path string) (string, error) {
	if filepath.IsAbs(path) {
		if fileExists(path) {
			return path, nil
		}
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	candidates := []string{filepath.Join(filepath.Dir(includingFile), path)}

	for _, dir := range splitSearchPath(k.cfg.IncludePath) {
		candidates = append(candidates, filepath.Join(dir, path))
	}
	if k.cfg.UserRepository != "" {
		candidates = append(candidates, filepath.Join(k.cfg.UserRepository, path))
	}
	if k.cfg.Repository != "" {
		candidates = append(candidates, filepath.Join(k.cfg.Repository, path))
	}

	for _, c := range candidates {
		if fileExists(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
}

func splitSearchPath(dbPath string) []string {
	if dbPath == "" {
		return nil
	}
	parts := strings.Split(dbPath, ":")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// includeCyclePolicy controls whether a detected include cycle is raised as
// ErrIncludeCycle or merely reported.
type includeCyclePolicy int

const (
	IncludeCycleWarn includeCyclePolicy = iota
	IncludeCycleError
)

// checkIncludeCycles runs a DFS over the already-resolved Includes edges in
// k.files, maintaining a visited set and an active-path stack (the same
// cycle-detection shape package schema reuses for inheritance in
// checkNoCycles). Returns every cycle found as a path of file paths.
func (k *Kernel) checkIncludeCycles(root string) ([][]string, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	var stack []string
	var cycles [][]string

	var visit func(path string) error
	visit = func(path string) error {
		switch color[path] {
		case black:
			return nil
		case gray:
			cycle := append(append([]string(nil), stack...), path)
			cycles = append(cycles, cycle)
			return nil
		}
		color[path] = gray
		stack = append(stack, path)
		if f, ok := k.files[path]; ok {
			for _, inc := range f.resolvedIncludes {
				if err := visit(inc); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[path] = black
		return nil
	}

	if err := visit(root); err != nil {
		return nil, err
	}
	if len(cycles) > 0 && k.includeCyclePolicy == IncludeCycleError {
		return cycles, fmt.Errorf("%w: %v", ErrIncludeCycle, cycles[0])
	}
	return cycles, nil
}
