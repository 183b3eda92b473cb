package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind tells how an input file is read
type Kind int

const (
	KindEML Kind = iota
	KindMbox
)

func (k Kind) String() string {
	if k == KindMbox {
		return "mbox"
	}
	return "eml"
}

// Input is one file to render
type Input struct {
	Path string
	Kind Kind
}

// kindOf classifies a file by extension
func kindOf(path string) (Kind, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".eml":
		return KindEML, true
	case ".mbox", ".mbx":
		return KindMbox, true
	}
	return 0, false
}

// Scanner finds message files under a set of paths
type Scanner struct {
	paths []string
}

// NewScanner creates a scanner for files and directories
func NewScanner(paths ...string) *Scanner {
	return &Scanner{paths: paths}
}

// Scan returns every .eml and .mbox file named directly or found by walking
// a directory, in a stable order without duplicates. A file named directly
// is accepted whatever its extension; unknown extensions are read as .eml.
func (s *Scanner) Scan() ([]Input, error) {
	seen := make(map[string]bool)
	var inputs []Input

	add := func(path string, kind Kind) {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		inputs = append(inputs, Input{Path: path, Kind: kind})
	}

	for _, root := range s.paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", root, err)
		}

		if !info.IsDir() {
			kind, ok := kindOf(root)
			if !ok {
				kind = KindEML
			}
			add(root, kind)
			continue
		}

		var found []Input
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return fmt.Errorf("error accessing path %s: %w", path, err)
			}
			if d.IsDir() {
				return nil
			}
			if kind, ok := kindOf(path); ok {
				found = append(found, Input{Path: path, Kind: kind})
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan directory: %w", err)
		}

		sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
		for _, in := range found {
			add(in.Path, in.Kind)
		}
	}

	return inputs, nil
}

// Count returns the number of inputs Scan would return
func (s *Scanner) Count() (int, error) {
	inputs, err := s.Scan()
	if err != nil {
		return 0, err
	}
	return len(inputs), nil
}
