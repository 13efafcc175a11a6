// Package modules defines the qcfang module contract and the registry used
// to select which modules run.
package modules

import (
	"errors"
	"fmt"
	pathpkg "path"
	"strings"

	"github.com/Sumatoshi-tech/qcfang/internal/report"
)

// Descriptor contains stable module metadata.
type Descriptor struct {
	ID   string
	Name string
	Href string
	Info string
}

// Module is a single tool integration. Run parses the tool's output files
// from the run's discovery index and contributes sections, general
// statistics and data files. Run returns ingest.ErrNoSamples when none of
// the tool's files were found.
type Module interface {
	Descriptor() Descriptor
	Run(r *report.Run) error
}

// Registry lookup errors.
var (
	ErrUnknownModuleID   = errors.New("unknown module id")
	ErrDuplicateModuleID = errors.New("duplicate module id")
	ErrInvalidModuleGlob = errors.New("invalid module glob")
)

// Registry stores modules with deterministic ordering.
type Registry struct {
	ordered []Module
	index   map[string]Module
}

// NewRegistry creates a registry from modules, rejecting duplicate IDs.
func NewRegistry(mods ...Module) (*Registry, error) {
	index := make(map[string]Module, len(mods))

	for _, m := range mods {
		id := m.Descriptor().ID
		if _, exists := index[id]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateModuleID, id)
		}

		index[id] = m
	}

	return &Registry{ordered: mods, index: index}, nil
}

// All returns all modules in registration order.
func (r *Registry) All() []Module {
	mods := make([]Module, len(r.ordered))
	copy(mods, r.ordered)

	return mods
}

// IDs returns all module IDs in registration order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.ordered))
	for _, m := range r.ordered {
		ids = append(ids, m.Descriptor().ID)
	}

	return ids
}

// Select resolves ID patterns against the registry, preserving registration
// order and deduplicating. Plain IDs must exist; globs must match at least
// one module. An empty pattern list selects everything.
func (r *Registry) Select(patterns []string) ([]Module, error) {
	if len(patterns) == 0 {
		return r.All(), nil
	}

	selected := make([]Module, 0, len(r.ordered))
	selectedSet := make(map[string]struct{}, len(r.ordered))

	for _, raw := range patterns {
		pattern := strings.TrimSpace(raw)

		mods, err := r.resolvePattern(pattern)
		if err != nil {
			return nil, err
		}

		for _, m := range mods {
			id := m.Descriptor().ID
			if _, exists := selectedSet[id]; exists {
				continue
			}

			selected = append(selected, m)
			selectedSet[id] = struct{}{}
		}
	}

	return selected, nil
}

func (r *Registry) resolvePattern(pattern string) ([]Module, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModuleID, pattern)
	}

	if !strings.ContainsAny(pattern, "*?[") {
		m, ok := r.index[pattern]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownModuleID, pattern)
		}

		return []Module{m}, nil
	}

	matched := make([]Module, 0, len(r.ordered))

	for _, m := range r.ordered {
		isMatch, err := pathpkg.Match(pattern, m.Descriptor().ID)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidModuleGlob, pattern, err)
		}

		if isMatch {
			matched = append(matched, m)
		}
	}

	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModuleID, pattern)
	}

	return matched, nil
}
