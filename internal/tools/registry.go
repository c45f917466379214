package tools

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	ErrDuplicateTool = errors.New("tool id already registered")
	ErrNilTool       = errors.New("nil tool")
	ErrBadToolID     = errors.New("bad tool id")
)

// Tool ids are dotted lowercase words, e.g. "tool.schemapack" or
// "tool.ghga-transpiler".
var toolIDPattern = regexp.MustCompile(`^[a-z0-9]+(?:[._-][a-z0-9]+)*$`)

// Registry maps tool ids to adapters. Lookups never fail: an id with no
// adapter resolves to a stand-in that reports the tool as unavailable, so a
// misconfigured stage still produces a classified result.
type Registry struct {
	byID map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Tool)}
}

// Register adds tools in order and stops at the first rejected one.
func (r *Registry) Register(tools ...Tool) error {
	for _, tool := range tools {
		if tool == nil {
			return ErrNilTool
		}
		meta := tool.Metadata()
		if !toolIDPattern.MatchString(meta.ID) {
			return fmt.Errorf("%w: %q", ErrBadToolID, meta.ID)
		}
		if strings.TrimSpace(meta.Name) == "" {
			return fmt.Errorf("%w: %q has no name", ErrBadToolID, meta.ID)
		}
		if r.Has(meta.ID) {
			return fmt.Errorf("%w: %s", ErrDuplicateTool, meta.ID)
		}
		r.byID[meta.ID] = tool
	}
	return nil
}

// Has reports whether id has a registered adapter.
func (r *Registry) Has(id string) bool {
	if r == nil {
		return false
	}
	_, ok := r.byID[strings.TrimSpace(id)]
	return ok
}

// Resolve returns the adapter for id, or one whose every invocation is a
// ToolUnavailable fault.
func (r *Registry) Resolve(id string) Tool {
	id = strings.TrimSpace(id)
	if r != nil {
		if tool, ok := r.byID[id]; ok {
			return tool
		}
	}
	log.Warn().Str("tool", id).Msg("tools.Registry.Resolve tool not registered")
	return unregistered(id)
}

// List returns the metadata of every registered tool sorted by id.
func (r *Registry) List() []Metadata {
	if r == nil {
		return nil
	}
	out := make([]Metadata, 0, len(r.byID))
	for _, tool := range r.byID {
		out = append(out, tool.Metadata())
	}
	slices.SortFunc(out, func(a, b Metadata) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

type unregistered string

func (u unregistered) Metadata() Metadata {
	return Metadata{ID: string(u), Name: string(u), Description: "not registered"}
}

func (u unregistered) Invoke(context.Context, []string) RawResult {
	return Unavailable(string(u), "not registered")
}
