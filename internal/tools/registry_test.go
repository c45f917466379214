package tools

import (
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/transpilectl/internal/testutil/testlog"
)

func TestRegistryRegisterResolveList(t *testing.T) {
	testlog.Start(t)
	reg := NewRegistry()
	err := reg.Register(
		ExecTool{Meta: Metadata{ID: "tool.transpiler", Name: "ghga-transpiler"}},
		ExecTool{Meta: Metadata{ID: "tool.schemapack", Name: "schemapack"}},
	)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if !reg.Has(" tool.transpiler ") {
		t.Fatalf("expected trimmed id to be registered")
	}
	if got := reg.Resolve("tool.transpiler").Metadata().Name; got != "ghga-transpiler" {
		t.Fatalf("resolved wrong tool: %q", got)
	}
	list := reg.List()
	if len(list) != 2 || list[0].ID != "tool.schemapack" || list[1].ID != "tool.transpiler" {
		t.Fatalf("unexpected listing: %+v", list)
	}
}

func TestRegistryRejectsBadTools(t *testing.T) {
	testlog.Start(t)
	reg := NewRegistry()
	if err := reg.Register(nil); !errors.Is(err, ErrNilTool) {
		t.Fatalf("expected nil tool error, got %v", err)
	}
	for _, id := range []string{"", "Tool.Upper", "tool..x", ".tool", "tool-", "tool x"} {
		if err := reg.Register(ExecTool{Meta: Metadata{ID: id, Name: "x"}}); !errors.Is(err, ErrBadToolID) {
			t.Fatalf("expected bad id error for %q, got %v", id, err)
		}
	}
	if err := reg.Register(ExecTool{Meta: Metadata{ID: "tool.x"}}); !errors.Is(err, ErrBadToolID) {
		t.Fatalf("expected missing name error, got %v", err)
	}
	ok := ExecTool{Meta: Metadata{ID: "tool.ghga-transpiler_v2", Name: "x"}}
	if err := reg.Register(ok); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(ok); !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestRegistryResolveUnknownIsUnavailable(t *testing.T) {
	testlog.Start(t)
	for _, reg := range []*Registry{nil, NewRegistry()} {
		if reg.Has("tool.x") {
			t.Fatalf("empty registry must not report tool.x")
		}
		tool := reg.Resolve("tool.x")
		if tool.Metadata().ID != "tool.x" {
			t.Fatalf("unexpected stand-in metadata: %+v", tool.Metadata())
		}
		res := tool.Invoke(t.Context(), []string{"x"})
		if res.Kind != ResultFault || res.Fault == nil || !res.Fault.Unavailable {
			t.Fatalf("expected unavailable fault, got %+v", res)
		}
		if !strings.Contains(res.Fault.Message, "tool.x: not registered") {
			t.Fatalf("unexpected message: %q", res.Fault.Message)
		}
	}
	if got := (*Registry)(nil).List(); len(got) != 0 {
		t.Fatalf("nil registry listed %v", got)
	}
}
