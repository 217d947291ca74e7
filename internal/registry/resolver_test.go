package registry

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestResolveSimpleGraph(t *testing.T) {
	idx := Index{
		"app": {
			{Name: "app", Version: "1.0.0", Dependencies: []Dependency{{Name: "base", Constraint: ">=1.0.0, <2.0.0"}}},
			{Name: "app", Version: "1.1.0", Dependencies: []Dependency{{Name: "base", Constraint: ">=1.1.0, <2.0.0"}}},
		},
		"base": {
			{Name: "base", Version: "1.0.0"},
			{Name: "base", Version: "1.2.0"},
		},
	}

	res, err := NewResolver(idx).Resolve([]Requirement{{Name: "app", Constraint: ">=1.0.0"}})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if res["app"] != "1.1.0" {
		t.Errorf("app wrong. expected=1.1.0, got=%s", res["app"])
	}
	if res["base"] != "1.2.0" {
		t.Errorf("base wrong. expected=1.2.0, got=%s", res["base"])
	}
}

func TestResolveBacktracks(t *testing.T) {
	// app@1.1.0 needs base@^2.0.0 which does not exist, so resolution must
	// fall back to app@1.0.0.
	idx := Index{
		"app": {
			{Name: "app", Version: "1.0.0", Dependencies: []Dependency{{Name: "base", Constraint: "^1.0.0"}}},
			{Name: "app", Version: "1.1.0", Dependencies: []Dependency{{Name: "base", Constraint: "^2.0.0"}}},
		},
		"base": {
			{Name: "base", Version: "1.4.0"},
		},
	}

	res, err := NewResolver(idx).Resolve([]Requirement{{Name: "app", Constraint: ""}})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if res["app"] != "1.0.0" {
		t.Errorf("app wrong. expected=1.0.0, got=%s", res["app"])
	}
	if res["base"] != "1.4.0" {
		t.Errorf("base wrong. expected=1.4.0, got=%s", res["base"])
	}
}

func TestResolveConflict(t *testing.T) {
	idx := Index{
		"app":  {{Name: "app", Version: "1.0.0", Dependencies: []Dependency{{Name: "base", Constraint: "~1.0.0"}}}},
		"base": {{Name: "base", Version: "2.0.0"}},
	}

	_, err := NewResolver(idx).Resolve([]Requirement{{Name: "app", Constraint: ">=1.0.0"}})

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Package != "app" {
		t.Errorf("conflict package wrong. expected=app, got=%s", conflict.Package)
	}
}

func TestResolveSharedDependencyIntersects(t *testing.T) {
	// a wants base <1.5, b wants base >=1.2: both must agree on one pin.
	idx := Index{
		"a": {{Name: "a", Version: "1.0.0", Dependencies: []Dependency{{Name: "base", Constraint: "<1.5.0"}}}},
		"b": {{Name: "b", Version: "1.0.0", Dependencies: []Dependency{{Name: "base", Constraint: ">=1.2.0"}}}},
		"base": {
			{Name: "base", Version: "1.0.0"},
			{Name: "base", Version: "1.4.0"},
			{Name: "base", Version: "1.9.0"},
		},
	}

	res, err := NewResolver(idx).Resolve([]Requirement{
		{Name: "a", Constraint: ""},
		{Name: "b", Constraint: ""},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if res["base"] != "1.4.0" {
		t.Errorf("base wrong. expected=1.4.0, got=%s", res["base"])
	}
}

func TestResolveCycle(t *testing.T) {
	idx := Index{
		"a": {{Name: "a", Version: "1.0.0", Dependencies: []Dependency{{Name: "b", Constraint: "^1.0.0"}}}},
		"b": {{Name: "b", Version: "1.0.0", Dependencies: []Dependency{{Name: "a", Constraint: "^1.0.0"}}}},
	}

	_, err := NewResolver(idx).Resolve([]Requirement{{Name: "a", Constraint: ""}})

	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if !strings.Contains(cycle.Error(), "a -> b") {
		t.Errorf("cycle message wrong: %s", cycle.Error())
	}
}

func TestResolveUnknownPackage(t *testing.T) {
	_, err := NewResolver(Index{}).Resolve([]Requirement{{Name: "ghost", Constraint: ""}})

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if !strings.Contains(conflict.Reason, "no published versions") {
		t.Errorf("reason wrong: %s", conflict.Reason)
	}
}

func TestMergeRequirementsIntersection(t *testing.T) {
	merged, err := mergeRequirements([]Requirement{
		{Name: "base", Constraint: ">=1.0.0"},
		{Name: "base", Constraint: "<2.0.0"},
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	con := merged["base"]
	if con.Check(mustVersion("2.1.0")) {
		t.Errorf("merged constraint accepted 2.1.0")
	}
	if !con.Check(mustVersion("1.5.0")) {
		t.Errorf("merged constraint rejected 1.5.0")
	}
}

func TestResolveAgainstStore(t *testing.T) {
	s := NewStore()
	mustPublish(t, s, "base", "1.0.0")
	mustPublish(t, s, "base", "1.2.0")
	mustPublish(t, s, "web", "0.9.0", Dependency{Name: "base", Constraint: "^1.1.0"})
	mustPublish(t, s, "app", "1.0.0",
		Dependency{Name: "web", Constraint: ">=0.9.0"},
		Dependency{Name: "base", Constraint: ">=1.0.0"})

	res, err := Resolve(context.Background(), s, []Requirement{{Name: "app", Constraint: ">=1.0.0"}})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	want := Resolution{"app": "1.0.0", "web": "0.9.0", "base": "1.2.0"}
	for name, ver := range want {
		if res[name] != ver {
			t.Errorf("%s wrong. expected=%s, got=%s", name, ver, res[name])
		}
	}
	if len(res) != len(want) {
		t.Errorf("resolution size wrong. expected=%d, got=%d (%v)", len(want), len(res), res)
	}
}

func TestBuildIndexWalksClosureOnly(t *testing.T) {
	s := NewStore()
	mustPublish(t, s, "base", "1.0.0")
	mustPublish(t, s, "app", "1.0.0", Dependency{Name: "base", Constraint: "^1.0.0"})
	mustPublish(t, s, "unrelated", "3.0.0")

	idx, err := BuildIndex(context.Background(), s, []Requirement{{Name: "app", Constraint: ""}})
	if err != nil {
		t.Fatalf("build index: %v", err)
	}

	if _, ok := idx["unrelated"]; ok {
		t.Errorf("index pulled in package outside the dependency closure")
	}
	if len(idx["app"]) != 1 || len(idx["base"]) != 1 {
		t.Errorf("index missing closure packages: %v", idx)
	}
}
