package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	semver "github.com/Masterminds/semver/v3"
	"golang.org/x/sync/errgroup"
)

// Requirement is a root constraint handed to resolution, usually one entry
// of the manifest's requires table.
type Requirement struct {
	Name       PackageID
	Constraint string
}

// Resolution pins every package in the dependency closure to one version.
type Resolution map[PackageID]Version

// Index holds the published versions per package that a Resolver picks from.
type Index map[PackageID][]Manifest

// ConflictError reports that no version assignment satisfies the combined
// constraints on a package.
type ConflictError struct {
	Package PackageID
	Reason  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("resolution conflict for %s: %s", e.Package, e.Reason)
}

// CycleError reports a dependency cycle. Stack lists the packages on the
// cycle in name order.
type CycleError struct {
	Stack []PackageID
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Stack))
	for i, p := range e.Stack {
		parts[i] = string(p)
	}

	return fmt.Sprintf("dependency cycle: %s", strings.Join(parts, " -> "))
}

// Resolver assigns versions over a fixed index, preferring the highest
// satisfying version and backtracking when a candidate's dependencies
// cannot be met.
type Resolver struct {
	index Index
	// maxDepth bounds recursion; 0 means unlimited.
	maxDepth int
}

// NewResolver constructs a resolver over the given index.
func NewResolver(index Index) *Resolver {
	return &Resolver{index: index}
}

// Resolve computes a version assignment satisfying all requirements and
// their transitive dependencies.
func (r *Resolver) Resolve(reqs []Requirement) (Resolution, error) {
	merged, err := mergeRequirements(reqs)
	if err != nil {
		return nil, err
	}

	roots := make([]PackageID, 0, len(merged))
	for id := range merged {
		roots = append(roots, id)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	out := make(Resolution)
	visiting := make(map[PackageID]bool)

	for _, root := range roots {
		if err := r.pin(root, merged[root], out, visiting, 0); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// mergeRequirements intersects multiple constraints on the same package by
// AND-joining their textual forms and re-parsing.
func mergeRequirements(reqs []Requirement) (map[PackageID]*semver.Constraints, error) {
	merged := make(map[PackageID]*semver.Constraints, len(reqs))

	for _, q := range reqs {
		c, err := parseConstraint(q.Constraint)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", q.Name, err)
		}

		if prev, ok := merged[q.Name]; ok {
			joined, err := semver.NewConstraint(prev.String() + ", " + c.String())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", q.Name, err)
			}
			merged[q.Name] = joined
		} else {
			merged[q.Name] = c
		}
	}

	return merged, nil
}

// pin chooses a version for pkg satisfying con, then recursively pins its
// dependencies. On failure the tentative choice is dropped and the next
// lower candidate is tried.
func (r *Resolver) pin(pkg PackageID, con *semver.Constraints, out Resolution, visiting map[PackageID]bool, depth int) error {
	if r.maxDepth > 0 && depth > r.maxDepth {
		return &ConflictError{Package: pkg, Reason: "max depth exceeded"}
	}

	if visiting[pkg] {
		return &CycleError{Stack: cycleStack(visiting)}
	}

	// Already pinned by an earlier branch: just verify compatibility.
	if v, ok := out[pkg]; ok {
		sv, err := semver.NewVersion(string(v))
		if err != nil {
			return fmt.Errorf("%s pinned invalid version %q: %w", pkg, v, err)
		}
		if con != nil && !con.Check(sv) {
			return &ConflictError{Package: pkg, Reason: fmt.Sprintf("pinned %s violates %s", v, con)}
		}

		return nil
	}

	candidates := append([]Manifest(nil), r.index[pkg]...)
	if len(candidates) == 0 {
		return &ConflictError{Package: pkg, Reason: "no published versions"}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return mustVersion(candidates[i].Version).GreaterThan(mustVersion(candidates[j].Version))
	})

	var lastErr error

	for _, cand := range candidates {
		if con != nil && !con.Check(mustVersion(cand.Version)) {
			continue
		}

		out[pkg] = cand.Version
		visiting[pkg] = true

		depsOK := true
		for _, d := range cand.Dependencies {
			dc, err := parseConstraint(d.Constraint)
			if err != nil {
				lastErr, depsOK = err, false
				break
			}
			if err := r.pin(d.Name, dc, out, visiting, depth+1); err != nil {
				lastErr, depsOK = err, false
				break
			}
		}

		visiting[pkg] = false

		if depsOK {
			return nil
		}

		delete(out, pkg)
	}

	// Preserve a cycle diagnosis instead of reporting it as a conflict.
	if ce, ok := lastErr.(*CycleError); ok {
		return ce
	}

	reason := "no candidate satisfies " + constraintString(con)
	if lastErr != nil {
		reason += ": " + lastErr.Error()
	}

	return &ConflictError{Package: pkg, Reason: reason}
}

// cycleStack lists the packages active in the current pin chain, which at
// the point of detection includes the package closing the cycle.
func cycleStack(visiting map[PackageID]bool) []PackageID {
	stack := make([]PackageID, 0, len(visiting))
	for id, active := range visiting {
		if active {
			stack = append(stack, id)
		}
	}
	sort.Slice(stack, func(i, j int) bool { return stack[i] < stack[j] })

	return stack
}

func constraintString(c *semver.Constraints) string {
	if c == nil {
		return "<any>"
	}

	return c.String()
}

// BuildIndex walks the transitive closure of the requirements, listing each
// discovered package from the registry with bounded parallelism. It avoids
// Registry.All so remote registries only serve the packages actually needed.
func BuildIndex(ctx context.Context, reg Registry, reqs []Requirement) (Index, error) {
	idx := make(Index)
	loaded := make(map[PackageID]bool)

	queue := make([]PackageID, 0, len(reqs))
	for _, q := range reqs {
		if !loaded[q.Name] {
			loaded[q.Name] = true
			queue = append(queue, q.Name)
		}
	}

	for len(queue) > 0 {
		batch := queue
		queue = nil

		var mu sync.Mutex
		found := make(map[PackageID][]Manifest, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(listConcurrency)

		for _, name := range batch {
			name := name
			g.Go(func() error {
				mans, err := reg.List(gctx, name)
				if err != nil {
					return fmt.Errorf("list %s: %w", name, err)
				}

				mu.Lock()
				found[name] = mans
				mu.Unlock()

				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}

		next := make(map[PackageID]bool)

		for _, name := range batch {
			for _, mf := range found[name] {
				idx[mf.Name] = append(idx[mf.Name], mf)

				for _, d := range mf.Dependencies {
					if !loaded[d.Name] {
						next[d.Name] = true
					}
				}
			}
		}

		for n := range next {
			loaded[n] = true
			queue = append(queue, n)
		}
		sort.Slice(queue, func(i, j int) bool { return queue[i] < queue[j] })
	}

	for name := range idx {
		entries := idx[name]
		sort.Slice(entries, func(i, j int) bool {
			return mustVersion(entries[i].Version).LessThan(mustVersion(entries[j].Version))
		})
		idx[name] = entries
	}

	return idx, nil
}

// listConcurrency bounds parallel List calls while building an index.
const listConcurrency = 8

// Resolve builds the index for reqs from the registry and resolves them.
func Resolve(ctx context.Context, reg Registry, reqs []Requirement) (Resolution, error) {
	idx, err := BuildIndex(ctx, reg, reqs)
	if err != nil {
		return nil, err
	}

	return NewResolver(idx).Resolve(reqs)
}
