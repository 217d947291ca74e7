// Package registry implements the lingual package registry: content-addressed
// blob storage with semver lookup, an HTTP client and server sharing one wire
// format, dependency resolution, and the lingual.lock file.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"

	semver "github.com/Masterminds/semver/v3"
)

// PackageID names a published package.
type PackageID string

// Version is a semantic version string as published.
type Version string

// Dependency is a constraint one package places on another. An empty
// constraint accepts any version.
type Dependency struct {
	Name       PackageID `json:"name"`
	Constraint string    `json:"constraint,omitempty"`
}

// Manifest describes one published version of a package.
type Manifest struct {
	Name         PackageID    `json:"name"`
	Version      Version      `json:"version"`
	Description  string       `json:"description,omitempty"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
}

// Validate checks that the manifest is publishable: a well-formed name, a
// parseable version, and parseable dependency constraints.
func (m Manifest) Validate() error {
	if err := validateName(m.Name); err != nil {
		return err
	}

	if _, err := semver.NewVersion(string(m.Version)); err != nil {
		return fmt.Errorf("version %q: %w", m.Version, err)
	}

	for _, d := range m.Dependencies {
		if err := validateName(d.Name); err != nil {
			return fmt.Errorf("dependency: %w", err)
		}
		if _, err := parseConstraint(d.Constraint); err != nil {
			return fmt.Errorf("dependency %s: %w", d.Name, err)
		}
	}

	return nil
}

// validateName restricts package names to lowercase identifiers so they stay
// usable in URLs, lockfiles, and import paths across targets.
func validateName(name PackageID) error {
	if name == "" {
		return errors.New("package name is empty")
	}

	for i, r := range string(name) {
		switch {
		case r >= 'a' && r <= 'z':
		case i > 0 && (r >= '0' && r <= '9' || r == '-' || r == '_'):
		default:
			return fmt.Errorf("package name %q: unexpected character %q", name, r)
		}
	}

	return nil
}

// Blob couples a manifest with the opaque archive bytes it describes.
type Blob struct {
	Manifest Manifest `json:"manifest"`
	Data     []byte   `json:"data"`
}

// CID is a content identifier derived from the archive bytes, so the same
// content always publishes to the same address.
type CID string

// ComputeCID hashes data into a stable content identifier.
func ComputeCID(data []byte) CID {
	sum := sha256.Sum256(data)
	return CID("lin1-" + hex.EncodeToString(sum[:]))
}

// ErrNotFound is returned when no blob or package version matches a lookup.
var ErrNotFound = errors.New("not found")

// Registry is implemented by the in-memory Store and the HTTP Client, so the
// resolver and lockfile code run unchanged against either.
type Registry interface {
	Publish(ctx context.Context, blob Blob) (CID, error)
	Fetch(ctx context.Context, id CID) (Blob, error)
	// Find locates the highest version satisfying the constraint and returns
	// its CID and manifest. A nil constraint matches every version.
	Find(ctx context.Context, name PackageID, constraint *semver.Constraints) (CID, Manifest, error)
	// List returns every published version of one package, ascending.
	List(ctx context.Context, name PackageID) ([]Manifest, error)
	// All returns every manifest known to the registry, sorted by name then
	// version.
	All(ctx context.Context) ([]Manifest, error)
}

// pinned associates one indexed version with the blob it was published as.
type pinned struct {
	man Manifest
	cid CID
}

// Store is a thread-safe in-memory Registry. The server wraps one; tests use
// it directly.
type Store struct {
	mu    sync.RWMutex
	blobs map[CID]Blob
	// per-package versions kept sorted ascending, so Find walks backwards
	index map[PackageID][]pinned
}

// NewStore constructs an empty registry store.
func NewStore() *Store {
	return &Store{
		blobs: make(map[CID]Blob),
		index: make(map[PackageID][]pinned),
	}
}

// Publish validates and stores the blob. Republishing identical content is
// idempotent; republishing a taken name@version with different content fails.
func (s *Store) Publish(ctx context.Context, blob Blob) (CID, error) {
	if len(blob.Data) == 0 {
		return "", errors.New("empty package data")
	}
	if err := blob.Manifest.Validate(); err != nil {
		return "", err
	}

	id := ComputeCID(blob.Data)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.index[blob.Manifest.Name] {
		if p.man.Version == blob.Manifest.Version {
			if p.cid == id {
				return id, nil
			}

			return "", fmt.Errorf("%s@%s already published with different content", blob.Manifest.Name, blob.Manifest.Version)
		}
	}

	s.blobs[id] = blob

	entries := append(s.index[blob.Manifest.Name], pinned{man: blob.Manifest, cid: id})
	sort.Slice(entries, func(i, j int) bool {
		return mustVersion(entries[i].man.Version).LessThan(mustVersion(entries[j].man.Version))
	})
	s.index[blob.Manifest.Name] = entries

	return id, nil
}

// Fetch returns the blob stored under id.
func (s *Store) Fetch(ctx context.Context, id CID) (Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blobs[id]
	if !ok {
		return Blob{}, ErrNotFound
	}

	return b, nil
}

// Find returns the highest published version satisfying the constraint.
func (s *Store) Find(ctx context.Context, name PackageID, constraint *semver.Constraints) (CID, Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.index[name]
	for i := len(entries) - 1; i >= 0; i-- {
		if constraint == nil || constraint.Check(mustVersion(entries[i].man.Version)) {
			return entries[i].cid, entries[i].man, nil
		}
	}

	return "", Manifest{}, ErrNotFound
}

// List returns all versions of name, ascending. Unknown names list empty.
func (s *Store) List(ctx context.Context, name PackageID) ([]Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.index[name]

	out := make([]Manifest, 0, len(entries))
	for _, p := range entries {
		out = append(out, p.man)
	}

	return out, nil
}

// All returns every manifest in the store, sorted by name then version.
func (s *Store) All(ctx context.Context) ([]Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Manifest, 0, len(s.blobs))
	for _, entries := range s.index {
		for _, p := range entries {
			out = append(out, p.man)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}

		return mustVersion(out[i].Version).LessThan(mustVersion(out[j].Version))
	})

	return out, nil
}

// mustVersion parses an indexed version. Publish validates before indexing,
// so entries always parse.
func mustVersion(v Version) *semver.Version {
	sv, err := semver.NewVersion(string(v))
	if err != nil {
		panic(err)
	}

	return sv
}

// parseConstraint treats an empty expression as "any version".
func parseConstraint(expr string) (*semver.Constraints, error) {
	if expr == "" {
		return semver.NewConstraint(">=0.0.0")
	}

	return semver.NewConstraint(expr)
}
