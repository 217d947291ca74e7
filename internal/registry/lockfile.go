package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// LockFileName is the lockfile written next to lingual.json.
const LockFileName = "lingual.lock"

// LockEntry pins one package to an exact version and content. SHA256 repeats
// the archive hash in plain hex so tools unaware of the CID scheme can still
// verify downloads.
type LockEntry struct {
	Name         PackageID    `json:"name"`
	Version      Version      `json:"version"`
	CID          CID          `json:"cid"`
	SHA256       string       `json:"sha256"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
}

// Lockfile is a deterministic set of lock entries, sorted by package name.
type Lockfile struct {
	Entries []LockEntry `json:"entries"`
}

// GenerateLockfile pins a resolution against the registry and returns the
// lockfile along with its canonical JSON bytes. Two runs over the same
// resolution and registry produce identical bytes.
func GenerateLockfile(ctx context.Context, reg Registry, res Resolution) (Lockfile, []byte, error) {
	names := make([]PackageID, 0, len(res))
	for n := range res {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	entries := make([]LockEntry, 0, len(names))

	for _, name := range names {
		ver := res[name]

		con, err := parseConstraint("=" + string(ver))
		if err != nil {
			return Lockfile{}, nil, fmt.Errorf("%s@%s: %w", name, ver, err)
		}

		cid, man, err := reg.Find(ctx, name, con)
		if err != nil {
			return Lockfile{}, nil, fmt.Errorf("lock %s@%s: %w", name, ver, err)
		}

		blob, err := reg.Fetch(ctx, cid)
		if err != nil {
			return Lockfile{}, nil, fmt.Errorf("lock %s@%s: %w", name, ver, err)
		}

		sum := sha256.Sum256(blob.Data)

		deps := append([]Dependency(nil), man.Dependencies...)
		sort.Slice(deps, func(i, j int) bool {
			if deps[i].Name != deps[j].Name {
				return deps[i].Name < deps[j].Name
			}

			return deps[i].Constraint < deps[j].Constraint
		})

		entries = append(entries, LockEntry{
			Name:         name,
			Version:      ver,
			CID:          cid,
			SHA256:       hex.EncodeToString(sum[:]),
			Dependencies: deps,
		})
	}

	lock := Lockfile{Entries: entries}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return Lockfile{}, nil, err
	}
	data = append(data, '\n')

	return lock, data, nil
}

// VerifyLockfile re-fetches every entry and checks ordering, manifest
// identity, and content hashes.
func VerifyLockfile(ctx context.Context, reg Registry, lock Lockfile) error {
	sorted := sort.SliceIsSorted(lock.Entries, func(i, j int) bool {
		return lock.Entries[i].Name < lock.Entries[j].Name
	})
	if !sorted {
		return errors.New("lockfile entries not sorted by name")
	}

	for _, e := range lock.Entries {
		blob, err := reg.Fetch(ctx, e.CID)
		if err != nil {
			return fmt.Errorf("verify %s@%s: %w", e.Name, e.Version, err)
		}

		if blob.Manifest.Name != e.Name || blob.Manifest.Version != e.Version {
			return fmt.Errorf("verify %s@%s: registry returned %s@%s", e.Name, e.Version, blob.Manifest.Name, blob.Manifest.Version)
		}

		sum := sha256.Sum256(blob.Data)
		if hex.EncodeToString(sum[:]) != e.SHA256 {
			return fmt.Errorf("verify %s@%s: checksum mismatch", e.Name, e.Version)
		}
	}

	return nil
}

// Resolution reconstructs the pinned versions recorded in the lockfile.
func (l Lockfile) Resolution() Resolution {
	out := make(Resolution, len(l.Entries))
	for _, e := range l.Entries {
		out[e.Name] = e.Version
	}

	return out
}

// ReadLockfile loads dir/lingual.lock.
func ReadLockfile(dir string) (Lockfile, error) {
	path := filepath.Join(dir, LockFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		return Lockfile{}, err
	}

	var lock Lockfile
	if err := json.Unmarshal(data, &lock); err != nil {
		return Lockfile{}, fmt.Errorf("%s: %w", path, err)
	}

	return lock, nil
}

// WriteLockfile writes canonical lockfile bytes to dir/lingual.lock.
func WriteLockfile(dir string, data []byte) error {
	if err := os.WriteFile(filepath.Join(dir, LockFileName), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", LockFileName, err)
	}

	return nil
}
