package registry

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func lockFixture(t *testing.T) (*Store, Resolution) {
	t.Helper()

	s := NewStore()
	mustPublish(t, s, "base", "1.2.3")
	mustPublish(t, s, "app", "0.1.0", Dependency{Name: "base", Constraint: "^1.2.0"})

	res, err := Resolve(context.Background(), s, []Requirement{{Name: "app", Constraint: ">=0.1.0"}})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	return s, res
}

func TestGenerateAndVerifyLockfile(t *testing.T) {
	s, res := lockFixture(t)
	ctx := context.Background()

	lock, data, err := GenerateLockfile(ctx, s, res)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(lock.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(lock.Entries))
	}
	if lock.Entries[0].Name != "app" || lock.Entries[1].Name != "base" {
		t.Errorf("entries not sorted by name: %s, %s", lock.Entries[0].Name, lock.Entries[1].Name)
	}
	if !strings.Contains(string(data), `"cid": "lin1-`) {
		t.Errorf("serialized lockfile missing CIDs:\n%s", data)
	}

	if err := VerifyLockfile(ctx, s, lock); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestGenerateLockfileIsDeterministic(t *testing.T) {
	s, res := lockFixture(t)
	ctx := context.Background()

	_, first, err := GenerateLockfile(ctx, s, res)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	_, second, err := GenerateLockfile(ctx, s, res)
	if err != nil {
		t.Fatalf("generate again: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Fatalf("lockfile bytes differ between runs:\n%s\n---\n%s", first, second)
	}
}

func TestVerifyLockfileCatchesTampering(t *testing.T) {
	s, res := lockFixture(t)
	ctx := context.Background()

	lock, _, err := GenerateLockfile(ctx, s, res)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	t.Run("checksum", func(t *testing.T) {
		tampered := lock
		tampered.Entries = append([]LockEntry(nil), lock.Entries...)
		tampered.Entries[0].SHA256 = strings.Repeat("0", 64)

		err := VerifyLockfile(ctx, s, tampered)
		if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
			t.Errorf("expected checksum mismatch, got %v", err)
		}
	})

	t.Run("unsorted", func(t *testing.T) {
		tampered := lock
		tampered.Entries = []LockEntry{lock.Entries[1], lock.Entries[0]}

		err := VerifyLockfile(ctx, s, tampered)
		if err == nil || !strings.Contains(err.Error(), "not sorted") {
			t.Errorf("expected sort error, got %v", err)
		}
	})

	t.Run("missing blob", func(t *testing.T) {
		tampered := lock
		tampered.Entries = append([]LockEntry(nil), lock.Entries...)
		tampered.Entries[0].CID = "lin1-gone"

		err := VerifyLockfile(ctx, s, tampered)
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestLockfileResolutionRoundTrip(t *testing.T) {
	s, res := lockFixture(t)

	lock, _, err := GenerateLockfile(context.Background(), s, res)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	back := lock.Resolution()
	if len(back) != len(res) {
		t.Fatalf("resolution size wrong. expected=%d, got=%d", len(res), len(back))
	}
	for name, ver := range res {
		if back[name] != ver {
			t.Errorf("%s wrong. expected=%s, got=%s", name, ver, back[name])
		}
	}
}

func TestLockfileReadWriteFile(t *testing.T) {
	s, res := lockFixture(t)
	dir := t.TempDir()

	lock, data, err := GenerateLockfile(context.Background(), s, res)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if err := WriteLockfile(dir, data); err != nil {
		t.Fatalf("write: %v", err)
	}

	back, err := ReadLockfile(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if len(back.Entries) != len(lock.Entries) {
		t.Fatalf("entries lost in round trip: %d vs %d", len(back.Entries), len(lock.Entries))
	}
	for i := range lock.Entries {
		if back.Entries[i].CID != lock.Entries[i].CID {
			t.Errorf("entry %d CID wrong. expected=%s, got=%s", i, lock.Entries[i].CID, back.Entries[i].CID)
		}
	}
}
