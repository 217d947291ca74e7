package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenFileStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	mustPublish(t, store, "base", "1.0.0")
	cid := mustPublish(t, store, "base", "1.4.0")

	found, man, err := store.Find(context.Background(), "base", nil)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if man.Version != "1.4.0" || found != cid {
		t.Errorf("find wrong. got=%s@%s cid=%s", man.Name, man.Version, found)
	}

	blob, err := store.Fetch(context.Background(), cid)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(blob.Data) != "base-1.4.0" {
		t.Errorf("data wrong. got=%q", blob.Data)
	}

	if _, err := os.Stat(filepath.Join(dir, "blobs", string(cid)+".json")); err != nil {
		t.Errorf("blob file not persisted: %v", err)
	}
}

func TestFileStoreReopenRebuildsIndex(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenFileStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	cid := mustPublish(t, store, "app", "0.2.0", Dependency{Name: "base", Constraint: "^1.0.0"})
	mustPublish(t, store, "base", "1.2.0")

	reopened, err := OpenFileStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	found, man, err := reopened.Find(context.Background(), "app", nil)
	if err != nil {
		t.Fatalf("find after reopen: %v", err)
	}
	if found != cid || man.Version != "0.2.0" {
		t.Errorf("find wrong after reopen. got=%s cid=%s", man.Version, found)
	}
	if len(man.Dependencies) != 1 || man.Dependencies[0].Name != "base" {
		t.Errorf("dependencies lost on reopen: %+v", man.Dependencies)
	}

	all, err := reopened.All(context.Background())
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("manifest count wrong after reopen. expected=2, got=%d", len(all))
	}
}

func TestFileStoreRejectsTamperedBlob(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenFileStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	cid := mustPublish(t, store, "base", "1.0.0")

	path := filepath.Join(dir, "blobs", string(cid)+".json")
	tampered := `{"manifest":{"name":"base","version":"1.0.0"},"data":"ZXZpbA=="}`
	if err := os.WriteFile(path, []byte(tampered), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	if _, err := OpenFileStore(dir); err == nil {
		t.Error("reopen should reject a tampered blob")
	} else if !strings.Contains(err.Error(), "content hash mismatch") {
		t.Errorf("error wrong, got=%q", err.Error())
	}
}

func TestFileStoreFetchPicksUpForeignWrites(t *testing.T) {
	dir := t.TempDir()
	reader, err := OpenFileStore(dir)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	writer, err := OpenFileStore(dir)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}

	cid := mustPublish(t, writer, "base", "2.0.0")

	// The reader opened before the publish, so its index is empty.
	if _, _, err := reader.Find(context.Background(), "base", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before fetch, got %v", err)
	}

	blob, err := reader.Fetch(context.Background(), cid)
	if err != nil {
		t.Fatalf("fetch by cid: %v", err)
	}
	if blob.Manifest.Version != "2.0.0" {
		t.Errorf("manifest wrong. got=%s", blob.Manifest.Version)
	}

	// Fetching indexes the blob, so lookups see it now.
	if _, _, err := reader.Find(context.Background(), "base", nil); err != nil {
		t.Errorf("find after fetch: %v", err)
	}
}

func TestOpenFileStoreRequiresDir(t *testing.T) {
	if _, err := OpenFileStore(""); err == nil {
		t.Error("empty dir should be rejected")
	}
}
