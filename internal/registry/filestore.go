package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	semver "github.com/Masterminds/semver/v3"
)

// FileStore is a filesystem-backed Registry. Every blob lives at
// <dir>/blobs/<cid>.json and the whole in-memory index is rebuilt from
// the blob files on open, so the directory itself is the source of
// truth. Blobs written by another process after open are picked up
// lazily through Fetch.
type FileStore struct {
	mu  sync.Mutex // serializes disk writes
	dir string
	mem *Store
}

// OpenFileStore loads or initializes a registry rooted at dir.
func OpenFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("registry dir required")
	}
	if err := os.MkdirAll(filepath.Join(dir, "blobs"), 0o755); err != nil {
		return nil, err
	}

	s := &FileStore{dir: dir, mem: NewStore()}
	err := filepath.WalkDir(filepath.Join(dir, "blobs"), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		blob, err := readBlobFile(path)
		if err != nil {
			return err
		}
		if _, err := s.mem.Publish(context.Background(), blob); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) blobPath(id CID) string {
	return filepath.Join(s.dir, "blobs", string(id)+".json")
}

// readBlobFile decodes one stored blob and checks that its content
// still hashes to the CID in the filename.
func readBlobFile(path string) (Blob, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Blob{}, err
	}
	var blob Blob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return Blob{}, fmt.Errorf("%s: %w", path, err)
	}
	if want := string(ComputeCID(blob.Data)) + ".json"; filepath.Base(path) != want {
		return Blob{}, fmt.Errorf("%s: content hash mismatch", path)
	}
	return blob, nil
}

// Publish validates and indexes the blob, then persists it. A failed
// disk write leaves the blob in memory only; it is gone after reopen.
func (s *FileStore) Publish(ctx context.Context, blob Blob) (CID, error) {
	id, err := s.mem.Publish(ctx, blob)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.blobPath(id)
	if _, err := os.Stat(path); err == nil {
		return id, nil
	}
	data, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		return "", err
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return id, nil
}

// Fetch serves from memory, falling back to a disk read for blobs
// another process published after open.
func (s *FileStore) Fetch(ctx context.Context, id CID) (Blob, error) {
	blob, err := s.mem.Fetch(ctx, id)
	if err == nil {
		return blob, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Blob{}, err
	}

	blob, err = readBlobFile(s.blobPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Blob{}, ErrNotFound
		}
		return Blob{}, err
	}
	if _, err := s.mem.Publish(ctx, blob); err != nil {
		return Blob{}, err
	}
	return blob, nil
}

func (s *FileStore) Find(ctx context.Context, name PackageID, constraint *semver.Constraints) (CID, Manifest, error) {
	return s.mem.Find(ctx, name, constraint)
}

func (s *FileStore) List(ctx context.Context, name PackageID) ([]Manifest, error) {
	return s.mem.List(ctx, name)
}

func (s *FileStore) All(ctx context.Context) ([]Manifest, error) {
	return s.mem.All(ctx)
}
