package services

import (
	"fmt"
	"os"
	"path/filepath"
)

// docStore addresses ticket documents on disk: one markdown file per
// ticket id inside the issues directory.
type docStore struct {
	dir string
}

func newDocStore(dir string) (*docStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create issues directory: %w", err)
	}
	return &docStore{dir: dir}, nil
}

// Path returns the absolute file path for a ticket id.
func (d *docStore) Path(id string) string {
	return filepath.Join(d.dir, id+".md")
}

// RelPath returns the repo-relative path used in commit pathspecs.
func (d *docStore) RelPath(repoRoot, id string) string {
	rel, err := filepath.Rel(repoRoot, d.Path(id))
	if err != nil {
		return d.Path(id)
	}
	return rel
}

func (d *docStore) Read(id string) ([]byte, error) {
	return os.ReadFile(d.Path(id))
}

func (d *docStore) Exists(id string) bool {
	_, err := os.Stat(d.Path(id))
	return err == nil
}

func (d *docStore) Write(id string, content []byte) error {
	return os.WriteFile(d.Path(id), content, 0644)
}

// Remove deletes a document, used when a temp id is promoted and the
// content now lives under the real key.
func (d *docStore) Remove(id string) error {
	return os.Remove(d.Path(id))
}
