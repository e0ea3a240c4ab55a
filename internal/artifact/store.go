// Package artifact stores the named, typed blobs a sprint produces: the
// winning output of each completed phase and the judge rationale behind it.
// Artifacts are what the query surface hands to external collaborators that
// want results without replaying the timeline.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okapi-sh/sprintd/internal/errors"
)

// Artifact is one named, typed blob belonging to a sprint.
type Artifact struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"` // media type, e.g. "text/plain"
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the artifact persistence port.
type Store interface {
	Put(ctx context.Context, sprintID string, a Artifact) error
	Get(ctx context.Context, sprintID, name string) (Artifact, error)
	List(ctx context.Context, sprintID string) ([]Artifact, error)
}

// FileStore persists artifacts as JSON files under
// {baseDir}/{sprintID}/artifacts/, one file per artifact.
type FileStore struct {
	baseDir string
	mu      sync.Mutex
}

// NewFileStore creates a FileStore rooted at baseDir, creating it if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (fs *FileStore) sprintDir(sprintID string) string {
	return filepath.Join(fs.baseDir, sprintID, "artifacts")
}

// fileName flattens an artifact name into a single path component.
func fileName(name string) string {
	safe := strings.NewReplacer("/", "_", string(os.PathSeparator), "_").Replace(name)
	return safe + ".json"
}

// Put implements Store. Writing an existing name replaces it.
func (fs *FileStore) Put(ctx context.Context, sprintID string, a Artifact) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if a.Name == "" {
		return fmt.Errorf("artifact name must not be empty")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	dir := fs.sprintDir(sprintID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}

	path := filepath.Join(dir, fileName(a.Name))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize artifact: %w", err)
	}
	return nil
}

// Get implements Store.
func (fs *FileStore) Get(ctx context.Context, sprintID, name string) (Artifact, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := filepath.Join(fs.sprintDir(sprintID), fileName(name))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Artifact{}, errors.ErrArtifactNotFound
		}
		return Artifact{}, fmt.Errorf("failed to read artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return Artifact{}, fmt.Errorf("failed to decode artifact %s: %w", name, err)
	}
	return a, nil
}

// List implements Store, returning artifacts sorted by name.
func (fs *FileStore) List(ctx context.Context, sprintID string) ([]Artifact, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entries, err := os.ReadDir(fs.sprintDir(sprintID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	var out []Artifact
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(fs.sprintDir(sprintID), entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read artifact: %w", err)
		}
		var a Artifact
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("failed to decode artifact %s: %w", entry.Name(), err)
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
