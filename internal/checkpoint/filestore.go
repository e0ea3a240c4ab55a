package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/okapi-sh/sprintd/internal/errors"
	"github.com/okapi-sh/sprintd/internal/sprint"
)

// FileStore persists checkpoints as JSON files under
// {baseDir}/{sprintID}/checkpoints/{seq}.json, written atomically via a
// temp-file rename. Sequence counters survive restarts: they are recovered
// by scanning the sprint's directory on first use.
type FileStore struct {
	baseDir string
	mu      sync.Mutex
	nextSeq map[string]uint64
}

// NewFileStore creates a FileStore rooted at baseDir, creating it if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &FileStore{
		baseDir: baseDir,
		nextSeq: make(map[string]uint64),
	}, nil
}

func (fs *FileStore) sprintDir(sprintID string) string {
	return filepath.Join(fs.baseDir, sprintID, "checkpoints")
}

// Append implements Store.
func (fs *FileStore) Append(ctx context.Context, sprintID string, cp sprint.Checkpoint) (sprint.Checkpoint, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	seq, err := fs.reserveSeq(sprintID)
	if err != nil {
		return sprint.Checkpoint{}, err
	}

	cp.Seq = seq
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return sprint.Checkpoint{}, fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	dir := fs.sprintDir(sprintID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return sprint.Checkpoint{}, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%08d.json", seq))
	if err := atomicWriteFile(path, data, 0644); err != nil {
		return sprint.Checkpoint{}, err
	}

	fs.nextSeq[sprintID] = seq + 1
	return cp, nil
}

// reserveSeq returns the next sequence number for a sprint, recovering the
// counter from disk the first time the sprint is seen.
func (fs *FileStore) reserveSeq(sprintID string) (uint64, error) {
	if next, ok := fs.nextSeq[sprintID]; ok {
		return next, nil
	}

	seqs, err := fs.scanSeqs(sprintID)
	if err != nil {
		return 0, err
	}
	var max uint64
	for _, s := range seqs {
		if s > max {
			max = s
		}
	}
	return max + 1, nil
}

// scanSeqs lists the sequence numbers present on disk for a sprint, sorted.
func (fs *FileStore) scanSeqs(sprintID string) ([]uint64, error) {
	entries, err := os.ReadDir(fs.sprintDir(sprintID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	var seqs []uint64
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		seq, err := strconv.ParseUint(strings.TrimSuffix(name, ".json"), 10, 64)
		if err != nil {
			continue
		}
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs, nil
}

// Latest implements Store.
func (fs *FileStore) Latest(ctx context.Context, sprintID string) (sprint.Checkpoint, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	seqs, err := fs.scanSeqs(sprintID)
	if err != nil {
		return sprint.Checkpoint{}, err
	}
	if len(seqs) == 0 {
		return sprint.Checkpoint{}, errors.ErrCheckpointNotFound
	}
	return fs.read(sprintID, seqs[len(seqs)-1])
}

// List implements Store.
func (fs *FileStore) List(ctx context.Context, sprintID string) ([]sprint.Checkpoint, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	seqs, err := fs.scanSeqs(sprintID)
	if err != nil {
		return nil, err
	}

	out := make([]sprint.Checkpoint, 0, len(seqs))
	for _, seq := range seqs {
		cp, err := fs.read(sprintID, seq)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

func (fs *FileStore) read(sprintID string, seq uint64) (sprint.Checkpoint, error) {
	path := filepath.Join(fs.sprintDir(sprintID), fmt.Sprintf("%08d.json", seq))
	data, err := os.ReadFile(path)
	if err != nil {
		return sprint.Checkpoint{}, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	var cp sprint.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return sprint.Checkpoint{}, fmt.Errorf("failed to decode checkpoint %d: %w", seq, err)
	}
	return cp, nil
}

// atomicWriteFile writes data to path via a temp file and rename, so readers
// never observe a partially written checkpoint.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}
