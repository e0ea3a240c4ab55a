// Package checkpoint provides the append-only checkpoint persistence port
// and its file-backed implementation. Checkpoints are never edited or
// deleted; the store assigns sprint-scoped, strictly increasing sequence
// numbers on append, and writing a checkpoint is part of completing a phase
// transition, not best-effort.
package checkpoint

import (
	"context"

	"github.com/okapi-sh/sprintd/internal/sprint"
)

// Store is the checkpoint persistence port consumed by the core. An
// implementation must make Append durable before returning: the runner
// treats an Append error as fatal to the phase attempt.
type Store interface {
	// Append assigns the next sequence number for the sprint, persists the
	// checkpoint, and returns the stored record.
	Append(ctx context.Context, sprintID string, cp sprint.Checkpoint) (sprint.Checkpoint, error)

	// Latest returns the most recent checkpoint for a sprint, or
	// errors.ErrCheckpointNotFound if none exists.
	Latest(ctx context.Context, sprintID string) (sprint.Checkpoint, error)

	// List returns every checkpoint for a sprint in sequence order.
	List(ctx context.Context, sprintID string) ([]sprint.Checkpoint, error)
}
