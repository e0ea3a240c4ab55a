// Package orchestrator owns sprint lifecycles. It creates sprints, drives
// them phase by phase through the runner, chains each phase's winning output
// into the next phase's input, and keeps the durable record straight: every
// transition on the timeline, every boundary in a checkpoint, every winning
// output in the artifact store.
package orchestrator

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"time"

	"github.com/okapi-sh/sprintd/internal/artifact"
	"github.com/okapi-sh/sprintd/internal/checkpoint"
	"github.com/okapi-sh/sprintd/internal/config"
	"github.com/okapi-sh/sprintd/internal/errors"
	"github.com/okapi-sh/sprintd/internal/judge"
	"github.com/okapi-sh/sprintd/internal/logging"
	"github.com/okapi-sh/sprintd/internal/provider"
	"github.com/okapi-sh/sprintd/internal/runner"
	"github.com/okapi-sh/sprintd/internal/sprint"
	"github.com/okapi-sh/sprintd/internal/timeline"
)

// state is the in-memory record of one sprint. The live phase is mutated by
// the run goroutine only; everything else reads committed clones under mu.
type state struct {
	mu        sync.RWMutex
	sprint    *sprint.Sprint
	committed []sprint.Phase
	workspace string

	// live is the phase currently being run, touched only by the run
	// goroutine. liveIdx is its position in committed.
	live    *sprint.Phase
	liveIdx int
}

// Snapshot commits the live phase and returns a consistent copy of the whole
// sprint. Called by the runner at checkpoint time, on the run goroutine.
func (st *state) Snapshot() sprint.Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.live != nil {
		st.committed[st.liveIdx] = st.live.Clone()
	}
	return st.snapshotLocked()
}

func (st *state) snapshotLocked() sprint.Snapshot {
	phases := make([]sprint.Phase, len(st.committed))
	for i := range st.committed {
		phases[i] = (&st.committed[i]).Clone()
	}
	return sprint.Snapshot{
		Sprint:    st.sprint.Clone(),
		Phases:    phases,
		Workspace: st.workspace,
	}
}

// Orchestrator manages all sprints in a process. Safe for concurrent use.
type Orchestrator struct {
	mu          sync.RWMutex
	cfg         *config.Config
	bus         *timeline.Bus
	checkpoints checkpoint.Store
	artifacts   artifact.Store
	judge       judge.Judge
	providers   []provider.Runner
	logger      *logging.Logger

	states   map[string]*state
	cancels  map[string]context.CancelFunc
	journals map[string]*timeline.Journal
}

// Option overrides a default collaborator; tests use these to inject
// failing stores.
type Option func(*Orchestrator)

func WithCheckpointStore(s checkpoint.Store) Option {
	return func(o *Orchestrator) { o.checkpoints = s }
}

func WithArtifactStore(s artifact.Store) Option {
	return func(o *Orchestrator) { o.artifacts = s }
}

// New builds an orchestrator from configuration: providers, judge, and the
// on-disk stores under cfg.Paths.DataDir.
func New(cfg *config.Config, logger *logging.Logger, opts ...Option) (*Orchestrator, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	providers, err := provider.NewSet(cfg.Providers)
	if err != nil {
		return nil, err
	}
	j, err := judge.New(cfg.Judge)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:       cfg,
		bus:       timeline.NewBus(),
		judge:     j,
		providers: providers,
		logger:    logger,
		states:    make(map[string]*state),
		cancels:   make(map[string]context.CancelFunc),
		journals:  make(map[string]*timeline.Journal),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.checkpoints == nil {
		cs, err := checkpoint.NewFileStore(cfg.Paths.DataDir)
		if err != nil {
			return nil, err
		}
		o.checkpoints = cs
	}
	if o.artifacts == nil {
		as, err := artifact.NewFileStore(cfg.Paths.DataDir)
		if err != nil {
			return nil, err
		}
		o.artifacts = as
	}
	return o, nil
}

// Create registers a planned sprint over the given phase sequence. Nothing
// is persisted and no events are emitted until the sprint starts.
func (o *Orchestrator) Create(phases []string, input string) (*sprint.Sprint, error) {
	sp, err := sprint.New(phases, input)
	if err != nil {
		return nil, err
	}

	st := &state{sprint: sp, workspace: o.cfg.Sprint.Workspace}
	st.committed = make([]sprint.Phase, len(phases))
	for i, name := range phases {
		st.committed[i] = *sprint.NewPhase(name, i)
	}

	o.mu.Lock()
	o.states[sp.ID] = st
	o.mu.Unlock()

	o.logger.WithSprint(sp.ID).Info("sprint created", "phases", len(phases))
	out := sp.Clone()
	return &out, nil
}

func (o *Orchestrator) get(sprintID string) (*state, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	st, ok := o.states[sprintID]
	if !ok {
		return nil, errors.ErrSprintNotFound
	}
	return st, nil
}

// Run drives a planned sprint to a terminal status, blocking until it
// completes, fails, or ctx is canceled. Running a sprint twice fails.
func (o *Orchestrator) Run(ctx context.Context, sprintID string) error {
	st, err := o.get(sprintID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	switch {
	case st.sprint.Status.Terminal():
		st.mu.Unlock()
		return errors.ErrSprintTerminal
	case st.sprint.Status != sprint.StatusPlanned:
		st.mu.Unlock()
		return errors.ErrSprintActive
	}
	st.sprint.Status = sprint.StatusActive
	st.sprint.UpdatedAt = time.Now()
	st.mu.Unlock()

	return o.drive(ctx, st, 0, "started")
}

// Start launches Run on its own goroutine and returns a channel carrying the
// terminal error. Cancel aborts the run cooperatively.
func (o *Orchestrator) Start(ctx context.Context, sprintID string) (<-chan error, error) {
	st, err := o.get(sprintID)
	if err != nil {
		return nil, err
	}
	st.mu.RLock()
	planned := st.sprint.Status == sprint.StatusPlanned
	st.mu.RUnlock()
	if !planned {
		return nil, errors.ErrSprintNotPlanned
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancels[sprintID] = cancel
	o.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		defer cancel()
		done <- o.Run(runCtx, sprintID)
	}()
	return done, nil
}

// Cancel requests cooperative cancellation. Canceling a terminal sprint is a
// no-op; canceling a planned sprint fails it without running anything.
func (o *Orchestrator) Cancel(sprintID string) error {
	st, err := o.get(sprintID)
	if err != nil {
		return err
	}

	o.mu.RLock()
	cancel := o.cancels[sprintID]
	o.mu.RUnlock()

	st.mu.Lock()
	switch st.sprint.Status {
	case sprint.StatusPlanned:
		st.sprint.Status = sprint.StatusFailed
		st.sprint.FailureReason = sprint.FailureReasonCanceled
		st.sprint.UpdatedAt = time.Now()
		st.mu.Unlock()
		return nil
	case sprint.StatusCompleted, sprint.StatusFailed:
		st.mu.Unlock()
		return nil
	}
	st.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// Status returns a consistent snapshot of the sprint: the sprint record plus
// every phase as of its last committed transition.
func (o *Orchestrator) Status(sprintID string) (sprint.Snapshot, error) {
	st, err := o.get(sprintID)
	if err != nil {
		return sprint.Snapshot{}, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.snapshotLocked(), nil
}

// Workflow bundles a sprint's state snapshot with its full timeline, the
// one-call query a dashboard needs to render a sprint.
type Workflow struct {
	Sprint   sprint.Sprint    `json:"sprint"`
	Phases   []sprint.Phase   `json:"phases"`
	Timeline []timeline.Event `json:"timeline"`
}

// GetWorkflow returns the sprint record, its phases, and its recorded events
// in one consistent read.
func (o *Orchestrator) GetWorkflow(sprintID string) (Workflow, error) {
	snap, err := o.Status(sprintID)
	if err != nil {
		return Workflow{}, err
	}
	events, err := o.Timeline(sprintID)
	if err != nil && !errors.Is(err, errors.ErrSprintNotFound) {
		return Workflow{}, err
	}
	return Workflow{Sprint: snap.Sprint, Phases: snap.Phases, Timeline: events}, nil
}

// Subscribe returns the sprint's event stream: full history replay followed
// by live events, in order, with no duplicates or gaps across the boundary.
func (o *Orchestrator) Subscribe(sprintID string) (<-chan timeline.Event, func(), error) {
	if _, err := o.get(sprintID); err != nil {
		return nil, nil, err
	}
	ch, cancel := o.bus.Subscribe(sprintID)
	return ch, cancel, nil
}

// Timeline returns the sprint's recorded events. For sprints not held in
// memory it falls back to the on-disk journal, so timelines stay readable
// after a restart.
func (o *Orchestrator) Timeline(sprintID string) ([]timeline.Event, error) {
	if events := o.bus.History(sprintID); len(events) > 0 {
		return events, nil
	}
	events, err := timeline.ReadJournal(o.journalPath(sprintID))
	if err != nil || len(events) == 0 {
		return nil, errors.ErrSprintNotFound
	}
	return events, nil
}

// Artifacts lists the sprint's stored artifacts.
func (o *Orchestrator) Artifacts(sprintID string) ([]artifact.Artifact, error) {
	return o.artifacts.List(context.Background(), sprintID)
}

// Artifact fetches one artifact by name.
func (o *Orchestrator) Artifact(sprintID, name string) (artifact.Artifact, error) {
	return o.artifacts.Get(context.Background(), sprintID, name)
}

func (o *Orchestrator) journalPath(sprintID string) string {
	return filepath.Join(o.cfg.Paths.DataDir, sprintID, "events.jsonl")
}

// drive runs phases from firstPhase onward. It owns the terminal transition:
// whatever happens, the sprint ends completed or failed exactly once.
func (o *Orchestrator) drive(ctx context.Context, st *state, firstPhase int, note string) error {
	sprintID := st.sprint.ID
	log := o.logger.WithSprint(sprintID)

	journal, err := timeline.OpenJournal(o.journalPath(sprintID))
	if err != nil {
		perr := errors.NewPersistenceError("event", err)
		o.fail(st, perr)
		return perr
	}
	o.mu.Lock()
	o.journals[sprintID] = journal
	o.mu.Unlock()
	o.bus.AttachSink(sprintID, journal)

	if _, err := o.bus.Publish(sprintID, timeline.Event{
		Type:     timeline.TypeWorkflowStatus,
		Message:  note,
		Metadata: map[string]string{"status": string(sprint.StatusActive)},
	}); err != nil {
		return o.finish(ctx, st, err)
	}

	if firstPhase == 0 {
		if err := o.checkpointLabel(ctx, st, "sprint:start"); err != nil {
			return o.finish(ctx, st, err)
		}
	}

	run := runner.New(o.bus, o.checkpoints, o.judge, o.providers, o.cfg.Sprint, o.logger)

	input := st.sprint.Input
	if firstPhase > 0 {
		input = st.committed[firstPhase-1].Output
	}

	for i := firstPhase; i < len(st.committed); i++ {
		// Cancellation is honored at phase boundaries: a phase completed
		// under a pending cancel stays completed, later phases stay pending.
		if ctx.Err() != nil {
			return o.finish(ctx, st, errors.ErrCanceled)
		}

		st.mu.Lock()
		phase := st.committed[i].Clone()
		st.live = &phase
		st.liveIdx = i
		st.sprint.CurrentPhase = i
		st.sprint.UpdatedAt = time.Now()
		st.mu.Unlock()

		phase.Input = input
		err := run.RunPhase(ctx, sprintID, &phase, st)

		st.mu.Lock()
		st.committed[i] = phase.Clone()
		st.live = nil
		if phase.CheckpointAfter > st.sprint.Checkpoint {
			st.sprint.Checkpoint = phase.CheckpointAfter
		}
		st.mu.Unlock()

		if err != nil {
			return o.finish(ctx, st, err)
		}
		if err := o.storePhaseArtifacts(ctx, sprintID, &phase); err != nil {
			return o.finish(ctx, st, err)
		}
		input = phase.Output
	}

	log.Info("sprint completed", "phases", len(st.committed))
	return o.finish(ctx, st, nil)
}

// finish applies the terminal transition and tears the live stream down.
// History and the journal stay readable afterwards.
func (o *Orchestrator) finish(ctx context.Context, st *state, cause error) error {
	sprintID := st.sprint.ID

	st.mu.Lock()
	st.sprint.UpdatedAt = time.Now()
	if cause == nil {
		st.sprint.Status = sprint.StatusCompleted
	} else {
		st.sprint.Status = sprint.StatusFailed
		st.sprint.FailureReason = errors.FailureKind(cause)
		if errors.Is(cause, errors.ErrCanceled) {
			st.sprint.FailureReason = sprint.FailureReasonCanceled
		}
	}
	status := st.sprint.Status
	reason := st.sprint.FailureReason
	st.mu.Unlock()

	// Terminal bookkeeping is best-effort: the cause may be the very
	// persistence layer these writes need.
	msg := ""
	meta := map[string]string{"status": string(status)}
	if cause != nil {
		msg = cause.Error()
		meta["reason"] = reason
	}
	o.bus.Publish(sprintID, timeline.Event{ //nolint:errcheck
		Type:     timeline.TypeWorkflowStatus,
		Message:  msg,
		Metadata: meta,
	})
	o.checkpointLabel(context.WithoutCancel(ctx), st, "sprint:end") //nolint:errcheck

	o.bus.Close(sprintID)
	o.mu.Lock()
	if j := o.journals[sprintID]; j != nil {
		j.Close() //nolint:errcheck
		delete(o.journals, sprintID)
	}
	delete(o.cancels, sprintID)
	o.mu.Unlock()

	if cause != nil {
		o.logger.WithSprint(sprintID).Error("sprint failed",
			"reason", errors.FailureKind(cause), "error", cause)
	}
	return cause
}

// fail marks a sprint failed before its stream ever came up.
func (o *Orchestrator) fail(st *state, cause error) {
	st.mu.Lock()
	st.sprint.Status = sprint.StatusFailed
	st.sprint.FailureReason = errors.FailureKind(cause)
	st.sprint.UpdatedAt = time.Now()
	st.mu.Unlock()
}

func (o *Orchestrator) checkpointLabel(ctx context.Context, st *state, label string) error {
	cp, err := o.checkpoints.Append(ctx, st.sprint.ID, sprint.Checkpoint{
		Label:      label,
		State:      st.Snapshot(),
		AfterEvent: o.bus.LastSeq(st.sprint.ID),
	})
	if err != nil {
		return errors.NewPersistenceError("checkpoint", err)
	}
	st.mu.Lock()
	if cp.Seq > st.sprint.Checkpoint {
		st.sprint.Checkpoint = cp.Seq
	}
	st.mu.Unlock()
	return nil
}

// storePhaseArtifacts records the winning output and the judge's decision
// for a completed phase.
func (o *Orchestrator) storePhaseArtifacts(ctx context.Context, sprintID string, phase *sprint.Phase) error {
	if err := o.artifacts.Put(ctx, sprintID, artifact.Artifact{
		Name: phase.Name + "-output",
		Type: "text/plain",
		Data: []byte(phase.Output),
	}); err != nil {
		return errors.NewPersistenceError("artifact", err)
	}

	if phase.Decision == nil {
		return nil
	}
	data, err := json.MarshalIndent(phase.Decision, "", "  ")
	if err != nil {
		return errors.NewPersistenceError("artifact", err)
	}
	if err := o.artifacts.Put(ctx, sprintID, artifact.Artifact{
		Name: phase.Name + "-decision",
		Type: "application/json",
		Data: data,
	}); err != nil {
		return errors.NewPersistenceError("artifact", err)
	}
	return nil
}
