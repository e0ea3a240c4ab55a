package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okapi-sh/sprintd/internal/checkpoint"
	"github.com/okapi-sh/sprintd/internal/config"
	"github.com/okapi-sh/sprintd/internal/errors"
	"github.com/okapi-sh/sprintd/internal/sprint"
	"github.com/okapi-sh/sprintd/internal/timeline"
)

func testConfig(t *testing.T, providers ...config.ProviderConfig) *config.Config {
	t.Helper()
	if len(providers) == 0 {
		providers = []config.ProviderConfig{
			{Name: "alpha", Type: "static", Output: "alpha produced a detailed answer with plenty of substance"},
			{Name: "beta", Type: "static", Output: "beta answer"},
		}
	}
	return &config.Config{
		Sprint:    config.SprintConfig{PhaseTimeoutSeconds: 5, MaxAttempts: 2},
		Providers: providers,
		Judge:     config.JudgeConfig{Type: "heuristic"},
		Paths:     config.PathsConfig{DataDir: t.TempDir()},
	}
}

func newOrchestrator(t *testing.T, cfg *config.Config, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(cfg, nil, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return o
}

func labels(cps []sprint.Checkpoint) []string {
	out := make([]string, len(cps))
	for i, cp := range cps {
		out[i] = cp.Label
	}
	return out
}

func TestRun_CompletesAllPhases(t *testing.T) {
	cfg := testConfig(t)
	o := newOrchestrator(t, cfg)

	sp, err := o.Create([]string{"design", "build", "verify"}, "initial task")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sp.Status != sprint.StatusPlanned {
		t.Fatalf("new sprint should be planned, got %s", sp.Status)
	}

	if err := o.Run(context.Background(), sp.ID); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	snap, err := o.Status(sp.ID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if snap.Sprint.Status != sprint.StatusCompleted {
		t.Fatalf("expected completed sprint, got %s (%s)", snap.Sprint.Status, snap.Sprint.FailureReason)
	}
	for _, ph := range snap.Phases {
		if ph.Status != sprint.PhaseStatusCompleted {
			t.Errorf("phase %s not completed: %s", ph.Name, ph.Status)
		}
		if _, ok := ph.Winner(); !ok {
			t.Errorf("phase %s has no winner", ph.Name)
		}
	}

	// Winning output chains into the next phase's input.
	if snap.Phases[0].Input != "initial task" {
		t.Errorf("first phase input should be the sprint input, got %q", snap.Phases[0].Input)
	}
	if snap.Phases[1].Input != snap.Phases[0].Output {
		t.Error("second phase input should be the first phase's winning output")
	}
	if snap.Phases[2].Input != snap.Phases[1].Output {
		t.Error("third phase input should be the second phase's winning output")
	}
}

func TestRun_TimelineAndCheckpoints(t *testing.T) {
	cfg := testConfig(t)
	o := newOrchestrator(t, cfg)

	sp, _ := o.Create([]string{"design", "build"}, "task")
	if err := o.Run(context.Background(), sp.ID); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	events, err := o.Timeline(sp.ID)
	if err != nil {
		t.Fatalf("Timeline failed: %v", err)
	}
	if events[0].Type != timeline.TypeWorkflowStatus || events[0].Metadata["status"] != "active" {
		t.Errorf("first event should announce the active sprint, got %+v", events[0])
	}
	last := events[len(events)-1]
	if last.Type != timeline.TypeWorkflowStatus || last.Metadata["status"] != "completed" {
		t.Errorf("last event should announce completion, got %+v", last)
	}
	for i, e := range events {
		if e.Seq != uint64(i+1) {
			t.Fatalf("seq gap at %d: got %d", i, e.Seq)
		}
		if e.SprintID != sp.ID {
			t.Fatalf("event carries wrong sprint id: %s", e.SprintID)
		}
	}

	store, err := checkpoint.NewFileStore(cfg.Paths.DataDir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	cps, err := store.List(context.Background(), sp.ID)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{
		"sprint:start",
		"phase:design:start", "phase:design:end",
		"phase:build:start", "phase:build:end",
		"sprint:end",
	}
	got := labels(cps)
	if len(got) != len(want) {
		t.Fatalf("expected checkpoints %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected checkpoints %v, got %v", want, got)
		}
	}
	for i := 1; i < len(cps); i++ {
		if cps[i].AfterEvent < cps[i-1].AfterEvent {
			t.Error("checkpoint event watermarks must not regress")
		}
	}

	// The sprint:end checkpoint carries the terminal snapshot.
	final := cps[len(cps)-1].State
	if final.Sprint.Status != sprint.StatusCompleted {
		t.Errorf("terminal checkpoint should record completion, got %s", final.Sprint.Status)
	}

	// The journal on disk matches the in-memory history.
	journal, err := timeline.ReadJournal(filepath.Join(cfg.Paths.DataDir, sp.ID, "events.jsonl"))
	if err != nil {
		t.Fatalf("ReadJournal failed: %v", err)
	}
	if len(journal) != len(events) {
		t.Errorf("journal has %d events, history has %d", len(journal), len(events))
	}
}

func TestGetWorkflow(t *testing.T) {
	o := newOrchestrator(t, testConfig(t))
	sp, _ := o.Create([]string{"design"}, "task")

	// Before the run: state exists, timeline is empty.
	wf, err := o.GetWorkflow(sp.ID)
	if err != nil {
		t.Fatalf("GetWorkflow failed: %v", err)
	}
	if wf.Sprint.Status != sprint.StatusPlanned || len(wf.Timeline) != 0 {
		t.Errorf("planned workflow should have no events, got %d (%s)", len(wf.Timeline), wf.Sprint.Status)
	}

	if err := o.Run(context.Background(), sp.ID); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	wf, err = o.GetWorkflow(sp.ID)
	if err != nil {
		t.Fatalf("GetWorkflow failed: %v", err)
	}
	if wf.Sprint.Status != sprint.StatusCompleted {
		t.Errorf("expected completed sprint, got %s", wf.Sprint.Status)
	}
	if len(wf.Phases) != 1 || wf.Phases[0].Status != sprint.PhaseStatusCompleted {
		t.Error("workflow should carry the completed phase")
	}
	history, _ := o.Timeline(sp.ID)
	if len(wf.Timeline) != len(history) {
		t.Errorf("workflow timeline has %d events, history has %d", len(wf.Timeline), len(history))
	}

	if _, err := o.GetWorkflow("ghost"); !errors.Is(err, errors.ErrSprintNotFound) {
		t.Errorf("expected ErrSprintNotFound, got %v", err)
	}
}

func TestRun_WritesArtifacts(t *testing.T) {
	cfg := testConfig(t)
	o := newOrchestrator(t, cfg)

	sp, _ := o.Create([]string{"design"}, "task")
	if err := o.Run(context.Background(), sp.ID); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	arts, err := o.Artifacts(sp.ID)
	if err != nil {
		t.Fatalf("Artifacts failed: %v", err)
	}
	if len(arts) != 2 {
		t.Fatalf("expected output and decision artifacts, got %d", len(arts))
	}

	out, err := o.Artifact(sp.ID, "design-output")
	if err != nil {
		t.Fatalf("Artifact failed: %v", err)
	}
	snap, _ := o.Status(sp.ID)
	if string(out.Data) != snap.Phases[0].Output {
		t.Error("output artifact should hold the winning output")
	}
	if _, err := o.Artifact(sp.ID, "design-decision"); err != nil {
		t.Errorf("decision artifact missing: %v", err)
	}
}

func TestRun_Twice(t *testing.T) {
	o := newOrchestrator(t, testConfig(t))
	sp, _ := o.Create([]string{"design"}, "task")

	if err := o.Run(context.Background(), sp.ID); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if err := o.Run(context.Background(), sp.ID); !errors.Is(err, errors.ErrSprintTerminal) {
		t.Errorf("rerunning a finished sprint should fail with ErrSprintTerminal, got %v", err)
	}
}

func TestRun_UnknownSprint(t *testing.T) {
	o := newOrchestrator(t, testConfig(t))
	if err := o.Run(context.Background(), "nope"); !errors.Is(err, errors.ErrSprintNotFound) {
		t.Errorf("expected ErrSprintNotFound, got %v", err)
	}
}

func TestSubscribe_ReplayThenLive(t *testing.T) {
	o := newOrchestrator(t, testConfig(t))
	sp, _ := o.Create([]string{"design"}, "task")

	ch, stop, err := o.Subscribe(sp.ID)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer stop()

	if err := o.Run(context.Background(), sp.ID); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var got []timeline.Event
	for e := range ch {
		got = append(got, e)
	}
	history, _ := o.Timeline(sp.ID)
	if len(got) != len(history) {
		t.Fatalf("subscriber saw %d events, history has %d", len(got), len(history))
	}
	for i := range got {
		if got[i].Seq != history[i].Seq {
			t.Fatalf("subscriber order diverges at %d", i)
		}
	}
}

func TestSubscribe_AfterTerminalReplaysHistory(t *testing.T) {
	o := newOrchestrator(t, testConfig(t))
	sp, _ := o.Create([]string{"design"}, "task")
	if err := o.Run(context.Background(), sp.ID); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	ch, stop, err := o.Subscribe(sp.ID)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer stop()

	var n int
	for range ch {
		n++
	}
	history, _ := o.Timeline(sp.ID)
	if n != len(history) {
		t.Errorf("late subscriber saw %d events, want full history of %d", n, len(history))
	}
}

// Cancel mid-phase: the sprint fails with reason canceled, in-flight work is
// recorded, and the stream terminates cleanly. The in-flight providers are
// not killed; they run out their phase deadline.
func TestCancel_MidPhase(t *testing.T) {
	cfg := testConfig(t,
		config.ProviderConfig{Name: "slow", Type: "command", Command: "sleep", Args: []string{"30"}},
	)
	cfg.Sprint.PhaseTimeoutSeconds = 1
	o := newOrchestrator(t, cfg)
	sp, _ := o.Create([]string{"design", "build"}, "task")

	ch, stop, err := o.Subscribe(sp.ID)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer stop()

	done, err := o.Start(context.Background(), sp.ID)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Wait until a candidate is actually in flight before canceling.
	deadline := time.After(5 * time.Second)
	for started := false; !started; {
		select {
		case e := <-ch:
			if e.Type == timeline.TypeCandidateStarted {
				started = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for candidate.started")
		}
	}
	if err := o.Cancel(sp.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, errors.ErrCanceled) {
			t.Errorf("expected ErrCanceled from run, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop after cancel")
	}

	snap, _ := o.Status(sp.ID)
	if snap.Sprint.Status != sprint.StatusFailed {
		t.Errorf("canceled sprint should be failed, got %s", snap.Sprint.Status)
	}
	if snap.Sprint.FailureReason != sprint.FailureReasonCanceled {
		t.Errorf("expected canceled failure reason, got %q", snap.Sprint.FailureReason)
	}
	if snap.Phases[1].Status != sprint.PhaseStatusPending {
		t.Errorf("phase after the canceled one should remain pending, got %s", snap.Phases[1].Status)
	}

	events, _ := o.Timeline(sp.ID)
	last := events[len(events)-1]
	if last.Type != timeline.TypeWorkflowStatus || last.Metadata["status"] != "failed" {
		t.Errorf("terminal event should announce failure, got %+v", last)
	}
	if last.Metadata["reason"] != sprint.FailureReasonCanceled {
		t.Errorf("terminal event metadata should carry the canceled reason, got %q", last.Metadata["reason"])
	}
	if rebuilt := Rebuild(events); rebuilt.Sprint.FailureReason != sprint.FailureReasonCanceled {
		t.Errorf("replay should recover the canceled reason, got %q", rebuilt.Sprint.FailureReason)
	}

	// Cancel is idempotent on terminal sprints.
	if err := o.Cancel(sp.ID); err != nil {
		t.Errorf("second cancel should be a no-op, got %v", err)
	}
}

// Cancel while a phase's attempt is in flight: the attempt finishes its
// fan-in and judgement, the phase completes with a winner, and the sprint
// halts before the next phase starts.
func TestCancel_InFlightPhaseFinishes(t *testing.T) {
	cfg := testConfig(t,
		config.ProviderConfig{Name: "slow", Type: "command", Command: "sh",
			Args: []string{"-c", "sleep 0.3 && echo a considered answer worth selecting"}},
	)
	o := newOrchestrator(t, cfg)
	sp, _ := o.Create([]string{"design", "build"}, "task")

	ch, stop, err := o.Subscribe(sp.ID)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer stop()

	done, err := o.Start(context.Background(), sp.ID)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for started := false; !started; {
		select {
		case e := <-ch:
			if e.Type == timeline.TypeCandidateStarted {
				started = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for candidate.started")
		}
	}
	if err := o.Cancel(sp.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, errors.ErrCanceled) {
			t.Errorf("expected ErrCanceled from run, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop after cancel")
	}

	snap, _ := o.Status(sp.ID)
	if snap.Phases[0].Status != sprint.PhaseStatusCompleted {
		t.Errorf("in-flight phase should finish despite cancel, got %s", snap.Phases[0].Status)
	}
	if _, ok := snap.Phases[0].Winner(); !ok {
		t.Error("finished phase should carry its decision")
	}
	if snap.Phases[1].Status != sprint.PhaseStatusPending {
		t.Errorf("phase after the cancel boundary should stay pending, got %s", snap.Phases[1].Status)
	}
	if snap.Sprint.Status != sprint.StatusFailed || snap.Sprint.FailureReason != sprint.FailureReasonCanceled {
		t.Errorf("sprint should end failed with the canceled reason, got %s/%s",
			snap.Sprint.Status, snap.Sprint.FailureReason)
	}

	events, _ := o.Timeline(sp.ID)
	if n := len(events); n == 0 || events[n-1].Metadata["status"] != "failed" {
		t.Error("terminal event should announce the failed status")
	}
	completed := 0
	for _, e := range events {
		if e.Type == timeline.TypePhaseCompleted {
			completed++
		}
	}
	if completed != 1 {
		t.Errorf("expected exactly the in-flight phase to complete, got %d", completed)
	}
}

func TestCancel_PlannedSprint(t *testing.T) {
	o := newOrchestrator(t, testConfig(t))
	sp, _ := o.Create([]string{"design"}, "task")

	if err := o.Cancel(sp.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	snap, _ := o.Status(sp.ID)
	if snap.Sprint.Status != sprint.StatusFailed || snap.Sprint.FailureReason != sprint.FailureReasonCanceled {
		t.Errorf("canceled planned sprint should be failed/canceled, got %s/%s",
			snap.Sprint.Status, snap.Sprint.FailureReason)
	}
	if err := o.Run(context.Background(), sp.ID); !errors.Is(err, errors.ErrSprintTerminal) {
		t.Errorf("canceled sprint must not run, got %v", err)
	}
}

// failAfterStore lets a fixed number of checkpoint writes through, then
// rejects everything.
type failAfterStore struct {
	checkpoint.Store
	allowed int
	seen    int
}

func (f *failAfterStore) Append(ctx context.Context, sprintID string, cp sprint.Checkpoint) (sprint.Checkpoint, error) {
	f.seen++
	if f.seen > f.allowed {
		return sprint.Checkpoint{}, errors.New("disk full")
	}
	return f.Store.Append(ctx, sprintID, cp)
}

// Checkpoint write failure mid-sprint: the sprint fails with a persistence
// reason, the phase is not retried, and already-written state survives.
func TestRun_CheckpointWriteFailure(t *testing.T) {
	cfg := testConfig(t)
	inner, err := checkpoint.NewFileStore(cfg.Paths.DataDir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	// Allow sprint:start, phase:design:start, phase:design:end; fail on the
	// second phase's start checkpoint.
	store := &failAfterStore{Store: inner, allowed: 3}
	o := newOrchestrator(t, cfg, WithCheckpointStore(store))

	sp, _ := o.Create([]string{"design", "build"}, "task")
	runErr := o.Run(context.Background(), sp.ID)
	if runErr == nil {
		t.Fatal("expected run failure")
	}
	var pe *errors.PersistenceError
	if !errors.As(runErr, &pe) {
		t.Fatalf("expected PersistenceError, got %T: %v", runErr, runErr)
	}

	snap, _ := o.Status(sp.ID)
	if snap.Sprint.Status != sprint.StatusFailed {
		t.Errorf("expected failed sprint, got %s", snap.Sprint.Status)
	}
	if snap.Sprint.FailureReason != "persistence" {
		t.Errorf("expected persistence failure reason, got %q", snap.Sprint.FailureReason)
	}
	if snap.Phases[0].Status != sprint.PhaseStatusCompleted {
		t.Errorf("first phase completed before the failure and should stay completed, got %s", snap.Phases[0].Status)
	}
	if snap.Phases[1].Attempt != 1 {
		t.Errorf("persistence failures must not be retried, got %d attempts", snap.Phases[1].Attempt)
	}

	// Previously written checkpoints survive untouched.
	cps, err := inner.List(context.Background(), sp.ID)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(cps) != 3 {
		t.Errorf("expected the 3 successful checkpoints to survive, got %d", len(cps))
	}
}

// Rebuilding state from the event stream alone matches the live record.
func TestRebuild_MatchesStatus(t *testing.T) {
	o := newOrchestrator(t, testConfig(t))
	sp, _ := o.Create([]string{"design", "build"}, "task")
	if err := o.Run(context.Background(), sp.ID); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	events, _ := o.Timeline(sp.ID)
	rebuilt := Rebuild(events)
	snap, _ := o.Status(sp.ID)

	if rebuilt.Sprint.Status != snap.Sprint.Status {
		t.Errorf("rebuilt status %s, live %s", rebuilt.Sprint.Status, snap.Sprint.Status)
	}
	if len(rebuilt.Phases) != len(snap.Phases) {
		t.Fatalf("rebuilt %d phases, live %d", len(rebuilt.Phases), len(snap.Phases))
	}
	for i, ph := range rebuilt.Phases {
		live := snap.Phases[i]
		if ph.Name != live.Name || ph.Status != live.Status {
			t.Errorf("phase %d mismatch: %s/%s vs %s/%s", i, ph.Name, ph.Status, live.Name, live.Status)
		}
		if ph.Output != live.Output {
			t.Errorf("phase %s rebuilt output differs", ph.Name)
		}
		rw, rok := ph.Winner()
		lw, lok := live.Winner()
		if rok != lok || rw.ID != lw.ID {
			t.Errorf("phase %s rebuilt winner differs", ph.Name)
		}
	}
}

// Resume after a simulated crash: completed phases are kept, the in-flight
// phase re-runs, and event sequences continue without gaps.
func TestResume_ContinuesFromCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	dataDir := cfg.Paths.DataDir

	// First process: run to completion of phase one, then "crash" by
	// building the on-disk state a dying process would leave behind.
	sp, err := sprint.New([]string{"design", "build"}, "task")
	if err != nil {
		t.Fatalf("sprint.New failed: %v", err)
	}
	sp.Status = sprint.StatusActive
	sp.CurrentPhase = 1

	designDone := sprint.NewPhase("design", 0)
	designDone.Status = sprint.PhaseStatusCompleted
	designDone.Output = "design winner output"
	buildInFlight := sprint.NewPhase("build", 1)
	buildInFlight.Status = sprint.PhaseStatusInProgress
	buildInFlight.Attempt = 1

	store, err := checkpoint.NewFileStore(dataDir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if _, err := store.Append(context.Background(), sp.ID, sprint.Checkpoint{
		Label: "phase:build:start",
		State: sprint.Snapshot{
			Sprint: *sp,
			Phases: []sprint.Phase{designDone.Clone(), buildInFlight.Clone()},
		},
		AfterEvent: 9,
	}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	journal, err := timeline.OpenJournal(filepath.Join(dataDir, sp.ID, "events.jsonl"))
	if err != nil {
		t.Fatalf("OpenJournal failed: %v", err)
	}
	if err := journal.Write(timeline.Event{Seq: 9, SprintID: sp.ID, Type: timeline.TypePhaseStarted, Phase: "build", Attempt: 1}); err != nil {
		t.Fatalf("journal write failed: %v", err)
	}
	journal.Close()

	// Second process.
	o := newOrchestrator(t, cfg)
	if err := o.Resume(context.Background(), sp.ID); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	snap, err := o.Status(sp.ID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if snap.Sprint.Status != sprint.StatusCompleted {
		t.Fatalf("resumed sprint should complete, got %s (%s)", snap.Sprint.Status, snap.Sprint.FailureReason)
	}
	if snap.Phases[0].Output != "design winner output" {
		t.Error("completed phase must survive resume untouched")
	}
	if snap.Phases[0].Attempt != 0 {
		t.Error("completed phase must not be re-run")
	}
	if snap.Phases[1].Status != sprint.PhaseStatusCompleted {
		t.Errorf("in-flight phase should re-run to completion, got %s", snap.Phases[1].Status)
	}
	if snap.Phases[1].Input != "design winner output" {
		t.Error("re-run phase should chain from the previous phase's output")
	}

	// New events continue after the journaled sequence, gap-free.
	got, err := o.Timeline(sp.ID)
	if err != nil {
		t.Fatalf("Timeline failed: %v", err)
	}
	if got[0].Seq != 10 {
		t.Errorf("resumed events should start at seq 10, got %d", got[0].Seq)
	}
	if got[0].Type != timeline.TypeWorkflowStatus || got[0].Message != "resumed" {
		t.Errorf("first resumed event should announce the resume, got %+v", got[0])
	}
	for i := 1; i < len(got); i++ {
		if got[i].Seq != got[i-1].Seq+1 {
			t.Fatalf("seq gap after resume at %d", got[i].Seq)
		}
	}
}

func TestResume_TerminalSprint(t *testing.T) {
	cfg := testConfig(t)
	o := newOrchestrator(t, cfg)
	sp, _ := o.Create([]string{"design"}, "task")
	if err := o.Run(context.Background(), sp.ID); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Fresh orchestrator over the same data dir.
	o2 := newOrchestrator(t, cfg)
	if err := o2.Resume(context.Background(), sp.ID); !errors.Is(err, errors.ErrSprintTerminal) {
		t.Errorf("resuming a terminal sprint should fail, got %v", err)
	}
}

func TestResume_UnknownSprint(t *testing.T) {
	o := newOrchestrator(t, testConfig(t))
	if err := o.Resume(context.Background(), "ghost"); !errors.Is(err, errors.ErrSprintNotFound) {
		t.Errorf("expected ErrSprintNotFound, got %v", err)
	}
}

func TestTimeline_FromJournalAfterRestart(t *testing.T) {
	cfg := testConfig(t)
	o := newOrchestrator(t, cfg)
	sp, _ := o.Create([]string{"design"}, "task")
	if err := o.Run(context.Background(), sp.ID); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want, _ := o.Timeline(sp.ID)

	// A fresh orchestrator has no in-memory history for the sprint.
	o2 := newOrchestrator(t, cfg)
	got, err := o2.Timeline(sp.ID)
	if err != nil {
		t.Fatalf("Timeline from journal failed: %v", err)
	}
	if len(got) != len(want) {
		t.Errorf("journal timeline has %d events, want %d", len(got), len(want))
	}

	if _, err := os.Stat(filepath.Join(cfg.Paths.DataDir, sp.ID, "events.jsonl")); err != nil {
		t.Errorf("journal file missing: %v", err)
	}
}
