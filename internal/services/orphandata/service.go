// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package orphandata reconciles a directory-backed blob store against the
// records that reference it and removes files nothing references any more.
package orphandata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/blobaudit/internal/dbinterface"
	"github.com/autobrr/blobaudit/internal/models"
)

// HistoryRecorder stores finished audits. *models.AuditRunStore implements it.
type HistoryRecorder interface {
	Insert(ctx context.Context, run *models.AuditRun) error
}

// Deps are the collaborators a Service needs.
type Deps struct {
	Snapshots     dbinterface.SnapshotSource
	State         StateStore
	Collaborators []Collaborator

	// Optional.
	History HistoryRecorder
	Metrics *MetricsCollector
	Remover Remover
}

// TriggerOptions configures a single audit request.
type TriggerOptions struct {
	// Cleanup deletes orphans; false is a dry run.
	Cleanup bool
	// TriggeredBy is recorded in history ("manual", "scheduler", ...).
	TriggeredBy string
	// Observer is called once when the audit that serves this request finishes.
	Observer Observer
}

// Service runs audits, at most one at a time per process, and across
// processes when a lock path is configured.
type Service struct {
	cfg       Config
	snapshots dbinterface.SnapshotSource
	collector *Collector
	scanner   *Scanner
	executor  *Executor
	scheduler *Scheduler
	history   HistoryRecorder
	metrics   *MetricsCollector

	mu      sync.Mutex // protects current and phase
	current *AuditTask
	phase   Phase

	wg    sync.WaitGroup
	now   func() time.Time
	lstat func(string) (os.FileInfo, error)
}

// NewService creates a new orphan data service.
func NewService(cfg Config, deps Deps) (*Service, error) {
	if deps.Snapshots == nil {
		return nil, errors.New("orphandata: snapshot source is required")
	}
	if deps.State == nil {
		return nil, errors.New("orphandata: state store is required")
	}
	// Without any collaborator every file would be an orphan.
	if len(deps.Collaborators) == 0 {
		return nil, errors.New("orphandata: at least one collaborator is required")
	}

	def := DefaultConfig()
	if cfg.SafetyMargin < 0 {
		cfg.SafetyMargin = 0
	}
	if cfg.SchedulerInterval <= 0 {
		cfg.SchedulerInterval = def.SchedulerInterval
	}
	if cfg.CollectConcurrency <= 0 {
		cfg.CollectConcurrency = def.CollectConcurrency
	}

	matcher := NewIgnoreMatcher(cfg.IgnorePatterns, cfg.ProtectedPaths)

	return &Service{
		cfg:       cfg,
		snapshots: deps.Snapshots,
		collector: NewCollector(cfg.CollectConcurrency, deps.Collaborators...),
		scanner:   NewScanner(cfg.StorageRoots, matcher),
		executor:  NewExecutor(cfg.StorageRoots, cfg.SafetyMargin, deps.Remover),
		scheduler: NewScheduler(deps.State, cfg.AuditInterval),
		history:   deps.History,
		metrics:   deps.Metrics,
		phase:     PhaseIdle,
		now:       time.Now,
		lstat:     os.Lstat,
	}, nil
}

// Scheduler returns the scheduler backing this service.
func (s *Service) Scheduler() *Scheduler {
	return s.scheduler
}

// Phase returns the current state of the audit state machine.
func (s *Service) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Current returns the in-flight audit, or nil.
func (s *Service) Current() *AuditTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// AuditAndCleanup starts an audit and returns immediately.
func (s *Service) AuditAndCleanup(shouldCleanup bool) {
	s.Trigger(TriggerOptions{Cleanup: shouldCleanup})
}

// AuditAndCleanupWithCompletion starts an audit and calls completion once it
// finishes. completion may be nil.
func (s *Service) AuditAndCleanupWithCompletion(shouldCleanup bool, completion Observer) {
	s.Trigger(TriggerOptions{Cleanup: shouldCleanup, Observer: completion})
}

// Trigger starts an audit in the background. If one is already running, the
// request is coalesced into it: the observer is attached to the running audit
// and its task is returned, whatever mode it runs in.
func (s *Service) Trigger(opts TriggerOptions) *AuditTask {
	task, _ := s.trigger(opts, true)
	return task
}

// TryTrigger is Trigger without coalescing: it returns ErrAuditInProgress
// while another audit is running.
func (s *Service) TryTrigger(opts TriggerOptions) (*AuditTask, error) {
	return s.trigger(opts, false)
}

func (s *Service) trigger(opts TriggerOptions, coalesce bool) (*AuditTask, error) {
	s.mu.Lock()
	if cur := s.current; cur != nil {
		if !coalesce {
			s.mu.Unlock()
			return nil, ErrAuditInProgress
		}
		cur.attach(opts.Observer)
		s.mu.Unlock()
		log.Debug().Str("auditId", cur.ID()).Msg("orphandata: trigger coalesced into running audit")
		return cur, nil
	}

	task := newAuditTask(uuid.NewString(), opts.Cleanup)
	task.attach(opts.Observer)
	s.current = task
	s.wg.Add(1)
	s.mu.Unlock()

	triggeredBy := opts.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = "manual"
	}

	// Audits are never cancelled once started.
	go func() {
		defer s.wg.Done()
		s.run(context.Background(), task, triggeredBy)
	}()

	return task, nil
}

// RunIfDue starts a cleanup audit when the scheduler says one is due and
// returns its task, or nil when no audit is due.
func (s *Service) RunIfDue(ctx context.Context, force bool) (*AuditTask, error) {
	due, err := s.scheduler.ShouldRunFullAudit(ctx, s.cfg.AppVersion, force)
	if err != nil {
		return nil, err
	}
	if !due {
		return nil, nil
	}

	triggeredBy := "scheduler"
	if force {
		triggeredBy = "forced"
	}
	return s.Trigger(TriggerOptions{Cleanup: true, TriggeredBy: triggeredBy}), nil
}

// Start runs the scheduler check once and then every SchedulerInterval until ctx ends.
func (s *Service) Start(ctx context.Context) {
	if s == nil {
		return
	}
	go s.loop(ctx)
}

func (s *Service) loop(ctx context.Context) {
	s.checkScheduledAudit(ctx)

	ticker := time.NewTicker(s.cfg.SchedulerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkScheduledAudit(ctx)
		}
	}
}

func (s *Service) checkScheduledAudit(ctx context.Context) {
	task, err := s.RunIfDue(ctx, false)
	if err != nil {
		log.Error().Err(err).Msg("orphandata: failed to evaluate audit schedule")
		return
	}
	if task == nil {
		log.Debug().Msg("orphandata: audit not due")
		return
	}
	log.Info().Str("auditId", task.ID()).Msg("orphandata: scheduled audit started")
}

// Wait blocks until every started audit has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
	log.Debug().Str("phase", string(p)).Msg("orphandata: phase")
}

func (s *Service) run(ctx context.Context, task *AuditTask, triggeredBy string) {
	res := Result{
		AuditID:   task.ID(),
		Cleanup:   task.Cleanup(),
		StartedAt: s.now(),
	}

	defer func() {
		res.CompletedAt = s.now()
		s.finish(ctx, task, res, triggeredBy)
	}()

	unlock, err := s.acquireLock()
	if err != nil {
		res.Outcome = OutcomeAborted
		res.Err = err
		return
	}
	defer unlock()

	s.setPhase(PhaseCollectingReferences)
	snap, err := s.snapshots.BeginSnapshot(ctx)
	if err != nil {
		res.Outcome = OutcomeAborted
		res.Err = fmt.Errorf("%w: %w", ErrReferenceCollectionFailed, err)
		return
	}
	// Held until the audit ends so collaborators' paths stay valid throughout.
	defer func() {
		if err := snap.Rollback(); err != nil {
			log.Debug().Err(err).Msg("orphandata: release snapshot")
		}
	}()

	live, err := s.collector.Collect(ctx, snap)
	if err != nil {
		res.Outcome = OutcomeAborted
		res.Err = err
		return
	}

	s.setPhase(PhaseScanning)
	files, err := s.scanner.ScanAll(ctx)
	if err != nil {
		res.Outcome = OutcomeAborted
		res.Err = err
		return
	}

	s.setPhase(PhaseReconciling)
	report := Reconcile(files, live, res.StartedAt)
	report.DropPresentDangling(s.lstat)
	report.ID = task.ID()
	res.Report = report

	for _, p := range report.Dangling {
		log.Debug().Str("path", p.String()).Msg("orphandata: dangling reference")
	}

	if task.Cleanup() {
		s.setPhase(PhaseCleaning)
	} else {
		s.setPhase(PhaseDryRunDone)
	}
	res.CleanupRun = s.executor.Cleanup(report, task.Cleanup())

	res.Outcome = OutcomeSucceeded
	if res.CleanupRun.FailureCount() > 0 {
		res.Outcome = OutcomePartialFailure
		res.Err = errors.Join(failureErrors(res.CleanupRun.Failures)...)
	}

	if task.Cleanup() {
		if err := s.scheduler.MarkCleaningComplete(ctx, s.cfg.AppVersion, s.now()); err != nil {
			log.Error().Err(err).Msg("orphandata: failed to record cleaning state")
		} else {
			res.StateAdvanced = true
		}
	}
}

func (s *Service) acquireLock() (func(), error) {
	if s.cfg.LockPath == "" {
		return func() {}, nil
	}

	lock := flock.New(s.cfg.LockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire audit lock: %w", err)
	}
	if !locked {
		return nil, ErrAuditLocked
	}

	return func() {
		if err := lock.Unlock(); err != nil {
			log.Warn().Err(err).Msg("orphandata: failed to release audit lock")
		}
	}, nil
}

func (s *Service) finish(ctx context.Context, task *AuditTask, res Result, triggeredBy string) {
	s.logResult(res)
	s.recordHistory(ctx, res, triggeredBy)
	s.metrics.Observe(res)

	s.setPhase(PhaseCompleted)

	s.mu.Lock()
	s.current = nil
	s.phase = PhaseIdle
	s.mu.Unlock()

	task.complete(res)
}

func (s *Service) logResult(res Result) {
	if res.Outcome == OutcomeAborted {
		log.Error().Err(res.Err).Str("auditId", res.AuditID).Bool("cleanup", res.Cleanup).
			Msg("orphandata: audit aborted")
		return
	}

	ev := log.Info().
		Str("auditId", res.AuditID).
		Bool("cleanup", res.Cleanup).
		Str("outcome", string(res.Outcome)).
		Int("scanned", res.Report.ScannedCount).
		Int("references", res.Report.ReferenceCount).
		Int("orphans", len(res.Report.Orphaned)).
		Int("dangling", len(res.Report.Dangling)).
		Int("skippedRace", len(res.CleanupRun.SkippedRace)).
		Dur("duration", res.CompletedAt.Sub(res.StartedAt))
	if res.Cleanup {
		ev = ev.Int("deleted", res.CleanupRun.DeletedCount).
			Int64("bytesReclaimed", res.CleanupRun.DeletedBytes).
			Int("failed", res.CleanupRun.FailureCount())
	} else {
		ev = ev.Int("wouldDelete", res.CleanupRun.DeletedCount)
	}
	ev.Msg("orphandata: audit completed")
}

func (s *Service) recordHistory(ctx context.Context, res Result, triggeredBy string) {
	if s.history == nil {
		return
	}

	run := &models.AuditRun{
		AuditID:     res.AuditID,
		Mode:        models.AuditModeDryRun,
		Outcome:     string(res.Outcome),
		TriggeredBy: triggeredBy,
		StartedAt:   res.StartedAt,
		CompletedAt: res.CompletedAt,
	}
	if res.Cleanup {
		run.Mode = models.AuditModeCleanup
	}
	if res.Err != nil {
		run.ErrorMessage = res.Err.Error()
	}
	if r := res.Report; r != nil {
		run.FilesScanned = r.ScannedCount
		run.ReferencesCollected = r.ReferenceCount
		run.OrphansFound = len(r.Orphaned)
		run.OrphanBytes = r.OrphanBytes
		run.DanglingFound = len(r.Dangling)
	}
	if c := res.CleanupRun; c != nil && c.Committed {
		run.FilesDeleted = c.DeletedCount
		run.BytesReclaimed = c.DeletedBytes
		run.FailedDeletes = len(c.Failures)
	}
	if c := res.CleanupRun; c != nil {
		run.SkippedRace = len(c.SkippedRace)
	}

	if err := s.history.Insert(ctx, run); err != nil {
		log.Error().Err(err).Str("auditId", res.AuditID).Msg("orphandata: failed to record audit history")
	}
}

func failureErrors(failures []DeletionFailure) []error {
	errs := make([]error, len(failures))
	for i, f := range failures {
		errs[i] = f
	}
	return errs
}
