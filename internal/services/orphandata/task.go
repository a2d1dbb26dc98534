// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orphandata

import (
	"context"
	"sync"
	"time"
)

// Phase is the state of the audit state machine.
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseCollectingReferences Phase = "collecting_references"
	PhaseScanning             Phase = "scanning"
	PhaseReconciling          Phase = "reconciling"
	PhaseDryRunDone           Phase = "dry_run_done"
	PhaseCleaning             Phase = "cleaning"
	PhaseCompleted            Phase = "completed"
)

// Outcome distinguishes how an audit ended.
type Outcome string

const (
	// OutcomeSucceeded: ran to the end with no deletion failures.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomePartialFailure: ran to the end but some orphans could not be removed.
	OutcomePartialFailure Outcome = "partial_failure"
	// OutcomeAborted: collection, scan or locking failed before any deletion.
	OutcomeAborted Outcome = "aborted"
)

// Result is delivered once per audit to every observer.
type Result struct {
	AuditID     string         `json:"auditId"`
	Cleanup     bool           `json:"cleanup"`
	Outcome     Outcome        `json:"outcome"`
	Report      *AuditReport   `json:"report,omitempty"`
	CleanupRun  *CleanupResult `json:"cleanupResult,omitempty"`
	Err         error          `json:"-"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt time.Time      `json:"completedAt"`
	// StateAdvanced is true when the CleaningState was written for this audit.
	StateAdvanced bool `json:"stateAdvanced"`
}

// Observer receives the result of an audit.
type Observer func(Result)

// AuditTask is the handle for one in-flight audit.
type AuditTask struct {
	id      string
	cleanup bool

	done chan struct{}

	mu        sync.Mutex
	observers []Observer
	result    Result
	completed bool
}

func newAuditTask(id string, cleanup bool) *AuditTask {
	return &AuditTask{
		id:      id,
		cleanup: cleanup,
		done:    make(chan struct{}),
	}
}

// ID returns the audit id, also used as AuditReport.ID.
func (t *AuditTask) ID() string {
	return t.id
}

// Cleanup reports whether the audit deletes orphans.
func (t *AuditTask) Cleanup() bool {
	return t.cleanup
}

// Done is closed once the result is available.
func (t *AuditTask) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the audit completes or ctx ends. The audit itself keeps
// running when ctx ends.
func (t *AuditTask) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.Result(), nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Result returns the result, or the zero Result before completion.
func (t *AuditTask) Result() Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// attach adds an observer. It returns false once the task has completed.
func (t *AuditTask) attach(obs Observer) bool {
	if obs == nil {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.completed {
		return false
	}
	t.observers = append(t.observers, obs)
	return true
}

// complete stores the result, releases waiters and calls each observer once.
func (t *AuditTask) complete(res Result) {
	t.mu.Lock()
	if t.completed {
		t.mu.Unlock()
		return
	}
	t.completed = true
	t.result = res
	observers := t.observers
	t.observers = nil
	t.mu.Unlock()

	close(t.done)

	for _, obs := range observers {
		obs(res)
	}
}
