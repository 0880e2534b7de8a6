package sessionkit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/workhive/sessionkit/store"
)

// progressTracker drives the linear onboarding state machine and persists it
// under one store key. Transitions only move forward: completing a step adds
// it to the completed set and advances the cursor; nothing is ever removed
// until Skip deletes the whole record.
type progressTracker struct {
	mu    sync.Mutex
	store store.Store
	key   string
	log   zerolog.Logger

	now func() time.Time
}

func newProgressTracker(st store.Store, key string, log zerolog.Logger) *progressTracker {
	return &progressTracker{
		store: st,
		key:   key,
		log:   log,
		now:   time.Now,
	}
}

func freshProgress(now time.Time) VerificationProgress {
	return VerificationProgress{
		CurrentStep:    StepTerms,
		CompletedSteps: []StepID{},
		Data:           map[string]any{},
		StartedAt:      now,
	}
}

// Start creates and persists a fresh run at the Terms step, replacing any
// existing record.
func (t *progressTracker) Start(ctx context.Context) (VerificationProgress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := freshProgress(t.now().UTC())
	if err := t.persist(ctx, p); err != nil {
		return VerificationProgress{}, err
	}
	return p, nil
}

// Current returns the persisted progress, or a fresh default when none exists.
// It never returns nil-equivalent state. A corrupt record is dropped and
// treated as first-run.
func (t *progressTracker) Current(ctx context.Context) VerificationProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx)
}

// CompleteStep merges data into the accumulated payloads, records the step as
// completed, and advances the cursor to the step's successor (Complete when
// the step was the last). Completion is monotonic and idempotent per step.
func (t *progressTracker) CompleteStep(ctx context.Context, step StepID, data map[string]any) (VerificationProgress, error) {
	if !step.Valid() || step == StepComplete {
		return VerificationProgress{}, ErrStepInvalid
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.load(ctx)
	for k, v := range data {
		p.Data[k] = v
	}
	if !p.Completed(step) {
		p.CompletedSteps = append(p.CompletedSteps, step)
	}
	if next := step.Next(); next > p.CurrentStep {
		p.CurrentStep = next
	}

	if err := t.persist(ctx, p); err != nil {
		return VerificationProgress{}, err
	}
	return p, nil
}

// Skip deletes the persisted record. It does not mutate the user.
func (t *progressTracker) Skip(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Remove(ctx, t.key)
}

// Active reports whether a persisted, unfinished run exists.
func (t *progressTracker) Active(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	raw, ok, err := t.store.Get(ctx, t.key)
	if err != nil || !ok {
		return false
	}
	var p VerificationProgress
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return false
	}
	return p.CurrentStep != StepComplete
}

func (t *progressTracker) load(ctx context.Context) VerificationProgress {
	raw, ok, err := t.store.Get(ctx, t.key)
	if err != nil || !ok {
		return freshProgress(t.now().UTC())
	}

	var p VerificationProgress
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		// Corrupt persisted state is treated as absence.
		t.log.Warn().Err(err).Str("key", t.key).Msg("dropping corrupt verification progress")
		_ = t.store.Remove(ctx, t.key)
		return freshProgress(t.now().UTC())
	}
	if p.CompletedSteps == nil {
		p.CompletedSteps = []StepID{}
	}
	if p.Data == nil {
		p.Data = map[string]any{}
	}
	return p
}

func (t *progressTracker) persist(ctx context.Context, p VerificationProgress) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return t.store.Set(ctx, t.key, string(raw))
}
