package service

import (
	"context"
	"sync"
	"time"

	"pdf-ocr-server/internal/domain"
)

const defaultSubscriberBuffer = 64

// ProgressTracker holds the live progress of every job and pushes each
// change to subscribers. Safe for concurrent use.
type ProgressTracker struct {
	mu     sync.RWMutex
	states map[string]*domain.ProgressState

	subMu   sync.RWMutex
	subs    map[int]chan domain.ProgressUpdate
	nextSub int

	retention time.Duration
	policy    domain.SweepPolicy
	now       func() time.Time
	logger    domain.Logger
}

// NewProgressTracker creates a tracker that keeps finished entries for
// retention before the sweeper prunes them according to policy.
func NewProgressTracker(retention time.Duration, policy domain.SweepPolicy, logger domain.Logger) *ProgressTracker {
	if retention <= 0 {
		retention = time.Hour
	}
	if policy != domain.SweepTerminal {
		policy = domain.SweepCompleted
	}
	return &ProgressTracker{
		states:    make(map[string]*domain.ProgressState),
		subs:      make(map[int]chan domain.ProgressUpdate),
		retention: retention,
		policy:    policy,
		now:       time.Now,
		logger:    logger,
	}
}

type updateOptions struct {
	message string
	err     string
	total   int
}

// UpdateOption customizes a progress update
type UpdateOption func(*updateOptions)

// WithMessage replaces the human readable message.
func WithMessage(msg string) UpdateOption {
	return func(o *updateOptions) { o.message = msg }
}

// WithError appends an error to the job's error list.
func WithError(err string) UpdateOption {
	return func(o *updateOptions) { o.err = err }
}

// WithTotal sets the total page count once it is known.
func WithTotal(total int) UpdateOption {
	return func(o *updateOptions) { o.total = total }
}

// Begin registers a job in the initializing state.
func (t *ProgressTracker) Begin(jobID string, totalPages int) {
	now := t.now()
	state := &domain.ProgressState{
		JobID:      jobID,
		TotalPages: totalPages,
		Status:     domain.StatusInitializing,
		Message:    "Processing PDF...",
		Errors:     []string{},
		StartedAt:  now,
		UpdatedAt:  now,
	}

	t.mu.Lock()
	t.states[jobID] = state
	snapshot := copyState(state)
	t.mu.Unlock()

	t.publish(snapshot)
}

// Update records a progress event. Unknown jobs are ignored and false is returned.
func (t *ProgressTracker) Update(jobID string, currentPage int, status domain.ProgressStatus, opts ...UpdateOption) bool {
	var o updateOptions
	for _, opt := range opts {
		opt(&o)
	}

	t.mu.Lock()
	state, ok := t.states[jobID]
	if !ok {
		t.mu.Unlock()
		t.logger.Debug("Progress update for unknown job", "job_id", jobID)
		return false
	}

	if o.total > 0 {
		state.TotalPages = o.total
	}
	state.CurrentPage = currentPage
	state.Status = status
	if state.TotalPages > 0 {
		state.Percentage = percentage(currentPage, state.TotalPages)
	}
	if o.message != "" {
		state.Message = o.message
	}
	if o.err != "" {
		state.Errors = append(state.Errors, o.err)
	}
	if len(state.Errors) > 0 {
		state.Status = domain.StatusError
	}
	state.UpdatedAt = t.now()
	snapshot := copyState(state)
	t.mu.Unlock()

	t.publish(snapshot)
	return true
}

// Finish marks the job completed or failed. It is the last update a job gets.
func (t *ProgressTracker) Finish(jobID string, success bool) {
	t.mu.Lock()
	state, ok := t.states[jobID]
	if !ok {
		t.mu.Unlock()
		return
	}

	now := t.now()
	if success {
		state.Status = domain.StatusCompleted
		state.Percentage = 100
		state.Message = "Processing completed"
	} else {
		state.Status = domain.StatusError
		state.Message = "Processing failed"
	}
	state.UpdatedAt = now
	state.FinishedAt = &now
	snapshot := copyState(state)
	t.mu.Unlock()

	t.publish(snapshot)
}

// Query returns a copy of the job's progress.
func (t *ProgressTracker) Query(jobID string) (domain.ProgressState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state, ok := t.states[jobID]
	if !ok {
		return domain.ProgressState{}, false
	}
	return copyState(state), true
}

// Subscribe returns a channel receiving every update of every job, and a
// function that unsubscribes and closes the channel. Slow subscribers lose
// updates rather than stall the pipeline.
func (t *ProgressTracker) Subscribe() (<-chan domain.ProgressUpdate, func()) {
	ch := make(chan domain.ProgressUpdate, defaultSubscriberBuffer)

	t.subMu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch
	t.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.subMu.Lock()
			delete(t.subs, id)
			close(ch)
			t.subMu.Unlock()
		})
	}
	return ch, cancel
}

func (t *ProgressTracker) publish(state domain.ProgressState) {
	update := domain.ProgressUpdate{JobID: state.JobID, State: state}

	t.subMu.RLock()
	defer t.subMu.RUnlock()
	for id, ch := range t.subs {
		select {
		case ch <- update:
		default:
			t.logger.Warn("Dropping progress update for slow subscriber", "job_id", state.JobID, "subscriber", id)
		}
	}
}

// Sweep prunes finished entries older than the retention window and returns
// how many were removed.
func (t *ProgressTracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for jobID, state := range t.states {
		if state.FinishedAt == nil || now.Sub(*state.FinishedAt) < t.retention {
			continue
		}
		if !t.sweepable(state.Status) {
			continue
		}
		delete(t.states, jobID)
		removed++
	}
	return removed
}

func (t *ProgressTracker) sweepable(status domain.ProgressStatus) bool {
	switch t.policy {
	case domain.SweepTerminal:
		return status == domain.StatusCompleted || status == domain.StatusError
	default:
		return status == domain.StatusCompleted
	}
}

// RunSweeper prunes on every tick until ctx is done.
func (t *ProgressTracker) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := t.Sweep(t.now()); n > 0 {
				t.logger.Info("Pruned finished progress entries", "removed", n, "policy", string(t.policy))
			}
		}
	}
}

// Sink returns a domain.ProgressSink forwarding pipeline events for jobID.
func (t *ProgressTracker) Sink(jobID string) domain.ProgressSink {
	return &trackerSink{tracker: t, jobID: jobID}
}

type trackerSink struct {
	tracker *ProgressTracker
	jobID   string
}

func (s *trackerSink) Report(event domain.ProgressEvent) {
	s.tracker.Update(s.jobID, event.CurrentPage, event.Status,
		WithMessage(event.Message),
		WithError(event.Error),
		WithTotal(event.TotalPages),
	)
}

func percentage(current, total int) int {
	if total <= 0 {
		return 0
	}
	p := current * 100 / total
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func copyState(s *domain.ProgressState) domain.ProgressState {
	out := *s
	out.Errors = append([]string{}, s.Errors...)
	if s.FinishedAt != nil {
		finished := *s.FinishedAt
		out.FinishedAt = &finished
	}
	return out
}
