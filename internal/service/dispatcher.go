package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openworkhq/agentgate/internal/adapter/otel"
	"github.com/openworkhq/agentgate/internal/config"
	"github.com/openworkhq/agentgate/internal/domain"
	"github.com/openworkhq/agentgate/internal/domain/toolcall"
	"github.com/openworkhq/agentgate/internal/executor"
	"github.com/openworkhq/agentgate/internal/port/broadcast"
	"github.com/openworkhq/agentgate/internal/port/database"
	"github.com/openworkhq/agentgate/internal/port/messagequeue"
)

// DispatcherService consumes approved tool-call jobs from the execution
// queue and runs them on a bounded worker pool. Each job gets up to
// MaxAttempts execution attempts with exponential backoff between them; the
// backoff doubles starting from BackoffBase. A backoff never occupies a
// worker: the retry is re-enqueued by a timer while the worker moves on to
// the next job. Exhausting the attempts resolves the call as failed.
type DispatcherService struct {
	store   database.Store
	exec    *executor.Executor
	queue   messagequeue.Queue
	hub     broadcast.Broadcaster
	metrics *otel.Metrics

	workers     int
	maxAttempts int
	backoffBase time.Duration

	jobs      chan queuedJob
	cancelSub func()
	stop      context.CancelFunc
	group     *errgroup.Group
}

// queuedJob is one delivery of a job to the worker pool. attempt counts from
// 1; retries re-enter the channel with the counter bumped.
type queuedJob struct {
	job     toolcall.Job
	attempt int
}

// NewDispatcherService creates a DispatcherService.
func NewDispatcherService(cfg config.Queue, store database.Store, exec *executor.Executor, queue messagequeue.Queue, hub broadcast.Broadcaster, metrics *otel.Metrics) *DispatcherService {
	return &DispatcherService{
		store:       store,
		exec:        exec,
		queue:       queue,
		hub:         hub,
		metrics:     metrics,
		workers:     cfg.Workers,
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
		jobs:        make(chan queuedJob, cfg.Workers*2),
	}
}

// Start subscribes to the execution subject and launches the worker pool.
func (s *DispatcherService) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.stop = cancel

	cancelSub, err := s.queue.Subscribe(ctx, messagequeue.SubjectToolCallExecute, func(msgCtx context.Context, _ string, data []byte) error {
		var job toolcall.Job
		if err := json.Unmarshal(data, &job); err != nil {
			slog.Error("dispatcher: malformed job dropped", "error", err)
			return nil
		}
		select {
		case s.jobs <- queuedJob{job: job, attempt: 1}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-msgCtx.Done():
			return msgCtx.Err()
		}
	})
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe %s: %w", messagequeue.SubjectToolCallExecute, err)
	}
	s.cancelSub = cancelSub

	s.group = new(errgroup.Group)
	for i := 0; i < s.workers; i++ {
		s.group.Go(func() error {
			s.work(ctx)
			return nil
		})
	}

	slog.Info("dispatcher started", "workers", s.workers, "max_attempts", s.maxAttempts)
	return nil
}

// Stop cancels the subscription and the worker context, then waits for
// in-flight attempts to finish. The jobs channel is never closed: the
// subscription callback and retry timers may still hold sends, and a
// cancelled context makes those sends fall through instead of panicking.
// Pending retries are abandoned; their calls stay approved in the store.
func (s *DispatcherService) Stop() error {
	if s.cancelSub != nil {
		s.cancelSub()
	}
	if s.stop != nil {
		s.stop()
	}
	if s.group != nil {
		return s.group.Wait()
	}
	return nil
}

func (s *DispatcherService) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case qj := <-s.jobs:
			s.process(ctx, qj)
		}
	}
}

// process runs a single attempt of a job. Transient failures with attempts
// left are handed to scheduleRetry and the worker returns to the pool; the
// delay is never slept through here. The store transition is the authority:
// if another worker already resolved the call, the CAS fails with
// ErrInvalidState and this worker's outcome is discarded.
func (s *DispatcherService) process(ctx context.Context, qj queuedJob) {
	job := qj.job

	spanCtx, span := otel.StartExecuteSpan(ctx, job.ToolCallID, qj.attempt)
	result, duration, err := s.attempt(spanCtx, job)
	span.End()

	if err == nil {
		if err := s.store.MarkToolCallExecuted(ctx, job.ToolCallID, result, duration); err != nil {
			if errors.Is(err, domain.ErrInvalidState) {
				slog.Warn("dispatcher: call already resolved", "tool_call_id", job.ToolCallID)
				return
			}
			slog.Error("dispatcher: mark executed", "tool_call_id", job.ToolCallID, "error", err)
			return
		}
		s.metrics.ToolCallsExecuted.Add(ctx, 1)
		s.metrics.ExecuteDuration.Record(ctx, duration.Seconds())
		s.resolve(ctx, job, toolcall.StatusExecuted)
		slog.Info("tool call executed",
			"tool_call_id", job.ToolCallID,
			"tool", job.Tool,
			"attempt", qj.attempt,
			"duration", duration,
		)
		return
	}

	if !permanent(err) && qj.attempt < s.maxAttempts {
		s.scheduleRetry(ctx, qj, err)
		return
	}

	if err := s.store.MarkToolCallFailed(ctx, job.ToolCallID, err.Error()); err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			return
		}
		slog.Error("dispatcher: mark failed", "tool_call_id", job.ToolCallID, "error", err)
		return
	}
	s.metrics.ToolCallsFailed.Add(ctx, 1)
	s.resolve(ctx, job, toolcall.StatusFailed)
	slog.Error("tool call failed permanently", "tool_call_id", job.ToolCallID, "error", err)
}

// scheduleRetry re-enqueues the job after its backoff elapses. The timer
// fires off-worker; a dispatcher shutdown before then drops the retry.
func (s *DispatcherService) scheduleRetry(ctx context.Context, qj queuedJob, cause error) {
	backoff := s.backoffBase << (qj.attempt - 1)
	s.metrics.QueueRetries.Add(ctx, 1)
	slog.Warn("tool call attempt failed, retrying",
		"tool_call_id", qj.job.ToolCallID,
		"attempt", qj.attempt,
		"backoff", backoff,
		"error", cause,
	)

	next := queuedJob{job: qj.job, attempt: qj.attempt + 1}
	time.AfterFunc(backoff, func() {
		select {
		case s.jobs <- next:
		case <-ctx.Done():
		}
	})
}

// attempt re-validates the arguments against the agent's current policy and
// executes once. Policy may have tightened since the call was approved.
func (s *DispatcherService) attempt(ctx context.Context, job toolcall.Job) (*toolcall.Result, time.Duration, error) {
	a, err := s.store.GetAgent(ctx, job.AgentID)
	if err != nil {
		return nil, 0, fmt.Errorf("load agent: %w", err)
	}

	args, err := toolcall.ParseArgs(job.Tool, job.Arguments)
	if err != nil {
		return nil, 0, err
	}

	start := time.Now()
	result, err := s.exec.Execute(ctx, args, a.Restrictions)
	return result, time.Since(start), err
}

// resolve announces a terminal transition on the broadcast hub and the
// resolved subject.
func (s *DispatcherService) resolve(ctx context.Context, job toolcall.Job, status toolcall.Status) {
	tc, err := s.store.GetToolCall(ctx, job.ToolCallID)
	if err != nil {
		slog.Error("dispatcher: load resolved call", "tool_call_id", job.ToolCallID, "error", err)
		return
	}

	s.hub.BroadcastEvent(ctx, EventToolCallResolved, ToolCallEvent{
		ID:          tc.ID,
		WorkspaceID: tc.WorkspaceID,
		Tool:        tc.Tool,
		Risk:        tc.Risk,
		Status:      string(status),
	})

	if data, err := json.Marshal(tc); err == nil {
		if err := s.queue.Publish(ctx, messagequeue.SubjectToolCallResolved, data); err != nil {
			slog.Warn("dispatcher: publish resolved", "tool_call_id", tc.ID, "error", err)
		}
	}
}

// permanent reports whether an execution error can never succeed on retry.
func permanent(err error) bool {
	return errors.Is(err, domain.ErrPolicyViolation) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrNotFound)
}
