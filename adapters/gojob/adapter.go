package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-deployer/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

// RetryPolicy bounds redelivery of failed deploy jobs.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation. A
// retry at or past MaxAttempts becomes terminal.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.Disposition == "" {
		out.Disposition = queue.NackDispositionRetry
	}
	if out.Disposition == queue.NackDispositionRetry && p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Disposition = queue.NackDispositionFailed
		if p.DeadLetterOnMax {
			out.Disposition = queue.NackDispositionDeadLetter
		}
		out.Delay = 0
	}
	return out
}

// Exhausted reports whether attempt has used up the retry budget.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt >= p.MaxAttempts
}

type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

// EnqueueDeploy schedules a deploy run and returns the idempotency key used.
func (a *EnqueuerAdapter) EnqueueDeploy(ctx context.Context, deployJob DeployJob) (string, error) {
	return a.EnqueueDeployAfter(ctx, deployJob, 0)
}

// EnqueueDeployAfter schedules a deploy run to start after delay. Enqueuers
// without scheduling support receive the message immediately.
func (a *EnqueuerAdapter) EnqueueDeployAfter(ctx context.Context, deployJob DeployJob, delay time.Duration) (string, error) {
	if a == nil || a.enqueuer == nil {
		return "", fmt.Errorf("gojob: enqueuer is not configured")
	}
	msg, err := NewDeployJobMessage(deployJob)
	if err != nil {
		return "", err
	}
	if scheduled, ok := a.enqueuer.(queue.ScheduledEnqueuer); ok && delay > 0 {
		if _, err := scheduled.EnqueueAfter(ctx, msg, delay); err != nil {
			return "", fmt.Errorf("gojob: enqueue deploy: %w", err)
		}
		return msg.IdempotencyKey, nil
	}
	if _, err := a.enqueuer.Enqueue(ctx, msg); err != nil {
		return "", fmt.Errorf("gojob: enqueue deploy: %w", err)
	}
	return msg.IdempotencyKey, nil
}

type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

func (d *DeliveryAdapter) Message() *job.ExecutionMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return d.delivery.Message()
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) Nack(ctx context.Context, opts queue.NackOptions) error {
	return d.NackForAttempt(ctx, opts, 0)
}

func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts queue.NackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Nack(ctx, d.policy.NormalizeAttempt(opts, attempt))
}

type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (*DeliveryAdapter, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	return NewDeliveryAdapter(delivery, a.policy), nil
}

// JobEvent is a worker lifecycle event for a deploy job.
type JobEvent struct {
	JobID          string
	IdempotencyKey string
	Attempt        int
	Delay          time.Duration
	Err            error
	StartedAt      time.Time
	Duration       time.Duration
}

type JobHook interface {
	OnStart(ctx context.Context, event JobEvent)
	OnSuccess(ctx context.Context, event JobEvent)
	OnFailure(ctx context.Context, event JobEvent)
	OnRetry(ctx context.Context, event JobEvent)
}

type WorkerHookAdapter struct {
	hook JobHook
}

func NewWorkerHookAdapter(hook JobHook) *WorkerHookAdapter {
	return &WorkerHookAdapter{hook: hook}
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnStart(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnSuccess(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnFailure(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnRetry(ctx, mapWorkerEvent(event))
}

func mapWorkerEvent(event worker.Event) JobEvent {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	out := JobEvent{
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
	if message != nil {
		out.JobID = strings.TrimSpace(message.JobID)
		out.IdempotencyKey = strings.TrimSpace(message.IdempotencyKey)
	}
	return out
}

// LoggingHook writes worker lifecycle events to a deployer logger.
type LoggingHook struct {
	logger core.Logger
}

func NewLoggingHook(logger core.Logger) *LoggingHook {
	return &LoggingHook{logger: logger}
}

func (h *LoggingHook) OnStart(ctx context.Context, event JobEvent) {
	h.log(ctx, "info", "deploy job started", event)
}

func (h *LoggingHook) OnSuccess(ctx context.Context, event JobEvent) {
	h.log(ctx, "info", "deploy job completed", event)
}

func (h *LoggingHook) OnFailure(ctx context.Context, event JobEvent) {
	h.log(ctx, "error", "deploy job failed", event)
}

func (h *LoggingHook) OnRetry(ctx context.Context, event JobEvent) {
	h.log(ctx, "warn", "deploy job retrying", event)
}

func (h *LoggingHook) log(ctx context.Context, level string, message string, event JobEvent) {
	if h == nil || h.logger == nil {
		return
	}
	logger := h.logger.WithContext(ctx)
	args := []any{
		"job_id", event.JobID,
		"idempotency_key", event.IdempotencyKey,
		"attempt", event.Attempt,
		"duration_ms", event.Duration.Milliseconds(),
	}
	if event.Delay > 0 {
		args = append(args, "delay_ms", event.Delay.Milliseconds())
	}
	if event.Err != nil {
		args = append(args, "error", event.Err.Error())
	}
	switch level {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	default:
		logger.Info(message, args...)
	}
}

var (
	_ worker.Hook = (*WorkerHookAdapter)(nil)
	_ JobHook     = (*LoggingHook)(nil)
)
