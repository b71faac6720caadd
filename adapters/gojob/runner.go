package gojob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-deployer/adapters/gologger"
	"github.com/goliatone/go-deployer/core"

	"github.com/goliatone/go-job/queue"
)

const DefaultRetryDelay = 30 * time.Second

// DeployService is the slice of the deployer a queue worker needs.
type DeployService interface {
	Deploy(ctx context.Context, req core.DeployRequest) (core.RunReport, error)
}

type RunnerOption func(*DeployRunner)

func WithRetryPolicy(policy RetryPolicy) RunnerOption {
	return func(r *DeployRunner) {
		r.policy = policy
	}
}

// WithRetryDelay sets the base backoff; attempt n waits n times the delay.
func WithRetryDelay(delay time.Duration) RunnerOption {
	return func(r *DeployRunner) {
		if delay >= 0 {
			r.retryDelay = delay
		}
	}
}

func WithRunnerLogger(provider core.LoggerProvider, logger core.Logger) RunnerOption {
	return func(r *DeployRunner) {
		r.logs = gologger.NewBridge(gologger.DefaultName, provider, logger).Named("jobs")
	}
}

// WithRetryEnqueuer lets the runner split a partially failed run: the failed
// batches are enqueued as a new job and the original delivery is acked.
func WithRetryEnqueuer(enqueuer queue.Enqueuer) RunnerOption {
	return func(r *DeployRunner) {
		if enqueuer != nil {
			r.retries = NewEnqueuerAdapter(enqueuer)
		}
	}
}

func WithRunnerProgress(progress core.ProgressFunc) RunnerOption {
	return func(r *DeployRunner) {
		r.progress = progress
	}
}

// DeployRunner executes deployer.deploy deliveries against a deploy service
// and settles each delivery with an ack or a bounded nack.
type DeployRunner struct {
	service    DeployService
	policy     RetryPolicy
	retryDelay time.Duration
	progress   core.ProgressFunc
	retries    *EnqueuerAdapter
	logs       gologger.Bridge
}

func NewDeployRunner(service DeployService, opts ...RunnerOption) (*DeployRunner, error) {
	if service == nil {
		return nil, fmt.Errorf("gojob: deploy service is required")
	}
	runner := &DeployRunner{
		service:    service,
		policy:     RetryPolicy{MaxAttempts: 3, MaxDelay: 5 * time.Minute, DeadLetterOnMax: true},
		retryDelay: DefaultRetryDelay,
		logs:       gologger.NewBridge(gologger.DefaultName, nil, nil).Named("jobs"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(runner)
		}
	}
	return runner, nil
}

// Logging exposes the runner loggers so hosts can hand the go-job shapes to
// their worker runtime.
func (r *DeployRunner) Logging() gologger.Bridge {
	return r.logs
}

// Hook returns a worker hook that logs through the runner logger.
func (r *DeployRunner) Hook() *WorkerHookAdapter {
	return NewWorkerHookAdapter(NewLoggingHook(r.logs.Logger))
}

// Handle runs one delivery. attempt is 1 based and counts deliveries of this
// message; attempts spent by the job a retry was split from are added to it.
func (r *DeployRunner) Handle(ctx context.Context, delivery queue.Delivery, attempt int) (core.RunReport, error) {
	if r == nil || r.service == nil {
		return core.RunReport{}, fmt.Errorf("gojob: deploy runner is not configured")
	}
	adapter := NewDeliveryAdapter(delivery, r.policy)
	deployJob, err := DecodeDeployJob(adapter.Message())
	if err != nil {
		r.logs.Logger.Error("deploy job rejected", "error", err.Error())
		nackErr := adapter.NackForAttempt(ctx, queue.NackOptions{
			Disposition: queue.NackDispositionDeadLetter,
			Reason:      err.Error(),
		}, attempt)
		return core.RunReport{}, errors.Join(err, nackErr)
	}
	attempt = max(attempt, 1) + deployJob.PriorAttempts

	report, err := r.service.Deploy(ctx, core.DeployRequest{
		SiteURIs: deployJob.SiteURIs,
		Progress: r.progress,
	})
	if err == nil {
		return report, adapter.Ack(ctx)
	}

	opts := queue.NackOptions{Reason: err.Error()}
	if !retryable(err) {
		opts.Disposition = queue.NackDispositionDeadLetter
	} else {
		opts.Disposition = queue.NackDispositionRetry
		opts.Delay = r.retryDelayFor(err, attempt)
		if len(report.Deploys) > 0 && len(report.Failed) > 0 && !r.policy.Exhausted(attempt) {
			if settled, splitErr := r.retryFailedBatches(ctx, adapter, deployJob, report, opts.Delay, attempt); settled {
				return report, errors.Join(err, splitErr)
			}
		}
	}
	r.logs.Logger.Warn("deploy job failed",
		"idempotency_key", deployJob.IdempotencyKey,
		"attempt", attempt,
		"disposition", string(opts.Disposition),
		"error", err.Error(),
	)
	if nackErr := adapter.NackForAttempt(ctx, opts, attempt); nackErr != nil {
		return report, errors.Join(err, nackErr)
	}
	return report, err
}

// retryFailedBatches enqueues the failed batches of a partially uploaded run
// and acks the original delivery so uploaded batches are not deployed again.
// It reports false when the split job could not be enqueued; the caller then
// redelivers the whole message.
func (r *DeployRunner) retryFailedBatches(
	ctx context.Context,
	adapter *DeliveryAdapter,
	deployJob DeployJob,
	report core.RunReport,
	delay time.Duration,
	attempt int,
) (bool, error) {
	failed := report.FailedSiteURIs()
	if r.retries == nil {
		r.logs.Logger.Error("partial deploy cannot be split without a retry enqueuer",
			"idempotency_key", deployJob.IdempotencyKey,
			"failed_uris", len(failed),
		)
		return true, adapter.NackForAttempt(ctx, queue.NackOptions{
			Disposition: queue.NackDispositionFailed,
			Reason:      "partial deploy: retry enqueuer is not configured",
		}, attempt)
	}

	retryKey, err := r.retries.EnqueueDeployAfter(ctx, DeployJob{
		SiteURIs:      failed,
		DedupPolicy:   deployJob.DedupPolicy,
		PriorAttempts: attempt,
	}, delay)
	if err != nil {
		r.logs.Logger.Error("failed batches could not be enqueued", "error", err.Error())
		return false, nil
	}
	r.logs.Logger.Warn("deploy job partially failed; retrying failed batches",
		"idempotency_key", deployJob.IdempotencyKey,
		"retry_idempotency_key", retryKey,
		"attempt", attempt,
		"uploaded", len(report.Deploys),
		"failed_batches", len(report.Failed),
		"delay_ms", delay.Milliseconds(),
	)
	return true, adapter.Ack(ctx)
}

func (r *DeployRunner) retryDelayFor(err error, attempt int) time.Duration {
	delay := r.retryDelay * time.Duration(max(attempt, 1))
	if hint, ok := core.RetryAfterHint(err); ok && hint > delay {
		delay = hint
	}
	if r.policy.MaxDelay > 0 && delay > r.policy.MaxDelay {
		delay = r.policy.MaxDelay
	}
	return delay
}

// Upload failures may clear up on their own; authorization, aborts and bad
// payloads will not.
func retryable(err error) bool {
	switch {
	case core.IsNotAuthorized(err), core.IsRunAborted(err):
		return false
	case core.TextCode(err) == core.ErrorBadInput:
		return false
	}
	return true
}
